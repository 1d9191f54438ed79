// Package config defines the go-aio process configuration, loaded from
// flags, environment and config files via spf13/viper bound to spf13/cobra
// persistent flags, in the style nabbar-golib's config/components wires
// viper.BindPFlag against cobra.Command.PersistentFlags().
package config

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds every tunable of the go-aio runtime. Zero value is invalid;
// use Default() and override via RegisterFlags/Load.
type Config struct {
	// WorkerCount sizes the fiber.WorkerPool; 0 means runtime.NumCPU().
	WorkerCount int
	// StackSizeHint is accepted for parity with the spec's stack-size knob
	// but is inert: goroutines grow their own stacks, and no component
	// reads this field.
	StackSizeHint int
	// IdleGCPeriod is how long the driver waits with no ready work before
	// running a single idle-time GC cycle. Zero disables the idle-GC hook.
	IdleGCPeriod time.Duration
	// MailboxDefaultBound is the loaded default mailbox capacity. Nothing
	// applies it automatically: mailbox.New takes its bound explicitly, so
	// callers pass this value themselves.
	MailboxDefaultBound int
	// ConnPoolDefaultConcurrency is the loaded default connection pool
	// permit count. Nothing applies it automatically: connpool.New takes
	// its limit explicitly, so callers pass this value themselves.
	ConnPoolDefaultConcurrency int
	// DropToUID/DropToGID, if non-empty, are applied via DropPrivileges
	// after driver setup and before any task runs business logic.
	DropToUID string
	DropToGID string
	// Verbosity is the number of -v flags supplied; see rtlog.RaiseVerbosity.
	Verbosity int
	// DisableIdleGC skips the idle-time GC hook entirely, overriding
	// IdleGCPeriod.
	DisableIdleGC bool
	// UseDNS is the loaded hostname-resolution setting. driver.ResolveHost
	// takes its own useDNS argument, so callers pass this value to it; with
	// false, only literal IP addresses are accepted.
	UseDNS bool
}

// Default returns the baseline configuration used when nothing overrides it.
func Default() Config {
	return Config{
		WorkerCount:                0,
		IdleGCPeriod:               2 * time.Second,
		MailboxDefaultBound:        256,
		ConnPoolDefaultConcurrency: 16,
		UseDNS:                     true,
	}
}

// RegisterFlags adds go-aio's persistent flags to cmd and binds each one into
// v under its own flag name via BindPFlag, the pattern the pack's
// config/components packages use for every component.
func RegisterFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()

	flags.Int("workers", 0, "fiber worker pool size (0 = runtime.NumCPU())")
	flags.Duration("idle-gc-period", 2*time.Second, "idle-time GC trigger period (0 disables)")
	flags.Bool("disable-idle-gc", false, "disable the idle-time GC hook entirely")
	flags.Int("mailbox-bound", 256, "default bounded mailbox capacity")
	flags.Int("conn-pool-concurrency", 16, "default connection pool permit count")
	flags.String("drop-uid", "", "drop privileges to this uid after driver setup")
	flags.String("drop-gid", "", "drop privileges to this gid after driver setup")
	flags.CountP("verbose", "v", "increase log verbosity (repeatable)")
	flags.Bool("use-dns", true, "resolve hostnames; false restricts to literal IPs")

	for _, name := range []string{
		"workers", "idle-gc-period", "disable-idle-gc", "mailbox-bound",
		"conn-pool-concurrency", "drop-uid", "drop-gid", "verbose", "use-dns",
	} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", name, err)
		}
	}

	return nil
}

// Load materializes a Config from v, starting from Default() and overriding
// every field viper has a value for.
func Load(v *viper.Viper) Config {
	cfg := Default()
	cfg.WorkerCount = v.GetInt("workers")
	cfg.IdleGCPeriod = v.GetDuration("idle-gc-period")
	cfg.DisableIdleGC = v.GetBool("disable-idle-gc")
	cfg.MailboxDefaultBound = v.GetInt("mailbox-bound")
	cfg.ConnPoolDefaultConcurrency = v.GetInt("conn-pool-concurrency")
	cfg.DropToUID = v.GetString("drop-uid")
	cfg.DropToGID = v.GetString("drop-gid")
	cfg.Verbosity = v.GetInt("verbose")
	cfg.UseDNS = v.GetBool("use-dns")
	return cfg
}
