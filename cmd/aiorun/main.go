// Command aiorun is go-aio's reference entrypoint: it wires config.Config
// flags onto a cobra root command (the pack's nabbar-golib/cobra
// BindPFlag pattern, already used by config.RegisterFlags) and runs
// spec.md's S1 echo-server scenario — listen on a loopback port, spawn
// one fiber per accepted connection that echoes the connection back to
// itself, until interrupted.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-aio/aio"
	"github.com/joeycumines/go-aio/config"
	"github.com/joeycumines/go-aio/fiber"
	"github.com/joeycumines/go-aio/rtlog"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "aiorun",
		Short: "go-aio reference runtime: an echo server over the fiber/driver stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(v)
			return runEchoServer(cmd.Context(), cfg, v.GetInt("port"))
		},
	}

	if err := config.RegisterFlags(cmd, v); err != nil {
		panic(err) // only fails on a programmer error in flag registration
	}

	cmd.Flags().Int("port", 0, "loopback port to listen on (0 = ephemeral)")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))

	return cmd
}

func runEchoServer(ctx context.Context, cfg config.Config, port int) error {
	log := rtlog.New(nil, rtlog.RaiseVerbosity(logiface.LevelInformational, cfg.Verbosity))
	rt, err := aio.New(cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Run(ctx, func(r *aio.Runtime) error {
		ln, err := r.Loop.ListenTCP(port, "127.0.0.1", func(conn *net.TCPConn) {
			r.Scheduler.Spawn(func(f *fiber.Fiber) error {
				defer conn.Close()
				_, err := io.Copy(conn, conn)
				return err
			})
		})
		if err != nil {
			return err
		}
		if err := aio.DropPrivileges(cfg); err != nil {
			_ = ln.Close()
			return err
		}
		r.Log.Info().Any("addr", ln.Addr().String()).Log("aiorun: listening")
		return nil
	})
}
