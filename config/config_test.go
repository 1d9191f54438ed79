package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlags_LoadOverridesDefault(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	require.NoError(t, RegisterFlags(cmd, v))

	require.NoError(t, cmd.PersistentFlags().Set("workers", "4"))
	require.NoError(t, cmd.PersistentFlags().Set("drop-uid", "nobody"))
	require.NoError(t, cmd.PersistentFlags().Set("use-dns", "false"))
	require.NoError(t, cmd.PersistentFlags().Set("verbose", "+1"))
	require.NoError(t, cmd.PersistentFlags().Set("verbose", "+1"))

	cfg := Load(v)
	require.Equal(t, 4, cfg.WorkerCount)
	require.Equal(t, "nobody", cfg.DropToUID)
	require.False(t, cfg.UseDNS)
	require.Equal(t, 2, cfg.Verbosity)
}

func TestDefault_MatchesUnflaggedLoad(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	v := viper.New()
	require.NoError(t, RegisterFlags(cmd, v))

	cfg := Load(v)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 2*time.Second, cfg.IdleGCPeriod)
}
