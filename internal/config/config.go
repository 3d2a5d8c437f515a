// Package config binds the CLI's block-size override and verbosity flag
// through viper, so they can come from either a command-line flag or the
// APFS_ environment prefix. The core reader never reads configuration
// itself: every package under internal/container, internal/btree, and so
// on takes its block size as an explicit argument.
package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the CLI's resolved configuration, after flags and environment
// variables have both been applied.
type Config struct {
	// BlockSize overrides container.Open's autodetection. Zero means
	// autodetect from the superblock.
	BlockSize uint32 `mapstructure:"block_size"`
	Verbose   bool   `mapstructure:"verbose"`
}

// Bind registers the --block-size and --verbose persistent flags on cmd
// and binds both to a new, dedicated viper instance under the APFS_ environment
// prefix, the same SetEnvPrefix/AutomaticEnv/BindPFlag pattern the
// teacher's device package uses for its own Viper-backed config.
func Bind(cmd *cobra.Command) (*viper.Viper, error) {
	cmd.PersistentFlags().Uint32("block-size", 0, "override the container's block size (0 autodetects from the superblock)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")

	v := viper.New()
	v.SetEnvPrefix("APFS")
	v.AutomaticEnv()

	if err := v.BindPFlag("block_size", cmd.PersistentFlags().Lookup("block-size")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose")); err != nil {
		return nil, err
	}
	return v, nil
}

// Load reads the resolved configuration out of v. Load never errs: it reads
// each key with viper's typed getters, which yield the zero value rather
// than an error for a value that cannot be converted.
func Load(v *viper.Viper) Config {
	return Config{
		BlockSize: uint32(v.GetUint("block_size")),
		Verbose:   v.GetBool("verbose"),
	}
}
