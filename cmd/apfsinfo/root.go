package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penguin359/apfsreader/internal/blockio"
	"github.com/penguin359/apfsreader/internal/config"
	"github.com/penguin359/apfsreader/internal/container"
)

var rootCmd = &cobra.Command{
	Use:   "apfsinfo",
	Short: "Inspect APFS container images",
	Long: `apfsinfo opens a raw APFS container image read-only and reports
its superblock, volumes, and file-system tree contents.`,
}

var cfgViper *viper.Viper

func init() {
	v, err := config.Bind(rootCmd)
	if err != nil {
		panic(err)
	}
	cfgViper = v

	rootCmd.AddCommand(infoCmd, lsCmd)
}

// newLogger builds the CLI-edge structured logger; the core reader
// packages never log, per the single-threaded library design in §5.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if config.Load(cfgViper).Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openContainer opens path as a container, applying any --block-size
// override from config. The caller is responsible for closing the
// returned source once done with the container.
func openContainer(path string) (*container.Container, *blockio.FileSource, error) {
	src, err := blockio.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	c, err := container.Open(src, config.Load(cfgViper).BlockSize)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	return c, src, nil
}
