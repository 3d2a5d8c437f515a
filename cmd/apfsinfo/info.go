package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <image>",
	Short: "Print the container superblock and its volume list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		path := args[0]

		c, src, err := openContainer(path)
		if err != nil {
			return err
		}
		defer src.Close()

		sb := c.Superblock()
		logger.Info("container opened", "path", path, "block_size", sb.NxBlockSize)

		fmt.Printf("container block size: %d\n", sb.NxBlockSize)
		fmt.Printf("container block count: %d\n", sb.NxBlockCount)
		fmt.Printf("next object id: %d\n", sb.NxNextOid)
		fmt.Printf("next transaction id: %d\n", sb.NxNextXid)

		vols, err := c.Volumes()
		if err != nil {
			return err
		}
		logger.Info("volumes discovered", "count", len(vols))

		fmt.Printf("volumes: %d\n", len(vols))
		for i, v := range vols {
			fmt.Printf("  [%d] %-20q encrypted=%v files=%d dirs=%d\n",
				i, v.Name(), v.Encrypted(), v.Superblock().ApfsNumFiles, v.Superblock().ApfsNumDirectories)
		}
		return nil
	},
}
