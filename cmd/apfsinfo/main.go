// Command apfsinfo is a read-only diagnostic inspector for APFS container
// images: it opens a container, reports its superblock and volume list,
// and lists directory entries under a volume path. It is built on the
// public interface of internal/container, plus internal/fstree's key type
// and extended-field decoders for the ls listing's file sizes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
