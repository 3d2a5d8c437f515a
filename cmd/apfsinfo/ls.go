package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/container"
	"github.com/penguin359/apfsreader/internal/fstree"
	"github.com/penguin359/apfsreader/internal/types"
)

var lsCmd = &cobra.Command{
	Use:   "ls <image> <volume-index> [path]",
	Short: "List the directory entries at a path inside a volume",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		path := args[0]

		var volIndex int
		if _, err := fmt.Sscanf(args[1], "%d", &volIndex); err != nil {
			return apfserr.New(apfserr.InvalidValue, "volume-index must be an integer")
		}

		fsPath := "/"
		if len(args) == 3 {
			fsPath = args[2]
		}

		c, src, err := openContainer(path)
		if err != nil {
			return err
		}
		defer src.Close()

		vols, err := c.Volumes()
		if err != nil {
			return err
		}
		if volIndex < 0 || volIndex >= len(vols) {
			return apfserr.New(apfserr.OutOfRange, "volume index out of range")
		}
		vol := vols[volIndex]
		logger.Info("listing path", "volume", vol.Name(), "path", fsPath)

		tree, err := vol.RootTree()
		if err != nil {
			return err
		}

		dirId, err := resolveDir(tree, fsPath)
		if err != nil {
			return err
		}

		entries, err := listDir(tree, dirId)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(e)
		}
		return nil
	},
}

// resolveDir walks fsPath one component at a time from the volume root
// directory, resolving each name to its child's file id via an exact
// directory-entry lookup.
func resolveDir(tree *container.BtreeHandle, fsPath string) (uint64, error) {
	dirId := types.RootDirInodeId
	for _, part := range strings.Split(strings.Trim(fsPath, "/"), "/") {
		if part == "" {
			continue
		}
		val, err := tree.Get(fstree.Key{ObjId: dirId, Kind: types.ApfsTypeDirRec, Name: part})
		if err != nil {
			return 0, apfserr.Wrap(apfserr.NotFound, "no such directory entry: "+part, err)
		}
		if val.Dirent == nil {
			return 0, apfserr.New(apfserr.NotFound, "path component is not a directory entry: "+part)
		}
		dirId = val.Dirent.FileId
	}
	return dirId, nil
}

// listDir scans the whole tree for directory-entry records belonging to
// dirId. BtreeHandle exposes no prefix scan, so this walks every record in
// key order and keeps the ones whose object id and kind match; since
// directory-entry keys sort by (ObjId, Kind, Name), every match for one
// directory is contiguous, but a full scan is still simplest given the
// public interface available here.
func listDir(tree *container.BtreeHandle, dirId uint64) ([]string, error) {
	var names []string
	it := tree.Iter()
	for {
		key, val, ok := it.Next()
		if !ok {
			break
		}
		if key.ObjId != dirId || key.Kind != types.ApfsTypeDirRec {
			continue
		}
		kind := "?"
		size := "-"
		if val.Dirent != nil {
			switch val.Dirent.Flags & types.DrecTypeMask {
			case types.DtDir:
				kind = "dir"
			case types.DtReg:
				kind = "file"
				size = fileSize(tree, val.Dirent.FileId)
			case types.DtLnk:
				kind = "link"
			}
		}
		names = append(names, fmt.Sprintf("%-6s %8s %s", kind, size, key.Name))
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// fileSize reports a regular file's logical size via its inode's embedded
// default data-stream extended field, or "-" if it carries none (an empty
// file, or one whose dstream info lives only in a separate dstream-id
// record this command does not chase).
func fileSize(tree *container.BtreeHandle, fileId uint64) string {
	inodeVal, err := tree.Get(fstree.Key{ObjId: fileId, Kind: types.ApfsTypeInode})
	if err != nil || inodeVal.Inode == nil {
		return "-"
	}
	fields, err := fstree.DecodeXFields(inodeVal.Inode.XFields)
	if err != nil {
		return "-"
	}
	ds, ok := fstree.DefaultDstream(fields)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%d", ds.Size)
}
