// Package container implements the top-level, read-only interface to an
// APFS container: opening the container superblock, resolving the
// container and per-volume object maps, and handing out B-tree handles
// onto each volume's file-system tree.
package container

import (
	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/blockio"
	"github.com/penguin359/apfsreader/internal/btree"
	"github.com/penguin359/apfsreader/internal/extentref"
	"github.com/penguin359/apfsreader/internal/fstree"
	"github.com/penguin359/apfsreader/internal/objects"
	"github.com/penguin359/apfsreader/internal/omap"
	"github.com/penguin359/apfsreader/internal/types"
)

// CurrentXid is the transaction identifier used to resolve an object's
// current version: an object map lookup at CurrentXid always matches the
// entry with the largest Xid on file for the requested Oid.
const CurrentXid types.XidT = ^types.XidT(0)

// Container is a read-only handle on an APFS container.
type Container struct {
	loader *objects.Loader
	sb     types.NxSuperblockT
	omap   *omap.Resolver
}

// Open bootstraps a Container from src. blockSize, if nonzero, overrides
// the block size this reader would otherwise detect by peeking at the
// container superblock; it must be one of blockio.SupportedBlockSizes.
func Open(src blockio.ByteSource, blockSize uint32) (*Container, error) {
	if blockSize == 0 {
		detected, err := peekBlockSize(src)
		if err != nil {
			return nil, err
		}
		blockSize = detected
	}

	dev, err := blockio.NewDevice(src, blockSize)
	if err != nil {
		return nil, err
	}
	loader := objects.NewLoader(dev)

	raw, err := loader.LoadPhysical(0)
	if err != nil {
		return nil, err
	}
	sb, err := decodeSuperblock(raw)
	if err != nil {
		return nil, err
	}
	if sb.NxBlockSize != blockSize {
		return nil, apfserr.New(apfserr.InvalidValue, "container superblock's block size does not match the device it was read with")
	}

	omapResolver, err := omap.Open(loader, types.Paddr(sb.NxOmapOid))
	if err != nil {
		return nil, err
	}

	return &Container{loader: loader, sb: sb, omap: omapResolver}, nil
}

// peekBlockSize reads enough of the start of src to learn the container's
// block size without yet being able to verify the superblock's checksum
// (which covers the whole block, whatever size that turns out to be).
func peekBlockSize(src blockio.ByteSource) (uint32, error) {
	const peekSize = 64
	buf := make([]byte, peekSize)
	if _, err := src.ReadAt(buf, 0); err != nil {
		return 0, apfserr.Wrap(apfserr.IoError, "reading container superblock header", err)
	}

	magic := le32(buf[32:36])
	if magic != types.NxMagicValue {
		return 0, apfserr.New(apfserr.InvalidValue, "no container superblock found at Paddr 0")
	}
	blockSize := le32(buf[36:40])

	supported := false
	for _, s := range blockio.SupportedBlockSizes {
		if s == blockSize {
			supported = true
			break
		}
	}
	if !supported {
		return 0, apfserr.New(apfserr.Unsupported, "container block size is not one this reader supports")
	}
	return blockSize, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Superblock returns the container's superblock.
func (c *Container) Superblock() types.NxSuperblockT { return c.sb }

// LoadObjectAt loads and validates the object stored at the physical
// address paddr.
func (c *Container) LoadObjectAt(paddr types.Paddr) (objects.Raw, error) {
	return c.loader.LoadPhysical(paddr)
}

// LoadObjectOid loads oid, resolved according to storageClass: physical
// Oids address a block directly, virtual Oids are resolved through the
// container's object map at CurrentXid, and ephemeral Oids are resolved
// through the checkpoint-data area's mapping table.
func (c *Container) LoadObjectOid(oid types.OidT, storageClass types.StorageClass) (objects.Raw, error) {
	switch storageClass {
	case types.StoragePhysical:
		return c.loader.LoadPhysical(types.Paddr(oid))
	case types.StorageVirtual:
		return c.omap.LoadObject(oid, CurrentXid)
	case types.StorageEphemeral:
		idx, err := buildEphemeralIndex(c.loader, c.sb)
		if err != nil {
			return objects.Raw{}, err
		}
		return c.loader.LoadEphemeral(oid, idx)
	default:
		return objects.Raw{}, apfserr.New(apfserr.Unsupported, "unrecognized storage class")
	}
}

// ObjectMap returns the resolver over the container's own object map.
func (c *Container) ObjectMap() *omap.Resolver { return c.omap }

// Volumes returns a handle for each populated entry in the container
// superblock's volume list.
func (c *Container) Volumes() ([]*VolumeHandle, error) {
	var vols []*VolumeHandle
	for _, oid := range c.sb.NxFsOid {
		if oid == types.OidInvalid {
			continue
		}
		raw, err := c.omap.LoadObject(oid, CurrentXid)
		if err != nil {
			return nil, err
		}
		sb, err := decodeVolumeSuperblock(raw)
		if err != nil {
			return nil, err
		}
		volOmap, err := omap.Open(c.loader, types.Paddr(sb.ApfsOmapOid))
		if err != nil {
			return nil, err
		}
		vols = append(vols, &VolumeHandle{sb: sb, omap: volOmap})
	}
	return vols, nil
}

// VolumeHandle is a read-only handle on one volume inside a container.
type VolumeHandle struct {
	sb   types.ApfsSuperblockT
	omap *omap.Resolver
}

// Superblock returns the volume's superblock.
func (v *VolumeHandle) Superblock() types.ApfsSuperblockT { return v.sb }

// Name returns the volume's name.
func (v *VolumeHandle) Name() string { return v.sb.Name() }

// Encrypted reports whether the volume's file-system objects are sealed
// behind a wrapped key this reader cannot unwrap.
func (v *VolumeHandle) Encrypted() bool { return v.sb.Encrypted() }

// ObjectMap returns the resolver over this volume's own object map.
func (v *VolumeHandle) ObjectMap() *omap.Resolver { return v.omap }

// RootTree opens the volume's root file-system B-tree. For an encrypted
// volume it returns an Unsupported error instead of descending.
func (v *VolumeHandle) RootTree() (*BtreeHandle, error) {
	if v.sb.Encrypted() {
		return nil, apfserr.New(apfserr.Unsupported, "volume is encrypted; its file-system tree is not read")
	}
	source := v.omap.Source(CurrentXid)
	tree, err := btree.Open[fstree.Key, fstree.Value](source, v.sb.ApfsRootTreeOid, fstree.Schema{})
	if err != nil {
		return nil, err
	}
	return &BtreeHandle{tree: tree}, nil
}

// BtreeHandle is a read-only handle on a volume's file-system B-tree.
type BtreeHandle struct {
	tree *btree.Tree[fstree.Key, fstree.Value]
}

// Get looks up an exact file-system record.
func (h *BtreeHandle) Get(key fstree.Key) (fstree.Value, error) {
	return h.tree.Get(key)
}

// Iter returns an iterator over every record in the tree, in key order.
func (h *BtreeHandle) Iter() *btree.Iterator[fstree.Key, fstree.Value] {
	return h.tree.Iter()
}

// ExtentRefTree opens the volume's physical extent-reference tree, which
// records which physical blocks are claimed by which object. A volume
// with no extent-reference tree of its own (ApfsExtentrefTreeOid unset)
// returns an apfserr.NotFound error.
func (v *VolumeHandle) ExtentRefTree() (*ExtentRefHandle, error) {
	if v.sb.ApfsExtentrefTreeOid == types.OidInvalid {
		return nil, apfserr.New(apfserr.NotFound, "volume has no extent-reference tree")
	}
	source := v.omap.Source(CurrentXid)
	tree, err := btree.Open[extentref.Key, types.JPhysExtValT](source, v.sb.ApfsExtentrefTreeOid, extentref.Schema{})
	if err != nil {
		return nil, err
	}
	return &ExtentRefHandle{tree: tree}, nil
}

// ExtentRefHandle is a read-only handle on a volume's physical
// extent-reference B-tree.
type ExtentRefHandle struct {
	tree *btree.Tree[extentref.Key, types.JPhysExtValT]
}

// Get looks up the physical extent record starting at paddr.
func (h *ExtentRefHandle) Get(paddr uint64) (types.JPhysExtValT, error) {
	return h.tree.Get(extentref.Key{StartPaddr: paddr})
}

// Iter returns an iterator over every physical extent record, in
// ascending start-address order.
func (h *ExtentRefHandle) Iter() *btree.Iterator[extentref.Key, types.JPhysExtValT] {
	return h.tree.Iter()
}
