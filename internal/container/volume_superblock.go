package container

import (
	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/objects"
	"github.com/penguin359/apfsreader/internal/types"
)

// volumeSuperblockMinSize is the number of bytes an ApfsSuperblockT
// occupies, object header included.
const volumeSuperblockMinSize = 934

func decodeVolumeSuperblock(raw objects.Raw) (types.ApfsSuperblockT, error) {
	if raw.Type() != types.ObjectTypeFs {
		return types.ApfsSuperblockT{}, apfserr.New(apfserr.InvalidValue, "object is not a volume superblock")
	}
	if len(raw.Body) < volumeSuperblockMinSize {
		return types.ApfsSuperblockT{}, apfserr.New(apfserr.Truncated, "volume superblock shorter than its fixed fields")
	}

	c := &cursor{b: raw.Body, i: types.ObjPhysSize}
	var v types.ApfsSuperblockT
	v.ApfsO = raw.Header

	v.ApfsMagic = c.u32()
	if v.ApfsMagic != types.ApfsMagicValue {
		return types.ApfsSuperblockT{}, apfserr.New(apfserr.InvalidValue, "volume superblock has the wrong magic")
	}
	v.ApfsFsIndex = c.u32()
	v.ApfsFeatures = c.u64()
	v.ApfsReadonlyCompatibleFeatures = c.u64()
	v.ApfsIncompatibleFeatures = c.u64()
	v.ApfsUnmountTime = c.u64()
	v.ApfsFsReserveBlockCount = c.u64()
	v.ApfsFsQuotaBlockCount = c.u64()
	v.ApfsFsAllocCount = c.u64()
	v.ApfsOmapOid = types.OidT(c.u64())
	v.ApfsRootTreeOid = types.OidT(c.u64())
	v.ApfsExtentrefTreeOid = types.OidT(c.u64())
	v.ApfsSnapMetaTreeOid = types.OidT(c.u64())
	v.ApfsRevertToXid = types.XidT(c.u64())
	v.ApfsRevertToSblockOid = types.OidT(c.u64())
	v.ApfsNextObjId = c.u64()
	v.ApfsNumFiles = c.u64()
	v.ApfsNumDirectories = c.u64()
	v.ApfsNumSymlinks = c.u64()
	v.ApfsNumOtherFsobjects = c.u64()
	v.ApfsNumSnapshots = c.u64()
	v.ApfsTotalBlocksAlloced = c.u64()
	v.ApfsTotalBlocksFreed = c.u64()
	copy(v.ApfsVolUuid[:], c.bytes(16))
	v.ApfsLastModTime = c.u64()
	v.ApfsFsFlags = c.u64()
	v.ApfsFormattedBy = decodeModifiedBy(c)
	for i := range v.ApfsModifiedBy {
		v.ApfsModifiedBy[i] = decodeModifiedBy(c)
	}
	copy(v.ApfsVolname[:], c.bytes(types.ApfsVolnameLen))
	v.ApfsNextDocId = c.u32()
	v.ApfsRole = c.u16()

	return v, nil
}

func decodeModifiedBy(c *cursor) types.ApfsModifiedByT {
	var m types.ApfsModifiedByT
	copy(m.Id[:], c.bytes(types.ApfsModifiedNamelen))
	m.Timestamp = c.u64()
	m.LastXid = types.XidT(c.u64())
	return m
}
