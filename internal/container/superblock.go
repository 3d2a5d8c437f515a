package container

import (
	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/objects"
	"github.com/penguin359/apfsreader/internal/types"
)

// superblockMinSize is the number of bytes an NxSuperblockT occupies,
// object header included.
const superblockMinSize = 1408

func decodeSuperblock(raw objects.Raw) (types.NxSuperblockT, error) {
	if raw.Type() != types.ObjectTypeNxSuperblock {
		return types.NxSuperblockT{}, apfserr.New(apfserr.InvalidValue, "object at Paddr 0 is not a container superblock")
	}
	if len(raw.Body) < superblockMinSize {
		return types.NxSuperblockT{}, apfserr.New(apfserr.Truncated, "container superblock shorter than its fixed fields")
	}

	c := &cursor{b: raw.Body, i: types.ObjPhysSize}
	var sb types.NxSuperblockT
	sb.NxO = raw.Header

	sb.NxMagic = c.u32()
	if sb.NxMagic != types.NxMagicValue {
		return types.NxSuperblockT{}, apfserr.New(apfserr.InvalidValue, "container superblock has the wrong magic")
	}
	sb.NxBlockSize = c.u32()
	sb.NxBlockCount = c.u64()
	sb.NxFeatures = c.u64()
	sb.NxReadonlyCompatibleFeatures = c.u64()
	sb.NxIncompatibleFeatures = c.u64()
	copy(sb.NxUuid[:], c.bytes(16))
	sb.NxNextOid = types.OidT(c.u64())
	sb.NxNextXid = types.XidT(c.u64())
	sb.NxXpDescBlocks = c.u32()
	sb.NxXpDataBlocks = c.u32()
	sb.NxXpDescBase = types.Paddr(c.i64())
	sb.NxXpDataBase = types.Paddr(c.i64())
	sb.NxXpDescNext = c.u32()
	sb.NxXpDataNext = c.u32()
	sb.NxXpDescIndex = c.u32()
	sb.NxXpDescLen = c.u32()
	sb.NxXpDataIndex = c.u32()
	sb.NxXpDataLen = c.u32()
	sb.NxSpacemanOid = types.OidT(c.u64())
	sb.NxOmapOid = types.OidT(c.u64())
	sb.NxReaperOid = types.OidT(c.u64())
	sb.NxTestType = c.u32()
	sb.NxMaxFileSystemsField = c.u32()
	for i := range sb.NxFsOid {
		sb.NxFsOid[i] = types.OidT(c.u64())
	}
	for i := range sb.NxCounters {
		sb.NxCounters[i] = c.u64()
	}
	sb.NxBlockedOutPrange.PrStartPaddr = types.Paddr(c.i64())
	sb.NxBlockedOutPrange.PrBlockCount = c.u64()
	sb.NxEvictMappingTreeOid = types.OidT(c.u64())
	sb.NxFlags = c.u64()
	sb.NxEfiJumpstart = types.Paddr(c.i64())
	copy(sb.NxFusionUuid[:], c.bytes(16))
	sb.NxKeylocker.PrStartPaddr = types.Paddr(c.i64())
	sb.NxKeylocker.PrBlockCount = c.u64()
	for i := range sb.NxEphemeralInfo {
		sb.NxEphemeralInfo[i] = c.u64()
	}
	sb.NxTestOid = types.OidT(c.u64())
	sb.NxFusionMtOid = types.OidT(c.u64())
	sb.NxFusionWbcOid = types.OidT(c.u64())
	sb.NxFusionWbc.PrStartPaddr = types.Paddr(c.i64())
	sb.NxFusionWbc.PrBlockCount = c.u64()
	sb.NxNewestMountedVersion = c.u64()
	sb.NxMkbLocker.PrStartPaddr = types.Paddr(c.i64())
	sb.NxMkbLocker.PrBlockCount = c.u64()

	return sb, nil
}
