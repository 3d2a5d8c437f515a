package types

// Container (pages 26-43)
// The container superblock is the entry point into an APFS container; it is
// always stored at physical block zero of the checkpoint it belongs to, and
// the container's latest valid checkpoint is found by scanning the
// checkpoint-descriptor area for the superblock with the highest Xid whose
// checksum validates.

// NxMaxFileSystems is the maximum number of volumes a container can hold.
// Reference: page 35
const NxMaxFileSystems = 100

// NxEphInfoCount is the length of the nx_ephemeral_info array.
// Reference: page 35
const NxEphInfoCount = 4

// NxNumCounters is the length of the nx_counters array.
const NxNumCounters = 32

// NxSuperblockT is a container superblock.
// Reference: page 27
type NxSuperblockT struct {
	NxO ObjPhysT

	// NxMagic must equal NxMagicValue ("NXSB"). (page 27)
	NxMagic uint32
	// NxBlockSize is the logical block size used by the container. (page 29)
	NxBlockSize uint32
	// NxBlockCount is the total number of logical blocks in the container. (page 29)
	NxBlockCount uint64

	NxFeatures                   uint64
	NxReadonlyCompatibleFeatures uint64
	NxIncompatibleFeatures       uint64

	NxUuid UUID

	// NxNextOid is the next Oid to be assigned to a new ephemeral or virtual object. (page 30)
	NxNextOid OidT
	// NxNextXid is the next transaction identifier to be used. (page 30)
	NxNextXid XidT

	NxXpDescBlocks uint32
	NxXpDataBlocks uint32
	NxXpDescBase   Paddr
	NxXpDataBase   Paddr
	NxXpDescNext   uint32
	NxXpDataNext   uint32
	NxXpDescIndex  uint32
	NxXpDescLen    uint32
	NxXpDataIndex  uint32
	NxXpDataLen    uint32

	// NxSpacemanOid is the ephemeral Oid of the space manager. (page 32)
	NxSpacemanOid OidT
	// NxOmapOid is the physical Oid of the container's object map. (page 32)
	NxOmapOid OidT
	// NxReaperOid is the ephemeral Oid of the reaper. (page 32)
	NxReaperOid OidT

	NxTestType uint32

	// NxMaxFileSystems bounds the number of populated entries in NxFsOid. (page 32)
	NxMaxFileSystemsField uint32
	// NxFsOid holds the virtual Oid of each volume's superblock. (page 32)
	NxFsOid [NxMaxFileSystems]OidT

	NxCounters [NxNumCounters]uint64

	NxBlockedOutPrange    Prange
	NxEvictMappingTreeOid OidT
	NxFlags               uint64
	NxEfiJumpstart        Paddr
	NxFusionUuid          UUID
	NxKeylocker           Prange
	NxEphemeralInfo       [NxEphInfoCount]uint64

	NxTestOid      OidT
	NxFusionMtOid  OidT
	NxFusionWbcOid OidT
	NxFusionWbc    Prange

	NxNewestMountedVersion uint64
	NxMkbLocker            Prange
}

// NxMagicValue is the value of the nx_magic field ("NXSB" read little-endian).
// Reference: page 35
const NxMagicValue uint32 = 'N' | 'X'<<8 | 'S'<<16 | 'B'<<24

// Container flags (pages 36-37).
const (
	NxReserved1 uint64 = 0x00000001
	NxReserved2 uint64 = 0x00000002
	NxCryptoSw  uint64 = 0x00000004
)

// Container feature flags relevant to a read-only reader (page 37-41).
const (
	NxFeatureDefrag      uint64 = 0x0000000000000001
	NxFeatureLcfd        uint64 = 0x0000000000000002
	NxIncompatVersion1   uint64 = 0x0000000000000001
	NxIncompatVersion2   uint64 = 0x0000000000000002
	NxIncompatFusion     uint64 = 0x0000000000000100
)

// Checkpoint descriptor/data area block-count high bit (page 30-31): the
// highest bit of NxXpDescBlocks/NxXpDataBlocks flags that the area is
// addressed indirectly through a B-tree rather than contiguous blocks.
const NxXpDescAreaIsTreeFlag uint32 = 0x80000000
const NxXpBlockCountMask uint32 = 0x7fffffff

// CheckpointMapPhysT describes the ephemeral objects belonging to one
// checkpoint, stored in the checkpoint-data area alongside the superblock.
// Reference: page 127 (checkpoint maps)
type CheckpointMapPhysT struct {
	CpmO     ObjPhysT
	CpmFlags uint32
	CpmCount uint32
	CpmMap   []CheckpointMappingT
}

// CpmtFlagLast marks the last checkpoint-map block of a checkpoint.
const CpmtFlagLast uint32 = 0x00000001

// CheckpointMappingT maps an ephemeral Oid to the physical block storing it
// for the lifetime of one checkpoint.
type CheckpointMappingT struct {
	CpmType    uint32
	CpmSubtype uint32
	CpmSize    uint32
	CpmPad     uint32
	CpmFsOid   OidT
	CpmOid     OidT
	CpmPaddr   Paddr
}

// CheckpointMappingSize is the encoded size of one CheckpointMappingT.
const CheckpointMappingSize = 40
