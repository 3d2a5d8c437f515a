package types

import "math"

// Object Maps (pages 44-50)
// An object map translates a (virtual Oid, Xid) pair to the physical
// address where that object's current version is stored, via a B-tree
// keyed by OmapKeyT.

// OmapPhysT is an object map.
// Reference: page 44
type OmapPhysT struct {
	OmO ObjPhysT

	OmFlags            uint32
	OmSnapCount        uint32
	OmTreeType         uint32
	OmSnapshotTreeType uint32

	// OmTreeOid is the physical Oid of the B-tree holding the object mappings. (page 45)
	OmTreeOid OidT
	OmSnapshotTreeOid OidT

	OmMostRecentSnap   XidT
	OmPendingRevertMin XidT
	OmPendingRevertMax XidT
}

// OmapPhysSize is the encoded size of OmapPhysT.
const OmapPhysSize = 32 + 4*4 + 8*2 + 8*3

// OmapKeyT is a key used to access an entry in an object map.
// Reference: page 46
type OmapKeyT struct {
	OkOid OidT
	OkXid XidT
}

// OmapValT is the value half of an object map entry.
// Reference: page 46
type OmapValT struct {
	OvFlags uint32
	// OvSize is the object's size in bytes, a multiple of the block size. (page 47)
	OvSize uint32
	// OvPaddr is the physical address of the object. (page 47)
	OvPaddr Paddr
}

// Object map value flags (page 48).
const (
	OmapValDeleted          uint32 = 0x00000001
	OmapValSaved            uint32 = 0x00000002
	OmapValEncrypted        uint32 = 0x00000004
	OmapValNoheader         uint32 = 0x00000008
	OmapValCryptoGeneration uint32 = 0x00000010
)

// Object map flags (pages 49-50).
const (
	OmapManuallyManaged uint32 = 0x00000001
	OmapEncrypting       uint32 = 0x00000002
	OmapDecrypting       uint32 = 0x00000004
	OmapKeyrolling       uint32 = 0x00000008
	OmapCryptoGeneration uint32 = 0x00000010
	OmapValidFlags       uint32 = 0x0000001f
)

// OmapMaxSnapCount is the maximum number of snapshots an object map can track.
// Reference: page 50
const OmapMaxSnapCount uint32 = math.MaxUint32
