// Package types implements the on-disk data structures of the Apple File
// System, as described in the Apple File System Reference.
package types

// Objects (pages 10-21)
// Depending on how they're stored, objects have some differences, the most
// important of which is the way an object identifier is resolved to an
// on-disk location.

// OidT is an object identifier.
// For a physical object, its identifier is the logical block address on disk
// where the object is stored. For an ephemeral or virtual object, it is a
// number assigned at creation time.
// Reference: page 12
type OidT uint64

// XidT is a transaction identifier.
// Transactions are uniquely identified by a monotonically increasing number.
// Zero isn't a valid transaction identifier.
// Reference: page 12
type XidT uint64

// Paddr is a physical address of an on-disk block. Negative numbers aren't
// valid addresses; the type is signed to match the on-disk definition.
// Reference: page 9
type Paddr int64

// Valid reports whether the address is non-negative.
func (p Paddr) Valid() bool {
	return p >= 0
}

// MaxCksumSize is the number of bytes used for an object checksum.
// Reference: page 11
const MaxCksumSize = 8

// ObjPhysT is the header at the beginning of every object stored in a block.
// Reference: page 10
type ObjPhysT struct {
	// The Fletcher-64 checksum of the object. (page 10)
	OChecksum [MaxCksumSize]byte
	// The object's identifier. (page 11)
	OOid OidT
	// The identifier of the most recent transaction that modified this object. (page 11)
	OXid XidT
	// The object's type and flags; low 16 bits type, high 16 bits flags. (page 11)
	OType uint32
	// The object's subtype. (page 11)
	OSubtype uint32
}

// ObjPhysSize is the encoded size of ObjPhysT.
const ObjPhysSize = 32

// Object identifier constants (pages 12-13).
const (
	XidInvalid      XidT = 0
	OidNxSuperblock OidT = 1
	OidInvalid      OidT = 0
	// OidReservedCount is the number of object identifiers reserved for
	// objects with a fixed identifier; values at or above this threshold
	// are assigned per transaction.
	OidReservedCount uint64 = 1024
)

// Object type masks (pages 13-14).
const (
	ObjectTypeMask             uint32 = 0x0000ffff
	ObjectTypeFlagsMask        uint32 = 0xffff0000
	ObjStorageTypeMask         uint32 = 0xc0000000
	ObjectTypeFlagsDefinedMask uint32 = 0xf8000000
)

// Storage-class flags, read from the high bits of the type-and-flags word
// after masking with ObjStorageTypeMask.
// Reference: page 14
const (
	ObjVirtual      uint32 = 0x00000000
	ObjEphemeral    uint32 = 0x80000000
	ObjPhysical     uint32 = 0x40000000
	ObjNoheader     uint32 = 0x20000000
	ObjEncrypted    uint32 = 0x10000000
	ObjNonpersisent uint32 = 0x08000000
)

// StorageClass identifies how an Oid is resolved to a physical location.
type StorageClass int

const (
	StoragePhysical StorageClass = iota
	StorageVirtual
	StorageEphemeral
)

func (s StorageClass) String() string {
	switch s {
	case StoragePhysical:
		return "physical"
	case StorageVirtual:
		return "virtual"
	case StorageEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// StorageClassOf extracts the storage class encoded in an object's
// type-and-flags word.
func StorageClassOf(typeAndFlags uint32) StorageClass {
	switch typeAndFlags & ObjStorageTypeMask {
	case ObjEphemeral:
		return StorageEphemeral
	case ObjPhysical:
		return StoragePhysical
	default:
		return StorageVirtual
	}
}

// Kind returns the low 16 bits of an object's type-and-flags word.
func Kind(typeAndFlags uint32) uint32 {
	return typeAndFlags & ObjectTypeMask
}

// Object types (pages 14-19). Only the kinds this reader decodes or passes
// through as opaque structural records are named.
const (
	ObjectTypeNxSuperblock      uint32 = 0x00000001
	ObjectTypeBtree             uint32 = 0x00000002
	ObjectTypeBtreeNode         uint32 = 0x00000003
	ObjectTypeSpaceman          uint32 = 0x00000005
	ObjectTypeSpacemanCab       uint32 = 0x00000006
	ObjectTypeSpacemanCib       uint32 = 0x00000007
	ObjectTypeSpacemanBitmap    uint32 = 0x00000008
	ObjectTypeSpacemanFreeQueue uint32 = 0x00000009
	ObjectTypeExtentListTree    uint32 = 0x0000000a
	ObjectTypeOmap              uint32 = 0x0000000b
	ObjectTypeCheckpointMap     uint32 = 0x0000000c
	ObjectTypeFs                uint32 = 0x0000000d
	ObjectTypeFstree            uint32 = 0x0000000e
	ObjectTypeBlockreftree      uint32 = 0x0000000f
	ObjectTypeSnapmetatree      uint32 = 0x00000010
	ObjectTypeNxReaper          uint32 = 0x00000011
	ObjectTypeNxReapList        uint32 = 0x00000012
	ObjectTypeOmapSnapshot      uint32 = 0x00000013
	ObjectTypeEfiJumpstart      uint32 = 0x00000014
)
