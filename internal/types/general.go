package types

import "github.com/google/uuid"

// Prange is a range of physical addresses.
// Reference: page 9
type Prange struct {
	PrStartPaddr Paddr
	PrBlockCount uint64
}

// UUID is the universally unique identifier type used throughout the
// on-disk format. It is an alias of google/uuid's array-backed type so
// callers get String()/MarshalText() for free instead of a bare [16]byte.
// Reference: page 9
type UUID = uuid.UUID

// NlocT is a location within a B-tree node: an offset and a length, each
// counted from a point that depends on the field that holds the NlocT.
// Reference: page 128
type NlocT struct {
	Off uint16
	Len uint16
}

// BtoffInvalid marks the end of a free-space linked list.
// Reference: page 128
const BtoffInvalid uint16 = 0xffff

// KvlocT is the location, within a B-tree node, of a variable-size key and value.
// Reference: page 128
type KvlocT struct {
	K NlocT
	V NlocT
}

// KvoffT is the location, within a B-tree node, of a fixed-size key and value.
// Reference: page 129
type KvoffT struct {
	K uint16
	V uint16
}
