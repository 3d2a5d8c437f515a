package types

// Data Streams (pages 102-108)
// A file's content is described by a dstream: a byte stream split into one
// or more file-extent records, each mapping a logical offset to a run of
// physical blocks. A file may also carry its JDstreamT directly in the
// inode's default dstream extended field instead of a separate record.

// JFileExtentKeyT is the key half of a file-extent record: the owning
// object id (from JKeyT) plus the logical offset where this extent begins.
// Reference: page 103
type JFileExtentKeyT struct {
	Hdr           JKeyT
	LogicalAddr   uint64
}

// JFileExtentValT is the value half of a file-extent record.
// Reference: page 103-104
type JFileExtentValT struct {
	// LenAndFlags packs the extent's length in bytes (low 56 bits) and flags
	// (high 8 bits).
	LenAndFlags uint64
	// PhysBlockNum is the physical block number where the extent's data
	// begins, or zero for a hole (a sparse region read as zeroes).
	PhysBlockNum uint64
	CryptoId     uint64
}

// File-extent length/flag packing (page 104).
const (
	JFileExtentLenMask  uint64 = 0x00ffffffffffffff
	JFileExtentFlagMask uint64 = 0xff00000000000000
	JFileExtentFlagShift uint64 = 56
)

// Len returns the extent's length in bytes.
func (v JFileExtentValT) Len() uint64 { return v.LenAndFlags & JFileExtentLenMask }

// IsHole reports whether this extent is unallocated (reads as zeroes).
func (v JFileExtentValT) IsHole() bool { return v.PhysBlockNum == 0 }

// JDstreamIdValT is the value half of a dstream-id record; it is a
// reference count of how many times the dstream is in use.
// Reference: page 105
type JDstreamIdValT struct {
	Refcnt uint32
}

// JDstreamT describes a data stream's size and allocation.
// Reference: page 105-106
type JDstreamT struct {
	// Size is the dstream's logical length in bytes. (page 106)
	Size uint64
	// AllocedSize is the total space allocated for the dstream's extents. (page 106)
	AllocedSize     uint64
	DefaultCryptoId uint64
	TotalBytesWritten uint64
	TotalBytesRead    uint64
}

// JDstreamSize is the encoded size of JDstreamT.
const JDstreamSize = 8 * 5

// JXattrDstreamT pairs a dstream id with its JDstreamT, the form in which a
// dstream is embedded inside a non-resident xattr's value.
// Reference: page 108
type JXattrDstreamT struct {
	XattrObjId uint64
	Dstream    JDstreamT
}

// JPhysExtKeyT is the key half of a container-level physical-extent record
// in the extent-reference tree.
// Reference: page 101-102
type JPhysExtKeyT struct {
	Hdr JKeyT
}
