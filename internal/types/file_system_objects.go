package types

// File-System Objects (pages 71-101)
// A file-system object is described by one or more records in a volume's
// file-system B-tree. Every record's key begins with a j_key_t whose packed
// obj_id_and_type field carries both the owning object's id and the
// record's kind.

// JKeyT is the header at the beginning of every file-system key.
// Reference: page 72
type JKeyT struct {
	// ObjIdAndType packs the object id (low 60 bits) and record kind (high 4 bits). (page 72)
	ObjIdAndType uint64
}

// Bit layout of JKeyT.ObjIdAndType (page 73).
const (
	ObjIdMask  uint64 = 0x0fffffffffffffff
	ObjTypeMask uint64 = 0xf000000000000000
	ObjTypeShift uint64 = 60
)

// ObjId returns the file-system object id encoded in the key header.
func (k JKeyT) ObjId() uint64 { return k.ObjIdAndType & ObjIdMask }

// Type returns the record kind encoded in the key header.
func (k JKeyT) Type() JObjType { return JObjType(k.ObjIdAndType >> ObjTypeShift) }

// MakeJKey packs an object id and record kind into a JKeyT.
func MakeJKey(objId uint64, kind JObjType) JKeyT {
	return JKeyT{ObjIdAndType: (objId & ObjIdMask) | (uint64(kind) << ObjTypeShift)}
}

// Reserved file-system object ids (page 73): every volume's root
// directory is inode 2, whose own parent is the fictitious id 1.
const (
	RootDirParentId uint64 = 1
	RootDirInodeId  uint64 = 2
)

// JObjType is the kind of a file-system record, stored in the high 4 bits
// of a packed key.
// Reference: page 84
type JObjType uint8

const (
	ApfsTypeAny          JObjType = 0
	ApfsTypeSnapMetadata JObjType = 1
	ApfsTypeExtent       JObjType = 2
	ApfsTypeInode        JObjType = 3
	ApfsTypeXattr        JObjType = 4
	ApfsTypeSiblingLink  JObjType = 5
	ApfsTypeDstreamId    JObjType = 6
	ApfsTypeCryptoState  JObjType = 7
	ApfsTypeFileExtent   JObjType = 8
	ApfsTypeDirRec       JObjType = 9
	ApfsTypeDirStats     JObjType = 10
	ApfsTypeSnapName     JObjType = 11
	ApfsTypeSiblingMap   JObjType = 12
	ApfsTypeFileInfo     JObjType = 13
	ApfsTypeMaxValid     JObjType = 13
	ApfsTypeMax          JObjType = 15
	ApfsTypeInvalid      JObjType = 15
)

// JInodeValT is the value half of an inode record.
// Reference: page 73-77
type JInodeValT struct {
	ParentId   uint64
	PrivateId  uint64
	CreateTime uint64
	ModTime    uint64
	ChangeTime uint64
	AccessTime uint64

	InternalFlags uint64
	// NchildrenOrNlink is a union: child count for a directory, hard-link
	// count otherwise; disambiguated by the caller via Mode().
	NchildrenOrNlink int32

	DefaultProtectionClass uint32
	WriteGenerationCounter uint32
	BsdFlags               uint32

	Owner uint32
	Group uint32
	Mode  uint16
	Pad1  uint16

	UncompressedSize uint64

	// XFields is the inode's raw extended-field blob (xf_blob_t); decode
	// it on demand with fstree.DecodeXFields rather than eagerly, since
	// most callers never need it.
	XFields []byte
}

// Inode flags (internal_flags), a selection relevant to a read-only reader.
const (
	InodeIsDir                    uint64 = 0x00000001
	InodeIsApfsPrivate            uint64 = 0x00000010
	InodeMaintainDirStats         uint64 = 0x00000020
	InodeHasUncompressedSize      uint64 = 0x00002000
	InodeIsPurgeable              uint64 = 0x00004000
	InodeIsSparse                 uint64 = 0x00040000
)

// File mode bits (a subset of S_IFMT used to tell directories from
// regular files and symlinks when NchildrenOrNlink's meaning is ambiguous).
const (
	SIfmt    uint16 = 0170000
	SIfdir   uint16 = 0040000
	SIfreg   uint16 = 0100000
	SIflnk   uint16 = 0120000
)

// IsDir reports whether the inode is a directory.
func (v *JInodeValT) IsDir() bool { return v.Mode&SIfmt == SIfdir }

// Nchildren returns the number of directory entries; valid only if IsDir().
func (v *JInodeValT) Nchildren() int32 { return v.NchildrenOrNlink }

// Nlink returns the hard-link count; valid only if !IsDir().
func (v *JInodeValT) Nlink() int32 { return v.NchildrenOrNlink }

// JDrecHashedKeyT is the key half of a directory-entry record, carrying a
// precomputed name hash alongside the name.
// Reference: page 78-79
type JDrecHashedKeyT struct {
	Hdr JKeyT
	// NameLenAndHash packs the NUL-inclusive name length (low 10 bits) and
	// a name hash (high 22 bits).
	NameLenAndHash uint32
	Name           []byte
}

// Directory-entry name/hash packing (page 79).
const (
	JDrecLenMask   uint32 = 0x000003ff
	JDrecHashMask  uint32 = 0xfffff400
	JDrecHashShift uint32 = 10
)

// NameLen returns the NUL-inclusive length of the entry's name.
func (k JDrecHashedKeyT) NameLen() uint32 { return k.NameLenAndHash & JDrecLenMask }

// Hash returns the precomputed name hash.
func (k JDrecHashedKeyT) Hash() uint32 {
	return (k.NameLenAndHash & JDrecHashMask) >> JDrecHashShift
}

// JDrecValT is the value half of a directory-entry record.
// Reference: page 79-80
type JDrecValT struct {
	FileId    uint64
	DateAdded uint64
	// Flags' low bits carry the DrecTypeMask file type (DT_DIR, DT_REG, ...).
	Flags uint16
	// XFields is the directory entry's raw extended-field blob (xf_blob_t);
	// decode it on demand with fstree.DecodeXFields.
	XFields []byte
}

// DrecTypeMask isolates the directory entry's file type from Flags.
const DrecTypeMask uint16 = 0x000f

// Directory entry file types (matching POSIX dirent d_type values).
const (
	DtUnknown uint16 = 0
	DtFifo    uint16 = 1
	DtChr     uint16 = 2
	DtDir     uint16 = 4
	DtBlk     uint16 = 6
	DtReg     uint16 = 8
	DtLnk     uint16 = 10
	DtSock    uint16 = 12
	DtWht     uint16 = 14
)

// JXattrKeyT is the key half of an extended-attribute record.
// Reference: page 82
type JXattrKeyT struct {
	Hdr     JKeyT
	NameLen uint16
	Name    []byte
}

// JXattrValT is the value half of an extended-attribute record.
// Reference: page 82-83
type JXattrValT struct {
	Flags    uint16
	XdataLen uint16
	// Xdata holds either the embedded attribute bytes (XattrDataEmbedded)
	// or, if XattrDataStream is set, an encoded uint64 dstream record id.
	Xdata []byte
}

// Extended attribute flags (page 83-84).
const (
	XattrDataStream       uint16 = 0x00000001
	XattrDataEmbedded     uint16 = 0x00000002
	XattrFileSystemOwned  uint16 = 0x00000004
	XattrReserved8        uint16 = 0x00000008
)

// XField is one decoded entry of an inode or directory-entry value's
// extended-field blob (xf_blob_t / x_field_t).
// Reference: page 89-91
type XField struct {
	Type  uint8
	Flags uint8
	Data  []byte
}

// Extended-field types relevant to a read-only reader (page 90-91).
const (
	// InoExtTypeDstream marks an inode's embedded default data-stream
	// record (a JDstreamT), present when the file's size/allocation info
	// is stored on the inode rather than in a separate dstream-id record.
	InoExtTypeDstream uint8 = 8
	// DrecExtTypeSiblingId marks a directory entry's hard-link sibling id.
	DrecExtTypeSiblingId uint8 = 1
)

// JPhysExtValT is the value half of a physical extent record, as stored in
// a volume's extent-reference tree and decoded by package extentref.
// Reference: page 102
type JPhysExtValT struct {
	LenAndKind  uint64
	OwningObjId uint64
	Refcnt      int32
}

const (
	PextLenMask   uint64 = 0x0fffffffffffffff
	PextKindMask  uint64 = 0xf000000000000000
	PextKindShift uint64 = 60
)
