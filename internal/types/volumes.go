package types

// Volumes (pages 51-70)
// A volume superblock describes one file system inside a container: its own
// object map, the virtual Oid of its root file-system tree, and whether it
// is encrypted. Fields not needed to resolve file-system objects (clone
// epoch bookkeeping, integrity-metadata/sealed-volume oids, spillover
// cleanup) are intentionally omitted — the role and modified-by history
// are kept since they're cheap and useful to a caller inspecting a
// volume's provenance.

// ApfsMagicValue is the value of the apfs_magic field ("APSB" read little-endian).
// Reference: page 60
const ApfsMagicValue uint32 = 'A' | 'P'<<8 | 'S'<<16 | 'B'<<24

const (
	ApfsMaxHist        = 8
	ApfsVolnameLen     = 256
	ApfsModifiedNamelen = 32
)

// ApfsModifiedByT records which program last modified a volume, and when.
// Reference: page 60
type ApfsModifiedByT struct {
	Id        [ApfsModifiedNamelen]byte
	Timestamp uint64
	LastXid   XidT
}

// ApfsSuperblockT is a volume superblock.
// Reference: page 51
type ApfsSuperblockT struct {
	ApfsO ObjPhysT

	// ApfsMagic must equal ApfsMagicValue. (page 52)
	ApfsMagic   uint32
	ApfsFsIndex uint32

	ApfsFeatures                   uint64
	ApfsReadonlyCompatibleFeatures uint64
	ApfsIncompatibleFeatures       uint64

	ApfsUnmountTime uint64

	ApfsFsReserveBlockCount uint64
	ApfsFsQuotaBlockCount   uint64
	ApfsFsAllocCount        uint64

	// ApfsOmapOid is the physical Oid of the volume's own object map. (page 55)
	ApfsOmapOid OidT
	// ApfsRootTreeOid is the virtual Oid of the root file-system B-tree,
	// resolved through ApfsOmapOid. (page 55)
	ApfsRootTreeOid OidT
	ApfsExtentrefTreeOid OidT
	ApfsSnapMetaTreeOid  OidT

	ApfsRevertToXid       XidT
	ApfsRevertToSblockOid OidT

	ApfsNextObjId uint64

	ApfsNumFiles          uint64
	ApfsNumDirectories    uint64
	ApfsNumSymlinks       uint64
	ApfsNumOtherFsobjects uint64
	ApfsNumSnapshots      uint64

	ApfsTotalBlocksAlloced uint64
	ApfsTotalBlocksFreed   uint64

	// ApfsVolUuid is the volume's UUID. (page 57)
	ApfsVolUuid UUID
	ApfsLastModTime uint64

	// ApfsFsFlags carries the encryption bits (ApfsFsUnencrypted, ApfsFsOnekey, ...). (page 57)
	ApfsFsFlags uint64

	ApfsFormattedBy ApfsModifiedByT
	ApfsModifiedBy  [ApfsMaxHist]ApfsModifiedByT

	// ApfsVolname is a NUL-terminated UTF-8 volume name. (page 57)
	ApfsVolname [ApfsVolnameLen]byte

	ApfsNextDocId uint32
	ApfsRole      uint16
}

// Volume flags (pages 61-63).
const (
	ApfsFsUnencrypted         uint64 = 0x00000001
	ApfsFsOnekey              uint64 = 0x00000008
	ApfsFsSpilledover         uint64 = 0x00000010
	ApfsFsRunSpilloverCleaner uint64 = 0x00000020
)

// Encrypted reports whether the volume's file-system objects are sealed
// behind a wrapped volume encryption key. Per spec, a reader that observes
// this must report the fact and decline further descent rather than
// attempt to unwrap the key.
func (v *ApfsSuperblockT) Encrypted() bool {
	return v.ApfsFsFlags&ApfsFsUnencrypted == 0
}

// Name returns the volume name as a Go string, trimmed at the first NUL.
func (v *ApfsSuperblockT) Name() string {
	n := 0
	for n < len(v.ApfsVolname) && v.ApfsVolname[n] != 0 {
		n++
	}
	return string(v.ApfsVolname[:n])
}
