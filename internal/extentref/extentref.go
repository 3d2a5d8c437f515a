// Package extentref implements the key/value schema for a volume's
// physical extent-reference tree: the B-tree, rooted at a volume
// superblock's ApfsExtentrefTreeOid, that records which physical blocks
// are claimed by which file-system object (so a reader can tell a shared
// extent from an exclusively-owned one without walking every file).
package extentref

import (
	"encoding/binary"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/btree"
	"github.com/penguin359/apfsreader/internal/types"
)

// Key is a decoded physical extent key: the physical block address the
// extent starts at, packed the same way a file-system key packs an object
// id (j_phys_ext_key_t reuses j_key_t's obj_id_and_type field for it).
type Key struct {
	StartPaddr uint64
}

// Schema implements btree.Schema[Key, types.JPhysExtValT] for a volume's
// extent-reference tree.
type Schema struct{}

func (Schema) DecodeKey(b []byte) (Key, error) {
	if len(b) < 8 {
		return Key{}, apfserr.New(apfserr.Truncated, "physical extent key shorter than its header")
	}
	hdr := types.JKeyT{ObjIdAndType: binary.LittleEndian.Uint64(b[0:8])}
	return Key{StartPaddr: hdr.ObjId()}, nil
}

func (Schema) DecodeValue(_ Key, b []byte) (types.JPhysExtValT, error) {
	if len(b) < 20 {
		return types.JPhysExtValT{}, apfserr.New(apfserr.Truncated, "physical extent value shorter than its fixed fields")
	}
	return types.JPhysExtValT{
		LenAndKind:  binary.LittleEndian.Uint64(b[0:8]),
		OwningObjId: binary.LittleEndian.Uint64(b[8:16]),
		Refcnt:      int32(binary.LittleEndian.Uint32(b[16:20])),
	}, nil
}

// Compare orders keys by starting physical block address, matching how
// the on-disk tree sorts them.
func (Schema) Compare(a, b Key) int {
	switch {
	case a.StartPaddr < b.StartPaddr:
		return -1
	case a.StartPaddr > b.StartPaddr:
		return 1
	default:
		return 0
	}
}

// Matches requires an exact key match: there is exactly one record per
// extent start address.
func (Schema) Matches(candidate, search Key) bool { return candidate.StartPaddr == search.StartPaddr }

// Len returns the extent's length in blocks, masking off the packed kind bits.
func Len(v types.JPhysExtValT) uint64 { return v.LenAndKind & types.PextLenMask }

// Kind returns the extent's kind, unpacked from the high bits of LenAndKind.
func Kind(v types.JPhysExtValT) uint64 { return (v.LenAndKind & types.PextKindMask) >> types.PextKindShift }

var _ btree.Schema[Key, types.JPhysExtValT] = Schema{}
