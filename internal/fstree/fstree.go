// Package fstree implements the key/value schema for a volume's
// file-system B-tree: inodes, directory entries, extended attributes and
// file extents, all addressed by one packed key format.
package fstree

import (
	"bytes"
	"encoding/binary"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/btree"
	"github.com/penguin359/apfsreader/internal/types"
)

// Key is a decoded file-system B-tree key: the object id and record kind
// common to every record, plus whatever sub-key that kind carries (a
// logical offset for a file extent, a name for a directory entry).
type Key struct {
	ObjId uint64
	Kind  types.JObjType

	// Offset is valid when Kind == ApfsTypeFileExtent.
	Offset uint64
	// Name is valid when Kind == ApfsTypeDirRec or ApfsTypeXattr.
	Name string
	// NameHash is valid when Kind == ApfsTypeDirRec.
	NameHash uint32
}

// Value is a decoded file-system B-tree value. Exactly one field is
// populated, selected by the owning Key's Kind.
type Value struct {
	Inode   *types.JInodeValT
	Dirent  *types.JDrecValT
	Xattr   *types.JXattrValT
	Extent  *types.JFileExtentValT
	Dstream *types.JDstreamIdValT
}

// Schema implements btree.Schema[Key, Value] for a volume's root
// file-system tree.
type Schema struct{}

func (Schema) DecodeKey(b []byte) (Key, error) {
	if len(b) < 8 {
		return Key{}, apfserr.New(apfserr.Truncated, "file-system key shorter than its header")
	}
	hdr := types.JKeyT{ObjIdAndType: binary.LittleEndian.Uint64(b[0:8])}
	key := Key{ObjId: hdr.ObjId(), Kind: hdr.Type()}
	rest := b[8:]

	switch key.Kind {
	case types.ApfsTypeFileExtent:
		if len(rest) < 8 {
			return Key{}, apfserr.New(apfserr.Truncated, "file extent key missing logical address")
		}
		key.Offset = binary.LittleEndian.Uint64(rest[0:8])

	case types.ApfsTypeDirRec:
		if len(rest) < 4 {
			return Key{}, apfserr.New(apfserr.Truncated, "directory entry key missing name length/hash")
		}
		nameLenAndHash := binary.LittleEndian.Uint32(rest[0:4])
		k := types.JDrecHashedKeyT{NameLenAndHash: nameLenAndHash}
		nameLen := int(k.NameLen())
		if nameLen == 0 || len(rest) < 4+nameLen {
			return Key{}, apfserr.New(apfserr.Truncated, "directory entry key missing name bytes")
		}
		key.Name = trimNul(rest[4 : 4+nameLen])
		key.NameHash = k.Hash()

	case types.ApfsTypeXattr:
		if len(rest) < 2 {
			return Key{}, apfserr.New(apfserr.Truncated, "xattr key missing name length")
		}
		nameLen := int(binary.LittleEndian.Uint16(rest[0:2]))
		if len(rest) < 2+nameLen {
			return Key{}, apfserr.New(apfserr.Truncated, "xattr key missing name bytes")
		}
		key.Name = trimNul(rest[2 : 2+nameLen])
	}

	return key, nil
}

func trimNul(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// DecodeValue dispatches on key.Kind to the record layout that kind
// stores, since the file-system tree packs several different value shapes
// (inode, directory entry, xattr, file extent, dstream id) into the same
// B-tree.
func (Schema) DecodeValue(key Key, b []byte) (Value, error) {
	switch key.Kind {
	case types.ApfsTypeInode:
		if len(b) < 92 {
			return Value{}, apfserr.New(apfserr.Truncated, "inode value shorter than its fixed fields")
		}
		return Value{Inode: decodeInode(b)}, nil
	case types.ApfsTypeDirRec:
		if len(b) < 18 {
			return Value{}, apfserr.New(apfserr.Truncated, "directory entry value shorter than its fixed fields")
		}
		return Value{Dirent: decodeDirent(b)}, nil
	case types.ApfsTypeXattr:
		if len(b) < 4 {
			return Value{}, apfserr.New(apfserr.Truncated, "xattr value shorter than its fixed fields")
		}
		xdataLen := binary.LittleEndian.Uint16(b[2:4])
		if len(b) < 4+int(xdataLen) {
			return Value{}, apfserr.New(apfserr.Truncated, "xattr value missing data bytes")
		}
		return Value{Xattr: &types.JXattrValT{
			Flags:    binary.LittleEndian.Uint16(b[0:2]),
			XdataLen: xdataLen,
			Xdata:    b[4 : 4+xdataLen],
		}}, nil
	case types.ApfsTypeFileExtent:
		return Value{Extent: decodeExtent(b)}, nil
	case types.ApfsTypeDstreamId:
		if len(b) < 4 {
			return Value{}, apfserr.New(apfserr.Truncated, "dstream id value shorter than 4 bytes")
		}
		return Value{Dstream: &types.JDstreamIdValT{Refcnt: binary.LittleEndian.Uint32(b)}}, nil
	default:
		return Value{}, apfserr.New(apfserr.Unsupported, "unsupported file-system record kind")
	}
}

func decodeInode(b []byte) *types.JInodeValT {
	v := &types.JInodeValT{
		ParentId:               binary.LittleEndian.Uint64(b[0:8]),
		PrivateId:               binary.LittleEndian.Uint64(b[8:16]),
		CreateTime:              binary.LittleEndian.Uint64(b[16:24]),
		ModTime:                 binary.LittleEndian.Uint64(b[24:32]),
		ChangeTime:              binary.LittleEndian.Uint64(b[32:40]),
		AccessTime:              binary.LittleEndian.Uint64(b[40:48]),
		InternalFlags:           binary.LittleEndian.Uint64(b[48:56]),
		NchildrenOrNlink:        int32(binary.LittleEndian.Uint32(b[56:60])),
		DefaultProtectionClass:  binary.LittleEndian.Uint32(b[60:64]),
		WriteGenerationCounter:  binary.LittleEndian.Uint32(b[64:68]),
		BsdFlags:                binary.LittleEndian.Uint32(b[68:72]),
		Owner:                   binary.LittleEndian.Uint32(b[72:76]),
		Group:                   binary.LittleEndian.Uint32(b[76:80]),
		Mode:                    binary.LittleEndian.Uint16(b[80:82]),
		Pad1:                    binary.LittleEndian.Uint16(b[82:84]),
		UncompressedSize:        binary.LittleEndian.Uint64(b[84:92]),
	}
	if len(b) > 92 {
		v.XFields = b[92:]
	}
	return v
}

func decodeDirent(b []byte) *types.JDrecValT {
	v := &types.JDrecValT{
		FileId:    binary.LittleEndian.Uint64(b[0:8]),
		DateAdded: binary.LittleEndian.Uint64(b[8:16]),
		Flags:     binary.LittleEndian.Uint16(b[16:18]),
	}
	if len(b) > 18 {
		v.XFields = b[18:]
	}
	return v
}

func decodeExtent(b []byte) *types.JFileExtentValT {
	if len(b) < 24 {
		return &types.JFileExtentValT{}
	}
	return &types.JFileExtentValT{
		LenAndFlags:  binary.LittleEndian.Uint64(b[0:8]),
		PhysBlockNum: binary.LittleEndian.Uint64(b[8:16]),
		CryptoId:     binary.LittleEndian.Uint64(b[16:24]),
	}
}

// Compare orders keys first by ObjId, then by record Kind, then by the
// kind-specific sub-key (logical offset for a file extent, name for a
// directory entry or xattr) — matching how the on-disk tree sorts keys so
// that records for one object are contiguous and records within an object
// are ordered the way callers expect to iterate them.
func (Schema) Compare(a, b Key) int {
	if a.ObjId != b.ObjId {
		if a.ObjId < b.ObjId {
			return -1
		}
		return 1
	}
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case types.ApfsTypeFileExtent:
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		default:
			return 0
		}
	case types.ApfsTypeDirRec, types.ApfsTypeXattr:
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Matches requires an exact match: a file-system tree has no equivalent of
// the object map's largest-lower-bound rule, so a descent hit only counts
// if it is the literal key being searched for.
func (Schema) Matches(candidate, search Key) bool {
	return candidate.ObjId == search.ObjId &&
		candidate.Kind == search.Kind &&
		candidate.Offset == search.Offset &&
		candidate.Name == search.Name
}

var _ btree.Schema[Key, Value] = Schema{}
