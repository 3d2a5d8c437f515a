// Package btree implements the generic copy-on-write B-tree engine shared
// by every B-tree on disk in an APFS container: the object map and each
// volume's file-system tree are both instances of the same node format,
// differing only in how their keys compare and match.
package btree

import (
	"encoding/binary"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/types"
)

// node is a decoded B-tree node, with its table of contents already
// resolved into a slice of (key bytes, value bytes) pairs in storage order.
type node struct {
	flags uint16
	level uint16
	nkeys uint32
	oid   types.OidT

	entries []entry
}

type entry struct {
	key []byte
	val []byte
}

func (n *node) isRoot() bool  { return n.flags&types.BtnodeRoot != 0 }
func (n *node) isLeaf() bool  { return n.flags&types.BtnodeLeaf != 0 }
func (n *node) fixedKV() bool { return n.flags&types.BtnodeFixedKvSize != 0 }

// decodeNode parses a raw object's body into a node. info carries the
// tree-wide key/value sizes recorded in the root's footer; a caller
// decoding a non-root node passes the info it read from the tree's root.
func decodeNode(body []byte, info types.BtreeInfoFixedT) (*node, error) {
	if len(body) < types.BtreeNodeFixedHeaderSize {
		return nil, apfserr.New(apfserr.Truncated, "B-tree node shorter than its fixed header")
	}

	oid := types.OidT(binary.LittleEndian.Uint64(body[8:16]))
	flags := binary.LittleEndian.Uint16(body[32:34])
	level := binary.LittleEndian.Uint16(body[34:36])
	nkeys := binary.LittleEndian.Uint32(body[36:40])

	tableOff := binary.LittleEndian.Uint16(body[40:42])
	tableLen := binary.LittleEndian.Uint16(body[42:44])

	// btnData begins right after the node's 56-byte fixed header (the
	// 32-byte object header plus the node's own fields).
	btnData := body[types.BtreeNodeFixedHeaderSize:]

	if flags&types.BtnodeRoot != 0 {
		if len(btnData) < types.BtreeInfoSize {
			return nil, apfserr.New(apfserr.Truncated, "root node shorter than its footer")
		}
		btnData = btnData[:len(btnData)-types.BtreeInfoSize]
	}

	if flags&types.BtnodeHashed != 0 {
		return nil, apfserr.New(apfserr.Unsupported, "hashed B-trees are not supported")
	}

	n := &node{flags: flags, level: level, nkeys: nkeys, oid: oid}

	entries, err := decodeToc(btnData, int(tableOff), int(tableLen), int(nkeys), flags&types.BtnodeFixedKvSize != 0, level == 0, info)
	if err != nil {
		return nil, err
	}
	n.entries = entries
	return n, nil
}

// decodeToc walks a node's table of contents and slices out each entry's
// key and value bytes. Key offsets are counted from the start of the key
// area, which begins immediately after the TOC; value offsets are counted
// backward from the end of the node's data area.
func decodeToc(data []byte, tocOff, tocLen, nkeys int, fixedKV, leaf bool, info types.BtreeInfoFixedT) ([]entry, error) {
	keyAreaStart := tocOff + tocLen
	valAreaEnd := len(data)

	entries := make([]entry, 0, nkeys)

	const kvoffSize = 4 // KvoffT: two uint16
	const kvlocSize = 8 // KvlocT: two NlocT

	for i := 0; i < nkeys; i++ {
		var keyOff, keyLen, valOff, valLen int

		if fixedKV {
			recOff := tocOff + i*kvoffSize
			if recOff+kvoffSize > len(data) {
				return nil, apfserr.New(apfserr.Truncated, "B-tree TOC (fixed) runs past node data")
			}
			keyOff = int(binary.LittleEndian.Uint16(data[recOff : recOff+2]))
			valOff = int(binary.LittleEndian.Uint16(data[recOff+2 : recOff+4]))

			keyLen = int(info.BtKeySize)
			if !leaf {
				// Nonleaf values are always a bare child Oid, regardless
				// of the tree's leaf value size.
				valLen = 8
			} else {
				valLen = int(info.BtValSize)
			}
		} else {
			recOff := tocOff + i*kvlocSize
			if recOff+kvlocSize > len(data) {
				return nil, apfserr.New(apfserr.Truncated, "B-tree TOC (variable) runs past node data")
			}
			keyOff = int(binary.LittleEndian.Uint16(data[recOff : recOff+2]))
			keyLen = int(binary.LittleEndian.Uint16(data[recOff+2 : recOff+4]))
			valOff = int(binary.LittleEndian.Uint16(data[recOff+4 : recOff+6]))
			valLen = int(binary.LittleEndian.Uint16(data[recOff+6 : recOff+8]))
		}

		keyStart := keyAreaStart + keyOff
		if keyStart < 0 || keyStart+keyLen > len(data) {
			return nil, apfserr.New(apfserr.OutOfRange, "B-tree key offset out of range")
		}
		valStart := valAreaEnd - valOff
		if valStart < 0 || valStart+valLen > len(data) {
			return nil, apfserr.New(apfserr.OutOfRange, "B-tree value offset out of range")
		}

		entries = append(entries, entry{
			key: data[keyStart : keyStart+keyLen],
			val: data[valStart : valStart+valLen],
		})
	}

	return entries, nil
}

// decodeRootInfo reads the BtreeInfoT footer trailing a root node's body.
func decodeRootInfo(body []byte) (types.BtreeInfoT, error) {
	if len(body) < types.BtreeInfoSize {
		return types.BtreeInfoT{}, apfserr.New(apfserr.Truncated, "root node has no B-tree info footer")
	}
	footer := body[len(body)-types.BtreeInfoSize:]

	var info types.BtreeInfoT
	info.BtFixed.BtFlags = binary.LittleEndian.Uint32(footer[0:4])
	info.BtFixed.BtNodeSize = binary.LittleEndian.Uint32(footer[4:8])
	info.BtFixed.BtKeySize = binary.LittleEndian.Uint32(footer[8:12])
	info.BtFixed.BtValSize = binary.LittleEndian.Uint32(footer[12:16])
	info.BtLongestKey = binary.LittleEndian.Uint32(footer[16:20])
	info.BtLongestVal = binary.LittleEndian.Uint32(footer[20:24])
	info.BtKeyCount = binary.LittleEndian.Uint64(footer[24:32])
	info.BtNodeCount = binary.LittleEndian.Uint64(footer[32:40])
	return info, nil
}
