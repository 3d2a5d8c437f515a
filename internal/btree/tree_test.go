package btree

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/penguin359/apfsreader/internal/types"
)

// fakeSource is an in-memory NodeSource keyed by Oid, used to exercise the
// engine without going through checksum verification or a real device.
type fakeSource map[types.OidT][]byte

func (f fakeSource) LoadNode(oid types.OidT) ([]byte, error) { return f[oid], nil }

// u64Schema is a minimal fixed-size (K=uint64, V=uint64) schema used only
// to exercise the generic engine's descent and matching logic.
type u64Schema struct{}

func (u64Schema) DecodeKey(b []byte) (uint64, error)   { return binary.LittleEndian.Uint64(b), nil }
func (u64Schema) DecodeValue(_ uint64, b []byte) (uint64, error) {
	return binary.LittleEndian.Uint64(b), nil
}
func (u64Schema) Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
func (u64Schema) Matches(candidate, search uint64) bool { return candidate == search }

// buildLeaf constructs a fixed-KV-size leaf node body containing the given
// sorted (key, value) pairs, with the B-tree info footer appended (it is
// always the root in these tests).
func buildLeaf(t *testing.T, pairs [][2]uint64) []byte {
	t.Helper()

	const fixedHeader = types.BtreeNodeFixedHeaderSize
	nkeys := len(pairs)
	tocLen := nkeys * 4 // KvoffT per entry
	keyAreaLen := nkeys * 8
	valAreaLen := nkeys * 8

	btnData := make([]byte, tocLen+keyAreaLen+valAreaLen)
	for i, p := range pairs {
		keyOff := i * 8
		valOff := valAreaLen - i*8 // distance from end of btnData

		binary.LittleEndian.PutUint16(btnData[i*4:i*4+2], uint16(keyOff))
		binary.LittleEndian.PutUint16(btnData[i*4+2:i*4+4], uint16(valOff))

		keyStart := tocLen + keyOff
		binary.LittleEndian.PutUint64(btnData[keyStart:keyStart+8], p[0])

		valStart := len(btnData) - valOff
		binary.LittleEndian.PutUint64(btnData[valStart:valStart+8], p[1])
	}

	footer := make([]byte, types.BtreeInfoSize)
	binary.LittleEndian.PutUint32(footer[8:12], 8) // BtKeySize
	binary.LittleEndian.PutUint32(footer[12:16], 8) // BtValSize

	body := make([]byte, fixedHeader+len(btnData)+len(footer))
	binary.LittleEndian.PutUint16(body[32:34], types.BtnodeRoot|types.BtnodeLeaf|types.BtnodeFixedKvSize)
	binary.LittleEndian.PutUint16(body[34:36], 0) // level
	binary.LittleEndian.PutUint32(body[36:40], uint32(nkeys))
	binary.LittleEndian.PutUint16(body[40:42], 0)              // table offset
	binary.LittleEndian.PutUint16(body[42:44], uint16(tocLen)) // table length

	copy(body[fixedHeader:], btnData)
	copy(body[fixedHeader+len(btnData):], footer)
	return body
}

func TestTreeGetExactMatch(t *testing.T) {
	body := buildLeaf(t, [][2]uint64{{1, 100}, {5, 500}, {9, 900}})
	source := fakeSource{42: body}

	tree, err := Open[uint64, uint64](source, 42, u64Schema{})
	require.NoError(t, err)

	v, err := tree.Get(5)
	require.NoError(t, err)
	require.Equal(t, uint64(500), v)
}

func TestTreeGetNotFound(t *testing.T) {
	body := buildLeaf(t, [][2]uint64{{1, 100}, {5, 500}})
	source := fakeSource{42: body}

	tree, err := Open[uint64, uint64](source, 42, u64Schema{})
	require.NoError(t, err)

	_, err = tree.Get(3)
	require.Error(t, err)
}

// buildNonRootLeaf builds a fixed-KV-size leaf node body with no root flag
// and no trailing BtreeInfoT footer, the shape a non-root node actually has
// on disk (only the tree's root carries the footer).
func buildNonRootLeaf(pairs [][2]uint64) []byte {
	const fixedHeader = types.BtreeNodeFixedHeaderSize
	nkeys := len(pairs)
	tocLen := nkeys * 4
	keyAreaLen := nkeys * 8
	valAreaLen := nkeys * 8

	btnData := make([]byte, tocLen+keyAreaLen+valAreaLen)
	for i, p := range pairs {
		keyOff := i * 8
		valOff := valAreaLen - i*8

		binary.LittleEndian.PutUint16(btnData[i*4:i*4+2], uint16(keyOff))
		binary.LittleEndian.PutUint16(btnData[i*4+2:i*4+4], uint16(valOff))

		keyStart := tocLen + keyOff
		binary.LittleEndian.PutUint64(btnData[keyStart:keyStart+8], p[0])

		valStart := len(btnData) - valOff
		binary.LittleEndian.PutUint64(btnData[valStart:valStart+8], p[1])
	}

	body := make([]byte, fixedHeader+len(btnData))
	binary.LittleEndian.PutUint16(body[32:34], types.BtnodeLeaf|types.BtnodeFixedKvSize)
	binary.LittleEndian.PutUint16(body[34:36], 0)
	binary.LittleEndian.PutUint32(body[36:40], uint32(nkeys))
	binary.LittleEndian.PutUint16(body[40:42], 0)
	binary.LittleEndian.PutUint16(body[42:44], uint16(tocLen))
	copy(body[fixedHeader:], btnData)
	return body
}

// buildNonLeafRoot builds a root non-leaf node whose entries pair a
// separator key with a child Oid, rather than a value.
func buildNonLeafRoot(entries [][2]uint64) []byte {
	const fixedHeader = types.BtreeNodeFixedHeaderSize
	nkeys := len(entries)
	tocLen := nkeys * 4
	keyAreaLen := nkeys * 8
	valAreaLen := nkeys * 8

	btnData := make([]byte, tocLen+keyAreaLen+valAreaLen)
	for i, p := range entries {
		keyOff := i * 8
		valOff := valAreaLen - i*8

		binary.LittleEndian.PutUint16(btnData[i*4:i*4+2], uint16(keyOff))
		binary.LittleEndian.PutUint16(btnData[i*4+2:i*4+4], uint16(valOff))

		keyStart := tocLen + keyOff
		binary.LittleEndian.PutUint64(btnData[keyStart:keyStart+8], p[0])

		valStart := len(btnData) - valOff
		binary.LittleEndian.PutUint64(btnData[valStart:valStart+8], p[1]) // child Oid
	}

	footer := make([]byte, types.BtreeInfoSize)
	binary.LittleEndian.PutUint32(footer[8:12], 8)  // BtKeySize
	binary.LittleEndian.PutUint32(footer[12:16], 8) // tree-wide leaf BtValSize

	body := make([]byte, fixedHeader+len(btnData)+len(footer))
	binary.LittleEndian.PutUint16(body[32:34], types.BtnodeRoot|types.BtnodeFixedKvSize)
	binary.LittleEndian.PutUint16(body[34:36], 1) // level 1: non-leaf
	binary.LittleEndian.PutUint32(body[36:40], uint32(nkeys))
	binary.LittleEndian.PutUint16(body[40:42], 0)
	binary.LittleEndian.PutUint16(body[42:44], uint16(tocLen))
	copy(body[fixedHeader:], btnData)
	copy(body[fixedHeader+len(btnData):], footer)
	return body
}

// TestTreeGetDescendsThroughNonLeaf exercises the shared descent primitive
// (descentIndex) across an actual interior node, not just a single-leaf
// tree: a root with two separator entries routes to one of two distinct
// leaf children depending on the search key, and a miss inside the
// correct leaf is still reported as not found rather than silently
// falling through to the wrong child.
func TestTreeGetDescendsThroughNonLeaf(t *testing.T) {
	leafLow := buildNonRootLeaf([][2]uint64{{1, 100}, {5, 500}, {9, 900}})
	leafHigh := buildNonRootLeaf([][2]uint64{{10, 1000}, {15, 1500}})
	root := buildNonLeafRoot([][2]uint64{{1, 100}, {10, 200}})

	source := fakeSource{42: root, 100: leafLow, 200: leafHigh}

	tree, err := Open[uint64, uint64](source, 42, u64Schema{})
	require.NoError(t, err)

	v, err := tree.Get(5)
	require.NoError(t, err, "key 5 should descend into the low child")
	require.Equal(t, uint64(500), v)

	v, err = tree.Get(10)
	require.NoError(t, err, "key 10 should descend into the high child")
	require.Equal(t, uint64(1000), v)

	_, err = tree.Get(7)
	require.Error(t, err, "7 falls in the low child's range but isn't a key there")
}

func TestTreeIterVisitsAllInOrder(t *testing.T) {
	body := buildLeaf(t, [][2]uint64{{1, 100}, {5, 500}, {9, 900}})
	source := fakeSource{42: body}

	tree, err := Open[uint64, uint64](source, 42, u64Schema{})
	require.NoError(t, err)

	it := tree.Iter()
	var got []uint64
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, k)
	}
	require.NoError(t, it.Err())
	require.Equal(t, []uint64{1, 5, 9}, got)
}
