package container

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/penguin359/apfsreader/internal/blockio"
	"github.com/penguin359/apfsreader/internal/checksum"
	"github.com/penguin359/apfsreader/internal/fstree"
	"github.com/penguin359/apfsreader/internal/types"
)

type memSource struct{ data []byte }

func (m *memSource) ReadAt(buf []byte, off int64) (int, error) {
	n := copy(buf, m.data[off:])
	return n, nil
}
func (m *memSource) Size() int64 { return int64(len(m.data)) }

// writeCursor is the test-only mirror of the production cursor, used to
// build synthetic fixtures at the same byte offsets decode.go reads.
type writeCursor struct {
	b []byte
	i int
}

func (c *writeCursor) u16(v uint16) { binary.LittleEndian.PutUint16(c.b[c.i:], v); c.i += 2 }
func (c *writeCursor) u32(v uint32) { binary.LittleEndian.PutUint32(c.b[c.i:], v); c.i += 4 }
func (c *writeCursor) u64(v uint64) { binary.LittleEndian.PutUint64(c.b[c.i:], v); c.i += 8 }
func (c *writeCursor) i64(v int64)  { c.u64(uint64(v)) }
func (c *writeCursor) skip(n int)   { c.i += n }

func sealObject(block []byte, oid types.OidT, objType uint32) {
	binary.LittleEndian.PutUint64(block[8:16], uint64(oid))
	binary.LittleEndian.PutUint32(block[24:28], objType)
	sum := checksum.Fletcher64(block)
	binary.LittleEndian.PutUint64(block[0:8], sum)
}

func buildContainerSuperblock(omapOid types.OidT, fsOid types.OidT) []byte {
	block := make([]byte, 4096)
	c := &writeCursor{b: block, i: types.ObjPhysSize}
	c.u32(types.NxMagicValue)
	c.u32(4096)          // NxBlockSize
	c.u64(0x9F6)         // NxBlockCount
	c.u64(0)             // NxFeatures
	c.u64(0)             // NxReadonlyCompatibleFeatures
	c.u64(0)             // NxIncompatibleFeatures
	c.skip(16)           // NxUuid
	c.u64(0x406)         // NxNextOid
	c.u64(1)             // NxNextXid
	c.u32(0)             // NxXpDescBlocks
	c.u32(0)             // NxXpDataBlocks
	c.i64(0)             // NxXpDescBase
	c.i64(0)             // NxXpDataBase
	c.u32(0)             // NxXpDescNext
	c.u32(0)             // NxXpDataNext
	c.u32(0)             // NxXpDescIndex
	c.u32(0)             // NxXpDescLen
	c.u32(0)             // NxXpDataIndex
	c.u32(0)             // NxXpDataLen
	c.u64(0)             // NxSpacemanOid
	c.u64(uint64(omapOid)) // NxOmapOid
	c.u64(0)             // NxReaperOid
	c.u32(0)             // NxTestType
	c.u32(types.NxMaxFileSystems) // NxMaxFileSystemsField
	c.u64(uint64(fsOid))          // NxFsOid[0]

	sealObject(block, types.OidNxSuperblock, types.ObjectTypeNxSuperblock)
	return block
}

func buildOmapPhys(treeOid types.OidT) []byte {
	block := make([]byte, 4096)
	c := &writeCursor{b: block, i: types.ObjPhysSize}
	c.u32(0) // OmFlags
	c.u32(0) // OmSnapCount
	c.u32(0) // OmTreeType
	c.u32(0) // OmSnapshotTreeType
	c.u64(uint64(treeOid))
	return block
}

type omapEntry struct {
	oid   types.OidT
	xid   types.XidT
	paddr types.Paddr
}

func buildOmapTreeLeaf(entries []omapEntry) []byte {
	const blockSize = 4096
	const fixedHeader = types.BtreeNodeFixedHeaderSize
	// midLen is the size of the region between the fixed header and the
	// trailing BtreeInfoT footer: a root node's body occupies the whole
	// block, so the footer sits at the very end of it, not just after
	// whatever prefix of the middle region this fixture actually uses.
	const midLen = blockSize - fixedHeader - types.BtreeInfoSize
	nkeys := len(entries)
	tocLen := nkeys * 4
	valAreaLen := nkeys * 16

	mid := make([]byte, midLen)
	for i, e := range entries {
		keyOff := i * 16
		valOff := valAreaLen - i*16

		binary.LittleEndian.PutUint16(mid[i*4:i*4+2], uint16(keyOff))
		binary.LittleEndian.PutUint16(mid[i*4+2:i*4+4], uint16(valOff))

		keyStart := tocLen + keyOff
		binary.LittleEndian.PutUint64(mid[keyStart:keyStart+8], uint64(e.oid))
		binary.LittleEndian.PutUint64(mid[keyStart+8:keyStart+16], uint64(e.xid))

		valStart := midLen - valOff
		binary.LittleEndian.PutUint32(mid[valStart:valStart+4], 0)
		binary.LittleEndian.PutUint32(mid[valStart+4:valStart+8], 4096)
		binary.LittleEndian.PutUint64(mid[valStart+8:valStart+16], uint64(e.paddr))
	}

	block := make([]byte, blockSize)
	binary.LittleEndian.PutUint16(block[32:34], types.BtnodeRoot|types.BtnodeLeaf|types.BtnodeFixedKvSize)
	binary.LittleEndian.PutUint32(block[36:40], uint32(nkeys))
	binary.LittleEndian.PutUint16(block[40:42], 0)
	binary.LittleEndian.PutUint16(block[42:44], uint16(tocLen))
	copy(block[fixedHeader:], mid)
	footer := block[blockSize-types.BtreeInfoSize:]
	binary.LittleEndian.PutUint32(footer[8:12], 16)
	binary.LittleEndian.PutUint32(footer[12:16], 16)
	return block
}

func buildVolumeSuperblock(omapOid, rootTreeOid types.OidT, name string) []byte {
	block := make([]byte, 4096)
	c := &writeCursor{b: block, i: types.ObjPhysSize}
	c.u32(types.ApfsMagicValue)
	c.u32(0)    // ApfsFsIndex
	c.u64(0)    // ApfsFeatures
	c.u64(0)    // ApfsReadonlyCompatibleFeatures
	c.u64(0)    // ApfsIncompatibleFeatures
	c.u64(0)    // ApfsUnmountTime
	c.u64(0)    // ApfsFsReserveBlockCount
	c.u64(0)    // ApfsFsQuotaBlockCount
	c.u64(0)    // ApfsFsAllocCount
	c.u64(uint64(omapOid))
	c.u64(uint64(rootTreeOid))
	c.u64(0) // ApfsExtentrefTreeOid
	c.u64(0) // ApfsSnapMetaTreeOid
	c.u64(0) // ApfsRevertToXid
	c.u64(0) // ApfsRevertToSblockOid
	c.u64(0) // ApfsNextObjId
	c.u64(0) // ApfsNumFiles
	c.u64(0) // ApfsNumDirectories
	c.u64(0) // ApfsNumSymlinks
	c.u64(0) // ApfsNumOtherFsobjects
	c.u64(0) // ApfsNumSnapshots
	c.u64(0) // ApfsTotalBlocksAlloced
	c.u64(0) // ApfsTotalBlocksFreed
	c.skip(16) // ApfsVolUuid
	c.u64(0)   // ApfsLastModTime
	c.u64(types.ApfsFsUnencrypted) // ApfsFsFlags
	c.skip(48)                     // ApfsFormattedBy
	c.skip(48 * types.ApfsMaxHist) // ApfsModifiedBy
	copy(block[c.i:c.i+len(name)], name)

	sealObject(block, 20, types.ObjectTypeFs)
	return block
}

func buildRootTreeLeaf(objId uint64) []byte {
	const blockSize = 4096
	const fixedHeader = types.BtreeNodeFixedHeaderSize
	const midLen = blockSize - fixedHeader - types.BtreeInfoSize
	const keySize = 8
	const valSize = 92

	tocLen := 4
	mid := make([]byte, midLen)
	binary.LittleEndian.PutUint16(mid[0:2], 0)
	binary.LittleEndian.PutUint16(mid[2:4], uint16(valSize))

	keyHdr := types.MakeJKey(objId, types.ApfsTypeInode)
	binary.LittleEndian.PutUint64(mid[tocLen:tocLen+8], keyHdr.ObjIdAndType)

	valStart := midLen - valSize
	binary.LittleEndian.PutUint64(mid[valStart:valStart+8], 2) // ParentId
	binary.LittleEndian.PutUint16(mid[valStart+80:valStart+82], 0o100000) // regular file mode

	block := make([]byte, blockSize)
	binary.LittleEndian.PutUint16(block[32:34], types.BtnodeRoot|types.BtnodeLeaf|types.BtnodeFixedKvSize)
	binary.LittleEndian.PutUint32(block[36:40], 1)
	binary.LittleEndian.PutUint16(block[40:42], 0)
	binary.LittleEndian.PutUint16(block[42:44], uint16(tocLen))
	copy(block[fixedHeader:], mid)
	footer := block[blockSize-types.BtreeInfoSize:]
	binary.LittleEndian.PutUint32(footer[8:12], keySize)
	binary.LittleEndian.PutUint32(footer[12:16], valSize)
	return block
}

// buildRootTreeNonLeaf builds a root non-leaf node for the file-system tree:
// each entry pairs an inode key with the Oid of the child leaf holding keys
// from that point up to (but not including) the next entry's key.
func buildRootTreeNonLeaf(entries []struct {
	objId    uint64
	childOid types.OidT
}) []byte {
	const blockSize = 4096
	const fixedHeader = types.BtreeNodeFixedHeaderSize
	const midLen = blockSize - fixedHeader - types.BtreeInfoSize
	const keySize = 8
	const valSize = 8
	nkeys := len(entries)
	tocLen := nkeys * 4
	valAreaLen := nkeys * valSize

	mid := make([]byte, midLen)
	for i, e := range entries {
		keyOff := i * keySize
		valOff := valAreaLen - i*valSize

		binary.LittleEndian.PutUint16(mid[i*4:i*4+2], uint16(keyOff))
		binary.LittleEndian.PutUint16(mid[i*4+2:i*4+4], uint16(valOff))

		keyStart := tocLen + keyOff
		keyHdr := types.MakeJKey(e.objId, types.ApfsTypeInode)
		binary.LittleEndian.PutUint64(mid[keyStart:keyStart+8], keyHdr.ObjIdAndType)

		valStart := midLen - valOff
		binary.LittleEndian.PutUint64(mid[valStart:valStart+8], uint64(e.childOid))
	}

	block := make([]byte, blockSize)
	// No BtnodeLeaf flag, level 1: value slots hold bare child Oids, not
	// JAnyValT records.
	binary.LittleEndian.PutUint16(block[32:34], types.BtnodeRoot|types.BtnodeFixedKvSize)
	binary.LittleEndian.PutUint16(block[34:36], 1)
	binary.LittleEndian.PutUint32(block[36:40], uint32(nkeys))
	binary.LittleEndian.PutUint16(block[40:42], 0)
	binary.LittleEndian.PutUint16(block[42:44], uint16(tocLen))
	copy(block[fixedHeader:], mid)
	footer := block[blockSize-types.BtreeInfoSize:]
	binary.LittleEndian.PutUint32(footer[8:12], keySize)
	binary.LittleEndian.PutUint32(footer[12:16], 92) // tree-wide leaf value size
	return block
}

// TestOpenAndWalkContainerNonLeafRootTree exercises the full container ->
// volume -> root-tree path against a genuine two-level file-system tree,
// complementing TestOpenAndWalkContainer's single-leaf fixture: the root
// tree's root is a non-leaf node routing between two leaves, each holding
// one inode record.
func TestOpenAndWalkContainerNonLeafRootTree(t *testing.T) {
	// Block layout:
	// 0: container superblock (omap oid 1, one volume at fs oid 20)
	// 1: container object map (tree root at 2)
	// 2: container omap tree leaf: {oid 20, xid 1} -> paddr 3
	// 3: volume superblock (omap oid 4, root tree oid 50)
	// 4: volume object map (tree root at 5)
	// 5: volume omap tree leaf: {oid 50, xid 1} -> paddr 6
	// 6: root file-system tree: non-leaf root over blocks 7 and 8
	// 7: leaf holding the inode record for object id 2
	// 8: leaf holding the inode record for object id 7
	nxSB := buildContainerSuperblock(1, 20)
	omapPhys := buildOmapPhys(2)
	omapTree := buildOmapTreeLeaf([]omapEntry{{oid: 20, xid: 1, paddr: 3}})
	volSB := buildVolumeSuperblock(4, 50, "Macintosh HD")
	volOmapPhys := buildOmapPhys(5)
	volOmapTree := buildOmapTreeLeaf([]omapEntry{{oid: 50, xid: 1, paddr: 6}})
	rootNonLeaf := buildRootTreeNonLeaf([]struct {
		objId    uint64
		childOid types.OidT
	}{{objId: 2, childOid: 7}, {objId: 7, childOid: 8}})
	leafLow := buildRootTreeLeaf(2)
	leafHigh := buildRootTreeLeaf(7)

	sealObject(omapPhys, 1, types.ObjectTypeOmap)
	sealObject(omapTree, 2, types.ObjectTypeBtree)
	sealObject(volOmapPhys, 4, types.ObjectTypeOmap)
	sealObject(volOmapTree, 5, types.ObjectTypeBtree)
	sealObject(rootNonLeaf, 6, types.ObjectTypeBtree)
	sealObject(leafLow, 7, types.ObjectTypeBtree)
	sealObject(leafHigh, 8, types.ObjectTypeBtree)

	var data []byte
	for _, b := range [][]byte{nxSB, omapPhys, omapTree, volSB, volOmapPhys, volOmapTree, rootNonLeaf, leafLow, leafHigh} {
		data = append(data, b...)
	}

	c, err := Open(&memSource{data: data}, 0)
	require.NoError(t, err)

	vols, err := c.Volumes()
	require.NoError(t, err)
	require.Len(t, vols, 1)

	tree, err := vols[0].RootTree()
	require.NoError(t, err)

	val, err := tree.Get(fstree.Key{ObjId: 2, Kind: types.ApfsTypeInode})
	require.NoError(t, err, "object id 2 should descend into the low leaf")
	require.NotNil(t, val.Inode)
	require.Equal(t, uint64(2), val.Inode.ParentId)

	val, err = tree.Get(fstree.Key{ObjId: 7, Kind: types.ApfsTypeInode})
	require.NoError(t, err, "object id 7 should descend into the high leaf")
	require.NotNil(t, val.Inode)
	require.Equal(t, uint64(2), val.Inode.ParentId)
}

func TestOpenAndWalkContainer(t *testing.T) {
	// Block layout:
	// 0: container superblock (omap oid 1, one volume at fs oid 20)
	// 1: container object map (tree root at 2)
	// 2: container omap tree leaf: {oid 20, xid 1} -> paddr 3
	// 3: volume superblock (omap oid 4, root tree oid 50)
	// 4: volume object map (tree root at 5)
	// 5: volume omap tree leaf: {oid 50, xid 1} -> paddr 6
	// 6: root file-system tree leaf: one inode record for object id 2
	nxSB := buildContainerSuperblock(1, 20)
	omapPhys := buildOmapPhys(2)
	omapTree := buildOmapTreeLeaf([]omapEntry{{oid: 20, xid: 1, paddr: 3}})
	volSB := buildVolumeSuperblock(4, 50, "Macintosh HD")
	volOmapPhys := buildOmapPhys(5)
	volOmapTree := buildOmapTreeLeaf([]omapEntry{{oid: 50, xid: 1, paddr: 6}})
	rootTree := buildRootTreeLeaf(2)

	sealObject(omapPhys, 1, types.ObjectTypeOmap)
	sealObject(omapTree, 2, types.ObjectTypeBtree)
	sealObject(volOmapPhys, 4, types.ObjectTypeOmap)
	sealObject(volOmapTree, 5, types.ObjectTypeBtree)
	sealObject(rootTree, 6, types.ObjectTypeBtree)

	var data []byte
	for _, b := range [][]byte{nxSB, omapPhys, omapTree, volSB, volOmapPhys, volOmapTree, rootTree} {
		data = append(data, b...)
	}

	c, err := Open(&memSource{data: data}, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(4096), c.Superblock().NxBlockSize)

	raw1, err := c.LoadObjectAt(0)
	require.NoError(t, err)
	raw2, err := c.LoadObjectAt(0)
	require.NoError(t, err)
	require.Equal(t, raw1.Header, raw2.Header, "loading the same address twice must yield equal results")

	vols, err := c.Volumes()
	require.NoError(t, err)
	require.Len(t, vols, 1)
	require.Equal(t, "Macintosh HD", vols[0].Name())
	require.False(t, vols[0].Encrypted())

	tree, err := vols[0].RootTree()
	require.NoError(t, err)

	val, err := tree.Get(fstree.Key{ObjId: 2, Kind: types.ApfsTypeInode})
	require.NoError(t, err)
	require.NotNil(t, val.Inode)
	require.Equal(t, uint64(2), val.Inode.ParentId)
}
