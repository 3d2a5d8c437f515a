package types

// B-Trees (pages 122-134)
// Every node of every B-tree in Apple File System is represented on disk by
// the same btree_node_phys_t structure; the root node additionally carries
// a trailing btree_info_t footer.

// BtreeNodePhysT is a B-tree node.
// Reference: page 123
type BtreeNodePhysT struct {
	BtnO ObjPhysT

	// BtnFlags holds the BtnodeXxx bits below. (page 124)
	BtnFlags uint16
	// BtnLevel is the number of child levels below this node; zero for a leaf. (page 124)
	BtnLevel uint16
	// BtnNkeys is the number of keys stored in this node. (page 124)
	BtnNkeys uint32

	// BtnTableSpace locates the table of contents, offset from the start of BtnData. (page 124)
	BtnTableSpace NlocT
	// BtnFreeSpace locates the shared free space for keys and values. (page 124)
	BtnFreeSpace NlocT
	BtnKeyFreeList   NlocT
	BtnValFreeList   NlocT

	// BtnData is everything after the fixed 56-byte header: the table of
	// contents, keys, free space and values. For a root node, the final 40
	// bytes (BtreeInfoT) have already been stripped by the caller.
	BtnData []byte
}

// BtreeNodeFixedHeaderSize is the size, in bytes, of the fields preceding BtnData.
const BtreeNodeFixedHeaderSize = 56

// BtreeInfoFixedT contains static information about a B-tree.
// Reference: page 125
type BtreeInfoFixedT struct {
	BtFlags    uint32
	BtNodeSize uint32
	// BtKeySize is the size of a key, or zero if keys have variable size. (page 126)
	BtKeySize uint32
	// BtValSize is the size of a value, or zero if values have variable size. (page 126)
	BtValSize uint32
}

// BtreeInfoT contains information about a B-tree, stored as the final 40
// bytes of a root node's body.
// Reference: page 126
type BtreeInfoT struct {
	BtFixed      BtreeInfoFixedT
	BtLongestKey uint32
	BtLongestVal uint32
	BtKeyCount   uint64
	BtNodeCount  uint64
}

// BtreeInfoSize is the encoded size of BtreeInfoT.
const BtreeInfoSize = 40

// B-tree flags (pages 129-131), stored in BtreeInfoFixedT.BtFlags.
const (
	BtreeUint64Keys       uint32 = 0x00000001
	BtreeSequentialInsert uint32 = 0x00000002
	BtreeAllowGhosts      uint32 = 0x00000004
	BtreeEphemeral        uint32 = 0x00000008
	BtreePhysical         uint32 = 0x00000010
	BtreeNonpersistent    uint32 = 0x00000020
	BtreeKvNonaligned     uint32 = 0x00000040
	BtreeHashed           uint32 = 0x00000080
	BtreeNoheader         uint32 = 0x00000100
)

// B-tree node flags (pages 132-133), stored in BtreeNodePhysT.BtnFlags.
const (
	BtnodeRoot           uint16 = 0x0001
	BtnodeLeaf           uint16 = 0x0002
	BtnodeFixedKvSize    uint16 = 0x0004
	BtnodeHashed         uint16 = 0x0008
	BtnodeNoheader       uint16 = 0x0010
	BtnodeCheckKoffInval uint16 = 0x8000
)

// BtreeNodeSizeDefault is the default on-disk size of a B-tree node.
// Reference: page 133
const BtreeNodeSizeDefault uint32 = 4096
