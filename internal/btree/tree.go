package btree

import (
	"encoding/binary"
	"sort"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/objects"
	"github.com/penguin359/apfsreader/internal/types"
)

// NodeSource resolves a B-tree node's Oid to the raw bytes of the object
// storing it. Implementations differ in how that resolution happens: a
// physical tree's Oid is the node's block address directly, while a
// virtual tree's Oid must be looked up in an object map at a transaction.
type NodeSource interface {
	LoadNode(oid types.OidT) ([]byte, error)
}

// PhysicalSource is a NodeSource for trees whose BTREE_PHYSICAL flag is
// set: the container's own object map, and the free-space queues anchored
// off the space manager.
type PhysicalSource struct {
	Loader *objects.Loader
}

func (s PhysicalSource) LoadNode(oid types.OidT) ([]byte, error) {
	raw, err := s.Loader.LoadPhysical(types.Paddr(oid))
	if err != nil {
		return nil, err
	}
	return raw.Body, nil
}

// Schema supplies the key comparison and matching rules for one kind of
// B-tree. Compare gives the total order nodes are sorted and descended by;
// Matches decides, at a leaf, whether a candidate key found by that
// descent is actually the record being looked up — the two differ for an
// object map, whose lookup wants the largest transaction id not exceeding
// the one asked for rather than an exact key match.
type Schema[K any, V any] interface {
	DecodeKey(b []byte) (K, error)
	// DecodeValue decodes a value's bytes. key is the already-decoded key
	// of the same entry, since some schemas (the file-system tree) need
	// it to know which of several record layouts the value bytes hold.
	DecodeValue(key K, b []byte) (V, error)
	Compare(a, b K) int
	Matches(candidate K, search K) bool
}

// Tree is a handle on one on-disk B-tree: its node source, root Oid, and
// the tree-wide key/value sizes recorded in the root node's footer.
type Tree[K any, V any] struct {
	source NodeSource
	schema Schema[K, V]
	info   types.BtreeInfoFixedT
	root   *node
}

// Open loads and decodes the root node at rootOid through source,
// returning a Tree ready for Get and Iter.
func Open[K any, V any](source NodeSource, rootOid types.OidT, schema Schema[K, V]) (*Tree[K, V], error) {
	body, err := source.LoadNode(rootOid)
	if err != nil {
		return nil, err
	}
	info, err := decodeRootInfo(body)
	if err != nil {
		return nil, err
	}
	root, err := decodeNode(body, info.BtFixed)
	if err != nil {
		return nil, err
	}
	if !root.isRoot() {
		return nil, apfserr.New(apfserr.InvalidValue, "tree root node lacks the root flag")
	}
	return &Tree[K, V]{source: source, schema: schema, info: info.BtFixed, root: root}, nil
}

func (t *Tree[K, V]) loadChild(oid types.OidT) (*node, error) {
	body, err := t.source.LoadNode(oid)
	if err != nil {
		return nil, err
	}
	return decodeNode(body, t.info)
}

// descentIndex returns the index of the rightmost entry in n whose decoded
// key is <= search under the schema's Compare, or -1 if every key in n is
// greater than search. This single rule drives descent through every
// level of every B-tree in this reader; only the leaf-level decision
// (Matches) differs between an object map and a file-system tree.
func (t *Tree[K, V]) descentIndex(n *node, search K) (int, error) {
	keys := make([]K, len(n.entries))
	for i, e := range n.entries {
		k, err := t.schema.DecodeKey(e.key)
		if err != nil {
			return 0, err
		}
		keys[i] = k
	}

	idx := sort.Search(len(keys), func(i int) bool {
		return t.schema.Compare(keys[i], search) > 0
	}) - 1
	return idx, nil
}

// Get looks up search and returns its value. It returns a NotFound error
// if no record in the tree matches.
func (t *Tree[K, V]) Get(search K) (V, error) {
	var zero V
	n := t.root

	for {
		idx, err := t.descentIndex(n, search)
		if err != nil {
			return zero, err
		}

		if n.isLeaf() {
			if idx < 0 {
				return zero, apfserr.New(apfserr.NotFound, "key not present in B-tree")
			}
			key, err := t.schema.DecodeKey(n.entries[idx].key)
			if err != nil {
				return zero, err
			}
			if !t.schema.Matches(key, search) {
				return zero, apfserr.New(apfserr.NotFound, "key not present in B-tree")
			}
			return t.schema.DecodeValue(key, n.entries[idx].val)
		}

		if idx < 0 {
			idx = 0
		}
		if idx >= len(n.entries) {
			return zero, apfserr.New(apfserr.ChildMissing, "B-tree node has no children to descend into")
		}
		childOid := types.OidT(binary.LittleEndian.Uint64(n.entries[idx].val))
		n, err = t.loadChild(childOid)
		if err != nil {
			return zero, err
		}
	}
}

// Iterator performs an in-order walk of every leaf entry in a tree.
type Iterator[K any, V any] struct {
	tree  *Tree[K, V]
	stack []frame
	err   error
}

type frame struct {
	n   *node
	idx int
}

// Iter returns an Iterator starting at the tree's first entry.
func (t *Tree[K, V]) Iter() *Iterator[K, V] {
	return &Iterator[K, V]{tree: t, stack: []frame{{n: t.root, idx: 0}}}
}

// Next advances the iterator and reports whether an entry was produced.
// Once Next returns false, Err reports whether iteration stopped because
// of an error rather than reaching the end of the tree.
func (it *Iterator[K, V]) Next() (K, V, bool) {
	var zeroK K
	var zeroV V

	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]

		if top.n.isLeaf() {
			if top.idx >= len(top.n.entries) {
				it.stack = it.stack[:len(it.stack)-1]
				continue
			}
			e := top.n.entries[top.idx]
			top.idx++

			k, err := it.tree.schema.DecodeKey(e.key)
			if err != nil {
				it.err = err
				return zeroK, zeroV, false
			}
			v, err := it.tree.schema.DecodeValue(k, e.val)
			if err != nil {
				it.err = err
				return zeroK, zeroV, false
			}
			return k, v, true
		}

		if top.idx >= len(top.n.entries) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		childOid := types.OidT(binary.LittleEndian.Uint64(top.n.entries[top.idx].val))
		top.idx++

		child, err := it.tree.loadChild(childOid)
		if err != nil {
			it.err = err
			return zeroK, zeroV, false
		}
		it.stack = append(it.stack, frame{n: child, idx: 0})
	}

	return zeroK, zeroV, false
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator[K, V]) Err() error { return it.err }
