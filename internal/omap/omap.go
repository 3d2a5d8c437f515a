// Package omap implements the object map: the structure that translates a
// virtual object's (Oid, Xid) pair to the physical address holding that
// object's version as of the given transaction.
package omap

import (
	"encoding/binary"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/btree"
	"github.com/penguin359/apfsreader/internal/objects"
	"github.com/penguin359/apfsreader/internal/types"
)

// schema implements btree.Schema[types.OmapKeyT, types.OmapValT]. Its
// Compare orders keys first by Oid then by Xid, matching how the on-disk
// tree is sorted; its Matches implements the object map's actual lookup
// rule — the entry for the given Oid with the largest Xid not exceeding
// the Xid being searched for — rather than requiring an exact Xid match.
type schema struct{}

func (schema) DecodeKey(b []byte) (types.OmapKeyT, error) {
	if len(b) < 16 {
		return types.OmapKeyT{}, apfserr.New(apfserr.Truncated, "object map key shorter than 16 bytes")
	}
	return types.OmapKeyT{
		OkOid: types.OidT(binary.LittleEndian.Uint64(b[0:8])),
		OkXid: types.XidT(binary.LittleEndian.Uint64(b[8:16])),
	}, nil
}

func (schema) DecodeValue(_ types.OmapKeyT, b []byte) (types.OmapValT, error) {
	if len(b) < 16 {
		return types.OmapValT{}, apfserr.New(apfserr.Truncated, "object map value shorter than 16 bytes")
	}
	return types.OmapValT{
		OvFlags: binary.LittleEndian.Uint32(b[0:4]),
		OvSize:  binary.LittleEndian.Uint32(b[4:8]),
		OvPaddr: types.Paddr(binary.LittleEndian.Uint64(b[8:16])),
	}, nil
}

func (schema) Compare(a, b types.OmapKeyT) int {
	switch {
	case a.OkOid != b.OkOid:
		if a.OkOid < b.OkOid {
			return -1
		}
		return 1
	case a.OkXid < b.OkXid:
		return -1
	case a.OkXid > b.OkXid:
		return 1
	default:
		return 0
	}
}

// Matches implements the largest-Xid-not-exceeding-search rule: candidate
// is accepted only if it names the same Oid as search and its Xid is no
// greater than search's.
func (schema) Matches(candidate, search types.OmapKeyT) bool {
	return candidate.OkOid == search.OkOid && candidate.OkXid <= search.OkXid
}

// Resolver resolves virtual object lookups through an object map's B-tree.
type Resolver struct {
	tree   *btree.Tree[types.OmapKeyT, types.OmapValT]
	loader *objects.Loader
}

// Open loads the object map at paddr and returns a Resolver over it. The
// object map's own tree is always a physical tree: its nodes are addressed
// directly by Paddr rather than through another object map.
func Open(loader *objects.Loader, paddr types.Paddr) (*Resolver, error) {
	raw, err := loader.LoadPhysical(paddr)
	if err != nil {
		return nil, err
	}
	if raw.Type() != types.ObjectTypeOmap {
		return nil, apfserr.New(apfserr.InvalidValue, "object at given address is not an object map")
	}

	om, err := decodePhys(raw.Body)
	if err != nil {
		return nil, err
	}

	source := btree.PhysicalSource{Loader: loader}
	tree, err := btree.Open[types.OmapKeyT, types.OmapValT](source, om.OmTreeOid, schema{})
	if err != nil {
		return nil, err
	}
	return &Resolver{tree: tree, loader: loader}, nil
}

func decodePhys(body []byte) (types.OmapPhysT, error) {
	if len(body) < types.ObjPhysSize+40 {
		return types.OmapPhysT{}, apfserr.New(apfserr.Truncated, "object map shorter than its fixed fields")
	}
	b := body[types.ObjPhysSize:]
	var om types.OmapPhysT
	om.OmFlags = binary.LittleEndian.Uint32(b[0:4])
	om.OmSnapCount = binary.LittleEndian.Uint32(b[4:8])
	om.OmTreeType = binary.LittleEndian.Uint32(b[8:12])
	om.OmSnapshotTreeType = binary.LittleEndian.Uint32(b[12:16])
	om.OmTreeOid = types.OidT(binary.LittleEndian.Uint64(b[16:24]))
	om.OmSnapshotTreeOid = types.OidT(binary.LittleEndian.Uint64(b[24:32]))
	om.OmMostRecentSnap = types.XidT(binary.LittleEndian.Uint64(b[32:40]))
	return om, nil
}

// Resolve returns the physical address of the version of oid current as
// of at most xid.
func (r *Resolver) Resolve(oid types.OidT, xid types.XidT) (types.Paddr, error) {
	val, err := r.tree.Get(types.OmapKeyT{OkOid: oid, OkXid: xid})
	if err != nil {
		return 0, err
	}
	if val.OvFlags&types.OmapValDeleted != 0 {
		return 0, apfserr.New(apfserr.NotFound, "object map entry is a deletion tombstone")
	}
	return val.OvPaddr, nil
}

// LoadObject resolves oid at xid and loads the resulting object through
// this Resolver's loader.
func (r *Resolver) LoadObject(oid types.OidT, xid types.XidT) (objects.Raw, error) {
	paddr, err := r.Resolve(oid, xid)
	if err != nil {
		return objects.Raw{}, err
	}
	return r.loader.LoadPhysical(paddr)
}

// Source returns a btree.NodeSource that resolves virtual B-tree node Oids
// through this object map at the given transaction — the node source used
// to open a volume's virtual file-system tree.
func (r *Resolver) Source(xid types.XidT) btree.NodeSource {
	return virtualSource{resolver: r, xid: xid}
}

type virtualSource struct {
	resolver *Resolver
	xid      types.XidT
}

func (s virtualSource) LoadNode(oid types.OidT) ([]byte, error) {
	raw, err := s.resolver.LoadObject(oid, s.xid)
	if err != nil {
		return nil, err
	}
	return raw.Body, nil
}
