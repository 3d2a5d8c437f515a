// Package objects loads and validates individual APFS objects from a block
// device, resolving physical and ephemeral Oids to a physical block
// address. It does not decode object bodies by type: a Raw carries the
// header and the raw bytes, and callers parse the body according to
// Raw.Type(). Virtual Oids are resolved by package omap, not here.
package objects

import (
	"encoding/binary"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/blockio"
	"github.com/penguin359/apfsreader/internal/checksum"
	"github.com/penguin359/apfsreader/internal/types"
)

// Raw is a decoded object header together with the full block(s) it was
// read from. Higher-level packages (btree, omap, fstree, container) parse
// Raw.Body according to Raw.Header's type.
type Raw struct {
	Header types.ObjPhysT
	Body   []byte
}

// Type returns the low 16 bits of the object's type-and-flags word.
func (r Raw) Type() uint32 { return types.Kind(r.Header.OType) }

// StorageClass returns the storage class encoded in the object's
// type-and-flags word.
func (r Raw) StorageClass() types.StorageClass { return types.StorageClassOf(r.Header.OType) }

// Loader reads and validates objects from a block device.
type Loader struct {
	dev *blockio.Device
}

// NewLoader returns a Loader reading objects from dev.
func NewLoader(dev *blockio.Device) *Loader {
	return &Loader{dev: dev}
}

// LoadPhysical reads and validates the object stored at the physical block
// address paddr. Most objects fit in a single block; a caller that already
// knows an object spans more than one block (e.g. a checkpoint-data area
// entry) should use LoadPhysicalBlocks instead.
func (l *Loader) LoadPhysical(paddr types.Paddr) (Raw, error) {
	return l.LoadPhysicalBlocks(paddr, 1)
}

// LoadPhysicalBlocks reads and validates an object spanning count
// consecutive blocks starting at paddr.
func (l *Loader) LoadPhysicalBlocks(paddr types.Paddr, count uint32) (Raw, error) {
	data, err := l.dev.ReadBlockRange(paddr, count)
	if err != nil {
		return Raw{}, err
	}
	return decode(data, paddr)
}

func decode(data []byte, paddr types.Paddr) (Raw, error) {
	if len(data) < types.ObjPhysSize {
		return Raw{}, apfserr.New(apfserr.Truncated, "object shorter than its header")
	}

	var hdr types.ObjPhysT
	copy(hdr.OChecksum[:], data[0:8])
	hdr.OOid = types.OidT(binary.LittleEndian.Uint64(data[8:16]))
	hdr.OXid = types.XidT(binary.LittleEndian.Uint64(data[16:24]))
	hdr.OType = binary.LittleEndian.Uint32(data[24:28])
	hdr.OSubtype = binary.LittleEndian.Uint32(data[28:32])

	// Noheader objects don't carry a meaningful checksum to verify against
	// the block they were read into; every other object is verified.
	if hdr.OType&types.ObjNoheader == 0 && !checksum.Verify(data) {
		return Raw{}, apfserr.New(apfserr.ChecksumMismatch, "object checksum verification failed")
	}

	return Raw{Header: hdr, Body: data}, nil
}

// EphemeralIndex maps an ephemeral Oid to the physical block holding its
// most recent version, built once per checkpoint from its checkpoint-data
// area mappings.
type EphemeralIndex map[types.OidT]types.Paddr

// LoadEphemeral reads and validates the ephemeral object oid, using idx to
// resolve it to a physical address.
func (l *Loader) LoadEphemeral(oid types.OidT, idx EphemeralIndex) (Raw, error) {
	paddr, ok := idx[oid]
	if !ok {
		return Raw{}, apfserr.New(apfserr.ChildMissing, "ephemeral object not present in checkpoint map")
	}
	return l.LoadPhysical(paddr)
}
