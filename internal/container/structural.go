package container

import (
	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/btree"
	"github.com/penguin359/apfsreader/internal/objects"
	"github.com/penguin359/apfsreader/internal/spaceman"
	"github.com/penguin359/apfsreader/internal/types"
)

// efiJumpstartMinSize is the number of bytes an NxEfiJumpstartT's fixed
// fields occupy, object header included; NejRecExtents follows.
const efiJumpstartMinSize = 176

func decodeEfiJumpstart(raw objects.Raw) (types.NxEfiJumpstartT, error) {
	if raw.Type() != types.ObjectTypeEfiJumpstart {
		return types.NxEfiJumpstartT{}, apfserr.New(apfserr.InvalidValue, "object is not an EFI jumpstart record")
	}
	if len(raw.Body) < efiJumpstartMinSize {
		return types.NxEfiJumpstartT{}, apfserr.New(apfserr.Truncated, "EFI jumpstart record shorter than its fixed fields")
	}

	c := &cursor{b: raw.Body, i: types.ObjPhysSize}
	var j types.NxEfiJumpstartT
	j.NejO = raw.Header

	j.NejMagic = c.u32()
	if j.NejMagic != types.NxEfiJumpstartMagic {
		return types.NxEfiJumpstartT{}, apfserr.New(apfserr.InvalidValue, "EFI jumpstart record has the wrong magic")
	}
	j.NejVersion = c.u32()
	j.NejEfiFileLen = c.u32()
	j.NejNumExtents = c.u32()
	for i := range j.NejReserved {
		j.NejReserved[i] = c.u64()
	}

	j.NejRecExtents = make([]types.Prange, j.NejNumExtents)
	for i := range j.NejRecExtents {
		if c.i+16 > len(raw.Body) {
			return types.NxEfiJumpstartT{}, apfserr.New(apfserr.Truncated, "EFI jumpstart extent list runs past object body")
		}
		j.NejRecExtents[i] = types.Prange{
			PrStartPaddr: types.Paddr(c.i64()),
			PrBlockCount: c.u64(),
		}
	}

	return j, nil
}

// spacemanMinSize is the number of bytes the fields this reader decodes
// from a SpacemanPhysT occupy, object header included. The free-space
// bitmaps and allocation-zone tables that follow in the real object are
// not part of the declared struct and so are left unread.
const spacemanMinSize = 204

func decodeSpaceman(raw objects.Raw) (types.SpacemanPhysT, error) {
	if raw.Type() != types.ObjectTypeSpaceman {
		return types.SpacemanPhysT{}, apfserr.New(apfserr.InvalidValue, "object is not a space manager record")
	}
	if len(raw.Body) < spacemanMinSize {
		return types.SpacemanPhysT{}, apfserr.New(apfserr.Truncated, "space manager record shorter than its fixed fields")
	}

	c := &cursor{b: raw.Body, i: types.ObjPhysSize}
	var s types.SpacemanPhysT
	s.SmO = raw.Header

	s.SmBlockSize = c.u32()
	s.SmBlocksPerChunk = c.u32()
	s.SmChunksPerCib = c.u32()
	s.SmCibsPerCab = c.u32()
	s.SmFsReserveBlockCount = c.u64()
	s.SmFsReserveAllocCount = c.u64()
	for i := range s.SmDevices {
		s.SmDevices[i] = decodeSmdev(c)
	}
	s.SmFlags = c.u32()
	s.SmIp = types.SpacemanFreeQueueT{
		SfqCount:         c.u64(),
		SfqTreeOid:       types.OidT(c.u64()),
		SfqOldestXid:     types.XidT(c.u64()),
		SfqTreeNodeLimit: c.u16(),
		SfqPad16:         c.u16(),
		SfqPad32:         c.u32(),
		SfqReserved:      c.u64(),
	}

	return s, nil
}

func decodeSmdev(c *cursor) types.SmdevT {
	return types.SmdevT{
		SmBlockCount: c.u64(),
		SmChunkCount: c.u64(),
		SmCibCount:   c.u32(),
		SmCabCount:   c.u32(),
		SmFreeCount:  c.u64(),
		SmAddrOffset: c.u32(),
		SmReserved:   c.u32(),
		SmReserved2:  c.u64(),
	}
}

// reaperMinSize is the number of bytes an NxReaperPhysT occupies, object
// header included.
const reaperMinSize = 88

func decodeReaper(raw objects.Raw) (types.NxReaperPhysT, error) {
	if raw.Type() != types.ObjectTypeNxReaper {
		return types.NxReaperPhysT{}, apfserr.New(apfserr.InvalidValue, "object is not a reaper record")
	}
	if len(raw.Body) < reaperMinSize {
		return types.NxReaperPhysT{}, apfserr.New(apfserr.Truncated, "reaper record shorter than its fixed fields")
	}

	c := &cursor{b: raw.Body, i: types.ObjPhysSize}
	var r types.NxReaperPhysT
	r.NrO = raw.Header

	r.NrNextReapId = c.u64()
	r.NrFlags = c.u32()
	r.NrRlcount = c.u32()
	r.NrType = c.u32()
	r.NrSize = c.u32()
	r.NrFsOid = types.OidT(c.u64())
	r.NrOid = types.OidT(c.u64())
	r.NrXid = types.XidT(c.u64())
	r.NrNrleFlags = c.u32()
	r.NrStateBufferSize = c.u32()

	return r, nil
}

// EfiJumpstart returns the container's EFI jumpstart record, if it has
// one (NxEfiJumpstart is zero on a container with no EFI boot support).
func (c *Container) EfiJumpstart() (*types.NxEfiJumpstartT, error) {
	if c.sb.NxEfiJumpstart == 0 {
		return nil, apfserr.New(apfserr.NotFound, "container has no EFI jumpstart record")
	}
	raw, err := c.loader.LoadPhysical(c.sb.NxEfiJumpstart)
	if err != nil {
		return nil, err
	}
	j, err := decodeEfiJumpstart(raw)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// SpaceManager returns the container's space manager record.
func (c *Container) SpaceManager() (*types.SpacemanPhysT, error) {
	raw, err := c.LoadObjectOid(c.sb.NxSpacemanOid, types.StorageEphemeral)
	if err != nil {
		return nil, err
	}
	s, err := decodeSpaceman(raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Reaper returns the container's reaper record.
func (c *Container) Reaper() (*types.NxReaperPhysT, error) {
	raw, err := c.LoadObjectOid(c.sb.NxReaperOid, types.StorageEphemeral)
	if err != nil {
		return nil, err
	}
	r, err := decodeReaper(raw)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FreeQueue opens the internal-pool free-space queue tree anchored off
// the space manager, which records which transaction freed which
// physical extent. Its tree, like the container's own object map, is a
// physical B-tree: node Oids address blocks directly.
func (c *Container) FreeQueue() (*btree.Tree[types.SfqKey, types.SfqVal], error) {
	sm, err := c.SpaceManager()
	if err != nil {
		return nil, err
	}
	if sm.SmIp.SfqTreeOid == types.OidInvalid {
		return nil, apfserr.New(apfserr.NotFound, "space manager has no internal-pool free-queue tree")
	}
	source := btree.PhysicalSource{Loader: c.loader}
	return btree.Open[types.SfqKey, types.SfqVal](source, sm.SmIp.SfqTreeOid, spaceman.FreeQueueSchema{})
}
