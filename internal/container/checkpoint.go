package container

import (
	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/objects"
	"github.com/penguin359/apfsreader/internal/types"
)

func decodeCheckpointMap(raw objects.Raw) (types.CheckpointMapPhysT, error) {
	if len(raw.Body) < types.ObjPhysSize+8 {
		return types.CheckpointMapPhysT{}, apfserr.New(apfserr.Truncated, "checkpoint map shorter than its fixed fields")
	}
	c := &cursor{b: raw.Body, i: types.ObjPhysSize}
	var m types.CheckpointMapPhysT
	m.CpmFlags = c.u32()
	m.CpmCount = c.u32()

	m.CpmMap = make([]types.CheckpointMappingT, m.CpmCount)
	for i := range m.CpmMap {
		if c.i+types.CheckpointMappingSize > len(raw.Body) {
			return types.CheckpointMapPhysT{}, apfserr.New(apfserr.Truncated, "checkpoint map entry runs past object body")
		}
		m.CpmMap[i] = types.CheckpointMappingT{
			CpmType:    c.u32(),
			CpmSubtype: c.u32(),
			CpmSize:    c.u32(),
			CpmPad:     c.u32(),
			CpmFsOid:   types.OidT(c.u64()),
			CpmOid:     types.OidT(c.u64()),
			CpmPaddr:   types.Paddr(c.i64()),
		}
	}
	return m, nil
}

// buildEphemeralIndex scans the checkpoint-data area for checkpoint-map
// objects, collecting the physical address each ephemeral Oid (the space
// manager, the reaper, and their satellite objects) currently lives at.
// A container whose checkpoint-descriptor or data area is addressed
// indirectly through a B-tree (the Fusion-drive case) is not supported.
func buildEphemeralIndex(loader *objects.Loader, sb types.NxSuperblockT) (objects.EphemeralIndex, error) {
	if sb.NxXpDescBlocks&types.NxXpDescAreaIsTreeFlag != 0 || sb.NxXpDataBlocks&types.NxXpDescAreaIsTreeFlag != 0 {
		return nil, apfserr.New(apfserr.Unsupported, "tree-indirect checkpoint areas are not supported")
	}

	count := sb.NxXpDataBlocks & types.NxXpBlockCountMask
	idx := objects.EphemeralIndex{}

	for i := uint32(0); i < count; i++ {
		paddr := sb.NxXpDataBase + types.Paddr(i)
		raw, err := loader.LoadPhysical(paddr)
		if err != nil {
			continue
		}
		if raw.Type() != types.ObjectTypeCheckpointMap {
			continue
		}
		m, err := decodeCheckpointMap(raw)
		if err != nil {
			continue
		}
		for _, mapping := range m.CpmMap {
			idx[mapping.CpmOid] = mapping.CpmPaddr
		}
		if m.CpmFlags&types.CpmtFlagLast != 0 {
			break
		}
	}

	return idx, nil
}
