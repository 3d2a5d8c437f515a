// Package spaceman implements the key/value schema for a container's
// space-manager free-space queues: the B-trees, anchored off the space
// manager's internal-pool queue header, that record which transaction
// freed which physical extent.
package spaceman

import (
	"encoding/binary"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/btree"
	"github.com/penguin359/apfsreader/internal/types"
)

// FreeQueueSchema implements btree.Schema[types.SfqKey, types.SfqVal] for
// one of the space manager's free-space queue trees.
type FreeQueueSchema struct{}

func (FreeQueueSchema) DecodeKey(b []byte) (types.SfqKey, error) {
	if len(b) < 16 {
		return types.SfqKey{}, apfserr.New(apfserr.Truncated, "free-queue key shorter than its fixed fields")
	}
	return types.SfqKey{
		SfqkXid:   types.XidT(binary.LittleEndian.Uint64(b[0:8])),
		SfqkPaddr: types.Paddr(binary.LittleEndian.Uint64(b[8:16])),
	}, nil
}

func (FreeQueueSchema) DecodeValue(_ types.SfqKey, b []byte) (types.SfqVal, error) {
	if len(b) < 8 {
		return types.SfqVal{}, apfserr.New(apfserr.Truncated, "free-queue value shorter than its fixed fields")
	}
	return types.SfqVal{SfqvCount: binary.LittleEndian.Uint64(b[0:8])}, nil
}

// Compare orders free-queue keys by transaction id first, then by the
// freed extent's starting physical address, matching on-disk order.
func (FreeQueueSchema) Compare(a, b types.SfqKey) int {
	switch {
	case a.SfqkXid != b.SfqkXid:
		if a.SfqkXid < b.SfqkXid {
			return -1
		}
		return 1
	case a.SfqkPaddr < b.SfqkPaddr:
		return -1
	case a.SfqkPaddr > b.SfqkPaddr:
		return 1
	default:
		return 0
	}
}

// Matches requires an exact key match.
func (FreeQueueSchema) Matches(candidate, search types.SfqKey) bool { return candidate == search }

var _ btree.Schema[types.SfqKey, types.SfqVal] = FreeQueueSchema{}
