package spaceman

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/penguin359/apfsreader/internal/types"
)

func TestDecodeKey(t *testing.T) {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], 7)
	binary.LittleEndian.PutUint64(b[8:16], 100)

	var s FreeQueueSchema
	key, err := s.DecodeKey(b)
	require.NoError(t, err)
	require.Equal(t, types.XidT(7), key.SfqkXid)
	require.Equal(t, types.Paddr(100), key.SfqkPaddr)
}

func TestDecodeValue(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, 4)

	var s FreeQueueSchema
	v, err := s.DecodeValue(types.SfqKey{}, b)
	require.NoError(t, err)
	require.Equal(t, uint64(4), v.SfqvCount)
}

func TestCompareOrdersByXidThenPaddr(t *testing.T) {
	var s FreeQueueSchema
	require.Equal(t, -1, s.Compare(
		types.SfqKey{SfqkXid: 1, SfqkPaddr: 100},
		types.SfqKey{SfqkXid: 2, SfqkPaddr: 0},
	))
	require.Equal(t, -1, s.Compare(
		types.SfqKey{SfqkXid: 5, SfqkPaddr: 10},
		types.SfqKey{SfqkXid: 5, SfqkPaddr: 20},
	))
	require.Equal(t, 0, s.Compare(
		types.SfqKey{SfqkXid: 5, SfqkPaddr: 10},
		types.SfqKey{SfqkXid: 5, SfqkPaddr: 10},
	))
}

func TestMatchesRequiresExactKey(t *testing.T) {
	var s FreeQueueSchema
	a := types.SfqKey{SfqkXid: 1, SfqkPaddr: 2}
	b := types.SfqKey{SfqkXid: 1, SfqkPaddr: 3}
	require.True(t, s.Matches(a, a))
	require.False(t, s.Matches(a, b))
}
