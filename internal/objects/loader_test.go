package objects

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/penguin359/apfsreader/internal/blockio"
	"github.com/penguin359/apfsreader/internal/checksum"
	"github.com/penguin359/apfsreader/internal/types"
)

// memSource is a trivial in-memory blockio.ByteSource used for tests.
type memSource struct{ data []byte }

func (m *memSource) ReadAt(buf []byte, off int64) (int, error) {
	n := copy(buf, m.data[off:])
	return n, nil
}

func (m *memSource) Size() int64 { return int64(len(m.data)) }

func sealedBlock(oid types.OidT, xid types.XidT, objType uint32) []byte {
	block := make([]byte, 4096)
	binary.LittleEndian.PutUint64(block[8:16], uint64(oid))
	binary.LittleEndian.PutUint64(block[16:24], uint64(xid))
	binary.LittleEndian.PutUint32(block[24:28], objType)
	sum := checksum.Fletcher64(block)
	binary.LittleEndian.PutUint64(block[0:8], sum)
	return block
}

func newTestDevice(t *testing.T, blocks ...[]byte) *blockio.Device {
	t.Helper()
	var data []byte
	for _, b := range blocks {
		data = append(data, b...)
	}
	dev, err := blockio.NewDevice(&memSource{data: data}, 4096)
	require.NoError(t, err)
	return dev
}

func TestLoadPhysicalValidObject(t *testing.T) {
	block := sealedBlock(42, 7, types.ObjectTypeOmap)
	dev := newTestDevice(t, block)
	loader := NewLoader(dev)

	raw, err := loader.LoadPhysical(0)
	require.NoError(t, err)
	require.Equal(t, types.OidT(42), raw.Header.OOid)
	require.Equal(t, types.XidT(7), raw.Header.OXid)
	require.Equal(t, uint32(types.ObjectTypeOmap), raw.Type())
}

func TestLoadPhysicalRejectsCorruption(t *testing.T) {
	block := sealedBlock(42, 7, types.ObjectTypeOmap)
	block[100] ^= 0xff
	dev := newTestDevice(t, block)
	loader := NewLoader(dev)

	_, err := loader.LoadPhysical(0)
	require.Error(t, err)
}

func TestLoadEphemeralResolvesThroughIndex(t *testing.T) {
	block0 := sealedBlock(1, 1, types.ObjectTypeNxSuperblock)
	block1 := sealedBlock(99, 3, types.ObjectTypeSpaceman)
	dev := newTestDevice(t, block0, block1)
	loader := NewLoader(dev)

	idx := EphemeralIndex{types.OidT(99): 1}
	raw, err := loader.LoadEphemeral(99, idx)
	require.NoError(t, err)
	require.Equal(t, types.OidT(99), raw.Header.OOid)
}

func TestLoadEphemeralMissingFromIndex(t *testing.T) {
	block := sealedBlock(1, 1, types.ObjectTypeNxSuperblock)
	dev := newTestDevice(t, block)
	loader := NewLoader(dev)

	_, err := loader.LoadEphemeral(5, EphemeralIndex{})
	require.Error(t, err)
}
