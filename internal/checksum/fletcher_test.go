package checksum

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFletcher64SelfVerifies(t *testing.T) {
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}

	sum := Fletcher64(payload)
	binary.LittleEndian.PutUint64(payload[:8], sum)

	assert.True(t, Verify(payload))
}

func TestFletcher64AllZero(t *testing.T) {
	block := make([]byte, 4096)
	sum := Fletcher64(block)
	binary.LittleEndian.PutUint64(block[:8], sum)

	require.True(t, Verify(block))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}
	sum := Fletcher64(payload)
	binary.LittleEndian.PutUint64(payload[:8], sum)

	payload[32] ^= 0xff
	assert.False(t, Verify(payload))
}

func TestVerifyRejectsShortBuffer(t *testing.T) {
	assert.False(t, Verify([]byte{1, 2, 3}))
}
