// Package checksum implements the Fletcher-64 variant used to validate
// every object on disk in an APFS container.
package checksum

// Fletcher64 computes the APFS variant of a Fletcher-64 checksum over data,
// whose first 8 bytes (the object's o_cksum field) must be zero when
// verifying an existing object, or are ignored and treated as zero when
// computing a checksum to store. data's length must be a multiple of 4.
//
// The algorithm runs two 32-bit running sums over the input viewed as
// little-endian uint32 words, each reduced modulo 2^32-1, then combines
// them so that overwriting the first 8 bytes of data with the result and
// recomputing yields sum1 == sum2 == 0. This is the standard finalization
// step; a plain concatenation of the two running sums (without it) does
// not have that self-verifying property.
func Fletcher64(data []byte) uint64 {
	const mod = 0xffffffff // 2^32 - 1

	var sum1, sum2 uint64
	for i := 8; i+4 <= len(data); i += 4 {
		word := uint64(data[i]) | uint64(data[i+1])<<8 | uint64(data[i+2])<<16 | uint64(data[i+3])<<24
		sum1 = (sum1 + word) % mod
		sum2 = (sum2 + sum1) % mod
	}

	c1 := mod - (sum1+sum2)%mod
	c2 := mod - (sum1+c1)%mod

	return c2<<32 | c1
}

// Verify reports whether data's stored checksum (its first 8 bytes,
// little-endian) matches the Fletcher-64 checksum of the rest of the block
// when that field is treated as zero.
func Verify(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	stored := uint64(data[0]) | uint64(data[1])<<8 | uint64(data[2])<<16 | uint64(data[3])<<24 |
		uint64(data[4])<<32 | uint64(data[5])<<40 | uint64(data[6])<<48 | uint64(data[7])<<56

	zeroed := make([]byte, len(data))
	copy(zeroed, data)
	for i := 0; i < 8; i++ {
		zeroed[i] = 0
	}
	return Fletcher64(zeroed) == stored
}
