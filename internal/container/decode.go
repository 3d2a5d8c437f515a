package container

import "encoding/binary"

// cursor is a small little-endian reader used to decode the container and
// volume superblocks, which are too wide to address by hand-picked byte
// ranges without the offsets becoming unreadable.
type cursor struct {
	b []byte
	i int
}

func (c *cursor) u16() uint16 {
	v := binary.LittleEndian.Uint16(c.b[c.i:])
	c.i += 2
	return v
}

func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.b[c.i:])
	c.i += 4
	return v
}

func (c *cursor) u64() uint64 {
	v := binary.LittleEndian.Uint64(c.b[c.i:])
	c.i += 8
	return v
}

func (c *cursor) i64() int64 {
	return int64(c.u64())
}

func (c *cursor) bytes(n int) []byte {
	v := c.b[c.i : c.i+n]
	c.i += n
	return v
}

func (c *cursor) skip(n int) { c.i += n }
