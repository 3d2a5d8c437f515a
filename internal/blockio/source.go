// Package blockio provides read-only, random-access block addressing over
// a container's backing byte source.
package blockio

import (
	"os"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/types"
)

// SupportedBlockSizes lists the logical block sizes this reader understands.
var SupportedBlockSizes = []uint32{4096, 16384}

// ByteSource is anything a container can be read from at arbitrary byte
// offsets. Implementations must be safe for concurrent use by multiple
// goroutines, since concurrent callers must not share a single seek
// position.
type ByteSource interface {
	// ReadAt reads len(buf) bytes starting at byte offset off. It returns
	// an error if fewer bytes were read than requested.
	ReadAt(buf []byte, off int64) (int, error)

	// Size returns the total size of the source, in bytes.
	Size() int64
}

// FileSource is a ByteSource backed by an *os.File, opened read-only.
type FileSource struct {
	file *os.File
	size int64
}

// OpenFile opens path read-only as a FileSource.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apfserr.Wrap(apfserr.IoError, "opening "+path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apfserr.Wrap(apfserr.IoError, "statting "+path, err)
	}
	return &FileSource{file: f, size: info.Size()}, nil
}

func (s *FileSource) ReadAt(buf []byte, off int64) (int, error) {
	n, err := s.file.ReadAt(buf, off)
	if err != nil {
		return n, apfserr.Wrap(apfserr.IoError, "reading file", err)
	}
	return n, nil
}

func (s *FileSource) Size() int64 { return s.size }

// Close releases the underlying file handle.
func (s *FileSource) Close() error { return s.file.Close() }

// Device wraps a ByteSource with a fixed logical block size, providing the
// block-addressed reads every other package in this reader builds on.
type Device struct {
	src       ByteSource
	blockSize uint32
}

// NewDevice returns a Device reading src in units of blockSize bytes.
// blockSize must be one of SupportedBlockSizes.
func NewDevice(src ByteSource, blockSize uint32) (*Device, error) {
	ok := false
	for _, s := range SupportedBlockSizes {
		if s == blockSize {
			ok = true
			break
		}
	}
	if !ok {
		return nil, apfserr.New(apfserr.Unsupported, "unsupported block size")
	}
	return &Device{src: src, blockSize: blockSize}, nil
}

// BlockSize returns the device's logical block size.
func (d *Device) BlockSize() uint32 { return d.blockSize }

// TotalBlocks returns the number of whole blocks available on the device.
func (d *Device) TotalBlocks() uint64 {
	return uint64(d.src.Size()) / uint64(d.blockSize)
}

// IsValidAddress reports whether addr is within the device's bounds.
func (d *Device) IsValidAddress(addr types.Paddr) bool {
	return addr.Valid() && uint64(addr) < d.TotalBlocks()
}

// ReadBlock reads one logical block at addr.
func (d *Device) ReadBlock(addr types.Paddr) ([]byte, error) {
	return d.ReadBlockRange(addr, 1)
}

// ReadBlockRange reads count consecutive logical blocks starting at addr.
func (d *Device) ReadBlockRange(addr types.Paddr, count uint32) ([]byte, error) {
	if !addr.Valid() || count == 0 {
		return nil, apfserr.New(apfserr.OutOfRange, "invalid block range")
	}
	start := int64(addr) * int64(d.blockSize)
	length := int64(count) * int64(d.blockSize)
	if start < 0 || start+length > d.src.Size() {
		return nil, apfserr.New(apfserr.OutOfRange, "block range exceeds device size")
	}

	buf := make([]byte, length)
	if _, err := d.src.ReadAt(buf, start); err != nil {
		return nil, apfserr.Wrap(apfserr.IoError, "reading block range", err)
	}
	return buf, nil
}
