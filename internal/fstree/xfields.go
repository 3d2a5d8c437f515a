package fstree

import (
	"encoding/binary"

	"github.com/penguin359/apfsreader/internal/apfserr"
	"github.com/penguin359/apfsreader/internal/types"
)

// xfieldHeaderSize is the size of an xf_blob_t's fixed header
// (xf_num_exts, xf_used_data), before its x_field_t descriptor table.
const xfieldHeaderSize = 4

// xfieldEntrySize is the size of one x_field_t descriptor (type, flags,
// size), not counting the data it describes.
const xfieldEntrySize = 4

// DecodeXFields parses an inode or directory-entry value's extended-field
// blob (xf_blob_t) into its individual (type, flags, data) entries. Each
// entry's data is padded up to the next 8-byte boundary on disk; the
// returned XField.Data is trimmed to its declared, unpadded size.
func DecodeXFields(b []byte) ([]types.XField, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b) < xfieldHeaderSize {
		return nil, apfserr.New(apfserr.Truncated, "extended-field blob shorter than its header")
	}

	numExts := int(binary.LittleEndian.Uint16(b[0:2]))
	tableEnd := xfieldHeaderSize + numExts*xfieldEntrySize
	if len(b) < tableEnd {
		return nil, apfserr.New(apfserr.Truncated, "extended-field blob missing its descriptor table")
	}

	fields := make([]types.XField, numExts)
	dataOff := tableEnd
	for i := 0; i < numExts; i++ {
		hdr := b[xfieldHeaderSize+i*xfieldEntrySize:]
		size := int(binary.LittleEndian.Uint16(hdr[2:4]))
		if dataOff+size > len(b) {
			return nil, apfserr.New(apfserr.Truncated, "extended-field data runs past its blob")
		}
		fields[i] = types.XField{
			Type:  hdr[0],
			Flags: hdr[1],
			Data:  b[dataOff : dataOff+size],
		}
		dataOff += size
		if pad := dataOff % 8; pad != 0 {
			dataOff += 8 - pad
		}
	}
	return fields, nil
}

// LookupXField returns the first field of the given type, if present.
func LookupXField(fields []types.XField, typ uint8) (types.XField, bool) {
	for _, f := range fields {
		if f.Type == typ {
			return f, true
		}
	}
	return types.XField{}, false
}

// DefaultDstream decodes an inode's embedded default data-stream record
// (INO_EXT_TYPE_DSTREAM), present when a file's size and allocation info
// is stored directly on the inode rather than in a separate dstream-id
// record.
func DefaultDstream(fields []types.XField) (*types.JDstreamT, bool) {
	f, ok := LookupXField(fields, types.InoExtTypeDstream)
	if !ok || len(f.Data) < types.JDstreamSize {
		return nil, false
	}
	return &types.JDstreamT{
		Size:              binary.LittleEndian.Uint64(f.Data[0:8]),
		AllocedSize:       binary.LittleEndian.Uint64(f.Data[8:16]),
		DefaultCryptoId:   binary.LittleEndian.Uint64(f.Data[16:24]),
		TotalBytesWritten: binary.LittleEndian.Uint64(f.Data[24:32]),
		TotalBytesRead:    binary.LittleEndian.Uint64(f.Data[32:40]),
	}, true
}
