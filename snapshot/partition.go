package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/silo/storage"
)

// Partition files start with a fixed header:
//
//	magic       [8]byte  "SILOPART"
//	version     uint16   little endian
//	compression uint8
//
// followed by the (compressed) body written by storage.Partition.WriteTo.
const (
	partitionMagic   = "SILOPART"
	partitionVersion = uint16(1)
	headerSize       = len(partitionMagic) + 2 + 1
)

var (
	// ErrBadMagic is returned for files that are not partition files.
	ErrBadMagic = errors.New("snapshot: not a partition file")
	// ErrUnsupportedVersion is returned for partition files of a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported partition format version")
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WritePartition writes p as a partition file compressed with c and returns
// the number of bytes written.
func WritePartition(w io.Writer, p *storage.Partition, c Compression) (int64, error) {
	cw := &countingWriter{w: w}

	var header [headerSize]byte
	copy(header[:], partitionMagic)
	binary.LittleEndian.PutUint16(header[len(partitionMagic):], partitionVersion)
	header[headerSize-1] = byte(c)
	if _, err := cw.Write(header[:]); err != nil {
		return cw.n, err
	}

	body, err := compressWriter(cw, c)
	if err != nil {
		return cw.n, err
	}
	if _, err := p.WriteTo(body); err != nil {
		_ = body.Close()
		return cw.n, err
	}
	if err := body.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ReadPartition decodes a partition file written by WritePartition.
func ReadPartition(data []byte, schema *storage.Schema) (*storage.Partition, error) {
	if len(data) < headerSize || string(data[:len(partitionMagic)]) != partitionMagic {
		return nil, fmt.Errorf("%w: %w", storage.ErrCorrupt, ErrBadMagic)
	}
	if v := binary.LittleEndian.Uint16(data[len(partitionMagic):]); v != partitionVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	c := Compression(data[headerSize-1])

	body, err := decompressReader(bytes.NewReader(data[headerSize:]), c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCorrupt, err)
	}
	defer body.Close()

	return storage.ReadPartition(body, schema)
}
