package snapshot

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the codec applied to the body of a partition file.
type Compression uint8

const (
	// CompressionNone stores the body as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 frames (fast, moderate ratio).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses zstd frames (better ratio, the default).
	CompressionZstd Compression = 2
)

var compressionNames = map[Compression]string{
	CompressionNone: "none",
	CompressionLZ4:  "lz4",
	CompressionZstd: "zstd",
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// ParseCompression parses a name as returned by String.
func ParseCompression(s string) (Compression, error) {
	for c, name := range compressionNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("snapshot: unknown compression %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) {
	if _, ok := compressionNames[c]; !ok {
		return nil, fmt.Errorf("snapshot: unknown compression %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(b []byte) error {
	v, err := ParseCompression(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

var zstdDecoderPool sync.Pool

func getZstdDecoder(r io.Reader) (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		dec := v.(*zstd.Decoder)
		if err := dec.Reset(r); err != nil {
			return nil, err
		}
		return dec, nil
	}
	return zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
}

type zstdReadCloser struct {
	*zstd.Decoder
}

// Close returns the decoder to the pool instead of releasing it.
func (z zstdReadCloser) Close() error {
	_ = z.Decoder.Reset(nil)
	zstdDecoderPool.Put(z.Decoder)
	return nil
}

// compressWriter wraps w with the encoder of c. Closing the returned writer
// flushes the encoder but does not close w.
func compressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	}
	return nil, fmt.Errorf("snapshot: unknown compression %d", uint8(c))
}

// decompressReader wraps r with the decoder of c.
func decompressReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionZstd:
		dec, err := getZstdDecoder(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	}
	return nil, fmt.Errorf("snapshot: unknown compression %d", uint8(c))
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
