package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/hupe1980/silo/codec"
	"github.com/hupe1980/silo/query"
)

// DefaultBatchSize is the maximum number of rows per Arrow record.
const DefaultBatchSize = 1024

type options struct {
	batchSize int
	codec     codec.Codec
}

// Option configures Write.
type Option func(*options)

// WithBatchSize sets the number of rows per Arrow record batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithCodec sets the codec used for JSON values.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

type flusher interface {
	Flush()
}

// Write serializes res to w in format f. For NDJSON every row is flushed
// as soon as it is written when w supports flushing.
func Write(w io.Writer, f Format, res *query.Result, opts ...Option) error {
	o := options{batchSize: DefaultBatchSize, codec: codec.Default}
	for _, fn := range opts {
		fn(&o)
	}

	switch f {
	case NDJSON:
		return writeNDJSON(w, res, o.codec)
	case JSON:
		return writeJSON(w, res, o.codec)
	case Arrow:
		return writeArrow(w, res, o.batchSize)
	}
	return fmt.Errorf("output: unknown format %d", f)
}

func writeNDJSON(w io.Writer, res *query.Result, c codec.Codec) error {
	enc, err := newRowEncoder(res.Fields, c)
	if err != nil {
		return err
	}
	fl, _ := w.(flusher)

	var buf []byte
	for _, row := range res.Rows {
		buf, err = enc.append(buf[:0], row)
		if err != nil {
			return err
		}
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
		if fl != nil {
			fl.Flush()
		}
	}
	return nil
}

func writeJSON(w io.Writer, res *query.Result, c codec.Codec) error {
	enc, err := newRowEncoder(res.Fields, c)
	if err != nil {
		return err
	}

	buf := append(make([]byte, 0, 4096), `{"queryResult":[`...)
	for i, row := range res.Rows {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf, err = enc.append(buf, row)
		if err != nil {
			return err
		}
		if len(buf) >= 64<<10 {
			if _, err := w.Write(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	buf = append(buf, "]}"...)
	_, err = w.Write(buf)
	return err
}

// rowEncoder writes rows as JSON objects with keys in field order.
type rowEncoder struct {
	keys  [][]byte
	codec codec.Codec
}

func newRowEncoder(fields []query.Field, c codec.Codec) (*rowEncoder, error) {
	keys := make([][]byte, len(fields))
	for i, f := range fields {
		k, err := c.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		keys[i] = append(k, ':')
	}
	return &rowEncoder{keys: keys, codec: c}, nil
}

func (e *rowEncoder) append(dst []byte, row query.Row) ([]byte, error) {
	if len(row) != len(e.keys) {
		return nil, fmt.Errorf("output: row has %d values for %d fields", len(row), len(e.keys))
	}
	dst = append(dst, '{')
	for i, v := range row {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, e.keys[i]...)

		switch x := v.(type) {
		case nil:
			dst = append(dst, "null"...)
		case bool:
			dst = strconv.AppendBool(dst, x)
		case int32:
			dst = strconv.AppendInt(dst, int64(x), 10)
		case int64:
			dst = strconv.AppendInt(dst, x, 10)
		default:
			b, err := e.codec.Marshal(x)
			if err != nil {
				return nil, err
			}
			dst = append(dst, b...)
		}
	}
	return append(dst, '}'), nil
}
