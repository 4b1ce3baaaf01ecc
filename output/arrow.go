package output

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/ipc"
	"github.com/apache/arrow/go/v15/arrow/memory"

	"github.com/hupe1980/silo/query"
)

// ArrowSchema maps result fields to a nullable Arrow schema. Dates are
// written as utf8.
func ArrowSchema(fields []query.Field) *arrow.Schema {
	out := make([]arrow.Field, len(fields))
	for i, f := range fields {
		out[i] = arrow.Field{Name: f.Name, Type: arrowType(f.Type), Nullable: true}
	}
	return arrow.NewSchema(out, nil)
}

func arrowType(t query.FieldType) arrow.DataType {
	switch t {
	case query.FieldInt32:
		return arrow.PrimitiveTypes.Int32
	case query.FieldInt64:
		return arrow.PrimitiveTypes.Int64
	case query.FieldFloat:
		return arrow.PrimitiveTypes.Float64
	case query.FieldBool:
		return arrow.FixedWidthTypes.Boolean
	}
	return arrow.BinaryTypes.String
}

func writeArrow(w io.Writer, res *query.Result, batchSize int) error {
	mem := memory.NewGoAllocator()
	schema := ArrowSchema(res.Fields)

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for start := 0; start < len(res.Rows); start += batchSize {
		end := min(start+batchSize, len(res.Rows))
		for _, row := range res.Rows[start:end] {
			if err := appendArrowRow(b, row); err != nil {
				_ = writer.Close()
				return err
			}
		}
		rec := b.NewRecord()
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			_ = writer.Close()
			return fmt.Errorf("output: write arrow record: %w", err)
		}
	}
	return writer.Close()
}

func appendArrowRow(b *array.RecordBuilder, row query.Row) error {
	if len(row) != len(b.Fields()) {
		return fmt.Errorf("output: row has %d values for %d fields", len(row), len(b.Fields()))
	}
	for i, v := range row {
		fb := b.Field(i)
		if v == nil {
			fb.AppendNull()
			continue
		}
		ok := true
		switch fb := fb.(type) {
		case *array.StringBuilder:
			var s string
			s, ok = v.(string)
			fb.Append(s)
		case *array.Int32Builder:
			var n int32
			n, ok = v.(int32)
			fb.Append(n)
		case *array.Int64Builder:
			var n int64
			n, ok = v.(int64)
			fb.Append(n)
		case *array.Float64Builder:
			var f float64
			f, ok = v.(float64)
			fb.Append(f)
		case *array.BooleanBuilder:
			var x bool
			x, ok = v.(bool)
			fb.Append(x)
		default:
			return fmt.Errorf("output: unsupported arrow builder %T", fb)
		}
		if !ok {
			return fmt.Errorf("output: value %v (%T) does not match column %d", v, v, i)
		}
	}
	return nil
}
