package output

import (
	"bytes"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/ipc"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/silo/codec"
	"github.com/hupe1980/silo/query"
)

func testResult() *query.Result {
	return &query.Result{
		Fields: []query.Field{
			{Name: "country", Type: query.FieldString},
			{Name: "age", Type: query.FieldInt32},
			{Name: "qc", Type: query.FieldFloat},
			{Name: "test", Type: query.FieldBool},
			{Name: "date", Type: query.FieldDate},
			{Name: "count", Type: query.FieldInt64},
		},
		Rows: []query.Row{
			{"CH", int32(3), 0.5, true, "2021-03-01", int64(2)},
			{nil, nil, nil, nil, nil, int64(1)},
			{"quote \"x\"", int32(-1), 0.25, false, "2021-04-01", int64(7)},
		},
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   Format
	}{
		{"", NDJSON},
		{"*/*", NDJSON},
		{"application/x-ndjson", NDJSON},
		{"application/json", JSON},
		{"application/json; charset=utf-8", JSON},
		{"text/html, application/vnd.apache.arrow.stream;q=0.9", Arrow},
		{"text/html", NDJSON},
		{"application/json, application/x-ndjson", JSON},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			f := Negotiate(tt.accept)
			assert.Equal(t, tt.want, f)
		})
	}
	assert.Equal(t, "application/vnd.apache.arrow.stream", Arrow.ContentType())
	assert.Equal(t, "ndjson", NDJSON.String())
}

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestWriteNDJSON(t *testing.T) {
	var buf flushRecorder
	require.NoError(t, Write(&buf, NDJSON, testResult()))

	assert.Equal(t,
		`{"country":"CH","age":3,"qc":0.5,"test":true,"date":"2021-03-01","count":2}`+"\n"+
			`{"country":null,"age":null,"qc":null,"test":null,"date":null,"count":1}`+"\n"+
			`{"country":"quote \"x\"","age":-1,"qc":0.25,"test":false,"date":"2021-04-01","count":7}`+"\n",
		buf.String())
	assert.Equal(t, 3, buf.flushes)
}

func TestWriteJSON(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, JSON, testResult(), WithCodec(c)))

			var decoded struct {
				QueryResult []map[string]any `json:"queryResult"`
			}
			require.NoError(t, c.Unmarshal(buf.Bytes(), &decoded))
			require.Len(t, decoded.QueryResult, 3)
			assert.Equal(t, "CH", decoded.QueryResult[0]["country"])
			assert.Equal(t, 2.0, decoded.QueryResult[0]["count"])
			assert.Nil(t, decoded.QueryResult[1]["age"])
		})
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, JSON, &query.Result{Fields: []query.Field{{Name: "count", Type: query.FieldInt64}}}))
	assert.Equal(t, `{"queryResult":[]}`, buf.String())
}

func TestWriteRowMismatch(t *testing.T) {
	res := &query.Result{
		Fields: []query.Field{{Name: "count", Type: query.FieldInt64}},
		Rows:   []query.Row{{int64(1), "extra"}},
	}
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, NDJSON, res))
	assert.Error(t, Write(&buf, Arrow, res))
}

func TestWriteArrow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Arrow, testResult(), WithBatchSize(2)))

	r, err := ipc.NewReader(&buf, ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Release()

	schema := r.Schema()
	require.Equal(t, 6, len(schema.Fields()))
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(0).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Int32, schema.Field(1).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Int64, schema.Field(5).Type)
	assert.True(t, schema.Field(1).Nullable)

	var batches []int64
	var countries []string
	var counts []int64
	for r.Next() {
		rec := r.Record()
		batches = append(batches, rec.NumRows())
		country := rec.Column(0).(*array.String)
		count := rec.Column(5).(*array.Int64)
		for i := 0; i < int(rec.NumRows()); i++ {
			if country.IsNull(i) {
				countries = append(countries, "<null>")
			} else {
				countries = append(countries, country.Value(i))
			}
			counts = append(counts, count.Value(i))
		}
	}
	require.NoError(t, r.Err())

	assert.Equal(t, []int64{2, 1}, batches)
	assert.Equal(t, []string{"CH", "<null>", "quote \"x\""}, countries)
	assert.Equal(t, []int64{2, 1, 7}, counts)
}

func TestWriteArrowEmpty(t *testing.T) {
	var buf bytes.Buffer
	res := &query.Result{Fields: []query.Field{{Name: "count", Type: query.FieldInt64}}}
	require.NoError(t, Write(&buf, Arrow, res))

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()
	assert.Equal(t, "count", r.Schema().Field(0).Name)
	assert.False(t, r.Next())
}
