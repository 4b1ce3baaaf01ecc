package silo

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/silo/codec"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, codec.Default.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerLogQuery(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, slog.LevelDebug).WithRequestID("req-1")
	ctx := context.Background()

	l.LogQuery(ctx, "Aggregated", "1700000000", 3, time.Millisecond, nil)
	l.LogQuery(ctx, "Mutations", "1700000000", 0, time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "query completed", lines[0]["msg"])
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, "req-1", lines[0]["requestId"])
	assert.Equal(t, float64(3), lines[0]["rows"])
	assert.Equal(t, "query failed", lines[1]["msg"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, slog.LevelInfo)
	ctx := context.Background()

	l.LogQuery(ctx, "Aggregated", "1", 1, time.Millisecond, nil)
	l.LogSnapshotSwap(ctx, "", "1", 2)
	l.LogSnapshotLoad(ctx, "snapshots/1", time.Second, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "snapshot swapped", lines[0]["msg"])
	assert.Equal(t, "1", lines[0]["to"])
	assert.Equal(t, "snapshot loaded", lines[1]["msg"])
}

func TestNoopLogger(t *testing.T) {
	l := NoopLogger()
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogSnapshotLoad(context.Background(), "x", 0, errors.New("ignored"))
}
