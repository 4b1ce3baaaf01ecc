package silo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/silo/apierr"
	"github.com/hupe1980/silo/blobstore"
	"github.com/hupe1980/silo/query"
	"github.com/hupe1980/silo/resource"
	"github.com/hupe1980/silo/snapshot"
	"github.com/hupe1980/silo/storage"
	"github.com/hupe1980/silo/testutil"
)

const countAll = `{"filterExpression":{"type":"True"},"action":{"type":"Aggregated"}}`

func newTestSnapshot(t testing.TB, version string, n, partitions int) (*snapshot.Snapshot, *testutil.Dataset) {
	t.Helper()
	d, err := testutil.NewDataset(42, n, partitions)
	require.NoError(t, err)
	return &snapshot.Snapshot{
		DataVersion: version,
		Schema:      d.Schema,
		Partitions:  d.Partitions,
		Lineages:    d.Lineages,
	}, d
}

func TestQuery(t *testing.T) {
	snap, _ := newTestSnapshot(t, "1700000000", 100, 1)
	metrics := &BasicMetricsCollector{}
	db := New(snap, WithWorkers(2), WithMetricsCollector(metrics))
	defer db.Close()

	resp, err := db.Query(context.Background(), []byte(countAll))
	require.NoError(t, err)
	assert.Equal(t, "1700000000", resp.DataVersion)
	assert.Equal(t, query.Row{int64(100)}, resp.Rows[0])

	_, err = db.Query(context.Background(), []byte(`{"filterExpression":{"type":"True"}}`))
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.BadRequest))
	assert.Equal(t, "Query json must contain filterExpression and action.", err.Error())

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.QueryCount)
	assert.Equal(t, int64(1), stats.QueryErrors)
	assert.Equal(t, int64(1), stats.RowsReturned)
	assert.Equal(t, int64(1), stats.SnapshotSwaps)
}

func TestQueryMatchesBruteForce(t *testing.T) {
	snap, d := newTestSnapshot(t, "1", 300, 4)
	db := New(snap, WithWorkers(3))
	defer db.Close()

	resp, err := db.Query(context.Background(), []byte(
		`{"filterExpression":{"type":"IntBetween","column":"age","from":20,"to":60},`+
			`"action":{"type":"Aggregated","groupByFields":["country"]}}`))
	require.NoError(t, err)

	want := make(map[any]int64)
	for _, row := range d.Rows {
		age, ok := row.Values["age"].(int)
		if !ok || age < 20 || age > 60 {
			continue
		}
		country, ok := row.Values["country"]
		if !ok {
			country = nil
		}
		want[country]++
	}

	got := make(map[any]int64)
	for _, row := range resp.Rows {
		got[row[0]] = row[1].(int64)
	}
	assert.Equal(t, want, got, d.Describe())
}

func TestQueryWithoutSnapshot(t *testing.T) {
	db := New(nil)
	defer db.Close()

	_, err := db.Query(context.Background(), []byte(countAll))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.True(t, apierr.IsKind(err, apierr.Unavailable))
	assert.Equal(t, "Database not initialized yet.", err.Error())
	assert.Empty(t, db.DataVersion())

	_, err = db.Info()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestQueryAdmission(t *testing.T) {
	snap, _ := newTestSnapshot(t, "1", 10, 1)
	rc := resource.NewController(resource.Config{MaxConcurrentQueries: 1})
	metrics := &BasicMetricsCollector{}
	db := New(snap, WithResourceController(rc), WithMetricsCollector(metrics))
	defer db.Close()

	release, err := rc.Admit(context.Background())
	require.NoError(t, err)

	_, err = db.Query(context.Background(), []byte(countAll))
	require.Error(t, err)
	assert.ErrorIs(t, err, resource.ErrOverloaded)
	assert.True(t, apierr.IsKind(err, apierr.Unavailable))
	assert.Equal(t, int64(1), metrics.GetStats().RejectedCount)

	release()
	_, err = db.Query(context.Background(), []byte(countAll))
	require.NoError(t, err)
	assert.Zero(t, rc.InFlight())
}

func TestQueryCanceled(t *testing.T) {
	snap, _ := newTestSnapshot(t, "1", 10, 2)
	db := New(snap)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := db.Query(ctx, []byte(countAll))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSwap(t *testing.T) {
	first, _ := newTestSnapshot(t, "1", 10, 1)
	second, _ := newTestSnapshot(t, "2", 20, 2)
	db := New(first)
	defer db.Close()

	captured, err := db.Snapshot()
	require.NoError(t, err)

	db.Swap(second)
	assert.Equal(t, "2", db.DataVersion())
	assert.Equal(t, "1", captured.DataVersion)

	resp, err := db.Query(context.Background(), []byte(countAll))
	require.NoError(t, err)
	assert.Equal(t, "2", resp.DataVersion)
	assert.Equal(t, int64(20), resp.Rows[0][0])
}

func TestOpenAndRefresh(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	db, err := Open(ctx, store)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Query(ctx, []byte(countAll))
	assert.ErrorIs(t, err, ErrNoSnapshot)

	snap, _ := newTestSnapshot(t, "1700000001", 40, 2)
	_, err = snapshot.Write(ctx, store, snap)
	require.NoError(t, err)

	ok, err := db.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1700000001", db.DataVersion())

	ok, err = db.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	resp, err := db.Query(ctx, []byte(countAll))
	require.NoError(t, err)
	assert.Equal(t, int64(40), resp.Rows[0][0])
}

func TestOpenExisting(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())
	snap, _ := newTestSnapshot(t, "1700000002", 30, 3)
	_, err := snapshot.Write(ctx, store, snap, snapshot.WithCompression(snapshot.CompressionLZ4))
	require.NoError(t, err)

	rc := resource.NewController(resource.Config{MaxConcurrentQueries: 4, LoadBytesPerSec: 1 << 30})
	db, err := Open(ctx, store, WithLoadConcurrency(2), WithResourceController(rc))
	require.NoError(t, err)
	defer db.Close()

	info, err := db.Info()
	require.NoError(t, err)
	assert.Equal(t, "1700000002", info.DataVersion)
	assert.Equal(t, uint64(30), info.SequenceCount)
	assert.Equal(t, 3, info.NumberOfPartitions)
}

func TestOpenCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	snap, _ := newTestSnapshot(t, "1", 10, 1)
	m, err := snapshot.Write(ctx, store, snap)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, snapshot.Dir("1")+"/"+m.Partitions[0].File, []byte("garbage")))

	_, err = Open(ctx, store)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptPartition)
}

func TestOpenWatches(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	first, _ := newTestSnapshot(t, "1", 10, 1)
	_, err := snapshot.Write(ctx, store, first)
	require.NoError(t, err)

	db, err := Open(ctx, store, WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "1", db.DataVersion())

	second, _ := newTestSnapshot(t, "2", 20, 1)
	_, err = snapshot.Write(ctx, store, second)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return db.DataVersion() == "2" }, 5*time.Second, 10*time.Millisecond)
}

func TestLineageDefinition(t *testing.T) {
	snap, _ := newTestSnapshot(t, "1700000003", 10, 1)
	db := New(snap)
	defer db.Close()

	def, version, err := db.LineageDefinition("pango_lineage")
	require.NoError(t, err)
	assert.Equal(t, "1700000003", version)
	assert.Equal(t, testutil.Lineages, string(def))

	_, _, err = db.LineageDefinition("country")
	require.Error(t, err)
	assert.True(t, apierr.IsKind(err, apierr.BadRequest))
	assert.Equal(t, "The column country does not have a lineageIndex defined.", err.Error())

	_, _, err = db.LineageDefinition("region")
	require.Error(t, err)
	assert.Equal(t, "The column region does not exist in this instance.", err.Error())
	var le *ErrLineageColumn
	require.True(t, errors.As(err, &le))
	assert.False(t, le.Exists)
}

func TestDetailedInfo(t *testing.T) {
	snap, _ := newTestSnapshot(t, "1", 50, 2)
	db := New(snap)
	defer db.Close()

	info, err := db.DetailedInfo(0)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultSectionLength, info.BitmapContainerSizePerGenomeSection.SectionLength)

	info, err = db.DetailedInfo(10)
	require.NoError(t, err)
	assert.Equal(t, 10, info.BitmapContainerSizePerGenomeSection.SectionLength)
}

func TestClose(t *testing.T) {
	snap, _ := newTestSnapshot(t, "1", 10, 1)
	db := New(snap)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.Query(context.Background(), []byte(countAll))
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, apierr.IsKind(err, apierr.Unavailable))

	_, err = db.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func BenchmarkQuery(b *testing.B) {
	snap, _ := newTestSnapshot(b, "1700000000", 2000, 4)
	db := New(snap)
	defer db.Close()

	queries := map[string]string{
		"count": countAll,
		"groupBy": `{"filterExpression":{"type":"IntBetween","column":"age","from":20,"to":60},` +
			`"action":{"type":"Aggregated","groupByFields":["country"]}}`,
		"mutations": `{"filterExpression":{"type":"True"},"action":{"type":"Mutations","minProportion":0.05}}`,
	}
	for name, body := range queries {
		b.Run(name, func(b *testing.B) {
			ctx := context.Background()
			for b.Loop() {
				if _, err := db.Query(ctx, []byte(body)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
