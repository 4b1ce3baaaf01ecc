package silo

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/hupe1980/silo/blobstore"
	"github.com/hupe1980/silo/internal/worker"
	"github.com/hupe1980/silo/query"
	"github.com/hupe1980/silo/resource"
	"github.com/hupe1980/silo/snapshot"
	"github.com/hupe1980/silo/storage"
)

// DB serves queries over the active snapshot. Snapshots are immutable and
// replaced as a whole, so a query observes exactly one data version.
//
// DB is safe for concurrent use.
type DB struct {
	current atomic.Pointer[snapshot.Snapshot]

	store      blobstore.BlobStore
	watcher    *snapshot.Watcher
	pool       *worker.Pool
	controller *resource.Controller
	metrics    MetricsCollector
	logger     *Logger
	opts       options

	stopWatch context.CancelFunc
	watchDone chan struct{}
	closed    atomic.Bool
}

// Response is a query result and the data version it was computed on.
type Response struct {
	DataVersion string
	*query.Result
}

// Info is the summary of the active snapshot.
type Info struct {
	DataVersion string `json:"-"`
	storage.Info
}

// DetailedInfo is the bitmap diagnostic of the active snapshot.
type DetailedInfo struct {
	DataVersion string `json:"-"`
	storage.DetailedInfo
}

// New creates a database serving snap. snap may be nil; queries then fail
// until Swap is called.
func New(snap *snapshot.Snapshot, optFns ...Option) *DB {
	db := newDB(applyOptions(optFns))
	if snap != nil {
		db.Swap(snap)
	}
	return db
}

// Open loads the snapshot that CURRENT names in store. A store without a
// published snapshot is not an error: queries fail with ErrNoSnapshot until
// one is loaded by Refresh or, with WithPollInterval, by the watcher.
func Open(ctx context.Context, store blobstore.BlobStore, optFns ...Option) (*DB, error) {
	db := newDB(applyOptions(optFns))
	db.store = store

	dir, err := snapshot.ReadCurrent(ctx, store)
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		db.logger.WarnContext(ctx, "no snapshot published yet")
		dir = ""
	case err != nil:
		db.pool.Close()
		return nil, err
	default:
		start := time.Now()
		snap, err := snapshot.LoadDir(ctx, store, dir, db.loadOptions()...)
		db.logger.LogSnapshotLoad(ctx, dir, time.Since(start), err)
		if err != nil {
			db.pool.Close()
			return nil, translateError(err)
		}
		db.Swap(snap)
	}

	db.watcher = snapshot.NewWatcher(store, dir, db.Swap,
		snapshot.WithPollInterval(db.opts.pollInterval),
		snapshot.WithWatcherLogger(db.logger.Logger),
		snapshot.WithWatcherLoadOptions(db.loadOptions()...),
	)
	if db.opts.pollInterval > 0 {
		watchCtx, cancel := context.WithCancel(context.Background())
		db.stopWatch = cancel
		db.watchDone = make(chan struct{})
		go func() {
			defer close(db.watchDone)
			db.watcher.Run(watchCtx)
		}()
	}
	return db, nil
}

func newDB(o options) *DB {
	return &DB{
		pool:       worker.NewPool(o.workers),
		controller: o.controller,
		metrics:    o.metricsCollector,
		logger:     o.logger,
		opts:       o,
	}
}

func (db *DB) loadOptions() []snapshot.LoadOption {
	var opts []snapshot.LoadOption
	if db.opts.loadConcurrency > 0 {
		opts = append(opts, snapshot.WithLoadConcurrency(db.opts.loadConcurrency))
	}
	if db.controller != nil {
		opts = append(opts, snapshot.WithLoadThrottle(db.controller.AcquireIO))
	}
	return opts
}

// Swap makes snap the active snapshot. Queries already running keep the
// snapshot they started with.
func (db *DB) Swap(snap *snapshot.Snapshot) {
	old := db.current.Swap(snap)
	var from string
	if old != nil {
		from = old.DataVersion
	}
	db.logger.LogSnapshotSwap(context.Background(), from, snap.DataVersion, len(snap.Partitions))
	db.metrics.RecordSnapshotSwap(snap.DataVersion, len(snap.Partitions))
}

// Refresh loads the snapshot that CURRENT names if it differs from the
// active one. It reports whether a new snapshot was swapped in. Refresh
// is a no-op for databases created with New.
func (db *DB) Refresh(ctx context.Context) (bool, error) {
	if db.closed.Load() {
		return false, ErrClosed
	}
	if db.watcher == nil {
		return false, nil
	}
	ok, err := db.watcher.Poll(ctx)
	return ok, translateError(err)
}

// Snapshot returns the active snapshot.
func (db *DB) Snapshot() (*snapshot.Snapshot, error) {
	if db.closed.Load() {
		return nil, translateError(ErrClosed)
	}
	snap := db.current.Load()
	if snap == nil {
		return nil, translateError(ErrNoSnapshot)
	}
	return snap, nil
}

// DataVersion returns the version of the active snapshot, or "" if none is
// loaded.
func (db *DB) DataVersion() string {
	if snap := db.current.Load(); snap != nil {
		return snap.DataVersion
	}
	return ""
}

// Query parses body as {"filterExpression": ..., "action": ...}, validates
// it against the active snapshot and executes it.
//
// Errors caused by the request carry an apierr kind and message. A query is
// either answered completely or fails; cancellation of ctx never yields a
// partial result.
func (db *DB) Query(ctx context.Context, body []byte) (*Response, error) {
	start := time.Now()
	resp, action, err := db.query(ctx, body)

	var rows int
	version := db.DataVersion()
	if resp != nil {
		rows = len(resp.Rows)
		version = resp.DataVersion
	}
	db.metrics.RecordQuery(action, time.Since(start), rows, err)
	db.logger.LogQuery(ctx, action, version, rows, time.Since(start), err)
	return resp, err
}

func (db *DB) query(ctx context.Context, body []byte) (*Response, string, error) {
	snap, err := db.Snapshot()
	if err != nil {
		return nil, "", err
	}

	release, err := db.controller.Admit(ctx)
	if err != nil {
		if errors.Is(err, resource.ErrOverloaded) || errors.Is(err, resource.ErrRateLimited) {
			db.metrics.RecordRejected()
		}
		return nil, "", translateError(err)
	}
	defer release()

	if db.opts.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, db.opts.queryTimeout)
		defer cancel()
	}

	req, err := query.ParseRequest(body, snap.Catalog())
	if err != nil {
		return nil, "", err
	}
	action := req.Action.Type()

	res, err := query.Execute(ctx, db.pool, req, snap.Partitions, snap.Lineages)
	if err != nil {
		return nil, action, translateError(err)
	}
	return &Response{DataVersion: snap.DataVersion, Result: res}, action, nil
}

// Info summarises the active snapshot.
func (db *DB) Info() (Info, error) {
	snap, err := db.Snapshot()
	if err != nil {
		return Info{}, err
	}
	return Info{DataVersion: snap.DataVersion, Info: snap.Info()}, nil
}

// DetailedInfo computes bitmap container statistics of the default
// nucleotide sequence in sections of sectionLength positions. A
// sectionLength <= 0 selects storage.DefaultSectionLength.
func (db *DB) DetailedInfo(sectionLength int) (DetailedInfo, error) {
	snap, err := db.Snapshot()
	if err != nil {
		return DetailedInfo{}, err
	}
	info, ok := snap.DetailedInfo(sectionLength)
	if !ok {
		return DetailedInfo{}, translateError(errNoNucleotideSequence)
	}
	return DetailedInfo{DataVersion: snap.DataVersion, DetailedInfo: info}, nil
}

// LineageDefinition returns the YAML lineage definition of column and the
// data version it belongs to.
func (db *DB) LineageDefinition(column string) ([]byte, string, error) {
	snap, err := db.Snapshot()
	if err != nil {
		return nil, "", err
	}
	spec, ok := snap.Schema.Column(column)
	if !ok {
		return nil, snap.DataVersion, translateError(&ErrLineageColumn{Column: column})
	}
	ix, ok := snap.Lineages[spec.Name]
	if !ok {
		return nil, snap.DataVersion, translateError(&ErrLineageColumn{Column: column, Exists: true})
	}
	return ix.Definition(), snap.DataVersion, nil
}
