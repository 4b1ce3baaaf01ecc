package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hupe1980/silo/blobstore"
)

// DefaultPollInterval is the interval between two reads of CURRENT.
const DefaultPollInterval = 30 * time.Second

// Watcher polls CURRENT and loads every newly published snapshot.
type Watcher struct {
	store    blobstore.BlobStore
	interval time.Duration
	onSwap   func(*Snapshot)
	logger   *slog.Logger
	opts     []LoadOption

	mu      sync.Mutex
	current string
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval sets the interval between two reads of CURRENT.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger for load failures and swaps.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithWatcherLoadOptions sets the options passed to LoadDir.
func WithWatcherLoadOptions(opts ...LoadOption) WatcherOption {
	return func(w *Watcher) { w.opts = opts }
}

// NewWatcher creates a watcher that calls onSwap with every snapshot it
// loads. current is the directory of the snapshot already in use and may be
// empty.
func NewWatcher(store blobstore.BlobStore, current string, onSwap func(*Snapshot), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:    store,
		interval: DefaultPollInterval,
		onSwap:   onSwap,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		current:  current,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Poll reads CURRENT once and loads the snapshot it names if it changed.
// It reports whether a new snapshot was swapped in. Concurrent calls are
// serialized.
func (w *Watcher) Poll(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir, err := ReadCurrent(ctx, w.store)
	if errors.Is(err, ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if dir == w.current {
		return false, nil
	}

	start := time.Now()
	snap, err := LoadDir(ctx, w.store, dir, w.opts...)
	if err != nil {
		return false, err
	}
	w.current = dir
	w.onSwap(snap)
	w.logger.InfoContext(ctx, "snapshot loaded",
		"dataVersion", snap.DataVersion,
		"partitions", len(snap.Partitions),
		"sequences", snap.SequenceCount(),
		"duration", time.Since(start),
	)
	return true, nil
}

// Run polls until ctx is done. Failed polls are logged and retried on the
// next tick.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "snapshot poll failed", "error", err)
			}
		}
	}
}
