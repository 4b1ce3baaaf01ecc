package snapshot

import (
	"context"
	"fmt"
	"path"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/silo/blobstore"
	"github.com/hupe1980/silo/lineage"
	"github.com/hupe1980/silo/storage"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// Concurrency bounds the partitions fetched and decoded at once.
	// Default: runtime.GOMAXPROCS(0).
	Concurrency int

	// Throttle is called with the stored size of each partition before it
	// is fetched. Nil disables throttling.
	Throttle func(ctx context.Context, bytes int) error
}

// LoadOption configures Load.
type LoadOption func(*LoadOptions)

// WithLoadConcurrency bounds the partitions fetched and decoded at once.
func WithLoadConcurrency(n int) LoadOption {
	return func(o *LoadOptions) { o.Concurrency = n }
}

// WithLoadThrottle paces partition reads, e.g. with a byte rate limiter.
func WithLoadThrottle(fn func(ctx context.Context, bytes int) error) LoadOption {
	return func(o *LoadOptions) { o.Throttle = fn }
}

// Load reads the snapshot named by CURRENT.
func Load(ctx context.Context, store blobstore.BlobStore, opts ...LoadOption) (*Snapshot, error) {
	dir, err := ReadCurrent(ctx, store)
	if err != nil {
		return nil, err
	}
	return LoadDir(ctx, store, dir, opts...)
}

// LoadDir reads the snapshot in dir.
func LoadDir(ctx context.Context, store blobstore.BlobStore, dir string, opts ...LoadOption) (*Snapshot, error) {
	o := LoadOptions{Concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := ReadManifest(ctx, store, dir)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		DataVersion: m.DataVersion,
		Schema:      m.Schema,
		Partitions:  make([]*storage.Partition, len(m.Partitions)),
		Lineages:    make(map[string]*lineage.Index, len(m.LineageFiles)),
	}

	for column, file := range m.LineageFiles {
		spec, ok := m.Schema.Column(column)
		if !ok || spec.Type != storage.ColumnLineage {
			return nil, fmt.Errorf("snapshot: lineage file for %q, which is not a lineage column", column)
		}
		data, err := blobstore.ReadAll(ctx, store, path.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("snapshot: read %s: %w", file, err)
		}
		ix, err := lineage.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %s: %w", file, err)
		}
		snap.Lineages[column] = ix
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.Concurrency, 1))
	for i, info := range m.Partitions {
		g.Go(func() error {
			if o.Throttle != nil {
				if err := o.Throttle(gctx, int(info.Size)); err != nil {
					return err
				}
			}
			data, err := blobstore.ReadAll(gctx, store, path.Join(dir, info.File))
			if err != nil {
				return fmt.Errorf("snapshot: read %s: %w", info.File, err)
			}
			p, err := ReadPartition(data, m.Schema)
			if err != nil {
				return fmt.Errorf("snapshot: decode %s: %w", info.File, err)
			}
			if p.SequenceCount() != info.SequenceCount {
				return fmt.Errorf("snapshot: %s: %w: %d sequences, manifest lists %d",
					info.File, storage.ErrCorrupt, p.SequenceCount(), info.SequenceCount)
			}
			snap.Partitions[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
