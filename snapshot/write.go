package snapshot

import (
	"context"
	"fmt"
	"io"
	"path"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/silo/blobstore"
	"github.com/hupe1980/silo/codec"
)

// WriteOptions configures Write.
type WriteOptions struct {
	// Compression of the partition files. Default: CompressionZstd.
	Compression Compression
	// Concurrency bounds the partitions written at once.
	// Default: runtime.GOMAXPROCS(0).
	Concurrency int
	// SkipCommit writes the snapshot without pointing CURRENT at it.
	SkipCommit bool
}

// WriteOption configures Write.
type WriteOption func(*WriteOptions)

// WithCompression sets the partition file compression.
func WithCompression(c Compression) WriteOption {
	return func(o *WriteOptions) { o.Compression = c }
}

// WithWriteConcurrency bounds the partitions written at once.
func WithWriteConcurrency(n int) WriteOption {
	return func(o *WriteOptions) { o.Concurrency = n }
}

// WithoutCommit leaves CURRENT untouched.
func WithoutCommit() WriteOption {
	return func(o *WriteOptions) { o.SkipCommit = true }
}

// Write publishes snap to store: partition files and lineage definitions
// first, then the manifest, then CURRENT. Readers never observe a partially
// written snapshot.
func Write(ctx context.Context, store blobstore.BlobStore, snap *Snapshot, opts ...WriteOption) (*Manifest, error) {
	o := WriteOptions{Compression: CompressionZstd, Concurrency: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	if v := snap.DataVersion; v == "" || v == "." || v == ".." || path.Base(v) != v {
		return nil, fmt.Errorf("snapshot: invalid data version %q", snap.DataVersion)
	}
	if err := snap.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	dir := Dir(snap.DataVersion)
	m := &Manifest{
		Version:     ManifestVersion,
		DataVersion: snap.DataVersion,
		CreatedAt:   time.Now().UTC(),
		Schema:      snap.Schema,
		Compression: o.Compression,
		Partitions:  make([]PartitionInfo, len(snap.Partitions)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.Concurrency, 1))
	for i, p := range snap.Partitions {
		g.Go(func() error {
			name := partitionFile(i)
			var size int64
			err := blobstore.Write(gctx, store, path.Join(dir, name), func(w io.Writer) error {
				n, err := WritePartition(w, p, o.Compression)
				size = n
				return err
			})
			if err != nil {
				return fmt.Errorf("snapshot: write %s: %w", name, err)
			}
			m.Partitions[i] = PartitionInfo{File: name, SequenceCount: p.SequenceCount(), Size: size}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(snap.Lineages) > 0 {
		m.LineageFiles = make(map[string]string, len(snap.Lineages))
		columns := make([]string, 0, len(snap.Lineages))
		for column := range snap.Lineages {
			columns = append(columns, column)
		}
		slices.Sort(columns)
		for _, column := range columns {
			name := lineageFile(column)
			if err := store.Put(ctx, path.Join(dir, name), snap.Lineages[column].Definition()); err != nil {
				return nil, fmt.Errorf("snapshot: write %s: %w", name, err)
			}
			m.LineageFiles[column] = name
		}
	}

	data, err := codec.Default.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode manifest: %w", err)
	}
	if err := store.Put(ctx, path.Join(dir, ManifestName), data); err != nil {
		return nil, fmt.Errorf("snapshot: write manifest: %w", err)
	}

	if !o.SkipCommit {
		if err := Commit(ctx, store, snap.DataVersion); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Commit points CURRENT at the snapshot with the given data version.
func Commit(ctx context.Context, store blobstore.BlobStore, dataVersion string) error {
	if err := store.Put(ctx, CurrentName, []byte(Dir(dataVersion))); err != nil {
		return fmt.Errorf("snapshot: commit %s: %w", dataVersion, err)
	}
	return nil
}
