package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/silo/blobstore"
	"github.com/hupe1980/silo/codec"
	"github.com/hupe1980/silo/storage"
)

const (
	// CurrentName is the blob naming the directory of the active snapshot.
	CurrentName = "CURRENT"
	// ManifestName is the manifest blob inside a snapshot directory.
	ManifestName = "manifest.json"
	// Root is the directory holding all snapshot directories.
	Root = "snapshots"
	// ManifestVersion is the manifest format written by this package.
	ManifestVersion = 1
)

// ErrNoSnapshot is returned when the store has no CURRENT blob.
var ErrNoSnapshot = errors.New("snapshot: no snapshot published")

// Manifest describes the blobs of one snapshot.
type Manifest struct {
	Version      int               `json:"version"`
	DataVersion  string            `json:"dataVersion"`
	CreatedAt    time.Time         `json:"createdAt"`
	Schema       *storage.Schema   `json:"schema"`
	Compression  Compression       `json:"compression"`
	Partitions   []PartitionInfo   `json:"partitions"`
	LineageFiles map[string]string `json:"lineageFiles,omitempty"`
}

// PartitionInfo describes a single partition file.
type PartitionInfo struct {
	File          string `json:"file"` // relative to the snapshot directory
	SequenceCount uint32 `json:"sequenceCount"`
	Size          int64  `json:"size"`
}

// SequenceCount returns the number of sequences over all partitions.
func (m *Manifest) SequenceCount() uint64 {
	var n uint64
	for _, p := range m.Partitions {
		n += uint64(p.SequenceCount)
	}
	return n
}

// Dir returns the directory of the snapshot with the given data version.
func Dir(dataVersion string) string {
	return path.Join(Root, dataVersion)
}

func partitionFile(i int) string {
	return fmt.Sprintf("partition-%05d.bin", i)
}

func lineageFile(column string) string {
	return "lineage-" + column + ".yaml"
}

// ReadCurrent returns the directory named by CURRENT.
func ReadCurrent(ctx context.Context, store blobstore.BlobStore) (string, error) {
	data, err := blobstore.ReadAll(ctx, store, CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return "", ErrNoSnapshot
	}
	if err != nil {
		return "", fmt.Errorf("snapshot: read %s: %w", CurrentName, err)
	}
	dir := strings.TrimSpace(string(data))
	if dir == "" {
		return "", fmt.Errorf("snapshot: %s is empty", CurrentName)
	}
	return dir, nil
}

// ReadManifest reads and validates the manifest in dir.
func ReadManifest(ctx context.Context, store blobstore.BlobStore, dir string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, store, path.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read manifest of %s: %w", dir, err)
	}

	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("snapshot: decode manifest of %s: %w", dir, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("snapshot: unsupported manifest version: %d (expected %d)", m.Version, ManifestVersion)
	}
	if m.Schema == nil {
		return nil, fmt.Errorf("snapshot: manifest of %s has no schema", dir)
	}
	if err := m.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot: manifest of %s: %w", dir, err)
	}
	return &m, nil
}
