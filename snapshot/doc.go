// Package snapshot publishes and loads immutable versions of the database.
//
// A snapshot lives in its own directory of a blob store:
//
//	CURRENT                                  -> "snapshots/<dataVersion>"
//	snapshots/<dataVersion>/manifest.json
//	snapshots/<dataVersion>/partition-00000.bin
//	snapshots/<dataVersion>/lineage-<column>.yaml
//
// Write uploads the blobs of a snapshot and commits it by rewriting CURRENT.
// Load follows CURRENT, fetching and decoding partitions concurrently.
// A Watcher polls CURRENT and hands every new snapshot to a callback, which
// the database uses to swap snapshots without blocking running queries.
package snapshot
