// Package blobstore abstracts the storage that snapshots are published to.
//
// A snapshot is a set of immutable blobs (manifest, partition files, lineage
// definitions) plus a small mutable CURRENT blob naming the active one.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, used by tests and fixtures
//   - LocalStore: local directory, mmap reads and atomic rename writes
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - s3.CommitStore: S3 with the CURRENT pointer kept in DynamoDB
//   - minio.Store: MinIO and other S3-compatible servers
//
// # Custom Implementations
//
// Implement BlobStore to support other backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
