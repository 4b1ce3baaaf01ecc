// Package s3 stores snapshots in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("silo/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	snap, err := snapshot.Load(ctx, store)
//
// Reads are ranged GETs, Create streams a multipart upload and List
// paginates. Wrap a Store in a CommitStore to keep the CURRENT pointer in
// DynamoDB when more than one writer publishes snapshots.
package s3
