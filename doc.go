// Package silo serves read-only queries over bitmap-indexed genomic
// sequence data.
//
// A database holds one immutable snapshot at a time: a set of partitions,
// each storing one roaring bitmap per sequence position and symbol plus
// metadata columns, together with the lineage indexes of its lineage
// columns. Snapshots are produced by an external loader, published to a
// blob store and swapped in atomically.
//
// # Quick Start
//
// Local mode:
//
//	ctx := context.Background()
//	db, _ := silo.Open(ctx, blobstore.NewLocalStore("./data"))
//	defer db.Close()
//
// Cloud mode, polling for new snapshots:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("silo/"))
//	db, _ := silo.Open(ctx, store, silo.WithPollInterval(30*time.Second))
//
// # Queries
//
// A query combines a filter expression with an action:
//
//	resp, err := db.Query(ctx, []byte(`{
//	    "filterExpression": {"type": "StringEquals", "column": "country", "value": "Switzerland"},
//	    "action": {"type": "Aggregated", "groupByFields": ["pango_lineage"]}
//	}`))
//	for _, row := range resp.Rows {
//	    fmt.Println(row)
//	}
//
// Every partition is evaluated on a worker pool and the partial results are
// merged in partition order, so results are deterministic for a given
// snapshot. Errors caused by the request are *apierr.Error values whose
// message is meant for the client.
//
// # Serving
//
// Package server exposes a database over HTTP; cmd/silo wires configuration,
// storage and the server into a binary.
package silo
