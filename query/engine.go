package query

import (
	"context"

	"github.com/hupe1980/silo/internal/worker"
	"github.com/hupe1980/silo/lineage"
	"github.com/hupe1980/silo/storage"
)

// Execute evaluates req over every partition and merges the partial results
// in partition order. Partitions are processed on pool; a nil pool
// processes them sequentially on the calling goroutine.
//
// Execute returns ctx.Err() when ctx is done before the result is complete;
// a partial result is never returned.
func Execute(
	ctx context.Context,
	pool *worker.Pool,
	req *Request,
	partitions []*storage.Partition,
	lineages map[string]*lineage.Index,
) (*Result, error) {
	partials := make([]any, len(partitions))

	run := func(i int) error {
		match, err := Evaluate(req.Filter, partitions[i], lineages)
		if err != nil {
			return err
		}
		partials[i], err = req.Action.compute(partitions[i], match)
		return err
	}

	if pool == nil {
		for i := range partitions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := run(i); err != nil {
				return nil, err
			}
		}
	} else if err := pool.ForEach(ctx, len(partitions), run); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := req.Action.merge(partials)
	if err != nil {
		return nil, err
	}

	fields := req.Action.Fields()
	opts := req.Action.options()
	return &Result{
		Fields: fields,
		Rows:   finalize(fields, rows, opts.OrderBy, opts.Offset, opts.Limit),
	}, nil
}
