// Package query evaluates filter expressions against partitions and runs
// actions over the matching sequences.
//
// A query is parsed once with ParseRequest against the catalog of a
// snapshot. Execute then evaluates the filter on every partition into a
// bitmap of matching ids, lets the action reduce each bitmap into a partial
// result and merges the partials in partition order:
//
//	req, err := query.ParseRequest(body, catalog)
//	if err != nil {
//		return err // *apierr.Error with kind BadRequest
//	}
//	res, err := query.Execute(ctx, pool, req, snap.Partitions, snap.Lineages)
package query
