// Package lineage parses lineage definition files into an immutable
// hierarchy and answers sublineage queries.
//
// A lineage may have several parents. Recombinant lineages (more than one
// parent) are included in sublineage expansions according to a Mode.
// Aliases resolve to the lineage they are declared on.
package lineage
