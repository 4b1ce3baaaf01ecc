// Package filter parses JSON filter expressions into a closed set of
// expression types and validates them against a snapshot's schema.
//
// Parsing is the only place where user input is rejected. A parsed
// Expression references only columns, sequences, positions and lineages that
// exist, so evaluating it can not fail for reasons the client controls.
//
// Example:
//
//	expr, err := filter.Parse([]byte(`{"type":"HasNucleotideMutation","position":241}`), cat)
package filter
