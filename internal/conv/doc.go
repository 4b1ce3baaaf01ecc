// Package conv provides checked integer conversions.
//
// Use them on values read from partition files and on column values of
// untyped input rows. Loop indices and counters bounded by construction use
// plain casts.
package conv
