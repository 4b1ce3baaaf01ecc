// Package bitmap wraps roaring bitmaps as the id-set type of the query engine.
//
// A partition stores one Bitmap per (sequence, position, symbol) and per
// metadata value. The evaluator combines them with the package level set
// operations (Intersect, Union, Difference, Complement, NOf), which never
// modify their inputs.
package bitmap
