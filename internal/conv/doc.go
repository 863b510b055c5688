// Package conv provides checked integer conversions.
//
// Use them where a value comes from disk or the network (manifest sizes,
// part lengths) and may not fit the target type. Provably bounded values use
// plain casts.
package conv
