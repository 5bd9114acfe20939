// Package conv provides checked integer conversions for values that cross
// fixed-width boundaries: segment header fields and point indices stored in
// 32-bit bitmaps.
package conv
