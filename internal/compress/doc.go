// Package compress provides single-block LZ4 and ZSTD compression for
// dataset segments.
package compress
