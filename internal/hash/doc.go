// Package hash provides the CRC32-Castagnoli checksums recorded for dataset
// segments and sent with S3 uploads.
//
// One-shot:
//
//	sum := hash.CRC32C(blob)
//
// Streaming, e.g. while uploading:
//
//	h := hash.NewCRC32C()
//	w := io.MultiWriter(dst, h)
//	...
//	sum := h.Sum32()
package hash
