// Package dataset defines the indexed vector collections consumed by the
// clusterer and a blob-backed, segmented on-disk format for large ones.
//
// Memory and Slice keep every vector in process memory. Segmented reads
// frames from segment blobs through a blobstore.BlobStore and caches one
// decoded segment at a time; Writer produces that layout:
//
//	manifest.json
//	segments/segment-000000.bin
//	segments/segment-000001.bin
//	...
package dataset
