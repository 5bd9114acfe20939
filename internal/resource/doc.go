// Package resource governs the resources used while moving feature vectors
// between blob storage and memory.
//
//   - Memory: decoded segments held by dataset.Segmented (non-blocking, fail-fast)
//   - Workers: concurrent segment uploads in dataset.Writer
//   - IO: token bucket limiting blob throughput
//
// All methods handle a nil Controller gracefully; they become no-ops.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   1 << 30,
//	    MaxWorkers:         4,
//	    IOLimitBytesPerSec: 100 << 20,
//	})
package resource
