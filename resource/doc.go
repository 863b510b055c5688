// Package resource bounds the memory and IO used by distributed vectors.
//
// A Controller tracks three budgets:
//
//   - Memory: bytes held by local vector buffers. ReserveMemory fails fast
//     with ErrMemoryLimitExceeded; AcquireMemory blocks until memory is free.
//   - IO slots: concurrent blob reads and writes during checkpoint save/load.
//   - IO bandwidth: a token bucket shared by RateLimitedWriter and
//     RateLimitedReader.
//
// A vector charges its buffer to the controller it is given:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   1 << 30,
//	    MaxConcurrentIO:    4,
//	    IOLimitBytesPerSec: 100 << 20,
//	})
//	v := distvec.New[float64](c, distvec.WithResourceController(rc))
//
// All methods are safe for concurrent use and treat a nil *Controller as
// unlimited.
package resource
