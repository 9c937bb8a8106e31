// Package resilience provides fault tolerance patterns for the preparation
// pipeline's dependencies.
//
// The package supports:
//   - Circuit breakers around the database handle shared by the stores
//   - Retry with exponential backoff and jitter for blob writes and broker publishes
//
// Usage Example:
//
//	brands := postgres.NewBrandRepo(circuitbreaker.NewDBCircuitBreaker(sqlDB))
//
//	err := retry.WithBackoff(ctx, retry.BlobWriteConfig(), func() error {
//	    return blobs.Put(ctx, key, data)
//	})
package resilience
