// Package resilience throttles producers so a mirror or backfill does not
// overwhelm the destination cluster.
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "mirror", Rate: 500})
//	if err := rl.Wait(ctx); err != nil {
//	    return err
//	}
//
// Retries with backoff live in the kafka producer and the redis lock, which
// use github.com/cenkalti/backoff/v5 directly.
package resilience
