// Package resilience bounds how much work the service accepts.
//
//   - Bulkhead caps concurrent engine runs; callers hand work to it and wait
//     on a channel, so a full pool never pins a request goroutine in a
//     subprocess.
//   - RateLimiter is a token bucket, and KeyedRateLimiter keeps one bucket
//     per client for the upload endpoint.
package resilience
