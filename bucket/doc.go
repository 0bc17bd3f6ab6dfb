/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package bucket provides a thread-safe throttled bucket: a fixed-window rate limiter
// that admits up to a fixed number of items within a time window and, instead of dropping
// the excess, keeps it in a holding set ordered by the time when each item may be released.
//
// The bucket never dispatches or retries deferred items on its own. Callers enumerate
// the holding set with Retrieve or Deferred (both non-destructive), or take ready items out
// with DrainReady (see package redelivery for a periodic worker doing exactly that).
//
// Key features:
//   - Single critical section per bucket for the compound check-then-act admission decision
//   - Holding set ordered by release time (ties are broken by insertion order)
//   - Per-key buckets with LRU-based key eviction (Keyed)
//   - Prometheus metrics and structured logging
package bucket
