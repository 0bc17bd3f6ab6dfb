/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package bucket

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/acronis/go-throttledbucket/log"
)

// Keyed maintains a separate Bucket for every key. All buckets share the same rate and window.
// When maxKeys is positive, the least recently used buckets are evicted together with their held items.
// Only TryAdmit and Bucket create buckets and update the keys recency, read operations never evict.
type Keyed[K comparable, V any] struct {
	maxRate int
	window  time.Duration
	opts    Opts

	mu      sync.Mutex
	buckets map[K]*Bucket[V] // used when the number of keys is unlimited
	zone    *lru.Cache
}

// NewKeyed creates a new Keyed set of buckets.
func NewKeyed[K comparable, V any](maxRate int, window time.Duration, maxKeys int) (*Keyed[K, V], error) {
	return NewKeyedWithOpts[K, V](maxRate, window, maxKeys, Opts{})
}

// NewKeyedWithOpts creates a new Keyed set of buckets with an ability to specify different optional parameters.
// Opts are passed to every created bucket.
func NewKeyedWithOpts[K comparable, V any](maxRate int, window time.Duration, maxKeys int, opts Opts) (*Keyed[K, V], error) {
	if err := validateParams(maxRate, window); err != nil {
		return nil, err
	}
	if maxKeys < 0 {
		return nil, fmt.Errorf("%w: max keys should not be negative, got %d", ErrInvalidConfiguration, maxKeys)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}

	k := &Keyed[K, V]{maxRate: maxRate, window: window, opts: opts}
	if maxKeys == 0 {
		k.buckets = make(map[K]*Bucket[V])
		return k, nil
	}
	zone, err := lru.NewWithEvict(maxKeys, func(key interface{}, value interface{}) {
		// Held items are dropped together with the bucket.
		dropped := value.(*Bucket[V]).Drain()
		opts.Logger.Warn("bucket evicted from keys zone", log.Any("key", key), log.Int("held", len(dropped)))
	})
	if err != nil {
		return nil, fmt.Errorf("new keys zone: %w", err)
	}
	k.zone = zone
	return k, nil
}

// NewKeyedFromConfig creates a new Keyed set of buckets using parameters from the Config.
func NewKeyedFromConfig[K comparable, V any](cfg *Config, opts Opts) (*Keyed[K, V], error) {
	return NewKeyedWithOpts[K, V](cfg.MaxRate, time.Duration(cfg.Window), cfg.MaxKeys, opts)
}

// Bucket returns the bucket for the key, creating it if needed.
func (k *Keyed[K, V]) Bucket(key K) *Bucket[V] {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.zone == nil {
		if b, ok := k.buckets[key]; ok {
			return b
		}
		b := k.newBucket(key)
		k.buckets[key] = b
		return b
	}

	if v, ok := k.zone.Get(key); ok {
		return v.(*Bucket[V])
	}
	b := k.newBucket(key)
	k.zone.Add(key, b)
	return b
}

// TryAdmit calls TryAdmit of the key's bucket, creating the bucket if needed.
func (k *Keyed[K, V]) TryAdmit(key K, item V) bool {
	return k.Bucket(key).TryAdmit(item)
}

// Retrieve calls Retrieve of the key's bucket. Nil is returned for a key without a bucket.
func (k *Keyed[K, V]) Retrieve(key K) []V {
	if b, ok := k.lookup(key); ok {
		return b.Retrieve()
	}
	return nil
}

// DrainReady calls DrainReady of the key's bucket. Nil is returned for a key without a bucket.
func (k *Keyed[K, V]) DrainReady(key K) []V {
	if b, ok := k.lookup(key); ok {
		return b.DrainReady()
	}
	return nil
}

// Reset calls Reset of the key's bucket. It does nothing for a key without a bucket.
func (k *Keyed[K, V]) Reset(key K) {
	if b, ok := k.lookup(key); ok {
		b.Reset()
	}
}

// Len returns the number of keys that currently have a bucket.
func (k *Keyed[K, V]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.zone == nil {
		return len(k.buckets)
	}
	return k.zone.Len()
}

// lookup returns the existing bucket of the key without creating it or touching the keys zone recency.
func (k *Keyed[K, V]) lookup(key K) (*Bucket[V], bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.zone == nil {
		b, ok := k.buckets[key]
		return b, ok
	}
	v, ok := k.zone.Peek(key)
	if !ok {
		return nil, false
	}
	return v.(*Bucket[V]), true
}

func (k *Keyed[K, V]) newBucket(key K) *Bucket[V] {
	opts := k.opts
	opts.Logger = opts.Logger.With(log.Any("key", key))
	b, _ := NewWithOpts[V](k.maxRate, k.window, opts) // Parameters are validated in the constructor.
	return b
}
