/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package bucket

import (
	"sort"
	"time"

	"github.com/emirpasic/gods/queues/priorityqueue"
)

// DeferredItem is an item that could not be admitted immediately and waits in the holding set.
type DeferredItem[V any] struct {
	// ID is a unique identifier assigned when the item is deferred.
	ID string

	// Payload is the caller-supplied unit of work.
	Payload V

	// DeferredAt is the moment the admission was refused.
	DeferredAt time.Time

	// ReleaseTime is the moment the item becomes ready. It may be in the past
	// (e.g. when the refused call rolled the window).
	ReleaseTime time.Time
}

// Ready reports whether the item's release time has come.
func (di DeferredItem[V]) Ready(now time.Time) bool {
	return !di.ReleaseTime.After(now)
}

type holdingEntry[V any] struct {
	item DeferredItem[V]
	seq  uint64
}

// holdingSet is not safe for concurrent use, Bucket guards it with its own mutex.
type holdingSet[V any] struct {
	queue   *priorityqueue.Queue
	nextSeq uint64
}

func newHoldingSet[V any]() *holdingSet[V] {
	return &holdingSet[V]{queue: priorityqueue.NewWith(compareHoldingEntries[V])}
}

// compareHoldingEntries orders entries by release time and then by insertion.
func compareHoldingEntries[V any](a, b interface{}) int {
	ea, eb := a.(*holdingEntry[V]), b.(*holdingEntry[V])
	switch {
	case ea.item.ReleaseTime.Before(eb.item.ReleaseTime):
		return -1
	case ea.item.ReleaseTime.After(eb.item.ReleaseTime):
		return 1
	case ea.seq < eb.seq:
		return -1
	case ea.seq > eb.seq:
		return 1
	}
	return 0
}

func (hs *holdingSet[V]) push(item DeferredItem[V]) {
	hs.queue.Enqueue(&holdingEntry[V]{item: item, seq: hs.nextSeq})
	hs.nextSeq++
}

func (hs *holdingSet[V]) len() int {
	return hs.queue.Size()
}

// snapshot returns all held items in release order without removing them.
func (hs *holdingSet[V]) snapshot() []DeferredItem[V] {
	values := hs.queue.Values()
	entries := make([]*holdingEntry[V], 0, len(values))
	for _, v := range values {
		entries = append(entries, v.(*holdingEntry[V]))
	}
	sort.Slice(entries, func(i, j int) bool {
		return compareHoldingEntries[V](entries[i], entries[j]) < 0
	})
	items := make([]DeferredItem[V], 0, len(entries))
	for _, e := range entries {
		items = append(items, e.item)
	}
	return items
}

// popReady removes and returns items whose release time is not after now.
func (hs *holdingSet[V]) popReady(now time.Time) []DeferredItem[V] {
	var items []DeferredItem[V]
	for {
		item, ok := hs.popOneReady(now)
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

func (hs *holdingSet[V]) peek() (DeferredItem[V], bool) {
	v, ok := hs.queue.Peek()
	if !ok {
		return DeferredItem[V]{}, false
	}
	return v.(*holdingEntry[V]).item, true
}

func (hs *holdingSet[V]) popOneReady(now time.Time) (DeferredItem[V], bool) {
	item, ok := hs.peek()
	if !ok || !item.Ready(now) {
		return DeferredItem[V]{}, false
	}
	hs.queue.Dequeue()
	return item, true
}

func (hs *holdingSet[V]) popAll() []DeferredItem[V] {
	items := make([]DeferredItem[V], 0, hs.queue.Size())
	for {
		v, ok := hs.queue.Dequeue()
		if !ok {
			return items
		}
		items = append(items, v.(*holdingEntry[V]).item)
	}
}
