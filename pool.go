// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// defaultShardCount is 2x hardware parallelism, with the degenerate zero
// case mapped to one.
func defaultShardCount() int {
	n := 2 * runtime.GOMAXPROCS(0)
	if n <= 0 {
		return 1
	}
	return n
}

// fastSlot is a single-object cache slot, claimed and released with a
// plain atomic pointer swap. Go exposes no goroutine identity and no
// user-level thread-local storage, so the conceptual "per-thread fast
// slot" is realized as a small array of these slots striped by an
// incrementing counter — the same striping idiom entry_fallback.go's DCAS
// mutex table uses for address-keyed locks — rather than keyed off a
// (nonexistent) thread id.
//
// This is deliberately not sync.Pool: sync.Pool's contents can be dropped
// by the runtime between a Put and a later Clear with no notification,
// which would silently violate the pool's own "every object is accounted
// for exactly once by Put or Clear/destruction" guarantee — unacceptable
// when Size()/Clear() are meant to be exact, not merely approximate.
type fastSlot[T any] struct {
	_   pad
	ptr atomic.Pointer[T]
	_   pad
}

// poolShard is one of the pool's parallel sub-pools, a mutex-guarded free
// list plus an approximate size counter read without the lock.
type poolShard[T any] struct {
	mu   sync.Mutex
	free []*T
	size atomix.Int64
	_    pad
}

// ObjectPool is the sharded, mutex-protected free list with a striped
// fast-slot cache that LSCQ recycles nodes through.
//
// Ownership of an object returned by Get transfers to the caller; after
// Put(obj) the caller must not reference obj again.
type ObjectPool[T any] struct {
	_         pad
	closing   atomix.Bool
	_         pad
	activeOps atomix.Int64
	_         pad
	factory   func() *T
	fast      []fastSlot[T]
	counter   atomic.Uint64
	shards    []poolShard[T]
}

// NewObjectPool creates a pool that calls factory on a Get that finds
// nothing cached. shardCount <= 0 selects [defaultShardCount].
func NewObjectPool[T any](factory func() *T, shardCount int) *ObjectPool[T] {
	if shardCount <= 0 {
		shardCount = defaultShardCount()
	}
	p := &ObjectPool[T]{
		factory: factory,
		fast:    make([]fastSlot[T], shardCount),
		shards:  make([]poolShard[T], shardCount),
	}
	return p
}

// enter is the op guard: active_ops is bumped before the closing flag is
// rechecked, so a racing Close() either observes the bumped counter and
// waits, or this call observes closing and backs out.
func (p *ObjectPool[T]) enter() bool {
	p.activeOps.AddAcqRel(1)
	if p.closing.LoadAcquire() {
		p.activeOps.AddAcqRel(-1)
		return false
	}
	return true
}

func (p *ObjectPool[T]) exit() {
	p.activeOps.AddAcqRel(-1)
}

// Get returns an object, preferring this call's fast slot, then its local
// shard, then the remaining fast slots, then stealing a peer shard, then
// finally the factory. Returns nil if the pool is closing.
func (p *ObjectPool[T]) Get() *T {
	if !p.enter() {
		return nil
	}
	defer p.exit()

	n := uint64(len(p.shards))
	idx := p.counter.Add(1) - 1
	i := idx % n

	if obj := p.fast[i].ptr.Swap(nil); obj != nil {
		return obj
	}

	if obj := p.popShard(int(i)); obj != nil {
		return obj
	}

	// A single-threaded Get-then-Put-then-Get must return the object Put
	// just released, but Put's own counter tick may have landed it in a
	// different fast slot than this call's. Scan the rest of the fast
	// slots before falling back to shard stealing.
	for step := uint64(1); step < n; step++ {
		j := (i + step) % n
		if obj := p.fast[j].ptr.Swap(nil); obj != nil {
			return obj
		}
	}

	for step := uint64(1); step < n; step++ {
		j := (i + step) % n
		if obj := p.stealShard(int(j)); obj != nil {
			return obj
		}
	}

	return p.factory()
}

func (p *ObjectPool[T]) popShard(i int) *T {
	s := &p.shards[i]
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.free) == 0 {
		return nil
	}
	last := len(s.free) - 1
	obj := s.free[last]
	s.free[last] = nil
	s.free = s.free[:last]
	s.size.AddAcqRel(-1)
	return obj
}

// stealShard mirrors popShard but uses TryLock, so a shard currently held
// by another Get/Put/Clear is simply skipped rather than waited on.
func (p *ObjectPool[T]) stealShard(i int) *T {
	s := &p.shards[i]
	if !s.mu.TryLock() {
		return nil
	}
	defer s.mu.Unlock()
	if len(s.free) == 0 {
		return nil
	}
	last := len(s.free) - 1
	obj := s.free[last]
	s.free[last] = nil
	s.free = s.free[:last]
	s.size.AddAcqRel(-1)
	return obj
}

// Put returns obj to the pool. If the pool is closing, obj is dropped —
// there is no explicit free in a garbage collected runtime, so "delete"
// means releasing the last reference.
func (p *ObjectPool[T]) Put(obj *T) {
	if obj == nil {
		return
	}
	if !p.enter() {
		return
	}
	defer p.exit()

	n := uint64(len(p.shards))
	idx := p.counter.Add(1) - 1
	i := idx % n

	if p.fast[i].ptr.CompareAndSwap(nil, obj) {
		return
	}

	s := &p.shards[i]
	s.mu.Lock()
	s.free = append(s.free, obj)
	s.mu.Unlock()
	s.size.AddAcqRel(1)
}

// Clear drops every cached object — fast slots and every shard — letting
// the garbage collector reclaim them. Safe to call concurrently with
// Get/Put.
func (p *ObjectPool[T]) Clear() {
	if !p.enter() {
		return
	}
	defer p.exit()

	for i := range p.fast {
		p.fast[i].ptr.Store(nil)
	}
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.Lock()
		s.free = nil
		s.mu.Unlock()
		s.size.StoreRelaxed(0)
	}
}

// Size is the number of objects currently cached, fast slots and shards
// together. It is a snapshot: with Get/Put/Clear in flight the result is
// approximate.
func (p *ObjectPool[T]) Size() int {
	total := int64(0)
	for i := range p.fast {
		if p.fast[i].ptr.Load() != nil {
			total++
		}
	}
	for i := range p.shards {
		total += p.shards[i].size.LoadAcquire()
	}
	return int(total)
}

// closeDrainTimeout bounds how long Close waits for in-flight Get/Put calls
// to finish before proceeding anyway. Destruction is always safe provided
// no new operations begin after it starts; exceeding the timeout only
// means Clear proceeds while something may still be in flight.
const closeDrainTimeout = 2 * time.Second

// Close marks the pool as closing, waits briefly for concurrent operations
// to quiesce, then clears every shard. It does not assume cooperative
// quiescence from callers: exceeding the drain timeout is not fatal, it
// just means Clear proceeds while something may still be in flight.
func (p *ObjectPool[T]) Close() {
	p.closing.StoreRelease(true)

	deadline := time.Now().Add(closeDrainTimeout)
	sw := spin.Wait{}
	for p.activeOps.LoadAcquire() > 0 && time.Now().Before(deadline) {
		sw.Once()
	}

	for i := range p.fast {
		p.fast[i].ptr.Store(nil)
	}
	for i := range p.shards {
		s := &p.shards[i]
		s.mu.Lock()
		s.free = nil
		s.mu.Unlock()
		s.size.StoreRelaxed(0)
	}
}
