// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import "testing"

// TestPoolWorkStealing seeds shard 1 directly, then checks that a Get
// routed to shard 0 steals shard 1's object instead of calling the
// factory.
func TestPoolWorkStealing(t *testing.T) {
	factoryCalls := 0
	p := NewObjectPool[int](func() *int {
		factoryCalls++
		v := 0
		return &v
	}, 4)

	seeded := 99
	p.shards[1].free = append(p.shards[1].free, &seeded)
	p.shards[1].size.StoreRelaxed(1)

	// The first Get after construction lands on shard 0 (counter starts
	// at zero).
	got := p.Get()
	if got != &seeded {
		t.Fatalf("Get() = %p, want the seeded object %p", got, &seeded)
	}
	if factoryCalls != 0 {
		t.Fatalf("factory called %d times, want 0", factoryCalls)
	}
}

// TestPoolStealingSkipsLockedShard checks that if the only populated
// shard is locked, Get falls through to the factory rather than
// blocking.
func TestPoolStealingSkipsLockedShard(t *testing.T) {
	factoryCalls := 0
	p := NewObjectPool[int](func() *int {
		factoryCalls++
		v := 1
		return &v
	}, 4)

	seeded := 99
	p.shards[1].free = append(p.shards[1].free, &seeded)
	p.shards[1].size.StoreRelaxed(1)
	p.shards[1].mu.Lock()
	defer p.shards[1].mu.Unlock()

	got := p.Get()
	if got == &seeded {
		t.Fatal("Get() returned the object behind a locked shard")
	}
	if factoryCalls != 1 {
		t.Fatalf("factory called %d times, want 1", factoryCalls)
	}
}

func TestPoolFastSlotRoundTrip(t *testing.T) {
	p := NewObjectPool[int](func() *int {
		v := 0
		return &v
	}, 4)

	obj := p.Get()
	*obj = 42
	p.Put(obj)

	got := p.Get()
	if got != obj {
		t.Fatalf("Get() after Put() = %p, want the same object %p", got, obj)
	}
	if *got != 42 {
		t.Fatalf("*Get() = %d, want 42", *got)
	}
}
