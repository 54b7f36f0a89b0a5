// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/scq"
)

// TestSCQSingleThreadFIFO enqueues 0..100 into an SCQ(256), dequeues 100
// times, and expects 0..99 in order then Empty.
func TestSCQSingleThreadFIFO(t *testing.T) {
	q := scq.NewSCQ(256)

	for i := range uint64(100) {
		if !q.Enqueue(i) {
			t.Fatalf("Enqueue(%d) = false", i)
		}
	}
	for i := range uint64(100) {
		if v := q.Dequeue(); v != i {
			t.Fatalf("Dequeue() = %d, want %d", v, i)
		}
	}
	if v := q.Dequeue(); v != scq.Empty {
		t.Fatalf("Dequeue on drained queue = %d, want Empty", v)
	}
}

func TestSCQRejectsSentinelAndOutOfRange(t *testing.T) {
	q := scq.NewSCQ(16) // qsize = 8, bot = 15

	if q.Enqueue(scq.Empty) {
		t.Fatal("Enqueue(Empty) = true, want false")
	}
	if q.Enqueue(15) {
		t.Fatal("Enqueue(bot) = true, want false")
	}
	if !q.IsEmpty() {
		t.Fatal("rejected enqueues must not change state")
	}
}

func TestSCQCap(t *testing.T) {
	// scqsize 16 rounds to 16; usable capacity is scqsize/2 = 8.
	if got := scq.NewSCQ(16).Cap(); got != 8 {
		t.Fatalf("Cap() = %d, want 8", got)
	}
}

func TestSCQFullRingDrainsExactly(t *testing.T) {
	q := scq.NewSCQ(16)
	cap := q.Cap()
	for i := range uint64(cap) {
		if !q.Enqueue(i) {
			t.Fatalf("Enqueue(%d) failed before reaching capacity", i)
		}
	}
	for i := range uint64(cap) {
		if v := q.Dequeue(); v != i {
			t.Fatalf("Dequeue() = %d, want %d", v, i)
		}
	}
	if v := q.Dequeue(); v != scq.Empty {
		t.Fatalf("Dequeue on drained queue = %d, want Empty", v)
	}
}

// TestSCQFlushAfterBatchedTraffic checks the documented liveness caveat:
// after a burst of empty dequeues has depleted the threshold, Flush lets
// a subsequent enqueue-all-then-dequeue-all burst observe values again
// without waiting for the threshold to refill organically.
func TestSCQFlushAfterBatchedTraffic(t *testing.T) {
	q := scq.NewSCQ(16)

	for range 64 {
		if v := q.Dequeue(); v != scq.Empty {
			t.Fatalf("Dequeue on empty queue = %d, want Empty", v)
		}
	}

	q.Flush()

	for i := range uint64(4) {
		if !q.Enqueue(i) {
			t.Fatalf("Enqueue(%d) failed after Flush", i)
		}
	}
	for i := range uint64(4) {
		if v := q.Dequeue(); v != i {
			t.Fatalf("Dequeue() = %d, want %d", v, i)
		}
	}
}

func TestSCQWrapAroundManyCycles(t *testing.T) {
	q := scq.NewSCQ(8) // qsize = 4
	for round := range uint64(50) {
		for i := range uint64(4) {
			v := (round*4 + i) % 7 // stays below the ring's ⊥ (7)
			if !q.Enqueue(v) {
				t.Fatalf("round %d enqueue %d failed", round, i)
			}
		}
		for i := range uint64(4) {
			want := (round*4 + i) % 7
			if got := q.Dequeue(); got != want {
				t.Fatalf("round %d: got %d, want %d", round, got, want)
			}
		}
	}
}

func TestSCQConcurrentMPMC(t *testing.T) {
	if scq.RaceEnabled {
		t.Skip("skip under race detector")
	}

	// ⊥ = scqsize-1 must stay above every value enqueued below.
	const scqsize = 1 << 14
	q := scq.NewSCQ(scqsize)
	const producers, perProducer = 4, 2000
	const total = producers * perProducer

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			base := uint64(id) * perProducer
			for i := range uint64(perProducer) {
				for !q.Enqueue(base + i) {
				}
			}
		}(p)
	}

	results := make(chan uint64, total)
	var remaining atomix.Int64
	remaining.StoreRelaxed(total)
	for range producers {
		go func() {
			for remaining.LoadAcquire() > 0 {
				v := q.Dequeue()
				if v == scq.Empty {
					continue
				}
				results <- v
				remaining.AddAcqRel(-1)
			}
		}()
	}

	wg.Wait()

	seen := make(map[uint64]bool, total)
	for range total {
		v := <-results
		if seen[v] {
			t.Fatalf("duplicate value %d", v)
		}
		seen[v] = true
	}
}
