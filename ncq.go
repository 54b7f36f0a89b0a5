// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Empty is the sentinel NCQ and SCQ return from Dequeue on an empty queue,
// and the value Enqueue rejects as input.
const Empty uint64 = ^uint64(0)

// NCQ is the bounded, didactic baseline of the SCQ family: a ring over
// uint64 values with no safe bit and no dynamic threshold.
//
// NCQ never returns "full" from Enqueue — a stalled producer just makes
// other producers spin helping it publish, which is also NCQ's known
// liveness hazard: a producer that stalls after winning a slot but before
// the helping CAS on tail completes can, in principle, wedge a consumer
// spinning on that slot's cycle indefinitely. SCQ's safe bit and threshold
// exist specifically to bound this; NCQ is kept only for comparison and for
// regressing the helping protocol itself, never for production use.
type NCQ struct {
	_      pad
	tail   atomix.Uint64
	_      pad
	head   atomix.Uint64
	_      pad
	buffer []dcasCell
	n      uint64
}

// NewNCQ creates an NCQ ring. scqsize is clamped to >= 4 and rounded up to
// a power of two.
func NewNCQ(scqsize int) *NCQ {
	n := uint64(roundUpPow2(scqsize))
	q := &NCQ{
		buffer: make([]dcasCell, n),
		n:      n,
	}
	for i := range q.buffer {
		q.buffer[i].init(entry{cycleFlags: 0, value: 0})
	}
	// head/tail start a full cycle ahead of the slots' cycle 0, so an
	// untouched ring reads as empty rather than full.
	q.tail.StoreRelaxed(n)
	q.head.StoreRelaxed(n)
	return q
}

// Enqueue adds value to the queue. Returns false only if value is the
// reserved sentinel [Empty] — otherwise it spins until it succeeds.
func (q *NCQ) Enqueue(value uint64) bool {
	if value == Empty {
		return false
	}
	sw := spin.Wait{}
	for {
		t := q.tail.LoadAcquire()
		cycleT := t / q.n
		j := remap(t%q.n, q.n)
		cur := q.buffer[j].load()

		switch {
		case cur.cycleFlags == cycleT:
			// Another producer already published into this ticket but
			// tail hasn't caught up yet — help it along.
			q.tail.CompareAndSwapAcqRel(t, t+1)
		case cur.cycleFlags+1 == cycleT:
			desired := entry{cycleFlags: cycleT, value: value}
			if q.buffer[j].cas2(&cur, desired) {
				q.tail.CompareAndSwapAcqRel(t, t+1)
				return true
			}
		}
		sw.Once()
	}
}

// Dequeue removes and returns the oldest value, or [Empty] if the queue
// looks empty.
func (q *NCQ) Dequeue() uint64 {
	sw := spin.Wait{}
	for {
		h := q.head.LoadAcquire()
		cycleH := h / q.n
		j := remap(h%q.n, q.n)
		cur := q.buffer[j].load()

		if cur.cycleFlags != cycleH && cur.cycleFlags+1 == cycleH {
			return Empty
		}
		if cur.cycleFlags == cycleH {
			if q.head.CompareAndSwapAcqRel(h, h+1) {
				return cur.value
			}
		}
		sw.Once()
	}
}

// IsEmpty is a best-effort snapshot, not linearized with concurrent
// mutators.
func (q *NCQ) IsEmpty() bool {
	return q.tail.LoadAcquire() == q.head.LoadAcquire()
}

// TryDequeue adapts [NCQ.Dequeue] to the [code.hybscloud.com/iox]
// error-and-backoff convention: it returns [ErrWouldBlock] instead of the
// sentinel [Empty] when the queue looks empty.
func (q *NCQ) TryDequeue() (uint64, error) {
	if v := q.Dequeue(); v != Empty {
		return v, nil
	}
	return 0, ErrWouldBlock
}

// Cap returns the ring's usable capacity.
func (q *NCQ) Cap() int {
	return int(q.n)
}
