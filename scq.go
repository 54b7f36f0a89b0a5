// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// SCQ is a bounded FAA-based MPMC ring over uint64 values. It fixes NCQ's
// liveness hazard with a safe/unsafe slot bit and a dynamic threshold that
// bounds how much work an empty queue makes dequeuers waste.
//
// Physical ring size is scqsize (rounded to a power of two, >= 4); usable
// capacity is half of that, scqsize/2 — 2n physical slots for capacity n.
type SCQ struct {
	_         pad
	tail      atomix.Uint64
	_         pad
	head      atomix.Uint64
	_         pad
	threshold atomix.Int64
	_         pad
	buffer    []dcasCell
	n         uint64 // physical ring size (scqsize)
	qsize     uint64 // usable capacity, n/2
	bot       uint64 // ⊥, the "empty" sentinel stored in a slot's value word
}

// NewSCQ creates an SCQ ring. scqsize is the physical ring size and is
// clamped to >= 4 and rounded up to a power of two; usable capacity is
// scqsize/2.
func NewSCQ(scqsize int) *SCQ {
	n := uint64(roundUpPow2(scqsize))
	qsize := n / 2
	bot := n - 1

	q := &SCQ{
		buffer: make([]dcasCell, n),
		n:      n,
		qsize:  qsize,
		bot:    bot,
	}
	for i := range q.buffer {
		q.buffer[i].init(entry{cycleFlags: 0, value: bot})
	}
	q.tail.StoreRelaxed(n)
	q.head.StoreRelaxed(n)
	q.threshold.StoreRelaxed(3*int64(qsize) - 1)
	return q
}

// Enqueue adds value to the queue. Returns false only if value is the
// reserved sentinel [Empty] or is not representable (>= the ring's ⊥) —
// otherwise it spins, re-ticketing on contention, until it succeeds.
func (q *SCQ) Enqueue(value uint64) bool {
	if value == Empty || value >= q.bot {
		return false
	}
	sw := spin.Wait{}
	for {
		t := q.tail.AddAcqRel(1) - 1
		cycleT := t / q.n
		j := remap(t%q.n, q.n)

		cur := q.buffer[j].load()
		cycleE := cur.cycleFlags >> 1
		isSafe := cur.cycleFlags&1 != 0

		if cycleE < cycleT && cur.value == q.bot && (isSafe || q.head.LoadAcquire() <= t) {
			desired := entry{cycleFlags: (cycleT << 1) | 1, value: value}
			if q.buffer[j].cas2(&cur, desired) {
				if q.threshold.LoadRelaxed() != 3*int64(q.qsize)-1 {
					q.threshold.StoreRelaxed(3*int64(q.qsize) - 1)
				}
				return true
			}
		}
		// Ticket abandoned — a fresh fetch_add claims a new one next lap.
		sw.Once()
	}
}

// dequeueAt drives the per-slot protocol for ticket h's slot j. ok is false
// when the slot held nothing claimable for cycleH, meaning the caller should
// treat this ticket as an empty observation.
func (q *SCQ) dequeueAt(j, cycleH uint64) (value uint64, ok bool) {
	for {
		cur := q.buffer[j].load()
		cycleE := cur.cycleFlags >> 1
		isSafe := cur.cycleFlags&1 != 0

		if cycleE == cycleH && isSafe {
			desired := entry{cycleFlags: cur.cycleFlags, value: cur.value | q.bot}
			if q.buffer[j].cas2(&cur, desired) {
				return cur.value, true
			}
			continue
		}

		var desired entry
		if cur.value == q.bot {
			// Slot already drained; bump its cycle so the next enqueuer
			// can claim it without waiting a full extra lap.
			desired = entry{cycleFlags: (cycleH << 1) | (cur.cycleFlags & 1), value: q.bot}
		} else {
			// Slot holds a value but isn't ours — mark it unsafe so a
			// lagging enqueuer knows this dequeue inspected it.
			desired = entry{cycleFlags: cycleE << 1, value: cur.value}
		}
		if cycleE < cycleH {
			if q.buffer[j].cas2(&cur, desired) {
				return 0, false
			}
			continue
		}
		return 0, false
	}
}

// Dequeue removes and returns the oldest value, or [Empty] if the queue
// looks empty.
func (q *SCQ) Dequeue() uint64 {
	if q.threshold.LoadRelaxed() < 0 {
		if q.tail.LoadAcquire() > q.head.LoadAcquire() {
			q.threshold.StoreRelaxed(3*int64(q.qsize) - 1)
		} else {
			return Empty
		}
	}

	sw := spin.Wait{}
	for {
		h := q.head.AddAcqRel(1) - 1
		cycleH := h / q.n
		j := remap(h%q.n, q.n)

		if value, ok := q.dequeueAt(j, cycleH); ok {
			return value
		}

		if q.tail.LoadAcquire() <= h+1 {
			if q.threshold.AddAcqRel(-1) <= 0 {
				q.fixState()
			}
			return Empty
		}
		sw.Once()
	}
}

// fixState restores the tail-head <= scqsize invariant after a burst of
// empty dequeues has let tail lag head by more than a full lap.
func (q *SCQ) fixState() {
	for {
		h := q.head.LoadRelaxed()
		t := q.tail.LoadRelaxed()
		if h <= t || h-t <= q.n {
			return
		}
		if q.tail.CompareAndSwapRelaxed(t, h) {
			return
		}
	}
}

// Flush resets the dynamic threshold, undoing the depletion a burst of
// empty dequeues leaves behind even once the queue has been refilled. Useful
// after a purely batched "enqueue everything, then drain everything" burst,
// where the threshold heuristic (tuned for steady concurrent traffic) would
// otherwise leave Dequeue reporting empty for a queue that plainly isn't.
func (q *SCQ) Flush() {
	q.threshold.StoreRelaxed(3*int64(q.qsize) - 1)
}

// IsEmpty is a best-effort snapshot, not linearized with concurrent
// mutators.
func (q *SCQ) IsEmpty() bool {
	return q.tail.LoadAcquire() <= q.head.LoadAcquire()
}

// TryDequeue adapts [SCQ.Dequeue] to the [code.hybscloud.com/iox]
// error-and-backoff convention: it returns [ErrWouldBlock] instead of the
// sentinel [Empty] when the queue looks empty.
func (q *SCQ) TryDequeue() (uint64, error) {
	if v := q.Dequeue(); v != Empty {
		return v, nil
	}
	return 0, ErrWouldBlock
}

// Cap returns the ring's usable capacity (scqsize/2).
func (q *SCQ) Cap() int {
	return int(q.qsize)
}
