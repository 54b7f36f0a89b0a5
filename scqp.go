// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import (
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/scq/internal/dcasdetect"
)

// SCQP is a bounded FAA-based MPMC ring over *T. It runs the same
// ticket/cycle/safe-bit protocol as [SCQ], but the slot payload is
// parametric:
//
//   - pointer mode (the default): the slot holds the pointer directly,
//     packed with cycle_flags into one 128-bit DCAS word. nil is the empty
//     sentinel.
//   - fallback mode (forced, or automatic where there is no native
//     double-word CAS): the slot holds a small index, and the pointer lives
//     in a side array at that index, since the ring still needs its own
//     cycle/safe bits even when it can't pack a pointer directly.
//
// Unlike NCQ/SCQ, SCQP exposes boundedness: Enqueue returns false when the
// queue is observably full instead of spinning forever.
type SCQP[T any] struct {
	_          pad
	tail       atomix.Uint64
	_          pad
	head       atomix.Uint64
	_          pad
	threshold  atomix.Int64
	_          pad
	enqSuccess atomix.Int64
	_          pad
	deqSuccess atomix.Int64
	_          pad
	buffer     []dcasCell
	sidePtrs   []atomix.Uintptr // fallback mode only
	n          uint64           // physical ring size
	qsize      uint64           // usable capacity, n/2
	requested  int              // scqsize as given to the constructor
	fallback   bool
}

// NewSCQP creates an SCQP ring. scqsize is the physical ring size, clamped
// to >= 4 and rounded up to a power of two; usable capacity is scqsize/2.
// forceFallback selects the index+side-array mode even on architectures
// that have a native double-word CAS; otherwise the mode is chosen by
// probing for one.
func NewSCQP[T any](scqsize int, forceFallback bool) *SCQP[T] {
	n := uint64(roundUpPow2(scqsize))
	qsize := n / 2
	fallback := forceFallback || !dcasdetect.Native()

	q := &SCQP[T]{
		n:         n,
		qsize:     qsize,
		requested: scqsize,
		fallback:  fallback,
		buffer:    make([]dcasCell, n),
	}
	if fallback {
		q.sidePtrs = make([]atomix.Uintptr, n)
		for i := range q.sidePtrs {
			q.sidePtrs[i].StoreRelaxed(0)
		}
	}
	q.resetSlots()
	q.tail.StoreRelaxed(n)
	q.head.StoreRelaxed(n)
	q.threshold.StoreRelaxed(4*int64(qsize) - 1)
	return q
}

func (q *SCQP[T]) resetSlots() {
	empty := uint64(0)
	if q.fallback {
		empty = Empty
	}
	for i := range q.buffer {
		q.buffer[i].init(entry{cycleFlags: 0, value: empty})
	}
}

func ptrToUint[T any](ptr *T) uint64 {
	return uint64(uintptr(unsafe.Pointer(ptr)))
}

func uintToPtr[T any](v uint64) *T {
	return (*T)(unsafe.Pointer(uintptr(v)))
}

// IsUsingFallback reports whether this ring stores pointers indirectly
// through a side array instead of packing them directly into the slot.
func (q *SCQP[T]) IsUsingFallback() bool {
	return q.fallback
}

// Scqsize returns the physical ring size as requested at construction
// (before power-of-two rounding).
func (q *SCQP[T]) Scqsize() int {
	return q.requested
}

// Qsize returns the usable capacity (scqsize/2, after rounding).
func (q *SCQP[T]) Qsize() int {
	return int(q.qsize)
}

// Enqueue adds ptr to the queue. Returns false if ptr is nil or the queue
// is observably full.
func (q *SCQP[T]) Enqueue(ptr *T) bool {
	if ptr == nil {
		return false
	}
	if q.enqSuccess.LoadAcquire()-q.deqSuccess.LoadAcquire() >= int64(q.qsize) {
		return false
	}

	sw := spin.Wait{}
	retries := 0
	for {
		t := q.tail.AddAcqRel(1) - 1
		cycleT := t / q.n
		j := remap(t%q.n, q.n)

		var ok bool
		if q.fallback {
			ok = q.enqueueFallback(j, cycleT, ptr)
		} else {
			ok = q.enqueueNative(j, cycleT, ptr)
		}
		if ok {
			q.enqSuccess.AddAcqRel(1)
			if q.threshold.LoadRelaxed() != 4*int64(q.qsize)-1 {
				q.threshold.StoreRelaxed(4*int64(q.qsize) - 1)
			}
			return true
		}

		retries++
		if retries > dcasBoundedRetries {
			return false
		}
		sw.Once()
	}
}

func (q *SCQP[T]) enqueueNative(j, cycleT uint64, ptr *T) bool {
	cur := q.buffer[j].load()
	cycleE := cur.cycleFlags >> 1
	isSafe := cur.cycleFlags&1 != 0

	if cycleE < cycleT && cur.value == 0 && (isSafe || q.head.LoadAcquire() <= (cycleT*q.n)) {
		desired := entry{cycleFlags: (cycleT << 1) | 1, value: ptrToUint(ptr)}
		return q.buffer[j].cas2(&cur, desired)
	}
	return false
}

func (q *SCQP[T]) enqueueFallback(j, cycleT uint64, ptr *T) bool {
	raw := ptrToUint(ptr)
	q.sidePtrs[j].StoreRelease(uintptr(raw))

	cur := q.buffer[j].load()
	cycleE := cur.cycleFlags >> 1
	isSafe := cur.cycleFlags&1 != 0

	if cycleE < cycleT && cur.value == Empty && (isSafe || q.head.LoadAcquire() <= (cycleT*q.n)) {
		desired := entry{cycleFlags: (cycleT << 1) | 1, value: j}
		if q.buffer[j].cas2(&cur, desired) {
			return true
		}
	}
	q.sidePtrs[j].CompareAndSwapAcqRel(uintptr(raw), 0)
	return false
}

// dcasBoundedRetries caps how many tickets Enqueue claims for one call:
// each failed slot attempt abandons its ticket and claims a fresh one, and
// once this many attempts have failed Enqueue returns false rather than
// retrying forever. Dequeue does not use this bound.
const dcasBoundedRetries = 1 << 16

// Dequeue removes and returns a pointer, or nil if the queue looks empty.
func (q *SCQP[T]) Dequeue() *T {
	if q.threshold.LoadRelaxed() < 0 {
		if q.tail.LoadAcquire() > q.head.LoadAcquire() {
			q.threshold.StoreRelaxed(4*int64(q.qsize) - 1)
		} else {
			return nil
		}
	}

	sw := spin.Wait{}
	for {
		h := q.head.AddAcqRel(1) - 1
		cycleH := h / q.n
		j := remap(h%q.n, q.n)

		var ptr *T
		var ok bool
		if q.fallback {
			ptr, ok = q.dequeueFallback(j, cycleH)
		} else {
			ptr, ok = q.dequeueNative(j, cycleH)
		}
		if ok {
			q.deqSuccess.AddAcqRel(1)
			return ptr
		}

		if q.tail.LoadAcquire() <= h+1 {
			if q.threshold.AddAcqRel(-1) <= 0 {
				q.fixState()
			}
			return nil
		}
		sw.Once()
	}
}

func (q *SCQP[T]) dequeueNative(j, cycleH uint64) (*T, bool) {
	for {
		cur := q.buffer[j].load()
		cycleE := cur.cycleFlags >> 1
		isSafe := cur.cycleFlags&1 != 0

		if cycleE == cycleH && isSafe {
			desired := entry{cycleFlags: cur.cycleFlags, value: 0}
			if q.buffer[j].cas2(&cur, desired) {
				return uintToPtr[T](cur.value), true
			}
			continue
		}

		var desired entry
		if cur.value == 0 {
			desired = entry{cycleFlags: (cycleH << 1) | (cur.cycleFlags & 1), value: 0}
		} else {
			desired = entry{cycleFlags: cycleE << 1, value: cur.value}
		}
		if cycleE < cycleH {
			if q.buffer[j].cas2(&cur, desired) {
				return nil, false
			}
			continue
		}
		return nil, false
	}
}

func (q *SCQP[T]) dequeueFallback(j, cycleH uint64) (*T, bool) {
	for {
		cur := q.buffer[j].load()
		cycleE := cur.cycleFlags >> 1
		isSafe := cur.cycleFlags&1 != 0

		if cycleE == cycleH && isSafe {
			desired := entry{cycleFlags: cur.cycleFlags, value: Empty}
			if q.buffer[j].cas2(&cur, desired) {
				raw := q.sidePtrs[j].LoadAcquire()
				q.sidePtrs[j].CompareAndSwapAcqRel(raw, 0)
				return uintToPtr[T](uint64(raw)), true
			}
			continue
		}

		var desired entry
		if cur.value == Empty {
			desired = entry{cycleFlags: (cycleH << 1) | (cur.cycleFlags & 1), value: Empty}
		} else {
			desired = entry{cycleFlags: cycleE << 1, value: cur.value}
		}
		if cycleE < cycleH {
			if q.buffer[j].cas2(&cur, desired) {
				return nil, false
			}
			continue
		}
		return nil, false
	}
}

func (q *SCQP[T]) fixState() {
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

// Flush resets the dynamic threshold, the same batched-traffic escape
// hatch [SCQ.Flush] provides.
func (q *SCQP[T]) Flush() {
	q.threshold.StoreRelaxed(4*int64(q.qsize) - 1)
}

// IsEmpty is a best-effort snapshot built from the success counters rather
// than head/tail, since head/tail also count abandoned tickets.
func (q *SCQP[T]) IsEmpty() bool {
	return q.enqSuccess.LoadAcquire() <= q.deqSuccess.LoadAcquire()
}

// TryEnqueue adapts [SCQP.Enqueue] to the [code.hybscloud.com/iox]
// error-and-backoff convention used throughout this ecosystem: it returns
// [ErrWouldBlock] when ptr is nil or the ring is observably full — callers
// treat false/nil as backpressure and may retry.
func (q *SCQP[T]) TryEnqueue(ptr *T) error {
	if q.Enqueue(ptr) {
		return nil
	}
	return ErrWouldBlock
}

// TryDequeue is [SCQP.Dequeue]'s [ErrWouldBlock]-returning counterpart.
func (q *SCQP[T]) TryDequeue() (*T, error) {
	if v := q.Dequeue(); v != nil {
		return v, nil
	}
	return nil, ErrWouldBlock
}

// ResetForReuse resets cycles, tickets, threshold and success counters back
// to construction values. The caller must guarantee the ring is empty and
// has no concurrent users; it reports false instead of corrupting state if
// that precondition is visibly violated.
func (q *SCQP[T]) ResetForReuse() bool {
	if q.enqSuccess.LoadAcquire() != q.deqSuccess.LoadAcquire() {
		return false
	}
	q.resetSlots()
	if q.fallback {
		for i := range q.sidePtrs {
			q.sidePtrs[i].StoreRelaxed(0)
		}
	}
	q.tail.StoreRelaxed(q.n)
	q.head.StoreRelaxed(q.n)
	q.threshold.StoreRelaxed(4*int64(q.qsize) - 1)
	q.enqSuccess.StoreRelaxed(0)
	q.deqSuccess.StoreRelaxed(0)
	return true
}
