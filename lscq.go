// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

import (
	"runtime"
	"time"
	"unsafe"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/scq/ebr"
)

// lscqNode is one link of the LSCQ chain: an SCQP ring plus a next pointer
// and a one-shot finalized gate, each isolated on its own cache line.
type lscqNode[T any] struct {
	_         pad
	ring      *SCQP[T]
	_         pad
	next      atomix.Uintptr // *lscqNode[T], 0 means nil
	_         pad
	finalized atomix.Bool
	_         pad
}

func nodeAddr[T any](n *lscqNode[T]) uintptr {
	return uintptr(unsafe.Pointer(n))
}

func nodeFromAddr[T any](addr uintptr) *lscqNode[T] {
	return (*lscqNode[T])(unsafe.Pointer(addr))
}

// lscqBoundedRetries caps LSCQ's enqueue retry loop so that "return false"
// under extreme contention is a legitimate outcome rather than an
// unbounded spin.
const lscqBoundedRetries = 1 << 12

// lscqDequeueRetries rides out SCQP's threshold false negatives on a node
// that looks non-empty but reported nothing.
const lscqDequeueRetries = 64

// lscqNextWaitSpins bounds how long Dequeue waits for a finalized, drained
// node's next link to be installed before giving up for this call.
const lscqNextWaitSpins = 1 << 10

// LSCQ is the unbounded queue formed by chaining [SCQP] nodes. Drained head
// nodes are recycled through an internal [ObjectPool] instead of being
// freed and reallocated.
type LSCQ[T any] struct {
	_         pad
	head      atomix.Uintptr
	_         pad
	tail      atomix.Uintptr
	_         pad
	closing   atomix.Bool
	_         pad
	activeOps atomix.Int64
	_         pad
	pool      *ObjectPool[lscqNode[T]]
	scqsize   int
	legacyEBR *ebr.Manager // nil unless constructed via NewLSCQWithLegacyEBR
}

// NewLSCQ creates an LSCQ whose nodes are SCQP rings of the given scqsize.
func NewLSCQ[T any](scqsize int) *LSCQ[T] {
	q := &LSCQ[T]{scqsize: scqsize}
	q.pool = NewObjectPool[lscqNode[T]](func() *lscqNode[T] {
		return &lscqNode[T]{ring: NewSCQP[T](scqsize, false)}
	}, 0)

	first := q.pool.Get()
	first.next.StoreRelaxed(0)
	first.finalized.StoreRelease(false)
	raw := nodeAddr(first)
	q.head.StoreRelaxed(raw)
	q.tail.StoreRelaxed(raw)
	return q
}

// NewLSCQWithLegacyEBR is a source-compatible legacy constructor: it
// accepts an [ebr.Manager] but ignores it beyond storing it for
// introspection — the queue itself always reclaims through the pool-based
// path, which is canonical regardless of which constructor created it.
func NewLSCQWithLegacyEBR[T any](mgr *ebr.Manager, scqsize int) *LSCQ[T] {
	q := NewLSCQ[T](scqsize)
	q.legacyEBR = mgr
	return q
}

func (q *LSCQ[T]) enter() bool {
	q.activeOps.AddAcqRel(1)
	if q.closing.LoadAcquire() {
		q.activeOps.AddAcqRel(-1)
		return false
	}
	return true
}

func (q *LSCQ[T]) exit() {
	q.activeOps.AddAcqRel(-1)
}

func (q *LSCQ[T]) newNode() *lscqNode[T] {
	n := q.pool.Get()
	n.next.StoreRelaxed(0)
	n.finalized.StoreRelease(false)
	return n
}

// releaseNode resets the drained ring and returns the node to the pool.
// ResetForReuse's failure return is not propagated: a node only reaches
// here once it is either brand new (never enqueued into) or drained and
// sealed, so the reset is expected to succeed; if it doesn't (a residual
// in-flight operation the SCQP threshold heuristic hasn't caught up to
// yet), the node still goes back to the pool rather than being leaked.
func (q *LSCQ[T]) releaseNode(n *lscqNode[T]) {
	n.ring.ResetForReuse()
	q.pool.Put(n)
}

// Enqueue adds ptr to the queue. Returns false if ptr is nil or the
// bounded retry budget is exhausted under extreme contention — a
// legitimate outcome, not an error.
func (q *LSCQ[T]) Enqueue(ptr *T) bool {
	if ptr == nil {
		return false
	}
	if !q.enter() {
		return false
	}
	defer q.exit()

	sw := spin.Wait{}
	for retries := 0; retries < lscqBoundedRetries; retries++ {
		tailRaw := q.tail.LoadAcquire()
		tailNode := nodeFromAddr[T](tailRaw)

		if tailNode.ring.Enqueue(ptr) {
			return true
		}

		if tailNode.finalized.CompareAndSwapAcqRel(false, true) {
			newNode := q.newNode()
			newRaw := nodeAddr(newNode)
			if tailNode.next.CompareAndSwapAcqRel(0, newRaw) {
				q.tail.CompareAndSwapAcqRel(tailRaw, newRaw)
			} else {
				q.releaseNode(newNode)
			}
		}

		if nextRaw := tailNode.next.LoadAcquire(); nextRaw != 0 {
			q.tail.CompareAndSwapAcqRel(tailRaw, nextRaw)
		} else {
			sw.Once()
		}
	}
	return false
}

// Dequeue removes and returns a pointer, or nil if the queue looks empty.
func (q *LSCQ[T]) Dequeue() *T {
	if !q.enter() {
		return nil
	}
	defer q.exit()

	sw := spin.Wait{}
	for {
		headRaw := q.head.LoadAcquire()
		headNode := nodeFromAddr[T](headRaw)

		if v := headNode.ring.Dequeue(); v != nil {
			return v
		}

		nextRaw := headNode.next.LoadAcquire()
		finalized := headNode.finalized.LoadAcquire()

		if !finalized && nextRaw == 0 {
			// No next link and no producer has sealed this node: the
			// queue is truly empty.
			return nil
		}

		if !headNode.ring.IsEmpty() {
			// The ring reports non-empty despite Dequeue returning nil:
			// an SCQP threshold false negative. Ride it out with a few
			// bounded retries before looping back to re-evaluate head
			// from scratch.
			found := false
			for i := 0; i < lscqDequeueRetries; i++ {
				if v := headNode.ring.Dequeue(); v != nil {
					found = true
					return v
				}
				runtime.Gosched()
			}
			if !found {
				continue
			}
		}

		if !finalized {
			sw.Once()
			continue
		}

		// Finalized and (as best we can tell) empty: wait, bounded, for
		// the next link to be installed, then advance head past it.
		for i := 0; nextRaw == 0 && i < lscqNextWaitSpins; i++ {
			sw.Once()
			nextRaw = headNode.next.LoadAcquire()
		}
		if nextRaw == 0 {
			return nil
		}
		if q.head.CompareAndSwapAcqRel(headRaw, nextRaw) {
			q.releaseNode(headNode)
		}
	}
}

// PoolSize reports the approximate number of drained nodes currently
// cached in the internal recycling pool.
func (q *LSCQ[T]) PoolSize() int {
	return q.pool.Size()
}

// TryEnqueue adapts [LSCQ.Enqueue] to the [code.hybscloud.com/iox]
// error-and-backoff convention: [ErrWouldBlock] for a nil pointer or
// bounded-retry exhaustion under extreme contention.
func (q *LSCQ[T]) TryEnqueue(ptr *T) error {
	if q.Enqueue(ptr) {
		return nil
	}
	return ErrWouldBlock
}

// TryDequeue is [LSCQ.Dequeue]'s [ErrWouldBlock]-returning counterpart.
func (q *LSCQ[T]) TryDequeue() (*T, error) {
	if v := q.Dequeue(); v != nil {
		return v, nil
	}
	return nil, ErrWouldBlock
}

// lscqCloseDrainTimeout mirrors the pool's bounded destructor wait.
const lscqCloseDrainTimeout = 2 * time.Second

// Close quiesces concurrent operations, returns every still-linked node to
// the pool, then clears the pool. No operation in flight when Close is
// called crashes; operations that begin after Close starts observe
// false/nil cleanly via the op guard.
func (q *LSCQ[T]) Close() {
	q.closing.StoreRelease(true)

	deadline := time.Now().Add(lscqCloseDrainTimeout)
	sw := spin.Wait{}
	for q.activeOps.LoadAcquire() > 0 && time.Now().Before(deadline) {
		sw.Once()
	}

	raw := q.head.LoadAcquire()
	for raw != 0 {
		n := nodeFromAddr[T](raw)
		next := n.next.LoadAcquire()
		q.pool.Put(n)
		raw = next
	}
	q.pool.Clear()
}
