// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scq provides the Scalable Circular Queue (SCQ) family of lock-free
// multi-producer/multi-consumer FIFO queues, after Nikolaev (DISC 2019).
//
// # Queue variants
//
//   - [NCQ]: bounded ring over uint64 values. Didactic baseline; kept for
//     comparison against SCQ's liveness fix, not for production use.
//   - [SCQ]: bounded ring over uint64 values with the safe-bit/threshold
//     protocol that fixes NCQ's starvation hazard.
//   - [SCQP]: bounded ring over pointers, with a native double-word CAS fast
//     path and an index+side-array fallback on architectures without one.
//   - [LSCQ]: unbounded queue formed by chaining SCQP nodes, recycled through
//     an [ObjectPool].
//
// # Quick start
//
//	q := scq.NewSCQ(1024)
//	if !q.Enqueue(42) {
//	    // rejected only for scq.Empty or a value >= scqsize-1, never backpressure
//	}
//	v := q.Dequeue() // scq.Empty if empty
//
//	pq := scq.NewLSCQ[Job](256)
//	pq.Enqueue(&job)
//	j := pq.Dequeue() // nil if empty
//
// # Backpressure
//
// NCQ and SCQ never report "full": enqueue spins (NCQ) or retries a fresh
// ticket (SCQ) until it succeeds, since the ring only ever holds unsigned
// indices and the caller owns no object whose ownership would be ambiguous.
// SCQP and LSCQ deal in pointers, so they report a failed Enqueue (false) or
// an empty Dequeue (nil) rather than block — ownership of the rejected
// pointer stays with the caller. Every operation that can report backpressure this way also has a
// TryEnqueue/TryDequeue sibling translating it into [ErrWouldBlock], for
// callers that prefer the [code.hybscloud.com/iox] error-and-backoff
// convention the rest of the ecosystem uses:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := pq.TryEnqueue(&job)
//	    if err == nil {
//	        break
//	    }
//	    if !scq.IsWouldBlock(err) {
//	        panic(err) // unreachable for this queue family, kept for symmetry
//	    }
//	    backoff.Wait()
//	}
package scq
