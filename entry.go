// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

// entry is the 16-byte slot packed into every NCQ/SCQ/SCQP ring.
// cycleFlags holds the bare cycle (NCQ) or (cycle<<1)|safe (SCQ/SCQP);
// value holds a user value, an index, or a pointer bit pattern depending
// on the ring that owns the slot.
type entry struct {
	cycleFlags uint64
	value      uint64
}

// dcasCell wraps one entry behind a double-word compare-and-swap. Two
// implementations exist, selected per architecture at compile time
// (entry_native.go / entry_fallback.go) rather than through a runtime
// dispatch table, so the native path is directly callable with no per-op
// vtable indirection.
//
// cas2(expected, desired): if the cell's current value equals *expected,
// atomically stores desired and returns true. Otherwise overwrites
// *expected with the observed value and returns false. A nil receiver
// returns false without modifying *expected.
