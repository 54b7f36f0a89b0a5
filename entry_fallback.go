// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !amd64 && !arm64 && !riscv64 && !loong64

package scq

import (
	"sync"
	"unsafe"
)

// dcasStripeCount is the process-global striped-mutex table size backing
// dcasCell where no native double-word CAS exists. Power of two, >= 16 so
// unrelated slots rarely collide.
const dcasStripeCount = 64

var dcasStripes [dcasStripeCount]struct {
	mu sync.Mutex
	_  pad
}

// stripeFor returns the stripe lock guarding addr, by address hash. A
// thread holding one stripe lock never needs a second: cas2 below only ever
// takes its own stripe.
func stripeFor(addr unsafe.Pointer) *sync.Mutex {
	h := uintptr(addr)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return &dcasStripes[h&(dcasStripeCount-1)].mu
}

// dcasCell is a plain entry guarded by its address's stripe lock. Used on
// architectures with no native double-word CAS; the choice is made by build
// tag alone (NewSCQP's forceFallback selects the side-array payload mode,
// not this type).
type dcasCell struct {
	e entry
}

func (c *dcasCell) init(e entry) {
	mu := stripeFor(unsafe.Pointer(c))
	mu.Lock()
	c.e = e
	mu.Unlock()
}

func (c *dcasCell) load() entry {
	mu := stripeFor(unsafe.Pointer(c))
	mu.Lock()
	e := c.e
	mu.Unlock()
	return e
}

func (c *dcasCell) cas2(expected *entry, desired entry) bool {
	if c == nil {
		return false
	}
	mu := stripeFor(unsafe.Pointer(c))
	mu.Lock()
	defer mu.Unlock()
	if c.e == *expected {
		c.e = desired
		return true
	}
	*expected = c.e
	return false
}
