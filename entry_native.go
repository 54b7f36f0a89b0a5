// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build amd64 || arm64 || riscv64 || loong64

package scq

import "code.hybscloud.com/atomix"

// dcasCell is backed by a native 128-bit CAS on architectures atomix.Uint128
// supports directly. lo=cycleFlags, hi=value.
type dcasCell struct {
	word atomix.Uint128
}

func (c *dcasCell) init(e entry) {
	c.word.StoreRelaxed(e.cycleFlags, e.value)
}

func (c *dcasCell) load() entry {
	lo, hi := c.word.LoadAcquire()
	return entry{cycleFlags: lo, value: hi}
}

func (c *dcasCell) cas2(expected *entry, desired entry) bool {
	if c == nil {
		return false
	}
	if c.word.CompareAndSwapAcqRel(expected.cycleFlags, expected.value, desired.cycleFlags, desired.value) {
		return true
	}
	lo, hi := c.word.LoadAcquire()
	expected.cycleFlags, expected.value = lo, hi
	return false
}
