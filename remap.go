// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

// remap maps a logical ring slot i (0 <= i < scqsize) to a physical index
// that spreads consecutive tickets across cache lines.
//
// With 16-byte entries and 64-byte cache lines, four entries share a line.
// remap computes which line a slot would naturally fall on (i>>2) and its
// offset within a group of four (i&3), then lays groups out so that four
// consecutive logical slots land on four different lines instead of the
// same one: remap = offset*(scqsize/4) + line.
//
// remap is a bijection on [0, scqsize) and depends only on i and scqsize.
func remap(i, scqsize uint64) uint64 {
	const entriesPerLine = 4
	if scqsize < entriesPerLine {
		return i
	}
	line := i >> 2
	offset := i & (entriesPerLine - 1)
	return offset*(scqsize/entriesPerLine) + line
}
