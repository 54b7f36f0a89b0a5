// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq

// pad is cache line padding to prevent false sharing between adjacent fields.
type pad [64]byte

// roundUpPow2 rounds n up to the next power of 2, with a floor of 4 — the
// minimum ring size every SCQ-family constructor accepts.
func roundUpPow2(n int) int {
	if n < 4 {
		return 4
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
