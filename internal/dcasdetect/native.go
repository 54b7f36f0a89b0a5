// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build amd64 || arm64 || riscv64 || loong64

package dcasdetect

// Native reports whether this architecture supports a native double-word
// CAS. These are the same architectures code.hybscloud.com/atomix's Uint128
// targets with lock-free instructions (CMPXCHG16B, LDXP/STXP pairs, etc).
func Native() bool {
	return true
}
