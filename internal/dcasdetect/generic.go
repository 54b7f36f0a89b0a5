// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !amd64 && !arm64 && !riscv64 && !loong64

package dcasdetect

// Native reports whether this architecture supports a native double-word
// CAS. Always false here — callers fall back to the striped-mutex DCAS path.
func Native() bool {
	return false
}
