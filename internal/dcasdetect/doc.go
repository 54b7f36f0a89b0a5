// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dcasdetect reports whether the running architecture offers a
// native double-word (128-bit) compare-and-swap, matching the set of
// architectures code.hybscloud.com/atomix's Uint128 type supports natively.
//
// Detection is a per-arch build-tag stub, the same shape as this module's
// former internal/asm stub-per-architecture package: one file per supported
// set of GOARCH values, each returning a compile-time constant. There is
// nothing to probe at runtime — the decision is fixed per architecture, so a
// build tag is cheaper and more honest than a runtime CPUID check.
package dcasdetect
