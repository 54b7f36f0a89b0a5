// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ebr provides a three-generation epoch-based reclamation manager,
// retained only for the legacy LSCQ constructor and for comparison against
// the pool-based reclamation the rest of this module uses. The pool-based
// LSCQ is canonical; EBR is kept for source compatibility with callers
// that still construct a manager explicitly.
package ebr

import (
	"sync"
	"unsafe"

	"code.hybscloud.com/atomix"
)

const generations = 3

type retired struct {
	ptr     unsafe.Pointer
	deleter func(unsafe.Pointer)
}

// record is a thread's observed-epoch/active pair. Go has no user-level
// thread-local storage, so a record is handed to the caller as part of a
// [Guard] rather than looked up by thread id; the caller is responsible
// for not sharing one Guard across goroutines.
type record struct {
	_             pad
	observedEpoch atomix.Uint64
	active        atomix.Bool
	_             pad
}

type pad [64]byte

// Manager is a global epoch counter plus three generation buckets of
// retired pointers and their deleters.
type Manager struct {
	_           pad
	epoch       atomix.Uint64
	_           pad
	mu          sync.Mutex
	records     []*record
	generations [generations][]retired
}

// NewManager creates an EBR manager starting at epoch 0.
func NewManager() *Manager {
	return &Manager{}
}

// Guard brackets a critical section entered via [Manager.Enter]; the
// caller must call Exit exactly once, mirroring an RAII
// enter_critical/exit_critical pair.
type Guard struct {
	mgr *Manager
	rec *record
}

// Enter publishes the calling thread's observed epoch and marks it active.
// While the returned Guard is active, [Manager.TryReclaim] can advance the
// epoch at most one step past the epoch observed here.
func (m *Manager) Enter() *Guard {
	rec := &record{}
	rec.observedEpoch.StoreRelease(m.epoch.LoadAcquire())
	rec.active.StoreRelease(true)

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()

	return &Guard{mgr: m, rec: rec}
}

// Exit marks the guard's record inactive. The record itself is left in the
// manager's registry (cheap to scan, and this path is legacy/comparison
// only — see package doc) so a concurrent TryReclaim never races a record
// disappearing out from under it.
func (g *Guard) Exit() {
	g.rec.active.StoreRelease(false)
}

// Retire enqueues ptr into the current generation. deleter is invoked by a
// later TryReclaim once every thread active at retirement time has moved
// past this generation.
func (m *Manager) Retire(ptr unsafe.Pointer, deleter func(unsafe.Pointer)) {
	gen := m.epoch.LoadAcquire() % generations
	m.mu.Lock()
	m.generations[gen] = append(m.generations[gen], retired{ptr: ptr, deleter: deleter})
	m.mu.Unlock()
}

// TryReclaim advances the epoch when every active record has observed the
// current one, then frees generation epoch-2. A no-op if any active
// record is still lagging.
func (m *Manager) TryReclaim() {
	cur := m.epoch.LoadAcquire()

	m.mu.Lock()
	for _, r := range m.records {
		if r.active.LoadAcquire() && r.observedEpoch.LoadAcquire() != cur {
			m.mu.Unlock()
			return
		}
	}

	next := cur + 1
	m.epoch.StoreRelease(next)
	freeGen := (next + generations - 2) % generations
	toFree := m.generations[freeGen]
	m.generations[freeGen] = nil
	m.mu.Unlock()

	for _, r := range toFree {
		r.deleter(r.ptr)
	}
}
