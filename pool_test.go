// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"code.hybscloud.com/scq"
)

func TestObjectPoolGetPutRoundTrip(t *testing.T) {
	var factoryCalls atomic.Int64
	p := scq.NewObjectPool[int](func() *int {
		factoryCalls.Add(1)
		v := 0
		return &v
	}, 4)

	obj := p.Get()
	if obj == nil {
		t.Fatal("Get() on a fresh pool = nil")
	}
	p.Put(obj)
	if p.Size() == 0 && factoryCalls.Load() == 0 {
		t.Fatal("inconsistent pool state after Put")
	}
}

func TestObjectPoolClear(t *testing.T) {
	p := scq.NewObjectPool[int](func() *int {
		v := 0
		return &v
	}, 4)

	objs := make([]*int, 8)
	for i := range objs {
		objs[i] = p.Get()
	}
	for _, o := range objs {
		p.Put(o)
	}
	p.Clear()
	if got := p.Size(); got != 0 {
		t.Fatalf("Size() after Clear() = %d, want 0", got)
	}
}

func TestObjectPoolRejectsNilPut(t *testing.T) {
	p := scq.NewObjectPool[int](func() *int {
		v := 0
		return &v
	}, 2)
	// Must not panic.
	p.Put(nil)
}

func TestObjectPoolCloseRejectsNewOps(t *testing.T) {
	p := scq.NewObjectPool[int](func() *int {
		v := 0
		return &v
	}, 2)
	p.Close()
	if got := p.Get(); got != nil {
		t.Fatalf("Get() after Close() = %v, want nil", got)
	}
	if got := p.Size(); got != 0 {
		t.Fatalf("Size() after Close() = %d, want 0", got)
	}
}

// TestObjectPoolClearUnderConcurrency races 16 get/put goroutines against
// a goroutine repeatedly calling Clear. Each object the factory mints
// carries a unique serial. Once every goroutine has stopped, a final Clear
// must leave Size() at zero, and the factory must have been invoked.
func TestObjectPoolClearUnderConcurrency(t *testing.T) {
	var nextSerial atomic.Int64
	type stamped struct{ serial int64 }

	p := scq.NewObjectPool[stamped](func() *stamped {
		return &stamped{serial: nextSerial.Add(1)}
	}, 8)

	const workers = 16
	const opsPerWorker = 2000
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range opsPerWorker {
				obj := p.Get()
				if obj != nil {
					p.Put(obj)
				}
			}
		}()
	}

	stop := make(chan struct{})
	var clearWG sync.WaitGroup
	clearWG.Add(1)
	go func() {
		defer clearWG.Done()
		for {
			select {
			case <-stop:
				return
			default:
				p.Clear()
			}
		}
	}()

	wg.Wait()
	close(stop)
	clearWG.Wait()

	p.Clear()
	if got := p.Size(); got != 0 {
		t.Fatalf("Size() after final Clear() = %d, want 0", got)
	}
	if nextSerial.Load() == 0 {
		t.Fatal("factory was never invoked")
	}
}
