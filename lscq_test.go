// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scq_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/scq"
)

func TestLSCQBasic(t *testing.T) {
	q := scq.NewLSCQ[int](8)
	defer q.Close()

	vals := []int{1, 2, 3}
	for i := range vals {
		if !q.Enqueue(&vals[i]) {
			t.Fatalf("Enqueue(%d) = false", i)
		}
	}
	for i := range vals {
		got := q.Dequeue()
		if got == nil || *got != vals[i] {
			t.Fatalf("Dequeue(%d) = %v, want %d", i, got, vals[i])
		}
	}
	if got := q.Dequeue(); got != nil {
		t.Fatalf("Dequeue on empty = %v, want nil", got)
	}
}

func TestLSCQRejectsNil(t *testing.T) {
	q := scq.NewLSCQ[int](8)
	defer q.Close()
	if q.Enqueue(nil) {
		t.Fatal("Enqueue(nil) = true, want false")
	}
}

// TestLSCQNodeExpansion uses scqsize=16, enqueues 150 distinct pointers
// (forcing node expansion), dequeues the first 50, enqueues 50 more, then
// drains the remaining 100. The second drain phase must yield 50..99 then
// 100..149 in order, followed by nil, and the pool must show at least one
// recycled node.
func TestLSCQNodeExpansion(t *testing.T) {
	q := scq.NewLSCQ[int](16)
	defer q.Close()

	const phase1 = 150
	vals := make([]int, phase1+50)
	for i := range phase1 {
		vals[i] = i
	}
	for i := range phase1 {
		if !q.Enqueue(&vals[i]) {
			t.Fatalf("Enqueue(%d) = false", i)
		}
	}

	for i := range 50 {
		got := q.Dequeue()
		if got == nil || *got != i {
			t.Fatalf("first drain %d: got %v, want %d", i, got, i)
		}
	}

	for i := range 50 {
		vals[phase1+i] = 100 + i
		if !q.Enqueue(&vals[phase1+i]) {
			t.Fatalf("Enqueue(%d) = false", 100+i)
		}
	}

	for i := range 100 {
		want := 50 + i
		got := q.Dequeue()
		if got == nil || *got != want {
			t.Fatalf("second drain %d: got %v, want %d", i, got, want)
		}
	}
	if got := q.Dequeue(); got != nil {
		t.Fatalf("Dequeue after full drain = %v, want nil", got)
	}
	if q.PoolSize() < 1 {
		t.Fatalf("PoolSize() = %d, want >= 1 recycled node", q.PoolSize())
	}
}

// TestLSCQDestructorSafety runs 8 threads enqueuing in a loop while the
// main goroutine closes the queue. No operation should panic, and
// operations racing with Close observe false/nil cleanly.
func TestLSCQDestructorSafety(t *testing.T) {
	q := scq.NewLSCQ[int](16)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	v := 1
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					q.Enqueue(&v)
				}
			}
		}()
	}

	close(stop)
	q.Close()
	wg.Wait()
}
