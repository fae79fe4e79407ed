package reactive

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImmediate_RunsInline(t *testing.T) {
	ran := false
	Immediate.Schedule(func() { ran = true })
	assert.True(t, ran)
}

func TestSchedulerFunc(t *testing.T) {
	var calls int
	s := SchedulerFunc(func(fn func()) { calls++; fn() })
	ran := false
	s.Schedule(func() { ran = true })
	assert.True(t, ran)
	assert.Equal(t, 1, calls)
}

func TestSerialQueue_OrderAndSerial(t *testing.T) {
	q := NewSerialQueue("test", nil)
	assert.Equal(t, "test", q.Name())

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		q.Schedule(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()
	q.Close()

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestSerialQueue_NestedSchedule(t *testing.T) {
	q := NewSerialQueue("nested", nil)
	done := make(chan string, 2)
	q.Schedule(func() {
		q.Schedule(func() { done <- "inner" })
		done <- "outer"
	})
	assert.Equal(t, "outer", <-done)
	assert.Equal(t, "inner", <-done)
	q.Close()
}

func TestSerialQueue_CloseRunsPendingAndDropsLater(t *testing.T) {
	q := NewSerialQueue("close", nil)
	ran := make(chan struct{}, 1)
	q.Schedule(func() { ran <- struct{}{} })
	q.Close()

	select {
	case <-ran:
	default:
		t.Fatal("pending task did not run before Close returned")
	}

	q.Schedule(func() { t.Error("task ran after Close") })
}
