package reactive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := NewTaskQueue()
	var got []int
	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(func() { got = append(got, i) }))
	}
	assert.Equal(t, 3, q.Len())

	for {
		fn, ok := q.TryDequeue()
		if !ok {
			break
		}
		fn()
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestTaskQueue_TryDequeue_Empty(t *testing.T) {
	q := NewTaskQueue()
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestTaskQueue_DequeueBlocksUntilAvailable(t *testing.T) {
	q := NewTaskQueue()
	done := make(chan struct{})

	go func() {
		fn, ok := q.Dequeue()
		if ok {
			fn()
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock")
	}
}

func TestTaskQueue_CloseDrains(t *testing.T) {
	q := NewTaskQueue()
	ran := false
	q.Enqueue(func() { ran = true })
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(func() {}), "enqueue after close must fail")
	assert.False(t, q.Drained())

	fn, ok := q.Dequeue()
	require.True(t, ok)
	fn()
	assert.True(t, ran)

	_, ok = q.Dequeue()
	assert.False(t, ok)
	assert.True(t, q.Drained())

	select {
	case <-q.Wait():
	default:
		t.Fatal("Wait channel should be closed")
	}
}
