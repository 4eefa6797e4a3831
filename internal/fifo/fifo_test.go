package fifo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	r := NewRingBuffer[int](4, nil)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	assert.Equal(t, 1, r.Len())
}

func TestPopEmpty(t *testing.T) {
	r := NewRingBuffer[string](2, nil)
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestOverflowDropsOldest(t *testing.T) {
	r := NewRingBuffer[int](3, nil)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	r.Push(4) // drops 1

	assert.Equal(t, 3, r.Len())
	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestLenNeverExceedsCapacity(t *testing.T) {
	r := NewRingBuffer[int](5, nil)
	for i := 0; i < 100; i++ {
		r.Push(i)
		assert.LessOrEqual(t, r.Len(), r.Cap())
	}
	assert.Equal(t, 5, r.Len())
}

func TestResetClearsQueue(t *testing.T) {
	r := NewRingBuffer[int](4, nil)
	r.Push(1)
	r.Push(2)
	r.Reset()
	assert.Equal(t, 0, r.Len())
	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestConcurrentPushPop(t *testing.T) {
	r := NewRingBuffer[int](16, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Push(n*50 + j)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			r.Pop()
		}
	}()
	wg.Wait()
	assert.LessOrEqual(t, r.Len(), r.Cap())
}
