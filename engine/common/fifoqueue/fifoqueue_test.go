package fifoqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFifoOrder(t *testing.T) {
	queue, err := NewFifoQueue()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.True(t, queue.Push(i))
	}
	require.Equal(t, 10, queue.Len())

	head, ok := queue.Front()
	require.True(t, ok)
	require.Equal(t, 0, head)

	for i := 0; i < 10; i++ {
		element, ok := queue.Pop()
		require.True(t, ok)
		require.Equal(t, i, element)
	}
	_, ok = queue.Pop()
	require.False(t, ok)
}

func TestCapacityDropsOverflow(t *testing.T) {
	queue, err := NewFifoQueue(WithCapacity(2))
	require.NoError(t, err)

	require.True(t, queue.Push("a"))
	require.True(t, queue.Push("b"))
	require.False(t, queue.Push("c"))
	require.Equal(t, 2, queue.Len())

	element, ok := queue.Pop()
	require.True(t, ok)
	require.Equal(t, "a", element)
	require.True(t, queue.Push("c"))
}

func TestInvalidConstructorArguments(t *testing.T) {
	_, err := NewFifoQueue(WithCapacity(0))
	require.Error(t, err)
	_, err = NewFifoQueue(WithLengthObserver(nil))
	require.Error(t, err)
}

func TestLengthObserver(t *testing.T) {
	var mu sync.Mutex
	var observed []int
	queue, err := NewFifoQueue(WithLengthObserver(func(length int) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, length)
	}))
	require.NoError(t, err)

	queue.Push(1)
	queue.Push(2)
	queue.Pop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 1}, observed)
}

func TestConcurrentPushPop(t *testing.T) {
	queue, err := NewFifoQueue()
	require.NoError(t, err)

	const producers = 4
	const perProducer = 250

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				queue.Push(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		_, ok := queue.Pop()
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, producers*perProducer, count)
}
