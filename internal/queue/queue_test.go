package queue

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFO(t *testing.T) {
	q := New[string]()
	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push("a", "b")
	q.Push("c")
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())

	q.Push("d")
	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "d", got)
}

func TestDrain(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)
	_, _ = q.Pop()

	assert.Equal(t, []int{2, 3}, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestConcurrentProducers(t *testing.T) {
	q := New[int]()
	const producers, per = 8, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				q.Push(p*per + i)
			}
		}(p)
	}

	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(got) < producers*per {
			if v, ok := q.Pop(); ok {
				got = append(got, v)
			}
		}
	}()
	wg.Wait()
	<-done

	// per-producer order is preserved
	last := make(map[int]int)
	for _, v := range got {
		p := v / per
		if prev, seen := last[p]; seen {
			assert.Greater(t, v, prev)
		}
		last[p] = v
	}
	sort.Ints(got)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
