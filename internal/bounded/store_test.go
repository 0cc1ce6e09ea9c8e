package bounded

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		_, err := New[string, int](c)
		require.ErrorIs(t, err, ErrInvalidCapacity)
	}
}

func TestPut_NeverExceedsCapacity(t *testing.T) {
	s, err := New[int, int](3)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		s.Put(i%7, i)
		if i%3 == 0 {
			s.Get((i + 1) % 7)
		}
		require.LessOrEqual(t, s.Len(), 3)
	}
}

func TestPut_EvictsFirstInserted(t *testing.T) {
	s, _ := New[string, int](3)
	for i := 0; i < 4; i++ {
		s.Put(fmt.Sprintf("k%d", i), i)
	}

	assert.False(t, s.Has("k0"))
	assert.Equal(t, []string{"k1", "k2", "k3"}, s.Keys())
}

func TestGet_RefreshesRecency(t *testing.T) {
	s, _ := New[string, int](2)
	s.Put("a", 1)
	s.Put("b", 2)

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	s.Put("c", 3)
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("b"))
}

func TestPut_UpdateRefreshesRecencyKeepsPosition(t *testing.T) {
	s, _ := New[string, int](2)
	s.Put("a", 1)
	s.Put("b", 2)
	s.Put("a", 10)
	s.Put("c", 3)

	assert.Equal(t, []string{"a", "c"}, s.Keys())
	v, _ := s.Peek("a")
	assert.Equal(t, 10, v)
}

func TestPeekAndItems_DoNotTouchRecency(t *testing.T) {
	s, _ := New[string, int](2)
	s.Put("a", 1)
	s.Put("b", 2)

	s.Peek("a")
	for range s.Items() {
	}
	s.Put("c", 3)

	assert.False(t, s.Has("a"))
}

func TestItems_Restartable(t *testing.T) {
	s, _ := New[string, int](5)
	s.Put("x", 1)
	s.Put("y", 2)

	collect := func() []string {
		var out []string
		for k, v := range s.Items() {
			out = append(out, fmt.Sprintf("%s=%d", k, v))
		}
		return out
	}
	assert.Equal(t, []string{"x=1", "y=2"}, collect())
	assert.Equal(t, collect(), collect())

	// early break leaves the store intact
	for range s.Items() {
		break
	}
	assert.Equal(t, 2, s.Len())
}

func TestOnEvict(t *testing.T) {
	s, _ := New[string, int](1)
	var evicted []string
	s.OnEvict(func(k string, _ int) { evicted = append(evicted, k) })

	s.Put("a", 1)
	s.Put("b", 2)
	s.Put("b", 3)

	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, 1, s.Cap())
}
