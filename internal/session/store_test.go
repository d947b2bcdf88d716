package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	st := NewStore()

	_, ok := st.Get("MATH01-ZX9Q")
	assert.False(t, ok)

	first, _, _ := newSession(t)
	st.Put(first)
	got, ok := st.Get("MATH01-ZX9Q")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, st.Len())

	// a reconnect replaces the abandoned session outright
	second, _, _ := newSession(t)
	st.Put(second)
	got, _ = st.Get("MATH01-ZX9Q")
	assert.Same(t, second, got)
	assert.Equal(t, 1, st.Len())

	st.Remove("MATH01-ZX9Q")
	_, ok = st.Get("MATH01-ZX9Q")
	assert.False(t, ok)
	assert.Equal(t, 0, st.Len())
}
