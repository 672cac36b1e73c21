package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, s LocalStorage) {
	t.Helper()

	_, ok, err := s.GetItem("cart")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem("cart", `[{"id":"r1"}]`))
	value, ok, err := s.GetItem("cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"r1"}]`, value)

	require.NoError(t, s.SetItem("cart", `[]`))
	value, _, err = s.GetItem("cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	require.NoError(t, s.RemoveItem("cart"))
	require.NoError(t, s.RemoveItem("cart"))
	_, ok, err = s.GetItem("cart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend()
	s, err := backend.For("client-1")
	require.NoError(t, err)
	exerciseStorage(t, s)

	again, err := backend.For("client-1")
	require.NoError(t, err)
	require.NoError(t, s.SetItem("session", "token"))
	value, ok, err := again.GetItem("session")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token", value)

	_, err = backend.For("../etc")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFileBackend(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	s, err := backend.For("client-1")
	require.NoError(t, err)
	exerciseStorage(t, s)

	// A second handle on the same client sees the same data, as after a reload
	require.NoError(t, s.SetItem("cart", `[1]`))
	reloaded, err := backend.For("client-1")
	require.NoError(t, err)
	value, ok, err := reloaded.GetItem("cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1]`, value)

	other, err := backend.For("client-2")
	require.NoError(t, err)
	_, ok, err = other.GetItem("cart")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, s.SetItem("../x", "v"), ErrInvalidKey)
}
