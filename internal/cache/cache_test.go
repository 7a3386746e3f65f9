package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Deterministic(t *testing.T) {
	a := Key("GET", "https://example.com/a", "")
	b := Key("GET", "https://example.com/a", "")
	c := Key("GET", "https://example.com/b", "")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	m.Set("k", []byte("body"), 60)

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("body"), got)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := NewMemory()
	m.Set("k", []byte("body"), 60)

	got, ok := m.Get("k")
	require.True(t, ok)
	got[0] = 'X'

	again, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("body"), again)
}

func TestMemory_Expiry(t *testing.T) {
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }

	m.Set("k", []byte("body"), 60)
	_, ok := m.Get("k")
	require.True(t, ok)

	now = now.Add(61 * time.Second)
	_, ok = m.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_ZeroTTLNotStored(t *testing.T) {
	m := NewMemory()
	m.Set("k", []byte("body"), 0)
	_, ok := m.Get("k")
	assert.False(t, ok)
}

func TestSQLite_SetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	s.Set("k", []byte("body"), 60)
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("body"), got)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSQLite_Expiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set("k", []byte("body"), 60)
	_, ok := s.Get("k")
	require.True(t, ok)

	now = now.Add(61 * time.Second)
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestSQLite_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	s.Set("k", []byte("v1"), 60)
	s.Set("k", []byte("v2"), 60)

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)
}
