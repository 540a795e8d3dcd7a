package kv

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	_, ok, err := s.Get(KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(KeyToken, "abc"))
	require.NoError(t, s.Set(KeyToken, "def"))

	v, ok, err := s.Get(KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "def", v)

	require.NoError(t, s.Delete(KeyToken))
	require.NoError(t, s.Delete(KeyToken))

	_, ok, err = s.Get(KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_InjectedFailure(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set(KeyToken, "abc"))

	m.SetErr(ErrUnavailable)
	_, _, err := m.Get(KeyToken)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Error(t, m.Set(KeyToken, "x"))
	assert.True(t, m.Has(KeyToken))
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(KeyUserSnapshot, `{"id":"u1"}`))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(KeyUserSnapshot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"u1"}`, v)
}
