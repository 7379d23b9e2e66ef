package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore(t *testing.T) {
	s := NewMemoryTokenStore()

	token, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, s.Save("abc"))
	token, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, s.Clear())
	token, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "player.token")
	s := NewFileTokenStore(path)

	token, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, token, "a missing file is no token")

	require.NoError(t, s.Save("abc"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// a second store on the same path sees the token, like a page reload
	token, err = NewFileTokenStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear(), "clearing twice is fine")
	token, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}
