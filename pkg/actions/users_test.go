package actions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticUserDirectory_EmailFor(t *testing.T) {
	directory := StaticUserDirectory{"recruiter-1": "grace@example.com"}

	address, err := directory.EmailFor(context.Background(), "recruiter-1")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", address)

	address, err = directory.EmailFor(context.Background(), "alan@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alan@example.com", address)

	_, err = directory.EmailFor(context.Background(), "recruiter-2")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLoadUserDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"recruiter-1":"grace@example.com"}`), 0600))

	directory, err := LoadUserDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, StaticUserDirectory{"recruiter-1": "grace@example.com"}, directory)

	empty, err := LoadUserDirectory("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = LoadUserDirectory(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
