package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.json")

	require.NoError(t, AtomicWriteJSON(path, map[string]string{"key": "value"}, 0o600))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"key\": \"value\"\n}", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed away")
}

func TestAtomicWriteFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, AtomicWriteFile(path, []byte("one"), 0o644))
	require.NoError(t, AtomicWriteFile(path, []byte("two"), 0o644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))
}

func TestCopyDirSkipsLocks(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "User", "globalStorage"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "User", "globalStorage", "state.vscdb"), []byte("db"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "code.lock"), []byte("1"), 0o644))

	require.NoError(t, CopyDir(src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "User", "globalStorage", "state.vscdb"))
	require.NoError(t, err)
	assert.Equal(t, "db", string(content))
	assert.NoFileExists(t, filepath.Join(dst, "code.lock"))
}

func TestLockSerializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instances.json")

	unlock, err := Lock(context.Background(), path)
	require.NoError(t, err)
	assert.FileExists(t, path+".lock")

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = Lock(ctx, path)
	assert.Error(t, err, "second holder must wait for the first")

	unlock()
	unlock2, err := Lock(context.Background(), path)
	require.NoError(t, err)
	unlock2()
}
