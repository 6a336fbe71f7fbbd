package statedb

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	_, ok, err := db.Get(ctx, "github.copilot.authStatus")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Put(ctx, "github.copilot.authStatus", `{"status":"signedIn"}`))
	require.NoError(t, db.Put(ctx, "github.copilot.authStatus", `{"status":"signedOut"}`))
	v, ok, err := db.Get(ctx, "github.copilot.authStatus")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"status":"signedOut"}`, v, "put replaces")

	require.NoError(t, db.Delete(ctx, "github.copilot.authStatus"))
	require.NoError(t, db.Delete(ctx, "missing"))
	_, ok, err = db.Get(ctx, "github.copilot.authStatus")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeysPrefix(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	for _, k := range []string{"secret://b", "secret://a", "workbench.panel", "secret%x"} {
		require.NoError(t, db.Put(ctx, k, "1"))
	}
	keys, err := db.Keys(ctx, "secret://")
	require.NoError(t, err)
	assert.Equal(t, []string{"secret://a", "secret://b"}, keys)

	all, err := db.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestBootstrapFromDefault(t *testing.T) {
	ctx := context.Background()
	defaultDir, dir := t.TempDir(), t.TempDir()

	def, err := OpenDir(defaultDir)
	require.NoError(t, err)
	require.NoError(t, def.Put(ctx, "workbench.colorTheme", "Dark+"))
	require.NoError(t, def.Close())

	created, err := Bootstrap(ctx, dir, defaultDir)
	require.NoError(t, err)
	assert.True(t, created)

	db, err := OpenDir(dir)
	require.NoError(t, err)
	v, ok, err := db.Get(ctx, "workbench.colorTheme")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.True(t, ok)
	assert.Equal(t, "Dark+", v)

	created, err = Bootstrap(ctx, dir, defaultDir)
	require.NoError(t, err)
	assert.False(t, created, "existing database is left alone")
}

func TestBootstrapEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	created, err := Bootstrap(ctx, dir, t.TempDir())
	require.NoError(t, err)
	assert.True(t, created)
	_, err = os.Stat(Path(dir))
	require.NoError(t, err)

	db, err := OpenDir(dir)
	require.NoError(t, err)
	defer db.Close()
	keys, err := db.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestBootstrapDefaultDirItself(t *testing.T) {
	dir := t.TempDir()
	created, err := Bootstrap(context.Background(), dir, dir)
	require.NoError(t, err)
	assert.True(t, created)
}
