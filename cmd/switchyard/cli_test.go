package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/switchyard/internal/apperr"
	"github.com/neboloop/switchyard/internal/instance"
	"github.com/neboloop/switchyard/internal/target"
)

func TestParsePayloads(t *testing.T) {
	one, err := parsePayloads([]byte(`{"provider":"github","user_id":"1","access_token":"x"}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "1", one[0].UserID)

	many, err := parsePayloads([]byte(" [{\"provider\":\"github\"},{\"provider\":\"aws\"}]"))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	_, err = parsePayloads([]byte("nope"))
	assert.Error(t, err)
}

func TestResolveID(t *testing.T) {
	ctx := context.Background()
	def := filepath.Join(t.TempDir(), "Code")
	require.NoError(t, os.MkdirAll(def, 0o755))
	s, err := instance.NewStore(t.TempDir(), target.VSCode, instance.WithDefaultDir(def))
	require.NoError(t, err)
	p, err := s.Create(ctx, instance.CreateRequest{Name: "Work"})
	require.NoError(t, err)

	for _, arg := range []string{p.ID, "work", " WORK "} {
		id, err := resolveID(ctx, s, arg)
		require.NoError(t, err)
		assert.Equal(t, p.ID, id)
	}

	id, err := resolveID(ctx, s, "")
	require.NoError(t, err)
	assert.Equal(t, instance.DefaultID, id)

	_, err = resolveID(ctx, s, "home")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRootCommands(t *testing.T) {
	root := SetupRootCmd(nil)
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"instances", "start", "stop", "switch", "focus", "close-all", "status", "accounts", "scan"} {
		assert.Contains(t, names, want)
	}
}
