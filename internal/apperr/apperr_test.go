package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestE(t *testing.T) {
	base := errors.New("disk full")
	err := E(Op("instance.Create"), KindStoreCorrupted, "writing instances.json", base)

	assert.Equal(t, "instance.Create: writing instances.json: disk full", err.Error())
	assert.True(t, Is(err, KindStoreCorrupted))
	assert.False(t, Is(err, KindNotFound))
	assert.ErrorIs(t, err, base)
}

func TestEWithoutError(t *testing.T) {
	err := E(Op("engine.Switch"), KindNotFound, "instance abc not found")
	assert.Equal(t, "engine.Switch: instance abc not found", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("switching: %w", StopTimedOut(Op("lifecycle.CloseMany"), []int{42, 7}))
	assert.Equal(t, KindStopTimedOut, KindOf(err))
	assert.Contains(t, err.Error(), "42, 7")
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{NotFound(Op("x"), "instance", "a"), KindNotFound},
		{Conflict(Op("x"), "dup"), KindConflict},
		{LaunchPathNotFound("vscode"), KindLaunchPathNotFound},
		{SpawnFailed("/bin/code", errors.New("eperm")), KindSpawnFailed},
		{FocusFailed(1, nil), KindFocusFailed},
		{InjectionFailed("encrypt sessions", nil), KindInjectionFailed},
		{StoreCorrupted("/tmp/x.json", errors.New("eof")), KindStoreCorrupted},
		{PlatformUnsupported(Op("x"), "plan9"), KindPlatformUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}
