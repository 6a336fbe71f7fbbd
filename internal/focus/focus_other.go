//go:build !darwin && !linux && !windows

package focus

import (
	"context"

	"github.com/neboloop/switchyard/internal/apperr"
)

type systemFocuser struct{}

func (systemFocuser) Focus(ctx context.Context, pid int) error {
	return apperr.PlatformUnsupported("focus", "window focus")
}
