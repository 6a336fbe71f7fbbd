//go:build !linux && !darwin && !windows

package proc

import (
	"context"
	"runtime"

	"github.com/neboloop/switchyard/internal/apperr"
)

type systemLister struct{}

func (systemLister) List(ctx context.Context, q Query) ([]RawProcess, error) {
	return nil, apperr.PlatformUnsupported(apperr.Op("proc.List"), "process listing on "+runtime.GOOS)
}
