//go:build !(linux || darwin)

package quota

import (
	"context"
	"errors"
)

// DiskEstimator is unsupported on this platform; Monitor falls back.
type DiskEstimator struct {
	Path string
}

// Estimate always fails.
func (e DiskEstimator) Estimate(context.Context) (int64, int64, error) {
	return 0, 0, errors.New("disk estimate not supported on this platform")
}
