//go:build linux || darwin

package quota

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// DiskEstimator reports the filesystem holding Path: total size and the
// bytes unavailable to unprivileged writers.
type DiskEstimator struct {
	Path string
}

// Estimate implements Estimator.
func (e DiskEstimator) Estimate(ctx context.Context) (int64, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	var st unix.Statfs_t
	if err := unix.Statfs(e.Path, &st); err != nil {
		return 0, 0, fmt.Errorf("statfs %s: %w", e.Path, err)
	}

	bsize := uint64(st.Bsize)
	total := uint64(st.Blocks) * bsize
	avail := uint64(st.Bavail) * bsize
	if avail > total {
		avail = total
	}
	return int64(total - avail), int64(total), nil
}
