// Package quota reports storage budget and usage.
//
// A Monitor asks an Estimator for the platform's view of used and total
// bytes. When no estimator is configured, or the estimator cannot answer,
// the monitor reports the fallback budget instead of failing.
package quota

import (
	"context"
	"log/slog"
)

// FallbackTotal is the budget reported when the platform cannot estimate
// storage: 5 GiB.
const FallbackTotal int64 = 5 * 1024 * 1024 * 1024

// Info is a storage snapshot.
type Info struct {
	Used       int64   `json:"used"`
	Total      int64   `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Fallback returns the conservative snapshot used when no estimate exists.
func Fallback() Info {
	return Info{Used: 0, Total: FallbackTotal, Percentage: 0}
}

func newInfo(used, total int64) Info {
	info := Info{Used: used, Total: total}
	if total > 0 {
		info.Percentage = float64(used) / float64(total) * 100
	}
	return info
}

// Estimator reports used and total bytes.
type Estimator interface {
	Estimate(ctx context.Context) (used, total int64, err error)
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(ctx context.Context) (int64, int64, error)

// Estimate calls f.
func (f EstimatorFunc) Estimate(ctx context.Context) (int64, int64, error) {
	return f(ctx)
}

// Monitor is a read-only storage reporter.
type Monitor struct {
	estimator Estimator
}

// New creates a Monitor. A nil estimator always reports Fallback.
func New(e Estimator) *Monitor {
	return &Monitor{estimator: e}
}

// StorageInfo returns the current snapshot. It never fails: estimator
// errors and nonsensical totals are logged and answered with Fallback.
func (m *Monitor) StorageInfo(ctx context.Context) Info {
	if m == nil || m.estimator == nil {
		return Fallback()
	}

	used, total, err := m.estimator.Estimate(ctx)
	if err != nil {
		slog.Warn("storage estimate unavailable, using fallback", "error", err)
		return Fallback()
	}
	if total <= 0 || used < 0 {
		slog.Warn("storage estimate rejected, using fallback", "used", used, "total", total)
		return Fallback()
	}
	return newInfo(used, total)
}
