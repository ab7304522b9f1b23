package quota

import (
	"context"
	"errors"

	"github.com/roach88/learnsync/internal/store"
)

// ErrNoBudget is returned by StoreEstimator for a store without a byte budget.
var ErrNoBudget = errors.New("store has no byte budget")

// StoreEstimator reports the bytes held by a LocalStore against its
// configured byte budget.
type StoreEstimator struct {
	Store *store.Store
}

// Estimate implements Estimator.
func (e StoreEstimator) Estimate(ctx context.Context) (int64, int64, error) {
	budget := e.Store.ByteBudget()
	if budget <= 0 {
		return 0, 0, ErrNoBudget
	}
	used, err := e.Store.Usage(ctx)
	if err != nil {
		return 0, 0, err
	}
	return used, budget, nil
}
