package qa

import (
	"context"
	"time"
)

var NowFunc = time.Now // mockable

// Freshness tells polling clients whether anything was approved since they last looked.
type Freshness struct {
	store FreshnessStore
}

func NewFreshness(store FreshnessStore) *Freshness {
	return &Freshness{store: store}
}

func (f *Freshness) MarkApprovalNow(ctx context.Context) error {
	// millisecond precision is what polling clients send back
	return f.store.SetLastApproval(ctx, NowFunc().UTC().Truncate(time.Millisecond))
}

// HasNewApprovals reports whether the latest approval is strictly after since.
func (f *Freshness) HasNewApprovals(ctx context.Context, since time.Time) (bool, error) {
	last, err := f.store.LastApproval(ctx)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return false, nil
	}
	return last.After(since), nil
}

// LastApproval returns the latest approval time (zero when none).
func (f *Freshness) LastApproval(ctx context.Context) (time.Time, error) {
	return f.store.LastApproval(ctx)
}
