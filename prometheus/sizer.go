package prometheus

import "context"

type Sizer interface {
	PendingCount(ctx context.Context) (uint, error)
	FailedCount(ctx context.Context) (uint, error)
}
