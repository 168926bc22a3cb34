package nudge

import (
	"context"

	"github.com/brk3/flux/pkg/flux"
)

// Querier fetches the user's snapshot. *apiclient.Client satisfies it.
type Querier interface {
	Bootstrap(ctx context.Context, token string) (*flux.Snapshot, error)
}
