package nudge

import (
	"context"

	"github.com/brk3/flux/pkg/flux"
)

type mockClient struct {
	snapshot *flux.Snapshot
	token    string
	err      error
}

func (f *mockClient) Bootstrap(ctx context.Context, token string) (*flux.Snapshot, error) {
	f.token = token
	return f.snapshot, f.err
}
