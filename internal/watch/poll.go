package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/retinue/pkg/wire"
)

// AuthorityReader reads who hosts a session. The Redis monitor satisfies it.
type AuthorityReader interface {
	Authority(ctx context.Context) (wire.PeerID, error)
}

// PollForAuthority polls until the session has a host.
// Polls every 200ms for the specified timeout duration.
func PollForAuthority(ctx context.Context, r AuthorityReader, timeout time.Duration) (wire.PeerID, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		id, err := r.Authority(ctx)
		if err != nil {
			return wire.NoPeer, fmt.Errorf("failed to query for authority: %w", err)
		}
		if id != wire.NoPeer {
			return id, nil
		}

		select {
		case <-ctx.Done():
			return wire.NoPeer, ctx.Err()
		case <-timeoutCh:
			return wire.NoPeer, fmt.Errorf("timeout waiting for a host after %v", timeout)
		case <-ticker.C:
		}
	}
}
