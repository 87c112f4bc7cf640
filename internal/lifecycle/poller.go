package lifecycle

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

const maxPollDelay = 2 * time.Minute

// Watch polls the node status until ctx is done. While the node is running but its
// status surface does not answer, polls are spaced out exponentially.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = interval
	boff.MaxInterval = maxPollDelay
	boff.MaxElapsedTime = 0
	boff.Reset()

	delay := interval
	var last NodeStatus
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		m.cache.Delete(statusKey)
		status := m.Status(ctx)

		if status.Running != last.Running || status.State != last.State {
			m.logger.Info().
				Bool("running", status.Running).
				Str("state", string(status.State)).
				Int64("block_height", status.BlockHeight).
				Msg("node status changed")
		}
		last = status

		if status.Running && !status.Reachable {
			delay = boff.NextBackOff()
			continue
		}

		boff.Reset()
		delay = interval
	}
}
