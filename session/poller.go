/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
)

// startPollingLocked attaches a status poller to s for as long as it stays
// in Playing. Any previous poller is cancelled first.
func (c *Controller) startPollingLocked(s *Session) {
	s.stopPollingLocked()

	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})

	s.stopPoll = cancel
	s.pollDone = done

	go c.poll(ctx, s, done)

	c.log.Debug().
		Str("session", s.id).
		Dur("interval", c.interval).
		Msg("started status polling")
}

func (c *Controller) poll(ctx context.Context, s *Session, done chan<- struct{}) {
	defer close(done)

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug().Str("session", s.id).Msg("stopped status polling")

			return
		case <-ticker.Chan():
			// A tick can race with cancellation; never poll once cancelled.
			if ctx.Err() != nil {
				return
			}

			_ = c.CheckStatus(ctx, s)
		}
	}
}
