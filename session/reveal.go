/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"slices"
	"time"

	"github.com/Seednode/cluebox/gameapi"
)

// revealTTL bounds how long a room's solution is kept for players who
// check in after the room finished.
const revealTTL = time.Hour

type reveal struct {
	result *gameapi.GameResult
	at     time.Time
}

func cloneResult(r *gameapi.GameResult) *gameapi.GameResult {
	out := *r
	out.Results = slices.Clone(r.Results)

	return &out
}

// shareReveal remembers the first revealed result seen for a room and hands
// it to every later session of that room, since the service only sends the
// solution once. Unrevealed results are returned as they are when nothing
// is cached. A nil result passes through.
func (c *Controller) shareReveal(code string, result *gameapi.GameResult) *gameapi.GameResult {
	if result == nil {
		return nil
	}

	now := c.clock.Now()

	c.revealMu.Lock()
	defer c.revealMu.Unlock()

	for room, r := range c.reveals {
		if now.Sub(r.at) > revealTTL {
			delete(c.reveals, room)
		}
	}

	if result.Revealed {
		c.reveals[code] = reveal{result: cloneResult(result), at: now}

		return result
	}

	if r, ok := c.reveals[code]; ok {
		return cloneResult(r.result)
	}

	return result
}
