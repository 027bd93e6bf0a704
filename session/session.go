/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Seednode/cluebox/gameapi"
)

// MaxPlayers is the room size the game service allows.
const MaxPlayers = 6

// Session is the view state of a single browser. All fields are guarded by
// mu, which is never held across a request to the game service.
type Session struct {
	id string

	mu    sync.Mutex
	state State

	name     string
	roomCode string

	// membership, valid in Lobby and Playing
	cards   []string
	players []string

	accusation gameapi.Guess
	submitted  bool

	guessesCount int
	totalPlayers int
	pollErr      string

	// result, valid in Results
	result *gameapi.GameResult

	busy   bool
	notice *Notice

	// generation changes on every transition; responses started under an
	// older generation are dropped.
	generation uint64
	version    uint64
	lastActive time.Time

	stopPoll context.CancelFunc
	pollDone chan struct{}

	subs      map[chan Event]struct{}
	discarded bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:         id,
		state:      Menu,
		lastActive: now,
		subs:       make(map[chan Event]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.name
}

func (s *Session) RoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roomCode
}

func (s *Session) Cards() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.cards)
}

func (s *Session) Players() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.players)
}

func (s *Session) Accusation() gameapi.Guess {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accusation
}

func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.submitted
}

func (s *Session) Result() *gameapi.GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.busy
}

// Polling reports whether a status poller is attached to the session.
func (s *Session) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopPoll != nil
}

// Notice returns the pending notice without consuming it.
func (s *Session) Notice() *Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.notice == nil {
		return nil
	}

	n := *s.notice

	return &n
}

// Subscribe returns a channel that receives the latest Event after each
// change. Slow readers only ever see the most recent event.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, 1)
	if s.discarded {
		close(ch)

		return ch, func() {}
	}

	s.subs[ch] = struct{}{}
	ch <- Event{State: s.state, Version: s.version}

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActive
}

func (s *Session) publishLocked() {
	s.version++
	ev := Event{State: s.state, Version: s.version}

	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}

		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) setNoticeLocked(kind NoticeKind, text string) {
	s.notice = &Notice{Kind: kind, Text: text}
	s.publishLocked()
}

func (s *Session) takeNoticeLocked() *Notice {
	n := s.notice
	s.notice = nil

	return n
}

// clearLocked drops everything the session knows about a room.
func (s *Session) clearLocked() {
	s.name = ""
	s.roomCode = ""
	s.cards = nil
	s.players = nil
	s.accusation = gameapi.Guess{}
	s.submitted = false
	s.guessesCount = 0
	s.totalPlayers = 0
	s.pollErr = ""
	s.result = nil
	s.notice = nil
}

func (s *Session) stopPollingLocked() {
	if s.stopPoll != nil {
		s.stopPoll()
		s.stopPoll = nil
	}
}

func (s *Session) closeSubsLocked() {
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

// begin marks the session busy for an operation that must start in want.
// guard, if set, runs under the lock before the session is marked busy.
func (s *Session) begin(want State, guard func() error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.discarded:
		return 0, ErrDiscarded
	case s.busy:
		return 0, ErrBusy
	case s.state != want:
		return 0, ErrWrongState
	}

	if guard != nil {
		if err := guard(); err != nil {
			return 0, err
		}
	}

	s.busy = true
	s.publishLocked()

	return s.generation, nil
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.busy = false
	s.publishLocked()
}
