/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session implements the view controller behind each browser: the
// menu, lobby, playing and results state machine, and the requests it makes
// to the game service.
package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/cluebox/gameapi"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const DefaultPollInterval = 3 * time.Second

// GameService is the subset of the game service the controller needs.
// *gameapi.Client implements it.
type GameService interface {
	GameData(ctx context.Context) (*gameapi.Catalog, error)
	CreateRoom(ctx context.Context, playerName string) (*gameapi.CreateRoomResponse, error)
	JoinRoom(ctx context.Context, roomCode, playerName string) (*gameapi.JoinRoomResponse, error)
	StartGame(ctx context.Context, roomCode string) (*gameapi.StartGameResponse, error)
	MakeGuess(ctx context.Context, roomCode, playerName string, guess gameapi.Guess) (*gameapi.MakeGuessResponse, error)
	GameStatus(ctx context.Context, roomCode string) (*gameapi.GameStatus, error)
}

type Options struct {
	Clock        clockwork.Clock
	PollInterval time.Duration
	Logger       zerolog.Logger
}

type Controller struct {
	api      GameService
	clock    clockwork.Clock
	interval time.Duration
	log      zerolog.Logger

	// base parents every poller, so Close stops them all.
	base   context.Context
	cancel context.CancelFunc

	catalogMu  sync.RWMutex
	fetchMu    sync.Mutex
	catalog    *gameapi.Catalog
	catalogErr error

	revealMu sync.Mutex
	reveals  map[string]reveal
}

func NewController(api GameService, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	base, cancel := context.WithCancel(context.Background())

	return &Controller{
		api:      api,
		clock:    opts.Clock,
		interval: opts.PollInterval,
		log:      opts.Logger,
		base:     base,
		cancel:   cancel,
		reveals:  make(map[string]reveal),
	}
}

// Close stops every poller started by this controller.
func (c *Controller) Close() {
	c.cancel()
}

func (c *Controller) Clock() clockwork.Clock {
	return c.clock
}

// LoadCatalog fetches the catalog from the game service and caches it.
func (c *Controller) LoadCatalog(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if c.cachedCatalog() != nil {
		return nil
	}

	catalog, err := c.api.GameData(ctx)

	c.catalogMu.Lock()
	defer c.catalogMu.Unlock()

	if err != nil {
		c.catalogErr = err
		c.log.Error().Err(err).Msg("failed to load game catalog")

		return err
	}

	c.catalog = catalog
	c.catalogErr = nil

	c.log.Info().
		Int("suspects", len(catalog.Suspects)).
		Int("locations", len(catalog.Locations)).
		Int("weapons", len(catalog.Weapons)).
		Msg("loaded game catalog")

	return nil
}

// Catalog returns the cached catalog, fetching it again if an earlier load
// failed.
func (c *Controller) Catalog(ctx context.Context) (*gameapi.Catalog, error) {
	if catalog := c.cachedCatalog(); catalog != nil {
		return catalog, nil
	}

	if err := c.LoadCatalog(ctx); err != nil {
		return nil, err
	}

	return c.cachedCatalog(), nil
}

func (c *Controller) cachedCatalog() *gameapi.Catalog {
	c.catalogMu.RLock()
	defer c.catalogMu.RUnlock()

	return c.catalog
}

// transitionLocked moves s to the given state and starts or stops the
// status poller to match.
func (c *Controller) transitionLocked(s *Session, to State) {
	from := s.state
	if !canTransition(from, to) {
		c.log.Warn().
			Str("session", s.id).
			Stringer("from", from).
			Stringer("to", to).
			Msg("refusing illegal transition")

		return
	}

	if from == Playing && to != Playing {
		s.stopPollingLocked()
	}

	s.state = to
	s.generation++

	if to == Playing {
		c.startPollingLocked(s)
	}

	s.publishLocked()

	c.log.Info().
		Str("session", s.id).
		Str("room", s.roomCode).
		Stringer("from", from).
		Stringer("to", to).
		Msg("session transition")
}

// reject records a locally blocked action as a notice and returns err.
func (c *Controller) reject(s *Session, err error) error {
	text, ok := noticeText[err]
	if !ok {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setNoticeLocked(NoticeError, text)

	return err
}

// fail records a failed request as a notice. Rejections from the service are
// shown verbatim; anything else gets the operation's prefix.
func (c *Controller) fail(s *Session, gen uint64, prefix string, err error) error {
	text := err.Error()
	if !gameapi.IsRejected(err) {
		text = prefix + ": " + err.Error()
	}

	c.log.Warn().
		Err(err).
		Str("session", s.id).
		Bool("rejected", gameapi.IsRejected(err)).
		Msg(prefix)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation == gen {
		s.setNoticeLocked(NoticeError, text)
	}

	return err
}

func (c *Controller) CreateRoom(ctx context.Context, s *Session, name string) error {
	name = strings.TrimSpace(name)

	gen, err := s.begin(Menu, func() error {
		s.name = name
		if name == "" {
			return ErrNameRequired
		}

		return nil
	})
	if err != nil {
		return c.reject(s, err)
	}
	defer s.end()

	resp, err := c.api.CreateRoom(ctx, name)
	if err != nil {
		return c.fail(s, gen, "Erro ao criar sala", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return nil
	}

	s.name = name
	s.roomCode = resp.RoomCode
	s.cards = slices.Clone(resp.Cards)
	s.players = []string{name}
	c.transitionLocked(s, Lobby)

	return nil
}

func (c *Controller) JoinRoom(ctx context.Context, s *Session, name, roomCode string) error {
	name = strings.TrimSpace(name)
	roomCode = strings.ToUpper(strings.TrimSpace(roomCode))

	gen, err := s.begin(Menu, func() error {
		s.name = name
		s.roomCode = roomCode
		switch {
		case name == "":
			return ErrNameRequired
		case roomCode == "":
			return ErrRoomCodeRequired
		}

		return nil
	})
	if err != nil {
		return c.reject(s, err)
	}
	defer s.end()

	resp, err := c.api.JoinRoom(ctx, roomCode, name)
	if err != nil {
		return c.fail(s, gen, "Erro ao entrar na sala", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return nil
	}

	s.cards = slices.Clone(resp.Cards)
	s.players = slices.Clone(resp.Players)
	c.transitionLocked(s, Lobby)

	return nil
}

// RefreshLobby re-reads the room from the service. It picks up players who
// joined after us and follows the room into play if someone else started it.
func (c *Controller) RefreshLobby(ctx context.Context, s *Session) error {
	gen, err := s.begin(Lobby, nil)
	if err != nil {
		return c.reject(s, err)
	}
	defer s.end()

	code := s.RoomCode()

	status, err := c.api.GameStatus(ctx, code)
	if err != nil {
		return c.fail(s, gen, "Erro ao atualizar sala", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return nil
	}

	if len(status.Players) > 0 {
		s.players = slices.Clone(status.Players)
	}
	s.guessesCount = status.GuessesCount
	s.totalPlayers = status.TotalPlayers

	if status.Status == gameapi.StatusPlaying {
		c.transitionLocked(s, Playing)

		return nil
	}

	s.publishLocked()

	return nil
}

func (c *Controller) StartGame(ctx context.Context, s *Session) error {
	gen, err := s.begin(Lobby, func() error {
		if len(s.players) < 2 {
			return ErrNotEnoughPlayers
		}

		return nil
	})
	if err != nil {
		return c.reject(s, err)
	}
	defer s.end()

	code := s.RoomCode()

	resp, err := c.api.StartGame(ctx, code)
	if err != nil {
		return c.fail(s, gen, "Erro ao iniciar jogo", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		return nil
	}

	if len(resp.Players) > 0 {
		s.players = slices.Clone(resp.Players)
	}
	c.transitionLocked(s, Playing)

	return nil
}

// Select sets one part of the pending accusation. An empty value clears it.
func (c *Controller) Select(s *Session, field Field, value string) error {
	catalog := c.cachedCatalog()
	if catalog == nil {
		return c.reject(s, ErrCatalogUnavailable)
	}

	var options []string
	switch field {
	case FieldSuspect:
		options = catalog.Suspects
	case FieldLocation:
		options = catalog.Locations
	case FieldWeapon:
		options = catalog.Weapons
	default:
		return c.reject(s, ErrUnknownField)
	}

	if value != "" && !slices.Contains(options, value) {
		return c.reject(s, ErrUnknownCard)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.discarded:
		return ErrDiscarded
	case s.state != Playing:
		return ErrWrongState
	case s.busy:
		s.setNoticeLocked(NoticeError, noticeText[ErrBusy])

		return ErrBusy
	case s.submitted:
		s.setNoticeLocked(NoticeError, noticeText[ErrAlreadySubmitted])

		return ErrAlreadySubmitted
	}

	switch field {
	case FieldSuspect:
		s.accusation.Suspect = value
	case FieldLocation:
		s.accusation.Location = value
	case FieldWeapon:
		s.accusation.Weapon = value
	}

	s.publishLocked()

	return nil
}

// SubmitAccusation sends the pending accusation and immediately checks
// whether the game has finished.
func (c *Controller) SubmitAccusation(ctx context.Context, s *Session) error {
	var (
		code  string
		name  string
		guess gameapi.Guess
	)

	gen, err := s.begin(Playing, func() error {
		switch {
		case s.submitted:
			return ErrAlreadySubmitted
		case !s.accusation.Complete():
			return ErrIncompleteAccusation
		}

		code, name, guess = s.roomCode, s.name, s.accusation

		return nil
	})
	if err != nil {
		return c.reject(s, err)
	}

	_, err = c.api.MakeGuess(ctx, code, name, guess)
	if err != nil {
		s.end()

		return c.fail(s, gen, "Erro ao enviar palpite", err)
	}

	s.mu.Lock()
	if s.generation == gen {
		s.submitted = true
		s.setNoticeLocked(NoticeInfo, "Palpite enviado! Aguarde os outros jogadores.")
	}
	s.mu.Unlock()

	s.end()

	c.log.Info().
		Str("session", s.id).
		Str("room", code).
		Str("player", name).
		Msg("accusation submitted")

	if err := c.CheckStatus(ctx, s); err != nil && !errors.Is(err, ErrWrongState) {
		c.log.Debug().Err(err).Str("session", s.id).Msg("status check after accusation failed")
	}

	return nil
}

// CheckStatus asks the service whether the game has finished. Failures
// are logged and remembered as a hint; they never raise a notice.
func (c *Controller) CheckStatus(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if s.discarded || s.state != Playing {
		s.mu.Unlock()

		return ErrWrongState
	}
	gen, code := s.generation, s.roomCode
	s.mu.Unlock()

	status, err := c.api.GameStatus(ctx, code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen || s.state != Playing {
		return nil
	}

	if err != nil {
		c.log.Warn().Err(err).Str("session", s.id).Str("room", code).Msg("status check failed")

		if msg := err.Error(); s.pollErr != msg {
			s.pollErr = msg
			s.publishLocked()
		}

		return err
	}

	changed := s.pollErr != "" || s.guessesCount != status.GuessesCount || s.totalPlayers != status.TotalPlayers

	s.pollErr = ""
	s.guessesCount = status.GuessesCount
	s.totalPlayers = status.TotalPlayers

	// A finished room always ends the game for this session, with or
	// without the solution.
	if result := c.shareReveal(code, status.Result()); result != nil {
		if !result.Revealed {
			c.log.Warn().Str("session", s.id).Str("room", code).Msg("room finished without a reveal")
		}

		s.result = result
		c.transitionLocked(s, Results)

		return nil
	}

	if changed {
		s.publishLocked()
	}

	return nil
}

// Reset returns the session to the menu from any state.
func (c *Controller) Reset(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return
	}

	s.clearLocked()

	if s.state != Menu {
		c.transitionLocked(s, Menu)

		return
	}

	s.stopPollingLocked()
	s.generation++
	s.publishLocked()
}

// Discard tears a session down for good: the poller stops and every
// subscriber channel is closed.
func (c *Controller) Discard(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return
	}

	s.stopPollingLocked()
	s.discarded = true
	s.generation++
	s.closeSubsLocked()
}
