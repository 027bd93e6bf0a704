/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/cluebox/gameapi"
	"github.com/Seednode/cluebox/gameapi/gameapitest"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const testInterval = 3 * time.Second

type harness struct {
	ctx   context.Context
	srv   *gameapitest.Server
	clock *clockwork.FakeClock
	ctrl  *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	srv := gameapitest.NewServer()
	t.Cleanup(srv.Close)

	return newHarnessWith(t, srv, gameapi.New(srv.URL))
}

func newHarnessWith(t *testing.T, srv *gameapitest.Server, api GameService) *harness {
	t.Helper()

	clock := clockwork.NewFakeClock()
	ctrl := NewController(api, Options{
		Clock:        clock,
		PollInterval: testInterval,
		Logger:       zerolog.Nop(),
	})
	t.Cleanup(ctrl.Close)

	ctx := context.Background()
	if err := ctrl.LoadCatalog(ctx); err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	return &harness{ctx: ctx, srv: srv, clock: clock, ctrl: ctrl}
}

func (h *harness) session() *Session {
	return newSession("test", h.clock.Now())
}

// lobby creates a room as Alice and has Bob join it on the service.
func (h *harness) lobby(t *testing.T) (*Session, string) {
	t.Helper()

	s := h.session()
	if err := h.ctrl.CreateRoom(h.ctx, s, "Alice"); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	code := s.RoomCode()
	if err := h.srv.AddPlayer(code, "Bob"); err != nil {
		t.Fatal(err)
	}

	if err := h.ctrl.RefreshLobby(h.ctx, s); err != nil {
		t.Fatalf("RefreshLobby: %v", err)
	}

	return s, code
}

func (h *harness) playing(t *testing.T) (*Session, string) {
	t.Helper()

	s, code := h.lobby(t)
	if err := h.ctrl.StartGame(h.ctx, s); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	return s, code
}

func (h *harness) selectAll(t *testing.T, s *Session, g gameapi.Guess) {
	t.Helper()

	for field, value := range map[Field]string{
		FieldSuspect:  g.Suspect,
		FieldLocation: g.Location,
		FieldWeapon:   g.Weapon,
	} {
		if err := h.ctrl.Select(s, field, value); err != nil {
			t.Fatalf("Select(%s, %q): %v", field, value, err)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func pollDone(s *Session) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pollDone
}

func TestCreateRoom(t *testing.T) {
	for _, name := range []string{"Alice", "  Bob  ", "Zoë", "Mr. Green"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			s := h.session()

			if err := h.ctrl.CreateRoom(h.ctx, s, name); err != nil {
				t.Fatalf("CreateRoom: %v", err)
			}

			want := strings.TrimSpace(name)

			if s.State() != Lobby {
				t.Errorf("state = %v, want lobby", s.State())
			}
			if got := s.Players(); !slices.Equal(got, []string{want}) {
				t.Errorf("players = %v, want [%s]", got, want)
			}
			if s.RoomCode() == "" || len(s.Cards()) == 0 {
				t.Errorf("membership not populated: code=%q cards=%v", s.RoomCode(), s.Cards())
			}
			if s.Busy() {
				t.Error("session still busy")
			}
		})
	}
}

func TestCreateRoomRequiresName(t *testing.T) {
	for _, name := range []string{"", "   ", "\t\n"} {
		h := newHarness(t)
		s := h.session()

		err := h.ctrl.CreateRoom(h.ctx, s, name)
		if !errors.Is(err, ErrNameRequired) {
			t.Errorf("CreateRoom(%q) = %v, want ErrNameRequired", name, err)
		}
		if s.State() != Menu {
			t.Errorf("state = %v, want menu", s.State())
		}
		if n := h.srv.Calls("/create-room"); n != 0 {
			t.Errorf("create-room called %d times", n)
		}
		if n := s.Notice(); n == nil || !n.IsError() {
			t.Errorf("notice = %+v, want error notice", n)
		}
	}
}

func TestJoinRoom(t *testing.T) {
	h := newHarness(t)

	created, err := gameapi.New(h.srv.URL).CreateRoom(h.ctx, "Alice")
	if err != nil {
		t.Fatal(err)
	}

	s := h.session()
	if err := h.ctrl.JoinRoom(h.ctx, s, " Bob ", " "+strings.ToLower(created.RoomCode)+" "); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if s.State() != Lobby {
		t.Fatalf("state = %v, want lobby", s.State())
	}
	if want := []string{"Alice", "Bob"}; !slices.Equal(s.Players(), want) {
		t.Errorf("players = %v, want %v", s.Players(), want)
	}
	if s.RoomCode() != created.RoomCode {
		t.Errorf("room code = %q, want %q", s.RoomCode(), created.RoomCode)
	}
	if s.Name() != "Bob" {
		t.Errorf("name = %q", s.Name())
	}
}

func TestJoinRoomFailuresKeepMenu(t *testing.T) {
	h := newHarness(t)

	created, err := gameapi.New(h.srv.URL).CreateRoom(h.ctx, "Alice")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		player   string
		code     string
		wantErr  error
		wantText string
		calls    int
	}{
		{name: "missing name", player: "", code: created.RoomCode, wantErr: ErrNameRequired, wantText: "Informe seu nome"},
		{name: "missing code", player: "Bob", code: "  ", wantErr: ErrRoomCodeRequired, wantText: "Informe o código da sala"},
		{name: "unknown room", player: "Bob", code: "ZZZZZZ", wantText: "Sala não encontrada", calls: 1},
		{name: "duplicate name", player: "Alice", code: created.RoomCode, wantText: "Nome de jogador já existe na sala", calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.srv.Calls("/join-room")
			s := h.session()

			err := h.ctrl.JoinRoom(h.ctx, s, tt.player, tt.code)
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if s.State() != Menu {
				t.Errorf("state = %v, want menu", s.State())
			}
			if len(s.Players()) != 0 || len(s.Cards()) != 0 {
				t.Errorf("membership changed: players=%v cards=%v", s.Players(), s.Cards())
			}
			if n := s.Notice(); n == nil || n.Text != tt.wantText {
				t.Errorf("notice = %+v, want %q", n, tt.wantText)
			}
			if got := h.srv.Calls("/join-room") - before; got != tt.calls {
				t.Errorf("join-room calls = %d, want %d", got, tt.calls)
			}
		})
	}
}

func TestTransportFailureNotice(t *testing.T) {
	h := newHarness(t)
	h.srv.Fail("/join-room", 502, "<html>bad gateway</html>")

	s := h.session()
	if err := h.ctrl.JoinRoom(h.ctx, s, "Bob", "ABC123"); err == nil {
		t.Fatal("expected an error")
	}

	n := s.Notice()
	if n == nil || !strings.HasPrefix(n.Text, "Erro ao entrar na sala: ") {
		t.Fatalf("notice = %+v", n)
	}
	if s.State() != Menu {
		t.Errorf("state = %v", s.State())
	}
	if s.RoomCode() != "ABC123" {
		t.Errorf("typed room code lost: %q", s.RoomCode())
	}
}

func TestStartGameNeedsTwoPlayers(t *testing.T) {
	h := newHarness(t)

	empty := h.session()
	empty.state = Lobby
	empty.roomCode = "ABC123"

	solo := h.session()
	if err := h.ctrl.CreateRoom(h.ctx, solo, "Alice"); err != nil {
		t.Fatal(err)
	}

	for _, s := range []*Session{empty, solo} {
		v := h.ctrl.View(h.ctx, s)
		if v.Lobby == nil || v.Lobby.CanStart {
			t.Errorf("players=%v: start available", s.Players())
		}

		if err := h.ctrl.StartGame(h.ctx, s); !errors.Is(err, ErrNotEnoughPlayers) {
			t.Errorf("players=%v: StartGame = %v", s.Players(), err)
		}
		if s.State() != Lobby {
			t.Errorf("state = %v, want lobby", s.State())
		}
	}

	if n := h.srv.Calls("/start-game"); n != 0 {
		t.Errorf("start-game called %d times", n)
	}
}

func TestStartGame(t *testing.T) {
	h := newHarness(t)
	s, _ := h.lobby(t)

	if v := h.ctrl.View(h.ctx, s); v.Lobby == nil || !v.Lobby.CanStart || v.Lobby.PlayerCount != 2 {
		t.Fatalf("lobby view = %+v", v.Lobby)
	}

	if err := h.ctrl.StartGame(h.ctx, s); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if s.State() != Playing {
		t.Errorf("state = %v, want playing", s.State())
	}
	if !s.Polling() {
		t.Error("poller not started")
	}
}

func TestStartGameRejected(t *testing.T) {
	h := newHarness(t)
	s, code := h.lobby(t)

	h.srv.ForceStart(code)

	if err := h.ctrl.StartGame(h.ctx, s); err == nil {
		t.Fatal("expected an error")
	}
	if s.State() != Lobby {
		t.Errorf("state = %v, want lobby", s.State())
	}
	if n := s.Notice(); n == nil || n.Text != "Jogo já iniciado ou finalizado" {
		t.Errorf("notice = %+v", n)
	}
}

func TestRefreshLobbyFollowsStartedGame(t *testing.T) {
	h := newHarness(t)
	s, code := h.lobby(t)

	h.srv.ForceStart(code)

	if err := h.ctrl.RefreshLobby(h.ctx, s); err != nil {
		t.Fatalf("RefreshLobby: %v", err)
	}
	if s.State() != Playing {
		t.Errorf("state = %v, want playing", s.State())
	}
}

func TestSubmitNeedsEveryField(t *testing.T) {
	full := gameapi.Guess{Suspect: "Plum", Location: "Library", Weapon: "Knife"}

	partial := []gameapi.Guess{
		{Location: full.Location, Weapon: full.Weapon},
		{Suspect: full.Suspect, Weapon: full.Weapon},
		{Suspect: full.Suspect, Location: full.Location},
		{Suspect: full.Suspect},
		{},
	}

	for _, g := range partial {
		h := newHarness(t)
		s, _ := h.playing(t)

		for _, f := range Fields {
			_ = h.ctrl.Select(s, f, "")
		}
		if g.Suspect != "" {
			_ = h.ctrl.Select(s, FieldSuspect, g.Suspect)
		}
		if g.Location != "" {
			_ = h.ctrl.Select(s, FieldLocation, g.Location)
		}
		if g.Weapon != "" {
			_ = h.ctrl.Select(s, FieldWeapon, g.Weapon)
		}

		if v := h.ctrl.View(h.ctx, s); v.Playing == nil || v.Playing.CanSubmit {
			t.Errorf("%+v: submit available", g)
		}

		err := h.ctrl.SubmitAccusation(h.ctx, s)
		if !errors.Is(err, ErrIncompleteAccusation) {
			t.Errorf("%+v: SubmitAccusation = %v", g, err)
		}
		if n := h.srv.Calls("/make-guess"); n != 0 {
			t.Errorf("%+v: make-guess called %d times", g, n)
		}
		if n := s.Notice(); n == nil || n.Text != "Selecione suspeito, local e arma" {
			t.Errorf("%+v: notice = %+v", g, n)
		}
	}
}

func TestSelectValidation(t *testing.T) {
	h := newHarness(t)

	menu := h.session()
	if err := h.ctrl.Select(menu, FieldSuspect, "Plum"); !errors.Is(err, ErrWrongState) {
		t.Errorf("select in menu = %v", err)
	}

	s, _ := h.playing(t)

	if err := h.ctrl.Select(s, FieldSuspect, "Colonel Sanders"); !errors.Is(err, ErrUnknownCard) {
		t.Errorf("unknown card = %v", err)
	}
	if err := h.ctrl.Select(s, Field("motive"), "Greed"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("unknown field = %v", err)
	}
	if n := s.Notice(); n == nil || !n.IsError() || n.Text != "Campo de palpite desconhecido" {
		t.Errorf("unknown field notice = %+v", n)
	}
	if err := h.ctrl.Select(s, FieldWeapon, "Knife"); err != nil {
		t.Errorf("valid select = %v", err)
	}
	if got := s.Accusation().Weapon; got != "Knife" {
		t.Errorf("weapon = %q", got)
	}
}

func TestSubmitAccusationChecksStatusImmediately(t *testing.T) {
	h := newHarness(t)
	s, _ := h.playing(t)

	before := h.srv.Calls("/game-status")

	h.selectAll(t, s, gameapi.Guess{Suspect: "Plum", Location: "Library", Weapon: "Knife"})
	if err := h.ctrl.SubmitAccusation(h.ctx, s); err != nil {
		t.Fatalf("SubmitAccusation: %v", err)
	}

	if got := h.srv.Calls("/game-status") - before; got != 1 {
		t.Errorf("status checks after submit = %d, want 1", got)
	}
	if n := s.Notice(); n == nil || n.IsError() || !strings.HasPrefix(n.Text, "Palpite enviado!") {
		t.Errorf("notice = %+v", n)
	}
	if !s.Submitted() {
		t.Error("accusation not frozen")
	}
	if s.State() != Playing {
		t.Errorf("state = %v, want playing while Bob has not guessed", s.State())
	}

	if err := h.ctrl.Select(s, FieldSuspect, "Green"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("select after submit = %v", err)
	}
	if err := h.ctrl.SubmitAccusation(h.ctx, s); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("second submit = %v", err)
	}

	v := h.ctrl.View(h.ctx, s)
	if v.Playing.GuessesCount != 1 || v.Playing.TotalPlayers != 2 {
		t.Errorf("progress = %d/%d", v.Playing.GuessesCount, v.Playing.TotalPlayers)
	}
}

func TestPollingStopsWhenLeavingPlaying(t *testing.T) {
	h := newHarness(t)
	s, _ := h.playing(t)

	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()

	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("poller never started: %v", err)
	}

	before := h.srv.Calls("/game-status")

	h.clock.Advance(testInterval)
	waitFor(t, "first poll", func() bool {
		return h.srv.Calls("/game-status") == before+1
	})

	h.clock.Advance(testInterval)
	waitFor(t, "second poll", func() bool {
		return h.srv.Calls("/game-status") == before+2
	})

	done := pollDone(s)
	h.ctrl.Reset(s)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit after reset")
	}

	for range 3 {
		h.clock.Advance(testInterval)
	}
	time.Sleep(20 * time.Millisecond)

	if got := h.srv.Calls("/game-status"); got != before+2 {
		t.Errorf("status calls after reset = %d, want %d", got, before+2)
	}
	if s.Polling() {
		t.Error("poller still attached")
	}
}

func TestPollingDetectsFinished(t *testing.T) {
	h := newHarness(t)
	s, code := h.playing(t)

	h.selectAll(t, s, gameapi.Guess{Suspect: "Plum", Location: "Library", Weapon: "Knife"})
	if err := h.ctrl.SubmitAccusation(h.ctx, s); err != nil {
		t.Fatal(err)
	}

	if err := h.srv.AddGuess(code, "Bob", gameapitest.DefaultSolution); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()

	if err := h.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}

	done := pollDone(s)
	h.clock.Advance(testInterval)

	waitFor(t, "results", func() bool { return s.State() == Results })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit after results")
	}

	result := s.Result()
	if result == nil {
		t.Fatal("no result stored")
	}
	if !result.Revealed || result.Solution != gameapitest.DefaultSolution {
		t.Errorf("solution = %+v", result.Solution)
	}
	if len(result.Results) != 2 {
		t.Fatalf("results = %+v", result.Results)
	}

	for _, r := range result.Results {
		switch r.Player {
		case "Alice":
			if r.Correct {
				t.Error("Alice marked correct")
			}
		case "Bob":
			if !r.Correct {
				t.Error("Bob marked incorrect")
			}
		default:
			t.Errorf("unexpected player %q", r.Player)
		}
	}

	v := h.ctrl.View(h.ctx, s)
	if v.Results == nil || v.Playing != nil || v.Lobby != nil || v.Menu != nil {
		t.Errorf("view sections = %+v", v)
	}

	calls := h.srv.Calls("/game-status")
	h.clock.Advance(testInterval)
	time.Sleep(20 * time.Millisecond)

	if got := h.srv.Calls("/game-status"); got != calls {
		t.Errorf("polled %d more times after results", got-calls)
	}
}

func TestPollFailureIsQuiet(t *testing.T) {
	h := newHarness(t)
	s, code := h.playing(t)

	h.srv.Fail("/game-status/"+code, 500, `{"error":"boom"}`)

	if err := h.ctrl.CheckStatus(h.ctx, s); err == nil {
		t.Fatal("expected an error")
	}

	if s.State() != Playing {
		t.Errorf("state = %v", s.State())
	}
	if n := s.Notice(); n != nil {
		t.Errorf("poll failure raised notice %+v", n)
	}

	v := h.ctrl.View(h.ctx, s)
	if v.Playing == nil || v.Playing.PollError != "boom" {
		t.Errorf("poll error hint = %+v", v.Playing)
	}

	h.srv.Recover("/game-status/" + code)

	if err := h.ctrl.CheckStatus(h.ctx, s); err != nil {
		t.Fatal(err)
	}
	if v := h.ctrl.View(h.ctx, s); v.Playing.PollError != "" {
		t.Errorf("poll error not cleared: %q", v.Playing.PollError)
	}
}

func TestCheckStatusOutsidePlaying(t *testing.T) {
	h := newHarness(t)
	s, _ := h.lobby(t)

	before := h.srv.Calls("/game-status")

	if err := h.ctrl.CheckStatus(h.ctx, s); !errors.Is(err, ErrWrongState) {
		t.Errorf("CheckStatus in lobby = %v", err)
	}
	if got := h.srv.Calls("/game-status"); got != before {
		t.Errorf("status called from lobby")
	}
}

func TestResetFromEveryState(t *testing.T) {
	setups := map[State]func(t *testing.T, h *harness) *Session{
		Menu: func(t *testing.T, h *harness) *Session {
			s := h.session()
			s.name = "typed"
			s.roomCode = "TYPED1"
			return s
		},
		Lobby: func(t *testing.T, h *harness) *Session {
			s, _ := h.lobby(t)
			return s
		},
		Playing: func(t *testing.T, h *harness) *Session {
			s, _ := h.playing(t)
			h.selectAll(t, s, gameapi.Guess{Suspect: "Plum", Location: "Library", Weapon: "Knife"})
			return s
		},
		Results: func(t *testing.T, h *harness) *Session {
			s, code := h.playing(t)
			h.selectAll(t, s, gameapitest.DefaultSolution)
			if err := h.srv.AddGuess(code, "Bob", gameapitest.DefaultSolution); err != nil {
				t.Fatal(err)
			}
			if err := h.ctrl.SubmitAccusation(h.ctx, s); err != nil {
				t.Fatal(err)
			}
			return s
		},
	}

	for state, setup := range setups {
		t.Run(state.String(), func(t *testing.T) {
			h := newHarness(t)
			s := setup(t, h)

			if s.State() != state {
				t.Fatalf("setup reached %v, want %v", s.State(), state)
			}

			h.ctrl.Reset(s)

			if s.State() != Menu {
				t.Errorf("state = %v", s.State())
			}
			if s.RoomCode() != "" || s.Name() != "" {
				t.Errorf("room=%q name=%q", s.RoomCode(), s.Name())
			}
			if len(s.Cards()) != 0 || len(s.Players()) != 0 {
				t.Errorf("cards=%v players=%v", s.Cards(), s.Players())
			}
			if s.Accusation() != (gameapi.Guess{}) || s.Submitted() {
				t.Errorf("accusation = %+v submitted=%v", s.Accusation(), s.Submitted())
			}
			if s.Result() != nil {
				t.Error("result kept")
			}
			if s.Polling() {
				t.Error("poller kept")
			}

			v := h.ctrl.View(h.ctx, s)
			if v.Menu == nil || v.Menu.Name != "" || v.Menu.RoomCode != "" {
				t.Errorf("menu view = %+v", v.Menu)
			}
		})
	}
}

// gatedService holds CreateRoom until release is closed.
type gatedService struct {
	*gameapi.Client
	entered chan struct{}
	release chan struct{}
}

func (g *gatedService) CreateRoom(ctx context.Context, name string) (*gameapi.CreateRoomResponse, error) {
	close(g.entered)
	<-g.release

	return g.Client.CreateRoom(ctx, name)
}

func TestBusyAndStaleResponses(t *testing.T) {
	srv := gameapitest.NewServer()
	t.Cleanup(srv.Close)

	gated := &gatedService{
		Client:  gameapi.New(srv.URL),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newHarnessWith(t, srv, gated)
	s := h.session()

	errs := make(chan error, 1)
	go func() {
		errs <- h.ctrl.CreateRoom(h.ctx, s, "Alice")
	}()

	<-gated.entered

	if !s.Busy() {
		t.Error("session not busy during request")
	}
	if v := h.ctrl.View(h.ctx, s); v.Menu == nil || v.Menu.CanCreate {
		t.Error("create available while busy")
	}
	if err := h.ctrl.JoinRoom(h.ctx, s, "Alice", "ABC123"); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent join = %v, want ErrBusy", err)
	}

	h.ctrl.Reset(s)
	close(gated.release)

	if err := <-errs; err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if s.State() != Menu {
		t.Errorf("stale response applied: state = %v", s.State())
	}
	if s.RoomCode() != "" || len(s.Players()) != 0 {
		t.Errorf("stale membership applied: room=%q players=%v", s.RoomCode(), s.Players())
	}
	if s.Busy() {
		t.Error("session left busy")
	}
}

func TestCatalogRetry(t *testing.T) {
	srv := gameapitest.NewServer()
	t.Cleanup(srv.Close)

	srv.Fail("/game-data", 503, `{"error":"indisponível"}`)

	ctrl := NewController(gameapi.New(srv.URL), Options{
		Clock:  clockwork.NewFakeClock(),
		Logger: zerolog.Nop(),
	})
	t.Cleanup(ctrl.Close)

	ctx := context.Background()
	if err := ctrl.LoadCatalog(ctx); err == nil {
		t.Fatal("expected catalog load to fail")
	}

	s := newSession("test", time.Now())

	v := ctrl.View(ctx, s)
	if v.Loading == nil || v.Loading.Err != "indisponível" || v.Menu != nil {
		t.Fatalf("view = %+v", v)
	}

	srv.Recover("/game-data")

	v = ctrl.View(ctx, s)
	if v.Loading != nil || v.Menu == nil {
		t.Fatalf("catalog not retried: %+v", v)
	}

	calls := srv.Calls("/game-data")
	_ = ctrl.View(ctx, s)
	if srv.Calls("/game-data") != calls {
		t.Error("catalog fetched again after success")
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t)
	s := h.session()

	events, cancel := s.Subscribe()
	defer cancel()

	if ev := <-events; ev.State != Menu {
		t.Fatalf("initial event = %+v", ev)
	}

	if err := h.ctrl.CreateRoom(h.ctx, s, "Alice"); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.State != Lobby {
			t.Errorf("latest event = %+v, want lobby", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event after transition")
	}

	h.ctrl.Discard(s)

	if _, ok := <-events; ok {
		t.Error("channel still open after discard")
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		Menu:      "menu",
		Lobby:     "lobby",
		Playing:   "playing",
		Results:   "results",
		State(42): "State(42)",
	}

	for s, str := range want {
		if s.String() != str {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), str)
		}
	}
}

func TestCanTransition(t *testing.T) {
	legal := map[[2]State]bool{
		{Menu, Lobby}:      true,
		{Lobby, Playing}:   true,
		{Playing, Results}: true,
		{Results, Menu}:    true,
		{Lobby, Menu}:      true,
		{Playing, Menu}:    true,
	}

	states := []State{Menu, Lobby, Playing, Results}
	for _, from := range states {
		for _, to := range states {
			want := legal[[2]State{from, to}] || to == Menu
			if got := canTransition(from, to); got != want {
				t.Errorf("canTransition(%v, %v) = %v, want %v", from, to, got, want)
			}
		}
	}
}

// gatedGuessService holds MakeGuess until release is closed.
type gatedGuessService struct {
	*gameapi.Client
	entered chan struct{}
	release chan struct{}
}

func (g *gatedGuessService) MakeGuess(ctx context.Context, roomCode, playerName string, guess gameapi.Guess) (*gameapi.MakeGuessResponse, error) {
	close(g.entered)
	<-g.release

	return g.Client.MakeGuess(ctx, roomCode, playerName, guess)
}

func TestSelectWhileSubmitting(t *testing.T) {
	srv := gameapitest.NewServer()
	t.Cleanup(srv.Close)

	gated := &gatedGuessService{
		Client:  gameapi.New(srv.URL),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newHarnessWith(t, srv, gated)
	s, _ := h.playing(t)

	sent := gameapi.Guess{Suspect: "Plum", Location: "Library", Weapon: "Knife"}
	h.selectAll(t, s, sent)

	errs := make(chan error, 1)
	go func() {
		errs <- h.ctrl.SubmitAccusation(h.ctx, s)
	}()

	<-gated.entered

	if err := h.ctrl.Select(s, FieldSuspect, "Scarlet"); !errors.Is(err, ErrBusy) {
		t.Errorf("select during submit = %v, want ErrBusy", err)
	}
	if n := s.Notice(); n == nil || n.Text != "Aguarde a ação em andamento" {
		t.Errorf("notice = %+v", n)
	}

	close(gated.release)

	if err := <-errs; err != nil {
		t.Fatalf("SubmitAccusation: %v", err)
	}

	if !s.Submitted() {
		t.Fatal("accusation not marked submitted")
	}
	if got := s.Accusation(); got != sent {
		t.Errorf("frozen accusation = %+v, want the one sent %+v", got, sent)
	}
}

// twoPlayers puts Alice (on a) and Bob (on b) into the same running room.
// a and b may be the same harness or two servers sharing one game service.
func twoPlayers(t *testing.T, a, b *harness) (alice, bob *Session) {
	t.Helper()

	alice = a.session()
	if err := a.ctrl.CreateRoom(a.ctx, alice, "Alice"); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	bob = b.session()
	if err := b.ctrl.JoinRoom(b.ctx, bob, "Bob", alice.RoomCode()); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := b.ctrl.StartGame(b.ctx, bob); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := a.ctrl.RefreshLobby(a.ctx, alice); err != nil {
		t.Fatalf("RefreshLobby: %v", err)
	}

	if alice.State() != Playing || bob.State() != Playing {
		t.Fatalf("alice=%v bob=%v, want both playing", alice.State(), bob.State())
	}

	return alice, bob
}

func TestEveryPlayerReachesResults(t *testing.T) {
	h := newHarness(t)
	alice, bob := twoPlayers(t, h, h)

	h.selectAll(t, alice, gameapi.Guess{Suspect: "Plum", Location: "Library", Weapon: "Knife"})
	if err := h.ctrl.SubmitAccusation(h.ctx, alice); err != nil {
		t.Fatal(err)
	}
	if alice.State() != Playing {
		t.Fatalf("alice finished early: %v", alice.State())
	}

	// Bob's guess is the last one, so his check is the one that finishes
	// the room and receives the solution.
	h.selectAll(t, bob, gameapitest.DefaultSolution)
	if err := h.ctrl.SubmitAccusation(h.ctx, bob); err != nil {
		t.Fatal(err)
	}
	if bob.State() != Results {
		t.Fatalf("bob state = %v, want results", bob.State())
	}

	if err := h.ctrl.CheckStatus(h.ctx, alice); err != nil {
		t.Fatal(err)
	}

	if alice.State() != Results {
		t.Fatalf("alice state = %v, want results", alice.State())
	}
	if alice.Polling() {
		t.Error("alice still polling")
	}

	result := alice.Result()
	if result == nil || !result.Revealed || result.Solution != gameapitest.DefaultSolution {
		t.Fatalf("alice result = %+v, want the shared reveal", result)
	}
	if len(result.Results) != 2 {
		t.Errorf("alice results = %+v", result.Results)
	}
}

func TestResultsWithoutReveal(t *testing.T) {
	srv := gameapitest.NewServer()
	t.Cleanup(srv.Close)

	// Two servers in front of one game service: only the one whose
	// player finishes the room ever sees the solution.
	ha := newHarnessWith(t, srv, gameapi.New(srv.URL))
	hb := newHarnessWith(t, srv, gameapi.New(srv.URL))
	alice, bob := twoPlayers(t, ha, hb)

	ha.selectAll(t, alice, gameapitest.DefaultSolution)
	if err := ha.ctrl.SubmitAccusation(ha.ctx, alice); err != nil {
		t.Fatal(err)
	}

	hb.selectAll(t, bob, gameapitest.DefaultSolution)
	if err := hb.ctrl.SubmitAccusation(hb.ctx, bob); err != nil {
		t.Fatal(err)
	}
	if bob.State() != Results || !bob.Result().Revealed {
		t.Fatalf("bob state = %v result = %+v", bob.State(), bob.Result())
	}

	ctx, cancel := context.WithTimeout(ha.ctx, 2*time.Second)
	defer cancel()

	if err := ha.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}

	done := pollDone(alice)
	ha.clock.Advance(testInterval)

	waitFor(t, "alice results", func() bool { return alice.State() == Results })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit after a finished status")
	}

	result := alice.Result()
	if result == nil || result.Revealed {
		t.Fatalf("alice result = %+v, want unrevealed", result)
	}

	v := ha.ctrl.View(ha.ctx, alice)
	if v.Results == nil || v.Results.Revealed || v.Results.Solution != (gameapi.Guess{}) {
		t.Errorf("results view = %+v", v.Results)
	}
}
