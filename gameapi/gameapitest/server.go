/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package gameapitest provides an in-memory game service speaking the same
// HTTP contract as the real one, for use in tests.
package gameapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"

	"github.com/Seednode/cluebox/gameapi"
)

const MaxPlayers = 6

var DefaultCatalog = gameapi.Catalog{
	Suspects:  []string{"Green", "Mustard", "Peacock", "Plum", "Scarlet", "White"},
	Locations: []string{"Ballroom", "Hall", "Kitchen", "Library", "Lounge", "Study"},
	Weapons:   []string{"Candlestick", "Knife", "Lead Pipe", "Revolver", "Rope", "Wrench"},
}

var DefaultSolution = gameapi.Guess{
	Suspect:  "Green",
	Location: "Kitchen",
	Weapon:   "Rope",
}

type guessEntry struct {
	player string
	guess  gameapi.Guess
}

type room struct {
	code     string
	status   string
	players  []string
	solution gameapi.Guess
	guesses  []guessEntry
}

type failure struct {
	status int
	body   string
}

// Server is a fake game service. Rooms are numbered sequentially and every
// room shares the configured solution, so tests can predict both.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	catalog  gameapi.Catalog
	solution gameapi.Guess
	rooms    map[string]*room
	next     int
	calls    map[string]int
	failures map[string]failure
}

func NewServer() *Server {
	s := &Server{
		catalog:  DefaultCatalog,
		solution: DefaultSolution,
		rooms:    make(map[string]*room),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /game-data", s.gameData)
	mux.HandleFunc("POST /create-room", s.createRoom)
	mux.HandleFunc("POST /join-room", s.joinRoom)
	mux.HandleFunc("POST /start-game", s.startGame)
	mux.HandleFunc("POST /make-guess", s.makeGuess)
	mux.HandleFunc("GET /game-status/{code}", s.gameStatus)

	s.Server = httptest.NewServer(s.intercept(mux))

	return s
}

// Calls returns how many requests hit the given path prefix, e.g.
// "/game-status".
func (s *Server) Calls(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for path, n := range s.calls {
		if strings.HasPrefix(path, prefix) {
			total += n
		}
	}

	return total
}

// Fail makes every request to path answer with the given status and raw
// body until Recover is called.
func (s *Server) Fail(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[path] = failure{status: status, body: body}
}

func (s *Server) Recover(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.failures, path)
}

func (s *Server) SetSolution(g gameapi.Guess) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.solution = g
}

// AddPlayer joins name to an existing room directly, as if another client
// had called join-room.
func (s *Server) AddPlayer(code, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return fmt.Errorf("no room %q", code)
	}

	r.players = append(r.players, name)

	return nil
}

// AddGuess records a guess directly, as if another client had called
// make-guess.
func (s *Server) AddGuess(code, name string, g gameapi.Guess) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[code]
	if !ok {
		return fmt.Errorf("no room %q", code)
	}

	r.guesses = append(r.guesses, guessEntry{player: name, guess: g})

	return nil
}

// ForceStart marks a room as playing without going through start-game.
func (s *Server) ForceStart(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[code]; ok {
		r.status = gameapi.StatusPlaying
	}
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		f, failing := s.failures[r.URL.Path]
		s.mu.Unlock()

		if failing {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))

			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) gameData(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, s.catalog)
}

// deal hands out every non-solution card round-robin in catalog order.
func (s *Server) deal(r *room) [][]string {
	var cards []string
	for _, c := range s.catalog.Suspects {
		if c != r.solution.Suspect {
			cards = append(cards, c)
		}
	}
	for _, c := range s.catalog.Locations {
		if c != r.solution.Location {
			cards = append(cards, c)
		}
	}
	for _, c := range s.catalog.Weapons {
		if c != r.solution.Weapon {
			cards = append(cards, c)
		}
	}

	hands := make([][]string, len(r.players))
	for i, c := range cards {
		hands[i%len(hands)] = append(hands[i%len(hands)], c)
	}

	return hands
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var req gameapi.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.PlayerName == "" {
		writeError(w, http.StatusBadRequest, "Nome do jogador é obrigatório")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	rm := &room{
		code:     fmt.Sprintf("R%05d", s.next),
		status:   gameapi.StatusWaiting,
		players:  []string{req.PlayerName},
		solution: s.solution,
	}
	s.rooms[rm.code] = rm

	writeJSON(w, http.StatusOK, gameapi.CreateRoomResponse{
		RoomCode:   rm.code,
		PlayerName: req.PlayerName,
		Cards:      s.deal(rm)[0],
	})
}

func (s *Server) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req gameapi.JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RoomCode == "" || req.PlayerName == "" {
		writeError(w, http.StatusBadRequest, "Código da sala e nome do jogador são obrigatórios")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[req.RoomCode]
	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "Sala não encontrada")
		return
	case rm.status != gameapi.StatusWaiting:
		writeError(w, http.StatusBadRequest, "Jogo já iniciado ou finalizado")
		return
	case slices.Contains(rm.players, req.PlayerName):
		writeError(w, http.StatusBadRequest, "Nome de jogador já existe na sala")
		return
	case len(rm.players) >= MaxPlayers:
		writeError(w, http.StatusBadRequest, "Sala lotada (máximo 6 jogadores)")
		return
	}

	rm.players = append(rm.players, req.PlayerName)

	writeJSON(w, http.StatusOK, gameapi.JoinRoomResponse{
		RoomCode:   rm.code,
		PlayerName: req.PlayerName,
		Cards:      s.deal(rm)[len(rm.players)-1],
		Players:    slices.Clone(rm.players),
	})
}

func (s *Server) startGame(w http.ResponseWriter, r *http.Request) {
	var req gameapi.StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[req.RoomCode]
	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "Sala não encontrada")
		return
	case rm.status != gameapi.StatusWaiting:
		writeError(w, http.StatusBadRequest, "Jogo já iniciado ou finalizado")
		return
	case len(rm.players) < 2:
		writeError(w, http.StatusBadRequest, "Mínimo de 2 jogadores necessário")
		return
	}

	rm.status = gameapi.StatusPlaying

	writeJSON(w, http.StatusOK, gameapi.StartGameResponse{
		Message: "Jogo iniciado!",
		Players: slices.Clone(rm.players),
		Status:  rm.status,
	})
}

func (s *Server) makeGuess(w http.ResponseWriter, r *http.Request) {
	var req gameapi.MakeGuessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RoomCode == "" || req.PlayerName == "" || !req.Guess.Complete() {
		writeError(w, http.StatusBadRequest, "Todos os campos são obrigatórios")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[req.RoomCode]
	switch {
	case !ok:
		writeError(w, http.StatusNotFound, "Sala não encontrada")
		return
	case rm.status != gameapi.StatusPlaying:
		writeError(w, http.StatusBadRequest, "Jogo não está em andamento")
		return
	case !slices.Contains(rm.players, req.PlayerName):
		writeError(w, http.StatusBadRequest, "Jogador não está na sala")
		return
	}

	for _, g := range rm.guesses {
		if g.player == req.PlayerName {
			writeError(w, http.StatusBadRequest, "Jogador já fez um palpite")
			return
		}
	}

	rm.guesses = append(rm.guesses, guessEntry{player: req.PlayerName, guess: req.Guess})

	writeJSON(w, http.StatusOK, gameapi.MakeGuessResponse{Message: "Palpite registrado com sucesso!"})
}

func (s *Server) gameStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[r.PathValue("code")]
	if !ok {
		writeError(w, http.StatusNotFound, "Sala não encontrada")
		return
	}

	resp := gameapi.GameStatus{
		RoomCode:     rm.code,
		Players:      slices.Clone(rm.players),
		Status:       rm.status,
		GuessesCount: len(rm.guesses),
		TotalPlayers: len(rm.players),
	}

	// Like the real service, only the response that finishes the room
	// carries the reveal. Later checks see the bare finished status.
	allGuessed := len(rm.guesses) == len(rm.players) && rm.status == gameapi.StatusPlaying
	if allGuessed {
		rm.status = gameapi.StatusFinished

		solution := rm.solution
		resp.AllGuessed = true
		resp.Status = gameapi.StatusFinished
		resp.Solution = &solution

		for _, g := range rm.guesses {
			resp.Results = append(resp.Results, gameapi.PlayerResult{
				Player:  g.player,
				Guess:   g.guess,
				Correct: g.guess == rm.solution,
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
