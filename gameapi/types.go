/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package gameapi

// Status values reported by the game service for a room.
const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// Catalog lists every card in the game, grouped by kind.
type Catalog struct {
	Suspects  []string `json:"suspects"`
	Locations []string `json:"locations"`
	Weapons   []string `json:"weapons"`
}

// Guess is a suspect, location and weapon triple. It is used both for a
// player's accusation and for the hidden solution.
type Guess struct {
	Suspect  string `json:"suspect"`
	Location string `json:"location"`
	Weapon   string `json:"weapon"`
}

// Complete reports whether all three fields are set.
func (g Guess) Complete() bool {
	return g.Suspect != "" && g.Location != "" && g.Weapon != ""
}

type PlayerResult struct {
	Player  string `json:"player"`
	Guess   Guess  `json:"guess"`
	Correct bool   `json:"correct"`
}

// GameResult is what is known once a room is finished. The service attaches
// the solution only to the status response that finishes the room, so a
// client that polls later gets a result with Revealed unset.
type GameResult struct {
	Solution Guess          `json:"solution"`
	Results  []PlayerResult `json:"results"`
	Revealed bool           `json:"-"`
}

type CreateRoomRequest struct {
	PlayerName string `json:"player_name"`
}

type CreateRoomResponse struct {
	RoomCode   string   `json:"room_code"`
	PlayerName string   `json:"player_name"`
	Cards      []string `json:"cards"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type JoinRoomResponse struct {
	RoomCode   string   `json:"room_code"`
	PlayerName string   `json:"player_name"`
	Cards      []string `json:"cards"`
	Players    []string `json:"players"`
}

type StartGameRequest struct {
	RoomCode string `json:"room_code"`
}

type StartGameResponse struct {
	Message string   `json:"message"`
	Players []string `json:"players"`
	Status  string   `json:"status"`
}

type MakeGuessRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
	Guess      Guess  `json:"guess"`
}

type MakeGuessResponse struct {
	Message string `json:"message"`
}

// GameStatus is the body of GET /game-status/{room_code}. Solution and
// Results are only set on the response that moves the room to
// StatusFinished; later responses report the status alone.
type GameStatus struct {
	RoomCode     string         `json:"room_code"`
	Players      []string       `json:"players"`
	Status       string         `json:"status"`
	GuessesCount int            `json:"guesses_count"`
	TotalPlayers int            `json:"total_players"`
	AllGuessed   bool           `json:"all_guessed"`
	Solution     *Guess         `json:"solution,omitempty"`
	Results      []PlayerResult `json:"results,omitempty"`
}

func (s *GameStatus) Finished() bool {
	return s.Status == StatusFinished
}

// Result returns the outcome of a finished room, revealed or not. It
// returns nil while the room is still running.
func (s *GameStatus) Result() *GameResult {
	if !s.Finished() {
		return nil
	}

	result := &GameResult{Results: make([]PlayerResult, len(s.Results))}
	copy(result.Results, s.Results)

	if s.Solution != nil {
		result.Solution = *s.Solution
		result.Revealed = true
	}

	return result
}

type errorResponse struct {
	Error string `json:"error"`
}
