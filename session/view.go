/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"slices"

	"github.com/Seednode/cluebox/gameapi"
)

// View is what a browser renders. Exactly one of Loading, Menu, Lobby,
// Playing and Results is set.
type View struct {
	State   State
	Version uint64
	Busy    bool
	Notice  *Notice

	Loading *LoadingView
	Menu    *MenuView
	Lobby   *LobbyView
	Playing *PlayingView
	Results *ResultsView
}

// LoadingView is shown until the catalog is available.
type LoadingView struct {
	Err string
}

type MenuView struct {
	Name      string
	RoomCode  string
	CanCreate bool
	CanJoin   bool
}

type LobbyView struct {
	Name        string
	RoomCode    string
	Players     []string
	Cards       []string
	PlayerCount int
	MaxPlayers  int
	CanStart    bool
}

// Choice is one selectable card in the accusation form.
type Choice struct {
	Value    string
	Selected bool
}

type PlayingView struct {
	Name         string
	RoomCode     string
	Cards        []string
	Suspects     []Choice
	Locations    []Choice
	Weapons      []Choice
	Accusation   gameapi.Guess
	Submitted    bool
	CanSelect    bool
	CanSubmit    bool
	GuessesCount int
	TotalPlayers int
	PollError    string
}

// ResultsView is shown once the room has finished. Revealed is false when
// the solution never reached this server; Solution is then empty.
type ResultsView struct {
	Name     string
	RoomCode string
	Revealed bool
	Solution gameapi.Guess
	Results  []gameapi.PlayerResult
}

func choices(options []string, selected string) []Choice {
	out := make([]Choice, 0, len(options))
	for _, o := range options {
		out = append(out, Choice{Value: o, Selected: o == selected})
	}

	return out
}

// View builds the view model for s and consumes any pending notice.
func (c *Controller) View(ctx context.Context, s *Session) View {
	catalog, catalogErr := c.Catalog(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:   s.state,
		Version: s.version,
		Busy:    s.busy,
		Notice:  s.takeNoticeLocked(),
	}

	if catalog == nil {
		v.Loading = &LoadingView{}
		if catalogErr != nil {
			v.Loading.Err = catalogErr.Error()
		}

		return v
	}

	switch s.state {
	case Menu:
		v.Menu = &MenuView{
			Name:      s.name,
			RoomCode:  s.roomCode,
			CanCreate: !s.busy,
			CanJoin:   !s.busy,
		}
	case Lobby:
		v.Lobby = &LobbyView{
			Name:        s.name,
			RoomCode:    s.roomCode,
			Players:     slices.Clone(s.players),
			Cards:       slices.Clone(s.cards),
			PlayerCount: len(s.players),
			MaxPlayers:  MaxPlayers,
			CanStart:    !s.busy && len(s.players) >= 2,
		}
	case Playing:
		v.Playing = &PlayingView{
			Name:         s.name,
			RoomCode:     s.roomCode,
			Cards:        slices.Clone(s.cards),
			Suspects:     choices(catalog.Suspects, s.accusation.Suspect),
			Locations:    choices(catalog.Locations, s.accusation.Location),
			Weapons:      choices(catalog.Weapons, s.accusation.Weapon),
			Accusation:   s.accusation,
			Submitted:    s.submitted,
			CanSelect:    !s.busy && !s.submitted,
			CanSubmit:    !s.busy && !s.submitted && s.accusation.Complete(),
			GuessesCount: s.guessesCount,
			TotalPlayers: s.totalPlayers,
			PollError:    s.pollErr,
		}
	case Results:
		if s.result == nil {
			// unreachable: Results is only entered with a result
			v.Loading = &LoadingView{Err: "missing game result"}

			return v
		}

		v.Results = &ResultsView{
			Name:     s.name,
			RoomCode: s.roomCode,
			Revealed: s.result.Revealed,
			Solution: s.result.Solution,
			Results:  slices.Clone(s.result.Results),
		}
	}

	return v
}
