/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import "fmt"

// State is the view a session is currently showing. Exactly one is active.
type State int

const (
	Menu State = iota
	Lobby
	Playing
	Results
)

func (s State) String() string {
	switch s {
	case Menu:
		return "menu"
	case Lobby:
		return "lobby"
	case Playing:
		return "playing"
	case Results:
		return "results"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// canTransition lists every legal edge of the view state machine. Reset to
// Menu is always allowed.
func canTransition(from, to State) bool {
	if to == Menu {
		return true
	}

	switch from {
	case Menu:
		return to == Lobby
	case Lobby:
		return to == Playing
	case Playing:
		return to == Results
	case Results:
		return false
	default:
		return false
	}
}

// Field names one part of an accusation.
type Field string

const (
	FieldSuspect  Field = "suspect"
	FieldLocation Field = "location"
	FieldWeapon   Field = "weapon"
)

var Fields = []Field{FieldSuspect, FieldLocation, FieldWeapon}

type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeError
)

// Notice is an alert-style message shown once on the next render.
type Notice struct {
	Kind NoticeKind
	Text string
}

func (n Notice) IsError() bool {
	return n.Kind == NoticeError
}

// Event is published to subscribers whenever a session changes.
type Event struct {
	State   State
	Version uint64
}
