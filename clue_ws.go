package main

import (
	"net/http"
	"time"

	"github.com/Seednode/cluebox/session"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

const (
	// wsSessionClosed tells the page its session was discarded.
	wsSessionClosed = 4000

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// The default CheckOrigin only accepts same-host upgrades.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// stateMessage tells the page which view and version the session is on.
// The page reloads when either differs from what it rendered.
type stateMessage struct {
	Type    string `json:"type"`
	State   string `json:"state"`
	Version uint64 `json:"version"`
}

func (g *clueGame) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s, ok := g.lookup(r)
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Str("ip", realIP(r)).Msg("websocket upgrade failed")

			return
		}

		events, unsubscribe := s.Subscribe()

		log.Debug().
			Str("session", s.ID()).
			Str("ip", realIP(r)).
			Msg("CONNECT: Clue websocket")

		closed := make(chan struct{})
		go readPump(conn, closed)

		writePump(g, conn, events, closed)

		unsubscribe()
		_ = conn.Close()

		log.Debug().
			Str("session", s.ID()).
			Str("ip", realIP(r)).
			Msg("DISCONNECT: Clue websocket")
	}
}

// readPump discards anything the browser sends and keeps the read deadline
// fresh on pongs. closed is closed once the connection stops reading.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writePump(g *clueGame, conn *websocket.Conn, events <-chan session.Event, closed <-chan struct{}) {
	ticker := g.ctrl.Clock().NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(wsSessionClosed, "session closed"))

				return
			}

			if err := conn.WriteJSON(stateMessage{
				Type:    "state",
				State:   ev.State.String(),
				Version: ev.Version,
			}); err != nil {
				return
			}
		case <-ticker.Chan():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
