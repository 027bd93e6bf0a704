// Cluebox Clue client
//
// Each browser gets its own session (cookie), which walks the view state
// machine menu → lobby → playing → results. The game itself lives in a
// remote service; every action here is one request to it.
//
// Routes, relative to $path:
//   - GET  $path              → current view (HTML), ?room=CODE pre-fills the join form
//   - POST $path/create       → create a room
//   - POST $path/join         → join a room
//   - POST $path/refresh      → re-read the lobby's player list
//   - POST $path/start        → start the game (2+ players)
//   - POST $path/select       → pick one card of the accusation
//   - POST $path/guess        → submit the accusation
//   - POST $path/check        → check for results now
//   - POST $path/reset        → back to the menu ("Jogar Novamente")
//   - GET  $path/ws           → websocket pushing state changes
//   - GET  $path/qr/:room     → PNG QR code of the room's join link
//
// Every POST answers with a 303 back to $path.

package main

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"net/http"
	"time"

	"github.com/Seednode/cluebox/session"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

const sessionCookieName = "cluebox_session"

//go:embed clue/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type clueGame struct {
	cfg  *Config
	path string
	ctrl *session.Controller
	mgr  *session.Manager
	errs chan<- error
}

// pageData is everything index.html renders.
type pageData struct {
	Prefix string
	Path   string
	View   session.View
}

// lookup returns the browser's existing session, if any.
func (g *clueGame) lookup(r *http.Request) (*session.Session, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}

	return g.mgr.Get(c.Value)
}

// getOrCreate returns the browser's session, starting a new one and setting
// its cookie if needed.
func (g *clueGame) getOrCreate(w http.ResponseWriter, r *http.Request) *session.Session {
	if s, ok := g.lookup(r); ok {
		return s
	}

	s := g.mgr.New()

	cookiePath := g.cfg.prefix + "/"

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.ID(),
		Path:     cookiePath,
		HttpOnly: true,
		Secure:   g.cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return s
}

func (g *clueGame) serveIndex() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		s := g.getOrCreate(w, r)

		view := g.ctrl.View(r.Context(), s)
		if view.Menu != nil && view.Menu.RoomCode == "" {
			view.Menu.RoomCode = r.URL.Query().Get("room")
		}

		var buf bytes.Buffer
		if err := indexTemplate.Execute(&buf, pageData{
			Prefix: g.cfg.prefix,
			Path:   g.path,
			View:   view,
		}); err != nil {
			log.Error().Err(err).Str("session", s.ID()).Msg("failed to render view")

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(g.cfg, w)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(newPage("Server Error", "An error has occurred. Please try again.")))

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(g.cfg, w)

		written, err := w.Write(buf.Bytes())
		if err != nil {
			g.errs <- err

			return
		}

		log.Debug().
			Str("state", view.State.String()).
			Str("size", humanReadableSize(int64(written))).
			Str("ip", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("SERVE: Clue page")
	}
}

// action runs fn against the browser's session and redirects back to the
// view. Failures are already recorded on the session as notices.
func (g *clueGame) action(name string, fn func(ctx context.Context, s *session.Session, r *http.Request) error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		s := g.getOrCreate(w, r)

		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)

			return
		}

		err := fn(r.Context(), s, r)

		ev := log.Debug()
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Str("action", name).
			Str("session", s.ID()).
			Str("state", s.State().String()).
			Str("ip", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("ACTION: Clue")

		securityHeaders(g.cfg, w)
		http.Redirect(w, r, g.path, http.StatusSeeOther)
	}
}

func (g *clueGame) create(ctx context.Context, s *session.Session, r *http.Request) error {
	return g.ctrl.CreateRoom(ctx, s, r.PostFormValue("name"))
}

func (g *clueGame) join(ctx context.Context, s *session.Session, r *http.Request) error {
	return g.ctrl.JoinRoom(ctx, s, r.PostFormValue("name"), r.PostFormValue("room"))
}

func (g *clueGame) refresh(ctx context.Context, s *session.Session, _ *http.Request) error {
	return g.ctrl.RefreshLobby(ctx, s)
}

func (g *clueGame) start(ctx context.Context, s *session.Session, _ *http.Request) error {
	return g.ctrl.StartGame(ctx, s)
}

func (g *clueGame) pick(_ context.Context, s *session.Session, r *http.Request) error {
	return g.ctrl.Select(s, session.Field(r.PostFormValue("field")), r.PostFormValue("value"))
}

func (g *clueGame) guess(ctx context.Context, s *session.Session, _ *http.Request) error {
	return g.ctrl.SubmitAccusation(ctx, s)
}

func (g *clueGame) check(ctx context.Context, s *session.Session, _ *http.Request) error {
	return g.ctrl.CheckStatus(ctx, s)
}

func (g *clueGame) reset(_ context.Context, s *session.Session, _ *http.Request) error {
	g.ctrl.Reset(s)

	return nil
}

func registerClueGame(cfg *Config, path string, mux *httprouter.Router, ctrl *session.Controller, mgr *session.Manager, errs chan<- error) {
	g := &clueGame{
		cfg:  cfg,
		path: cfg.prefix + path,
		ctrl: ctrl,
		mgr:  mgr,
		errs: errs,
	}

	mux.GET(g.path, g.serveIndex())

	mux.POST(g.path+"/create", g.action("create", g.create))
	mux.POST(g.path+"/join", g.action("join", g.join))
	mux.POST(g.path+"/refresh", g.action("refresh", g.refresh))
	mux.POST(g.path+"/start", g.action("start", g.start))
	mux.POST(g.path+"/select", g.action("select", g.pick))
	mux.POST(g.path+"/guess", g.action("guess", g.guess))
	mux.POST(g.path+"/check", g.action("check", g.check))
	mux.POST(g.path+"/reset", g.action("reset", g.reset))

	mux.GET(g.path+"/ws", g.serveWS())

	mux.GET(g.path+"/qr/:room", g.serveQR())
}
