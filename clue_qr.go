package main

import (
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// joinURL is the link a second device opens to land on the join form with
// the room code filled in.
func (g *clueGame) joinURL(r *http.Request, room string) string {
	scheme := g.cfg.scheme()
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     g.path,
		RawQuery: url.Values{"room": {room}}.Encode(),
	}

	return u.String()
}

// serveQR renders the join link for :room as a PNG.
func (g *clueGame) serveQR() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		room := ps.ByName("room")
		if !roomCodePattern.MatchString(room) {
			http.Error(w, "invalid room code", http.StatusBadRequest)

			return
		}

		png, err := qrcode.Encode(g.joinURL(r, room), qrcode.Medium, qrSize)
		if err != nil {
			log.Error().Err(err).Str("room", room).Msg("qr generation failed")
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(g.cfg, w)

		written, err := w.Write(png)
		if err != nil {
			g.errs <- err

			return
		}

		log.Debug().
			Str("room", room).
			Str("size", humanReadableSize(int64(written))).
			Str("ip", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("SERVE: Room QR code")
	}
}
