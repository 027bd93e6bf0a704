/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

func registerProfileHandlers(cfg *Config, mux *httprouter.Router) {
	path := cfg.prefix + "/pprof"

	mux.HandlerFunc("GET", path+"/", pprof.Index)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handler("GET", path+"/"+name, pprof.Handler(name))
	}
	mux.HandlerFunc("GET", path+"/cmdline", pprof.Cmdline)
	mux.HandlerFunc("GET", path+"/profile", pprof.Profile)
	mux.HandlerFunc("GET", path+"/symbol", pprof.Symbol)
	mux.HandlerFunc("GET", path+"/trace", pprof.Trace)

	log.Info().Str("path", path+"/").Msg("SERVE: Registered pprof handlers")
}
