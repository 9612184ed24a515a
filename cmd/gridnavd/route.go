package main

import (
	"github.com/matryer/way"
)

const (
	URIPath     = "/path"
	URIWS       = "/ws"
	URIWorld    = "/world"
	URIHealth   = "/health"
	URIPortal   = "/portals/:name"
	URITraverse = "/portals/:name/traverse"
)

func (s *Server) routes() {
	s.router = way.NewRouter()
	s.router.HandleFunc("POST", URIPath, s.handlePath())
	s.router.HandleFunc("GET", URIWS, s.handleWS())
	s.router.HandleFunc("GET", URIWorld, s.handleWorld())
	s.router.HandleFunc("GET", URIHealth, s.handleHealth())
	s.router.HandleFunc("PUT", URIPortal, s.handlePortalState())
	s.router.HandleFunc("POST", URITraverse, s.handleTraverse())
}
