// Package web serves the odroid-io status page, its JSON forms and a
// websocket stream of board events.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/sweeney/odroid-io/internal/board"
	"github.com/sweeney/odroid-io/internal/status"
)

// Server exposes a Tracker over HTTP and relays events to websocket clients.
type Server struct {
	tracker *status.Tracker
	hub     *Hub
	srv     *http.Server
}

// New creates a Server for addr. Nothing listens until ListenAndServe or
// Serve is called.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker, hub: NewHub()}
	s.srv = &http.Server{Addr: addr, Handler: s.routes()}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleStatus)
	mux.HandleFunc("/pins/", s.handlePin)
	mux.Handle("/ws", s.hub)
	return mux
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Broadcast relays ev to websocket clients.
func (s *Server) Broadcast(ev board.Event) { s.hub.Broadcast(ev) }

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error { return s.srv.ListenAndServe() }

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

// Shutdown closes websocket clients first, then stops accepting requests
// and waits for in-flight ones until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/index.html":
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// handlePin serves /pins/{ref}, where ref is a position or any pin ID.
func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, "/pins/")
	pos, byPosition := -1, false
	if n, err := strconv.Atoi(ref); err == nil {
		pos, byPosition = n, true
	}

	for _, p := range status.PinsJSON(s.tracker.Snapshot().Pins) {
		if (byPosition && p.Position == pos) || slices.Contains(p.IDs, ref) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(p)
			return
		}
	}
	http.NotFound(w, r)
}
