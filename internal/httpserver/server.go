// internal/httpserver/server.go
//
// HTTP surface of the duel server.
// Responsibilities:
//   - Router + middleware (request IDs with zerolog, CORS, timeouts, panic recovery).
//   - Public endpoints: "/", "/health", "/debug/words".
//   - Auth + profile endpoints: /auth/*, /stats/me.
//   - Match endpoints: GET /ws (intent/event channel, optional auth) and
//     GET /match/{code}/qr (invite QR).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - /ws is mounted outside the timeout group; a websocket outlives any
//     request deadline.

package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/robalobadob/wordduel/internal/config"
	"github.com/robalobadob/wordduel/internal/db"
	"github.com/robalobadob/wordduel/internal/mail"
	"github.com/robalobadob/wordduel/internal/matchmaking"
	"github.com/robalobadob/wordduel/internal/words"
)

const requestTimeout = 10 * time.Second

// Options carries the server's collaborators.
type Options struct {
	Config      *config.Config
	Store       *db.Store
	Coordinator *matchmaking.Coordinator
	Words       *words.Source
	Mail        mail.Sender
	Logger      zerolog.Logger
}

// Server bundles the router and the services it fronts.
type Server struct {
	r        *chi.Mux
	cfg      *config.Config
	db       *db.Store
	coord    *matchmaking.Coordinator
	words    *words.Source
	mail     mail.Sender
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// New constructs a Server, installs middleware, and registers routes.
func New(opts Options) *Server {
	s := &Server{
		r:     chi.NewRouter(),
		cfg:   opts.Config,
		db:    opts.Store,
		coord: opts.Coordinator,
		words: opts.Words,
		mail:  opts.Mail,
		log:   opts.Logger.With().Str("component", "http").Logger(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{s.cfg.ClientOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// --- middleware ---
	s.r.Use(chimw.RealIP)
	s.r.Use(requestID(s.log))
	s.r.Use(chimw.Recoverer)
	s.r.Use(c.Handler)

	// --- intent channel (optional auth; guests can play casual) ---
	s.r.With(s.withOptionalAuth()).Get("/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"service":   "wordduel",
				"endpoints": []string{"/health", "GET /ws", "/auth/*", "/stats/me", "GET /match/{code}/qr"},
			})
		})
		r.Get("/health", s.handleHealth)
		r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
			a, g := s.words.Stats()
			writeJSON(w, http.StatusOK, map[string]any{"answers": a, "allowed": g, "origin": s.words.Origin()})
		})

		s.mountAuthRoutes(r)
	})

	s.r.Get("/match/{code}/qr", s.handleQR)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Router exposes the router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.Ping(r.Context()) == nil
	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ok":     dbOK,
		"ranked": s.coord.Waiting(matchmaking.QueueRanked),
		"casual": s.coord.Waiting(matchmaking.QueueCasual),
	})
}

// checkOrigin admits same-origin sockets, non-browser clients (no Origin
// header) and the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
