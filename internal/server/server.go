package server

import (
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"hueclue/internal/config"
	"hueclue/internal/daily"
)

type Server struct {
	store *Store
	db    *gorm.DB
	hub   *wsHub
	cfg   config.Config
	daily http.Handler
}

func New(conn *gorm.DB, cfg config.Config) *Server {
	return &Server{
		store: NewStore(),
		db:    conn,
		hub:   newWSHub(),
		cfg:   cfg,
		daily: daily.NewEngine(conn).Routes(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/games/", s.handleGameSubroutes)
	mux.HandleFunc("POST /api/games/", s.handleGameSubroutes)
	mux.HandleFunc("GET /ws/games/", s.handleWebsocket)
	mux.Handle("/api/daily/", s.daily)
	return mux
}

func (s *Server) defaultGameConfig() GameConfig {
	return GameConfig{
		MaxPlayers:         s.cfg.DefaultMaxPlayers,
		DescriptionSeconds: s.cfg.DescriptionSeconds,
		GuessingSeconds:    s.cfg.GuessingSeconds,
		TurnsPerPlayer:     s.cfg.TurnsPerPlayer,
	}
}

// CleanupIdleSessions drops rooms nobody has touched for longer than maxAge.
// Intended to run from a ticker in the entrypoint.
func (s *Server) CleanupIdleSessions(maxAge time.Duration) {
	for _, code := range s.store.DeleteIdle(maxAge) {
		s.hub.CloseRoom(code)
		log.Printf("idle session expired game_id=%s", code)
	}
}
