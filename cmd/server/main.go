package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"gorm.io/gorm"

	"hueclue/internal/config"
	"hueclue/internal/db"
	"hueclue/internal/server"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	conn, err := db.Open()
	if err != nil {
		// The server runs fully in memory without a database; games just do
		// not survive a restart and the journal is skipped.
		log.Printf("running without database: %v", err)
		conn = nil
	}
	if conn != nil {
		configurePool(conn, cfg)
		if err := db.Migrate(conn); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
	}

	srv := server.New(conn, cfg)
	go expireIdleSessions(srv, cfg)

	addr := ":8080"
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}
	log.Printf("hueclue server listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}

func configurePool(conn *gorm.DB, cfg config.Config) {
	sqlDB, err := conn.DB()
	if err != nil {
		log.Printf("failed to configure db pool: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second)
}

func expireIdleSessions(srv *server.Server, cfg config.Config) {
	maxAge := time.Duration(cfg.IdleExpiryMinutes) * time.Minute
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		srv.CleanupIdleSessions(maxAge)
	}
}
