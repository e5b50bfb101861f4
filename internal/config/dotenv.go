package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	DefaultMaxPlayers        int
	DescriptionSeconds       int
	GuessingSeconds          int
	TurnsPerPlayer           int
	IdleExpiryMinutes        int
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
}

func Default() Config {
	return Config{
		DefaultMaxPlayers:        8,
		DescriptionSeconds:       60,
		GuessingSeconds:          90,
		TurnsPerPlayer:           2,
		IdleExpiryMinutes:        120,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

func Load() Config {
	cfg := Default()
	loadInt("MAX_PLAYERS", &cfg.DefaultMaxPlayers)
	loadInt("DESCRIPTION_SECONDS", &cfg.DescriptionSeconds)
	loadInt("GUESSING_SECONDS", &cfg.GuessingSeconds)
	loadInt("TURNS_PER_PLAYER", &cfg.TurnsPerPlayer)
	loadInt("IDLE_EXPIRY_MINUTES", &cfg.IdleExpiryMinutes)
	loadInt("DB_MAX_OPEN_CONNS", &cfg.DBMaxOpenConns)
	loadInt("DB_MAX_IDLE_CONNS", &cfg.DBMaxIdleConns)
	loadInt("DB_CONN_MAX_LIFETIME_SECONDS", &cfg.DBConnMaxLifetimeSeconds)
	loadInt("DB_CONN_MAX_IDLE_SECONDS", &cfg.DBConnMaxIdleTimeSeconds)
	return cfg
}

func loadInt(key string, dest *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if value, err := strconv.Atoi(raw); err == nil && value > 0 {
		*dest = value
	}
}
