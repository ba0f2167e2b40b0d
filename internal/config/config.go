package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string
	Dev           bool
	RoomTTL       time.Duration
	CountdownFrom int
}

// Load reads an optional .env file, then the environment. Every knob has a
// sensible default so a bare `go run ./cmd/server` just works.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:          ":5000",
		RoomTTL:       30 * time.Second,
		CountdownFrom: 3,
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DEV"); v == "1" || v == "true" {
		cfg.Dev = true
	}
	if v := os.Getenv("ROOM_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("ROOM_TTL: %w", err)
		}
		cfg.RoomTTL = d
	}
	if v := os.Getenv("COUNTDOWN_FROM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("COUNTDOWN_FROM: %q is not a positive integer", v)
		}
		cfg.CountdownFrom = n
	}
	return cfg, nil
}
