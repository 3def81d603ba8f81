package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr      string
	SeatRows      int
	SeatsPerRow   int
	LockTTL       time.Duration
	SweepInterval time.Duration
	RedisAddr     string
	RabbitURL     string
	OTLPEndpoint  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	// Non-positive or unparsable LOCK_TTL falls back to the default; a
	// negative TTL would make every lock expire on the next sweep.
	lockTTL, _ := time.ParseDuration(os.Getenv("LOCK_TTL"))
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}

	// SWEEP_INTERVAL=0 disables the background sweeper; the lazy sweep
	// inside every registry operation still reclaims expired locks.
	sweepInterval := 30 * time.Second
	if v, ok := os.LookupEnv("SWEEP_INTERVAL"); ok {
		sweepInterval, _ = time.ParseDuration(v)
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &Config{
		HTTPAddr:      addr,
		SeatRows:      envInt("SEAT_ROWS", 10),
		SeatsPerRow:   envInt("SEATS_PER_ROW", 10),
		LockTTL:       lockTTL,
		SweepInterval: sweepInterval,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
