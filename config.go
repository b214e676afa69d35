package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the server. Flags win over INKWAR_*
// environment variables, which win over defaults.
type Config struct {
	Addr      string
	ClientDir string
	PublicURL string
	DBPath    string
	LogLevel  string
	Dev       bool

	MaxRooms      int
	MaxConnsPerIP int
	MaxTotalConns int
	MsgRate       float64
	MsgBurst      int

	DrawingSeconds int
	TurnSeconds    int

	AdminPasswordHash string
	AdminTokenTTL     time.Duration
	JWTSecret         string
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		PublicURL:      "http://localhost:8080",
		LogLevel:       "info",
		MaxRooms:       500,
		MaxConnsPerIP:  5,
		MaxTotalConns:  1000,
		MsgRate:        120,
		MsgBurst:       240,
		DrawingSeconds: 120,
		TurnSeconds:    30,
		AdminTokenTTL:  12 * time.Hour,
	}
}

// Timings returns the room phase durations
func (c Config) Timings() RoomTimings {
	return RoomTimings{DrawingSeconds: c.DrawingSeconds, TurnSeconds: c.TurnSeconds}
}

// LoadConfig parses args (without the program name) on top of the
// environment.
func LoadConfig(args []string) (Config, error) {
	cfg := DefaultConfig()
	env := envReader{}

	cfg.Addr = env.str("ADDR", cfg.Addr)
	// PORT is what most hosting platforms hand out
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.ClientDir = env.str("CLIENT_DIR", cfg.ClientDir)
	cfg.PublicURL = env.str("PUBLIC_URL", cfg.PublicURL)
	cfg.DBPath = env.str("DB", cfg.DBPath)
	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)
	cfg.Dev = env.boolean("DEV", cfg.Dev)
	cfg.MaxRooms = env.integer("MAX_ROOMS", cfg.MaxRooms)
	cfg.MaxConnsPerIP = env.integer("MAX_CONNS_PER_IP", cfg.MaxConnsPerIP)
	cfg.MaxTotalConns = env.integer("MAX_CONNS", cfg.MaxTotalConns)
	cfg.MsgRate = env.float("MSG_RATE", cfg.MsgRate)
	cfg.MsgBurst = env.integer("MSG_BURST", cfg.MsgBurst)
	cfg.DrawingSeconds = env.integer("DRAWING_SECONDS", cfg.DrawingSeconds)
	cfg.TurnSeconds = env.integer("TURN_SECONDS", cfg.TurnSeconds)
	cfg.AdminPasswordHash = env.str("ADMIN_PASSWORD_HASH", cfg.AdminPasswordHash)
	cfg.AdminTokenTTL = env.duration("ADMIN_TOKEN_TTL", cfg.AdminTokenTTL)
	cfg.JWTSecret = env.str("JWT_SECRET", cfg.JWTSecret)
	if env.err != nil {
		return cfg, env.err
	}

	fs := flag.NewFlagSet("inkwar", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.ClientDir, "client", cfg.ClientDir, "Path to client directory (empty disables static files)")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "Base URL encoded in invite QR codes")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite match ledger path (empty disables it)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "Human readable console logs")
	fs.IntVar(&cfg.MaxRooms, "max-rooms", cfg.MaxRooms, "Concurrent room cap")
	fs.IntVar(&cfg.MaxConnsPerIP, "max-conns-per-ip", cfg.MaxConnsPerIP, "WebSocket connections per IP")
	fs.IntVar(&cfg.MaxTotalConns, "max-conns", cfg.MaxTotalConns, "Total WebSocket connections")
	fs.Float64Var(&cfg.MsgRate, "msg-rate", cfg.MsgRate, "Sustained client messages per second")
	fs.IntVar(&cfg.MsgBurst, "msg-burst", cfg.MsgBurst, "Client message burst")
	fs.IntVar(&cfg.DrawingSeconds, "drawing-seconds", cfg.DrawingSeconds, "Drawing phase length")
	fs.IntVar(&cfg.TurnSeconds, "turn-seconds", cfg.TurnSeconds, "Turn length")
	fs.StringVar(&cfg.AdminPasswordHash, "admin-password-hash", cfg.AdminPasswordHash, "bcrypt hash of the ops password (empty disables login)")
	fs.DurationVar(&cfg.AdminTokenTTL, "admin-token-ttl", cfg.AdminTokenTTL, "Ops token lifetime")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.DrawingSeconds <= 0 || cfg.TurnSeconds <= 0 {
		return cfg, fmt.Errorf("phase durations must be positive")
	}
	if cfg.MaxRooms <= 0 {
		return cfg, fmt.Errorf("max-rooms must be positive")
	}
	return cfg, nil
}

// envReader reads INKWAR_* variables and keeps the first parse error
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv("INKWAR_" + key)
	return v, ok && v != ""
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return f
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("INKWAR_%s: %w", key, err)
	}
}

// configExitCode reports a LoadConfig failure on w and returns the process
// exit status. -h has already printed usage and exits cleanly.
func configExitCode(err error, w io.Writer) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintf(w, "inkwar: %v\n", err)
	return 2
}
