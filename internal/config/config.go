package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"lo/internal/event"
)

type Config struct {
	HTTPAddr             string   `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL          string   `envconfig:"DATABASE_URL" required:"true"`
	CORSAllowedOrigins   []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool     `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`

	// HS256 secret of the managed auth provider; we only verify its tokens.
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	Providers
	Sync
}

type Providers struct {
	TicketmasterAPIKey string `envconfig:"TICKETMASTER_API_KEY"`
	EventbriteToken    string `envconfig:"EVENTBRITE_TOKEN"`
	SeatGeekClientID   string `envconfig:"SEATGEEK_CLIENT_ID"`
	PredictHQToken     string `envconfig:"PREDICTHQ_TOKEN"`
	YelpAPIKey         string `envconfig:"YELP_API_KEY"`

	Timeout     time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"15s"`
	MinInterval time.Duration `envconfig:"PROVIDER_MIN_INTERVAL" default:"5s"`
	PageSize    int           `envconfig:"PROVIDER_PAGE_SIZE" default:"50"`
}

type Sync struct {
	EventTTL         time.Duration `envconfig:"EVENT_TTL" default:"48h"`
	EventRadiusMiles float64       `envconfig:"EVENT_RADIUS_MILES" default:"50"`
	MapDebounce      time.Duration `envconfig:"MAP_DEBOUNCE" default:"500ms"`
	RateLimit        int           `envconfig:"SYNC_RATE_LIMIT" default:"30"`

	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	PollCities      []string      `envconfig:"POLL_CITIES"`
	PollRadiusMiles float64       `envconfig:"POLL_RADIUS_MILES" default:"25"`
	PollTimeframe   string        `envconfig:"POLL_TIMEFRAME" default:"24h"`
	PollSources     []string      `envconfig:"POLL_SOURCES" default:"ticketmaster"`
}

// Load reads an optional .env file and then the LO_-prefixed environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("LO", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.CORSAllowedOrigins = trimAll(cfg.CORSAllowedOrigins)
	cfg.Sync.PollCities = trimAll(cfg.Sync.PollCities)
	cfg.Sync.PollSources = trimAll(cfg.Sync.PollSources)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := event.ParseTimeframe(c.Sync.PollTimeframe); err != nil {
		return fmt.Errorf("LO_POLL_TIMEFRAME: %w", err)
	}
	for _, s := range c.Sync.PollSources {
		if _, err := event.ParseSource(s); err != nil {
			return fmt.Errorf("LO_POLL_SOURCES: %w", err)
		}
	}
	if c.Sync.EventTTL <= 0 {
		return fmt.Errorf("LO_EVENT_TTL must be positive")
	}
	if c.Sync.EventRadiusMiles <= 0 {
		return fmt.Errorf("LO_EVENT_RADIUS_MILES must be positive")
	}
	if c.Sync.RateLimit <= 0 {
		return fmt.Errorf("LO_SYNC_RATE_LIMIT must be positive")
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("LO_POLL_INTERVAL must be positive")
	}
	return nil
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
