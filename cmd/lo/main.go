package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"lo/internal/auth"
	"lo/internal/config"
	"lo/internal/db"
	"lo/internal/event"
	"lo/internal/eventsync"
	"lo/internal/geo"
	httpx "lo/internal/http"
	mw "lo/internal/http/middleware"
	"lo/internal/jobs"
	"lo/internal/logging"
	"lo/internal/message"
	"lo/internal/provider"
	"lo/internal/realtime"
	"lo/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("lo exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	cities, err := geo.DefaultRegistry()
	if err != nil {
		return fmt.Errorf("load cities: %w", err)
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	providers := provider.FromCredentials(provider.Credentials{
		TicketmasterAPIKey: cfg.TicketmasterAPIKey,
		EventbriteToken:    cfg.EventbriteToken,
		SeatGeekClientID:   cfg.SeatGeekClientID,
		PredictHQToken:     cfg.PredictHQToken,
		YelpAPIKey:         cfg.YelpAPIKey,
	}, cfg.Providers.Timeout, cfg.MinInterval, cfg.PageSize)
	configured := providers.Configured()
	if len(configured) == 0 {
		logging.Warn().Msg("no provider credentials configured; sync requests will report every source as failed")
	}
	logging.Info().Interface("providers", configured).Int("cities", len(cities.Cities())).Msg("starting lo")

	hub := realtime.NewHub()
	store := message.NewStore(gdb)
	writer := eventsync.NewWriter(store, cfg.EventTTL)
	syncSvc := eventsync.NewService(providers, writer, cities, cfg.EventRadiusMiles, hub)

	jobsRepo := &jobs.Repo{DB: gdb}
	host, _ := os.Hostname()
	worker := jobs.NewWorker(fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]), jobsRepo)
	worker.Recurring(jobs.TypeEventSync, cfg.PollInterval, jobs.EventSyncHandler(syncSvc, cities))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources := make([]string, 0, len(cfg.PollSources))
	for _, s := range cfg.PollSources {
		src, _ := event.ParseSource(s)
		sources = append(sources, string(src))
	}
	sched := &jobs.Scheduler{
		Jobs:        jobsRepo,
		Cities:      cities,
		RadiusMiles: cfg.PollRadiusMiles,
		Timeframe:   cfg.PollTimeframe,
		Sources:     sources,
	}
	if err := sched.SeedCities(ctx, cfg.PollCities); err != nil {
		return err
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		JWT:      auth.NewJWT(cfg.JWTSecret),
		Cities:   cities,
		Sync:     syncSvc,
		Messages: store,
		Notifier: hub,
		Realtime: &realtime.Handler{
			Hub:         hub,
			Cities:      cities,
			EventRadius: cfg.EventRadiusMiles,
			Debounce:    cfg.MapDebounce,
			CheckOrigin: mw.Origins(cfg.CORSAllowedOrigins).CheckOrigin,
		},
		Ping: db.Ping(gdb),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddBackground(hub)
	tree.AddBackground(worker)
	tree.AddAPI(supervisor.NewHTTPService(srv, 5*time.Second))

	logging.Info().Str("addr", cfg.HTTPAddr).Strs("poll_cities", cfg.PollCities).Msg("listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("shutdown complete")
	return nil
}
