// Package main provides the entry point for the Phasepoint portal client.
// It wires the session-aware API client, the reference and session caches
// and the navigation guard, optionally starts the debug server, and hands
// control to the interactive shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/internal/api"
	"github.com/LunarVagabond/phasepoint-frontend/internal/cache"
	"github.com/LunarVagabond/phasepoint-frontend/internal/client"
	"github.com/LunarVagabond/phasepoint-frontend/internal/config"
	"github.com/LunarVagabond/phasepoint-frontend/internal/guard"
	"github.com/LunarVagabond/phasepoint-frontend/internal/handlers"
	"github.com/LunarVagabond/phasepoint-frontend/internal/metrics"
	"github.com/LunarVagabond/phasepoint-frontend/internal/middleware"
	"github.com/LunarVagabond/phasepoint-frontend/internal/redis"
	"github.com/LunarVagabond/phasepoint-frontend/internal/session"
	"github.com/LunarVagabond/phasepoint-frontend/internal/shell"
	"github.com/LunarVagabond/phasepoint-frontend/pkg/logger"
)

func main() {
	// Load .env.local only in development (when GO_ENV is unset or "development")
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env.local file: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithConfig(&cfg.Logging)
	log.WithFields(logrus.Fields{
		"environment": cfg.Environment.Environment,
		"api":         cfg.APIBaseURL(),
		"kiosk":       cfg.IsKioskMode(),
		"redis":       cfg.IsRedisConfigured(),
	}).Info("Starting Phasepoint portal client")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	store := initializeStore(cfg, log)
	defer closeStore(store, log)

	portal, sessions, refCache, navGuard, err := initializeServices(cfg, store, m, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize portal client")
		os.Exit(1)
	}

	if cfg.IsMetricsEnabled() {
		health := handlers.NewHealthHandler(portal, store, registry, m, log)
		server := handlers.NewDebugServer(cfg.Metrics.Addr, health, middleware.NewStack(log, "/metrics"))
		go startServer(server, log)
		defer shutdownServer(server, cfg, log)
	}

	// A signal ends the shell by closing its input.
	go func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	}()

	shell.New(portal, sessions, refCache, navGuard, log, os.Stdin).Run(ctx)
}

// initializeStore connects to Redis when configured and falls back to memory.
func initializeStore(cfg *config.Config, log *logrus.Logger) redis.Store {
	if !cfg.IsRedisConfigured() {
		return redis.NewMemoryStore(log)
	}

	redisStore, err := redis.NewClient(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to Redis, falling back to in-memory store")
		return redis.NewMemoryStore(log)
	}
	return redisStore
}

func initializeServices(
	cfg *config.Config,
	store redis.Store,
	m *metrics.Metrics,
	log *logrus.Logger,
) (*api.Client, *session.Store, *cache.ReferenceCache, *guard.Guard, error) {
	base, err := client.NewBaseClient(cfg.APIBaseURL(), cfg.API.Timeout, log, client.WithMetrics(m))
	if err != nil {
		return nil, nil, nil, nil, err
	}

	sc := client.NewSessionClient(
		base,
		client.NewCSRFTokenSource(base, cfg.CSRF.Path),
		client.WithCSRFHeader(cfg.CSRF.HeaderName),
		client.WithStaleTokenDetector(client.KeywordDetector(cfg.CSRFKeywords())),
	)
	portal := api.New(sc, log)

	refCache := cache.NewReferenceCache(store, portal, log,
		cache.WithTTLs(cache.TTLs{
			Customers: cfg.Cache.CustomersTTL,
			Users:     cfg.Cache.UsersTTL,
			Groups:    cfg.Cache.GroupsTTL,
		}),
		cache.WithMetrics(m),
	)
	sessions := session.NewStore(portal, log,
		session.WithTTL(cfg.Session.TTL),
		session.WithMetrics(m),
	)

	portal.AttachCache(refCache)
	portal.AttachSession(sessions)

	navGuard := guard.New(sessions, log,
		guard.WithKioskID(cfg.Kiosk.ID),
		guard.WithMaxRedirects(cfg.Navigation.MaxRedirects),
		guard.WithMetrics(m),
	)

	return portal, sessions, refCache, navGuard, nil
}

func closeStore(store redis.Store, log *logrus.Logger) {
	if err := store.Close(); err != nil {
		log.WithError(err).Error("Failed to close cache store")
	}
}

func startServer(server *http.Server, log *logrus.Logger) {
	log.WithField("addr", server.Addr).Info("Starting debug server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Debug server stopped")
	}
}

func shutdownServer(server *http.Server, cfg *config.Config, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Metrics.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Debug server forced to shutdown")
		return
	}
	log.Info("Debug server exited gracefully")
}
