package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fusionmc/server/internal/api"
	"github.com/fusionmc/server/internal/auth"
	"github.com/fusionmc/server/internal/config"
	"github.com/fusionmc/server/internal/database"
	"github.com/fusionmc/server/internal/engine"
	"github.com/fusionmc/server/internal/performance"
)

// historyRetention is how many statistics snapshots the history table keeps.
const historyRetention = 10000

// main starts the FusionMC culling server.
// It builds the engine from configuration, optionally attaches Postgres statistics
// history, and serves the debug/admin API and overlay websocket until signalled.
func main() {
	hashFlag := flag.Bool("hash-password", false, "read a password from stdin, print its bcrypt hash for OPERATOR_PASSWORD_HASH and exit")
	costFlag := flag.Int("bcrypt-cost", 0, "bcrypt cost for -hash-password (default bcrypt.DefaultCost)")
	flag.Parse()

	if *hashFlag {
		if err := hashPassword(os.Stdin, os.Stdout, *costFlag); err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Logging.OutputPath != "" {
		f, err := os.OpenFile(cfg.Logging.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}

	priorities, err := config.LoadPriorityTable(cfg.Culling.PriorityTablePath)
	if err != nil {
		log.Fatalf("Failed to load priority table: %v", err)
	}

	toggles, settings := engine.FromConfig(cfg.Culling, priorities)
	profiler := performance.NewProfiler(cfg.Logging.Level == "debug")
	e := engine.New(toggles, settings, engine.WithProfiler(profiler))

	var history *database.StatsHistory
	if cfg.Database.Enabled() {
		var db *sql.DB
		db, err = database.Open(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		history = database.NewStatsHistory(db, historyRetention)
		if err := history.EnsureSchema(); err != nil {
			log.Fatalf("Failed to prepare statistics history: %v", err)
		}
		log.Printf("Statistics history enabled (%s:%d/%s)", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	} else {
		log.Printf("DB_HOST not set, statistics history disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limits := api.DefaultRateLimitConfig()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", api.HealthHandler)
	api.SetupAuthRoutes(mux, cfg, limits)

	overlay := api.NewOverlayHandlers(e, cfg, api.DefaultAllowedOrigins)
	go overlay.Hub().Run(ctx)
	mux.Handle("/ws", overlay.Handler())
	api.SetupCullingRoutes(mux, e, history, overlay.Hub(), cfg, limits)

	handler := api.CORSMiddleware(api.SecurityHeadersMiddleware(mux))

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("FusionMC %s server starting on %s (%s)", engine.Version, srv.Addr, cfg.Server.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed to start: %v", err)
	}

	if profiler.IsEnabled() {
		profiler.LogReport()
	}
	log.Printf("FusionMC server stopped")
}

// hashPassword reads one password line from r and writes its bcrypt hash to w.
func hashPassword(r io.Reader, w io.Writer, cost int) error {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}
		return errors.New("no password on stdin")
	}
	password := strings.TrimRight(scanner.Text(), "\r")

	passwords := auth.NewPasswordService(&config.Config{Auth: config.AuthConfig{BCryptCost: cost}})
	hash, err := passwords.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}
