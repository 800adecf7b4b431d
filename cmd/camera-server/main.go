package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tethercam/camera-server/internal/api"
	"github.com/tethercam/camera-server/internal/camera"
	"github.com/tethercam/camera-server/internal/camera/gphoto2"
	"github.com/tethercam/camera-server/internal/capture"
	"github.com/tethercam/camera-server/internal/config"
	"github.com/tethercam/camera-server/internal/integration"
	"github.com/tethercam/camera-server/internal/processing"
	"github.com/tethercam/camera-server/internal/storage"
	"github.com/tethercam/camera-server/pkg/crypto"
)

func main() {
	// Command line flags
	var configFile string
	var validateOnly bool
	var showConfig bool
	var genSecret bool
	flag.StringVar(&configFile, "config", "config/camera-server.yml", "Configuration file path")
	flag.BoolVar(&validateOnly, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&showConfig, "show-config", false, "Print configuration summary and exit")
	flag.BoolVar(&genSecret, "gen-secret", false, "Generate a random JWT secret and exit")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if genSecret {
		secret, err := crypto.GenerateRandomString(32)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate secret")
		}
		fmt.Println(secret)
		return
	}

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if validateOnly {
		fmt.Println("Configuration is valid")
		return
	}
	if showConfig {
		cfg.PrintConfigSummary()
		return
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directories")
	}

	// History store
	var store storage.Store
	if cfg.Database.DSN != "" {
		pg, err := storage.NewPostgresStore(cfg.Database.DSN,
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		store = pg
		log.Info().Msg("Connected to database")
	} else {
		store = storage.NewMemoryStore()
		log.Info().Msg("No database configured, keeping history in memory")
	}
	defer store.Close()

	// Event publisher
	var events integration.Publisher
	if cfg.NATS.URL != "" {
		pub, err := integration.NewNATSPublisher(cfg.NATS.URL,
			cfg.NATS.MaxReconnects, cfg.NATS.ReconnectInterval)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without events")
			events = integration.NewNoopPublisher()
		} else {
			events = pub
			log.Info().Str("url", cfg.NATS.URL).Msg("Connected to NATS")
		}
	} else {
		events = integration.NewNoopPublisher()
		log.Info().Msg("NATS not configured, events disabled")
	}
	defer events.Close()

	// Camera session and capture services
	driver := gphoto2.New(cfg.Camera.Binary, cfg.Camera.CommandTimeout)
	session := camera.NewSession(driver)

	preview := capture.NewPreviewService(session, cfg.Paths.PreviewFile,
		cfg.Preview.DefaultRate, cfg.Preview.FailureRetry, cfg.Preview.StopTimeout)
	timelapse := capture.NewTimelapseService(session, store, events, cfg.Paths.TimelapseDir)
	assembler := processing.NewAssembler(cfg.FFmpeg.Path)

	// REST API server
	apiServer := api.NewRESTServer(cfg, session, preview, timelapse, assembler, store, events)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown failed")
	}

	if err := preview.Stop(); err == nil {
		log.Info().Msg("Preview loop stopped")
	}
	if err := timelapse.Stop(); err == nil {
		log.Info().Msg("Timelapse stop requested")
	}

	session.Close(shutdownCtx)
	log.Info().Msg("Camera server stopped")
}
