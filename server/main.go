package server

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kwak/pkg/config"
	"kwak/pkg/logger"
)

func Main() {
	// Parse command line flags
	addr := flag.String("addr", "", "Server address (overrides config)")
	configPath := flag.String("config", "", "Config file path (optional)")
	certFile := flag.String("cert", "", "TLS certificate file (leave empty for HTTP behind nginx)")
	keyFile := flag.String("key", "", "TLS key file (leave empty for HTTP behind nginx)")
	useTLS := flag.Bool("tls", false, "Enable TLS (use false when behind nginx)")
	dbPath := flag.String("db", "", "Database path or DSN (overrides config)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	// Initialize structured logger
	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	log.InfoWith("server starting", "version", "1.0.0")

	// Load configuration (from file or defaults)
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		return
	}

	// Override config with command-line flags if provided
	if *addr != "" {
		cfg.Address = *addr
	}
	if *certFile != "" {
		cfg.TLS.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.TLS.KeyFile = *keyFile
	}
	if *useTLS {
		cfg.TLS.Enabled = true
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "info" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "text" {
		cfg.Logging.Format = *logFormat
	}

	log.InfoWith("configuration loaded",
		"address", cfg.Address,
		"tls", cfg.TLS.Enabled,
		"database", cfg.Database.Type)

	srv, err := NewServer(cfg)
	if err != nil {
		log.ErrorWithErr("failed to create server", err)
		return
	}

	if cfg.TLS.Enabled {
		log.InfoWith("starting server with TLS", "address", cfg.Address)
	} else {
		log.InfoWith("starting server with HTTP", "address", cfg.Address, "note", "ensure nginx handles TLS")
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	// Start server in a goroutine
	errorChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			log.ErrorWithErr("server error", err)
			errorChan <- err
		}
	}()

	log.InfoWith("server is running", "press", "Ctrl+C to stop")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		log.InfoWith("received signal", "signal", sig.String())
		log.InfoWith("shutting down server gracefully")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.InfoWith("server stopped")
		return

	case err := <-errorChan:
		if err != nil {
			log.ErrorWithErr("server encountered fatal error", err)
		}
		log.InfoWith("server stopped")
		return
	}
}
