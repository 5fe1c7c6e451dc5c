package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"linkpay/internal/api"
	"linkpay/internal/config"
	"linkpay/internal/content"
	"linkpay/internal/links"
	"linkpay/internal/logging"
	"linkpay/internal/payments"
	"linkpay/internal/store"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "", "YAML config file path")
	contentDir := flag.String("content-dir", "", "Directory holding gated file content (overrides config)")
	devMode := flag.Bool("dev", false, "Development mode: disables CORS restrictions and rate limiting")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated list of allowed CORS origins (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logging.Internal.Fatalf("failed to load config: %v", err)
		}
	}
	cfg.ApplyEnv()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *contentDir != "" {
		cfg.Content.Dir = *contentDir
	}
	if *corsOrigins != "" {
		cfg.Server.CORSOrigins = strings.Split(*corsOrigins, ",")
		for i, o := range cfg.Server.CORSOrigins {
			cfg.Server.CORSOrigins[i] = strings.TrimSpace(o)
		}
	}

	st := store.NewMemoryStore()

	linksSvc := links.NewService(st)
	if err := linksSvc.SeedSampleData(context.Background()); err != nil {
		logging.Internal.Fatalf("failed to seed sample data: %v", err)
	}

	// Content bytes come from a bucket if configured, then a local
	// directory, then the built-in inline samples.
	var source content.Source
	if cfg.Content.Bucket.Bucket != "" {
		bucketSource, err := content.NewBucketSource(content.BucketConfig{
			Endpoint:  cfg.Content.Bucket.Endpoint,
			AccessKey: cfg.Content.Bucket.AccessKey,
			SecretKey: cfg.Content.Bucket.SecretKey,
			Bucket:    cfg.Content.Bucket.Bucket,
			Prefix:    cfg.Content.Bucket.Prefix,
		})
		if err != nil {
			logging.Internal.Fatalf("failed to initialize bucket source: %v", err)
		}
		source = bucketSource
		logging.Internal.Printf("using bucket content source (bucket: %s)", cfg.Content.Bucket.Bucket)
	} else if cfg.Content.Dir != "" {
		fsSource, err := content.NewFSSource(cfg.Content.Dir)
		if err != nil {
			logging.Internal.Fatalf("failed to initialize content directory: %v", err)
		}
		source = fsSource
		logging.Internal.Printf("using local content directory (%s)", cfg.Content.Dir)
	}

	registry := content.NewRegistry(source)
	content.SeedSampleContent(registry)

	paymentsSvc := payments.NewService(st)

	createLimiter := api.NewCreateLimiter(cfg.Limits.MaxUnpaidLinks)
	paymentsSvc.SetConfirmedCallback(createLimiter.OnPaymentReceived)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodically drop stale unpaid-link tracking so abandoned links
	// stop counting against their creator.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				maxAge := time.Duration(cfg.Limits.CleanupHours) * time.Hour
				if count := createLimiter.CleanupExpired(maxAge); count > 0 {
					logging.Internal.Printf("cleaned up %d expired unpaid-link entries", count)
				}
			}
		}
	}()

	handler := api.NewHandler(linksSvc, paymentsSvc, registry, createLimiter, cfg.Server.BaseURL)

	var corsConfig api.CORSConfig
	if *devMode {
		logging.Internal.Println("development mode: CORS allowing all origins")
	} else if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowedOrigins = cfg.Server.CORSOrigins
		logging.Internal.Printf("CORS restricted to origins: %v", cfg.Server.CORSOrigins)
	}

	// Middleware order: Logger -> RateLimit -> CORS -> handler.
	var finalHandler http.Handler = handler
	finalHandler = api.CORS(corsConfig)(finalHandler)
	if !*devMode {
		rateCfg := api.DefaultRateLimitConfig()
		if cfg.Limits.RequestsPerSec > 0 {
			rateCfg.RequestsPerSecond = float64(cfg.Limits.RequestsPerSec)
		}
		finalHandler = api.RateLimit(rateCfg)(finalHandler)
		logging.Internal.Println("rate limiting enabled")
	}
	finalHandler = api.Logger(finalHandler)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: finalHandler,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logging.Internal.Println("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Internal.Printf("shutdown error: %v", err)
		}
	}()

	logging.Internal.Printf("starting server on %s (base URL %s)", cfg.Server.Addr, cfg.Server.BaseURL)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logging.Internal.Fatalf("server error: %v", err)
	}
}
