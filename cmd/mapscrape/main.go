// Package main provides the entry point for the mapscrape service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" // Import for side effects - registers pprof handlers
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unixpickle/mapscrape/internal/config"
	"github.com/unixpickle/mapscrape/internal/geolocate"
	"github.com/unixpickle/mapscrape/internal/handlers"
	"github.com/unixpickle/mapscrape/internal/metrics"
	"github.com/unixpickle/mapscrape/internal/middleware"
	"github.com/unixpickle/mapscrape/internal/pool"
	"github.com/unixpickle/mapscrape/internal/selectors"
	"github.com/unixpickle/mapscrape/internal/worker"
	"github.com/unixpickle/mapscrape/pkg/version"
)

func main() {
	cfg := config.Load()

	showVersion := flag.Bool("version", false, "Print version and exit")
	driverFlag := flag.String("driver", cfg.DriverEndpoint, "CDP control URL of an already-running browser; empty to launch locally")
	hostFlag := flag.String("host", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), "address to bind the HTTP server to")
	numProxiesFlag := flag.Int("num-proxies", cfg.NumProxies, "trusted reverse-proxy hops for X-Forwarded-For based geolocation")
	headlessFlag := flag.Bool("headless", cfg.Headless, "run the browser headless")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mapscrape %s\n", version.Full())
		return
	}

	cfg.DriverEndpoint = *driverFlag
	cfg.NumProxies = *numProxiesFlag
	cfg.Headless = *headlessFlag
	if host, portStr, err := net.SplitHostPort(*hostFlag); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Host = host
			cfg.Port = port
		}
	}

	setupLogging(cfg.LogLevel)
	cfg.Validate()
	printBanner()
	metrics.SetBuildInfo(version.Full(), version.GoVersion())

	selectorsManager, err := selectors.NewManager(cfg.SelectorsPath, cfg.SelectorsHotReload)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize selectors manager")
	}

	locator, err := geolocate.New(cfg.NumProxies)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load geolocation table, /api/location will report null")
		locator = nil
	}

	log.Info().Int("size", cfg.PoolSize).Msg("launching worker pool")
	ctx, cancelStartup := context.WithTimeout(context.Background(), cfg.PoolTimeout*time.Duration(cfg.PoolSize))
	defer cancelStartup()
	workerPool, err := pool.New[handlers.Scraper](ctx, cfg.PoolSize, func(ctx context.Context) (handlers.Scraper, error) {
		w, err := worker.New(ctx, worker.Config{
			DriverEndpoint: cfg.DriverEndpoint,
			BrowserPath:    cfg.BrowserPath,
			Headless:       cfg.Headless,
		}, selectorsManager.Current)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize worker pool")
	}
	metrics.UpdatePoolMetrics(cfg.PoolSize)

	handler := handlers.New(cfg, workerPool, locator, selectorsManager)

	mux := http.NewServeMux()
	handler.Routes(mux)
	mux.Handle("/metrics", metrics.Handler())

	var finalHandler http.Handler = mux

	finalHandler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})(finalHandler)

	finalHandler = middleware.SecurityHeaders(finalHandler)

	if cfg.APIKeyEnabled {
		log.Info().Msg("API key authentication enabled")
		finalHandler = middleware.APIKey(cfg)(finalHandler)
	}

	var rateLimiter *middleware.RateLimiterMiddleware
	if cfg.RateLimitEnabled {
		log.Info().
			Int("requests_per_minute", cfg.RateLimitRPM).
			Msg("Rate limiting enabled")
		rateLimiter = middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, false)
		finalHandler = rateLimiter.Handler()(finalHandler)
	}

	finalHandler = middleware.Logging(finalHandler)
	finalHandler = middleware.Recovery(finalHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           finalHandler,
		ReadTimeout:       cfg.MaxTimeout + 10*time.Second,
		WriteTimeout:      cfg.MaxTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second, // Prevent slowloris attacks
	}

	var pprofServer *http.Server
	if cfg.PProfEnabled {
		pprofAddr := fmt.Sprintf("%s:%d", cfg.PProfBindAddr, cfg.PProfPort)
		pprofServer = &http.Server{
			Addr:         pprofAddr,
			Handler:      http.DefaultServeMux,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
		}

		go func() {
			log.Warn().
				Str("addr", pprofAddr).
				Msg("WARNING: pprof profiling server started - exposes runtime internals, use for debugging only")

			if err := pprofServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("pprof server failed")
			}
		}()
	}

	memoryStopCh := make(chan struct{})
	go metrics.StartMemoryCollector(15*time.Second, memoryStopCh)

	go func() {
		log.Info().
			Str("address", addr).
			Int("pool_size", cfg.PoolSize).
			Bool("rate_limit_enabled", cfg.RateLimitEnabled).
			Msg("mapscrape is ready to accept requests")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	signal.Stop(quit)

	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	close(memoryStopCh)

	if pprofServer != nil {
		if err := pprofServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("pprof server shutdown error")
		}
	}

	if rateLimiter != nil {
		rateLimiter.Close()
	}

	if err := selectorsManager.Close(); err != nil {
		log.Error().Err(err).Msg("selectors manager close error")
	}

	if err := workerPool.Close(func(w handlers.Scraper) error {
		return w.Close()
	}); err != nil {
		log.Error().Err(err).Msg("worker pool close error")
	}

	log.Info().Msg("Shutdown complete")
}

// setupLogging configures zerolog based on the log level.
func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// printBanner prints the startup banner.
func printBanner() {
	banner := `
 _ __ ___   __ _ _ __  ___  ___ _ __ __ _ _ __   ___
| '_ ' _ \ / _' | '_ \/ __|/ __| '__/ _' | '_ \ / _ \
| | | | | | (_| | |_) \__ \ (__| | | (_| | |_) |  __/
|_| |_| |_|\__,_| .__/|___/\___|_|  \__,_| .__/ \___|
                |_|                      |_|
`
	fmt.Println(banner)
	log.Info().
		Str("version", version.Full()).
		Str("go_version", version.GoVersion()).
		Msg("Starting mapscrape")
}
