// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/voxbox/internal/api/httpapi"
	"github.com/osa030/voxbox/internal/app/filter"
	"github.com/osa030/voxbox/internal/app/radio"
	"github.com/osa030/voxbox/internal/app/search"
	"github.com/osa030/voxbox/internal/infra/config"
	"github.com/osa030/voxbox/internal/infra/logger"
)

var (
	app        = kingpin.New("voxbox-server", "voxbox voice radio server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// check-config command
	checkConfigCmd = app.Command("check-config", "Validate the config file, print the search providers and exit")

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available result filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkConfigCmd.FullCommand() {
		printProviders(cfg)
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// loadConfig loads path, falling back to defaults when the file is missing.
func loadConfig(path string) (*config.Config, error) {
	zlog.Info().Msgf("Loading config from %s", path)
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		zlog.Warn().Msgf("Config file not found, using defaults: path=%s", path)
		return config.Default()
	}
	return cfg, err
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// The browser player connects over /ws and drives the radio's engine
	engine := httpapi.NewRemoteEngine(cfg.Server.AllowedOrigins)
	radioMgr, err := radio.NewManager(ctx, cfg, engine)
	if err != nil {
		return fmt.Errorf("failed to create radio: %w", err)
	}
	engine.Bind(radioMgr, radioMgr.NotificationManager())

	var proxy search.Provider
	if cfg.Proxy.Enabled {
		chain, err := search.NewChainFromConfig(ctx, cfg.Proxy.Providers, cfg.Spotify)
		if err != nil {
			radioMgr.Close()
			return fmt.Errorf("failed to create search proxy: %w", err)
		}
		proxy = chain
		zlog.Info().Msgf("Search proxy enabled: providers=%d", chain.Len())
	}

	api := httpapi.NewServer(radioMgr, proxy, engine, cfg.Server, cfg.Proxy)

	// h2c lets HTTP/2 clients talk to the API without TLS
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(api.Router(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	radioMgr.Start()

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-radioMgr.Done():
		zlog.Info().Msg("Radio closed, shutting down...")
	case err := <-serverErrCh:
		radioMgr.Close()
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the radio first so timers stop and notification streams end
	radioMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// printProviders prints the configured search providers.
func printProviders(cfg *config.Config) {
	fmt.Println("Radio search providers (in order):")
	for _, p := range cfg.Search.Providers {
		fmt.Printf("  %-12s - %s\n", p.Type, p.DisplayName)
	}
	if cfg.Search.Cache.Enabled {
		fmt.Printf("  cache: redis, ttl=%ds\n", cfg.Search.Cache.TTLSec)
	}
	for name, fc := range cfg.Filters {
		if fc.Enabled {
			fmt.Printf("  filter: %s\n", name)
		}
	}
	if cfg.Proxy.Enabled {
		fmt.Println("Search proxy providers (GET /search):")
		for _, p := range cfg.Proxy.Providers {
			fmt.Printf("  %-12s - %s\n", p.Type, p.DisplayName)
		}
	}
}

// printFilters prints available filters.
func printFilters() {
	registry := filter.GetRegistered()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
