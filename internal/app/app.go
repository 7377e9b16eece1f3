// Package app wires configuration, logging, the world model, and the
// HTTP surface into a runnable server process.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"mendbots/server/catalog"
	"mendbots/server/internal/config"
	"mendbots/server/internal/hub"
	"mendbots/server/internal/journal"
	servernet "mendbots/server/internal/net"
	"mendbots/server/internal/telemetry"
	"mendbots/server/internal/world"
	"mendbots/server/logging"
	loggingSinks "mendbots/server/logging/sinks"
)

type Config struct {
	// ConfigPath points at the YAML config file; empty runs on defaults.
	ConfigPath string
	Logger     telemetry.Logger
}

func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	fileCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if raw := os.Getenv("TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			fileCfg.Server.TickRate = value
		} else {
			logger.Printf("invalid TICK_RATE=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("ENABLE_PPROF"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			fileCfg.Server.Pprof = value
		} else {
			logger.Printf("invalid ENABLE_PPROF=%q: %v", raw, err)
		}
	}

	routerCfg := fileCfg.LoggingConfig()

	var named []logging.NamedSink
	for _, name := range fileCfg.Logging.Sinks {
		switch name {
		case "console":
			named = append(named, logging.NamedSink{
				Name: "console",
				Sink: loggingSinks.NewConsoleSink(os.Stdout, routerCfg.Console),
			})
		case "json":
			path := routerCfg.JSON.FilePath
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create log directory: %w", err)
				}
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open event log: %w", err)
			}
			defer file.Close()
			named = append(named, logging.NamedSink{
				Name: "json",
				Sink: loggingSinks.NewJSON(file, routerCfg.JSON.FlushInterval),
			})
		case "memory":
			named = append(named, logging.NamedSink{
				Name: "memory",
				Sink: loggingSinks.NewMemorySink(),
			})
		case "archive":
			sink, err := loggingSinks.NewArchiveSink(routerCfg.Archive)
			if err != nil {
				return fmt.Errorf("failed to open archive sink: %w", err)
			}
			named = append(named, logging.NamedSink{Name: "archive", Sink: sink})
		}
	}

	if fileCfg.Journal.Enabled {
		path := fileCfg.Journal.Path
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create journal directory: %w", err)
			}
		}
		store, err := journal.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		named = append(named, logging.NamedSink{
			Name: "journal",
			Sink: journal.NewRecorder(store),
		})
	}

	router, err := logging.NewRouter(logging.SystemClock{}, routerCfg, named)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	var cat *catalog.Catalog
	if fileCfg.World.CatalogPath != "" {
		cat, err = catalog.LoadFile(fileCfg.World.CatalogPath)
	} else {
		cat, err = catalog.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load structure catalog: %w", err)
	}

	w, err := world.New(fileCfg.WorldConfig(), world.Deps{
		Publisher: router,
		Kinds:     cat.Kinds(),
	})
	if err != nil {
		return fmt.Errorf("failed to build world: %w", err)
	}

	h, err := hub.NewHub(fileCfg.HubConfig(), hub.Deps{
		World:     w,
		Kinds:     cat,
		Publisher: router,
		Metrics:   logging.NewMetrics(),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build hub: %w", err)
	}

	stop := make(chan struct{})
	go h.Run(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(h, servernet.HTTPHandlerConfig{
		ClientDir: fileCfg.Server.ClientDir,
		Logger:    logger,
		Catalog:   cat,
		Pprof:     fileCfg.Server.Pprof,
	})

	srv := &http.Server{Addr: fileCfg.Server.Addr, Handler: handler}
	logger.Printf("server listening on %s", srv.Addr)

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
