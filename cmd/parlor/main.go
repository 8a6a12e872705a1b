// Package main provides the parlor server binary: a realtime multi-room
// presence server over websockets.
package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/parlorchat/parlor/internal/config"
	"github.com/parlorchat/parlor/internal/observability"
	"github.com/parlorchat/parlor/internal/presence"
	"github.com/parlorchat/parlor/internal/router"
	"github.com/parlorchat/parlor/internal/server"
	"github.com/parlorchat/parlor/internal/transport/ws"
	"github.com/parlorchat/parlor/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty = built-in defaults")
	flag.Parse()

	var (
		cfg config.Config
		err error
	)
	if *configPath == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	registry := presence.NewRegistry()
	rooms := presence.NewDirectory()
	eventRouter := router.New(registry, rooms, cfg.Stage, logger)
	wsHandler := ws.NewHandler(cfg.WebSocket, eventRouter, logger)

	httpRouter := web.NewRouter(web.RouterConfig{
		Logger:    logger,
		WS:        wsHandler,
		StaticDir: cfg.Server.StaticDir,
		Stats: func() web.Stats {
			roomCount, members := rooms.Stats()
			return web.Stats{
				Connections: registry.Count(),
				Rooms:       roomCount,
				Members:     members,
			}
		},
	})

	logger.Info("starting parlor server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("static_dir", cfg.Server.StaticDir),
	)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("http", web.NewServer(cfg.Server, httpRouter, logger))

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
