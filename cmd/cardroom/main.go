package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/cardroom/internal/anticheat"
	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/lobby"
	"github.com/lox/cardroom/internal/metrics"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/server"
	"github.com/lox/cardroom/internal/wallet"
)

// version is set by ldflags during build
var version = "dev"

var CLI struct {
	Version        kong.VersionFlag `short:"v" help:"Show version"`
	Config         string           `short:"c" default:"cardroom.hcl" help:"Path to HCL configuration file"`
	Addr           string           `short:"a" help:"Listen address (overrides config)"`
	LogLevel       string           `short:"l" help:"Log level (overrides config)"`
	OpeningBalance int              `default:"10000" help:"Opening balance granted by the in-memory wallet"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cardroom"),
		kong.Description("Authoritative multi-variant poker room server"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	addr := cfg.Addr()
	if CLI.Addr != "" {
		addr = CLI.Addr
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	var resolver auth.Resolver
	if cfg.Server.AuthURL != "" {
		resolver = auth.NewHTTPResolver(cfg.Server.AuthURL, cfg.Server.AuthSecret)
		logger.Info("resolving identities remotely", "url", cfg.Server.AuthURL)
	} else {
		resolver = auth.NewNoopResolver()
		logger.Warn("no auth_url configured, tokens are taken at face value")
	}

	defs, err := cfg.StakeDefs()
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	var archiver *phh.Archiver
	var opts []server.Option
	if cfg.Server.HandHistoryDir != "" {
		archiver = phh.NewArchiver(cfg.Server.HandHistoryDir, logger)
		opts = append(opts, server.WithArchiver(archiver))
	}

	m := metrics.New()
	coord := server.NewCoordinator(
		lobby.New(logger),
		resolver,
		wallet.NewMemory(CLI.OpeningBalance),
		anticheat.New(),
		m,
		nil,
		logger,
		opts...,
	)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coord.Start(runCtx, defs)

	logger.Info("starting cardroom server",
		"addr", addr,
		"stakes", len(defs),
		"version", version)

	srv := server.NewServer(addr, resolver, coord, m, logger)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return srv.Run(gctx) })
	if archiver != nil {
		g.Go(func() error { return archiver.Run(gctx) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("server failed", "error", err)
		ctx.Exit(1)
	}
}
