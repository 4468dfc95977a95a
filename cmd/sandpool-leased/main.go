// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/sandpool-project/sandpool/lib/aws/costs"
	"github.com/sandpool-project/sandpool/lib/aws/eventbus"
	"github.com/sandpool-project/sandpool/lib/aws/idc"
	"github.com/sandpool-project/sandpool/lib/aws/orgs"
	"github.com/sandpool-project/sandpool/lib/clock"
	"github.com/sandpool-project/sandpool/lib/config"
	"github.com/sandpool-project/sandpool/lib/leasing"
	"github.com/sandpool-project/sandpool/lib/monitor"
	"github.com/sandpool-project/sandpool/lib/schema"
	"github.com/sandpool-project/sandpool/lib/service"
	"github.com/sandpool-project/sandpool/lib/store"
	"github.com/sandpool-project/sandpool/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to the config file (default $SANDPOOL_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("sandpool-leased %s\n", version.Info())
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Leasing.DevMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Paths.State, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	recordStore, err := store.Open(store.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	defer recordStore.Close()

	clk := clock.Real()

	// Collaborators. Dev mode swaps the AWS-backed implementations for
	// in-memory stand-ins so the full lease lifecycle runs locally.
	var (
		mover      leasing.OUMover
		access     leasing.AccessGranter
		events     leasing.EventPublisher
		blueprints leasing.BlueprintService
		costSource monitor.CostSource
	)
	if cfg.Leasing.DevMode {
		logger.Warn("dev mode: AWS collaborators are in-memory stubs")
		mover = newDevMover()
		access = newDevAccess()
		events = &devPublisher{logger: logger}
		blueprints = devBlueprints{}
		costSource = devCosts{}
	} else {
		awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		units := make(map[schema.AccountStatus]string, len(cfg.AWS.OrganizationalUnits))
		for status, unitID := range cfg.AWS.OrganizationalUnits {
			units[schema.AccountStatus(status)] = unitID
		}
		mover = orgs.New(awscfg, units, logger)
		access = idc.New(awscfg, idc.Config{
			IdentityStoreID:  cfg.AWS.IdentityStoreID,
			SSOInstanceARN:   cfg.AWS.SSOInstanceARN,
			PermissionSetARN: cfg.AWS.PermissionSetARN,
			GroupIDs:         cfg.AWS.GroupIDs,
		}, logger)
		events = eventbus.New(awscfg, cfg.AWS.EventBusName, cfg.AWS.EventSource, logger)
		costSource = costs.New(awscfg)
		// Blueprint deployment runs in an external pipeline; the
		// orchestrator only needs the service when leases carry
		// blueprints, and validation happens in that pipeline.
	}

	orchestrator, err := leasing.New(leasing.Config{
		Leases:           recordStore.Leases(),
		Accounts:         recordStore.Accounts(),
		Templates:        recordStore.Templates(),
		Mover:            mover,
		Access:           access,
		Events:           events,
		Blueprints:       blueprints,
		Clock:            clk,
		Logger:           logger,
		MaxLeasesPerUser: cfg.Leasing.MaxLeasesPerUser,
	})
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	// Start the threshold monitor if enabled.
	var monitorDone chan error
	if cfg.Monitor.Enabled {
		interval, err := cfg.MonitorInterval()
		if err != nil {
			return fmt.Errorf("monitor interval: %w", err)
		}
		sweeper, err := monitor.New(monitor.Config{
			Leases:   recordStore.Leases(),
			Actions:  orchestrator,
			Costs:    costSource,
			Events:   events,
			Interval: interval,
			Clock:    clk,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("building monitor: %w", err)
		}
		monitorDone = make(chan error, 1)
		go func() {
			monitorDone <- sweeper.Run(ctx)
		}()
		logger.Info("lease monitor running", "interval", interval)
	}

	daemon := &Daemon{
		leasing:   orchestrator,
		clock:     clk,
		startedAt: clk.Now(),
		logger:    logger,
	}

	socketServer := service.NewSocketServer(cfg.Socket.Path, logger)
	daemon.registerActions(socketServer)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	logger.Info("sandpool daemon running",
		"socket", cfg.Socket.Path,
		"environment", cfg.Environment,
		"dev_mode", cfg.Leasing.DevMode,
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if monitorDone != nil {
		if err := <-monitorDone; err != nil && ctx.Err() == nil {
			logger.Error("monitor error", "error", err)
		}
	}
	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	return nil
}
