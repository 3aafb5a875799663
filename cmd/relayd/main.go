// Package main is a demonstration host for the relay messaging backbone.
// It builds a registry from a bootstrap file, runs the tick loop that
// drains the scheduler, and publishes a heartbeat on every tick.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelworks/relay/internal/access"
	"github.com/kestrelworks/relay/internal/bus"
	"github.com/kestrelworks/relay/internal/config"
	"github.com/kestrelworks/relay/internal/payload"
	"github.com/kestrelworks/relay/internal/registry"
	"github.com/kestrelworks/relay/internal/sched"
	"github.com/kestrelworks/relay/internal/scope"
)

// heartbeat is published on the runtime scope once per tick.
type heartbeat struct {
	payload.ScopedEvent
	Seq uint64
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		tick       time.Duration
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "path to bootstrap config file")
	flag.DurationVar(&tick, "tick", 100*time.Millisecond, "host tick interval")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := runHost(configPath, tick, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runHost(configPath string, tick time.Duration, logger *slog.Logger) error {
	loop := sched.NewLoop(sched.WithLogger(logger))

	opts := []registry.Option{registry.WithLogger(logger)}
	var cfg *config.Config
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Bus.Priorities {
			opts = append(opts, registry.WithPriorities())
		}
		if cfg.Bus.Async {
			opts = append(opts, registry.WithAsyncDispatch(loop))
		}
		if cfg.Bus.FailOnUnhandled {
			opts = append(opts, registry.WithFailOnUnhandled())
		}
	} else {
		opts = append(opts, registry.WithPriorities(), registry.WithAsyncDispatch(loop))
	}

	tree := scope.NewTree()
	reg, err := registry.New(tree, access.NewRegistry(), opts...)
	if err != nil {
		return err
	}
	if cfg != nil {
		if err := cfg.Apply(reg); err != nil {
			return err
		}
	}

	const identity = "relayd"
	if err := reg.Access().Register(identity, tree.Runtime(), access.ReadWrite); err != nil {
		return err
	}

	events, err := reg.GetBus(payload.KindEvent, tree.Runtime(), identity)
	if err != nil {
		return err
	}
	if err := events.SubscribeFunc(bus.TypeOf[heartbeat](), func(_ context.Context, p payload.Payload) error {
		logger.Debug("heartbeat", "seq", p.(heartbeat).Seq, "scope", tree.Runtime().Path())
		return nil
	}); err != nil {
		return err
	}

	guard := payload.NewGuard(reg.Access(), identity)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	logger.Info("relayd started", "tick", tick, "scopes", tree.Size())

	var seq uint64
	ctx := context.Background()
	for {
		select {
		case <-ticker.C:
			seq++
			se, err := guard.NewScopedEvent(tree.Runtime(), payload.PropagateToParent)
			if err != nil {
				return err
			}
			if err := events.Publish(ctx, heartbeat{ScopedEvent: se, Seq: seq}); err != nil {
				logger.Error("publish failed", "error", err)
			}
			loop.Drain()
		case <-signals:
			logger.Info("shutting down")
			loop.Shutdown()
			for _, stats := range reg.Snapshot(payload.KindEvent) {
				logger.Info("bus stats",
					"bus", stats.Name,
					"published", stats.Published,
					"delivered", stats.Delivered,
					"dropped", stats.Dropped,
				)
			}
			return nil
		}
	}
}
