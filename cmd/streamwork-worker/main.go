// Command streamwork-worker runs the outbox publisher and inbox consumer
// workers as a single process against a configured workqueue store, event
// store, and transport. Configuration is entirely environment-driven
// (pkg/config); see config.go for the full set of variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/concurrency"
	"github.com/chris-alexander-pop/streamwork/pkg/config"
	"github.com/chris-alexander-pop/streamwork/pkg/coordinator"
	"github.com/chris-alexander-pop/streamwork/pkg/database/partitioning"
	"github.com/chris-alexander-pop/streamwork/pkg/database/sql"
	"github.com/chris-alexander-pop/streamwork/pkg/dispatch"
	"github.com/chris-alexander-pop/streamwork/pkg/envelope"
	"github.com/chris-alexander-pop/streamwork/pkg/inbox"
	"github.com/chris-alexander-pop/streamwork/pkg/logger"
	"github.com/chris-alexander-pop/streamwork/pkg/outbox"
	"github.com/chris-alexander-pop/streamwork/pkg/strategy"
	"github.com/chris-alexander-pop/streamwork/pkg/validator"
	"github.com/google/uuid"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.HostName == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.HostName = h
		}
	}

	logger.Init(cfg.Logger)
	log := logger.L()
	log.Info("starting", "service", cfg.ServiceName, "instance_id", cfg.InstanceID,
		"workqueue_driver", cfg.WorkqueueDriver, "eventstore_driver", cfg.EventStoreDriver,
		"transport_driver", cfg.TransportDriver)

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	store, err := buildWorkqueueStore(cfg, db)
	if err != nil {
		return fmt.Errorf("build workqueue store: %w", err)
	}
	defer store.Close()

	events, err := buildEventStore(cfg, db)
	if err != nil {
		return fmt.Errorf("build event store: %w", err)
	}
	defer events.Close()

	tr, err := buildTransport(cfg)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}
	defer tr.Close()

	identity := coordinator.Identity{
		InstanceID:  cfg.InstanceID,
		ServiceName: cfg.ServiceName,
		HostName:    cfg.HostName,
		ProcessID:   os.Getpid(),
	}
	client := coordinator.New(store, identity, cfg.Workqueue)

	envelopes := envelope.NewRegistry()
	handlers := dispatch.NewRegistry()
	registerHandlers(envelopes, handlers, validator.New())

	outboxWorker := outbox.New(strategy.New(client), tr, outbox.DefaultConfig())
	inboxWorker := inbox.New(inbox.Deps{
		Strategy:     strategy.New(client),
		Transport:    tr,
		Dedup:        store,
		Registry:     envelopes,
		Dispatcher:   dispatch.NewDispatcher(handlers),
		EventStore:   events,
		Destinations: cfg.InboxDestinations,
	}, inbox.DefaultConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PartitionMaintenanceEnabled && db != nil {
		concurrency.SafeGo(ctx, func() {
			runPartitionMaintenance(ctx, db, cfg.PartitionMaintenanceInterval)
		})
	}

	errs := make(chan error, 2)
	concurrency.SafeGo(ctx, func() {
		outboxWorker.Run(ctx)
		errs <- nil
	})
	concurrency.SafeGo(ctx, func() {
		errs <- inboxWorker.Run(ctx)
	})

	<-ctx.Done()
	log.Info("shutdown signal received, draining workers")

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			log.Error("worker exited with error", "error", err)
		}
	}

	log.Info("shutdown complete")
	return nil
}

// runPartitionMaintenance pre-creates tomorrow's range partition for the
// append-only tables on a fixed interval, off the process_work_batch hot
// path (pkg/database/partitioning's own doc comment: "run from a scheduled
// task").
func runPartitionMaintenance(ctx context.Context, db sql.SQL, interval time.Duration) {
	createNextPartitions(ctx, db)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			createNextPartitions(ctx, db)
		}
	}
}

func createNextPartitions(ctx context.Context, db sql.SQL) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, 1).Format("2006-01-02")
	end := now.AddDate(0, 0, 2).Format("2006-01-02")

	for _, table := range []string{"outbox", "event_store"} {
		if err := partitioning.CreateRangePartition(db.Get(ctx), table, "created_at", start, end); err != nil {
			logger.L().ErrorContext(ctx, "failed to create partition", "table", table, "error", err)
		}
	}
}
