package main

import (
	"github.com/chris-alexander-pop/streamwork/pkg/database"
	"github.com/chris-alexander-pop/streamwork/pkg/database/sql"
	sqlpostgres "github.com/chris-alexander-pop/streamwork/pkg/database/sql/adapters/postgres"
	"github.com/chris-alexander-pop/streamwork/pkg/errors"
	"github.com/chris-alexander-pop/streamwork/pkg/eventstore"
	eventstorememory "github.com/chris-alexander-pop/streamwork/pkg/eventstore/adapters/memory"
	eventstorepostgres "github.com/chris-alexander-pop/streamwork/pkg/eventstore/adapters/postgres"
	"github.com/chris-alexander-pop/streamwork/pkg/transport"
	"github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/kafka"
	"github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/nats"
	transportmemory "github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/memory"
	"github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/rabbitmq"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	workqueuememory "github.com/chris-alexander-pop/streamwork/pkg/workqueue/adapters/memory"
	workqueuepostgres "github.com/chris-alexander-pop/streamwork/pkg/workqueue/adapters/postgres"
)

// openDatabase dials Postgres once, shared between the workqueue and event
// store adapters when either is configured to use it; nil if neither is.
func openDatabase(cfg Config) (sql.SQL, error) {
	if cfg.WorkqueueDriver != "postgres" && cfg.EventStoreDriver != "postgres" {
		return nil, nil
	}
	dbCfg := cfg.DB
	dbCfg.Driver = database.DriverPostgres
	db, err := sqlpostgres.New(dbCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}
	return db, nil
}

func buildWorkqueueStore(cfg Config, db sql.SQL) (workqueue.Store, error) {
	var (
		store workqueue.Store
		err   error
	)
	switch cfg.WorkqueueDriver {
	case "postgres":
		store, err = workqueuepostgres.New(workqueuepostgres.Config{SQL: db})
	case "memory", "":
		store = workqueuememory.New()
	default:
		err = errors.InvalidArgument("unknown workqueue driver: "+cfg.WorkqueueDriver, nil)
	}
	if err != nil {
		return nil, err
	}
	return workqueue.NewInstrumentedStore(store), nil
}

func buildEventStore(cfg Config, db sql.SQL) (eventstore.Store, error) {
	var (
		store eventstore.Store
		err   error
	)
	switch cfg.EventStoreDriver {
	case "postgres":
		store, err = eventstorepostgres.New(eventstorepostgres.Config{SQL: db})
	case "memory", "":
		store = eventstorememory.New()
	default:
		err = errors.InvalidArgument("unknown event store driver: "+cfg.EventStoreDriver, nil)
	}
	if err != nil {
		return nil, err
	}
	return eventstore.NewInstrumentedStore(store), nil
}

func buildTransport(cfg Config) (transport.Transport, error) {
	var (
		t   transport.Transport
		err error
	)
	switch cfg.TransportDriver {
	case "kafka":
		t, err = kafka.New(cfg.Kafka)
	case "nats":
		t, err = nats.New(cfg.NATS)
	case "rabbitmq":
		t, err = rabbitmq.New(cfg.RabbitMQ)
	case "memory", "":
		t = transportmemory.New()
	default:
		err = errors.InvalidArgument("unknown transport driver: "+cfg.TransportDriver, nil)
	}
	if err != nil {
		return nil, err
	}
	return transport.NewInstrumentedTransport(t), nil
}
