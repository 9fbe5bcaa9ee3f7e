package main

import (
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/database/sql"
	"github.com/chris-alexander-pop/streamwork/pkg/logger"
	"github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/kafka"
	"github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/nats"
	"github.com/chris-alexander-pop/streamwork/pkg/transport/adapters/rabbitmq"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
)

// Config is the process's environment-driven configuration, loaded once at
// startup by pkg/config.Load.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" env-default:"streamwork-worker"`
	InstanceID  string `env:"INSTANCE_ID"`
	HostName    string `env:"HOSTNAME"`

	WorkqueueDriver  string `env:"WORKQUEUE_DRIVER" env-default:"memory" validate:"oneof=memory postgres"`
	EventStoreDriver string `env:"EVENTSTORE_DRIVER" env-default:"memory" validate:"oneof=memory postgres"`
	TransportDriver  string `env:"TRANSPORT_DRIVER" env-default:"memory" validate:"oneof=memory kafka nats rabbitmq"`

	InboxDestinations []string `env:"INBOX_DESTINATIONS" env-separator:"," env-default:"orders"`

	Logger    logger.Config
	DB        sql.Config
	Workqueue workqueue.Config
	Kafka     kafka.Config
	NATS      nats.Config
	RabbitMQ  rabbitmq.Config

	PartitionMaintenanceEnabled  bool          `env:"PARTITION_MAINTENANCE_ENABLED" env-default:"false"`
	PartitionMaintenanceInterval time.Duration `env:"PARTITION_MAINTENANCE_INTERVAL" env-default:"24h"`
}
