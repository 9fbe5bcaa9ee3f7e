package postgres

import (
	"time"

	"github.com/google/uuid"
)

// outboxRow is the GORM model for the outbox table (spec.md §3).
type outboxRow struct {
	MessageID    uuid.UUID `gorm:"column:message_id;type:uuid;primaryKey"`
	Destination  string    `gorm:"column:destination;not null"`
	EnvelopeType string    `gorm:"column:envelope_type;not null"`
	Envelope     []byte    `gorm:"column:envelope;type:jsonb"`
	Metadata     []byte    `gorm:"column:metadata;type:jsonb"`
	StreamID     uuid.UUID `gorm:"column:stream_id;type:uuid;index:idx_outbox_stream"`
	Partition    int       `gorm:"column:partition_number;index:idx_outbox_partition"`
	Status       int       `gorm:"column:status_flags;not null"`
	Attempts     int       `gorm:"column:attempts;not null;default:0"`
	InstanceID   *string   `gorm:"column:instance_id;index:idx_outbox_instance"`
	LeaseExpiry  *time.Time `gorm:"column:lease_expiry"`
	CreatedAt    time.Time `gorm:"column:created_at;index:idx_outbox_created"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	ProcessedAt  *time.Time `gorm:"column:processed_at"`
	Error        *string   `gorm:"column:error"`
}

func (outboxRow) TableName() string { return "outbox" }

// inboxRow is the GORM model for the inbox table. Identical shape to
// outboxRow except HandlerName replaces Destination.
type inboxRow struct {
	MessageID    uuid.UUID  `gorm:"column:message_id;type:uuid;primaryKey"`
	HandlerName  string     `gorm:"column:handler_name;not null"`
	EnvelopeType string     `gorm:"column:envelope_type;not null"`
	Envelope     []byte     `gorm:"column:envelope;type:jsonb"`
	Metadata     []byte     `gorm:"column:metadata;type:jsonb"`
	StreamID     uuid.UUID  `gorm:"column:stream_id;type:uuid;index:idx_inbox_stream"`
	Partition    int        `gorm:"column:partition_number;index:idx_inbox_partition"`
	Status       int        `gorm:"column:status_flags;not null"`
	Attempts     int        `gorm:"column:attempts;not null;default:0"`
	InstanceID   *string    `gorm:"column:instance_id;index:idx_inbox_instance"`
	LeaseExpiry  *time.Time `gorm:"column:lease_expiry"`
	CreatedAt    time.Time  `gorm:"column:created_at;index:idx_inbox_created"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	ProcessedAt  *time.Time `gorm:"column:processed_at"`
	Error        *string    `gorm:"column:error"`
}

func (inboxRow) TableName() string { return "inbox" }

// serviceInstanceRow is the GORM model for the service_instances table.
type serviceInstanceRow struct {
	InstanceID      string    `gorm:"column:instance_id;primaryKey"`
	ServiceName     string    `gorm:"column:service_name;index:idx_instances_service"`
	HostName        string    `gorm:"column:host_name"`
	ProcessID       int       `gorm:"column:process_id"`
	StartedAt       time.Time `gorm:"column:started_at"`
	LastHeartbeatAt time.Time `gorm:"column:last_heartbeat_at;index:idx_instances_heartbeat"`
	Metadata        []byte    `gorm:"column:metadata;type:jsonb"`
}

func (serviceInstanceRow) TableName() string { return "service_instances" }

// dedupRow is the GORM model for message_deduplication. Rows are never
// deleted.
type dedupRow struct {
	MessageID   uuid.UUID `gorm:"column:message_id;type:uuid;primaryKey"`
	FirstSeenAt time.Time `gorm:"column:first_seen_at"`
}

func (dedupRow) TableName() string { return "message_deduplication" }
