package workqueue

import (
	"time"

	"github.com/google/uuid"
)

// StatusFlags is the bitmask carried by outbox and inbox rows.
type StatusFlags int

const (
	Stored      StatusFlags = 1 << 0
	EventStored StatusFlags = 1 << 1
	Published   StatusFlags = 1 << 2
	Failed      StatusFlags = 1 << 3
	Retry       StatusFlags = 1 << 4
)

// FullyCompleted is the flag set that marks an inbox row eligible for
// deletion: stored, its side-effect event appended, and delivered.
const FullyCompleted = Stored | EventStored | Published

// Has reports whether all bits in want are set in f.
func (f StatusFlags) Has(want StatusFlags) bool {
	return f&want == want
}

// DefaultLeaseSeconds, DefaultPartitionCount, DefaultStaleThresholdSeconds,
// DefaultMaxAttempts and DefaultBatchSize are the process_work_batch
// defaults named in spec.md §4.1.
const (
	DefaultLeaseSeconds          = 300
	DefaultPartitionCount        = 10000
	DefaultStaleThresholdSeconds = 600
	DefaultMaxAttempts           = 10
	DefaultBatchSize             = 100
)

// OutboxMessage is a row of the outbox table.
type OutboxMessage struct {
	MessageID    uuid.UUID
	Destination  string
	EnvelopeType string
	Envelope     []byte
	Metadata     []byte
	StreamID     uuid.UUID
	Partition    int
	Status       StatusFlags
	Attempts     int
	InstanceID   *string
	LeaseExpiry  *time.Time
	CreatedAt    time.Time
	PublishedAt  *time.Time
	ProcessedAt  *time.Time
	Error        *string
}

// InboxMessage is a row of the inbox table. Identical shape to
// OutboxMessage except HandlerName replaces Destination.
type InboxMessage struct {
	MessageID    uuid.UUID
	HandlerName  string
	EnvelopeType string
	Envelope     []byte
	Metadata     []byte
	StreamID     uuid.UUID
	Partition    int
	Status       StatusFlags
	Attempts     int
	InstanceID   *string
	LeaseExpiry  *time.Time
	CreatedAt    time.Time
	PublishedAt  *time.Time
	ProcessedAt  *time.Time
	Error        *string
}

// NewMessage is a caller-supplied message to insert in step 5 of
// ProcessBatch. Partition is computed by the store from StreamID; callers
// never supply it directly.
type NewMessage struct {
	MessageID    uuid.UUID
	Destination  string // outbox only
	HandlerName  string // inbox only
	EnvelopeType string
	Envelope     []byte
	Metadata     []byte
	StreamID     uuid.UUID
	CreatedAt    time.Time
}

// Completion is a reported success. Status == 0 is the reserved "release
// without progress" sentinel: clear the lease only, do not touch flags.
type Completion struct {
	MessageID uuid.UUID
	Status    StatusFlags
}

// Failure is a reported terminal or retryable error for one message.
type Failure struct {
	MessageID       uuid.UUID
	CompletedStatus StatusFlags
	Error           string
}

// BatchRequest is the full input to one ProcessBatch call.
type BatchRequest struct {
	InstanceID  string
	ServiceName string
	HostName    string
	ProcessID   int
	Metadata    []byte

	OutboxCompletions []Completion
	OutboxFailures    []Failure
	InboxCompletions  []Completion
	InboxFailures     []Failure

	NewOutboxMessages []NewMessage
	NewInboxMessages  []NewMessage

	RenewOutboxLeaseIDs []uuid.UUID
	RenewInboxLeaseIDs  []uuid.UUID

	LeaseSeconds          int
	PartitionCount        int
	StaleThresholdSeconds int
	MaxAttempts           int
	BatchSize             int
}

// WithDefaults fills zero-valued tunables with the spec defaults.
func (r BatchRequest) WithDefaults() BatchRequest {
	if r.LeaseSeconds <= 0 {
		r.LeaseSeconds = DefaultLeaseSeconds
	}
	if r.PartitionCount <= 0 {
		r.PartitionCount = DefaultPartitionCount
	}
	if r.StaleThresholdSeconds <= 0 {
		r.StaleThresholdSeconds = DefaultStaleThresholdSeconds
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.BatchSize <= 0 {
		r.BatchSize = DefaultBatchSize
	}
	return r
}

// BatchResult is the claimed work returned by one ProcessBatch call.
type BatchResult struct {
	OutboxWork []OutboxMessage
	InboxWork  []InboxMessage
}
