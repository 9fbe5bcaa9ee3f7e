package strategy

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/streamwork/pkg/coordinator"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/google/uuid"
)

// Strategy accumulates queued work against a single coordinator.Coordinator
// and flushes it as one atomic call. Strategy depends only on
// coordinator.Coordinator — it never holds a pointer back to the worker
// that queues against it (spec.md §9).
type Strategy struct {
	coord coordinator.Coordinator

	mu                  sync.Mutex
	metadata            []byte
	outboxCompletions   []workqueue.Completion
	outboxFailures      []workqueue.Failure
	inboxCompletions    []workqueue.Completion
	inboxFailures       []workqueue.Failure
	newOutboxMessages   []workqueue.NewMessage
	newInboxMessages    []workqueue.NewMessage
	renewOutboxLeaseIDs []uuid.UUID
	renewInboxLeaseIDs  []uuid.UUID
}

// New builds a Strategy over coord.
func New(coord coordinator.Coordinator) *Strategy {
	return &Strategy{coord: coord}
}

// QueueOutboxMessage queues a new outbox message for the next Flush.
func (s *Strategy) QueueOutboxMessage(m workqueue.NewMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newOutboxMessages = append(s.newOutboxMessages, m)
}

// QueueInboxMessage queues a new inbox message for the next Flush.
func (s *Strategy) QueueInboxMessage(m workqueue.NewMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newInboxMessages = append(s.newInboxMessages, m)
}

// QueueOutboxCompletion queues an outbox completion report.
func (s *Strategy) QueueOutboxCompletion(c workqueue.Completion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outboxCompletions = append(s.outboxCompletions, c)
}

// QueueOutboxFailure queues an outbox failure report.
func (s *Strategy) QueueOutboxFailure(f workqueue.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outboxFailures = append(s.outboxFailures, f)
}

// QueueInboxCompletion queues an inbox completion report.
func (s *Strategy) QueueInboxCompletion(c workqueue.Completion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inboxCompletions = append(s.inboxCompletions, c)
}

// QueueInboxFailure queues an inbox failure report.
func (s *Strategy) QueueInboxFailure(f workqueue.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inboxFailures = append(s.inboxFailures, f)
}

// RenewOutboxLease queues id for lease renewal on the next Flush.
func (s *Strategy) RenewOutboxLease(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewOutboxLeaseIDs = append(s.renewOutboxLeaseIDs, id)
}

// RenewInboxLease queues id for lease renewal on the next Flush.
func (s *Strategy) RenewInboxLease(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewInboxLeaseIDs = append(s.renewInboxLeaseIDs, id)
}

// SetMetadata sets the opaque metadata blob attached to the next heartbeat.
func (s *Strategy) SetMetadata(metadata []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = metadata
}

// Flush atomically swaps out the accumulated queues and sends them to the
// coordinator in one call, returning the claimed work. Items queued after
// this snapshot is taken belong to the next Flush.
func (s *Strategy) Flush(ctx context.Context) (*workqueue.BatchResult, error) {
	req := s.snapshotAndClear()
	return s.coord.Flush(ctx, req)
}

func (s *Strategy) snapshotAndClear() coordinator.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := coordinator.Request{
		Metadata:            s.metadata,
		OutboxCompletions:   s.outboxCompletions,
		OutboxFailures:      s.outboxFailures,
		InboxCompletions:    s.inboxCompletions,
		InboxFailures:       s.inboxFailures,
		NewOutboxMessages:   s.newOutboxMessages,
		NewInboxMessages:    s.newInboxMessages,
		RenewOutboxLeaseIDs: s.renewOutboxLeaseIDs,
		RenewInboxLeaseIDs:  s.renewInboxLeaseIDs,
	}

	s.outboxCompletions = nil
	s.outboxFailures = nil
	s.inboxCompletions = nil
	s.inboxFailures = nil
	s.newOutboxMessages = nil
	s.newInboxMessages = nil
	s.renewOutboxLeaseIDs = nil
	s.renewInboxLeaseIDs = nil

	return req
}
