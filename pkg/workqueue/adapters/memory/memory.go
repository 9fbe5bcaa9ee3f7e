// Package memory implements pkg/workqueue.Store entirely in-process with a
// mutex, mirroring the transactional semantics the postgres adapter gives
// you with a real row lock. It is the reference implementation used by the
// package's own tests and is a reasonable choice for single-process
// deployments and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/partition"
	"github.com/chris-alexander-pop/streamwork/pkg/registry"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/google/uuid"
)

// Store is an in-memory workqueue.Store.
type Store struct {
	mu sync.Mutex

	instances map[string]registry.Instance
	outbox    map[uuid.UUID]*workqueue.OutboxMessage
	inbox     map[uuid.UUID]*workqueue.InboxMessage
	dedup     map[uuid.UUID]time.Time

	closed bool
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		instances: make(map[string]registry.Instance),
		outbox:    make(map[uuid.UUID]*workqueue.OutboxMessage),
		inbox:     make(map[uuid.UUID]*workqueue.InboxMessage),
		dedup:     make(map[uuid.UUID]time.Time),
	}
}

func (s *Store) ProcessBatch(ctx context.Context, req workqueue.BatchRequest) (*workqueue.BatchResult, error) {
	req = req.WithDefaults()
	if req.InstanceID == "" {
		return nil, workqueue.ErrInvalidRequest("instance_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	staleThreshold := time.Duration(req.StaleThresholdSeconds) * time.Second
	leaseDuration := time.Duration(req.LeaseSeconds) * time.Second

	// Step 1: heartbeat upsert.
	s.instances[req.InstanceID] = registry.Instance{
		InstanceID:      req.InstanceID,
		ServiceName:     req.ServiceName,
		HostName:        req.HostName,
		ProcessID:       req.ProcessID,
		StartedAt:       s.startedAt(req.InstanceID, now),
		LastHeartbeatAt: now,
		Metadata:        req.Metadata,
	}

	// Step 2: apply completions.
	s.applyOutboxCompletions(req.OutboxCompletions, now)
	s.applyInboxCompletions(req.InboxCompletions)

	// Step 3: apply failures.
	failedOutboxStreams := s.applyOutboxFailures(req.OutboxFailures, req.MaxAttempts)
	failedInboxStreams := s.applyInboxFailures(req.InboxFailures)

	// Step 4: stream failure cascade.
	s.cascadeOutbox(failedOutboxStreams)
	s.cascadeInbox(failedInboxStreams)

	// Step 5: insert new messages.
	for _, m := range req.NewOutboxMessages {
		s.insertOutbox(m, req.PartitionCount, now)
	}
	for _, m := range req.NewInboxMessages {
		s.insertInbox(m, req.PartitionCount, now)
	}

	// Step 6: renew leases.
	for _, id := range req.RenewOutboxLeaseIDs {
		if msg, ok := s.outbox[id]; ok && msg.InstanceID != nil && *msg.InstanceID == req.InstanceID {
			expiry := now.Add(leaseDuration)
			msg.LeaseExpiry = &expiry
		}
	}
	for _, id := range req.RenewInboxLeaseIDs {
		if msg, ok := s.inbox[id]; ok && msg.InstanceID != nil && *msg.InstanceID == req.InstanceID {
			expiry := now.Add(leaseDuration)
			msg.LeaseExpiry = &expiry
		}
	}

	// Step 7: claim work.
	aliveIDs := registry.AliveIDs(s.aliveInstancesOf(req.ServiceName), now, staleThreshold)
	rank, n := registry.Rank(req.InstanceID, aliveIDs)

	result := &workqueue.BatchResult{}
	if n > 0 && rank >= 0 {
		result.OutboxWork = s.claimOutbox(req.InstanceID, rank, n, req.BatchSize, now, leaseDuration)
		result.InboxWork = s.claimInbox(req.InstanceID, rank, n, req.BatchSize, now, leaseDuration)
	}

	return result, nil
}

func (s *Store) startedAt(instanceID string, now time.Time) time.Time {
	if existing, ok := s.instances[instanceID]; ok {
		return existing.StartedAt
	}
	return now
}

func (s *Store) aliveInstancesOf(serviceName string) []registry.Instance {
	out := make([]registry.Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		if inst.ServiceName == serviceName {
			out = append(out, inst)
		}
	}
	return out
}

func (s *Store) applyOutboxCompletions(completions []workqueue.Completion, now time.Time) {
	for _, c := range completions {
		msg, ok := s.outbox[c.MessageID]
		if !ok {
			continue
		}
		if c.Status == 0 {
			msg.InstanceID, msg.LeaseExpiry = nil, nil
			continue
		}
		msg.Status |= c.Status
		msg.InstanceID, msg.LeaseExpiry = nil, nil
		if msg.Status.Has(workqueue.Published) && msg.PublishedAt == nil {
			msg.PublishedAt = &now
		}
	}
}

func (s *Store) applyInboxCompletions(completions []workqueue.Completion) {
	for _, c := range completions {
		msg, ok := s.inbox[c.MessageID]
		if !ok {
			continue
		}
		if c.Status == 0 {
			msg.InstanceID, msg.LeaseExpiry = nil, nil
			continue
		}
		msg.Status |= c.Status
		msg.InstanceID, msg.LeaseExpiry = nil, nil
		if msg.Status.Has(workqueue.FullyCompleted) {
			delete(s.inbox, c.MessageID)
		}
	}
}

// applyOutboxFailures applies step 3 and returns the stream ids touched by a
// newly-failed row, for use by the step 4 cascade.
func (s *Store) applyOutboxFailures(failures []workqueue.Failure, maxAttempts int) map[uuid.UUID]time.Time {
	streams := make(map[uuid.UUID]time.Time)
	for _, f := range failures {
		msg, ok := s.outbox[f.MessageID]
		if !ok {
			continue
		}
		errCopy := f.Error
		msg.Status |= workqueue.Failed | f.CompletedStatus
		msg.Error = &errCopy
		msg.Attempts++
		msg.InstanceID, msg.LeaseExpiry = nil, nil

		if msg.Attempts >= maxAttempts {
			msg.Status &^= workqueue.Retry
		} else {
			msg.Status |= workqueue.Retry
		}

		if existing, ok := streams[msg.StreamID]; !ok || msg.CreatedAt.Before(existing) {
			streams[msg.StreamID] = msg.CreatedAt
		}
	}
	return streams
}

func (s *Store) applyInboxFailures(failures []workqueue.Failure) map[uuid.UUID]time.Time {
	streams := make(map[uuid.UUID]time.Time)
	for _, f := range failures {
		msg, ok := s.inbox[f.MessageID]
		if !ok {
			continue
		}
		errCopy := f.Error
		msg.Status |= workqueue.Failed | f.CompletedStatus
		msg.Error = &errCopy
		msg.Attempts++
		msg.InstanceID, msg.LeaseExpiry = nil, nil

		if existing, ok := streams[msg.StreamID]; !ok || msg.CreatedAt.Before(existing) {
			streams[msg.StreamID] = msg.CreatedAt
		}
	}
	return streams
}

// cascadeOutbox releases (lease only, no flag change) every outbox row in a
// touched stream that is newer than the earliest failure in that stream and
// not already Published.
func (s *Store) cascadeOutbox(streams map[uuid.UUID]time.Time) {
	if len(streams) == 0 {
		return
	}
	for _, msg := range s.outbox {
		failedAt, touched := streams[msg.StreamID]
		if !touched {
			continue
		}
		if msg.Status.Has(workqueue.Published) {
			continue
		}
		if msg.CreatedAt.After(failedAt) {
			msg.InstanceID, msg.LeaseExpiry = nil, nil
		}
	}
}

func (s *Store) cascadeInbox(streams map[uuid.UUID]time.Time) {
	if len(streams) == 0 {
		return
	}
	for _, msg := range s.inbox {
		failedAt, touched := streams[msg.StreamID]
		if !touched {
			continue
		}
		if msg.Status.Has(workqueue.Published) {
			continue
		}
		if msg.CreatedAt.After(failedAt) {
			msg.InstanceID, msg.LeaseExpiry = nil, nil
		}
	}
}

func (s *Store) insertOutbox(m workqueue.NewMessage, partitionCount int, now time.Time) {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	s.outbox[m.MessageID] = &workqueue.OutboxMessage{
		MessageID:    m.MessageID,
		Destination:  m.Destination,
		EnvelopeType: m.EnvelopeType,
		Envelope:     m.Envelope,
		Metadata:     m.Metadata,
		StreamID:     m.StreamID,
		Partition:    partition.Of(m.StreamID, partitionCount),
		Status:       workqueue.Stored,
		CreatedAt:    createdAt,
	}
}

func (s *Store) insertInbox(m workqueue.NewMessage, partitionCount int, now time.Time) {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	s.inbox[m.MessageID] = &workqueue.InboxMessage{
		MessageID:    m.MessageID,
		HandlerName:  m.HandlerName,
		EnvelopeType: m.EnvelopeType,
		Envelope:     m.Envelope,
		Metadata:     m.Metadata,
		StreamID:     m.StreamID,
		Partition:    partition.Of(m.StreamID, partitionCount),
		Status:       workqueue.Stored,
		CreatedAt:    createdAt,
	}
}

func (s *Store) claimOutbox(instanceID string, rank, n, batchSize int, now time.Time, leaseDuration time.Duration) []workqueue.OutboxMessage {
	candidates := make([]*workqueue.OutboxMessage, 0)
	for _, msg := range s.outbox {
		if !s.isClaimable(msg.InstanceID, msg.LeaseExpiry, msg.Status, msg.Partition, rank, n, now) {
			continue
		}
		if s.blockedByEarlierOutboxLease(msg, instanceID, now) {
			continue
		}
		if s.blockedByUnresolvedOutboxFailure(msg) {
			continue
		}
		candidates = append(candidates, msg)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].MessageID.String() < candidates[j].MessageID.String()
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if len(candidates) > batchSize {
		candidates = candidates[:batchSize]
	}

	claimed := make([]workqueue.OutboxMessage, 0, len(candidates))
	for _, msg := range candidates {
		owner := instanceID
		expiry := now.Add(leaseDuration)
		msg.InstanceID = &owner
		msg.LeaseExpiry = &expiry
		claimed = append(claimed, *msg)
	}
	return claimed
}

func (s *Store) claimInbox(instanceID string, rank, n, batchSize int, now time.Time, leaseDuration time.Duration) []workqueue.InboxMessage {
	candidates := make([]*workqueue.InboxMessage, 0)
	for _, msg := range s.inbox {
		if !s.isClaimable(msg.InstanceID, msg.LeaseExpiry, msg.Status, msg.Partition, rank, n, now) {
			continue
		}
		if s.blockedByEarlierInboxLease(msg, instanceID, now) {
			continue
		}
		if s.blockedByUnresolvedInboxFailure(msg) {
			continue
		}
		candidates = append(candidates, msg)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].MessageID.String() < candidates[j].MessageID.String()
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	if len(candidates) > batchSize {
		candidates = candidates[:batchSize]
	}

	claimed := make([]workqueue.InboxMessage, 0, len(candidates))
	for _, msg := range candidates {
		owner := instanceID
		expiry := now.Add(leaseDuration)
		msg.InstanceID = &owner
		msg.LeaseExpiry = &expiry
		claimed = append(claimed, *msg)
	}
	return claimed
}

func (s *Store) isClaimable(instanceID *string, leaseExpiry *time.Time, status workqueue.StatusFlags, part, rank, n int, now time.Time) bool {
	leased := instanceID != nil && leaseExpiry != nil && leaseExpiry.After(now)
	if leased {
		return false
	}
	if status.Has(workqueue.Published) || status.Has(workqueue.Failed) {
		return false
	}
	return part%n == rank
}

// blockedByEarlierOutboxLease implements the cross-instance stream-ordering
// exclusion of step 7: a row is ineligible if an older row in the same
// stream is currently leased by a different alive instance.
func (s *Store) blockedByEarlierOutboxLease(candidate *workqueue.OutboxMessage, instanceID string, now time.Time) bool {
	for _, other := range s.outbox {
		if other.StreamID != candidate.StreamID {
			continue
		}
		if !other.CreatedAt.Before(candidate.CreatedAt) {
			continue
		}
		if other.InstanceID == nil || *other.InstanceID == instanceID {
			continue
		}
		if other.LeaseExpiry != nil && other.LeaseExpiry.After(now) {
			return true
		}
	}
	return false
}

func (s *Store) blockedByEarlierInboxLease(candidate *workqueue.InboxMessage, instanceID string, now time.Time) bool {
	for _, other := range s.inbox {
		if other.StreamID != candidate.StreamID {
			continue
		}
		if !other.CreatedAt.Before(candidate.CreatedAt) {
			continue
		}
		if other.InstanceID == nil || *other.InstanceID == instanceID {
			continue
		}
		if other.LeaseExpiry != nil && other.LeaseExpiry.After(now) {
			return true
		}
	}
	return false
}

// blockedByUnresolvedOutboxFailure implements the stream-pause half of step
// 7's ordering guarantee: a row stays unclaimable while an earlier row in
// the same stream still bears Failed and has not been resolved (Published
// or removed). Without this, step 4's lease release alone lets a later
// message publish while an earlier one in the same stream is stuck failed,
// reordering the stream instead of pausing it (spec.md §4.1 step 4, §8
// scenario 4).
func (s *Store) blockedByUnresolvedOutboxFailure(candidate *workqueue.OutboxMessage) bool {
	for _, other := range s.outbox {
		if other.StreamID != candidate.StreamID {
			continue
		}
		if !other.CreatedAt.Before(candidate.CreatedAt) {
			continue
		}
		if other.Status.Has(workqueue.Failed) && !other.Status.Has(workqueue.Published) {
			return true
		}
	}
	return false
}

func (s *Store) blockedByUnresolvedInboxFailure(candidate *workqueue.InboxMessage) bool {
	for _, other := range s.inbox {
		if other.StreamID != candidate.StreamID {
			continue
		}
		if !other.CreatedAt.Before(candidate.CreatedAt) {
			continue
		}
		if other.Status.Has(workqueue.Failed) && !other.Status.Has(workqueue.Published) {
			return true
		}
	}
	return false
}

func (s *Store) IsDuplicate(ctx context.Context, messageID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dedup[messageID]; ok {
		return true, nil
	}
	s.dedup[messageID] = time.Now()
	return false, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Healthy(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}
