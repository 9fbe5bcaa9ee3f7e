// Package postgres implements pkg/workqueue.Store on top of GORM, giving
// process_work_batch the same all-in-one-transaction guarantee a real
// stored procedure would, built from SELECT ... FOR UPDATE SKIP LOCKED plus
// ordinary row mutations instead of a database-native PL/pgSQL routine.
package postgres

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/database/sql"
	"github.com/chris-alexander-pop/streamwork/pkg/errors"
	"github.com/chris-alexander-pop/streamwork/pkg/partition"
	"github.com/chris-alexander-pop/streamwork/pkg/registry"
	"github.com/chris-alexander-pop/streamwork/pkg/workqueue"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config configures the postgres Store.
type Config struct {
	SQL sql.SQL
}

// Store implements workqueue.Store against a Postgres database via GORM.
type Store struct {
	sql sql.SQL
}

// New opens the Store and migrates its four tables (outbox, inbox,
// service_instances, message_deduplication).
func New(cfg Config) (*Store, error) {
	if cfg.SQL == nil {
		return nil, workqueue.ErrInvalidRequest("postgres adapter requires a sql.SQL connection")
	}

	db := cfg.SQL.Get(context.Background())
	if err := db.AutoMigrate(&outboxRow{}, &inboxRow{}, &serviceInstanceRow{}, &dedupRow{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate work queue schema")
	}

	return &Store{sql: cfg.SQL}, nil
}

func (s *Store) ProcessBatch(ctx context.Context, req workqueue.BatchRequest) (*workqueue.BatchResult, error) {
	req = req.WithDefaults()
	if req.InstanceID == "" {
		return nil, workqueue.ErrInvalidRequest("instance_id is required")
	}

	var result workqueue.BatchResult
	now := time.Now()

	err := s.sql.Get(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertInstance(tx, req, now); err != nil {
			return err
		}

		if err := applyOutboxCompletions(tx, req.OutboxCompletions, now); err != nil {
			return err
		}
		if err := applyInboxCompletions(tx, req.InboxCompletions); err != nil {
			return err
		}

		failedOutboxStreams, err := applyOutboxFailures(tx, req.OutboxFailures, req.MaxAttempts)
		if err != nil {
			return err
		}
		failedInboxStreams, err := applyInboxFailures(tx, req.InboxFailures)
		if err != nil {
			return err
		}

		if err := cascade(tx, "outbox", failedOutboxStreams); err != nil {
			return err
		}
		if err := cascade(tx, "inbox", failedInboxStreams); err != nil {
			return err
		}

		if err := insertOutboxMessages(tx, req.NewOutboxMessages, req.PartitionCount, now); err != nil {
			return err
		}
		if err := insertInboxMessages(tx, req.NewInboxMessages, req.PartitionCount, now); err != nil {
			return err
		}

		if err := renewLeases(tx, "outbox", req.RenewOutboxLeaseIDs, req.InstanceID, now, req.LeaseSeconds); err != nil {
			return err
		}
		if err := renewLeases(tx, "inbox", req.RenewInboxLeaseIDs, req.InstanceID, now, req.LeaseSeconds); err != nil {
			return err
		}

		rank, n, err := instanceRank(tx, req.InstanceID, req.ServiceName, now, req.StaleThresholdSeconds)
		if err != nil {
			return err
		}
		if n == 0 || rank < 0 {
			return nil
		}

		outboxWork, err := claimOutbox(tx, req.InstanceID, rank, n, req.BatchSize, now, req.LeaseSeconds)
		if err != nil {
			return err
		}
		inboxWork, err := claimInbox(tx, req.InstanceID, rank, n, req.BatchSize, now, req.LeaseSeconds)
		if err != nil {
			return err
		}

		result.OutboxWork = outboxWork
		result.InboxWork = inboxWork
		return nil
	})
	if err != nil {
		return nil, workqueue.ErrBatchFailed(err)
	}

	return &result, nil
}

func upsertInstance(tx *gorm.DB, req workqueue.BatchRequest, now time.Time) error {
	row := serviceInstanceRow{
		InstanceID:      req.InstanceID,
		ServiceName:     req.ServiceName,
		HostName:        req.HostName,
		ProcessID:       req.ProcessID,
		StartedAt:       now,
		LastHeartbeatAt: now,
		Metadata:        req.Metadata,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_heartbeat_at", "metadata", "host_name", "process_id"}),
	}).Create(&row).Error
}

func applyOutboxCompletions(tx *gorm.DB, completions []workqueue.Completion, now time.Time) error {
	for _, c := range completions {
		if c.Status == 0 {
			if err := tx.Model(&outboxRow{}).Where("message_id = ?", c.MessageID).
				Updates(map[string]interface{}{"instance_id": nil, "lease_expiry": nil}).Error; err != nil {
				return err
			}
			continue
		}

		var row outboxRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("message_id = ?", c.MessageID).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return err
		}

		newStatus := row.Status | int(c.Status)
		updates := map[string]interface{}{"status_flags": newStatus, "instance_id": nil, "lease_expiry": nil}
		if workqueue.StatusFlags(newStatus).Has(workqueue.Published) && row.PublishedAt == nil {
			updates["published_at"] = now
		}
		if err := tx.Model(&outboxRow{}).Where("message_id = ?", c.MessageID).Updates(updates).Error; err != nil {
			return err
		}
	}
	return nil
}

func applyInboxCompletions(tx *gorm.DB, completions []workqueue.Completion) error {
	for _, c := range completions {
		if c.Status == 0 {
			if err := tx.Model(&inboxRow{}).Where("message_id = ?", c.MessageID).
				Updates(map[string]interface{}{"instance_id": nil, "lease_expiry": nil}).Error; err != nil {
				return err
			}
			continue
		}

		var row inboxRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("message_id = ?", c.MessageID).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return err
		}

		newStatus := workqueue.StatusFlags(row.Status | int(c.Status))
		if newStatus.Has(workqueue.FullyCompleted) {
			if err := tx.Delete(&inboxRow{}, "message_id = ?", c.MessageID).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.Model(&inboxRow{}).Where("message_id = ?", c.MessageID).
			Updates(map[string]interface{}{"status_flags": int(newStatus), "instance_id": nil, "lease_expiry": nil}).Error; err != nil {
			return err
		}
	}
	return nil
}

// applyOutboxFailures applies step 3 and returns, per touched stream, the
// earliest created_at among rows newly marked Failed in this call — the
// cascade boundary for step 4.
func applyOutboxFailures(tx *gorm.DB, failures []workqueue.Failure, maxAttempts int) (map[uuid.UUID]time.Time, error) {
	streams := make(map[uuid.UUID]time.Time)
	for _, f := range failures {
		var row outboxRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("message_id = ?", f.MessageID).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, err
		}

		attempts := row.Attempts + 1
		status := workqueue.StatusFlags(row.Status) | workqueue.Failed | f.CompletedStatus
		if attempts >= maxAttempts {
			status &^= workqueue.Retry
		} else {
			status |= workqueue.Retry
		}

		errMsg := f.Error
		if err := tx.Model(&outboxRow{}).Where("message_id = ?", f.MessageID).Updates(map[string]interface{}{
			"status_flags": int(status),
			"attempts":     attempts,
			"error":        errMsg,
			"instance_id":  nil,
			"lease_expiry": nil,
		}).Error; err != nil {
			return nil, err
		}

		if existing, ok := streams[row.StreamID]; !ok || row.CreatedAt.Before(existing) {
			streams[row.StreamID] = row.CreatedAt
		}
	}
	return streams, nil
}

func applyInboxFailures(tx *gorm.DB, failures []workqueue.Failure) (map[uuid.UUID]time.Time, error) {
	streams := make(map[uuid.UUID]time.Time)
	for _, f := range failures {
		var row inboxRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("message_id = ?", f.MessageID).First(&row).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, err
		}

		attempts := row.Attempts + 1
		status := workqueue.StatusFlags(row.Status) | workqueue.Failed | f.CompletedStatus

		errMsg := f.Error
		if err := tx.Model(&inboxRow{}).Where("message_id = ?", f.MessageID).Updates(map[string]interface{}{
			"status_flags": int(status),
			"attempts":     attempts,
			"error":        errMsg,
			"instance_id":  nil,
			"lease_expiry": nil,
		}).Error; err != nil {
			return nil, err
		}

		if existing, ok := streams[row.StreamID]; !ok || row.CreatedAt.Before(existing) {
			streams[row.StreamID] = row.CreatedAt
		}
	}
	return streams, nil
}

// cascade releases (lease only) every row of table newer than the earliest
// failure in its stream that is not already Published (spec.md §9: the
// conservative reading of the cascade boundary).
func cascade(tx *gorm.DB, table string, streams map[uuid.UUID]time.Time) error {
	for streamID, failedAt := range streams {
		if err := tx.Table(table).
			Where("stream_id = ? AND created_at > ? AND (status_flags & ?) = 0", streamID, failedAt, int(workqueue.Published)).
			Updates(map[string]interface{}{"instance_id": nil, "lease_expiry": nil}).Error; err != nil {
			return err
		}
	}
	return nil
}

func insertOutboxMessages(tx *gorm.DB, msgs []workqueue.NewMessage, partitionCount int, now time.Time) error {
	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		row := outboxRow{
			MessageID:    m.MessageID,
			Destination:  m.Destination,
			EnvelopeType: m.EnvelopeType,
			Envelope:     m.Envelope,
			Metadata:     m.Metadata,
			StreamID:     m.StreamID,
			Partition:    partition.Of(m.StreamID, partitionCount),
			Status:       int(workqueue.Stored),
			CreatedAt:    createdAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func insertInboxMessages(tx *gorm.DB, msgs []workqueue.NewMessage, partitionCount int, now time.Time) error {
	for _, m := range msgs {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		row := inboxRow{
			MessageID:    m.MessageID,
			HandlerName:  m.HandlerName,
			EnvelopeType: m.EnvelopeType,
			Envelope:     m.Envelope,
			Metadata:     m.Metadata,
			StreamID:     m.StreamID,
			Partition:    partition.Of(m.StreamID, partitionCount),
			Status:       int(workqueue.Stored),
			CreatedAt:    createdAt,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func renewLeases(tx *gorm.DB, table string, ids []uuid.UUID, instanceID string, now time.Time, leaseSeconds int) error {
	if len(ids) == 0 {
		return nil
	}
	expiry := now.Add(time.Duration(leaseSeconds) * time.Second)
	return tx.Table(table).
		Where("message_id IN ? AND instance_id = ?", ids, instanceID).
		Updates(map[string]interface{}{"lease_expiry": expiry}).Error
}

func instanceRank(tx *gorm.DB, instanceID, serviceName string, now time.Time, staleThresholdSeconds int) (rank int, n int, err error) {
	var rows []serviceInstanceRow
	cutoff := now.Add(-time.Duration(staleThresholdSeconds) * time.Second)
	if err := tx.Where("service_name = ? AND last_heartbeat_at > ?", serviceName, cutoff).Find(&rows).Error; err != nil {
		return -1, 0, err
	}

	instances := make([]registry.Instance, len(rows))
	for i, r := range rows {
		instances[i] = registry.Instance{InstanceID: r.InstanceID, ServiceName: r.ServiceName, LastHeartbeatAt: r.LastHeartbeatAt}
	}
	aliveIDs := registry.AliveIDs(instances, now, time.Duration(staleThresholdSeconds)*time.Second)
	rank, n = registry.Rank(instanceID, aliveIDs)
	return rank, n, nil
}

func claimOutbox(tx *gorm.DB, instanceID string, rank, n, batchSize int, now time.Time, leaseSeconds int) ([]workqueue.OutboxMessage, error) {
	var rows []outboxRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("(instance_id IS NULL OR lease_expiry < ?) AND (status_flags & ?) = 0 AND (status_flags & ?) = 0 AND partition_number % ? = ?",
			now, int(workqueue.Published), int(workqueue.Failed), n, rank).
		Where(`NOT EXISTS (
			SELECT 1 FROM outbox o2
			WHERE o2.stream_id = outbox.stream_id
			  AND o2.created_at < outbox.created_at
			  AND o2.instance_id IS NOT NULL
			  AND o2.instance_id <> ?
			  AND o2.lease_expiry > ?
		)`, instanceID, now).
		Where(`NOT EXISTS (
			SELECT 1 FROM outbox o3
			WHERE o3.stream_id = outbox.stream_id
			  AND o3.created_at < outbox.created_at
			  AND (o3.status_flags & ?) <> 0
			  AND (o3.status_flags & ?) = 0
		)`, int(workqueue.Failed), int(workqueue.Published)).
		Order("created_at ASC, message_id ASC").
		Limit(batchSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.MessageID
	}
	expiry := now.Add(time.Duration(leaseSeconds) * time.Second)
	if err := tx.Model(&outboxRow{}).Where("message_id IN ?", ids).
		Updates(map[string]interface{}{"instance_id": instanceID, "lease_expiry": expiry}).Error; err != nil {
		return nil, err
	}

	out := make([]workqueue.OutboxMessage, len(rows))
	for i, r := range rows {
		owner := instanceID
		out[i] = workqueue.OutboxMessage{
			MessageID:    r.MessageID,
			Destination:  r.Destination,
			EnvelopeType: r.EnvelopeType,
			Envelope:     r.Envelope,
			Metadata:     r.Metadata,
			StreamID:     r.StreamID,
			Partition:    r.Partition,
			Status:       workqueue.StatusFlags(r.Status),
			Attempts:     r.Attempts,
			InstanceID:   &owner,
			LeaseExpiry:  &expiry,
			CreatedAt:    r.CreatedAt,
			PublishedAt:  r.PublishedAt,
			ProcessedAt:  r.ProcessedAt,
			Error:        r.Error,
		}
	}
	return out, nil
}

func claimInbox(tx *gorm.DB, instanceID string, rank, n, batchSize int, now time.Time, leaseSeconds int) ([]workqueue.InboxMessage, error) {
	var rows []inboxRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("(instance_id IS NULL OR lease_expiry < ?) AND (status_flags & ?) = 0 AND (status_flags & ?) = 0 AND partition_number % ? = ?",
			now, int(workqueue.Published), int(workqueue.Failed), n, rank).
		Where(`NOT EXISTS (
			SELECT 1 FROM inbox i2
			WHERE i2.stream_id = inbox.stream_id
			  AND i2.created_at < inbox.created_at
			  AND i2.instance_id IS NOT NULL
			  AND i2.instance_id <> ?
			  AND i2.lease_expiry > ?
		)`, instanceID, now).
		Where(`NOT EXISTS (
			SELECT 1 FROM inbox i3
			WHERE i3.stream_id = inbox.stream_id
			  AND i3.created_at < inbox.created_at
			  AND (i3.status_flags & ?) <> 0
			  AND (i3.status_flags & ?) = 0
		)`, int(workqueue.Failed), int(workqueue.Published)).
		Order("created_at ASC, message_id ASC").
		Limit(batchSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.MessageID
	}
	expiry := now.Add(time.Duration(leaseSeconds) * time.Second)
	if err := tx.Model(&inboxRow{}).Where("message_id IN ?", ids).
		Updates(map[string]interface{}{"instance_id": instanceID, "lease_expiry": expiry}).Error; err != nil {
		return nil, err
	}

	out := make([]workqueue.InboxMessage, len(rows))
	for i, r := range rows {
		owner := instanceID
		out[i] = workqueue.InboxMessage{
			MessageID:    r.MessageID,
			HandlerName:  r.HandlerName,
			EnvelopeType: r.EnvelopeType,
			Envelope:     r.Envelope,
			Metadata:     r.Metadata,
			StreamID:     r.StreamID,
			Partition:    r.Partition,
			Status:       workqueue.StatusFlags(r.Status),
			Attempts:     r.Attempts,
			InstanceID:   &owner,
			LeaseExpiry:  &expiry,
			CreatedAt:    r.CreatedAt,
			PublishedAt:  r.PublishedAt,
			ProcessedAt:  r.ProcessedAt,
			Error:        r.Error,
		}
	}
	return out, nil
}

func (s *Store) IsDuplicate(ctx context.Context, messageID uuid.UUID) (bool, error) {
	db := s.sql.Get(ctx)

	var existing dedupRow
	err := db.Where("message_id = ?", messageID).First(&existing).Error
	if err == nil {
		return true, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}

	row := dedupRow{MessageID: messageID, FirstSeenAt: time.Now()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) Healthy(ctx context.Context) bool {
	db := s.sql.Get(ctx)
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}
