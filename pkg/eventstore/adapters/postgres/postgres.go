// Package postgres implements pkg/eventstore.Store on GORM. Sequence
// allocation is read-max-and-add under a row lock on the owning stream,
// the relational equivalent of a per-stream sequence counter.
package postgres

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/streamwork/pkg/database/sql"
	"github.com/chris-alexander-pop/streamwork/pkg/errors"
	"github.com/chris-alexander-pop/streamwork/pkg/eventstore"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type eventRow struct {
	StreamID     uuid.UUID `gorm:"column:stream_id;type:uuid;primaryKey"`
	Sequence     int64     `gorm:"column:sequence;primaryKey"`
	EventID      uuid.UUID `gorm:"column:event_id;type:uuid;index:idx_event_store_event_id"`
	EnvelopeType string    `gorm:"column:envelope_type"`
	Payload      []byte    `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (eventRow) TableName() string { return "event_store" }

// Config configures the postgres Store.
type Config struct {
	SQL sql.SQL
}

// Store implements eventstore.Store against a Postgres database via GORM.
type Store struct {
	sql sql.SQL
}

// New opens the Store and migrates the event_store table.
func New(cfg Config) (*Store, error) {
	if cfg.SQL == nil {
		return nil, eventstore.ErrAppendFailed(errors.InvalidArgument("postgres adapter requires a sql.SQL connection", nil))
	}
	if err := cfg.SQL.Get(context.Background()).AutoMigrate(&eventRow{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate event store schema")
	}
	return &Store{sql: cfg.SQL}, nil
}

func (s *Store) Append(ctx context.Context, streamID, eventID uuid.UUID, envelopeType string, payload []byte) (int64, error) {
	var seq int64
	err := s.sql.Get(ctx).Transaction(func(tx *gorm.DB) error {
		var last eventRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("stream_id = ?", streamID).
			Order("sequence DESC").
			Limit(1).
			First(&last).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			seq = 0
		case err != nil:
			return err
		default:
			seq = last.Sequence + 1
		}

		row := eventRow{
			StreamID:     streamID,
			Sequence:     seq,
			EventID:      eventID,
			EnvelopeType: envelopeType,
			Payload:      payload,
			CreatedAt:    time.Now(),
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return 0, eventstore.ErrAppendFailed(err)
	}
	return seq, nil
}

func (s *Store) Read(ctx context.Context, streamID uuid.UUID, fromSequence int64) ([]eventstore.Record, error) {
	var rows []eventRow
	if err := s.sql.Get(ctx).
		Where("stream_id = ? AND sequence >= ?", streamID, fromSequence).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, eventstore.ErrReadFailed(err)
	}
	return toRecords(rows), nil
}

func (s *Store) GetLastSequence(ctx context.Context, streamID uuid.UUID) (int64, error) {
	var row eventRow
	err := s.sql.Get(ctx).
		Where("stream_id = ?", streamID).
		Order("sequence DESC").
		Limit(1).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return -1, nil
	}
	if err != nil {
		return 0, eventstore.ErrReadFailed(err)
	}
	return row.Sequence, nil
}

func (s *Store) GetEventsBetween(ctx context.Context, streamID uuid.UUID, afterEventID *uuid.UUID, upToEventID uuid.UUID) ([]eventstore.Record, error) {
	db := s.sql.Get(ctx)

	var upTo eventRow
	if err := db.Where("stream_id = ? AND event_id = ?", streamID, upToEventID).First(&upTo).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, eventstore.ErrNotFound(upToEventID.String())
		}
		return nil, eventstore.ErrReadFailed(err)
	}

	fromSeq := int64(0)
	if afterEventID != nil {
		var after eventRow
		if err := db.Where("stream_id = ? AND event_id = ?", streamID, *afterEventID).First(&after).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return nil, eventstore.ErrReadFailed(err)
			}
		} else {
			fromSeq = after.Sequence + 1
		}
	}

	var rows []eventRow
	if err := db.
		Where("stream_id = ? AND sequence >= ? AND sequence <= ?", streamID, fromSeq, upTo.Sequence).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, eventstore.ErrReadFailed(err)
	}
	return toRecords(rows), nil
}

func toRecords(rows []eventRow) []eventstore.Record {
	out := make([]eventstore.Record, len(rows))
	for i, r := range rows {
		out[i] = eventstore.Record{
			StreamID:     r.StreamID,
			Sequence:     r.Sequence,
			EventID:      r.EventID,
			EnvelopeType: r.EnvelopeType,
			Payload:      r.Payload,
			CreatedAt:    r.CreatedAt,
		}
	}
	return out
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
