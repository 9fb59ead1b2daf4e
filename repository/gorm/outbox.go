package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/outbox"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// The row id is the envelope's EventID, so storing the same event twice is a no-op.
	insertOutboxSql = "INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload) VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING"
	// LIMIT NULL reads the whole table. id breaks ties between events stored
	// by the same sweep transaction.
	findOutboxSql = "SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at FROM outbox ORDER BY created_at ASC, id ASC LIMIT ?"
	deleteOutboxSql = "DELETE FROM outbox WHERE id IN ?"
	// The lease is taken when it is free, expired or already ours.
	acquireLockSql = "UPDATE outbox_lock SET locked=true, locked_by=?, locked_at=?, locked_until=?, version=version+1 WHERE id=1 AND (locked=false OR locked_by=? OR locked_until<?)"
	releaseLockSql = "UPDATE outbox_lock SET locked=false, locked_by=null, locked_at=null, locked_until=null, version=version+1 WHERE id=1 AND locked=true AND locked_by=?"
)

// ErrLockNotHeld is returned by ReleaseLock when the lease was taken over by
// another relay, usually because a relay iteration outlived
// outbox.LockMaxDuration.
var ErrLockNotHeld = errors.New("outbox lock not held")

// OutboxRepository stores the events raised by sweep transitions in the
// 'outbox' table, and hands them to the relay under a lease kept in the
// single 'outbox_lock' row.
type OutboxRepository struct {
	txKey  outbox.TxKey
	db     *gorm.DB
	logger logger.Logger
	now    func() time.Time
}

var _ logger.Loggable = (*OutboxRepository)(nil)
var _ outbox.Repository = (*OutboxRepository)(nil)

func NewOutboxRepository(txKey outbox.TxKey, db *gorm.DB) *OutboxRepository {
	if txKey == nil {
		panic("txKey is mandatory")
	}
	if db == nil {
		panic("db is mandatory")
	}
	return &OutboxRepository{
		txKey:  txKey,
		db:     db,
		logger: &logger.NopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets an optional logger.
func (r *OutboxRepository) SetLogger(l logger.Logger) {
	r.logger = logger.OrNop(l)
}

// Save stores the record with the transaction found in ctx, the one that
// also holds the record's status transition.
func (r *OutboxRepository) Save(ctx context.Context, o *outbox.Record) error {
	tx, ok := ctx.Value(r.txKey).(*gorm.DB)
	if !ok {
		return errors.New("a *gorm.DB transaction was expected")
	}
	res := tx.Exec(insertOutboxSql, o.ID, o.AggregateType, o.AggregateID, o.EventType, o.Payload)
	if res.Error != nil {
		return fmt.Errorf("could not persist the outbox record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.logger.Debug(fmt.Sprintf("%s %s/%s already in the outbox", o.EventType, o.AggregateType, o.AggregateID))
	}
	return nil
}

// AcquireLock takes or renews the relay lease in a single conditional update.
// false means another relay holds an unexpired lease.
func (r *OutboxRepository) AcquireLock(ctx context.Context, relayID uuid.UUID) (bool, error) {
	now := r.now()
	res := r.db.WithContext(ctx).Exec(acquireLockSql, relayID, now, now.Add(outbox.LockMaxDuration), relayID, now)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	r.logger.Debug(fmt.Sprintf("outbox lease taken by relay %s", relayID))
	return true, nil
}

// ReleaseLock frees the lease only when relayID still holds it.
func (r *OutboxRepository) ReleaseLock(ctx context.Context, relayID uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(releaseLockSql, relayID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w by relay %s", ErrLockNotHeld, relayID)
	}
	r.logger.Debug(fmt.Sprintf("outbox lease released by relay %s", relayID))
	return nil
}

// FindInBatches reads up to limit records (-1 for all), oldest first, and
// hands them to fc batchSize at a time.
func (r *OutboxRepository) FindInBatches(ctx context.Context, batchSize int, limit int, fc func([]*outbox.Record) error) error {
	var bound any
	if limit >= 0 {
		bound = limit
	}
	rows, err := r.db.WithContext(ctx).Raw(findOutboxSql, bound).Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	batch := make([]*outbox.Record, 0, batchSize)
	for rows.Next() {
		var o outbox.Record
		if err := rows.Scan(&o.ID, &o.AggregateType, &o.AggregateID, &o.EventType, &o.Payload, &o.CreatedAt); err != nil {
			return err
		}
		batch = append(batch, &o)
		if len(batch) < batchSize {
			continue
		}
		if err := fc(batch); err != nil {
			return err
		}
		batch = make([]*outbox.Record, 0, batchSize)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return fc(batch)
}

// DeleteInBatches removes delivered records, batchSize ids per statement.
func (r *OutboxRepository) DeleteInBatches(ctx context.Context, batchSize int, ids []uuid.UUID) error {
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		if err := r.db.WithContext(ctx).Exec(deleteOutboxSql, ids[start:end]).Error; err != nil {
			return fmt.Errorf("deleting delivered outbox records: %w", err)
		}
	}
	return nil
}
