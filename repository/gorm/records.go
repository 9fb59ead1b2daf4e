package gorm

import (
	"context"
	"fmt"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/FabioFlo/asd-platform-sub001/sweep"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecordRepository reads and advances the time-sensitive records of one
// table. Documents keep their expiry in 'expires_at', fees their due date in
// 'due_date'.
type RecordRepository struct {
	kind       sweep.Kind
	txKey      any
	db         *gorm.DB
	logger     logger.Logger
	findDueSql string
	updateSql  string
}

var _ logger.Loggable = (*RecordRepository)(nil)
var _ sweep.Repository = (*RecordRepository)(nil)

// NewRecordRepository builds a repository over table, whose expiry is held in
// dateColumn. The transaction used by Transition is handed to its callback
// under txKey.
func NewRecordRepository(txKey any, db *gorm.DB, kind sweep.Kind, table, dateColumn string) *RecordRepository {
	if txKey == nil {
		panic("txKey is mandatory")
	}
	if db == nil {
		panic("db is mandatory")
	}
	if !identifier.MatchString(table) || !identifier.MatchString(dateColumn) {
		panic(fmt.Sprintf("invalid table '%s' or column '%s'", table, dateColumn))
	}
	return &RecordRepository{
		kind:   kind,
		txKey:  txKey,
		db:     db,
		logger: &logger.NopLogger{},
		findDueSql: fmt.Sprintf("SELECT id, person_id, asd_id, label, status, %s FROM %s WHERE status <> ? AND %s <= ? AND id > ? ORDER BY id ASC LIMIT ?",
			dateColumn, table, dateColumn),
		updateSql: fmt.Sprintf("UPDATE %s SET status=?, updated_at=? WHERE id=? AND status=?", table),
	}
}

// NewDocumentRepository reads the 'documents' table.
func NewDocumentRepository(txKey any, db *gorm.DB) *RecordRepository {
	return NewRecordRepository(txKey, db, sweep.KindDocument, "documents", "expires_at")
}

// NewPaymentRepository reads the 'payments' table.
func NewPaymentRepository(txKey any, db *gorm.DB) *RecordRepository {
	return NewRecordRepository(txKey, db, sweep.KindPayment, "payments", "due_date")
}

// Kind reports which records the repository reads.
func (r *RecordRepository) Kind() sweep.Kind {
	return r.kind
}

// SetLogger sets an optional logger.
func (r *RecordRepository) SetLogger(l logger.Logger) {
	r.logger = logger.OrNop(l)
}

// FindDue pages through the non expired records due by threshold using the
// id as cursor, so that no connection is held while fc runs.
func (r *RecordRepository) FindDue(ctx context.Context, threshold time.Time, batchSize int, fc func([]*sweep.Record) error) error {
	cursor := uuid.Nil
	for {
		batch, err := r.findPage(ctx, threshold, cursor, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fc(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		cursor = batch[len(batch)-1].ID
	}
}

func (r *RecordRepository) findPage(ctx context.Context, threshold time.Time, after uuid.UUID, limit int) ([]*sweep.Record, error) {
	rows, err := r.db.WithContext(ctx).Raw(r.findDueSql, string(sweep.StatusExpired), threshold, after, limit).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []*sweep.Record
	for rows.Next() {
		rec := sweep.Record{Kind: r.kind}
		var status string
		if err := rows.Scan(&rec.ID, &rec.PersonID, &rec.AsdID, &rec.Label, &status, &rec.ExpiresAt); err != nil {
			return nil, err
		}
		rec.Status = sweep.Status(status)
		page = append(page, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

// Transition updates the record status within a transaction, conditionally on
// the status it was read with, and runs inTx in that same transaction.
func (r *RecordRepository) Transition(ctx context.Context, rec *sweep.Record, status sweep.Status, at time.Time, inTx func(ctx context.Context) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(r.updateSql, string(status), at, rec.ID, string(rec.Status))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return sweep.ErrStaleRecord
		}
		r.logger.Debug(fmt.Sprintf("record %s moved to %s", rec, status))
		if inTx == nil {
			return nil
		}
		return inTx(context.WithValue(ctx, r.txKey, tx))
	})
}
