package gorm

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/FabioFlo/asd-platform-sub001/sweep"
	"github.com/FabioFlo/asd-platform-sub001/test"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNewRecordRepository(t *testing.T) {
	db, _ := createSqlMockDB(t)
	testcases := []struct {
		name      string
		txKey     any
		db        *gorm.DB
		table     string
		column    string
		wantPanic bool
	}{
		{"valid", test.DefaultCtxKey, db, "documents", "expires_at", false},
		{"nil txKey", nil, db, "documents", "expires_at", true},
		{"nil db", test.DefaultCtxKey, nil, "documents", "expires_at", true},
		{"invalid table", test.DefaultCtxKey, db, "documents; DROP TABLE x", "expires_at", true},
		{"invalid column", test.DefaultCtxKey, db, "payments", "Due Date", true},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.wantPanic {
				assert.Panics(t, func() { NewRecordRepository(tc.txKey, tc.db, sweep.KindDocument, tc.table, tc.column) })
			} else {
				assert.NotPanics(t, func() { NewRecordRepository(tc.txKey, tc.db, sweep.KindDocument, tc.table, tc.column) })
			}
		})
	}

	payments := NewPaymentRepository(test.DefaultCtxKey, db)
	assert.Contains(t, payments.findDueSql, "FROM payments WHERE status <> ? AND due_date <= ?")
	documents := NewDocumentRepository(test.DefaultCtxKey, db)
	assert.Contains(t, documents.updateSql, "UPDATE documents SET status=?")
}

func TestFindDue(t *testing.T) {
	threshold := time.Now().Add(30 * 24 * time.Hour)
	expiresAt := time.Now().Add(-time.Hour).UTC()
	testcases := []struct {
		name             string
		batchSize        int
		mockExpectations func(sqlmock.Sqlmock)
		fcErr            error
		wantBatches      []int
		wantErr          bool
	}{
		{
			name:      "pages until a short page",
			batchSize: 2,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				test.MockDueRecordRows(mock, expiresAt, "VALID", "EXPIRING_SOON")
				test.MockDueRecordRows(mock, expiresAt, "VALID")
			},
			wantBatches: []int{2, 1},
		},
		{
			name:      "stops on an empty page",
			batchSize: 2,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				test.MockDueRecordRows(mock, expiresAt, "VALID", "VALID")
				test.MockDueRecordRows(mock, expiresAt)
			},
			wantBatches: []int{2},
		},
		{
			name:      "nothing due",
			batchSize: 10,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				test.MockDueRecordRows(mock, expiresAt)
			},
		},
		{
			name:      "query failure",
			batchSize: 10,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, person_id, asd_id, label, status, .+ FROM .+").WithArgs(test.GenerateAnyArgsSlice(4)...).WillReturnError(errors.New("error#1"))
			},
			wantErr: true,
		},
		{
			name:      "row failure",
			batchSize: 10,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				rows := test.MockDueRecordRows(mock, expiresAt, "VALID")
				rows.RowError(0, errors.New("error#2"))
			},
			wantErr: true,
		},
		{
			name:      "batch function failure",
			batchSize: 10,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				test.MockDueRecordRows(mock, expiresAt, "VALID")
			},
			fcErr:       errors.New("error#3"),
			wantBatches: []int{1},
			wantErr:     true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := createSqlMockDB(t)
			repo := NewDocumentRepository(test.DefaultCtxKey, db)
			tc.mockExpectations(mock)

			var batches []int
			err := repo.FindDue(context.Background(), threshold, tc.batchSize, func(batch []*sweep.Record) error {
				batches = append(batches, len(batch))
				for _, rec := range batch {
					assert.Equal(t, sweep.KindDocument, rec.Kind)
					assert.NotEqual(t, uuid.Nil, rec.ID)
					assert.Equal(t, "CERTIFICATO_MEDICO", rec.Label)
					assert.True(t, rec.Status.Valid())
					assert.True(t, expiresAt.Equal(rec.ExpiresAt))
				}
				return tc.fcErr
			})
			test.AssertError(t, err, tc.wantErr)
			assert.Equal(t, tc.wantBatches, batches)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransition(t *testing.T) {
	const updateSqlRegEx string = "UPDATE documents SET status=.+ WHERE id=.+ AND status=.+"
	rec := &sweep.Record{ID: uuid.New(), Kind: sweep.KindDocument, Status: sweep.StatusExpiringSoon}
	at := time.Now().UTC()
	updateArgs := []driver.Value{"EXPIRED", at, rec.ID, "EXPIRING_SOON"}
	testcases := []struct {
		name             string
		inTx             func(ctx context.Context) error
		mockExpectations func(sqlmock.Sqlmock)
		wantErr          error
		wantAnyErr       bool
		wantInTxCalls    int
	}{
		{
			name: "transition without callback",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(updateSqlRegEx).WithArgs("EXPIRED", at, rec.ID, "EXPIRING_SOON").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "callback runs in the transaction",
			inTx: func(ctx context.Context) error {
				tx, ok := ctx.Value(test.DefaultCtxKey).(*gorm.DB)
				if !ok {
					return errors.New("no transaction in context")
				}
				return tx.Exec("INSERT INTO outbox (id) VALUES (?)", uuid.New()).Error
			},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(updateSqlRegEx).WithArgs(updateArgs...).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("INSERT INTO outbox.+").WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			wantInTxCalls: 1,
		},
		{
			name: "stale record",
			inTx: func(ctx context.Context) error { return nil },
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(updateSqlRegEx).WithArgs(updateArgs...).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantErr: sweep.ErrStaleRecord,
		},
		{
			name: "callback failure rolls back",
			inTx: func(ctx context.Context) error { return errors.New("error#4") },
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(updateSqlRegEx).WithArgs(updateArgs...).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectRollback()
			},
			wantAnyErr:    true,
			wantInTxCalls: 1,
		},
		{
			name: "update failure",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(updateSqlRegEx).WithArgs(updateArgs...).WillReturnError(errors.New("error#5"))
				mock.ExpectRollback()
			},
			wantAnyErr: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := createSqlMockDB(t)
			repo := NewDocumentRepository(test.DefaultCtxKey, db)
			tc.mockExpectations(mock)

			calls := 0
			var inTx func(context.Context) error
			if tc.inTx != nil {
				inTx = func(ctx context.Context) error {
					calls++
					return tc.inTx(ctx)
				}
			}
			err := repo.Transition(context.Background(), rec, sweep.StatusExpired, at, inTx)
			switch {
			case tc.wantErr != nil:
				assert.ErrorIs(t, err, tc.wantErr)
			case tc.wantAnyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
			}
			if tc.wantErr != nil {
				assert.Equal(t, 0, calls)
			} else {
				assert.Equal(t, tc.wantInTxCalls, calls)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
