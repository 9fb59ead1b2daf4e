//go:build integration

package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/event"
	"github.com/FabioFlo/asd-platform-sub001/outbox"
	"github.com/FabioFlo/asd-platform-sub001/sweep"
	"github.com/FabioFlo/asd-platform-sub001/test"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestSweepAgainstPostgres expires a document against a real containerized
// Postgres instance and checks that its event sits in the outbox.
func TestSweepAgainstPostgres(t *testing.T) {
	ctx := context.Background()
	database, err := test.InitPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Terminate(ctx) })

	dsn, err := database.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	docID := uuid.New()
	require.NoError(t, db.Exec("INSERT INTO documents (id, person_id, asd_id, label, status, expires_at) VALUES (?, ?, ?, ?, ?, ?)",
		docID, uuid.New(), uuid.New(), "CERTIFICATO_MEDICO", "EXPIRING_SOON", now.Add(-10*24*time.Hour)).Error)

	codec, err := event.NewCodec("json")
	require.NoError(t, err)
	outboxRepo := NewOutboxRepository(test.DefaultCtxKey, db)
	records := NewDocumentRepository(test.DefaultCtxKey, db)
	sweeper := sweep.NewSweeper(sweep.KindDocument, records, outbox.New(outboxRepo, codec), sweep.Settings{BatchSize: 2})

	summary, err := sweeper.Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExpiredCount)

	summary, err = sweeper.Run(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExpiredCount)

	var status string
	require.NoError(t, db.Raw("SELECT status FROM documents WHERE id = ?", docID).Scan(&status).Error)
	assert.Equal(t, "EXPIRED", status)

	var stored []*outbox.Record
	require.NoError(t, outboxRepo.FindInBatches(ctx, 10, -1, func(batch []*outbox.Record) error {
		stored = append(stored, batch...)
		return nil
	}))
	require.Len(t, stored, 1)
	assert.Equal(t, docID.String(), stored[0].AggregateID)
	assert.Equal(t, event.TypeDocumentExpired, stored[0].EventType)

	relayID := uuid.New()
	acquired, err := outboxRepo.AcquireLock(ctx, relayID)
	require.NoError(t, err)
	assert.True(t, acquired)
	acquired, err = outboxRepo.AcquireLock(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, acquired)
	require.NoError(t, outboxRepo.DeleteInBatches(ctx, 10, []uuid.UUID{stored[0].ID}))
	require.NoError(t, outboxRepo.ReleaseLock(ctx, relayID))
	assert.ErrorIs(t, outboxRepo.ReleaseLock(ctx, relayID), ErrLockNotHeld)
}
