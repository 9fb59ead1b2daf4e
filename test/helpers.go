package test

import (
	"context"
	"database/sql/driver"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/integralist/go-findroot/find"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var DefaultCtxKey any = "myKey"

func AssertError(t *testing.T, err error, expectErr bool) {
	if expectErr {
		assert.Error(t, err)
	} else {
		assert.NoError(t, err)
	}
}

// InitPostgresContainer initializes a local Postgres instance using Testcontainers
// with the platform schema applied.
func InitPostgresContainer(ctx context.Context) (*postgres.PostgresContainer, error) {
	root, err := find.Repo()
	if err != nil {
		return nil, err
	}
	return postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:15.2-alpine"),
		postgres.WithInitScripts(
			filepath.Join(root.Path, "sql/postgres/000001_platform.up.sql"),
		),
		postgres.WithDatabase("dbname"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(5*time.Second)),
	)
}

func GenerateAnyArgsSlice(n int) []driver.Value {
	var result []driver.Value = make([]driver.Value, n)
	for i := 0; i < n; i++ {
		result[i] = sqlmock.AnyArg()
	}
	return result
}

func MockOutboxRows(mock sqlmock.Sqlmock, n int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload", "created_at"})
	for i := 0; i < n; i++ {
		rows.AddRow(uuid.New(), "Document", uuid.NewString(), "DocumentExpired", []byte("payload"), time.Now())
	}
	mock.ExpectQuery("SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at FROM outbox.+").WithArgs(sqlmock.AnyArg()).WillReturnRows(rows)
	return rows
}

// MockDueRecordRows expects the due-records query and answers with one row
// per status, all expiring at expiresAt.
func MockDueRecordRows(mock sqlmock.Sqlmock, expiresAt time.Time, statuses ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "person_id", "asd_id", "label", "status", "expires_at"})
	for _, s := range statuses {
		rows.AddRow(uuid.New(), uuid.New(), uuid.New(), "CERTIFICATO_MEDICO", s, expiresAt)
	}
	mock.ExpectQuery("SELECT id, person_id, asd_id, label, status, .+ FROM .+").WithArgs(GenerateAnyArgsSlice(4)...).WillReturnRows(rows)
	return rows
}
