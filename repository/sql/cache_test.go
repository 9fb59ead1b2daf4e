package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/FabioFlo/asd-platform-sub001/readmodel"
	"github.com/FabioFlo/asd-platform-sub001/test"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedStore(t *testing.T) (*CacheStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewCacheStore(db, true)
	s.SetLogger(&test.TestLogger{})
	return s, mock
}

func TestNewCacheStore(t *testing.T) {
	assert.Panics(t, func() { NewCacheStore(nil, true) })
}

func TestConvertToDollarPlaceholder(t *testing.T) {
	assert.Equal(t,
		"SELECT fields, last_synced_at, source FROM read_model_cache WHERE cache=$1 AND business_key=$2",
		convertToDollarPlaceholder(findCacheEntrySql))
}

func TestSaveMergesStoredFields(t *testing.T) {
	assert.Equal(t,
		"INSERT INTO read_model_cache (cache, business_key, fields, last_synced_at, source) VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (cache, business_key) DO UPDATE SET fields=read_model_cache.fields || EXCLUDED.fields, last_synced_at=EXCLUDED.last_synced_at, source=EXCLUDED.source",
		convertToDollarPlaceholder(upsertCacheEntrySql))
	assert.Equal(t,
		"UPDATE read_model_cache SET fields=fields || $1::jsonb, last_synced_at=$2, source=$3 WHERE cache=$4 AND business_key=$5",
		convertToDollarPlaceholder(updateCacheEntrySql))

	s, mock := newMockedStore(t)
	entry := &readmodel.Entry{Cache: readmodel.PersonCache, Key: uuid.New(), LastSyncedAt: time.Now().UTC(), Source: "PersonUpdated"}
	mock.ExpectExec(convertToDollarPlaceholder(updateCacheEntrySql)).
		WithArgs([]byte(`{}`), entry.LastSyncedAt, entry.Source, entry.Cache, entry.Key).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Save(context.Background(), entry, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFind(t *testing.T) {
	key := uuid.New()
	syncedAt := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	testcases := []struct {
		name             string
		mockExpectations func(sqlmock.Sqlmock)
		wantEntry        *readmodel.Entry
		wantErr          bool
	}{
		{
			name: "entry found",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(convertToDollarPlaceholder(findCacheEntrySql)).
					WithArgs(readmodel.PersonCache, key).
					WillReturnRows(sqlmock.NewRows([]string{"fields", "last_synced_at", "source"}).
						AddRow([]byte(`{"nome":"Sara","cognome":"Neri"}`), syncedAt, "PersonCreated"))
			},
			wantEntry: &readmodel.Entry{
				Cache:        readmodel.PersonCache,
				Key:          key,
				Fields:       map[string]any{"nome": "Sara", "cognome": "Neri"},
				LastSyncedAt: syncedAt,
				Source:       "PersonCreated",
			},
		},
		{
			name: "entry not found",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(convertToDollarPlaceholder(findCacheEntrySql)).
					WithArgs(readmodel.PersonCache, key).
					WillReturnRows(sqlmock.NewRows([]string{"fields", "last_synced_at", "source"}))
			},
		},
		{
			name: "query fails",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(convertToDollarPlaceholder(findCacheEntrySql)).
					WithArgs(readmodel.PersonCache, key).
					WillReturnError(errors.New("error#1"))
			},
			wantErr: true,
		},
		{
			name: "fields are not json",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(convertToDollarPlaceholder(findCacheEntrySql)).
					WithArgs(readmodel.PersonCache, key).
					WillReturnRows(sqlmock.NewRows([]string{"fields", "last_synced_at", "source"}).
						AddRow([]byte(`{`), syncedAt, "PersonCreated"))
			},
			wantErr: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockedStore(t)
			tc.mockExpectations(mock)

			e, err := s.Find(context.Background(), readmodel.PersonCache, key)

			test.AssertError(t, err, tc.wantErr)
			assert.Equal(t, tc.wantEntry, e)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSave(t *testing.T) {
	entry := &readmodel.Entry{
		Cache:        readmodel.GroupCache,
		Key:          uuid.New(),
		Fields:       map[string]any{"nome": "Under 14"},
		LastSyncedAt: time.Now().UTC(),
		Source:       "GroupCreated",
	}
	testcases := []struct {
		name             string
		created          bool
		mockExpectations func(sqlmock.Sqlmock)
		wantErr          bool
	}{
		{
			name:    "new entry is upserted",
			created: true,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(convertToDollarPlaceholder(upsertCacheEntrySql)).
					WithArgs(entry.Cache, entry.Key, []byte(`{"nome":"Under 14"}`), entry.LastSyncedAt, entry.Source).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:    "insert fails",
			created: true,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(convertToDollarPlaceholder(upsertCacheEntrySql)).
					WithArgs(test.GenerateAnyArgsSlice(5)...).
					WillReturnError(errors.New("error#1"))
			},
			wantErr: true,
		},
		{
			name: "existing entry is updated",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(convertToDollarPlaceholder(updateCacheEntrySql)).
					WithArgs([]byte(`{"nome":"Under 14"}`), entry.LastSyncedAt, entry.Source, entry.Cache, entry.Key).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "existing entry vanished",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(convertToDollarPlaceholder(updateCacheEntrySql)).
					WithArgs(test.GenerateAnyArgsSlice(5)...).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: true,
		},
		{
			name: "update fails",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(convertToDollarPlaceholder(updateCacheEntrySql)).
					WithArgs(test.GenerateAnyArgsSlice(5)...).
					WillReturnError(errors.New("error#2"))
			},
			wantErr: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMockedStore(t)
			tc.mockExpectations(mock)

			err := s.Save(context.Background(), entry, tc.created)

			test.AssertError(t, err, tc.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
