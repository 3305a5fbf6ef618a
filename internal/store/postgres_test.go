package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadqual/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, visitor, status, profile, qualification, email, error, created_at FROM leads WHERE id = \$1`).
		WithArgs("missing-lead").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLead(context.Background(), "missing-lead")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get lead")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_RoundTrip(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	visitor, err := json.Marshal(model.Visitor{FirstName: "Jane", Company: "Acme"})
	require.NoError(t, err)
	profile, err := json.Marshal(model.ProfileRecord{DisplayName: "Jane Doe"})
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, visitor, status, profile, qualification, email, error, created_at FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "visitor", "status", "profile", "qualification", "email", "error", "created_at"}).
			AddRow("lead-1", visitor, "captured", profile, []byte(nil), []byte(nil), "", now))

	got, err := s.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.Visitor.FirstName)
	assert.Equal(t, model.LeadStatusCaptured, got.Status)
	require.NotNil(t, got.Profile)
	assert.Equal(t, "Jane Doe", got.Profile.DisplayName)
	assert.Nil(t, got.Qualification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead := &model.Lead{Visitor: model.Visitor{FirstName: "Jane", Company: "Acme"}, Status: model.LeadStatusPending}
	require.NoError(t, s.SaveLead(context.Background(), lead))
	assert.NotEmpty(t, lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedProfile_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM profile_cache`).
		WithArgs("https://example.com/none").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetCachedProfile(context.Background(), "https://example.com/none")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedProfile_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	record, err := json.Marshal(model.ProfileRecord{DisplayName: "Jane Doe", SourceURL: "https://example.com/p"})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT record FROM profile_cache`).
		WithArgs("https://example.com/p").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(record))

	got, err := s.GetCachedProfile(context.Background(), "https://example.com/p")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jane Doe", got.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO profile_cache`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.ProfileRecord{DisplayName: "Jane Doe", SourceURL: "https://example.com/p"}
	require.NoError(t, s.SaveProfile(context.Background(), rec, time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredProfiles(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM profile_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteExpiredProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	visitor, err := json.Marshal(model.Visitor{FirstName: "Jane", Company: "Acme"})
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, visitor, status, profile, qualification, email, error, created_at FROM leads WHERE true AND status = \$1`).
		WithArgs("qualified", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "visitor", "status", "profile", "qualification", "email", "error", "created_at"}).
			AddRow("lead-1", visitor, "qualified", []byte(nil), []byte(nil), []byte(nil), "", now))

	leads, err := s.ListLeads(context.Background(), LeadFilter{Status: model.LeadStatusQualified})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Acme", leads[0].Visitor.Company)
	assert.NoError(t, mock.ExpectationsWereMet())
}
