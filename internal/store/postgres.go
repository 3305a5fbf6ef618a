package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadqual/internal/db"
	"github.com/sells-group/leadqual/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_lead":                `SELECT id, visitor, status, profile, qualification, email, error, created_at FROM leads WHERE id = $1`,
	"get_cached_profile":      `SELECT record FROM profile_cache WHERE source_url = $1 AND expires_at > now() ORDER BY captured_at DESC LIMIT 1`,
	"save_profile":            `INSERT INTO profile_cache (id, source_url, record, captured_at, expires_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (source_url) DO UPDATE SET record = $3, captured_at = $4, expires_at = $5`,
	"delete_expired_profiles": `DELETE FROM profile_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	visitor       JSONB NOT NULL,
	company       TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	profile       JSONB,
	qualification JSONB,
	email         JSONB,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profile_cache (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_url  TEXT NOT NULL UNIQUE,
	record      JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_company ON leads(lower(company));
CREATE INDEX IF NOT EXISTS idx_profile_cache_source_url ON profile_cache(source_url);
CREATE INDEX IF NOT EXISTS idx_profile_cache_expires_at ON profile_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	visitorJSON, err := json.Marshal(lead.Visitor)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal visitor")
	}
	profileJSON, err := marshalNullable(lead.Profile)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profile")
	}
	qualJSON, err := marshalNullable(lead.Qualification)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal qualification")
	}
	emailJSON, err := marshalNullable(lead.Email)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal email")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, visitor, company, status, profile, qualification, email, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   visitor = $2, company = $3, status = $4, profile = $5,
		   qualification = $6, email = $7, error = $8, updated_at = $10`,
		lead.ID, visitorJSON, lead.Visitor.Company, string(lead.Status),
		profileJSON, qualJSON, emailJSON, lead.Error, lead.CreatedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save lead %s", lead.ID)
}

// BulkSaveLeads upserts a batch of leads in one round trip. Used by the
// batch driver when importing a visitor CSV.
func (s *PostgresStore) BulkSaveLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for i := range leads {
		l := &leads[i]
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		visitorJSON, err := json.Marshal(l.Visitor)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal visitor")
		}
		rows = append(rows, []any{
			l.ID, visitorJSON, l.Visitor.Company, string(l.Status), l.Error, l.CreatedAt, now,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      []string{"id", "visitor", "company", "status", "error", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows)
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, visitor, status, profile, qualification, email, error, created_at FROM leads WHERE id = $1`,
		id,
	)
	l, err := scanLeadPg(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, visitor, status, profile, qualification, email, error, created_at FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Company != "" {
		query += fmt.Sprintf(` AND lower(company) = lower($%d)`, argIdx)
		args = append(args, filter.Company)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLeadPg(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) SaveProfile(ctx context.Context, rec *model.ProfileRecord, ttl time.Duration) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profile record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO profile_cache (id, source_url, record, captured_at, expires_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source_url) DO UPDATE SET record = $3, captured_at = $4, expires_at = $5`,
		id, rec.SourceURL, recordJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: save profile")
}

func (s *PostgresStore) GetCachedProfile(ctx context.Context, sourceURL string) (*model.ProfileRecord, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM profile_cache
		 WHERE source_url = $1 AND expires_at > now()
		 ORDER BY captured_at DESC LIMIT 1`,
		sourceURL,
	).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get cached profile")
	}

	var rec model.ProfileRecord
	if err := json.Unmarshal(recordJSON, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached profile")
	}
	return &rec, nil
}

func (s *PostgresStore) DeleteExpiredProfiles(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM profile_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired profiles")
	}
	return int(tag.RowsAffected()), nil
}

func scanLeadPg(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var visitorJSON []byte
	var profileJSON, qualJSON, emailJSON []byte

	if err := row.Scan(&l.ID, &visitorJSON, &l.Status, &profileJSON, &qualJSON, &emailJSON, &l.Error, &l.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(visitorJSON, &l.Visitor); err != nil {
		return nil, eris.Wrap(err, "unmarshal visitor")
	}
	if len(profileJSON) > 0 {
		l.Profile = &model.ProfileRecord{}
		if err := json.Unmarshal(profileJSON, l.Profile); err != nil {
			return nil, eris.Wrap(err, "unmarshal profile")
		}
	}
	if len(qualJSON) > 0 {
		l.Qualification = &model.Qualification{}
		if err := json.Unmarshal(qualJSON, l.Qualification); err != nil {
			return nil, eris.Wrap(err, "unmarshal qualification")
		}
	}
	if len(emailJSON) > 0 {
		l.Email = &model.OutreachEmail{}
		if err := json.Unmarshal(emailJSON, l.Email); err != nil {
			return nil, eris.Wrap(err, "unmarshal email")
		}
	}
	return &l, nil
}
