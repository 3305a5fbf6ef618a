package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadqual/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id            TEXT PRIMARY KEY,
	visitor       TEXT NOT NULL,
	company       TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT 'pending',
	profile       TEXT,
	qualification TEXT,
	email         TEXT,
	error         TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS profile_cache (
	id          TEXT PRIMARY KEY,
	source_url  TEXT NOT NULL,
	record      TEXT NOT NULL,
	captured_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_company ON leads(company);
CREATE INDEX IF NOT EXISTS idx_profile_cache_source_url ON profile_cache(source_url);
CREATE INDEX IF NOT EXISTS idx_profile_cache_expires_at ON profile_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	visitorJSON, err := json.Marshal(lead.Visitor)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal visitor")
	}
	profileJSON, err := marshalNullable(lead.Profile)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile")
	}
	qualJSON, err := marshalNullable(lead.Qualification)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal qualification")
	}
	emailJSON, err := marshalNullable(lead.Email)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal email")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, visitor, company, status, profile, qualification, email, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   visitor = excluded.visitor, company = excluded.company, status = excluded.status,
		   profile = excluded.profile, qualification = excluded.qualification,
		   email = excluded.email, error = excluded.error, updated_at = excluded.updated_at`,
		lead.ID, string(visitorJSON), lead.Visitor.Company, string(lead.Status),
		profileJSON, qualJSON, emailJSON, lead.Error, lead.CreatedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save lead %s", lead.ID)
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, visitor, status, profile, qualification, email, error, created_at FROM leads WHERE id = ?`,
		id,
	)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT id, visitor, status, profile, qualification, email, error, created_at FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Company != "" {
		query += ` AND company = ? COLLATE NOCASE`
		args = append(args, filter.Company)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, rec *model.ProfileRecord, ttl time.Duration) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profile_cache (id, source_url, record, captured_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		id, rec.SourceURL, string(recordJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: save profile")
}

func (s *SQLiteStore) GetCachedProfile(ctx context.Context, sourceURL string) (*model.ProfileRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM profile_cache
		 WHERE source_url = ? AND expires_at > datetime('now')
		 ORDER BY captured_at DESC LIMIT 1`,
		sourceURL,
	)

	var recordJSON string
	err := row.Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached profile")
	}

	var rec model.ProfileRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached profile")
	}
	return &rec, nil
}

func (s *SQLiteStore) DeleteExpiredProfiles(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM profile_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired profiles")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func marshalNullable(v any) (any, error) {
	switch val := v.(type) {
	case *model.ProfileRecord:
		if val == nil {
			return nil, nil
		}
	case *model.Qualification:
		if val == nil {
			return nil, nil
		}
	case *model.OutreachEmail:
		if val == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var visitorJSON string
	var profileJSON, qualJSON, emailJSON sql.NullString

	err := row.Scan(&l.ID, &visitorJSON, &l.Status, &profileJSON, &qualJSON, &emailJSON, &l.Error, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("lead not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}

	if err := json.Unmarshal([]byte(visitorJSON), &l.Visitor); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal visitor")
	}
	if profileJSON.Valid {
		l.Profile = &model.ProfileRecord{}
		if err := json.Unmarshal([]byte(profileJSON.String), l.Profile); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal profile")
		}
	}
	if qualJSON.Valid {
		l.Qualification = &model.Qualification{}
		if err := json.Unmarshal([]byte(qualJSON.String), l.Qualification); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal qualification")
		}
	}
	if emailJSON.Valid {
		l.Email = &model.OutreachEmail{}
		if err := json.Unmarshal([]byte(emailJSON.String), l.Email); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal email")
		}
	}
	return &l, nil
}
