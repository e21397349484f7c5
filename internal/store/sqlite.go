package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/AshwinKadaruDev/vc-audit/internal/model"
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
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Index point values are stored as TEXT so the decimal round-trips exactly.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	sector     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS comparable_sets (
	sector     TEXT PRIMARY KEY,
	as_of_date DATETIME NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS market_indices (
	name         TEXT PRIMARY KEY,
	source_name  TEXT NOT NULL,
	retrieved_at DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS market_index_points (
	index_name TEXT NOT NULL REFERENCES market_indices(name),
	date       DATETIME NOT NULL,
	value      TEXT NOT NULL,
	PRIMARY KEY (index_name, date)
);

CREATE TABLE IF NOT EXISTS valuations (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_companies_sector ON companies(sector);
CREATE INDEX IF NOT EXISTS idx_index_points_name_date ON market_index_points(index_name, date);
CREATE INDEX IF NOT EXISTS idx_valuations_company ON valuations(company_id);
CREATE INDEX IF NOT EXISTS idx_valuations_created ON valuations(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (model.CompanyData, error) {
	var dataJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM companies WHERE id = ?`, id,
	).Scan(&dataJSON)
	if err == sql.ErrNoRows {
		return model.CompanyData{}, &NotFoundError{Entity: "company", Key: id}
	}
	if err != nil {
		return model.CompanyData{}, eris.Wrapf(err, "sqlite: get company %s", id)
	}

	var data model.CompanyData
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return model.CompanyData{}, eris.Wrapf(err, "sqlite: unmarshal company %s", id)
	}
	return data, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.CompanySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, sector, stage FROM companies ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var out []model.CompanySummary
	for rows.Next() {
		var c model.CompanySummary
		if err := rows.Scan(&c.ID, &c.Name, &c.Sector, &c.Stage); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company summary")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, data model.CompanyData) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal company")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, sector, stage, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, sector = excluded.sector,
		   stage = excluded.stage, data = excluded.data,
		   updated_at = excluded.updated_at`,
		data.Company.ID, data.Company.Name, data.Company.Sector,
		string(data.Company.Stage), string(dataJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert company %s", data.Company.ID)
}

func (s *SQLiteStore) GetComparables(ctx context.Context, sector string) (model.ComparableSet, error) {
	var dataJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM comparable_sets WHERE sector = ?`, sector,
	).Scan(&dataJSON)
	if err == sql.ErrNoRows {
		return model.ComparableSet{}, &NotFoundError{Entity: "comparables", Key: sector}
	}
	if err != nil {
		return model.ComparableSet{}, eris.Wrapf(err, "sqlite: get comparables %s", sector)
	}

	var set model.ComparableSet
	if err := json.Unmarshal([]byte(dataJSON), &set); err != nil {
		return model.ComparableSet{}, eris.Wrapf(err, "sqlite: unmarshal comparables %s", sector)
	}
	return set, nil
}

func (s *SQLiteStore) ListSectors(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sector FROM comparable_sets ORDER BY sector`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sectors")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sector string
		if err := rows.Scan(&sector); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sector")
		}
		out = append(out, sector)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sectors iterate")
}

func (s *SQLiteStore) UpsertComparableSet(ctx context.Context, set model.ComparableSet) error {
	dataJSON, err := json.Marshal(set)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal comparable set")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comparable_sets (sector, as_of_date, data, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (sector) DO UPDATE SET
		   as_of_date = excluded.as_of_date, data = excluded.data,
		   updated_at = excluded.updated_at`,
		set.Sector, set.AsOfDate.UTC(), string(dataJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert comparables %s", set.Sector)
}

func (s *SQLiteStore) GetIndex(ctx context.Context, name string) ([]model.MarketIndex, error) {
	if _, err := s.GetIndexSource(ctx, name); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, value FROM market_index_points
		 WHERE index_name = ? ORDER BY date ASC`,
		name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get index %s", name)
	}
	defer rows.Close()

	var out []model.MarketIndex
	for rows.Next() {
		var date time.Time
		var value string
		if err := rows.Scan(&date, &value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan index point")
		}
		v, err := decimal.NewFromString(value)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse index value %q", value)
		}
		out = append(out, model.MarketIndex{Name: name, Date: date, Value: v})
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get index iterate")
}

func (s *SQLiteStore) GetIndexSource(ctx context.Context, name string) (model.DataSource, error) {
	var source model.DataSource
	err := s.db.QueryRowContext(ctx,
		`SELECT source_name, retrieved_at FROM market_indices WHERE name = ?`, name,
	).Scan(&source.Name, &source.RetrievedAt)
	if err == sql.ErrNoRows {
		return model.DataSource{}, &NotFoundError{Entity: "market index", Key: name}
	}
	if err != nil {
		return model.DataSource{}, eris.Wrapf(err, "sqlite: get index source %s", name)
	}
	return source, nil
}

func (s *SQLiteStore) ListIndices(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM market_indices ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list indices")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan index name")
		}
		out = append(out, name)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list indices iterate")
}

func (s *SQLiteStore) UpsertIndex(ctx context.Context, name string, source model.DataSource, points []model.MarketIndex) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert index")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO market_indices (name, source_name, retrieved_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
		   source_name = excluded.source_name,
		   retrieved_at = excluded.retrieved_at,
		   updated_at = excluded.updated_at`,
		name, source.Name, source.RetrievedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert index %s", name)
	}

	for _, p := range points {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO market_index_points (index_name, date, value)
			 VALUES (?, ?, ?)
			 ON CONFLICT (index_name, date) DO UPDATE SET value = excluded.value`,
			name, p.Date.UTC(), p.Value.String(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert index point %s %s", name, p.Date.Format("2006-01-02"))
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit upsert index")
}

func (s *SQLiteStore) SaveValuation(ctx context.Context, result model.ValuationResult) (ValuationRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return ValuationRecord{}, eris.Wrap(err, "sqlite: marshal valuation")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO valuations (id, company_id, result, created_at) VALUES (?, ?, ?, ?)`,
		id, result.CompanyID, string(resultJSON), now,
	)
	if err != nil {
		return ValuationRecord{}, eris.Wrapf(err, "sqlite: insert valuation for %s", result.CompanyID)
	}

	return ValuationRecord{ID: id, CompanyID: result.CompanyID, CreatedAt: now, Result: result}, nil
}

func (s *SQLiteStore) GetValuation(ctx context.Context, id string) (ValuationRecord, error) {
	var rec ValuationRecord
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, result, created_at FROM valuations WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.CompanyID, &resultJSON, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return ValuationRecord{}, &NotFoundError{Entity: "valuation", Key: id}
	}
	if err != nil {
		return ValuationRecord{}, eris.Wrapf(err, "sqlite: get valuation %s", id)
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
		return ValuationRecord{}, eris.Wrapf(err, "sqlite: unmarshal valuation %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListValuations(ctx context.Context, filter ValuationFilter) ([]ValuationRecord, error) {
	query := `SELECT id, company_id, result, created_at FROM valuations WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		query += ` AND company_id = ?`
		args = append(args, filter.CompanyID)
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
		return nil, eris.Wrap(err, "sqlite: list valuations")
	}
	defer rows.Close()

	var out []ValuationRecord
	for rows.Next() {
		var rec ValuationRecord
		var resultJSON string
		if err := rows.Scan(&rec.ID, &rec.CompanyID, &resultJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan valuation")
		}
		if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal valuation %s", rec.ID)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list valuations iterate")
}
