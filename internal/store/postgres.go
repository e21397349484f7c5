package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/AshwinKadaruDev/vc-audit/internal/db"
	"github.com/AshwinKadaruDev/vc-audit/internal/model"
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
// the hot read path.
var preparedStatements = map[string]string{
	"get_company":      `SELECT data FROM companies WHERE id = $1`,
	"get_comparables":  `SELECT data FROM comparable_sets WHERE sector = $1`,
	"get_index_source": `SELECT source_name, retrieved_at FROM market_indices WHERE name = $1`,
	"get_index_points": `SELECT date, value FROM market_index_points WHERE index_name = $1 ORDER BY date ASC`,
	"get_valuation":    `SELECT id, company_id, result, created_at FROM valuations WHERE id = $1`,
	"insert_valuation": `INSERT INTO valuations (id, company_id, result, created_at) VALUES ($1, $2, $3, $4)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	sector     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS comparable_sets (
	sector     TEXT PRIMARY KEY,
	as_of_date TIMESTAMPTZ NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS market_indices (
	name         TEXT PRIMARY KEY,
	source_name  TEXT NOT NULL,
	retrieved_at TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS market_index_points (
	index_name TEXT NOT NULL REFERENCES market_indices(name),
	date       TIMESTAMPTZ NOT NULL,
	value      NUMERIC NOT NULL,
	PRIMARY KEY (index_name, date)
);

CREATE TABLE IF NOT EXISTS valuations (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_sector ON companies(sector);
CREATE INDEX IF NOT EXISTS idx_index_points_name_date ON market_index_points(index_name, date);
CREATE INDEX IF NOT EXISTS idx_valuations_company ON valuations(company_id);
CREATE INDEX IF NOT EXISTS idx_valuations_created ON valuations(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
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

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (model.CompanyData, error) {
	var dataJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM companies WHERE id = $1`, id,
	).Scan(&dataJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CompanyData{}, &NotFoundError{Entity: "company", Key: id}
	}
	if err != nil {
		return model.CompanyData{}, eris.Wrapf(err, "postgres: get company %s", id)
	}

	var data model.CompanyData
	if err := json.Unmarshal(dataJSON, &data); err != nil {
		return model.CompanyData{}, eris.Wrapf(err, "postgres: unmarshal company %s", id)
	}
	return data, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.CompanySummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, sector, stage FROM companies ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.CompanySummary
	for rows.Next() {
		var c model.CompanySummary
		if err := rows.Scan(&c.ID, &c.Name, &c.Sector, &c.Stage); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company summary")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, data model.CompanyData) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal company")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO companies (id, name, sector, stage, data, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, sector = EXCLUDED.sector,
		   stage = EXCLUDED.stage, data = EXCLUDED.data,
		   updated_at = EXCLUDED.updated_at`,
		data.Company.ID, data.Company.Name, data.Company.Sector,
		string(data.Company.Stage), dataJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert company %s", data.Company.ID)
}

func (s *PostgresStore) GetComparables(ctx context.Context, sector string) (model.ComparableSet, error) {
	var dataJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM comparable_sets WHERE sector = $1`, sector,
	).Scan(&dataJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ComparableSet{}, &NotFoundError{Entity: "comparables", Key: sector}
	}
	if err != nil {
		return model.ComparableSet{}, eris.Wrapf(err, "postgres: get comparables %s", sector)
	}

	var set model.ComparableSet
	if err := json.Unmarshal(dataJSON, &set); err != nil {
		return model.ComparableSet{}, eris.Wrapf(err, "postgres: unmarshal comparables %s", sector)
	}
	return set, nil
}

func (s *PostgresStore) ListSectors(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sector FROM comparable_sets ORDER BY sector`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sectors")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sector string
		if err := rows.Scan(&sector); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sector")
		}
		out = append(out, sector)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sectors iterate")
}

func (s *PostgresStore) UpsertComparableSet(ctx context.Context, set model.ComparableSet) error {
	dataJSON, err := json.Marshal(set)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal comparable set")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO comparable_sets (sector, as_of_date, data, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (sector) DO UPDATE SET
		   as_of_date = EXCLUDED.as_of_date, data = EXCLUDED.data,
		   updated_at = EXCLUDED.updated_at`,
		set.Sector, set.AsOfDate.UTC(), dataJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert comparables %s", set.Sector)
}

func (s *PostgresStore) GetIndex(ctx context.Context, name string) ([]model.MarketIndex, error) {
	if _, err := s.GetIndexSource(ctx, name); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT date, value FROM market_index_points WHERE index_name = $1 ORDER BY date ASC`,
		name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get index %s", name)
	}
	defer rows.Close()

	var out []model.MarketIndex
	for rows.Next() {
		var date time.Time
		var value decimal.Decimal
		if err := rows.Scan(&date, &value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan index point")
		}
		out = append(out, model.MarketIndex{Name: name, Date: date, Value: value})
	}
	return out, eris.Wrap(rows.Err(), "postgres: get index iterate")
}

func (s *PostgresStore) GetIndexSource(ctx context.Context, name string) (model.DataSource, error) {
	var source model.DataSource
	err := s.pool.QueryRow(ctx,
		`SELECT source_name, retrieved_at FROM market_indices WHERE name = $1`, name,
	).Scan(&source.Name, &source.RetrievedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DataSource{}, &NotFoundError{Entity: "market index", Key: name}
	}
	if err != nil {
		return model.DataSource{}, eris.Wrapf(err, "postgres: get index source %s", name)
	}
	return source, nil
}

func (s *PostgresStore) ListIndices(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name FROM market_indices ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list indices")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan index name")
		}
		out = append(out, name)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list indices iterate")
}

func (s *PostgresStore) UpsertIndex(ctx context.Context, name string, source model.DataSource, points []model.MarketIndex) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_indices (name, source_name, retrieved_at, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET
		   source_name = EXCLUDED.source_name,
		   retrieved_at = EXCLUDED.retrieved_at,
		   updated_at = EXCLUDED.updated_at`,
		name, source.Name, source.RetrievedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert index %s", name)
	}

	rows := make([][]any, len(points))
	for i, p := range points {
		rows[i] = []any{name, p.Date.UTC(), p.Value}
	}
	_, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "market_index_points",
		Columns:      []string{"index_name", "date", "value"},
		ConflictKeys: []string{"index_name", "date"},
	}, rows)
	return eris.Wrapf(err, "postgres: upsert index points %s", name)
}

func (s *PostgresStore) SaveValuation(ctx context.Context, result model.ValuationResult) (ValuationRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return ValuationRecord{}, eris.Wrap(err, "postgres: marshal valuation")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO valuations (id, company_id, result, created_at) VALUES ($1, $2, $3, $4)`,
		id, result.CompanyID, resultJSON, now,
	)
	if err != nil {
		return ValuationRecord{}, eris.Wrapf(err, "postgres: insert valuation for %s", result.CompanyID)
	}

	return ValuationRecord{ID: id, CompanyID: result.CompanyID, CreatedAt: now, Result: result}, nil
}

func (s *PostgresStore) GetValuation(ctx context.Context, id string) (ValuationRecord, error) {
	var rec ValuationRecord
	var resultJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, result, created_at FROM valuations WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.CompanyID, &resultJSON, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ValuationRecord{}, &NotFoundError{Entity: "valuation", Key: id}
	}
	if err != nil {
		return ValuationRecord{}, eris.Wrapf(err, "postgres: get valuation %s", id)
	}
	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return ValuationRecord{}, eris.Wrapf(err, "postgres: unmarshal valuation %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListValuations(ctx context.Context, filter ValuationFilter) ([]ValuationRecord, error) {
	query := `SELECT id, company_id, result, created_at FROM valuations WHERE 1=1`
	var args []any

	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		query += ` AND company_id = $1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list valuations")
	}
	defer rows.Close()

	var out []ValuationRecord
	for rows.Next() {
		var rec ValuationRecord
		var resultJSON []byte
		if err := rows.Scan(&rec.ID, &rec.CompanyID, &resultJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan valuation")
		}
		if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal valuation %s", rec.ID)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list valuations iterate")
}
