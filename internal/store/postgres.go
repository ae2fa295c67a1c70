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

	"github.com/sells-group/dispatch-cli/internal/db"
	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// PostgresStore implements Store using pgxpool, for deployments where several
// dispatchers share one geocode cache and ingest history.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot cache paths.
var preparedStatements = map[string]string{
	"get_address":  `SELECT lat, lon, matched FROM geocode_cache WHERE address_key = $1`,
	"put_address":  `INSERT INTO geocode_cache (address_key, lat, lon, matched) VALUES ($1, $2, $3, $4) ON CONFLICT (address_key) DO UPDATE SET lat = $2, lon = $3, matched = $4`,
	"get_distance": `SELECT miles FROM distance_cache WHERE leg_key = $1`,
	"put_distance": `INSERT INTO distance_cache (leg_key, miles) VALUES ($1, $2) ON CONFLICT (leg_key) DO UPDATE SET miles = $2`,
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

// NewPostgresWithPool wraps an existing pool. Tests hand in a pgxmock pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ingests (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_file TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id        TEXT NOT NULL,
	ingest_id TEXT NOT NULL REFERENCES ingests(id),
	seq       INTEGER NOT NULL,
	data      JSONB NOT NULL,
	PRIMARY KEY (ingest_id, id)
);

CREATE TABLE IF NOT EXISTS invoices (
	id         TEXT PRIMARY KEY,
	ingest_id  TEXT NOT NULL REFERENCES ingests(id),
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_key TEXT PRIMARY KEY,
	lat         DOUBLE PRECISION NOT NULL,
	lon         DOUBLE PRECISION NOT NULL,
	matched     BOOLEAN NOT NULL,
	cached_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS distance_cache (
	leg_key   TEXT PRIMARY KEY,
	miles     DOUBLE PRECISION NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ingests_status ON ingests(status);
CREATE INDEX IF NOT EXISTS idx_orders_ingest ON orders(ingest_id, seq);
CREATE INDEX IF NOT EXISTS idx_invoices_ingest ON invoices(ingest_id);
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

// geocode cache

func (s *PostgresStore) GetAddress(ctx context.Context, key string) (*geocode.CachedAddress, error) {
	var a geocode.CachedAddress
	err := s.pool.QueryRow(ctx,
		`SELECT lat, lon, matched FROM geocode_cache WHERE address_key = $1`,
		key,
	).Scan(&a.Lat, &a.Lon, &a.Matched)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get address")
	}
	return &a, nil
}

func (s *PostgresStore) PutAddress(ctx context.Context, key string, addr geocode.CachedAddress) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geocode_cache (address_key, lat, lon, matched) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (address_key) DO UPDATE SET lat = $2, lon = $3, matched = $4`,
		key, addr.Lat, addr.Lon, addr.Matched,
	)
	return eris.Wrap(err, "postgres: put address")
}

func (s *PostgresStore) GetDistance(ctx context.Context, key string) (float64, bool, error) {
	var miles float64
	err := s.pool.QueryRow(ctx,
		`SELECT miles FROM distance_cache WHERE leg_key = $1`,
		key,
	).Scan(&miles)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, eris.Wrap(err, "postgres: get distance")
	}
	return miles, true, nil
}

func (s *PostgresStore) PutDistance(ctx context.Context, key string, miles float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO distance_cache (leg_key, miles) VALUES ($1, $2)
		 ON CONFLICT (leg_key) DO UPDATE SET miles = $2`,
		key, miles,
	)
	return eris.Wrap(err, "postgres: put distance")
}

// ingest runs

func (s *PostgresStore) CreateIngest(ctx context.Context, sourceFile string) (*model.IngestRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingests (id, source_file, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, sourceFile, string(model.IngestStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert ingest")
	}

	return &model.IngestRun{
		ID:         id,
		SourceFile: sourceFile,
		Status:     model.IngestStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *PostgresStore) CompleteIngest(ctx context.Context, id string, status model.IngestStatus, stats *model.IngestStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ingests SET status = $1, stats = $2, updated_at = $3 WHERE id = $4`,
		string(status), statsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete ingest %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ingest not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetIngest(ctx context.Context, id string) (*model.IngestRun, error) {
	var r model.IngestRun
	var statsNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, source_file, status, stats, created_at, updated_at FROM ingests WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.SourceFile, &r.Status, &statsNull, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get ingest %s", id)
	}

	if statsNull != nil && string(*statsNull) != "null" {
		r.Stats = &model.IngestStats{}
		if err := json.Unmarshal(*statsNull, r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListIngests(ctx context.Context, filter IngestFilter) ([]model.IngestRun, error) {
	query := `SELECT id, source_file, status, stats, created_at, updated_at FROM ingests WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.CreatedAfter.IsZero() {
		query += fmt.Sprintf(` AND created_at > $%d`, argIdx)
		args = append(args, filter.CreatedAfter.UTC())
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
		return nil, eris.Wrap(err, "postgres: list ingests")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var r model.IngestRun
		var statsNull *[]byte

		if err := rows.Scan(&r.ID, &r.SourceFile, &r.Status, &statsNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ingest")
		}
		if statsNull != nil && string(*statsNull) != "null" {
			r.Stats = &model.IngestStats{}
			if err := json.Unmarshal(*statsNull, r.Stats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal stats")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list ingests iterate")
}

// orders

// SaveOrders persists the ingest's order set. A first save goes straight
// through the COPY protocol; re-running an ingest over the same file upserts
// so rows are replaced instead of duplicated.
func (s *PostgresStore) SaveOrders(ctx context.Context, ingestID string, orders []model.DeliveryOrder) error {
	rows := make([][]any, 0, len(orders))
	for i, o := range orders {
		data, err := json.Marshal(o)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal order %s", o.ID)
		}
		rows = append(rows, []any{o.ID, ingestID, i, data})
	}

	var existing int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE ingest_id = $1`, ingestID).Scan(&existing); err != nil {
		return eris.Wrap(err, "postgres: count orders")
	}
	if existing == 0 {
		_, err := db.CopyFrom(ctx, s.pool, "orders",
			[]string{"id", "ingest_id", "seq", "data"}, rows)
		return eris.Wrap(err, "postgres: copy orders")
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "orders",
		Columns:      []string{"id", "ingest_id", "seq", "data"},
		ConflictKeys: []string{"ingest_id", "id"},
	}, rows)
	return eris.Wrap(err, "postgres: save orders")
}

func (s *PostgresStore) GetOrders(ctx context.Context, ingestID string) ([]model.DeliveryOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM orders WHERE ingest_id = $1 ORDER BY seq`, ingestID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get orders")
	}
	defer rows.Close()

	var orders []model.DeliveryOrder
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order")
		}
		var o model.DeliveryOrder
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal order")
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "postgres: get orders iterate")
}

// invoices

func (s *PostgresStore) SaveInvoice(ctx context.Context, ingestID string, inv *model.Invoice) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal invoice")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO invoices (id, ingest_id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data = $3`,
		inv.ID, ingestID, data,
	)
	return eris.Wrap(err, "postgres: save invoice")
}

func (s *PostgresStore) GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM invoices WHERE id = $1`, invoiceID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("invoice not found: %s", invoiceID)
		}
		return nil, eris.Wrap(err, "postgres: get invoice")
	}

	var inv model.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal invoice")
	}
	return &inv, nil
}
