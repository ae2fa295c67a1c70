package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the default
// backend; a single local file covers both the geocode cache and ingest
// history.
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
CREATE TABLE IF NOT EXISTS ingests (
	id          TEXT PRIMARY KEY,
	source_file TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	stats       TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS orders (
	id        TEXT NOT NULL,
	ingest_id TEXT NOT NULL REFERENCES ingests(id),
	seq       INTEGER NOT NULL,
	data      TEXT NOT NULL,
	PRIMARY KEY (ingest_id, id)
);

CREATE TABLE IF NOT EXISTS invoices (
	id        TEXT PRIMARY KEY,
	ingest_id TEXT NOT NULL REFERENCES ingests(id),
	data      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_key TEXT PRIMARY KEY,
	lat         REAL NOT NULL,
	lon         REAL NOT NULL,
	matched     INTEGER NOT NULL,
	cached_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS distance_cache (
	leg_key   TEXT PRIMARY KEY,
	miles     REAL NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ingests_status ON ingests(status);
CREATE INDEX IF NOT EXISTS idx_orders_ingest ON orders(ingest_id, seq);
CREATE INDEX IF NOT EXISTS idx_invoices_ingest ON invoices(ingest_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// geocode cache

func (s *SQLiteStore) GetAddress(ctx context.Context, key string) (*geocode.CachedAddress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lat, lon, matched FROM geocode_cache WHERE address_key = ?`, key)

	var a geocode.CachedAddress
	var matched int
	err := row.Scan(&a.Lat, &a.Lon, &matched)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get address")
	}
	a.Matched = matched != 0
	return &a, nil
}

func (s *SQLiteStore) PutAddress(ctx context.Context, key string, addr geocode.CachedAddress) error {
	matched := 0
	if addr.Matched {
		matched = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (address_key, lat, lon, matched) VALUES (?, ?, ?, ?)
		 ON CONFLICT (address_key) DO UPDATE SET lat = excluded.lat, lon = excluded.lon, matched = excluded.matched`,
		key, addr.Lat, addr.Lon, matched,
	)
	return eris.Wrap(err, "sqlite: put address")
}

func (s *SQLiteStore) GetDistance(ctx context.Context, key string) (float64, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT miles FROM distance_cache WHERE leg_key = ?`, key)

	var miles float64
	err := row.Scan(&miles)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: get distance")
	}
	return miles, true, nil
}

func (s *SQLiteStore) PutDistance(ctx context.Context, key string, miles float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO distance_cache (leg_key, miles) VALUES (?, ?)
		 ON CONFLICT (leg_key) DO UPDATE SET miles = excluded.miles`,
		key, miles,
	)
	return eris.Wrap(err, "sqlite: put distance")
}

// ingest runs

func (s *SQLiteStore) CreateIngest(ctx context.Context, sourceFile string) (*model.IngestRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingests (id, source_file, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, sourceFile, string(model.IngestStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert ingest")
	}

	return &model.IngestRun{
		ID:         id,
		SourceFile: sourceFile,
		Status:     model.IngestStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *SQLiteStore) CompleteIngest(ctx context.Context, id string, status model.IngestStatus, stats *model.IngestStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingests SET status = ?, stats = ?, updated_at = ? WHERE id = ?`,
		string(status), string(statsJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete ingest %s", id)
	}
	return checkRowsAffected(res, "ingest", id)
}

func (s *SQLiteStore) GetIngest(ctx context.Context, id string) (*model.IngestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_file, status, stats, created_at, updated_at FROM ingests WHERE id = ?`, id)
	return scanIngest(row)
}

func (s *SQLiteStore) ListIngests(ctx context.Context, filter IngestFilter) ([]model.IngestRun, error) {
	query := `SELECT id, source_file, status, stats, created_at, updated_at FROM ingests WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
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
		return nil, eris.Wrap(err, "sqlite: list ingests")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		r, err := scanIngest(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list ingests iterate")
}

// orders

func (s *SQLiteStore) SaveOrders(ctx context.Context, ingestID string, orders []model.DeliveryOrder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save orders")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO orders (id, ingest_id, seq, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT (ingest_id, id) DO UPDATE SET seq = excluded.seq, data = excluded.data`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save orders")
	}
	defer stmt.Close()

	for i, o := range orders {
		data, err := json.Marshal(o)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal order %s", o.ID)
		}
		if _, err := stmt.ExecContext(ctx, o.ID, ingestID, i, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: save order %s", o.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save orders")
}

func (s *SQLiteStore) GetOrders(ctx context.Context, ingestID string) ([]model.DeliveryOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM orders WHERE ingest_id = ? ORDER BY seq`, ingestID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get orders")
	}
	defer rows.Close()

	var orders []model.DeliveryOrder
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order")
		}
		var o model.DeliveryOrder
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal order")
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "sqlite: get orders iterate")
}

// invoices

func (s *SQLiteStore) SaveInvoice(ctx context.Context, ingestID string, inv *model.Invoice) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal invoice")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invoices (id, ingest_id, data) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
		inv.ID, ingestID, string(data),
	)
	return eris.Wrap(err, "sqlite: save invoice")
}

func (s *SQLiteStore) GetInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM invoices WHERE id = ?`, invoiceID)

	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("invoice not found: %s", invoiceID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get invoice")
	}

	var inv model.Invoice
	if err := json.Unmarshal([]byte(data), &inv); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal invoice")
	}
	return &inv, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanIngest(row scannable) (*model.IngestRun, error) {
	var r model.IngestRun
	var statsJSON sql.NullString

	err := row.Scan(&r.ID, &r.SourceFile, &r.Status, &statsJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("ingest not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan ingest")
	}

	if statsJSON.Valid && statsJSON.String != "null" {
		r.Stats = &model.IngestStats{}
		if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	return &r, nil
}
