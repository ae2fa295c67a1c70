package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/pkg/geocode"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_GetAddress_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT lat, lon, matched FROM geocode_cache`).
		WithArgs("nowhere").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetAddress(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAddress_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT lat, lon, matched FROM geocode_cache`).
		WithArgs("100 main st").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lon", "matched"}).AddRow(39.78, -89.65, true))

	got, err := s.GetAddress(context.Background(), "100 main st")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 39.78, got.Lat, 0.0001)
	assert.True(t, got.Matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutAddress_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO geocode_cache .* ON CONFLICT`).
		WithArgs("k", 1.0, 2.0, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutAddress(context.Background(), "k", geocode.CachedAddress{Lat: 1, Lon: 2, Matched: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDistance(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT miles FROM distance_cache`).
		WithArgs("legA").
		WillReturnRows(pgxmock.NewRows([]string{"miles"}).AddRow(12.4))

	miles, ok, err := s.GetDistance(context.Background(), "legA")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 12.4, miles, 0.0001)

	mock.ExpectQuery(`SELECT miles FROM distance_cache`).
		WithArgs("legB").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err = s.GetDistance(context.Background(), "legB")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateIngest(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ingests`).
		WithArgs(pgxmock.AnyArg(), "orders.csv", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateIngest(context.Background(), "orders.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.IngestStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteIngest_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE ingests SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteIngest(context.Background(), "missing", model.IngestStatusComplete, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetInvoice_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM invoices`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetInvoice(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveInvoice_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO invoices .* ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inv := &model.Invoice{ID: "inv-1", Status: model.InvoiceStatusDraft}
	require.NoError(t, s.SaveInvoice(context.Background(), "ing-1", inv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrders(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM orders`).
		WithArgs("ing-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"id":"o1","trip_number":"TR-1001","driver":"Alice","pickup":"A","dropoff":"B","missing_fields":[],"order_type":"delivery"}`)))

	orders, err := s.GetOrders(context.Background(), "ing-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveOrders_FreshIngestUsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM orders`).
		WithArgs("ing-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCopyFrom(pgx.Identifier{"orders"}, []string{"id", "ingest_id", "seq", "data"}).
		WillReturnResult(2)

	orders := []model.DeliveryOrder{{ID: "o1"}, {ID: "o2"}}
	require.NoError(t, s.SaveOrders(context.Background(), "ing-1", orders))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveOrders_ReingestUpserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM orders`).
		WithArgs("ing-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_orders"}, []string{"id", "ingest_id", "seq", "data"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "orders"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	orders := []model.DeliveryOrder{{ID: "o1"}, {ID: "o2"}}
	require.NoError(t, s.SaveOrders(context.Background(), "ing-1", orders))
	assert.NoError(t, mock.ExpectationsWereMet())
}
