package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBreaker(t *testing.T, cfg Config) (*DBCircuitBreaker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDBCircuitBreakerWithConfig(db, cfg), mock
}

func TestDBCircuitBreaker_QueryContext(t *testing.T) {
	dcb, mock := newMockBreaker(t, DBConfig())
	mock.ExpectQuery("SELECT track_id, outcome FROM ingest_checkpoints").
		WillReturnRows(sqlmock.NewRows([]string{"track_id", "outcome"}).
			AddRow("3135556", "succeeded"))

	rows, err := dcb.QueryContext(context.Background(), "SELECT track_id, outcome FROM ingest_checkpoints WHERE run_id = $1", "run-1")
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	var id, outcome string
	require.NoError(t, rows.Scan(&id, &outcome))
	assert.Equal(t, "3135556", id)
	assert.Equal(t, "succeeded", outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_ExecContext(t *testing.T) {
	dcb, mock := newMockBreaker(t, DBConfig())
	mock.ExpectExec("INSERT INTO ingest_checkpoints").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := dcb.ExecContext(context.Background(),
		"INSERT INTO ingest_checkpoints (run_id, track_id, outcome) VALUES ($1, $2, $3)",
		"run-1", "3135556", "succeeded")
	require.NoError(t, err)

	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestDBCircuitBreaker_QueryError(t *testing.T) {
	dcb, mock := newMockBreaker(t, DBConfig())
	boom := errors.New("connection refused")
	mock.ExpectQuery("SELECT").WillReturnError(boom)

	_, err := dcb.QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, dcb.IsOpen())
}

func TestDBCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	dcb, mock := newMockBreaker(t, DBConfig())
	boom := errors.New("connection refused")
	for i := 0; i < 5; i++ {
		mock.ExpectExec("INSERT").WillReturnError(boom)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := dcb.ExecContext(ctx, "INSERT INTO ingest_checkpoints VALUES (1)")
		require.Error(t, err)
	}
	require.True(t, dcb.IsOpen())

	// 開いた後は DB に届かない
	_, err := dcb.ExecContext(ctx, "INSERT INTO ingest_checkpoints VALUES (1)")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_MixedResultsStayClosed(t *testing.T) {
	// 5 回中 1 回成功すれば連続失敗条件を満たさない
	dcb, mock := newMockBreaker(t, DBConfig())
	boom := errors.New("timeout")
	for i := 0; i < 4; i++ {
		mock.ExpectExec("INSERT").WillReturnError(boom)
	}
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = dcb.ExecContext(ctx, "INSERT INTO ingest_checkpoints VALUES (1)")
	}
	assert.False(t, dcb.IsOpen())
}

func TestDBCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cfg := DBConfig()
	cfg.MinRequests = 2
	cfg.Timeout = 20 * time.Millisecond
	dcb, mock := newMockBreaker(t, cfg)

	boom := errors.New("connection refused")
	mock.ExpectExec("INSERT").WillReturnError(boom)
	mock.ExpectExec("INSERT").WillReturnError(boom)
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	_, _ = dcb.ExecContext(ctx, "INSERT INTO ingest_checkpoints VALUES (1)")
	_, _ = dcb.ExecContext(ctx, "INSERT INTO ingest_checkpoints VALUES (1)")
	require.True(t, dcb.IsOpen())

	time.Sleep(30 * time.Millisecond)

	_, err := dcb.ExecContext(ctx, "INSERT INTO ingest_checkpoints VALUES (1)")
	assert.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, dcb.State())
}

func TestDBCircuitBreaker_QueryRowBypassesBreaker(t *testing.T) {
	dcb, mock := newMockBreaker(t, DBConfig())
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	var count int
	row := dcb.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM ingest_checkpoints")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 7, count)
}

func TestDBCircuitBreaker_ExposesRawDB(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dcb := NewDBCircuitBreaker(db)
	assert.Same(t, db, dcb.DB())
}
