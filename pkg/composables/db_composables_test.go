package composables

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestUseTx_FallsBackToDB(t *testing.T) {
	_, err := UseTx(context.Background())
	require.ErrorIs(t, err, ErrNoDB)

	db, _ := newMockDB(t)
	q, err := UseTx(WithDB(context.Background(), db))
	require.NoError(t, err)
	require.Same(t, db, q)
}

func TestInTx_Commits(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE projects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := WithDB(context.Background(), db)
	err := InTx(ctx, func(txCtx context.Context) error {
		q, err := UseTx(txCtx)
		require.NoError(t, err)
		_, isTx := q.(*sqlx.Tx)
		require.True(t, isTx)
		_, err = q.ExecContext(txCtx, "UPDATE projects SET name = name")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := InTx(WithDB(context.Background(), db), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollsBackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	require.Panics(t, func() {
		_ = InTx(WithDB(context.Background(), db), func(context.Context) error { panic("row exploded") })
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInRollbackTx_NeverCommits(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := InRollbackTx(WithDB(context.Background(), db), func(context.Context) error { return nil })
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
