package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tombstone/internal/core/tx"
	"tombstone/internal/infrastructure/storage/sqlbuild"
)

func newMock(t *testing.T, dialect sqlbuild.Dialect) (*TxManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTxManager(Wrap(sqlx.NewDb(db, "sqlmock"), dialect)), mock
}

func TestTxManager_CommitRunsHooksAfterCommit(t *testing.T) {
	txm, mock := newMock(t, sqlbuild.SQLite)
	mock.ExpectBegin()
	mock.ExpectCommit()

	var ran bool
	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, txm.GetTx(ctx))
		assert.True(t, tx.AfterCommit(ctx, func(context.Context) error {
			ran = true
			return nil
		}))
		assert.False(t, ran)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_RollbackDiscardsHooks(t *testing.T) {
	txm, mock := newMock(t, sqlbuild.SQLite)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	var ran bool
	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		tx.AfterCommit(ctx, func(context.Context) error {
			ran = true
			return nil
		})
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_NestedJoinsOuter(t *testing.T) {
	txm, mock := newMock(t, sqlbuild.SQLite)
	mock.ExpectBegin()
	mock.ExpectCommit()

	var order []string
	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		outer := txm.GetTx(ctx)
		return txm.RunInTransaction(ctx, func(ctx context.Context) error {
			assert.Same(t, outer, txm.GetTx(ctx))
			tx.AfterCommit(ctx, func(context.Context) error {
				order = append(order, "inner")
				return nil
			})
			order = append(order, "body")
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"body", "inner"}, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_BeginFailure(t *testing.T) {
	txm, mock := newMock(t, sqlbuild.MySQL)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := txm.ReadOnly(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}
