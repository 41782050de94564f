package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/p4blo4p/sitemap-hunter/internal/state"
)

func newMockedStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS hunter_state").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	store, err := NewWithDB(context.Background(), mock)
	require.NoError(t, err)
	return store, mock
}

func TestStoreGet(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT value FROM hunter_state").
		WithArgs("health/a.example.json").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("rec")))

	got, err := store.Get(context.Background(), "health/a.example.json")
	require.NoError(t, err)
	require.Equal(t, []byte("rec"), got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetMissingKey(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT value FROM hunter_state").
		WithArgs("nodes/none.json").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	_, err := store.Get(context.Background(), "nodes/none.json")
	require.ErrorIs(t, err, state.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePutUpserts(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectExec("INSERT INTO hunter_state").
		WithArgs("cursors/abc.json", []byte("cursor")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), "cursors/abc.json", []byte("cursor")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStorePutError(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectExec("INSERT INTO hunter_state").
		WithArgs("cursors/abc.json", []byte("cursor")).
		WillReturnError(errors.New("connection reset"))

	err := store.Put(context.Background(), "cursors/abc.json", []byte("cursor"))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListKeys(t *testing.T) {
	t.Parallel()

	store, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT key FROM hunter_state").
		WithArgs("artifacts/").
		WillReturnRows(pgxmock.NewRows([]string{"key"}).
			AddRow("artifacts/aa").
			AddRow("artifacts/bb"))

	keys, err := store.ListKeys(context.Background(), "artifacts/")
	require.NoError(t, err)
	require.Equal(t, []string{"artifacts/aa", "artifacts/bb"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}
