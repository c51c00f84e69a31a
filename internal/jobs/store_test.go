package jobs

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_StartAndFinish(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newPostgresStoreFromDB(db)

	mock.ExpectQuery("INSERT INTO job_execution").
		WithArgs("reminder-1", "reminder", "running", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	exec, err := store.Start(context.Background(), "reminder-1", "reminder")
	require.NoError(t, err)
	assert.Equal(t, int64(7), exec.ID)
	assert.Equal(t, "running", exec.Status)

	mock.ExpectExec("UPDATE job_execution").
		WithArgs("success", sqlmock.AnyArg(), "", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Finish(context.Background(), 7, "success", ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopStore_StartAndFinish(t *testing.T) {
	store := NoopStore{}
	exec, err := store.Start(context.Background(), "job-1", "memory_extraction")
	require.NoError(t, err)
	assert.Equal(t, "running", exec.Status)
	require.NoError(t, store.Finish(context.Background(), exec.ID, "success", ""))
}
