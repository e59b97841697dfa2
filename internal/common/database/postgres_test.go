// internal/common/database/postgres_test.go
package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "library-assistant/internal/common/errors"
	"library-assistant/internal/models"
)

func newMockClient(t *testing.T) (*PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresClient{DB: db}, mock
}

func TestPostgresSelectILike(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT * FROM "books" WHERE "title"::text ILIKE $1 LIMIT $2`).
		WithArgs("%dune%", 10).
		WillReturnRows(sqlmock.NewRows([]string{"book_id", "title"}).
			AddRow(int64(1), []byte("Dune")))

	spec := models.FilterSpec{
		Table:      "books",
		Conditions: []models.Condition{{Column: "title", Op: models.OpILike, Value: "dune"}},
	}
	records, err := client.Select(context.Background(), "books", spec, 10)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Dune", records[0].GetString("title"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSelectOrCombines(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT * FROM "transactions" WHERE "return_date" IS NULL OR "fine" > $1 LIMIT $2`).
		WithArgs(float64(0), 10).
		WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}))

	spec := models.FilterSpec{
		Table: "transactions",
		Conditions: []models.Condition{
			{Column: "return_date", Op: models.OpIsNull},
			{Column: "fine", Op: models.OpGt, Value: "0"},
		},
	}
	_, err := client.Select(context.Background(), "transactions", spec, 10)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSelectAll(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT * FROM "books" LIMIT $1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"book_id"}).AddRow(int64(1)).AddRow(int64(2)))

	records, err := client.Select(context.Background(), "books", models.FilterSpec{All: true}, 10)

	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSelectUndefinedTable(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT * FROM "nope" LIMIT $1`).
		WithArgs(10).
		WillReturnError(&pq.Error{Code: "42P01"})

	_, err := client.Select(context.Background(), "nope", models.FilterSpec{All: true}, 10)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTableNotFound, apperrors.CodeOf(err))
}

func TestPostgresSelectOtherErrors(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT * FROM "books" LIMIT $1`).
		WithArgs(10).
		WillReturnError(&pq.Error{Code: "57014"}) // query_canceled

	_, err := client.Select(context.Background(), "books", models.FilterSpec{All: true}, 10)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, apperrors.CodeOf(err))
}

func TestPostgresProbe(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT 1 FROM "books" LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	require.NoError(t, client.Probe(context.Background(), "books"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProbeMissingTable(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(`SELECT 1 FROM "catalog" LIMIT 1`).
		WillReturnError(&pq.Error{Code: "42P01"})

	err := client.Probe(context.Background(), "catalog")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTableNotFound, apperrors.CodeOf(err))
}
