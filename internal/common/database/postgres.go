// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"library-assistant/internal/common/config"
	apperrors "library-assistant/internal/common/errors"
	"library-assistant/internal/models"

	"github.com/lib/pq"
)

// PostgresClient wraps a direct SQL connection for self-hosted deployments
// that bypass the REST surface.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	dsn := cfg.GetDSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection.
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection.
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Select fetches rows matching spec from table, scanning each row into a
// schema-agnostic Record.
func (c *PostgresClient) Select(ctx context.Context, table string, spec models.FilterSpec, limit int) ([]models.Record, error) {
	query, args := buildSelect(table, spec, limit)

	rows, err := c.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyPgError(table, ctx, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(table, err)
	}
	return records, nil
}

// Probe checks whether table exists.
func (c *PostgresClient) Probe(ctx context.Context, table string) error {
	query := fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", pq.QuoteIdentifier(table))
	rows, err := c.DB.QueryContext(ctx, query)
	if err != nil {
		return classifyPgError(table, ctx, err)
	}
	return rows.Close()
}

func buildSelect(table string, spec models.FilterSpec, limit int) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(pq.QuoteIdentifier(table))

	var args []interface{}
	if !spec.All && len(spec.Conditions) > 0 {
		clauses := make([]string, 0, len(spec.Conditions))
		for _, cond := range spec.Conditions {
			col := pq.QuoteIdentifier(cond.Column)
			switch cond.Op {
			case models.OpILike:
				args = append(args, "%"+cond.Value+"%")
				clauses = append(clauses, fmt.Sprintf("%s::text ILIKE $%d", col, len(args)))
			case models.OpIsNull:
				clauses = append(clauses, fmt.Sprintf("%s IS NULL", col))
			case models.OpGt:
				args = append(args, toNumeric(cond.Value))
				clauses = append(clauses, fmt.Sprintf("%s > $%d", col, len(args)))
			default:
				args = append(args, cond.Value)
				clauses = append(clauses, fmt.Sprintf("%s::text = $%d", col, len(args)))
			}
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " OR "))
	}

	if limit > 0 {
		args = append(args, limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	return sb.String(), args
}

func toNumeric(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// scanRecords converts rows with an unknown column set into Records.
func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []models.Record
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(models.Record, len(cols))
		for i, col := range cols {
			switch v := values[i].(type) {
			case []byte:
				rec[col] = string(v)
			case time.Time:
				rec[col] = v.Format(time.RFC3339)
			default:
				rec[col] = v
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func classifyPgError(table string, ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewQueryTimeoutError(table)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" { // undefined_table
		return apperrors.NewTableNotFoundError(table)
	}
	return apperrors.NewQueryExecutionFailedError(table, err)
}
