package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mgmu/greenhouse/internal/plants"
)

//go:embed schema.sql
var schemaSQL string

// querier is the part of the pool API that is also offered by a
// transaction, so that helpers run in either.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresDatabase struct {
	pool   *pgxpool.Pool
	schema string
}

// Connect creates a connection pool to the Postgres database at url. Every
// connection of the pool uses the given schema as search path.
func Connect(ctx context.Context, url, schema string) (*PostgresDatabase, error) {
	if url == "" {
		return nil, errors.New("database: Database URL not set")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if schema == "" {
		schema = "public"
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	db := &PostgresDatabase{pool: pool, schema: schema}
	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// Close closes all connections to this connection pool. Always returns a nil
// error.
func (db *PostgresDatabase) Close() error {
	db.pool.Close()
	return nil
}

func (db *PostgresDatabase) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database: ping: %w", err)
	}
	return nil
}

// CheckSchema verifies that the tables exist, so that a server started
// before the migration fails early with a clear message.
func (db *PostgresDatabase) CheckSchema(ctx context.Context) error {
	query := `
SELECT count(*) FROM pg_tables
WHERE schemaname = $1
AND tablename IN ('app_user', 'plant', 'plant_task', 'plant_gift');`
	var n int
	if err := db.pool.QueryRow(ctx, query, db.schema).Scan(&n); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if n != 4 {
		return errors.New("database: Schema and tables not found, run the migrate command")
	}
	return nil
}

// Migrate creates the schema, its tables and the task templates. It can be
// run on an up to date database.
func (db *PostgresDatabase) Migrate(ctx context.Context) error {
	stmt := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{db.schema}.Sanitize() + ";\n" + schemaSQL
	// without arguments Exec uses the simple protocol, which accepts several
	// statements at once
	if _, err := db.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

// translate maps driver errors to the errors of this package.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", plants.ErrInvalid, pgErr.ConstraintName)
		}
	}
	return err
}

// expectOne turns an update or delete that touched nothing into ErrNotFound.
func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func dateArg(d *plants.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func dateFrom(v pgtype.Date) *plants.Date {
	if !v.Valid {
		return nil
	}
	d := plants.DateOf(v.Time)
	return &d
}

func intFrom(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

func intArg(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
