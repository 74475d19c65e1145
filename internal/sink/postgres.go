package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/frame"
	"time-value-analyser/quake-ingester/internal/model"
)

var postgresTypes = map[model.Kind]string{
	model.Int:    "BIGINT",
	model.Float:  "DOUBLE PRECISION",
	model.Time:   "TIMESTAMPTZ",
	model.String: "TEXT",
}

// pgConn is the part of *pgxpool.Pool the sink uses.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

type postgresSink struct {
	conn  pgConn
	pool  *pgxpool.Pool
	table string
}

// OpenPostgres connects a small pool and pings it.
func OpenPostgres(ctx context.Context, c config.SQLSinkConfig) (Sink, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgxpool config: %w", err)
	}
	pc.MaxConns = 4
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &postgresSink{conn: pool, pool: pool, table: c.Table}, nil
}

func (p *postgresSink) Name() string { return "postgres" }

func (p *postgresSink) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *postgresSink) Write(ctx context.Context, f *frame.Frame) error {
	cols := f.Columns()
	kinds := make([]model.Kind, len(cols))
	for i, c := range cols {
		kinds[i], _ = f.Kind(c)
	}
	if _, err := p.conn.Exec(ctx, postgresCreate(p.table, cols, kinds)); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	if f.Len() == 0 {
		return nil
	}

	rows := make([][]any, f.Len())
	for i := range rows {
		vals := f.Row(i).Values()
		row := make([]any, len(vals))
		for j, v := range vals {
			row[j] = sqlArg(v, kinds[j])
		}
		rows[i] = row
	}
	n, err := p.conn.CopyFrom(ctx, pgx.Identifier{p.table}, cols, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", p.table, err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy into %s: wrote %d of %d rows", p.table, n, len(rows))
	}
	return nil
}

func postgresCreate(table string, cols []string, kinds []model.Kind) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c}.Sanitize() + " " + postgresTypes[kinds[i]]
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgx.Identifier{table}.Sanitize(), strings.Join(defs, ", "))
}
