package sink

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "modernc.org/sqlite"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/frame"
	"time-value-analyser/quake-ingester/internal/model"
)

// dialect covers what differs between the database/sql backends.
type dialect struct {
	name      string
	quote     func(string) string
	types     map[model.Kind]string
	engine    string // appended to CREATE TABLE
	batchOnly bool   // INSERT without VALUES, rows streamed through the prepared batch
}

var sqliteDialect = dialect{
	name:  "sqlite",
	quote: func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
	types: map[model.Kind]string{
		model.Int:    "INTEGER",
		model.Float:  "REAL",
		model.Time:   "TIMESTAMP",
		model.String: "TEXT",
	},
}

var clickhouseDialect = dialect{
	name:  "clickhouse",
	quote: func(s string) string { return "`" + strings.ReplaceAll(s, "`", "\\`") + "`" },
	types: map[model.Kind]string{
		model.Int:    "Nullable(Int64)",
		model.Float:  "Nullable(Float64)",
		model.Time:   "Nullable(DateTime64(3, 'UTC'))",
		model.String: "Nullable(String)",
	},
	engine:    "ENGINE = MergeTree ORDER BY tuple()",
	batchOnly: true,
}

// sqlTable appends a frame to one table, creating it on first use with
// column types inferred from the frame. Every write is one transaction.
type sqlTable struct {
	db    *sql.DB
	table string
	d     dialect
}

func OpenSQLite(c config.SQLSinkConfig) (Sink, error) {
	db, err := sql.Open("sqlite", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	return newSQLTable(db, c.Table, sqliteDialect), nil
}

func OpenClickHouse(c config.SQLSinkConfig) (Sink, error) {
	db, err := sql.Open("clickhouse", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse db: %w", err)
	}
	db.SetMaxIdleConns(2)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)
	return newSQLTable(db, c.Table, clickhouseDialect), nil
}

func newSQLTable(db *sql.DB, table string, d dialect) *sqlTable {
	return &sqlTable{db: db, table: table, d: d}
}

func (s *sqlTable) Name() string { return s.d.name }

func (s *sqlTable) Close() error { return s.db.Close() }

func (s *sqlTable) Write(ctx context.Context, f *frame.Frame) error {
	cols := f.Columns()
	kinds := make([]model.Kind, len(cols))
	for i, c := range cols {
		kinds[i], _ = f.Kind(c)
	}

	if _, err := s.db.ExecContext(ctx, s.createSQL(cols, kinds)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	if f.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, s.insertSQL(cols))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for i := 0; i < f.Len(); i++ {
		row := f.Row(i).Values()
		for j, v := range row {
			args[j] = sqlArg(v, kinds[j])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *sqlTable) createSQL(cols []string, kinds []model.Kind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", s.d.quote(s.table))
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", s.d.quote(c), s.d.types[kinds[i]])
	}
	b.WriteString(")")
	if s.d.engine != "" {
		b.WriteString(" " + s.d.engine)
	}
	return b.String()
}

func (s *sqlTable) insertSQL(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.d.quote(c)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s)", s.d.quote(s.table), strings.Join(quoted, ", "))
	if s.d.batchOnly {
		return q
	}
	return q + " VALUES (" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
}

// sqlArg converts a cell for a column of kind k. Cells that do not fit the
// column kind (numbers in a text column) are sent as their text.
func sqlArg(v model.Value, k model.Kind) any {
	if v.IsMissing() {
		return nil
	}
	switch k {
	case model.Int:
		i, _ := v.Int()
		return i
	case model.Float:
		x, _ := v.Float()
		if math.IsNaN(x) {
			return nil
		}
		return x
	case model.Time:
		t, _ := v.Time()
		return t
	}
	return v.Text()
}
