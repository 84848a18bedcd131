package migration

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// AppliedLog answers whether a generated migration has been executed. The
// planner only asks yes/no per migration name.
type AppliedLog interface {
	IsApplied(ctx context.Context, name string) (bool, error)
}

// AppliedSet is a static AppliedLog.
type AppliedSet map[string]bool

// NewAppliedSet builds an AppliedSet holding names.
func NewAppliedSet(names ...string) AppliedSet {
	s := make(AppliedSet, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func (s AppliedSet) IsApplied(_ context.Context, name string) (bool, error) {
	return s[name], nil
}

// Dialect selects the SQL driver and placeholder style of an SQLAppliedLog.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "pgx", nil
	case DialectMySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported applied log driver %q", d)
	}
}

// AppliedMigration is one row of the execution log.
type AppliedMigration struct {
	Name  string
	Batch int
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLAppliedLog reads the execution log kept by the framework that runs the
// generated migrations: a table with one row per executed migration name
// and a batch number.
type SQLAppliedLog struct {
	db      *sql.DB
	dialect Dialect
	table   string
	column  string
	owned   bool
}

// NewSQLAppliedLog wraps an open database. table and column default to
// migrations and migration.
func NewSQLAppliedLog(db *sql.DB, dialect Dialect, table, column string) (*SQLAppliedLog, error) {
	if _, err := dialect.DriverName(); err != nil {
		return nil, err
	}
	if table == "" {
		table = "migrations"
	}
	if column == "" {
		column = "migration"
	}
	for _, ident := range []string{table, column} {
		if !identRe.MatchString(ident) {
			return nil, fmt.Errorf("invalid applied log identifier %q", ident)
		}
	}
	return &SQLAppliedLog{db: db, dialect: dialect, table: table, column: column}, nil
}

// OpenAppliedLog opens dsn with the driver for dialect. The returned log
// owns the connection and closes it in Close.
func OpenAppliedLog(dialect Dialect, dsn, table, column string) (*SQLAppliedLog, error) {
	driver, err := dialect.DriverName()
	if err != nil {
		return nil, err
	}
	if dialect == DialectMySQL {
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open applied log: %w", err)
	}
	l, err := NewSQLAppliedLog(db, dialect, table, column)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.owned = true
	return l, nil
}

// Close releases the connection if the log opened it.
func (l *SQLAppliedLog) Close() error {
	if l.owned {
		return l.db.Close()
	}
	return nil
}

// EnsureTable creates the log table when it does not exist yet.
func (l *SQLAppliedLog) EnsureTable(ctx context.Context) error {
	var ddl string
	switch l.dialect {
	case DialectPostgres:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			%s VARCHAR(255) NOT NULL,
			batch INTEGER NOT NULL
		)`
	case DialectMySQL:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
			id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			%s VARCHAR(255) NOT NULL,
			batch INT NOT NULL
		)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			%s TEXT NOT NULL,
			batch INTEGER NOT NULL
		)`
	}
	if _, err := l.db.ExecContext(ctx, fmt.Sprintf(ddl, l.quote(l.table), l.quote(l.column))); err != nil {
		return fmt.Errorf("create %s table: %w", l.table, err)
	}
	return nil
}

func (l *SQLAppliedLog) IsApplied(ctx context.Context, name string) (bool, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = %s`,
		l.quote(l.table), l.quote(l.column), l.placeholder(1))
	var n int
	if err := l.db.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return false, fmt.Errorf("query %s: %w", l.table, err)
	}
	return n > 0, nil
}

// Applied returns every logged migration ordered by batch, then name.
func (l *SQLAppliedLog) Applied(ctx context.Context) ([]AppliedMigration, error) {
	query := fmt.Sprintf(`SELECT %s, batch FROM %s`, l.quote(l.column), l.quote(l.table))
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", l.table, err)
	}
	defer rows.Close()

	var result []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Name, &m.Batch); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Batch != result[j].Batch {
			return result[i].Batch < result[j].Batch
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Record logs names as executed in one new batch. Names already logged are
// skipped. It returns the batch number used, or 0 when nothing was new.
func (l *SQLAppliedLog) Record(ctx context.Context, names ...string) (int, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var batch sql.NullInt64
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT MAX(batch) FROM %s`, l.quote(l.table))).Scan(&batch); err != nil {
		return 0, fmt.Errorf("query batch: %w", err)
	}
	next := int(batch.Int64) + 1

	exists := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = %s`,
		l.quote(l.table), l.quote(l.column), l.placeholder(1))
	insert := fmt.Sprintf(`INSERT INTO %s (%s, batch) VALUES (%s, %s)`,
		l.quote(l.table), l.quote(l.column), l.placeholder(1), l.placeholder(2))

	recorded := 0
	for _, name := range names {
		var n int
		if err := tx.QueryRowContext(ctx, exists, name).Scan(&n); err != nil {
			return 0, fmt.Errorf("query %s: %w", name, err)
		}
		if n > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, insert, name, next); err != nil {
			return 0, fmt.Errorf("insert %s: %w", name, err)
		}
		recorded++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	if recorded == 0 {
		return 0, nil
	}
	return next, nil
}

func (l *SQLAppliedLog) quote(ident string) string {
	if l.dialect == DialectMySQL {
		return "`" + ident + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (l *SQLAppliedLog) placeholder(n int) string {
	if l.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
