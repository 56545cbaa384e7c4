package island

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"isle/internal/value"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQL is an island over a two column table of (path, content) rows. Leaves
// are addressed by their slash joined subpath.
type SQL struct {
	db     *sql.DB
	driver string
	table  string
}

// OpenSQL opens dsn with driver ("postgres", "sqlite" or "mysql").
func OpenSQL(ctx context.Context, driver, dsn, table string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	s, err := NewSQL(ctx, db, driver, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps db and creates table if it does not exist.
func NewSQL(ctx context.Context, db *sql.DB, driver, table string) (*SQL, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	s := &SQL{db: db, driver: driver, table: table}
	contentType := "BLOB"
	pathType := "TEXT"
	switch driver {
	case "postgres":
		contentType = "BYTEA"
	case "mysql":
		contentType = "LONGBLOB"
		pathType = "VARCHAR(1024)"
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (path %s PRIMARY KEY, content %s NOT NULL)", table, pathType, contentType)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("create island table: %w", err)
	}
	return s, nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (*SQL) Type() string { return "sql" }

func (s *SQL) Config() (value.Value, bool) { return value.Str(s.table), true }

func (*SQL) Path() (value.Value, bool) { return value.Value{}, false }

// placeholder returns the n-th (1-based) bind parameter for the driver.
func (s *SQL) placeholder(n int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQL) Read(ctx context.Context, subpath value.Subpath) ([]byte, error) {
	q := fmt.Sprintf("SELECT content FROM %s WHERE path = %s", s.table, s.placeholder(1))
	var content []byte
	err := s.db.QueryRowContext(ctx, q, strings.Join(subpath, "/")).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no leaf at %q", strings.Join(subpath, "/"))
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// List derives the immediate children of subpath from the stored keys.
func (s *SQL) List(ctx context.Context, subpath value.Subpath) ([]value.Subpath, error) {
	prefix := strings.Join(subpath, "/")
	if prefix != "" {
		prefix += "/"
	}
	q := fmt.Sprintf("SELECT path FROM %s WHERE substr(path, 1, %d) = %s", s.table, utf8.RuneCountInString(prefix), s.placeholder(1))
	if prefix == "" {
		q = fmt.Sprintf("SELECT path FROM %s", s.table)
	}
	var args []any
	if prefix != "" {
		args = append(args, prefix)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest == "" {
			continue
		}
		name, _, _ := strings.Cut(rest, "/")
		seen[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]value.Subpath, len(names))
	for i, name := range names {
		out[i] = value.Subpath{name}
	}
	return out, nil
}

func (*SQL) IsWriteable(context.Context) bool { return true }

func (s *SQL) Write(ctx context.Context, subpath value.Subpath, content []byte) error {
	key := strings.Join(subpath, "/")
	var q string
	switch s.driver {
	case "mysql":
		q = fmt.Sprintf("INSERT INTO %s (path, content) VALUES (?, ?) ON DUPLICATE KEY UPDATE content = VALUES(content)", s.table)
	default:
		q = fmt.Sprintf("INSERT INTO %s (path, content) VALUES (%s, %s) ON CONFLICT (path) DO UPDATE SET content = excluded.content",
			s.table, s.placeholder(1), s.placeholder(2))
	}
	if content == nil {
		content = []byte{}
	}
	_, err := s.db.ExecContext(ctx, q, key, content)
	return err
}
