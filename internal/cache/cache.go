// Package cache persists evaluated periodograms in a SQL table so repeated
// runs on unchanged data skip the evaluation.
package cache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // Pure-Go SQLite driver

	"github.com/cwbudde/algo-stackpg/analysis"
)

// DefaultTable is the table created when no name is configured.
const DefaultTable = "stackpg_periodograms"

// Version tags stored rows; rows of another version read as misses.
const Version = 1

// ErrUnsupportedBackend reports an unknown backend name.
var ErrUnsupportedBackend = errors.New("cache: unsupported backend")

// Backend names a database engine.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgresql"
	BackendMySQL    Backend = "mysql"
	BackendNone     Backend = "none"
)

// ParseBackend resolves a backend name. The empty string selects SQLite.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return BackendSQLite, nil
	case "postgresql", "postgres", "pg":
		return BackendPostgres, nil
	case "mysql":
		return BackendMySQL, nil
	case "none", "off":
		return BackendNone, nil
	default:
		return "", fmt.Errorf("%w: %q (want sqlite, postgresql, mysql or none)", ErrUnsupportedBackend, name)
	}
}

// Store implements analysis.Cache on a database/sql connection. A store of
// BackendNone never hits and drops every write.
type Store struct {
	db      *sql.DB
	table   string
	backend Backend
}

var _ analysis.Cache = (*Store)(nil)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Open connects to the backend and creates the table if needed. An empty
// connStr for SQLite selects DefaultPath.
func Open(ctx context.Context, backend Backend, connStr, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("cache: invalid table name %q", table)
	}

	var driver string
	switch backend {
	case BackendSQLite:
		driver = "sqlite"
		if connStr == "" {
			path, err := DefaultPath()
			if err != nil {
				return nil, err
			}
			connStr = path
		}
	case BackendPostgres:
		driver = "pgx"
	case BackendMySQL:
		driver = "mysql"
		if _, err := mysql.ParseDSN(connStr); err != nil {
			return nil, fmt.Errorf("cache: mysql connection string: %w. Expected user:password@tcp(host:port)/dbname", err)
		}
	case BackendNone:
		return &Store{table: table, backend: backend}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, backend)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", backend, err)
	}
	if backend == BackendSQLite {
		// Avoids "database is locked" with concurrent writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: connect to %s: %w", backend, err)
	}

	s := &Store{db: db, table: table, backend: backend}
	if _, err := db.ExecContext(ctx, s.createQuery()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: create table %s: %w", table, err)
	}
	return s, nil
}

// DefaultPath returns the SQLite file under the user cache directory,
// creating the directory.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cache: locate user cache dir: %w", err)
	}
	dir = filepath.Join(dir, "stackpg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: create %s: %w", dir, err)
	}
	return filepath.Join(dir, "periodograms.db"), nil
}

// Backend returns the engine of s.
func (s *Store) Backend() Backend { return s.backend }

// Get returns the powers stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]float64, bool, error) {
	if s.db == nil {
		return nil, false, nil
	}
	query := fmt.Sprintf("SELECT cache_value, cache_version FROM %s WHERE cache_key = %s", s.quotedTable(), s.placeholder(1))

	var (
		blob    []byte
		version int
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&blob, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cache: get: %w", err)
	case version != Version:
		return nil, false, nil
	}
	power, err := decode(blob)
	if err != nil {
		return nil, false, err
	}
	return power, true, nil
}

// Put stores power under key, replacing any previous row.
func (s *Store) Put(ctx context.Context, key string, power []float64) error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.upsertQuery(), key, encode(power), Version, time.Now().Unix()); err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Len returns the number of stored rows.
func (s *Store) Len(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.quotedTable()).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}

// Clear deletes every row.
func (s *Store) Clear(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+s.quotedTable()); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) quotedTable() string {
	if s.backend == BackendMySQL {
		return "`" + s.table + "`"
	}
	return `"` + s.table + `"`
}

func (s *Store) placeholder(n int) string {
	if s.backend == BackendPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) createQuery() string {
	switch s.backend {
	case BackendMySQL:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key VARCHAR(64) PRIMARY KEY,
				cache_value LONGBLOB NOT NULL,
				cache_version INT NOT NULL,
				cache_timestamp BIGINT NOT NULL
			);`, s.quotedTable())
	case BackendPostgres:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value BYTEA NOT NULL,
				cache_version INTEGER NOT NULL,
				cache_timestamp BIGINT NOT NULL
			);`, s.quotedTable())
	default:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				cache_key TEXT PRIMARY KEY,
				cache_value BLOB NOT NULL,
				cache_version INTEGER NOT NULL,
				cache_timestamp INTEGER NOT NULL
			);`, s.quotedTable())
	}
}

func (s *Store) upsertQuery() string {
	switch s.backend {
	case BackendMySQL:
		return fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES (?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE cache_value = new.cache_value, cache_version = new.cache_version, cache_timestamp = new.cache_timestamp`, s.quotedTable())
	case BackendPostgres:
		return fmt.Sprintf(`INSERT INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES ($1, $2, $3, $4)
			ON CONFLICT (cache_key) DO UPDATE SET cache_value = EXCLUDED.cache_value, cache_version = EXCLUDED.cache_version, cache_timestamp = EXCLUDED.cache_timestamp`, s.quotedTable())
	default:
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (cache_key, cache_value, cache_version, cache_timestamp) VALUES (?, ?, ?, ?)`, s.quotedTable())
	}
}

// encode stores powers as little-endian float64 bit patterns.
func encode(power []float64) []byte {
	out := make([]byte, 8*len(power))
	for i, p := range power {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(p))
	}
	return out
}

func decode(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("cache: corrupt value of %d bytes", len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return out, nil
}
