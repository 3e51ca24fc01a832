// Package sqlite provides a SQLite implementation of the offsync Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	stdSync "sync"
	"time"

	"github.com/offlinekit/offsync"
	syncErrors "github.com/offlinekit/offsync/errors"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opLoad  = "sqlite.Load"
	opSave  = "sqlite.Save"
	opSetup = "sqlite.Setup"
)

// ErrStoreClosed is returned for operations on a closed store.
var ErrStoreClosed = errors.New("store is closed")

// Config holds configuration options for the SQLite store.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:queue.db?_journal_mode=WAL"
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// Enabled by DefaultConfig. When true, "?_journal_mode=WAL" is
	// appended to DataSourceName unless a journal mode is already set.
	EnableWAL bool

	// TableName is the table holding queued items. Defaults to
	// "sync_queue".
	TableName string

	// Connection pool settings.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "sync_queue"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with production-ready defaults, WAL
// mode included.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// Store implements the offsync.Store interface on SQLite. Save replaces
// the persisted queue inside one transaction, so a crash leaves either
// the previous queue or the new one, never a mix.
type Store struct {
	db        *sql.DB
	mu        stdSync.RWMutex
	closed    bool
	tableName string
}

var _ offsync.Store = (*Store)(nil)

// NewWithDataSource is a convenience constructor using DefaultConfig.
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// New creates a Store from a Config.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()
	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &Store{
		db:        db,
		tableName: config.TableName,
	}
	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, syncErrors.WrapOpComponent(err, opSetup, "storage/sqlite")
	}
	return store, nil
}

func (s *Store) setupSchema() error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %s (
        id            TEXT PRIMARY KEY,
        entity        TEXT NOT NULL,
        operation     TEXT NOT NULL,
        payload       TEXT,
        priority      TEXT NOT NULL,
        resolution    TEXT NOT NULL,
        created_at    TIMESTAMP NOT NULL,
        status        TEXT NOT NULL,
        retry_count   INTEGER NOT NULL DEFAULT 0,
        last_retry_at TIMESTAMP,
        last_error    TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_%s_status ON %s (status);
    `, s.tableName, s.tableName, s.tableName)
	_, err := s.db.Exec(query)
	return err
}

// Load retrieves every queued item.
func (s *Store) Load(ctx context.Context) ([]offsync.SyncItem, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	query := fmt.Sprintf(`SELECT id, entity, operation, payload, priority, resolution,
        created_at, status, retry_count, last_retry_at, last_error FROM %s`, s.tableName)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opLoad, "storage/sqlite")
	}
	defer rows.Close()

	var items []offsync.SyncItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, syncErrors.WrapOpComponent(err, opLoad, "storage/sqlite")
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponent(err, opLoad, "storage/sqlite")
	}
	return items, nil
}

// Save replaces the persisted queue with the given set atomically.
func (s *Store) Save(ctx context.Context, items []offsync.SyncItem) (err error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.tableName)); err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, entity, operation, payload, priority, resolution,
        created_at, status, retry_count, last_retry_at, last_error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tableName)
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}
	defer stmt.Close()

	for _, it := range items {
		payloadJSON, merr := json.Marshal(it.Payload)
		if merr != nil {
			err = syncErrors.WrapOpComponent(merr, opSave, "storage/sqlite")
			return err
		}
		var lastRetry any
		if !it.LastRetryAt.IsZero() {
			lastRetry = it.LastRetryAt.UTC()
		}
		if _, err = stmt.ExecContext(ctx,
			it.ID, it.Entity, string(it.Operation), string(payloadJSON),
			string(it.Priority), string(it.Resolution), it.CreatedAt.UTC(),
			string(it.Status), it.RetryCount, lastRetry, it.LastError,
		); err != nil {
			return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
		}
	}

	if err = tx.Commit(); err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (offsync.SyncItem, error) {
	var (
		it          offsync.SyncItem
		op          string
		payloadJSON sql.NullString
		priority    string
		resolution  string
		status      string
		lastRetry   sql.NullTime
		lastError   sql.NullString
	)
	if err := row.Scan(&it.ID, &it.Entity, &op, &payloadJSON, &priority, &resolution,
		&it.CreatedAt, &status, &it.RetryCount, &lastRetry, &lastError); err != nil {
		return offsync.SyncItem{}, err
	}

	it.Operation = offsync.Operation(op)
	it.Priority = offsync.Priority(priority)
	it.Resolution = offsync.ConflictStrategy(resolution)
	it.Status = offsync.ItemStatus(status)
	if payloadJSON.Valid && payloadJSON.String != "" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &it.Payload); err != nil {
			return offsync.SyncItem{}, fmt.Errorf("decode payload for item %q: %w", it.ID, err)
		}
	}
	if lastRetry.Valid {
		it.LastRetryAt = lastRetry.Time
	}
	if lastError.Valid {
		it.LastError = lastError.String
	}
	return it, nil
}
