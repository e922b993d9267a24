// Package gorm provides GORM-based database operations for promptvault.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store represents the GORM database connection.
type Store struct {
	DB     *gorm.DB
	sqlDB  *sql.DB
	driver string
}

// Config holds database configuration.
type Config struct {
	Driver   string          // "sqlite" (default) or "postgres"
	Path     string          // Path to SQLite database file
	DSN      string          // PostgreSQL connection string
	MaxConns int             // Maximum number of open connections (default: 4)
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// NewStore opens the configured database and runs migrations.
// SQLite connections get foreign keys, WAL mode and a busy timeout via DSN pragmas
// so that every pooled connection carries them.
func NewStore(cfg Config) (*Store, error) {
	gcfg := &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	}

	var (
		db    *gorm.DB
		sqlDB *sql.DB
		err   error
	)

	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	switch driver {
	case DriverSQLite:
		// modernc.org/sqlite registers itself as "sqlite" (pure Go, no cgo)
		sqlDB, err = sql.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db, err = gorm.Open(sqlite.Dialector{Conn: sqlDB}, gcfg)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("open gorm: %w", err)
		}
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open gorm: %w", err)
		}
		sqlDB, err = db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql.DB: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{DB: db, sqlDB: sqlDB, driver: driver}, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	// Write transactions take the database lock at BEGIN, so concurrent
	// writers queue on busy_timeout instead of failing on a stale snapshot.
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Driver returns the name of the driver the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Stores groups the per-entity stores bound to one connection or transaction.
type Stores struct {
	db       *gorm.DB
	Users    *UserStore
	Prompts  *PromptStore
	Versions *VersionStore
	Folders  *FolderStore
	Teams    *TeamStore
	Activity *ActivityStore
}

func newStores(db *gorm.DB) *Stores {
	return &Stores{
		db:       db,
		Users:    &UserStore{db: db},
		Prompts:  &PromptStore{db: db},
		Versions: &VersionStore{db: db},
		Folders:  &FolderStore{db: db},
		Teams:    &TeamStore{db: db},
		Activity: &ActivityStore{db: db},
	}
}

// Stores returns the entity stores bound to the shared connection pool.
func (s *Store) Stores() *Stores {
	return newStores(s.DB)
}

// WithTx runs fn inside a single database transaction. Every store handed to fn
// uses the transaction; returning an error rolls all of their writes back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Stores) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newStores(tx))
	})
}
