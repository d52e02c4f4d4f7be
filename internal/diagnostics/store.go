// Package diagnostics is the optional run-record persistence layer of
// SPEC_FULL §2's ambient "Diagnostics store" row: a gorm-backed store
// recording a source hash, diagnostics/backtrace, and instruction/
// memory counters for each script or module run, when a Context is
// configured with a non-empty DSN (internal/config.Config.DiagnosticsDSN).
//
// Grounded directly on the teacher's `db.Connect`/`db.Migrate`: same
// "file path vs libsql/Turso URL" dialector switch, same
// `gorm.Open` + `AutoMigrate` shape. `gorm.io/driver/sqlite` (cgo) is
// swapped for `github.com/glebarez/sqlite` (a cgo-free, API-compatible
// drop-in) per DESIGN.md's dependency notes — everything else about
// the connection setup is the teacher's own code, generalized from
// morfx's stage/session tables to this engine's single run-record
// table.
package diagnostics

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"
)

// Store wraps a gorm.DB migrated for RunRecord persistence.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn (a local SQLite file path, or a libsql/Turso
// URL) and migrates the run_records table, following the teacher's
// `db.Connect` dialector-selection shape exactly.
func Open(dsn string, debug bool) (*Store, error) {
	if !isURL(dsn) {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("diagnostics: creating database directory: %w", err)
			}
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	if isURL(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		if token := os.Getenv("ESENGINE_LIBSQL_AUTH_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("diagnostics: creating libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = sqlite.Dialector{
			DriverName: "libsql",
			Conn:       conn,
			DSN:        dsn,
		}
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("diagnostics: connecting: %w", err)
	}

	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("diagnostics: migrating: %w", err)
	}

	return &Store{db: db}, nil
}

func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql")
}

// Record persists rec, encoding backtrace as the record's JSON
// backtrace column.
func (s *Store) Record(rec *RunRecord, backtrace []string) error {
	if len(backtrace) > 0 {
		raw, err := json.Marshal(backtrace)
		if err != nil {
			return fmt.Errorf("diagnostics: encoding backtrace: %w", err)
		}
		rec.Backtrace = datatypes.JSON(raw)
	}
	return s.db.Create(rec).Error
}

// Recent returns the most recently started run records, newest first,
// capped at limit.
func (s *Store) Recent(limit int) ([]RunRecord, error) {
	var out []RunRecord
	err := s.db.Order("started_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// Close releases the underlying *sql.DB connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
