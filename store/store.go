// Package store is the off-chain record store, a GORM-backed SQLite database
// holding election metadata, candidate index mappings, voter records, and
// queued reconciliation tasks. It offers per-row atomicity only; multi-row
// consistency across the ledger and this store is the coordinators' job.
package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/likith-indpro/votereum-backend/models"
)

// InMemoryDSN opens an ephemeral in-memory database, used by tests.
const InMemoryDSN = ":memory:"

const dbDirPermissions = 0o750

var gormConfig = &gorm.Config{
	Logger: logger.Default.LogMode(logger.Silent),
}

var schemaModels = []any{
	&models.Election{},
	&models.Candidate{},
	&models.VoterRecord{},
	&models.Voter{},
	&models.ReconciliationTask{},
}

// Sentinel errors mapped from the underlying database.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicate        = errors.New("record already exists")
	ErrLedgerAddressSet = errors.New("ledger address is already set")
)

// Store wraps the GORM client.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the file-backed database under dir and migrates
// the schema.
func Open(dir, filename string) (*Store, error) {
	if err := os.MkdirAll(dir, dbDirPermissions); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}
	dsn := filepath.Join(dir, filename) + "?_journal_mode=WAL&_busy_timeout=5000"
	return open(dsn)
}

// OpenInMemory opens a non-persistent database for tests.
func OpenInMemory() (*Store, error) {
	return open(InMemoryDSN)
}

func open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite database")
	}
	if err := db.AutoMigrate(schemaModels...); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	// SQLite performs best on a single connection in WAL mode.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve native sql.DB")
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err):
		return ErrDuplicate
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
