// Package testing provides throwaway Postgres databases and fixtures for the integration tests
package testing

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/amirphl/detailing-pricing/migrations"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDBConfig is the Postgres server the integration tests create their databases on.
type TestDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	SSLMode  string
}

// GetTestDBConfig reads TEST_DB_* variables.
func GetTestDBConfig() *TestDBConfig {
	return &TestDBConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		SSLMode:  getEnv("TEST_DB_SSL_MODE", "disable"),
	}
}

// dsn targets dbName, or the server's default database when dbName is empty.
func (c *TestDBConfig) dsn(dbName string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.SSLMode)
	if dbName != "" {
		dsn += " dbname=" + dbName
	}
	return dsn
}

// TestDB is a migrated pricing database that lives for one test.
type TestDB struct {
	DB     *gorm.DB
	Name   string
	config *TestDBConfig
}

func openSilent(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// SetupTestDB creates pricing_test_<unix>_<rand> and applies the schema.
func SetupTestDB() (*TestDB, error) {
	cfg := GetTestDBConfig()
	name := fmt.Sprintf("pricing_test_%d_%d", time.Now().Unix(), rand.Intn(10000))

	admin, err := openSilent(cfg.dsn(""))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	err = admin.Exec("CREATE DATABASE " + name).Error
	closeGorm(admin)
	if err != nil {
		return nil, fmt.Errorf("failed to create test database %s: %w", name, err)
	}

	db, err := openSilent(cfg.dsn(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database %s: %w", name, err)
	}
	tdb := &TestDB{DB: db, Name: name, config: cfg}

	if err := applySchema(cfg.dsn(name)); err != nil {
		_ = tdb.TeardownTestDB()
		return nil, fmt.Errorf("failed to apply schema to %s: %w", name, err)
	}
	return tdb, nil
}

// TeardownTestDB closes the pool, kicks remaining sessions and drops the database.
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	closeGorm(tdb.DB)

	admin, err := openSilent(tdb.config.dsn(""))
	if err != nil {
		slog.Warn("test db cleanup: connect failed", "database", tdb.Name, "error", err)
		return err
	}
	defer closeGorm(admin)

	if err := admin.Exec(
		"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = ? AND pid <> pg_backend_pid()",
		tdb.Name,
	).Error; err != nil {
		slog.Warn("test db cleanup: terminate sessions failed", "database", tdb.Name, "error", err)
	}

	if err := admin.Exec("DROP DATABASE IF EXISTS " + tdb.Name).Error; err != nil {
		slog.Warn("test db cleanup: drop failed", "database", tdb.Name, "error", err)
		return err
	}
	return nil
}

// ClearAllTables empties the pricing tables, children first, and resets their sequences.
func (tdb *TestDB) ClearAllTables() error {
	return tdb.DB.Exec("TRUNCATE TABLE price_history_entries, dynamic_pricings, services RESTART IDENTITY CASCADE").Error
}

// applySchema runs the embedded migrations in file-name order over a plain lib/pq connection.
func applySchema(dsn string) error {
	names, err := fs.Glob(migrations.Files, "*.sql")
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no migrations embedded")
	}
	sort.Strings(names)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, name := range names {
		stmt, err := fs.ReadFile(migrations.Files, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.Exec(string(stmt)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// TestWithDB runs fn against a fresh database and drops it afterwards.
func TestWithDB(fn func(*TestDB) error) error {
	tdb, err := SetupTestDB()
	if err != nil {
		return fmt.Errorf("failed to setup test database: %w", err)
	}
	defer func() {
		_ = tdb.TeardownTestDB()
	}()
	return fn(tdb)
}

func CreateTestContext() context.Context {
	return context.Background()
}

// IsAvailable reports whether the test server accepts connections within two seconds.
func IsAvailable() bool {
	db, err := sql.Open("postgres", GetTestDBConfig().dsn("")+" connect_timeout=2")
	if err != nil {
		return false
	}
	defer db.Close()
	return db.Ping() == nil
}
