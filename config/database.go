package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseSettings describes one relational store. The same shape is used for
// the primary work order database (DB_*) and an optional separate ledger database (LEDGER_DB_*).
type DatabaseSettings struct {
	Driver   string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	// DSN overrides the discrete fields (sqlite file path, full postgres DSN).
	DSN     string
	SSLMode string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// DatabaseSettingsFromEnv reads <prefix>DRIVER, <prefix>USER, ... (prefix "DB_" or "LEDGER_DB_").
func DatabaseSettingsFromEnv(prefix string) DatabaseSettings {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv(prefix + "DRIVER")))
	if driver == "" {
		driver = DriverMySQL
	}
	return DatabaseSettings{
		Driver:          driver,
		User:            os.Getenv(prefix + "USER"),
		Password:        os.Getenv(prefix + "PASSWORD"),
		Host:            os.Getenv(prefix + "HOST"),
		Port:            os.Getenv(prefix + "PORT"),
		Name:            os.Getenv(prefix + "NAME"),
		DSN:             strings.TrimSpace(os.Getenv(prefix + "DSN")),
		SSLMode:         os.Getenv(prefix + "SSLMODE"),
		MaxOpenConns:    IntFromEnv(prefix+"MAX_OPEN_CONNS", 10),
		MaxIdleConns:    IntFromEnv(prefix+"MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(IntFromEnv(prefix+"CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second,
		ConnMaxIdleTime: time.Duration(IntFromEnv(prefix+"CONN_MAX_IDLE_TIME_SECONDS", 60)) * time.Second,
	}
}

// Configured reports whether enough settings are present to attempt a connection.
func (s DatabaseSettings) Configured() bool {
	return s.DSN != "" || s.Host != ""
}

func (s DatabaseSettings) mysqlDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	cfg := mysqlDriver.NewConfig()
	cfg.User = s.User
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%s", s.Host, s.Port)
	// Cloud Run + Cloud SQL: when DB_HOST is "/cloudsql/<CONNECTION_NAME>",
	// connect using a Unix domain socket provided by Cloud SQL Auth Proxy.
	if strings.HasPrefix(s.Host, "/cloudsql/") {
		cfg.Net = "unix"
		cfg.Addr = s.Host
	}
	cfg.DBName = s.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// Affected rows must count matched rows, otherwise an UPDATE that writes
	// identical values looks like a missing incident.
	cfg.ClientFoundRows = true
	// Applied per connection, so every pooled session runs READ COMMITTED.
	cfg.Params = map[string]string{"transaction_isolation": "'READ-COMMITTED'"}
	return cfg.FormatDSN()
}

func (s DatabaseSettings) postgresDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	sslMode := s.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		s.Host, s.User, s.Password, s.Name, s.Port, sslMode)
}

func (s DatabaseSettings) sqliteDSN() string {
	if s.DSN != "" {
		return s.DSN
	}
	if s.Name != "" {
		return s.Name
	}
	return "workorders.db"
}

func (s DatabaseSettings) dialector() (gorm.Dialector, error) {
	switch s.Driver {
	case DriverMySQL:
		return mysql.Open(s.mysqlDSN()), nil
	case DriverPostgres:
		return postgres.Open(s.postgresDSN()), nil
	case DriverSQLite:
		return sqlite.Open(s.sqliteDSN()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", s.Driver)
}

// OpenDatabase makes a single connection attempt and tunes the pool.
func OpenDatabase(s DatabaseSettings) (*gorm.DB, error) {
	dialector, err := s.dialector()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, initConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if s.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(s.MaxOpenConns)
	}
	if s.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(s.MaxIdleConns)
	}
	if s.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(s.ConnMaxLifetime)
	}
	if s.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(s.ConnMaxIdleTime)
	}

	if s.Driver == DriverSQLite {
		// WAL for concurrent readers during writes, busy timeout instead of SQLITE_BUSY.
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			log.Printf("sqlite: failed to enable WAL: %v", err)
		}
		if err := db.Exec("PRAGMA busy_timeout=5000").Error; err != nil {
			log.Printf("sqlite: failed to set busy timeout: %v", err)
		}
	}

	if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	return db, nil
}

// ConnectDatabaseWithRetry retries OpenDatabase with capped exponential backoff until ctx is done.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry(ctx context.Context, s DatabaseSettings) (*gorm.DB, error) {
	var attempt int
	for {
		attempt++
		db, err := OpenDatabase(s)
		if err == nil {
			log.Printf("connected to %s database (attempt=%d)", s.Driver, attempt)
			return db, nil
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect %s database (attempt=%d): %v; retrying in %s", s.Driver, attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect %s database: %w (last error: %v)", s.Driver, ctx.Err(), err)
		case <-time.After(sleep):
		}
	}
}

// CloseDatabase closes the pool behind db, ignoring a nil handle.
func CloseDatabase(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

// IntFromEnv parses key as an int, def when unset or malformed.
func IntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// InitConfig Initialize Config
func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// InitLog Connection Log Configuration
func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Output to standard output
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error, // Adjust log level as needed
			SlowThreshold: time.Second,
		},
	)
}

// InitNamingStrategy Init NamingStrategy
func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
