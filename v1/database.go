package v1

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/concierge-tc/portal-backend/shared/utils"
	"github.com/concierge-tc/portal-backend/v1/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DatabaseConfig holds GORM database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// SQLitePath switches to the SQLite driver for local development when set
	SQLitePath   string
	RunMigration bool
}

// NewDatabaseConfig reads the DB_* environment variables
func NewDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:            utils.GetEnvOrDefault("DB_HOST", "localhost"),
		Port:            utils.GetEnvOrDefault("DB_PORT", "5432"),
		Username:        utils.GetEnvOrDefault("DB_USERNAME", "postgres"),
		Password:        utils.GetEnvOrDefault("DB_PASSWORD", "password"),
		Database:        utils.GetEnvOrDefault("DB_NAME", "concierge"),
		SSLMode:         utils.GetEnvOrDefault("DB_SSLMODE", "require"),
		MaxOpenConns:    utils.GetEnvIntOrDefault("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    utils.GetEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		SQLitePath:      utils.GetEnvOrDefault("DB_SQLITE_PATH", ""),
		RunMigration:    utils.GetEnvBoolOrDefault("RUN_MIGRATION", false),
	}
}

// DSN returns the Postgres connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// AllModels lists every table in migration order
func AllModels() []interface{} {
	return []interface{}{
		&models.AgentProfile{},
		&models.Property{},
		&models.Transaction{},
		&models.Client{},
		&models.OfferRequest{},
		&models.Vendor{},
		&models.SetupLinkJob{},
	}
}

// AutoMigrate creates or updates every table
func AutoMigrate(db *gorm.DB) error {
	slog.Info("Running GORM auto-migration")
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}
	slog.Info("GORM auto-migration completed successfully")
	return nil
}

// ConnectGormDB opens the database, configures the pool and optionally migrates.
// TranslateError is enabled so unique violations surface as gorm.ErrDuplicatedKey.
func ConnectGormDB(config *DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	if config.SQLitePath != "" {
		dialector = sqlite.Open(config.SQLitePath)
	} else {
		dialector = postgres.Open(config.DSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if config.SQLitePath != "" {
		// SQLite serialises writers; one connection also keeps ":memory:" databases shared
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to database with GORM",
		"dialect", db.Dialector.Name(),
		"host", config.Host,
		"database", config.Database)

	if config.RunMigration {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	} else {
		slog.Info("Database connected (migration skipped)")
	}

	return db, nil
}
