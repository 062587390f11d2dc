package v1

import (
	"testing"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNewDatabaseConfig(t *testing.T) {
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_USERNAME", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_SQLITE_PATH", "RUN_MIGRATION"} {
		t.Setenv(key, "")
	}

	config := NewDatabaseConfig()
	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, "5432", config.Port)
	assert.Equal(t, "postgres", config.Username)
	assert.Equal(t, "concierge", config.Database)
	assert.Equal(t, "require", config.SSLMode)
	assert.Equal(t, 25, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, time.Hour, config.ConnMaxLifetime)
	assert.False(t, config.RunMigration)
	assert.Empty(t, config.SQLitePath)
}

func TestNewDatabaseConfig_WithEnvVars(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "tc")
	t.Setenv("DB_SSLMODE", "disable")
	t.Setenv("RUN_MIGRATION", "true")

	config := NewDatabaseConfig()
	assert.Equal(t, "db.internal", config.Host)
	assert.True(t, config.RunMigration)
	assert.Equal(t, "host=db.internal port=5433 user=postgres password=password dbname=tc sslmode=disable", config.DSN())
}

func TestConnectGormDB_SQLiteWithMigration(t *testing.T) {
	db, err := ConnectGormDB(&DatabaseConfig{SQLitePath: ":memory:", RunMigration: true})
	require.NoError(t, err)

	for _, m := range AllModels() {
		assert.True(t, db.Migrator().HasTable(m))
	}

	agent := models.AgentProfile{AgentID: models.NewID(models.PrefixAgent), FirstName: "A", LastName: "B", Email: "a@x.com"}
	require.NoError(t, db.Create(&agent).Error)
	dup := models.AgentProfile{AgentID: models.NewID(models.PrefixAgent), FirstName: "C", LastName: "D", Email: "a@x.com"}
	assert.ErrorIs(t, db.Create(&dup).Error, gorm.ErrDuplicatedKey)
}

func TestConnectGormDB_InvalidConnection(t *testing.T) {
	config := &DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "nobody",
		Password: "wrong",
		Database: "none",
		SSLMode:  "disable",
	}
	_, err := ConnectGormDB(config)
	assert.Error(t, err)
}
