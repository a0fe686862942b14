// Package dbtest opens isolated in-memory sqlite databases for repository tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Open returns a fresh schema named after prefix; every call gets its own database.
func Open(t testing.TB, prefix string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+prefix+"_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Client wraps Open in a *db.Client so services get the production tx runner.
func Client(t testing.TB, prefix string) *db.Client {
	t.Helper()
	return db.FromConn(Open(t, prefix))
}
