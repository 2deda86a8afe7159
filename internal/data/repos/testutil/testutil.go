// Package testutil opens an isolated, migrated store per test.
//
// By default each test gets a fresh SQLite file. Set TEST_POSTGRES_DSN to run
// the same tests against Postgres; each test then gets its own schema.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/tastequest-backend/internal/data/db"
	types "github.com/yungbote/tastequest-backend/internal/domain"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}
}

// DB returns a migrated database that is discarded when the test ends.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	var (
		gdb *gorm.DB
		err error
	)
	if dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN")); dsn != "" {
		gdb, err = postgresSchema(tb, dsn)
	} else {
		gdb, err = sqliteFile(tb)
	}
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

// IsSQLite reports whether gdb runs on the SQLite driver.
func IsSQLite(gdb *gorm.DB) bool {
	return gdb != nil && gdb.Dialector != nil && gdb.Dialector.Name() == "sqlite"
}

func sqliteFile(tb testing.TB) (*gorm.DB, error) {
	path := filepath.Join(tb.TempDir(), "quest.db")
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return gdb, nil
}

func postgresSchema(tb testing.TB, dsn string) (*gorm.DB, error) {
	admin, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	adminSQL, err := admin.DB()
	if err != nil {
		return nil, err
	}
	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec(fmt.Sprintf(`CREATE SCHEMA %q`, schema)).Error; err != nil {
		_ = adminSQL.Close()
		return nil, err
	}
	gdb, err := gorm.Open(postgres.Open(withSearchPath(dsn, schema)), gormConfig())
	if err != nil {
		_ = adminSQL.Close()
		return nil, err
	}
	tb.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = admin.WithContext(ctx).Exec(fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, schema)).Error
		_ = adminSQL.Close()
	})
	return gdb, nil
}

func withSearchPath(dsn, schema string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

// Tx opens a transaction that is rolled back when the test ends.
func Tx(tb testing.TB, gdb *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := gdb.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

// SeedProgress writes a progress row directly, bypassing the stamp aggregate.
func SeedProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, guestID string, total, streak int, registered string) *types.GuestProgress {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.GuestProgress{
		ID:               uuid.New(),
		GuestID:          guestID,
		TotalStamps:      total,
		CurrentStreak:    streak,
		LongestStreak:    streak,
		LastStampDate:    registered,
		RegistrationDate: registered,
		UnlockedRewards:  types.EncodeRewards(nil),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}
