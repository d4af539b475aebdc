// internal/testdb/testdb.go

// Package testdb opens throwaway in-memory databases for tests.
package testdb

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/tackboard/tackboard/internal/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns a migrated in-memory database scoped to the test. The pool is
// pinned to a single connection so the memory database survives for the whole
// test and writers serialize instead of tripping sqlite lock errors.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_busy_timeout=5000", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrapping test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&model.User{},
		&model.Organization{},
		&model.OrganizationMember{},
		&model.Project{},
		&model.ProjectMember{},
		&model.Board{},
		&model.Column{},
		&model.Task{},
		&model.ActivityLogEntry{},
	); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
