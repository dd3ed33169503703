package database

import (
	"log"
	"strings"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"quill/config"
)

var (
	db   *gorm.DB
	dbMu sync.Mutex
)

// GetDB returns the process-wide database handle, opening it on first
// use with the configured path.
func GetDB() *gorm.DB {
	dbMu.Lock()
	defer dbMu.Unlock()

	if db == nil {
		conf := config.Get()
		opened, err := Open(conf.DatabasePath, conf.Debug)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		db = opened
	}

	return db
}

// SetDB swaps the active handle; tests use this with an in-memory store.
func SetDB(gdb *gorm.DB) {
	dbMu.Lock()
	defer dbMu.Unlock()
	db = gdb
}

func CloseDB() {
	dbMu.Lock()
	defer dbMu.Unlock()

	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.Close()
	}
	db = nil
}

// Open connects to the sqlite file at path and migrates the schema.
// Foreign keys are switched on in the DSN so every pooled connection
// enforces the cascade and set-null constraints.
func Open(path string, debug bool) (*gorm.DB, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, err
	}

	if err := gdb.AutoMigrate(
		&User{},
		&Category{},
		&Location{},
		&Post{},
		&Comment{},
	); err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return gdb, nil
}
