package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := New(context.Background(), "sqlite", path, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()
	if err := sqlDB.Ping(); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), "oracle", "x", nil); err == nil {
		t.Error("New() with unknown driver = nil error")
	}
}

func TestNewRoutesGormLogsToZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	db, err := New(context.Background(), "sqlite", filepath.Join(t.TempDir(), "history.db"), zap.New(core))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.Exec("SELECT * FROM missing_table").Error; err == nil {
		t.Fatal("query on missing table succeeded")
	}

	entries := logs.FilterLoggerName("gorm").All()
	if len(entries) == 0 {
		t.Fatal("no gorm entry reached the zap logger")
	}
	msg := entries[0].Message
	if !strings.Contains(msg, "missing_table") || strings.Contains(msg, "\x1b[") {
		t.Errorf("gorm entry = %q", msg)
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
}
