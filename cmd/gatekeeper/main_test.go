package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/nerrad567/gatekeeper-core/migrations"

	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/config"
	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/database"
)

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// writeConfig writes a minimal sqlite configuration into a temp dir and
// points GATEKEEPER_CONFIG at it. It returns the database path.
func writeConfig(t *testing.T, port int) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := fmt.Sprintf(`
database:
  driver: sqlite
  path: %q
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: %d

websocket:
  send_buffer: 16

logging:
  level: error
  format: text
`, filepath.Join(tmpDir, "gatekeeper.db"), port)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GATEKEEPER_CONFIG", configPath)
	for _, name := range []string{"GATEKEEPER_DB_DRIVER", "GATEKEEPER_DB_PATH", "GATEKEEPER_API_HOST", "GATEKEEPER_API_PORT", "PORT"} {
		t.Setenv(name, "")
	}
	return filepath.Join(tmpDir, "gatekeeper.db")
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GATEKEEPER_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_UnsupportedDriver verifies run stops at validation.
func TestRun_UnsupportedDriver(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("database:\n  driver: oracle\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GATEKEEPER_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with unsupported driver")
	}
}

// TestRun_StartAndShutdown starts the full stack on sqlite, checks the
// health endpoint and then cancels the context.
func TestRun_StartAndShutdown(t *testing.T) {
	port := freePort(t)
	writeConfig(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET /health status = %d, want %d", resp.StatusCode, http.StatusOK)
			}
			break
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

// TestGetConfigPath_Default verifies the fallback when no file is present.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GATEKEEPER_CONFIG", "")

	// Tests run from cmd/gatekeeper, which has no configs directory.
	if path := getConfigPath(); path != "" {
		t.Errorf("getConfigPath() = %q, want empty", path)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("GATEKEEPER_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestCacheConfig verifies the TTL conversion from seconds.
func TestCacheConfig(t *testing.T) {
	t.Setenv("GATEKEEPER_REDIS_HOST", "")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.Cache.TTL = 42

	got := cacheConfig(cfg)
	if got.TTL != 42*time.Second {
		t.Errorf("TTL = %v, want 42s", got.TTL)
	}
	if got.Addr() != "localhost:6379" {
		t.Errorf("Addr() = %q, want localhost:6379", got.Addr())
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		migrateDown bool
		wantErr     bool
	}{
		{"no flags", nil, false, false},
		{"migrate down", []string{"-migrate-down"}, true, false},
		{"unknown flag", []string{"-nope"}, false, true},
		{"stray argument", []string{"serve"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			opts, err := parseArgs(tt.args, &out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseArgs(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
			}
			if opts.migrateDown != tt.migrateDown {
				t.Errorf("migrateDown = %v, want %v", opts.migrateDown, tt.migrateDown)
			}
		})
	}
}

// TestMigrateDown verifies the rollback command drops the students table.
func TestMigrateDown(t *testing.T) {
	dbPath := writeConfig(t, freePort(t))
	ctx := context.Background()

	db, err := database.Open(database.Config{Driver: config.DriverSQLite, Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	db.Close()

	if err := migrateDown(ctx); err != nil {
		t.Fatalf("migrateDown() error = %v", err)
	}

	db, err = database.Open(database.Config{Driver: config.DriverSQLite, Path: dbPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'students'",
	).Scan(&n); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if n != 0 {
		t.Error("students table still exists after migrateDown")
	}
}
