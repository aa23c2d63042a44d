package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/powersim/internal/infrastructure/config"
	"github.com/nerrad567/powersim/internal/infrastructure/database"
	"github.com/nerrad567/powersim/internal/infrastructure/logging"
	"github.com/nerrad567/powersim/internal/infrastructure/mqtt"
	"github.com/nerrad567/powersim/migrations"
)

// writeTestConfig writes a minimal config that keeps every optional
// integration off except the audit log, which goes to a temp directory.
func writeTestConfig(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
simulation:
  max_entries: 3
  update_interval: 1
  seed: 42
database:
  enabled: true
  path: %q
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
  output: stderr
api:
  host: "127.0.0.1"
  port: %d
`, filepath.Join(dir, "powersim.db"), port)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// freePort returns a port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("POWERSIM_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{})
	if err == nil {
		t.Fatal("run() should fail with an explicit missing config path")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("run() error = %v, want a not-exist error", err)
	}
}

func TestRun_InvalidFlag(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: writeTestConfig(t, freePort(t)), maxEntries: "many"})
	if err == nil {
		t.Fatal("run() should fail with a non-numeric --max-entries")
	}
}

func TestRun_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, options{configPath: writeTestConfig(t, port)}); err == nil {
		t.Fatal("run() should fail when the port is already bound")
	}
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	port := freePort(t)
	configPath := writeTestConfig(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, options{configPath: configPath})
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/devices", port)
	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("server never answered: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /devices status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("POWERSIM_CONFIG", "")

	if path, explicit := getConfigPath(options{}); path != defaultConfigPath || explicit {
		t.Errorf("getConfigPath() = (%q, %v), want (%q, false)", path, explicit, defaultConfigPath)
	}

	t.Setenv("POWERSIM_CONFIG", "/etc/powersim.yaml")
	if path, explicit := getConfigPath(options{}); path != "/etc/powersim.yaml" || !explicit {
		t.Errorf("getConfigPath() = (%q, %v), want env path", path, explicit)
	}

	if path, _ := getConfigPath(options{configPath: "flag.yaml"}); path != "flag.yaml" {
		t.Errorf("getConfigPath() = %q, want flag path to win", path)
	}
}

func TestLoadConfig_DefaultPathMissingFallsBack(t *testing.T) {
	t.Setenv("POWERSIM_CONFIG", "")
	t.Chdir(t.TempDir())

	cfg, path, err := loadConfig(options{})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if path != "(defaults)" {
		t.Errorf("path = %q, want (defaults)", path)
	}
	if cfg.API.Port != 3000 || cfg.Simulation.MaxEntries != 5 {
		t.Errorf("cfg = %+v, want built-in defaults", cfg)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		check   func(*config.Config) bool
		wantErr bool
	}{
		{
			name:  "no flags",
			opts:  options{},
			check: func(c *config.Config) bool { return c.API.Port == 3000 && c.Simulation.MaxEntries == 5 },
		},
		{
			name: "all flags",
			opts: options{maxEntries: "10", updateInterval: "5", port: "8080", seed: "7"},
			check: func(c *config.Config) bool {
				return c.Simulation.MaxEntries == 10 &&
					c.Simulation.UpdateInterval == 5 &&
					c.API.Port == 8080 &&
					c.Simulation.Seed == 7
			},
		},
		{name: "non-numeric port", opts: options{port: "http"}, wantErr: true},
		{name: "out of range port", opts: options{port: "70000"}, wantErr: true},
		{name: "zero interval", opts: options{updateInterval: "0"}, wantErr: true},
		{name: "bad seed", opts: options{seed: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			err := applyFlags(cfg, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("applyFlags() cfg = %+v", cfg)
			}
		})
	}
}

func TestRun_MigrateDown(t *testing.T) {
	configPath := writeTestConfig(t, freePort(t))
	dbPath := filepath.Join(filepath.Dir(configPath), "powersim.db")
	ctx := context.Background()

	db, err := database.Open(database.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	db.Close()

	if err := run(ctx, options{configPath: configPath, migrateDown: true}); err != nil {
		t.Fatalf("run(--migrate-down) error = %v", err)
	}

	db, err = database.Open(database.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS, ".")
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) == 0 {
		t.Errorf("status = %d applied, %d pending; want everything pending", len(applied), len(pending))
	}
}

func TestRollbackPowerLog_DatabaseDisabled(t *testing.T) {
	err := rollbackPowerLog(context.Background(), config.DatabaseConfig{Enabled: false}, logging.Default())
	if err == nil {
		t.Fatal("rollbackPowerLog() should fail when the database is disabled")
	}
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()

	if err := healthCheck(ctx, nil, nil, nil); err != nil {
		t.Errorf("healthCheck() with everything disabled error = %v", err)
	}

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := healthCheck(ctx, db, nil, nil); err != nil {
		t.Errorf("healthCheck() with open database error = %v", err)
	}

	if err := healthCheck(ctx, db, &mqtt.Client{}, nil); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("healthCheck() with disconnected MQTT error = %v, want ErrNotConnected", err)
	}

	db.Close()
	if err := healthCheck(ctx, db, nil, nil); err == nil {
		t.Error("healthCheck() should fail on a closed database")
	}
}
