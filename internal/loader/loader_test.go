package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/soilwatch/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("Validate(DefaultConfig()): %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_SOILWATCH_DSN", "/var/lib/soilwatch/data.db")

	path := writeConfig(t, `
listen: "127.0.0.1:9000"
http:
  read_timeout: 5s
  shutdown_timeout: 30
  cors_origins: ["https://dashboard.example"]
store:
  driver: sqlite3
  dsn: ${TEST_SOILWATCH_DSN}
  query_timeout: 2s
logging:
  level: debug
  json: true
export:
  enabled: true
  dir: /tmp/snapshots
  schedule: "0 3 * * *"
stats:
  accuracy: 0.02
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.HTTP.ReadTimeout.Duration() != 5*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.HTTP.ReadTimeout.Duration())
	}
	if cfg.HTTP.ShutdownTimeout.Duration() != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s from plain integer", cfg.HTTP.ShutdownTimeout.Duration())
	}
	if cfg.HTTP.WriteTimeout.Duration() != 15*time.Second {
		t.Errorf("WriteTimeout = %v, want default", cfg.HTTP.WriteTimeout.Duration())
	}
	if cfg.Store.DSN != "/var/lib/soilwatch/data.db" {
		t.Errorf("DSN = %q, want expanded variable", cfg.Store.DSN)
	}
	if cfg.Store.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, want default", cfg.Store.MaxOpenConns)
	}
	if !cfg.Logging.JSON || cfg.LogLevel().String() != "DEBUG" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Export.Enabled || cfg.Export.Compression != "zstd" {
		t.Errorf("Export = %+v", cfg.Export)
	}

	sc := ToServerConfig(cfg)
	if len(sc.CORSOrigins) != 1 || sc.ReadTimeout != 5*time.Second {
		t.Errorf("ToServerConfig = %+v", sc)
	}
	st := ToStoreConfig(cfg)
	if st.Driver != "sqlite3" || st.QueryTimeout != 2*time.Second {
		t.Errorf("ToStoreConfig = %+v", st)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() of a missing file should fail")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Store.Driver != "duckdb" {
		t.Errorf("Driver = %q, want duckdb", cfg.Store.Driver)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, "http:\n  read_timeout: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() with a bad duration should fail")
	}
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen = ""
	cfg.Store.Driver = "oracle"
	cfg.Logging.Level = "loud"
	cfg.Stats.Accuracy = 1.5
	cfg.HTTP.IdleTimeout = Duration(-time.Second)
	cfg.Mirror.Enabled = true

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	if !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("error %v should wrap ErrInvalidConfig", err)
	}
	if !errors.Is(err, errors.ErrUnknownDriver) {
		t.Errorf("error %v should wrap ErrUnknownDriver", err)
	}

	msg := err.Error()
	for _, want := range []string{"listen", "store.driver", "logging.level", "stats.accuracy", "http.idle_timeout", "mirror.url", "mirror.bucket"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidateExportSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Export.Enabled = true
	cfg.Export.Schedule = "every tuesday"
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() should reject a bad schedule")
	}

	cfg.Export.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Fatalf("disabled export should not be validated: %v", err)
	}
}

func TestValidateExportCompression(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Export.Compression = "zsdt"
	err := Validate(cfg)
	if !errors.Is(err, errors.ErrInvalidConfig) || !strings.Contains(err.Error(), "export.compression") {
		t.Fatalf("Validate() = %v, want an export.compression error", err)
	}

	cfg.Export.Compression = "gzip"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(gzip): %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SOILWATCH_LISTEN":         ":8080",
		"SOILWATCH_STORE_DRIVER":   "pgx",
		"SOILWATCH_STORE_DSN":      "postgres://soil@db/soil",
		"SOILWATCH_LOG_LEVEL":      "warn",
		"SOILWATCH_LOG_JSON":       "true",
		"SOILWATCH_MIRROR_ENABLED": "1",
		"SOILWATCH_MIRROR_TOKEN":   "secret",
		"SOILWATCH_MIRROR_URL":     "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.Mirror.URL = "http://influx:8086"
	if err := ApplyEnv(cfg, lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Listen != ":8080" || cfg.Store.Driver != "pgx" || cfg.Store.DSN != "postgres://soil@db/soil" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Logging.Level != "warn" || !cfg.Logging.JSON {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Mirror.Enabled || cfg.Mirror.Token != "secret" {
		t.Errorf("Mirror = %+v", cfg.Mirror)
	}
	if cfg.Mirror.URL != "http://influx:8086" {
		t.Errorf("empty variable should not override, URL = %q", cfg.Mirror.URL)
	}
}

func TestApplyEnvBadBool(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "SOILWATCH_EXPORT_ENABLED" {
			return "sometimes", true
		}
		return "", false
	}
	if err := ApplyEnv(DefaultConfig(), lookup); !errors.Is(err, errors.ErrInvalidValue) {
		t.Fatalf("ApplyEnv() error = %v, want ErrInvalidValue", err)
	}
	if err := ApplyEnv(DefaultConfig(), noEnv); err != nil {
		t.Fatalf("ApplyEnv(no env): %v", err)
	}
}

func TestLoadEnv(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadEnv(missing): %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SOILWATCH_TEST_LOADENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("SOILWATCH_TEST_LOADENV", "")
	os.Unsetenv("SOILWATCH_TEST_LOADENV")

	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("SOILWATCH_TEST_LOADENV"); got != "from-file" {
		t.Errorf("SOILWATCH_TEST_LOADENV = %q", got)
	}
}
