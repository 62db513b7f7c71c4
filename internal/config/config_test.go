package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage != StoragePostgres {
		t.Errorf("expected postgres storage, got %s", cfg.Storage)
	}
	if cfg.PollTimeout != 25*time.Second {
		t.Errorf("expected 25s poll timeout, got %s", cfg.PollTimeout)
	}
	if cfg.Addr() != ":"+cfg.ServerPort {
		t.Errorf("unexpected addr %s", cfg.Addr())
	}
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("STORAGE", "memory")

	cfg, err := Load([]string{"--port", "9000", "--rate-limit", "5"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != "9000" {
		t.Errorf("expected port 9000, got %s", cfg.ServerPort)
	}
	if cfg.RateLimit != 5 {
		t.Errorf("expected rate limit 5, got %d", cfg.RateLimit)
	}
	if cfg.Storage != StorageMemory {
		t.Errorf("expected memory storage from env, got %s", cfg.Storage)
	}
	if cfg.DBHost != "db.internal" {
		t.Errorf("expected db host from env, got %s", cfg.DBHost)
	}
}

func TestLoad_RejectsUnknownStorage(t *testing.T) {
	if _, err := Load([]string{"--storage", "sqlite"}); err == nil {
		t.Error("expected an error for an invalid storage choice")
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p@ss", DBHost: "h", DBPort: "5432", DBName: "d"}
	want := "postgres://u:p%40ss@h:5432/d?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
