package config

import "testing"

func TestLoad_RequiresMongoURI(t *testing.T) {
	t.Setenv("TASKCALL_MONGO_URI", "")
	t.Setenv("TASKCALL_USER", "u1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when TASKCALL_MONGO_URI is unset")
	}
}

func TestLoad_RequiresUser(t *testing.T) {
	t.Setenv("TASKCALL_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("TASKCALL_USER", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when TASKCALL_USER is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TASKCALL_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("TASKCALL_USER", "u1")
	t.Setenv("TASKCALL_DB", "")
	t.Setenv("TASKCALL_STUN", "")
	t.Setenv("TASKCALL_LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database != "taskmanager" {
		t.Errorf("expected default database, got %q", cfg.Database)
	}
	if len(cfg.STUNURLs) != 2 {
		t.Errorf("expected 2 default STUN servers, got %d", len(cfg.STUNURLs))
	}
}

func TestLoad_ParsesSTUNList(t *testing.T) {
	t.Setenv("TASKCALL_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("TASKCALL_USER", "u1")
	t.Setenv("TASKCALL_STUN", "stun:a.example:3478, stun:b.example:3478")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.STUNURLs) != 2 || cfg.STUNURLs[1] != "stun:b.example:3478" {
		t.Errorf("unexpected STUN list: %v", cfg.STUNURLs)
	}
}
