package config

import "testing"

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.PersistenceEnabled {
		t.Error("expected persistence disabled by default")
	}
	if cfg.AutosaveThreshold != -1 {
		t.Errorf("expected autosave disabled (-1) by default, got %d", cfg.AutosaveThreshold)
	}
	if cfg.BindPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.BindPort)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("VECTORCORE_PERSISTENCE_ENABLED", "true")
	t.Setenv("VECTORCORE_AUTOSAVE_THRESHOLD", "100")
	t.Setenv("VECTORCORE_BIND_PORT", "9090")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if !cfg.PersistenceEnabled {
		t.Error("expected persistence enabled from env override")
	}
	if cfg.AutosaveThreshold != 100 {
		t.Errorf("expected threshold 100, got %d", cfg.AutosaveThreshold)
	}
	if cfg.BindPort != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.BindPort)
	}
}

func TestFromEnvRejectsInvalidThreshold(t *testing.T) {
	t.Setenv("VECTORCORE_AUTOSAVE_THRESHOLD", "-5")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for threshold below -1")
	}
}

func TestFromEnvRejectsInvalidPort(t *testing.T) {
	t.Setenv("VECTORCORE_BIND_PORT", "70000")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
