package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.SessionTTL != 600*time.Second {
		t.Fatalf("expected default TTL 600s, got %v", cfg.SessionTTL)
	}
	if cfg.PhaseBTimeLimit != 30*time.Second {
		t.Fatalf("expected default phase B limit 30s, got %v", cfg.PhaseBTimeLimit)
	}
	if cfg.OracleTimeout != 10*time.Second {
		t.Fatalf("expected default oracle timeout 10s, got %v", cfg.OracleTimeout)
	}
	if cfg.OrderedAnswers {
		t.Fatalf("ordered answers must default off")
	}
	if cfg.InitRateLimit != 30 || cfg.InitRateWindow != time.Minute {
		t.Fatalf("unexpected init rate defaults: %d per %v", cfg.InitRateLimit, cfg.InitRateWindow)
	}
	if len(cfg.ClientAllowlist) != 0 {
		t.Fatalf("expected empty allowlist by default")
	}
}

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"MASTER_SECRET":              "x",
		"PORT":                       "1234",
		"SESSION_TTL_SECONDS":        "900",
		"PHASE_B_TIME_LIMIT_SECONDS": "45",
		"ORACLE_URL":                 "http://oracle:9000",
		"ORACLE_TIMEOUT_MS":          "2500",
		"CLIENT_ALLOWLIST":           "cust_alpha, cust_beta",
		"PHASE_B_ORDERED_ANSWERS":    "true",
		"INIT_RATE_LIMIT":            "5",
		"INIT_RATE_WINDOW_SECONDS":   "10",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
	if cfg.SessionTTL != 900*time.Second {
		t.Fatalf("expected TTL 900s, got %v", cfg.SessionTTL)
	}
	if cfg.PhaseBTimeLimit != 45*time.Second {
		t.Fatalf("expected phase B limit 45s, got %v", cfg.PhaseBTimeLimit)
	}
	if cfg.OracleURL != "http://oracle:9000" {
		t.Fatalf("unexpected oracle url %q", cfg.OracleURL)
	}
	if cfg.OracleTimeout != 2500*time.Millisecond {
		t.Fatalf("unexpected oracle timeout %v", cfg.OracleTimeout)
	}
	if len(cfg.ClientAllowlist) != 2 || cfg.ClientAllowlist[1] != "cust_beta" {
		t.Fatalf("unexpected allowlist %v", cfg.ClientAllowlist)
	}
	if !cfg.OrderedAnswers {
		t.Fatalf("expected ordered answers on")
	}
	if cfg.InitRateLimit != 5 || cfg.InitRateWindow != 10*time.Second {
		t.Fatalf("unexpected init rate: %d per %v", cfg.InitRateLimit, cfg.InitRateWindow)
	}
}

func TestLoadConfigFromEnv_InvalidValues(t *testing.T) {
	cases := []mapEnv{
		{"MASTER_SECRET": "x", "PORT": "0"},
		{"MASTER_SECRET": "x", "PORT": "notanumber"},
		{"MASTER_SECRET": "x", "SESSION_TTL_SECONDS": "-1"},
		{"MASTER_SECRET": "x", "ORACLE_TIMEOUT_MS": "0"},
		{"MASTER_SECRET": "x", "PHASE_B_ORDERED_ANSWERS": "maybe"},
		{"MASTER_SECRET": "x", "INIT_RATE_LIMIT": "0"},
		{"MASTER_SECRET": "x", "INIT_RATE_WINDOW_SECONDS": "-5"},
	}
	for _, env := range cases {
		if _, err := LoadConfigFromEnv(env); err == nil {
			t.Fatalf("expected error for %v", env)
		}
	}
}
