package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         int
	MasterSecret string
	GinMode      string
	TLSCertFile  string
	TLSKeyFile   string

	SessionTTL      time.Duration
	PhaseATimeLimit time.Duration
	PhaseBTimeLimit time.Duration
	TokenExpiry     time.Duration

	OracleURL     string
	OracleTimeout time.Duration

	// InitRateLimit bounds session creation per client per window.
	InitRateLimit  int
	InitRateWindow time.Duration

	// ClientAllowlist admits only the listed client ids; empty admits all.
	ClientAllowlist []string

	// OrderedAnswers enables the legacy ordered phase B comparison.
	OrderedAnswers bool
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:            3000,
		GinMode:         "release",
		SessionTTL:      600 * time.Second,
		PhaseATimeLimit: 300 * time.Second,
		PhaseBTimeLimit: 30 * time.Second,
		TokenExpiry:     600 * time.Second,
		OracleURL:       "http://127.0.0.1:9000",
		OracleTimeout:   10 * time.Second,
		InitRateLimit:   30,
		InitRateWindow:  time.Minute,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	var err error
	if cfg.SessionTTL, err = secondsVar(env, "SESSION_TTL_SECONDS", cfg.SessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.PhaseATimeLimit, err = secondsVar(env, "PHASE_A_TIME_LIMIT_SECONDS", cfg.PhaseATimeLimit); err != nil {
		return Config{}, err
	}
	if cfg.PhaseBTimeLimit, err = secondsVar(env, "PHASE_B_TIME_LIMIT_SECONDS", cfg.PhaseBTimeLimit); err != nil {
		return Config{}, err
	}
	if cfg.TokenExpiry, err = secondsVar(env, "TOKEN_EXPIRY_SECONDS", cfg.TokenExpiry); err != nil {
		return Config{}, err
	}

	if raw := env.Getenv("ORACLE_URL"); raw != "" {
		cfg.OracleURL = raw
	}
	if raw := env.Getenv("ORACLE_TIMEOUT_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return Config{}, fmt.Errorf("invalid ORACLE_TIMEOUT_MS")
		}
		cfg.OracleTimeout = time.Duration(ms) * time.Millisecond
	}

	if raw := env.Getenv("INIT_RATE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid INIT_RATE_LIMIT")
		}
		cfg.InitRateLimit = limit
	}
	if cfg.InitRateWindow, err = secondsVar(env, "INIT_RATE_WINDOW_SECONDS", cfg.InitRateWindow); err != nil {
		return Config{}, err
	}

	if raw := env.Getenv("CLIENT_ALLOWLIST"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.ClientAllowlist = append(cfg.ClientAllowlist, id)
			}
		}
	}

	if raw := env.Getenv("PHASE_B_ORDERED_ANSWERS"); raw != "" {
		ordered, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PHASE_B_ORDERED_ANSWERS")
		}
		cfg.OrderedAnswers = ordered
	}

	return cfg, nil
}

func secondsVar(env Env, key string, fallback time.Duration) (time.Duration, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return time.Duration(seconds) * time.Second, nil
}
