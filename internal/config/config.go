package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// SupervisorConfig bounds the per-request routing loop.
type SupervisorConfig struct {
	// MaxSpecialistMessages is the supervisor's own hard cap on specialist
	// turns before forced termination.
	MaxSpecialistMessages int `mapstructure:"max_specialist_messages"`
	// MaxEngineSteps bounds graph transitions independently of the message
	// cap, as a second line of defense against routing loops.
	MaxEngineSteps int `mapstructure:"max_engine_steps"`
	// OracleTimeoutSeconds bounds a single oracle decision call.
	OracleTimeoutSeconds int `mapstructure:"oracle_timeout_seconds"`
}

// GapThresholds makes the severity and readiness cutoffs explicit knobs
// instead of literals buried in the analyzer.
type GapThresholds struct {
	MajorBelow              float64 `mapstructure:"major_below"`
	CybersecurityMajorBelow float64 `mapstructure:"cybersecurity_major_below"`
	NeedsUpdatesBelow       float64 `mapstructure:"needs_updates_below"`
	ReadyAt                 float64 `mapstructure:"ready_at"`
}

type KnowledgeConfig struct {
	LLMBaseURL       string `mapstructure:"llm_base_url"`
	LLMModel         string `mapstructure:"llm_model"`
	EmbeddingBaseURL string `mapstructure:"embedding_base_url"`
	EmbeddingModel   string `mapstructure:"embedding_model"`
	RedisAddr        string `mapstructure:"redis_addr"`
	CorpusDir        string `mapstructure:"corpus_dir"`
	TopK             int    `mapstructure:"top_k"`
}

type StreamingConfig struct {
	RingCapacity int `mapstructure:"ring_capacity"`
}

type Features struct {
	Observability ObservabilityConfig `mapstructure:"observability"`
	Supervisor    SupervisorConfig    `mapstructure:"supervisor"`
	Gap           GapThresholds       `mapstructure:"gap"`
	Knowledge     KnowledgeConfig     `mapstructure:"knowledge"`
	Streaming     StreamingConfig     `mapstructure:"streaming"`
}

// Load reads features.yaml from CONFIG_PATH or /app/config/features.yaml.
func Load() (*Features, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "/app/config/features.yaml"
	}

	v := viper.New()
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f Features
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &f, nil
}

// SupervisorFromEnvOrDefaults merges supervisor knobs: env overrides first,
// then config file, then defaults matching the routing contract.
func SupervisorFromEnvOrDefaults(f *Features) SupervisorConfig {
	sc := SupervisorConfig{
		MaxSpecialistMessages: 6,
		MaxEngineSteps:        15,
		OracleTimeoutSeconds:  30,
	}
	if f != nil {
		if f.Supervisor.MaxSpecialistMessages > 0 {
			sc.MaxSpecialistMessages = f.Supervisor.MaxSpecialistMessages
		}
		if f.Supervisor.MaxEngineSteps > 0 {
			sc.MaxEngineSteps = f.Supervisor.MaxEngineSteps
		}
		if f.Supervisor.OracleTimeoutSeconds > 0 {
			sc.OracleTimeoutSeconds = f.Supervisor.OracleTimeoutSeconds
		}
	}
	if v := os.Getenv("SUPERVISOR_MAX_SPECIALIST_MESSAGES"); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			sc.MaxSpecialistMessages = x
		}
	}
	if v := os.Getenv("SUPERVISOR_MAX_ENGINE_STEPS"); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			sc.MaxEngineSteps = x
		}
	}
	if v := os.Getenv("ORACLE_TIMEOUT_SECONDS"); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			sc.OracleTimeoutSeconds = x
		}
	}
	return sc
}

// OracleTimeout returns the oracle call budget as a duration.
func (sc SupervisorConfig) OracleTimeout() time.Duration {
	return time.Duration(sc.OracleTimeoutSeconds) * time.Second
}

// GapFromEnvOrDefaults merges gap thresholds. Defaults mirror the published
// analyzer behavior: cybersecurity gaps get a slightly higher major cutoff.
func GapFromEnvOrDefaults(f *Features) GapThresholds {
	gt := GapThresholds{
		MajorBelow:              0.3,
		CybersecurityMajorBelow: 0.4,
		NeedsUpdatesBelow:       0.7,
		ReadyAt:                 0.9,
	}
	if f != nil {
		if f.Gap.MajorBelow > 0 {
			gt.MajorBelow = f.Gap.MajorBelow
		}
		if f.Gap.CybersecurityMajorBelow > 0 {
			gt.CybersecurityMajorBelow = f.Gap.CybersecurityMajorBelow
		}
		if f.Gap.NeedsUpdatesBelow > 0 {
			gt.NeedsUpdatesBelow = f.Gap.NeedsUpdatesBelow
		}
		if f.Gap.ReadyAt > 0 {
			gt.ReadyAt = f.Gap.ReadyAt
		}
	}
	if v := os.Getenv("GAP_MAJOR_BELOW"); v != "" {
		var x float64
		_, _ = fmt.Sscanf(v, "%f", &x)
		if x > 0 {
			gt.MajorBelow = x
		}
	}
	if v := os.Getenv("GAP_NEEDS_UPDATES_BELOW"); v != "" {
		var x float64
		_, _ = fmt.Sscanf(v, "%f", &x)
		if x > 0 {
			gt.NeedsUpdatesBelow = x
		}
	}
	return gt
}

// MetricsPort returns port from config or METRICS_PORT, falling back to
// defaultPort.
func MetricsPort(defaultPort int) int {
	if p := os.Getenv("METRICS_PORT"); p != "" {
		var v int
		_, _ = fmt.Sscanf(p, "%d", &v)
		if v > 0 {
			return v
		}
	}
	if f, err := Load(); err == nil {
		if f.Observability.Metrics.Port > 0 {
			return f.Observability.Metrics.Port
		}
	}
	return defaultPort
}
