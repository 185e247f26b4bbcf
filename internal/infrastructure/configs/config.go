package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/wschat/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Auth    AuthConfig    `koanf:"auth"`
	Rooms   []string      `koanf:"rooms"`
	Limits  LimitsConfig  `koanf:"limits"`
	Tracing TracingConfig `koanf:"tracing"`
}

type ServerConfig struct {
	Address          string        `koanf:"address"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
}

// LimitsConfig caps outgoing chat messages per room. A zero value for
// either field disables the guard.
type LimitsConfig struct {
	Messages int           `koanf:"messages"`
	Window   time.Duration `koanf:"window"`
}

// AuthConfig selects an authentication method; exactly one of the
// fields should be set.
type AuthConfig struct {
	UKey     string `koanf:"ukey"`
	APIKey   string `koanf:"api_key"`
	Login    string `koanf:"login"`
	Password string `koanf:"password"`
	Token    string `koanf:"token"`
}

type TracingConfig struct {
	Enabled      bool   `koanf:"enabled"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load from YAML file if it exists
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply defaults and environment variable overrides
	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "server.address", "ws://localhost:8080/ws")
	setDefault(k, "server.handshake_timeout", 10*time.Second)

	setDefault(k, "limits.messages", 0)
	setDefault(k, "limits.window", time.Minute)

	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.otlp_endpoint", "http://localhost:4318")
}

func applyEnvOverrides(k *koanf.Koanf) {
	if addr := env.GetString("WSCHAT_SERVER_ADDRESS", ""); addr != "" {
		k.Set("server.address", addr)
	}
	if timeout := env.GetInt("WSCHAT_HANDSHAKE_TIMEOUT_SECONDS", 0); timeout > 0 {
		k.Set("server.handshake_timeout", time.Duration(timeout)*time.Second)
	}

	if ukey := env.GetString("WSCHAT_UKEY", ""); ukey != "" {
		k.Set("auth.ukey", ukey)
	}
	if apiKey := env.GetString("WSCHAT_API_KEY", ""); apiKey != "" {
		k.Set("auth.api_key", apiKey)
	}
	if token := env.GetString("WSCHAT_TOKEN", ""); token != "" {
		k.Set("auth.token", token)
	}

	if endpoint := env.GetString("WSCHAT_OTLP_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.otlp_endpoint", endpoint)
		k.Set("tracing.enabled", true)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
