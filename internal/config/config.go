// Package config loads runtime settings from defaults, an optional YAML or
// JSON file and AUTOMATA_* environment variables, in that order.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTOMATA_"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Config struct {
	LogLevel   string     `mapstructure:"log_level" yaml:"log_level"`
	HTTP       HTTP       `mapstructure:"http" yaml:"http"`
	Metrics    Metrics    `mapstructure:"metrics" yaml:"metrics"`
	Store      Store      `mapstructure:"store" yaml:"store"`
	Redis      Redis      `mapstructure:"redis" yaml:"redis"`
	History    History    `mapstructure:"history" yaml:"history"`
	Validation Validation `mapstructure:"validation" yaml:"validation"`
	Input      Input      `mapstructure:"input" yaml:"input"`
	Backend    Backend    `mapstructure:"backend" yaml:"backend"`
	Catalog    Catalog    `mapstructure:"catalog" yaml:"catalog"`
}

type HTTP struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type Metrics struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Store selects where sessions live.
type Store struct {
	Kind string `mapstructure:"kind" yaml:"kind"` // memory, file or redis
	Dir  string `mapstructure:"dir" yaml:"dir"`   // file store only
	// EncryptionKey is a base64 AES-256 key. When set, sessions are sealed
	// before they reach the store; PreviousKeys still decrypt older ones.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	PreviousKeys  []string `mapstructure:"previous_keys" yaml:"previous_keys"`
}

// Keys decodes the encryption keys. active is nil when encryption is off.
func (s Store) Keys() (active []byte, previous [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	for i, k := range s.PreviousKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.previous_keys[%d]: %w", i, err)
		}
		previous = append(previous, key)
	}
	return active, previous, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

type Redis struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type History struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type Validation struct {
	Duplicates string `mapstructure:"duplicates" yaml:"duplicates"` // overwrite or reject
}

type Input struct {
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`
}

// Backend points at a remote conversion service. An empty URL converts in process.
type Backend struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Catalog adds a directory of definitions to the built-in examples.
type Catalog struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Default returns the baked-in settings.
func Default() Config {
	return Config{
		LogLevel:   "info",
		HTTP:       HTTP{Addr: ":8080"},
		Metrics:    Metrics{Enabled: true},
		Store:      Store{Kind: StoreMemory, Dir: ".automata/sessions"},
		Redis:      Redis{Addr: "localhost:6379", Prefix: "automata:"},
		History:    History{Limit: domain.DefaultHistoryLimit},
		Validation: Validation{Duplicates: string(validator.DuplicatesOverwrite)},
		Input:      Input{MaxSize: 4096},
		Backend:    Backend{Timeout: 10 * time.Second},
	}
}

// envKeys maps environment variables to config paths.
var envKeys = map[string]string{
	"LOG_LEVEL":             "log_level",
	"HTTP_ADDR":             "http.addr",
	"METRICS_ENABLED":       "metrics.enabled",
	"STORE_KIND":            "store.kind",
	"STORE_DIR":             "store.dir",
	"STORE_ENCRYPTION_KEY":  "store.encryption_key",
	"STORE_PREVIOUS_KEYS":   "store.previous_keys",
	"REDIS_ADDR":            "redis.addr",
	"REDIS_PASSWORD":        "redis.password",
	"REDIS_DB":              "redis.db",
	"REDIS_PREFIX":          "redis.prefix",
	"REDIS_TTL":             "redis.ttl",
	"HISTORY_LIMIT":         "history.limit",
	"VALIDATION_DUPLICATES": "validation.duplicates",
	"MAX_INPUT_SIZE":        "input.max_size",
	"BACKEND_URL":           "backend.url",
	"BACKEND_TIMEOUT":       "backend.timeout",
	"CATALOG_DIR":           "catalog.dir",
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		// JSON documents are valid YAML.
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if err := merge(&cfg, raw); err != nil {
			return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	if err := merge(&cfg, fromEnv(lookup)); err != nil {
		return Config{}, fmt.Errorf("invalid environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv(lookup func(string) (string, bool)) map[string]any {
	raw := make(map[string]any)
	for env, path := range envKeys {
		v, ok := lookup(EnvPrefix + env)
		if !ok {
			continue
		}
		node := raw
		parts := strings.Split(path, ".")
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return raw
}

// merge decodes raw over cfg; keys absent from raw keep their value.
func merge(cfg *Config, raw map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			intToDurationHook,
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// intToDurationHook reads bare numbers as seconds.
func intToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return data, nil
	}
}

// Validate checks enumerations and limits.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("store.kind must be memory, file or redis, got %q", c.Store.Kind))
	}
	if c.Store.Kind == StoreRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis store"))
	}
	if _, _, err := c.Store.Keys(); err != nil {
		errs = append(errs, err)
	}
	if c.History.Limit < 1 {
		errs = append(errs, fmt.Errorf("history.limit must be positive, got %d", c.History.Limit))
	}
	if c.Input.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("input.max_size must be positive, got %d", c.Input.MaxSize))
	}
	if _, err := validator.ParseDuplicatePolicy(c.Validation.Duplicates); err != nil {
		errs = append(errs, fmt.Errorf("validation.duplicates: %w", err))
	}
	if c.Backend.Timeout < 0 {
		errs = append(errs, errors.New("backend.timeout cannot be negative"))
	}
	return errors.Join(errs...)
}

// DuplicatePolicy returns the parsed validation policy.
func (c Config) DuplicatePolicy() validator.DuplicatePolicy {
	p, err := validator.ParseDuplicatePolicy(c.Validation.Duplicates)
	if err != nil {
		return validator.DuplicatesOverwrite
	}
	return p
}
