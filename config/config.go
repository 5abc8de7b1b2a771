package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/prioring/errors"
	"github.com/c360/prioring/pkg/ringbuffer"
)

// Config is the complete application configuration
type Config struct {
	Version string                `json:"version,omitempty" yaml:"version,omitempty"` // Semantic version of the config document
	Log     LogConfig             `json:"log" yaml:"log"`
	Metrics MetricsConfig         `json:"metrics" yaml:"metrics"`
	Rings   map[string]RingConfig `json:"rings" yaml:"rings"` // Keyed by ring name
}

// LogConfig selects log verbosity and encoding
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"` // 0 picks a free port
	Path    string `json:"path" yaml:"path"`
}

// RingConfig describes one ring and the pipeline draining it
type RingConfig struct {
	PriorityEnabled bool  `json:"priority_enabled" yaml:"priority_enabled"`
	PriorityLevel   int   `json:"priority_level" yaml:"priority_level"`
	SlotCount       int   `json:"slot_count" yaml:"slot_count"`
	SlotSize        int   `json:"slot_size" yaml:"slot_size"`
	MaxMemory       int64 `json:"max_memory,omitempty" yaml:"max_memory,omitempty"` // 0 = unbounded

	Drain DrainConfig `json:"drain" yaml:"drain"`

	// ProduceInterval paces the demonstration producers, one per lane
	ProduceInterval time.Duration `json:"produce_interval,omitempty" yaml:"produce_interval,omitempty"`
}

// DrainConfig controls the consumer side of a ring
type DrainConfig struct {
	Interval  time.Duration `json:"interval" yaml:"interval"`
	Batch     int           `json:"batch" yaml:"batch"`
	Workers   int           `json:"workers" yaml:"workers"`
	QueueSize int           `json:"queue_size" yaml:"queue_size"`
}

// Geometry converts the ring settings to a ring geometry. Call Validate first;
// out of range values are truncated.
func (r RingConfig) Geometry() ringbuffer.Geometry {
	return ringbuffer.Geometry{
		PriorityEnabled: r.PriorityEnabled,
		PriorityLevel:   uint8(r.PriorityLevel),
		SlotCount:       uint8(r.SlotCount),
		SlotSize:        uint8(r.SlotSize),
	}
}

var ringNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validate checks the config is usable
func (c *Config) Validate() error {
	if c.Version != "" {
		if _, _, _, err := parseSemVer(c.Version); err != nil {
			return invalidf("version: %v", err)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalidf("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalidf("log.format %q must be json or text", c.Log.Format)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return invalidf("metrics.port %d out of range", c.Metrics.Port)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalidf("metrics.path %q must start with /", c.Metrics.Path)
	}

	if len(c.Rings) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "check rings")
	}
	for _, name := range c.RingNames() {
		if !ringNamePattern.MatchString(name) {
			return invalidf("ring name %q must be alphanumeric with dots, dashes or underscores", name)
		}
		if err := c.Rings[name].Validate(); err != nil {
			return fmt.Errorf("ring %s: %w", name, err)
		}
	}

	return nil
}

// Validate checks the ring geometry and drain settings
func (r RingConfig) Validate() error {
	if r.PriorityEnabled && (r.PriorityLevel < 1 || r.PriorityLevel > 255) {
		return invalidf("priority_level %d must be 1-255 when priority is enabled", r.PriorityLevel)
	}
	if r.SlotCount < 2 || r.SlotCount > 255 {
		return invalidf("slot_count %d must be 2-255", r.SlotCount)
	}
	if r.SlotSize < 1 || r.SlotSize > 255 {
		return invalidf("slot_size %d must be 1-255", r.SlotSize)
	}
	if r.MaxMemory < 0 {
		return invalidf("max_memory %d cannot be negative", r.MaxMemory)
	}
	if r.MaxMemory > 0 && int64(r.Geometry().StoreSize()) > r.MaxMemory {
		return invalidf("geometry needs %d bytes, max_memory is %d", r.Geometry().StoreSize(), r.MaxMemory)
	}
	if r.Drain.Interval <= 0 {
		return invalidf("drain.interval must be positive")
	}
	if r.Drain.Batch < 1 || r.Drain.Workers < 1 || r.Drain.QueueSize < 1 {
		return invalidf("drain.batch, drain.workers and drain.queue_size must be positive")
	}
	if r.ProduceInterval < 0 {
		return invalidf("produce_interval cannot be negative")
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// RingNames returns the configured ring names in sorted order
func (c *Config) RingNames() []string {
	names := make([]string, 0, len(c.Rings))
	for name := range c.Rings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	clone := *c
	if c.Rings != nil {
		clone.Rings = make(map[string]RingConfig, len(c.Rings))
		for name, ring := range c.Rings {
			clone.Rings[name] = ring
		}
	}
	return &clone
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// SaveToFile writes the configuration as JSON or YAML, chosen by extension
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return safeWriteFile(path, data)
}

// DefaultRing returns the settings applied to every ring before file layers
func DefaultRing() RingConfig {
	return RingConfig{
		SlotCount: 16,
		SlotSize:  64,
		Drain: DrainConfig{
			Interval:  time.Millisecond,
			Batch:     64,
			Workers:   2,
			QueueSize: 256,
		},
		ProduceInterval: 10 * time.Millisecond,
	}
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  "PRIORING",
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables validation of the merged result
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer and environment overrides. Each layer
// is checked against the config schema before it is merged.
func (l *Loader) Load() (*Config, error) {
	merged := l.defaultsMap()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		merged = deepMergeMaps(merged, raw)
	}

	applyRingDefaults(merged)

	cfg, err := decode(merged)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "decode config")
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// defaultsMap returns the base layer as a generic map
func (l *Loader) defaultsMap() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  "info",
			"format": "json",
		},
		"metrics": map[string]any{
			"enabled": true,
			"port":    9090,
			"path":    "/metrics",
		},
		"rings": map[string]any{},
	}
}

// applyRingDefaults fills every ring entry with DefaultRing values it does
// not set itself.
func applyRingDefaults(merged map[string]any) {
	rings, ok := merged["rings"].(map[string]any)
	if !ok {
		return
	}
	defaults := DefaultRing()
	base := map[string]any{
		"slot_count": defaults.SlotCount,
		"slot_size":  defaults.SlotSize,
		"drain": map[string]any{
			"interval":   int64(defaults.Drain.Interval),
			"batch":      defaults.Drain.Batch,
			"workers":    defaults.Drain.Workers,
			"queue_size": defaults.Drain.QueueSize,
		},
		"produce_interval": int64(defaults.ProduceInterval),
	}
	for name, v := range rings {
		ring, ok := v.(map[string]any)
		if !ok {
			continue
		}
		rings[name] = deepMergeMaps(base, ring)
	}
}

// loadRaw reads one layer, checks it against the schema and converts
// duration strings to nanoseconds.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "loadRaw", "parse YAML")
		}
	} else {
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "loadRaw", "parse JSON")
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// parseDurations converts duration strings under rings to nanoseconds
func parseDurations(raw map[string]any) error {
	rings, ok := raw["rings"].(map[string]any)
	if !ok {
		return nil
	}
	for name, v := range rings {
		ring, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if err := parseDurationField(ring, "produce_interval"); err != nil {
			return fmt.Errorf("ring %s: %w", name, err)
		}
		if drain, ok := ring["drain"].(map[string]any); ok {
			if err := parseDurationField(drain, "interval"); err != nil {
				return fmt.Errorf("ring %s drain: %w", name, err)
			}
		}
	}
	return nil
}

func parseDurationField(m map[string]any, key string) error {
	s, ok := m[key].(string)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return invalidf("%s: %v", key, err)
	}
	m[key] = d.Nanoseconds()
	return nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}

	return result
}

func decode(merged map[string]any) (*Config, error) {
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	get := func(suffix string) (string, bool, error) {
		key := l.envPrefix + "_" + suffix
		val := os.Getenv(key)
		if err := validateEnvVar(key, val); err != nil {
			return "", false, err
		}
		return val, val != "", nil
	}

	if val, ok, err := get("LOG_LEVEL"); err != nil {
		return err
	} else if ok {
		cfg.Log.Level = strings.ToLower(val)
	}
	if val, ok, err := get("LOG_FORMAT"); err != nil {
		return err
	} else if ok {
		cfg.Log.Format = strings.ToLower(val)
	}
	if val, ok, err := get("METRICS_ENABLED"); err != nil {
		return err
	} else if ok {
		enabled, perr := strconv.ParseBool(val)
		if perr != nil {
			return invalidf("%s_METRICS_ENABLED: %v", l.envPrefix, perr)
		}
		cfg.Metrics.Enabled = enabled
	}
	if val, ok, err := get("METRICS_PORT"); err != nil {
		return err
	} else if ok {
		port, perr := strconv.Atoi(val)
		if perr != nil {
			return invalidf("%s_METRICS_PORT: %v", l.envPrefix, perr)
		}
		cfg.Metrics.Port = port
	}

	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// CompareVersions compares two semver version strings
// Returns:
//
//	-1 if v1 < v2
//	 0 if v1 == v2
//	 1 if v1 > v2
//	error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	a1, b1, c1, err := parseSemVer(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v1, err)
	}
	a2, b2, c2, err := parseSemVer(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v2, err)
	}

	for _, pair := range [][2]int{{a1, a2}, {b1, b2}, {c1, c2}} {
		switch {
		case pair[0] > pair[1]:
			return 1, nil
		case pair[0] < pair[1]:
			return -1, nil
		}
	}
	return 0, nil
}

// parseSemVer parses a semantic version string (e.g., "1.2.3")
func parseSemVer(version string) (int, int, int, error) {
	if version == "" {
		return 0, 0, 0, fmt.Errorf("version cannot be empty")
	}

	parts := strings.Split(strings.TrimPrefix(version, "v"), ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("version must be in format 'major.minor.patch', got '%s'", version)
	}

	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("invalid version component '%s'", part)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
