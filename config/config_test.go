package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/prioring/errors"
	"github.com/c360/prioring/pkg/ringbuffer"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func validConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Log:     LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Rings: map[string]RingConfig{
			"uplink": DefaultRing(),
		},
	}
}

func TestLoader_LoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"version": "1.2.0",
		"log": {"level": "debug"},
		"rings": {
			"uplink": {
				"priority_enabled": true,
				"priority_level": 3,
				"slot_count": 8,
				"slot_size": 32,
				"drain": {"interval": "5ms", "workers": 4}
			}
		}
	}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "default kept")
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	require.Contains(t, cfg.Rings, "uplink")
	ring := cfg.Rings["uplink"]
	assert.Equal(t, ringbuffer.Geometry{PriorityEnabled: true, PriorityLevel: 3, SlotCount: 8, SlotSize: 32}, ring.Geometry())
	assert.Equal(t, 5*time.Millisecond, ring.Drain.Interval)
	assert.Equal(t, 4, ring.Drain.Workers)
	assert.Equal(t, DefaultRing().Drain.Batch, ring.Drain.Batch, "ring defaults fill omitted fields")
	assert.Equal(t, DefaultRing().Drain.QueueSize, ring.Drain.QueueSize)
	assert.Equal(t, DefaultRing().ProduceInterval, ring.ProduceInterval)
}

func TestLoader_LoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log:
  level: warn
  format: text
metrics:
  enabled: false
rings:
  telemetry:
    slot_count: 4
    slot_size: 8
    produce_interval: 250ms
    drain:
      interval: 2ms
      batch: 16
`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)

	ring := cfg.Rings["telemetry"]
	assert.False(t, ring.PriorityEnabled)
	assert.Equal(t, 4, ring.SlotCount)
	assert.Equal(t, 8, ring.SlotSize)
	assert.Equal(t, 250*time.Millisecond, ring.ProduceInterval)
	assert.Equal(t, 2*time.Millisecond, ring.Drain.Interval)
	assert.Equal(t, 16, ring.Drain.Batch)
}

func TestLoader_Layers(t *testing.T) {
	base := writeFile(t, "base.yaml", `
rings:
  uplink:
    priority_enabled: true
    priority_level: 2
    slot_count: 16
    slot_size: 64
  bulk:
    slot_count: 32
`)
	override := writeFile(t, "prod.json", `{
		"log": {"format": "text"},
		"rings": {"uplink": {"slot_count": 64}}
	}`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, []string{"bulk", "uplink"}, cfg.RingNames())

	uplink := cfg.Rings["uplink"]
	assert.Equal(t, 64, uplink.SlotCount, "later layer wins")
	assert.Equal(t, 64, uplink.SlotSize, "earlier layer kept")
	assert.Equal(t, 2, uplink.PriorityLevel)

	assert.Equal(t, 32, cfg.Rings["bulk"].SlotCount)
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.json", `{"rings": {"r": {}}}`)

	t.Setenv("PRIORING_LOG_LEVEL", "ERROR")
	t.Setenv("PRIORING_LOG_FORMAT", "text")
	t.Setenv("PRIORING_METRICS_ENABLED", "false")
	t.Setenv("PRIORING_METRICS_PORT", "9300")

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9300, cfg.Metrics.Port)
}

func TestLoader_EnvOverrideErrors(t *testing.T) {
	path := writeFile(t, "config.json", `{"rings": {"r": {}}}`)

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("PRIORING_METRICS_PORT", "ninety")
		_, err := NewLoader().LoadFile(path)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("bad bool", func(t *testing.T) {
		t.Setenv("PRIORING_METRICS_ENABLED", "maybe")
		_, err := NewLoader().LoadFile(path)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})

	t.Run("too long", func(t *testing.T) {
		t.Setenv("PRIORING_LOG_LEVEL", strings.Repeat("x", maxEnvVarLen+1))
		_, err := NewLoader().LoadFile(path)
		assert.Error(t, err)
	})
}

func TestLoader_SchemaRejectsLayer(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown top level key", `{"nats": {}}`, "nats"},
		{"slot count too large", `{"rings": {"r": {"slot_count": 256}}}`, "slot_count"},
		{"slot count one", `{"rings": {"r": {"slot_count": 1}}}`, "slot_count"},
		{"zero slot size", `{"rings": {"r": {"slot_size": 0}}}`, "slot_size"},
		{"bad duration", `{"rings": {"r": {"drain": {"interval": "soon"}}}}`, "interval"},
		{"bad log level", `{"log": {"level": "trace"}}`, "level"},
		{"bad ring name", `{"rings": {"-bad": {}}}`, "-bad"},
		{"unknown ring key", `{"rings": {"r": {"lanes": 3}}}`, "lanes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.json", tt.content)
			_, err := NewLoader().LoadFile(path)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoader_ValidationAfterMerge(t *testing.T) {
	// schema allows priority_level 0 in a layer, the merged config must not
	path := writeFile(t, "config.json", `{"rings": {"r": {"priority_enabled": true}}}`)

	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "priority_level")

	loader := NewLoader()
	loader.EnableValidation(false)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Rings["r"].PriorityEnabled)
}

func TestLoader_NoRings(t *testing.T) {
	path := writeFile(t, "config.json", `{"log": {"level": "info"}}`)
	_, err := NewLoader().LoadFile(path)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestLoader_FileErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := NewLoader().LoadFile(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := writeFile(t, "config.toml", `x = 1`)
		_, err := NewLoader().LoadFile(path)
		assert.ErrorContains(t, err, "only JSON or YAML")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"rings": {`)
		_, err := NewLoader().LoadFile(path)
		assert.ErrorContains(t, err, "unclosed brackets")
	})

	t.Run("malformed YAML", func(t *testing.T) {
		path := writeFile(t, "config.yml", "rings: [unterminated")
		_, err := NewLoader().LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("empty YAML uses defaults", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "")
		loader := NewLoader()
		loader.EnableValidation(false)
		cfg, err := loader.LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Empty(t, cfg.Rings)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad version", func(c *Config) { c.Version = "1.0" }, "version"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad port", func(c *Config) { c.Metrics.Port = 70000 }, "metrics.port"},
		{"bad path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"disabled metrics ignore path", func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.Path = ""
		}, ""},
		{"bad ring name", func(c *Config) { c.Rings["bad name"] = DefaultRing() }, "ring name"},
		{"priority without levels", func(c *Config) {
			r := c.Rings["uplink"]
			r.PriorityEnabled = true
			c.Rings["uplink"] = r
		}, "priority_level"},
		{"slot count", func(c *Config) {
			r := c.Rings["uplink"]
			r.SlotCount = 1
			c.Rings["uplink"] = r
		}, "slot_count"},
		{"slot size", func(c *Config) {
			r := c.Rings["uplink"]
			r.SlotSize = 300
			c.Rings["uplink"] = r
		}, "slot_size"},
		{"max memory too small", func(c *Config) {
			r := c.Rings["uplink"]
			r.MaxMemory = 10
			c.Rings["uplink"] = r
		}, "max_memory"},
		{"drain workers", func(c *Config) {
			r := c.Rings["uplink"]
			r.Drain.Workers = 0
			c.Rings["uplink"] = r
		}, "drain"},
		{"drain interval", func(c *Config) {
			r := c.Rings["uplink"]
			r.Drain.Interval = 0
			c.Rings["uplink"] = r
		}, "drain.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRingConfig_Geometry(t *testing.T) {
	r := RingConfig{PriorityEnabled: true, PriorityLevel: 255, SlotCount: 255, SlotSize: 255}
	g := r.Geometry()
	assert.Equal(t, uint8(255), g.PriorityLevel)
	assert.NoError(t, g.Validate())
	assert.Equal(t, 255*255*255, g.StoreSize())
}

func TestConfig_Clone(t *testing.T) {
	cfg := validConfig()
	clone := cfg.Clone()

	r := clone.Rings["uplink"]
	r.SlotCount = 99
	clone.Rings["uplink"] = r
	clone.Rings["extra"] = DefaultRing()

	assert.Equal(t, 16, cfg.Rings["uplink"].SlotCount)
	assert.NotContains(t, cfg.Rings, "extra")

	var nilCfg *Config
	assert.NotNil(t, nilCfg.Clone())
}

func TestConfig_SaveAndReload(t *testing.T) {
	for _, name := range []string{"saved.json", "saved.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			r := cfg.Rings["uplink"]
			r.PriorityEnabled = true
			r.PriorityLevel = 4
			r.Drain.Interval = 3 * time.Millisecond
			cfg.Rings["uplink"] = r

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cfg.SaveToFile(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			loaded, err := NewLoader().LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Rings, loaded.Rings)
			assert.Equal(t, cfg.Version, loaded.Version)
		})
	}
}

func TestConfig_String(t *testing.T) {
	s := validConfig().String()
	assert.Contains(t, s, `"uplink"`)
	assert.Contains(t, s, `"slot_count": 16`)
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2   string
		expected int
		wantErr  bool
	}{
		{"1.0.0", "1.0.0", 0, false},
		{"v1.2.0", "1.1.9", 1, false},
		{"1.0.0", "2.0.0", -1, false},
		{"1.0.10", "1.0.9", 1, false},
		{"1.0", "1.0.0", 0, true},
		{"", "1.0.0", 0, true},
		{"1.x.0", "1.0.0", 0, true},
	}

	for _, tt := range tests {
		got, err := CompareVersions(tt.v1, tt.v2)
		if tt.wantErr {
			assert.Error(t, err, "%s vs %s", tt.v1, tt.v2)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.expected, got, "%s vs %s", tt.v1, tt.v2)
	}
}

func TestSchema(t *testing.T) {
	s := Schema()
	assert.Contains(t, string(s), `"slot_count"`)
	s[0] = 'x'
	assert.NotEqual(t, byte('x'), Schema()[0], "Schema returns a copy")
}

func TestLoader_ExampleConfig(t *testing.T) {
	path, err := filepath.Abs("../configs/example.yaml")
	require.NoError(t, err)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"telemetry", "uplink"}, cfg.RingNames())
	assert.Equal(t, 4, cfg.Rings["uplink"].Geometry().Lanes())
	assert.Equal(t, 1, cfg.Rings["telemetry"].Geometry().Lanes())
	assert.LessOrEqual(t, int64(cfg.Rings["uplink"].Geometry().StoreSize()), cfg.Rings["uplink"].MaxMemory)
}
