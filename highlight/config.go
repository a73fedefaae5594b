// CLAUDE:SUMMARY Configuration structs (loader, watch, server) and YAML loader for the highlight service.
package highlight

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/webnote/anchor"
	"github.com/hazyhaar/webnote/pageload"
)

// Config holds all webnote configuration.
type Config struct {
	DBPath        string          `yaml:"db_path"`
	DefaultColor  string          `yaml:"default_color"`
	ContextLength int             `yaml:"context_length"`
	Loader        pageload.Config `yaml:"loader"`
	Watch         WatchConfig     `yaml:"watch"`
	Server        ServerConfig    `yaml:"server"`
}

// WatchConfig controls how open pages follow writes made by other processes.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
}

// ServerConfig controls the panel HTTP API.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "webnote.db"
	}
	if c.DefaultColor == "" {
		c.DefaultColor = DefaultColor
	}
	if c.ContextLength <= 0 {
		c.ContextLength = anchor.ContextLength
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = time.Second
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 200 * time.Millisecond
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8765"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
