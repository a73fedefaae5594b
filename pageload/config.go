package pageload

import "time"

// Config controls how pages are acquired.
type Config struct {
	UserAgent    string        `yaml:"user_agent"`
	MaxBody      int64         `yaml:"max_body"`
	Timeout      time.Duration `yaml:"timeout"`
	AllowPrivate bool          `yaml:"allow_private"`
	// FileRoot confines local page paths. Empty = no confinement.
	FileRoot string        `yaml:"file_root"`
	Stable   StableConfig  `yaml:"stable"`
	Browser  BrowserConfig `yaml:"browser"`
}

// StableConfig bounds the wait for a rendered page to stop changing.
type StableConfig struct {
	Quiet   time.Duration `yaml:"quiet"`
	Timeout time.Duration `yaml:"timeout"`
	Settle  time.Duration `yaml:"settle"`
	Poll    time.Duration `yaml:"poll"`
}

// BrowserConfig enables the rod-backed acquisition path for remote pages.
type BrowserConfig struct {
	Enabled bool `yaml:"enabled"`
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty = launch a local headless Chrome.
	RemoteURL  string        `yaml:"remote_url"`
	Stealth    bool          `yaml:"stealth"`
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

const defaultUserAgent = "Mozilla/5.0 (compatible; WebNote/1.0)"

func (c *Config) defaults() {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 10 << 20
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	c.Stable.defaults()
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
}

func (c *StableConfig) defaults() {
	if c.Quiet <= 0 {
		c.Quiet = 300 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.Settle <= 0 {
		c.Settle = 100 * time.Millisecond
	}
	if c.Poll <= 0 {
		c.Poll = 50 * time.Millisecond
	}
}
