package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the per-process settings. Zero values are replaced by defaults in Load.
type Config struct {
	Nick       string        `yaml:"nick"`
	WorkDir    string        `yaml:"work_dir"`
	DeckPath   string        `yaml:"deck_path"`
	ListenAddr string        `yaml:"listen_addr"`
	LogMode    string        `yaml:"log_mode"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MDNS       bool          `yaml:"mdns"`

	InkMapBuckets   int `yaml:"inkmap_buckets"`
	EraseResolution int `yaml:"erase_resolution"`
}

const (
	DefaultListenAddr      = ":8888"
	DefaultRetryDelay      = 5 * time.Second
	DefaultInkMapBuckets   = 2048
	DefaultEraseResolution = 8
)

func Default() Config {
	return Config{
		Nick:            hostNick(),
		WorkDir:         filepath.Join(os.TempDir(), "classpresenter"),
		ListenAddr:      DefaultListenAddr,
		LogMode:         "development",
		RetryDelay:      DefaultRetryDelay,
		MDNS:            true,
		InkMapBuckets:   DefaultInkMapBuckets,
		EraseResolution: DefaultEraseResolution,
	}
}

// Load reads the YAML file at path (a missing file is not an error) and then
// applies CP_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	cfg.fillDefaults()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Nick = str("CP_NICK", cfg.Nick)
	cfg.WorkDir = str("CP_WORK_DIR", cfg.WorkDir)
	cfg.DeckPath = str("CP_DECK_PATH", cfg.DeckPath)
	cfg.ListenAddr = str("CP_LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogMode = str("CP_LOG_MODE", cfg.LogMode)
	cfg.RetryDelay = duration("CP_RETRY_DELAY", cfg.RetryDelay)
	cfg.MDNS = boolean("CP_MDNS", cfg.MDNS)
	cfg.InkMapBuckets = integer("CP_INKMAP_BUCKETS", cfg.InkMapBuckets)
	cfg.EraseResolution = integer("CP_ERASE_RESOLUTION", cfg.EraseResolution)
}

func (c *Config) fillDefaults() {
	def := Default()
	if strings.TrimSpace(c.Nick) == "" {
		c.Nick = def.Nick
	}
	if c.WorkDir == "" {
		c.WorkDir = def.WorkDir
	}
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.InkMapBuckets <= 0 {
		c.InkMapBuckets = def.InkMapBuckets
	}
	if c.EraseResolution <= 0 {
		c.EraseResolution = def.EraseResolution
	}
}

// BundlePath is where the deck bundle lives while a session is running.
func (c Config) BundlePath() string {
	return filepath.Join(c.WorkDir, "deck.cpxo")
}

// DeckDir is the directory the bundle is unpacked into.
func (c Config) DeckDir() string {
	return filepath.Join(c.WorkDir, "deck")
}

func (c Config) MetadataPath() string {
	return filepath.Join(c.WorkDir, "metadata.yaml")
}

func hostNick() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "Unknown"
}

func str(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func integer(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func boolean(name string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func duration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
