package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evanofslack/ddns-agent/internal/apperr"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "configure.toml"

	ProviderRecords    = "records"
	ProviderCloudflare = "cloudflare"

	defaultUpdateInterval = 5
	defaultIPService      = "https://api.ipify.org"
	defaultMetricsAddr    = ":9090"
	defaultLogLevel       = "info"
	defaultLogEnv         = "prod"
)

type Config struct {
	Token          string     `toml:"token" yaml:"token"`
	RecordID       uint64     `toml:"record_id" yaml:"record_id"`
	UpdateInterval uint64     `toml:"update_interval" yaml:"update_interval"` // minutes
	Provider       string     `toml:"provider" yaml:"provider"`
	APIURL         string     `toml:"api_url" yaml:"api_url"`
	IPService      string     `toml:"ip_service" yaml:"ip_service"`
	HistoryPath    string     `toml:"history_path" yaml:"history_path"`
	MetricsAddr    string     `toml:"metrics_addr" yaml:"metrics_addr"`
	Log            Log        `toml:"log" yaml:"log"`
	Cloudflare     Cloudflare `toml:"cloudflare" yaml:"cloudflare"`
}

type Log struct {
	Level string `toml:"level" yaml:"level"`
	Env   string `toml:"env" yaml:"env"`
}

type Cloudflare struct {
	Zone     string `toml:"zone" yaml:"zone"`
	RecordID string `toml:"record_id" yaml:"record_id"`
}

func Default() Config {
	return Config{
		UpdateInterval: defaultUpdateInterval,
		Provider:       ProviderRecords,
		IPService:      defaultIPService,
		MetricsAddr:    defaultMetricsAddr,
		Log: Log{
			Level: defaultLogLevel,
			Env:   defaultLogEnv,
		},
	}
}

// Load reads the config file at path. Keys missing from the file keep their
// default value. When the file does not exist a default one is written and
// an I/O error is returned, so the caller stops and the operator can fill in
// the credentials.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		if werr := Save(path, Default()); werr != nil {
			return nil, werr
		}
		slog.Default().Warn("config file not found, a default one has been generated", "path", path)
		return nil, apperr.IO(fmt.Sprintf("config file %s not found, default written", path), err)
	}
	return cfg, err
}

// Read is Load without the side effect: a missing file is only reported.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.IO(fmt.Sprintf("read config file %s", path), err)
	}

	cfg := Default()
	if err := decode(path, data, &cfg); err != nil {
		return nil, apperr.Format(fmt.Sprintf("parse config file %s", path), err)
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(path string, cfg Config) error {
	data, err := encode(path, cfg)
	if err != nil {
		return apperr.Format("encode config", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.IO("create config directory", err)
		}
	}
	// the file holds an api token
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return apperr.IO("write config file", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.UpdateInterval == 0 {
		return apperr.Format("update interval should be larger than 0", nil)
	}
	if c.Token == "" {
		return apperr.Format("token must be set", nil)
	}
	switch c.Provider {
	case ProviderRecords:
		if c.RecordID == 0 {
			return apperr.Format("record_id must be set", nil)
		}
		if c.APIURL == "" {
			return apperr.Format("api_url must be set", nil)
		}
	case ProviderCloudflare:
		if c.Cloudflare.Zone == "" || c.Cloudflare.RecordID == "" {
			return apperr.Format("cloudflare zone and record_id must be set", nil)
		}
	default:
		return apperr.Format(fmt.Sprintf("unknown provider %q", c.Provider), nil)
	}
	return nil
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Minute
}

// RemoteRecordID is the id of the managed record as the configured provider
// expects it.
func (c *Config) RemoteRecordID() string {
	if c.Provider == ProviderCloudflare {
		return c.Cloudflare.RecordID
	}
	return strconv.FormatUint(c.RecordID, 10)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return yaml.Unmarshal(data, cfg)
	}
	return toml.Unmarshal(data, cfg)
}

func encode(path string, cfg Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	return toml.Marshal(cfg)
}

func applyEnv(cfg *Config) {
	if token := os.Getenv("DDNS_AGENT_TOKEN"); token != "" {
		cfg.Token = token
	}
	if recordID := os.Getenv("DDNS_AGENT_RECORD_ID"); recordID != "" {
		if id, err := strconv.ParseUint(recordID, 10, 64); err == nil {
			cfg.RecordID = id
		} else {
			slog.Default().Warn("fail parse record id from string", "record_id", recordID, "error", err)
		}
	}
	if interval := os.Getenv("DDNS_AGENT_UPDATE_INTERVAL"); interval != "" {
		if minutes, err := strconv.ParseUint(interval, 10, 64); err == nil {
			cfg.UpdateInterval = minutes
		} else {
			slog.Default().Warn("fail parse update interval from string", "interval", interval, "error", err)
		}
	}
	if provider := os.Getenv("DDNS_AGENT_PROVIDER"); provider != "" {
		cfg.Provider = provider
	}
	if apiURL := os.Getenv("DDNS_AGENT_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if ipService := os.Getenv("DDNS_AGENT_IP_SERVICE"); ipService != "" {
		cfg.IPService = ipService
	}
	if historyPath := os.Getenv("DDNS_AGENT_HISTORY_PATH"); historyPath != "" {
		cfg.HistoryPath = historyPath
	}
	if metricsAddr := os.Getenv("DDNS_AGENT_METRICS_ADDR"); metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if loglevel := os.Getenv("DDNS_AGENT_LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv("DDNS_AGENT_LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}
}
