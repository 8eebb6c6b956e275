// Package config loads the YAML settings shared by the command line tools
// and sets up their logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/lucasjlepore/fitcodec/repair"
)

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Repair  RepairConfig  `yaml:"repair"`
	// Profile is a CBOR profile artifact; empty selects the built-in one.
	Profile string `yaml:"profile"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables a rotated log file next to stderr output.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

type MetricsConfig struct {
	// File receives the counters in the node exporter textfile format.
	File string `yaml:"file"`
}

// RepairConfig holds the drop search bounds and decoding switches.
type RepairConfig struct {
	MinSyncCnt   int    `yaml:"min_sync_cnt"`
	MaxDropCnt   int    `yaml:"max_drop_cnt"`
	MaxBackCnt   int    `yaml:"max_back_cnt"`
	MaxFwdLen    int    `yaml:"max_fwd_len"`
	MaxRecordLen int    `yaml:"max_record_len"`
	MaxDeltaT    uint32 `yaml:"max_delta_t"`
	Force        bool   `yaml:"force"`
	Validate     bool   `yaml:"validate"`
	Warn         bool   `yaml:"warn"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	o := repair.DefaultOptions()
	return Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  25,
			MaxAgeDays: 7,
			MaxBackups: 5,
		},
		Repair: RepairConfig{
			MinSyncCnt:   o.MinSyncCnt,
			MaxDropCnt:   o.MaxDropCnt,
			MaxBackCnt:   o.MaxBackCnt,
			MaxFwdLen:    o.MaxFwdLen,
			MaxRecordLen: o.MaxRecordLen,
			MaxDeltaT:    o.MaxDeltaT,
			Force:        o.Force,
			Validate:     o.Validate,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values. Relative paths in the file resolve against its directory.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	base := filepath.Dir(path)
	cfg.Profile = resolvePath(base, cfg.Profile)
	cfg.Log.File = resolvePath(base, cfg.Log.File)
	cfg.Metrics.File = resolvePath(base, cfg.Metrics.File)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func resolvePath(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// Validate rejects settings no tool can run with.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	r := c.Repair
	if r.MinSyncCnt <= 0 || r.MaxDropCnt <= 0 || r.MaxBackCnt <= 0 || r.MaxFwdLen <= 0 {
		return errors.New("repair search bounds must be positive")
	}
	if r.MaxRecordLen < 0 {
		return errors.New("max_record_len must not be negative")
	}
	return nil
}

// Options returns repair options carrying the configured bounds and
// switches. Operations are left for the caller to select.
func (r RepairConfig) Options() repair.Options {
	o := repair.DefaultOptions()
	o.MinSyncCnt = r.MinSyncCnt
	o.MaxDropCnt = r.MaxDropCnt
	o.MaxBackCnt = r.MaxBackCnt
	o.MaxFwdLen = r.MaxFwdLen
	o.MaxRecordLen = r.MaxRecordLen
	o.MaxDeltaT = r.MaxDeltaT
	o.Force = r.Force
	o.Validate = r.Validate
	o.Warn = r.Warn
	return o
}

// NewLogger builds a logger writing to w and, when File is set, to a
// rotated log file. The returned closer releases the file.
func (c LogConfig) NewLogger(w io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, nil, err
	}
	log.SetLevel(level)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxAge:     c.MaxAgeDays,
			MaxBackups: c.MaxBackups,
			Compress:   c.Compress,
		}
		w = io.MultiWriter(w, rotator)
		closer = rotator
	}
	log.SetOutput(w)
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
