/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version" validate:"gte=1"`
	Gesture       GestureConfig  `yaml:"gesture"`
	History       HistoryConfig  `yaml:"history"`
	Storage       StorageConfig  `yaml:"storage"`
	Dispatch      DispatchConfig `yaml:"dispatch"`
	Server        ServerConfig   `yaml:"server"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// GestureConfig is read on every gesture; see Watcher.Gesture.
type GestureConfig struct {
	// MinAngleToActivate is the selection tolerance in degrees; 0 accepts the
	// nearest point at any angle.
	MinAngleToActivate float64 `yaml:"min_angle_to_activate" validate:"gte=0,lte=180"`
	AutoSeparate       bool    `yaml:"auto_separate"`
	// MinArcLength is the smallest distance along a ring between two points.
	MinArcLength float64 `yaml:"min_arc_length" validate:"gte=0"`
}

type HistoryConfig struct {
	MaxDepth   int `yaml:"max_depth" validate:"gte=0,lte=100000"`
	CoalesceMs int `yaml:"coalesce_ms" validate:"gte=0"`
}

type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=json sqlite postgres"`
	Path    string `yaml:"path"` // directory for json/sqlite; empty means DataDir()
	DSN     string `yaml:"dsn" validate:"required_if=Backend postgres"`
}

type DispatchConfig struct {
	BridgeURL string `yaml:"bridge_url" validate:"omitempty,url"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"gte=0"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console text pretty json"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Gesture:       GestureConfig{MinAngleToActivate: 0, AutoSeparate: true, MinArcLength: 48},
		History:       HistoryConfig{MaxDepth: 100, CoalesceMs: 0},
		Storage:       StorageConfig{Backend: "json"},
		Dispatch:      DispatchConfig{TimeoutMs: 1500},
		Server:        ServerConfig{Addr: "127.0.0.1:7878"},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "TL_CONFIG"
	EnvMinAngle       = "TL_MIN_ANGLE_TO_ACTIVATE"
	EnvAutoSeparate   = "TL_AUTO_SEPARATE"
	EnvMinArcLength   = "TL_MIN_ARC_LENGTH"
	EnvHistoryDepth   = "TL_HISTORY_MAX_DEPTH"
	EnvStorageBackend = "TL_STORAGE_BACKEND"
	EnvStoragePath    = "TL_STORAGE_PATH"
	EnvStorageDSN     = "TL_STORAGE_DSN"
	EnvBridgeURL      = "TL_BRIDGE_URL"
	EnvServerAddr     = "TL_SERVER_ADDR"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "TL_LOG_LEVEL"
	EnvLogFormat = "TL_LOG_FORMAT"
	EnvLogSource = "TL_LOG_SOURCE"
	EnvLogFile   = "TL_LOG_FILE"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks ranges and enumerations.
func (c AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ConfigPath returns the per-user config file path. TL_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base, err := userDir(false)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir returns the per-user directory the layout is stored in by default.
func DataDir() (string, error) { return userDir(true) }

func userDir(data bool) (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "TigerLauncher")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "TigerLauncher")
	default: // linux and others
		if data {
			base = filepath.Join(os.Getenv("HOME"), ".local", "share", "tigerlauncher")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "tigerlauncher")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path. A missing file yields the defaults.
// On a parse or validation error the defaults (with env overrides) are
// returned together with the error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		applyEnvOverrides(&cfg)
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		cfg = Defaults()
		applyEnvOverrides(&cfg)
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

func SaveFile(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// mergeInto copies the file config over dst. src starts out as Defaults(),
// so fields the file leaves out keep their default value.
func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.Gesture = src.Gesture
	if src.History.MaxDepth != 0 {
		dst.History.MaxDepth = src.History.MaxDepth
	}
	dst.History.CoalesceMs = src.History.CoalesceMs
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Backend)); v != "" {
		dst.Storage.Backend = v
	}
	dst.Storage.Path = strings.TrimSpace(src.Storage.Path)
	dst.Storage.DSN = strings.TrimSpace(src.Storage.DSN)
	dst.Dispatch.BridgeURL = strings.TrimSpace(src.Dispatch.BridgeURL)
	if src.Dispatch.TimeoutMs != 0 {
		dst.Dispatch.TimeoutMs = src.Dispatch.TimeoutMs
	}
	if v := strings.TrimSpace(src.Server.Addr); v != "" {
		dst.Server.Addr = v
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvMinAngle)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Gesture.MinAngleToActivate = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAutoSeparate)); v != "" {
		cfg.Gesture.AutoSeparate = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvMinArcLength)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Gesture.MinArcLength = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryDepth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.MaxDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageBackend)); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBridgeURL)); v != "" {
		cfg.Dispatch.BridgeURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"gesture.min_angle_to_activate": EnvMinAngle,
	"gesture.auto_separate":         EnvAutoSeparate,
	"gesture.min_arc_length":        EnvMinArcLength,
	"history.max_depth":             EnvHistoryDepth,
	"storage.backend":               EnvStorageBackend,
	"storage.path":                  EnvStoragePath,
	"storage.dsn":                   EnvStorageDSN,
	"dispatch.bridge_url":           EnvBridgeURL,
	"server.addr":                   EnvServerAddr,
	"logging.level":                 EnvLogLevel,
	"logging.format":                EnvLogFormat,
	"logging.source":                EnvLogSource,
	"logging.file":                  EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the dispatch timeout, falling back to the default.
func (d DispatchConfig) Timeout() time.Duration {
	if d.TimeoutMs <= 0 {
		return time.Duration(Defaults().Dispatch.TimeoutMs) * time.Millisecond
	}
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// CoalesceWindow returns the undo coalescing interval.
func (h HistoryConfig) CoalesceWindow() time.Duration {
	return time.Duration(h.CoalesceMs) * time.Millisecond
}

// StorageDir resolves the storage directory, defaulting to DataDir().
func (s StorageConfig) StorageDir() (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}
	return DataDir()
}
