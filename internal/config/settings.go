package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sassc/internal/foundation/errors"
)

// SettingsFileName is the tool settings file looked up in the workspace root.
const SettingsFileName = "sassc.yaml"

// Settings are the tool-wide options, separate from per-project sassconfig.json.
type Settings struct {
	SingleCompilation SingleCompilationSettings `yaml:"single_compilation"`
	Compiler          CompilerSettings          `yaml:"compiler"`
	Build             BuildSettings             `yaml:"build"`
	Watch             WatchSettings             `yaml:"watch"`
	Metrics           MetricsSettings           `yaml:"metrics"`
	Notify            NotifySettings            `yaml:"notify"`
}

// SingleCompilationSettings governs inline and single-file compiles.
type SingleCompilationSettings struct {
	// UseIndentedStyle selects the indentation-based syntax for buffers
	// that carry no file name.
	UseIndentedStyle bool `yaml:"use_indented_style"`
}

// CompilerSettings configure the Dart Sass process.
type CompilerSettings struct {
	DartSassBinary string        `yaml:"dart_sass_binary"`
	IncludePaths   []string      `yaml:"include_paths"`
	Timeout        time.Duration `yaml:"timeout"`
}

// BuildSettings configure project compiles.
type BuildSettings struct {
	Concurrency int    `yaml:"concurrency"` // 0 = GOMAXPROCS
	HistoryDB   string `yaml:"history_db"`  // relative paths resolve against the workspace root
}

// WatchSettings configure the watch daemon.
type WatchSettings struct {
	Debounce       time.Duration `yaml:"debounce"`
	RescanInterval time.Duration `yaml:"rescan_interval"`
	AdminAddr      string        `yaml:"admin_addr"`
}

// MetricsSettings toggle the Prometheus recorder.
type MetricsSettings struct {
	Enabled bool `yaml:"enabled"`
}

// NotifySettings configure compile event publishing. An empty URL disables it.
type NotifySettings struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
	// ConnectRetries and ConnectBackoff (fixed, linear, exponential) govern
	// the initial connection attempt.
	ConnectRetries int    `yaml:"connect_retries"`
	ConnectBackoff string `yaml:"connect_backoff"`
}

const (
	DefaultHistoryDB      = ".sassc/history.db"
	DefaultDebounce       = 100 * time.Millisecond
	DefaultRescanInterval = 30 * time.Second
	DefaultAdminAddr      = "127.0.0.1:7331"
	DefaultNotifySubject  = "sassc.compile"
)

// DefaultSettings returns settings with every default applied.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.Build.Concurrency < 0 {
		s.Build.Concurrency = 0
	}
	if s.Build.HistoryDB == "" {
		s.Build.HistoryDB = DefaultHistoryDB
	}
	if s.Watch.Debounce <= 0 {
		s.Watch.Debounce = DefaultDebounce
	}
	if s.Watch.RescanInterval <= 0 {
		s.Watch.RescanInterval = DefaultRescanInterval
	}
	if s.Watch.AdminAddr == "" {
		s.Watch.AdminAddr = DefaultAdminAddr
	}
	if s.Notify.Subject == "" {
		s.Notify.Subject = DefaultNotifySubject
	}
}

// LoadSettings reads a settings file. A .env file next to it is loaded first
// without overriding the process environment, then ${VAR} references in the
// YAML are expanded.
func LoadSettings(path string) (*Settings, error) {
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, ferrors.ConfigError("failed to load .env file").WithCause(err).Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NotFoundError("settings file not found: " + path).WithCause(err).Build()
		}
		return nil, ferrors.FileSystemError("failed to read settings file").WithCause(err).Build()
	}

	var s Settings
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &s); err != nil {
		return nil, ferrors.ConfigError("invalid settings YAML").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	s.applyDefaults()
	return &s, nil
}

// LoadSettingsOrDefault loads path when it exists and falls back to defaults
// when it does not.
func LoadSettingsOrDefault(path string) (*Settings, error) {
	s, err := LoadSettings(path)
	if ferrors.HasCategory(err, ferrors.CategoryNotFound) {
		return DefaultSettings(), nil
	}
	return s, err
}

// HistoryPath resolves the history database path against root.
func (s *Settings) HistoryPath(root string) string {
	if filepath.IsAbs(s.Build.HistoryDB) {
		return s.Build.HistoryDB
	}
	return filepath.Join(root, s.Build.HistoryDB)
}
