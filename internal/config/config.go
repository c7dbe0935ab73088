package config

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/observe"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "weave.json"

	// YAMLConfigFileName is the name of the YAML configuration file. It is
	// used when no weave.json exists.
	YAMLConfigFileName = "weave.yaml"

	// DefaultDevtoolsAddr is the default devtools listen address.
	DefaultDevtoolsAddr = "localhost:7070"

	// DefaultMetricsNamespace prefixes all exported metrics.
	DefaultMetricsNamespace = "weave"
)

// Config represents the complete weave configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Observation controls which collection kinds are instrumented.
	Observation ObservationConfig `json:"observation" yaml:"observation"`

	// Scheduler contains flush scheduler settings.
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Devtools contains the devtools server settings.
	Devtools DevtoolsConfig `json:"devtools" yaml:"devtools"`

	// Store contains state snapshot settings.
	Store StoreConfig `json:"store" yaml:"store"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ObservationConfig controls instrumentation per collection kind.
type ObservationConfig struct {
	// Disabled lists kinds that start native: "array", "map" or "set".
	Disabled []string `json:"disabled,omitempty" yaml:"disabled,omitempty" validate:"dive,oneof=array map set"`
}

// SchedulerConfig contains flush scheduler settings.
type SchedulerConfig struct {
	// MaxIterations bounds cascading flush iterations.
	MaxIterations int `json:"maxIterations" yaml:"maxIterations" validate:"gte=1,lte=10000"`

	// Debug enables debug logging of every flush.
	Debug bool `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled registers flush metrics.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace prefixes metric names.
	Namespace string `json:"namespace" yaml:"namespace" validate:"required_if=Enabled true,omitempty,alphanum"`

	// Tracing records an OpenTelemetry span per flush.
	Tracing bool `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// DevtoolsConfig contains the devtools server settings.
type DevtoolsConfig struct {
	// Addr is the listen address, e.g. "localhost:7070".
	Addr string `json:"addr" yaml:"addr" validate:"required,hostname_port"`

	// StreamBuffer is the number of flush records buffered per stream
	// client before records are dropped for that client.
	StreamBuffer int `json:"streamBuffer" yaml:"streamBuffer" validate:"gte=1,lte=4096"`
}

// StoreConfig contains state snapshot settings. At most one of Dir and
// Bucket may be set.
type StoreConfig struct {
	// Dir stores snapshots as files.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" validate:"excluded_with=Bucket"`

	// Bucket stores snapshots in S3.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is the S3 key prefix.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxIterations: observe.DefaultMaxFlushIterations,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultMetricsNamespace,
		},
		Devtools: DevtoolsConfig{
			Addr:         DefaultDevtoolsAddr,
			StreamBuffer: 64,
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// weave.json, then weave.yaml.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		yamlPath := filepath.Join(dir, YAMLConfigFileName)
		if _, yerr := os.Stat(yamlPath); yerr == nil {
			path = yamlPath
		}
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("W040").
				WithDetail("No weave.json or weave.yaml found in " + filepath.Dir(path)).
				WithSuggestion("Run 'weave config init' to create one")
		}
		return nil, errors.New("W041").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("W041").
			WithSubject(filepath.Base(path)).
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to the specified path, as YAML or JSON
// depending on the extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("W041").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("W041").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Scheduler.MaxIterations == 0 {
		c.Scheduler.MaxIterations = observe.DefaultMaxFlushIterations
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Devtools.Addr == "" {
		c.Devtools.Addr = DefaultDevtoolsAddr
	}
	if c.Devtools.StreamBuffer == 0 {
		c.Devtools.StreamBuffer = 64
	}
}

var validate = validator.New()

// Validate checks if the configuration is valid. Every failing field is
// listed in the error detail.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.New("W042").Wrap(err)
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.Namespace() + " (" + fe.Tag() + ")"
	}
	return errors.New("W042").
		WithSubject(verrs[0].Namespace()).
		WithDetail("Invalid fields: " + strings.Join(fields, ", ")).
		Wrap(err)
}

// DisabledKinds returns the collection kinds configured as native.
// Unknown names are skipped; Validate reports them.
func (c *Config) DisabledKinds() []observe.CollectionKind {
	var kinds []observe.CollectionKind
	for _, name := range c.Observation.Disabled {
		if k, ok := observe.ParseKind(name); ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// SnapshotDir returns the absolute snapshot directory, or "" if file
// snapshots are not configured.
func (c *Config) SnapshotDir() string {
	if c.Store.Dir == "" {
		return ""
	}
	if filepath.IsAbs(c.Store.Dir) {
		return c.Store.Dir
	}
	return filepath.Join(c.Dir(), c.Store.Dir)
}

// DevtoolsPort returns the port part of the devtools address.
func (c *Config) DevtoolsPort() int {
	i := strings.LastIndexByte(c.Devtools.Addr, ':')
	if i < 0 {
		return 0
	}
	port, _ := strconv.Atoi(c.Devtools.Addr[i+1:])
	return port
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("W040").
				WithDetail("No weave.json or weave.yaml found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'weave config init' to create one")
		}
		dir = parent
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
