package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/san-kum/gravsim/internal/gravity"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr        = "127.0.0.1:8080"
	DefaultStaticDir   = "frontend/static"
	DefaultDataDir     = ".gravsim"
	DefaultSteps       = 1000
	DefaultRemoteURL   = "http://127.0.0.1:8080"
	DefaultTimeout     = 5 * time.Second
	DefaultMaxFailures = 5
)

// Environment overrides, applied after the config file.
const (
	EnvAddr      = "GRAVSIM_ADDR"
	EnvStaticDir = "GRAVSIM_STATIC_DIR"
	EnvDataDir   = "GRAVSIM_DATA_DIR"
	EnvRemoteURL = "GRAVSIM_REMOTE_URL"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Run     RunConfig     `yaml:"run"`
	Remote  RemoteConfig  `yaml:"remote"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	Preset    string `yaml:"preset"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type RunConfig struct {
	Preset   string  `yaml:"preset"`
	Scenario string  `yaml:"scenario"`
	Steps    int     `yaml:"steps"`
	StepS    float64 `yaml:"step_s"`
}

type RemoteConfig struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxFailures int           `yaml:"max_failures"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      DefaultAddr,
			StaticDir: DefaultStaticDir,
		},
		Storage: StorageConfig{DataDir: DefaultDataDir},
		Run: RunConfig{
			Preset: "earth_probe",
			Steps:  DefaultSteps,
		},
		Remote: RemoteConfig{
			URL:         DefaultRemoteURL,
			Timeout:     DefaultTimeout,
			MaxFailures: DefaultMaxFailures,
		},
	}
}

// Load reads a YAML config on top of DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv
// outside of tests.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := getenv(EnvStaticDir); v != "" {
		c.Server.StaticDir = v
	}
	if v := getenv(EnvDataDir); v != "" {
		c.Storage.DataDir = v
	}
	if v := getenv(EnvRemoteURL); v != "" {
		c.Remote.URL = v
	}
}

// Scenario is a named initial snapshot.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	State       gravity.State `yaml:"state"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = ScenarioName(path)
	}
	return &sc, nil
}

// ScenarioName is the default name of a scenario file: its base name without
// the extension.
func ScenarioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func SaveScenario(path string, sc *Scenario) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// InitialState resolves the run's starting snapshot: a scenario file wins over
// a preset, and a positive StepS overrides the step size of either.
func (r RunConfig) InitialState() (string, gravity.State, error) {
	var sc *Scenario
	switch {
	case r.Scenario != "":
		loaded, err := LoadScenario(r.Scenario)
		if err != nil {
			return "", gravity.State{}, err
		}
		sc = loaded
	case r.Preset != "":
		sc = GetPreset(r.Preset)
		if sc == nil {
			return "", gravity.State{}, fmt.Errorf("unknown preset: %s (available: %v)", r.Preset, ListPresets())
		}
	default:
		return "", gravity.State{}, fmt.Errorf("no scenario or preset configured")
	}

	state := sc.State.Clone()
	if r.StepS > 0 {
		state.StepS = r.StepS
	}
	return sc.Name, state, nil
}
