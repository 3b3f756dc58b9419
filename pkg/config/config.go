package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

type Config struct {
	Trainer         Trainer         `yaml:"trainer"`
	Datasets        Datasets        `yaml:"datasets"`
	Model           Model           `yaml:"model"`
	DefaultSettings DefaultSettings `yaml:"default_settings"`
	Database        Database        `yaml:"database"`
	Elastic         Elastic         `yaml:"elastic"`
}

type Trainer struct {
	PythonBin string `yaml:"python_bin"`
	ScriptDir string `yaml:"script_dir"`
}

type Datasets struct {
	GlueDir string `yaml:"glue_dir"`
	ElueDir string `yaml:"elue_dir"`
}

type Model struct {
	NameOrPath      string `yaml:"name_or_path"`
	NumHiddenLayers int    `yaml:"num_hidden_layers"`
	NumOutputLayers int    `yaml:"num_output_layers"`
	DoLowerCase     bool   `yaml:"do_lower_case"`
}

type DefaultSettings struct {
	Timeout    int    `yaml:"timeout"`
	Device     string `yaml:"device"`
	OutputRoot string `yaml:"output_root"`
	LogRoot    string `yaml:"log_root"`
}

type Database struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type Elastic struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`
}

// Default returns the configuration the launcher runs with when no
// config file exists. Dataset roots stay empty here: the GLUE_DIR and
// ELUE_DIR environment variables are the usual source for those.
func Default() *Config {
	return &Config{
		Trainer: Trainer{
			ScriptDir: ".",
		},
		Model: Model{
			NameOrPath:      "fnlp/elasticbert-base",
			NumHiddenLayers: 12,
			NumOutputLayers: 2,
			DoLowerCase:     true,
		},
		DefaultSettings: DefaultSettings{
			Timeout:    720,
			Device:     "0",
			OutputRoot: "./ckpts",
			LogRoot:    "./logs",
		},
	}
}

type Manager struct {
	config     *Config
	configPath string
}

func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
	}
}

func (m *Manager) LoadConfig() error {
	explicit := m.configPath != ""
	if !explicit {
		m.configPath = m.findConfigFile()
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		if explicit {
			return fmt.Errorf("config file not found at %s. Please create one based on config.yaml.example", m.configPath)
		}
		if DebugLog != nil {
			DebugLog("no config file found, using built-in defaults")
		}
		m.config = Default()
		return nil
	}

	if DebugLog != nil {
		DebugLog("loading launcher config from %s", m.configPath)
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := m.validateConfig(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) GetConfig() *Config {
	return m.config
}

func (m *Manager) findConfigFile() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}

	if _, err := os.Stat("config/config.yaml"); err == nil {
		return "config/config.yaml"
	}

	return GetDefaultConfigPath()
}

func (m *Manager) validateConfig(config *Config) error {
	if config.DefaultSettings.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}

	if config.Model.NumHiddenLayers <= 0 {
		return fmt.Errorf("num_hidden_layers must be greater than 0")
	}

	if config.Model.NumOutputLayers <= 0 {
		return fmt.Errorf("num_output_layers must be greater than 0")
	}

	if config.Model.NumOutputLayers > config.Model.NumHiddenLayers {
		return fmt.Errorf("num_output_layers cannot exceed num_hidden_layers")
	}

	return nil
}

// DatasetRoot resolves the dataset root for a benchmark env var name.
// The environment variable wins over the config file, so a GLUE_DIR
// exported in the shell behaves exactly as it did for the release
// shell scripts.
func (c *Config) DatasetRoot(envVar string) string {
	if root := os.Getenv(envVar); root != "" {
		return root
	}

	switch envVar {
	case "ELUE_DIR":
		return c.Datasets.ElueDir
	default:
		return c.Datasets.GlueDir
	}
}

// DeviceSelection resolves the accelerator selection, preferring an
// exported CUDA_VISIBLE_DEVICES over the config file.
func (c *Config) DeviceSelection() string {
	if device, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		return device
	}
	return c.DefaultSettings.Device
}

// TrainerScript returns the path of the trainer entry point for the
// given script name.
func (c *Config) TrainerScript(name string) string {
	return filepath.Join(c.Trainer.ScriptDir, name)
}
