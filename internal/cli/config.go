// Config loading for the nbsetup CLI.
//
// User-level settings live in a config.yaml inside the platform config
// directory (~/.config/nbsetup on Linux). The file is created with
// commented defaults on first run so students can discover what is
// tunable; a missing or empty file is never an error.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// Config keys.
	cfgKeyPython       = "python"
	cfgKeyVenvDir      = "venv_dir"
	cfgKeyIndexURL     = "index_url"
	cfgKeyJupyterImage = "jupyter_image"

	// Defaults.
	defaultVenvDir      = "venv"
	defaultJupyterImage = "jupyter/scipy-notebook:latest"
)

// defaultConfigYAML is written to config.yaml on first run so the
// available settings are discoverable.
const defaultConfigYAML = `# nbsetup configuration

# Python interpreter to use instead of discovering one on PATH.
# python: /usr/local/bin/python3.12

# Virtual environment directory name, created inside the project folder.
venv_dir: venv

# Alternative package index (campus mirror, proxy).
# index_url: https://mirror.example.edu/simple

# Image used by "nbsetup launch --container".
jupyter_image: jupyter/scipy-notebook:latest
`

// Config holds the resolved user-level settings.
type Config struct {
	// Python is an explicit interpreter path, empty for PATH discovery.
	Python string

	// VenvDir is the virtual environment directory name.
	VenvDir string

	// IndexURL is an alternative pip package index, empty for PyPI.
	IndexURL string

	// JupyterImage is the container image for `launch --container`.
	JupyterImage string
}

// LoadConfig reads the user config from the platform config directory.
func LoadConfig() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		// No resolvable config dir (unusual, but possible in stripped
		// containers) — run entirely on defaults.
		return loadConfigValues(viper.New()), nil
	}
	return LoadConfigFrom(filepath.Join(base, "nbsetup"))
}

// LoadConfigFrom reads config.yaml from the given directory using Viper,
// creating the directory and a commented default file on first run.
// A missing config.yaml is not an error.
func LoadConfigFrom(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyVenvDir, defaultVenvDir)
	v.SetDefault(cfgKeyJupyterImage, defaultJupyterImage)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	// NBSETUP_PYTHON, NBSETUP_VENV_DIR, ... override the file.
	v.SetEnvPrefix("NBSETUP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return loadConfigValues(v), nil
}

// loadConfigValues extracts the typed Config from a viper instance.
func loadConfigValues(v *viper.Viper) *Config {
	cfg := &Config{
		Python:       v.GetString(cfgKeyPython),
		VenvDir:      v.GetString(cfgKeyVenvDir),
		IndexURL:     v.GetString(cfgKeyIndexURL),
		JupyterImage: v.GetString(cfgKeyJupyterImage),
	}
	if cfg.VenvDir == "" {
		cfg.VenvDir = defaultVenvDir
	}
	if cfg.JupyterImage == "" {
		cfg.JupyterImage = defaultJupyterImage
	}
	return cfg
}

// ensureDefaultConfigFile creates a commented config.yaml if none exists.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
