package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coding-agent-search/cass-installer/pkg/spec"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfig names an explicit config file.
	EnvConfig = "CASS_INSTALLER_CONFIG"
	// EnvVersion pins the version to install when none is given.
	EnvVersion = "CASS_VERSION"

	projectConfigName = "cass-installer.yml"
)

// ErrNotFound means no config file exists at any searched location.
var ErrNotFound = errors.New("no cass-installer config found")

// Config is the optional installer config file. Project fields override the
// compiled-in release description; the rest provide request defaults.
type Config struct {
	spec.Project `yaml:",inline"`

	BinDir           string        `yaml:"bin_dir,omitempty"`
	AddToPath        bool          `yaml:"add_to_path,omitempty"`
	Verify           bool          `yaml:"verify,omitempty"`
	SignatureKeyFile string        `yaml:"signature_key,omitempty"`
	Timeout          time.Duration `yaml:"timeout,omitempty"`
}

// Default returns a config holding only compiled-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads and parses a config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file: %s", path)
	}

	// Apply defaults
	cfg.SetDefaults()

	if err := cfg.Project.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file: %s", path)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("invalid config file: %s: timeout must not be negative", path)
	}

	return &cfg, nil
}

// Discover returns the config file to use. $CASS_INSTALLER_CONFIG wins and
// must exist. Otherwise .config/cass-installer.yml is searched for in the
// current directory and its parents, then the user config directory.
func Discover() (string, error) {
	if explicit := os.Getenv(EnvConfig); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(err, "%s points at a missing file", EnvConfig)
		}
		return explicit, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "failed to get current directory")
	}

	for {
		configPath := filepath.Join(dir, ".config", projectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Check if we've reached the root
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if userDir, err := os.UserConfigDir(); err == nil {
		configPath := filepath.Join(userDir, "cass-installer", "config.yml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	return "", ErrNotFound
}

// LoadOrDiscover loads a config from the given path, or discovers one if
// path is empty. Finding none is not an error: the defaults are returned
// with an empty path.
func LoadOrDiscover(configPath string) (*Config, string, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = Discover()
		if errors.Is(err, ErrNotFound) {
			return Default(), "", nil
		}
		if err != nil {
			return nil, "", err
		}
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// Apply fills request fields the operator left empty from the config file
// and the environment.
func (c *Config) Apply(req *spec.InstallRequest) {
	if req.Version == "" {
		req.Version = os.Getenv(EnvVersion)
	}
	if req.BinDir == "" {
		req.BinDir = c.BinDir
	}
	if req.SignatureKeyFile == "" {
		req.SignatureKeyFile = c.SignatureKeyFile
	}
	if req.Timeout == 0 {
		req.Timeout = c.Timeout
	}
	req.AddToPath = req.AddToPath || c.AddToPath
	req.Verify = req.Verify || c.Verify
}
