// =============================================================================
// config.go - Configuration File
// =============================================================================
//
// Settings come from three layers, later layers winning:
//  1. Built-in defaults (defaultConfig)
//  2. An optional YAML file (--config)
//  3. Command-line flags
//
// Example file:
//
//	host: freechess.org
//	port: 5000
//	timeseal: true
//	transport: tcp
//	log_level: info
//	transcript: ~/.local/share/ics/transcript.db
//	aliases:
//	  t: tell
//	  gm: "tell $1 good move!"
//
// =============================================================================

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/timeseal/icsclient/timeseal"
)

const (
	defaultHost = "freechess.org"
	defaultPort = 5000
)

// Config holds every setting of the client.
type Config struct {
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	Timeseal   bool              `yaml:"timeseal"`
	Transport  string            `yaml:"transport"`
	User       string            `yaml:"user"`
	DataDir    string            `yaml:"data_dir"`
	HelperPort int               `yaml:"helper_port"`
	LogLevel   string            `yaml:"log_level"`
	LogFile    string            `yaml:"log_file"`
	Transcript string            `yaml:"transcript"`
	Aliases    map[string]string `yaml:"aliases"`
}

// defaultConfig returns the settings used when nothing else is specified.
func defaultConfig() *Config {
	return &Config{
		Host:       defaultHost,
		Port:       defaultPort,
		Timeseal:   true,
		Transport:  "tcp",
		HelperPort: defaultHelperPort,
		LogLevel:   "info",
	}
}

// loadConfig returns the defaults overlaid with the YAML file at filename.
// An empty filename returns the defaults.
func loadConfig(filename string) (*Config, error) {
	cfg := defaultConfig()
	if filename == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(expandHome(filename))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", filename)
	}
	return cfg, nil
}

// normalize fills derived defaults and validates the settings.
func (c *Config) normalize() error {
	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		return errors.New("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.HelperPort <= 0 || c.HelperPort > 65535 {
		c.HelperPort = defaultHelperPort
	}

	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if _, err := timeseal.TransportByName(c.Transport); err != nil {
		return err
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("invalid log level %q", c.LogLevel)
	}

	if c.DataDir == "" {
		c.DataDir = filepath.Join(homeDir(), ".local", "share", "ics")
	}
	c.DataDir = expandHome(c.DataDir)
	c.LogFile = expandHome(c.LogFile)
	c.Transcript = expandHome(c.Transcript)

	aliases := make(map[string]string, len(c.Aliases))
	for name, expansion := range c.Aliases {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || strings.HasPrefix(name, ".") {
			return errors.Errorf("invalid alias name %q", name)
		}
		aliases[name] = strings.TrimSpace(expansion)
	}
	c.Aliases = aliases
	return nil
}

// expandHome replaces a leading "~/" with the home directory.
func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
