package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Shell   ShellConfig   `yaml:"shell"`
	Session SessionConfig `yaml:"session"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxClients caps concurrent WebSocket clients. 0 means unlimited.
	MaxClients int `yaml:"max_clients"`
}

// ShellConfig holds the paths the resolver probes. They default to the
// installation layout below but are configurable so tests (and alternate
// prefixes) can point them elsewhere.
type ShellConfig struct {
	// Home is the directory ensured to exist before each session launch
	// and the default working directory. Empty means the process owner's
	// home directory.
	Home string `yaml:"home"`
	// PrefixBin is the directory probed for shell candidates.
	PrefixBin string `yaml:"prefix_bin"`
	// MarkerFile is the user-configured shell marker, usually a symlink.
	// Empty means <home>/.termrack/shell.
	MarkerFile string `yaml:"marker_file"`
	// Candidates are probed in order inside PrefixBin.
	Candidates []string `yaml:"candidates"`
	// Fallback is the absolute system shell used when nothing else resolves.
	Fallback string `yaml:"fallback"`
	// MulticallName cannot be launched as a login shell under its own name;
	// when the marker resolves to it, MulticallSubstitute is used instead.
	MulticallName       string `yaml:"multicall_name"`
	MulticallSubstitute string `yaml:"multicall_substitute"`
	// Term is the TERM value exported to sessions.
	Term string `yaml:"term"`
}

type SessionConfig struct {
	OutputBufferSize int `yaml:"output_buffer_size"`
	Cols             int `yaml:"cols"`
	Rows             int `yaml:"rows"`
}

func defaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Shell: ShellConfig{
			Home:          home,
			PrefixBin:     "/usr/bin",
			Candidates:    []string{"bash", "zsh", "ash"},
			Fallback:      "/bin/sh",
			MulticallName: "busybox",
			Term:          "xterm-256color",
		},
		Session: SessionConfig{
			OutputBufferSize: 256 * 1024,
			Cols:             80,
			Rows:             24,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDerived()

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the default configuration when
// the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = defaultConfig()
		cfg.applyDerived()
		return cfg, nil
	}
	return cfg, err
}

// applyDerived fills fields whose defaults depend on other fields and floors
// values that would break session startup.
func (c *Config) applyDerived() {
	if c.Shell.MarkerFile == "" {
		c.Shell.MarkerFile = filepath.Join(c.Shell.Home, ".termrack", "shell")
	}
	if c.Shell.MulticallSubstitute == "" {
		c.Shell.MulticallSubstitute = filepath.Join(c.Shell.PrefixBin, "ash")
	}
	if c.Session.OutputBufferSize <= 0 {
		c.Session.OutputBufferSize = 256 * 1024
	}
	if c.Session.Cols <= 0 {
		c.Session.Cols = 80
	}
	if c.Session.Rows <= 0 {
		c.Session.Rows = 24
	}
}
