// Package config loads and saves the debugger's configuration file.
package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".sdb"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through
// the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`
	// Prompt shown by the interactive loop.
	Prompt string `yaml:"prompt,omitempty"`
	// HistoryFile is where the command history is persisted.
	HistoryFile string `yaml:"history-file,omitempty"`
}

// LoadConfig attempts to populate a Config object from the config.yml
// file; a missing or unreadable file yields the defaults.
func LoadConfig() *Config {
	conf := &Config{}
	fullConfigFile, err := configFilePath()
	if err == nil {
		if data, err := os.ReadFile(fullConfigFile); err == nil {
			if err := yaml.Unmarshal(data, conf); err != nil {
				fmt.Fprintf(os.Stderr, "Unable to decode config file: %v.\n", err)
			}
		}
	}
	if conf.Prompt == "" {
		conf.Prompt = "sdb> "
	}
	if conf.HistoryFile == "" {
		conf.HistoryFile = ".sdb_history"
	}
	return conf
}

// SaveConfig writes conf back to the config file, creating the config
// directory if needed.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := configFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path.Dir(fullConfigFile), 0700); err != nil {
		return err
	}
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}
	return os.WriteFile(fullConfigFile, out, 0644)
}

func configFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return path.Join(home, configDir, configFile), nil
}
