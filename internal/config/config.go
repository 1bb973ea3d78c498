// Package config holds the server configuration, loaded from an optional
// YAML file with defaults filled in for anything unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Activation configures which layer outputs are captured for the
// visualization payload and how many samples each may carry.
type Activation struct {
	// Layers is a substring allow-list matched against layer names.
	Layers []string `yaml:"layers"`

	// MaxSamples caps each captured activation vector.
	MaxSamples int `yaml:"max_samples"`
}

// Config configures the digit recognition server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// ModelPath is the trained model artifact. A missing file is a
	// degraded state, not a startup failure.
	ModelPath string `yaml:"model_path"`

	// HistoryDB is the sqlite file for the prediction log. Empty
	// disables the log.
	HistoryDB string `yaml:"history_db"`

	// MinInk rejects canvases whose mean inverted intensity falls below
	// this threshold, instead of confidently classifying a blank image.
	// Zero disables the check.
	MinInk float32 `yaml:"min_ink"`

	Activation Activation `yaml:"activation"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ModelPath == "" {
		c.ModelPath = "mnist_model.gob"
	}
	if len(c.Activation.Layers) == 0 {
		c.Activation.Layers = []string{"dense", "flatten"}
	}
	if c.Activation.MaxSamples <= 0 {
		c.Activation.MaxSamples = 64
	}
	if c.MinInk < 0 {
		c.MinInk = 0
	}
	// PORT wins over the configured address when set.
	if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
}

// Load reads path when it exists and applies defaults. An empty path
// yields the default configuration.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	c.defaults()
	return &c, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.defaults()
	return &c
}
