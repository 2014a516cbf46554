package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SystemPrompt  string
	AssistantName string
	Threshold     float64
	MaxChars      int
	Pairs         bool
	NoMod         bool
	Merge         bool
	Concurrency   int

	InputPath  string
	OutputPath string
	InputDir   string
	APIKey     string
	ConfigFile string

	PrintSchema bool
	Verbose     bool
}

func (c Config) Validate() error {
	if c.PrintSchema {
		return nil
	}
	if c.SystemPrompt == "" {
		return errors.New("missing -sys-prompt")
	}
	if c.AssistantName == "" {
		return errors.New("missing -name")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return errors.New("threshold must be in [0,1]")
	}
	if c.MaxChars <= 0 {
		return errors.New("max-chars must be > 0")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if c.InputDir == "" && c.InputPath == "" {
		return errors.New("either -dir or an input file must be provided")
	}
	if c.InputDir != "" {
		fi, err := os.Stat(c.InputDir)
		if err != nil {
			return fmt.Errorf("directory does not exist: %s", c.InputDir)
		}
		if !fi.IsDir() {
			return fmt.Errorf("not a directory: %s", c.InputDir)
		}
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Threshold:   0.7,
		MaxChars:    8000,
		Concurrency: 25,
	}
}

// fileConfig mirrors the settings a YAML defaults file may carry. Pointer
// fields distinguish "absent" from zero values. Secrets and paths are flags
// only.
type fileConfig struct {
	SystemPrompt  *string  `yaml:"system_prompt"`
	AssistantName *string  `yaml:"assistant_name"`
	Threshold     *float64 `yaml:"threshold"`
	MaxChars      *int     `yaml:"max_chars"`
	Pairs         *bool    `yaml:"pairs"`
	NoModeration  *bool    `yaml:"no_moderation"`
	Merge         *bool    `yaml:"merge"`
	Concurrency   *int     `yaml:"concurrency"`
}

func loadFileConfig(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// applyFileDefaults fills cfg from the YAML file for every setting the user
// didn't pass explicitly. Precedence: flag > file > built-in default.
func applyFileDefaults(cfg *Config, fc fileConfig, set map[string]bool) {
	if !set["sys-prompt"] && fc.SystemPrompt != nil {
		cfg.SystemPrompt = *fc.SystemPrompt
	}
	if !set["name"] && fc.AssistantName != nil {
		cfg.AssistantName = *fc.AssistantName
	}
	if !set["threshold"] && fc.Threshold != nil {
		cfg.Threshold = *fc.Threshold
	}
	if !set["max-chars"] && fc.MaxChars != nil {
		cfg.MaxChars = *fc.MaxChars
	}
	if !set["pairs"] && fc.Pairs != nil {
		cfg.Pairs = *fc.Pairs
	}
	if !set["no-mod"] && fc.NoModeration != nil {
		cfg.NoMod = *fc.NoModeration
	}
	if !set["merge"] && fc.Merge != nil {
		cfg.Merge = *fc.Merge
	}
	if !set["concurrency"] && fc.Concurrency != nil {
		cfg.Concurrency = *fc.Concurrency
	}
}
