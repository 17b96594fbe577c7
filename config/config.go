// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package config loads the analysis settings from a YAML file, FSANALYZER_
// environment variables and command line flags, in increasing precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/forensicanalysis/fsanalyzer"
)

// ErrConfigInvalid is returned for unreadable or inconsistent settings.
var ErrConfigInvalid = errors.New("invalid configuration")

const envPrefix = "FSANALYZER"

var keys = []string{
	"store", "recursive", "partition_id", "offset", "cluster_size",
	"slack_threshold", "max_depth", "log_level",
}

// Config holds the settings of an analysis run.
type Config struct {
	Store          string `mapstructure:"store"`
	Recursive      bool   `mapstructure:"recursive"`
	PartitionID    int    `mapstructure:"partition_id"`
	Offset         int64  `mapstructure:"offset"`
	ClusterSize    int64  `mapstructure:"cluster_size"`
	SlackThreshold int64  `mapstructure:"slack_threshold"`
	MaxDepth       int    `mapstructure:"max_depth"` // 0 disables the limit
	LogLevel       string `mapstructure:"log_level"`
}

// Default returns the settings used for unset keys.
func Default() Config {
	return Config{
		Store:          "analysis.fsanalyzer",
		Recursive:      true,
		ClusterSize:    fsanalyzer.DefaultSlackPolicy.ClusterSize,
		SlackThreshold: fsanalyzer.DefaultSlackPolicy.Threshold,
		MaxDepth:       fsanalyzer.DefaultMaxDepth,
		LogLevel:       "info",
	}
}

// DefaultConfigPaths returns the directories searched for fsanalyzer.yaml.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "fsanalyzer"))
	}
	return paths
}

// Load reads the configuration. If path is empty, fsanalyzer.yaml is searched
// in the default paths and a missing file is not an error. Flags of the flag
// set are bound to the key of the same name, with dashes as underscores.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	defaults := Default()
	v.SetDefault("store", defaults.Store)
	v.SetDefault("recursive", defaults.Recursive)
	v.SetDefault("partition_id", defaults.PartitionID)
	v.SetDefault("offset", defaults.Offset)
	v.SetDefault("cluster_size", defaults.ClusterSize)
	v.SetDefault("slack_threshold", defaults.SlackThreshold)
	v.SetDefault("max_depth", defaults.MaxDepth)
	v.SetDefault("log_level", defaults.LogLevel)

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(flag *pflag.Flag) {
			key := strings.ReplaceAll(flag.Name, "-", "_")
			if !isKey(key) || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, flag)
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fsanalyzer")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrapf(ErrConfigInvalid, "%s", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(ErrConfigInvalid, "%s", err)
	}
	// an empty store or log level is unset, zero numbers and false are valid
	unset := Config{Store: defaults.Store, LogLevel: defaults.LogLevel}
	if err := mergo.Merge(cfg, unset); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isKey(name string) bool {
	for _, key := range keys {
		if key == name {
			return true
		}
	}
	return false
}

// Validate checks the ranges of all settings.
func (c *Config) Validate() error {
	switch {
	case c.ClusterSize <= 0:
		return errors.Wrapf(ErrConfigInvalid, "cluster size must be positive, is %d", c.ClusterSize)
	case c.SlackThreshold < 0:
		return errors.Wrapf(ErrConfigInvalid, "slack threshold must not be negative, is %d", c.SlackThreshold)
	case c.Offset < 0:
		return errors.Wrapf(ErrConfigInvalid, "offset must not be negative, is %d", c.Offset)
	case c.PartitionID < 0:
		return errors.Wrapf(ErrConfigInvalid, "partition id must not be negative, is %d", c.PartitionID)
	case c.MaxDepth < 0:
		return errors.Wrapf(ErrConfigInvalid, "maximum depth must not be negative, is %d", c.MaxDepth)
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrConfigInvalid, "unknown log level %q", c.LogLevel)
	}
	return nil
}

// SlackPolicy returns the slack policy of the configuration.
func (c *Config) SlackPolicy() fsanalyzer.SlackPolicy {
	return fsanalyzer.SlackPolicy{Threshold: c.SlackThreshold, ClusterSize: c.ClusterSize}
}

// Apply copies the walk settings into a walker.
func (c *Config) Apply(w *fsanalyzer.Walker) {
	w.Recursive = c.Recursive
	w.PartitionID = c.PartitionID
	w.Slack = c.SlackPolicy()
	w.MaxDepth = c.MaxDepth
}
