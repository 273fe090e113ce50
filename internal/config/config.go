// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

// Library configuration package.

// This package includes the run-time configuration of the hook engine.
// Settings are read from the environment and from an optional configuration
// file, environment variables taking precedence.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/JonasGessner/instancehook/internal/ihlib/iherrors"
	"github.com/JonasGessner/instancehook/internal/plog"
	"github.com/spf13/viper"
)

type Config struct {
	*viper.Viper
}

const (
	configEnvPrefix    = `instancehook`
	configFileBasename = `instancehook`
)

const (
	configEnvKeyConfigFile = `config_file`

	configKeyLogLevel = `log_level`
	configKeyDisable  = `disable`
)

// User configuration's default values.
const (
	configDefaultLogLevel = `error`
)

// New returns the library configuration. It reads an optional configuration
// file whose location can be enforced with the environment variable
// `INSTANCEHOOK_CONFIG_FILE`. Unset settings take their default values.
func New(logger *plog.Logger) (*Config, error) {
	manager := viper.New()
	manager.SetEnvPrefix(configEnvPrefix)
	manager.AutomaticEnv()
	manager.SetConfigName(configFileBasename)

	// Default values of configurable parameters
	parameters := []struct {
		key          string
		defaultValue interface{}
	}{
		{key: configKeyLogLevel, defaultValue: configDefaultLogLevel},
		{key: configKeyDisable, defaultValue: ""},
	}
	for _, p := range parameters {
		manager.SetDefault(p.key, p.defaultValue)
	}

	// Configuration file settings
	configFileEnvVar := strings.ToUpper(configEnvPrefix + "_" + configEnvKeyConfigFile)
	configFile := os.Getenv(configFileEnvVar)
	if configFile != "" {
		// File location enforced by the user
		manager.SetConfigFile(configFile)
		logger.Infof("config: configuration file enforced by the environment variable `%s` to `%s`", configFileEnvVar, configFile)
	} else {
		// Not enforced: add possible paths in precedence order
		// 1. Current working directory path:
		manager.AddConfigPath(`.`)
		// 2. Executable path
		exec, err := os.Executable()
		if err != nil {
			logger.Error(iherrors.Wrap(err, "config: could not read the executable file path"))
		} else {
			manager.AddConfigPath(filepath.Dir(exec))
		}
	}
	// Try to read a configuration file according to the previous settings
	if readErr, fileUsed := manager.ReadInConfig(), manager.ConfigFileUsed(); readErr != nil && fileUsed != "" {
		// Could not read despite the fact of having found a file
		logger.Error(iherrors.Wrap(readErr, fmt.Sprintf("config: could not read the configuration file `%s`: falling back to environment variables", fileUsed)))
	} else if fileUsed != "" {
		// A file was found and no error reading it
		logger.Infof("config: reading configuration settings from file `%s`", fileUsed)
	} else {
		logger.Infof("config: reading configuration settings from environment variables")
	}

	cfg := &Config{Viper: manager}
	if cfg.LogLevel() == plog.Debug {
		for _, p := range parameters {
			logger.Infof("config: settings: %s = %q", p.key, cfg.GetString(p.key))
		}
	}

	return cfg, nil
}

// LogLevel returns the log level.
func (c *Config) LogLevel() plog.LogLevel {
	return plog.ParseLogLevel(sanitizeString(c.GetString(configKeyLogLevel)))
}

// Disabled returns true when the hook engine should be disabled, false
// otherwise. A disabled engine rejects every installation but still runs the
// units of work given to the scoped helpers.
func (c *Config) Disabled() bool {
	disable := sanitizeString(c.GetString(configKeyDisable))
	return disable != ""
}

func sanitizeString(s string) string {
	return strings.TrimFunc(s, unicode.IsSpace)
}
