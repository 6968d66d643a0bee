// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package directory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// UserConfigPathEnv if set, will load the user config from that path.
	UserConfigPathEnv = "AIRQ_USER_CONFIG_PATH"
	// PortEnv if set, overrides the remembered serial port.
	PortEnv = "AIRQ_PORT"
	// PioPathEnv if set, names the PlatformIO executable to invoke instead
	// of looking up 'pio' on the PATH.
	PioPathEnv = "AIRQ_PIO_PATH"

	// PortCfgKey is the user config key holding the remembered serial port.
	PortCfgKey = "port"
	// SerialCfgKey is the user config key holding serial dialogue defaults.
	SerialCfgKey = "serial"
)

// SerialDefaults are the dialogue timings stored in the user config. Any
// field left at its zero value falls back to the built-in default.
type SerialDefaults struct {
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read-timeout"`
	ReplyWindow time.Duration `mapstructure:"reply-window"`
	Settle      time.Duration `mapstructure:"settle"`
}

func GetUserConfigPath() (string, error) {
	if path, ok := os.LookupEnv(UserConfigPathEnv); ok {
		return path, nil
	}

	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homedir, ".config", "airq", "config.yaml"), nil
}

func GetUserConfig() (*viper.Viper, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config path: %w", err)
	}

	cfg := viper.New()
	cfg.SetConfigType("yaml")
	cfg.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := cfg.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read user config: %w", err)
		}
	}
	return cfg, nil
}

// GetSerialDefaults reads the stored serial dialogue settings. A missing or
// partial section is fine; callers overlay the built-in defaults.
func GetSerialDefaults(cfg *viper.Viper) (SerialDefaults, error) {
	var res SerialDefaults
	if !cfg.IsSet(SerialCfgKey) {
		return res, nil
	}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := cfg.UnmarshalKey(SerialCfgKey, &res, hook); err != nil {
		return res, fmt.Errorf("invalid serial settings in user config: %w", err)
	}
	return res, nil
}

func WriteConfig(cfg *viper.Viper) error {
	file := cfg.ConfigFileUsed()
	dir := filepath.Dir(file)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	tmpFile := filepath.Join(filepath.Dir(file), ".config.tmp.yaml")
	if err := cfg.WriteConfigAs(tmpFile); err != nil {
		return err
	}
	defer os.Remove(tmpFile)

	return os.Rename(tmpFile, file)
}
