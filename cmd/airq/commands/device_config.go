// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// thresholdMetrics is the fixed emission order for threshold commands,
// independent of the document's own ordering.
var thresholdMetrics = []string{"iaq", "co2", "voc", "temp", "rh"}

// Scalar is a numeric-or-string document value. It remembers the textual
// form it had in the document, so translating the same document twice yields
// byte-identical commands.
type Scalar struct {
	text string
}

func (s Scalar) String() string {
	return s.text
}

func (s *Scalar) UnmarshalJSON(b []byte) error {
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		s.text = num.String()
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("expected number or string, got %s", string(b))
	}
	s.text = str
	return nil
}

func (s *Scalar) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		s.text = t
	case int:
		s.text = strconv.Itoa(t)
	case int64:
		s.text = strconv.FormatInt(t, 10)
	case float64:
		s.text = strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Errorf("expected number or string, got %v", v)
	}
	return nil
}

// Flag is a boolean document value that also accepts 0/1 integers.
type Flag struct {
	on bool
}

func (f Flag) Int() int {
	if f.on {
		return 1
	}
	return 0
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	var on bool
	if err := json.Unmarshal(b, &on); err == nil {
		f.on = on
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected boolean or integer, got %s", string(b))
	}
	f.on = n != 0
	return nil
}

func (f *Flag) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		f.on = t
	case int:
		f.on = t != 0
	default:
		return fmt.Errorf("expected boolean or integer, got %v", v)
	}
	return nil
}

// DeviceConfig is the typed form of an AirQ configuration document. Every
// field is optional; a nil field means "leave the device's current setting
// alone" and emits no command.
type DeviceConfig struct {
	NodeID     *string              `json:"node_id" yaml:"node_id"`
	I2C        *I2CConfig           `json:"i2c" yaml:"i2c"`
	Fmt        *string              `json:"fmt" yaml:"fmt"`
	JSONPretty *bool                `json:"json_pretty" yaml:"json_pretty"`
	LiveMS     *int                 `json:"live_ms" yaml:"live_ms"`
	Rates      *RatesConfig         `json:"rates" yaml:"rates"`
	Thresholds map[string]Threshold `json:"thresholds" yaml:"thresholds"`
	LED        *LEDConfig           `json:"led" yaml:"led"`
	Sound      *Flag                `json:"sound" yaml:"sound"`
}

type I2CConfig struct {
	SDA *Scalar `json:"sda" yaml:"sda"`
	SCL *Scalar `json:"scl" yaml:"scl"`
	Hz  *Scalar `json:"hz" yaml:"hz"`
}

type RatesConfig struct {
	Amb *Scalar `json:"amb" yaml:"amb"`
	Env *Scalar `json:"env" yaml:"env"`
}

type Threshold struct {
	Warn *Scalar `json:"warn" yaml:"warn"`
	Crit *Scalar `json:"crit" yaml:"crit"`
}

type LEDConfig struct {
	Mode   *string  `json:"mode" yaml:"mode"`
	Bright *Scalar  `json:"bright" yaml:"bright"`
	RGB    []Scalar `json:"rgb" yaml:"rgb"`
}

// ParseDeviceConfig reads and validates a JSON or YAML configuration
// document. Validation happens here, before any transport is opened, so a
// malformed document never reaches the device.
func ParseDeviceConfig(path string) (*DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg DeviceConfig
	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, &ConfigParseError{Path: path, Reason: err.Error()}
	}

	if reason := validateDeviceConfig(&cfg); reason != "" {
		return nil, &ConfigParseError{Path: path, Reason: reason}
	}
	return &cfg, nil
}

func validateDeviceConfig(cfg *DeviceConfig) string {
	if cfg.I2C != nil {
		if (cfg.I2C.SDA == nil) != (cfg.I2C.SCL == nil) {
			return "i2c requires both sda and scl"
		}
	}
	if cfg.LiveMS != nil && *cfg.LiveMS < 0 {
		return fmt.Sprintf("live_ms must be non-negative, got %d", *cfg.LiveMS)
	}
	for metric := range cfg.Thresholds {
		if !isThresholdMetric(metric) {
			return fmt.Sprintf("unknown threshold metric '%s' (known: %s)",
				metric, strings.Join(thresholdMetrics, ", "))
		}
	}
	if cfg.LED != nil && cfg.LED.RGB != nil && len(cfg.LED.RGB) < 3 {
		return fmt.Sprintf("led.rgb needs 3 entries, got %d", len(cfg.LED.RGB))
	}
	return ""
}

func isThresholdMetric(name string) bool {
	for _, m := range thresholdMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// TranslateConfig maps a configuration document to the device CLI command
// sequence. The rule order is fixed; whether a rule fires depends only on
// field presence, so the output is deterministic for a given document. The
// diagnostic preamble and the save/show trailer are always included.
func TranslateConfig(cfg *DeviceConfig, calLoad, calSave bool) []string {
	cmds := []string{"poster", "status"}

	if cfg.NodeID != nil && *cfg.NodeID != "" {
		cmds = append(cmds, "node "+*cfg.NodeID)
	}

	if cfg.I2C != nil && cfg.I2C.SDA != nil && cfg.I2C.SCL != nil {
		line := fmt.Sprintf("i2c %s %s", cfg.I2C.SDA, cfg.I2C.SCL)
		if cfg.I2C.Hz != nil {
			line += " " + cfg.I2C.Hz.String()
		}
		cmds = append(cmds, line, "scan", "probe")
	}

	if cfg.Fmt != nil {
		cmds = append(cmds, "fmt "+*cfg.Fmt)
	}

	if cfg.JSONPretty != nil {
		pretty := 0
		if *cfg.JSONPretty {
			pretty = 1
		}
		cmds = append(cmds, fmt.Sprintf("json pretty %d", pretty))
	}

	if cfg.LiveMS != nil {
		cmds = append(cmds, fmt.Sprintf("live %d", *cfg.LiveMS))
	}

	if cfg.Rates != nil {
		rated := false
		if cfg.Rates.Amb != nil {
			cmds = append(cmds, "rate amb "+cfg.Rates.Amb.String())
			rated = true
		}
		if cfg.Rates.Env != nil {
			cmds = append(cmds, "rate env "+cfg.Rates.Env.String())
			rated = true
		}
		if rated {
			cmds = append(cmds, "probe")
		}
	}

	if cfg.Thresholds != nil {
		for _, metric := range thresholdMetrics {
			thr, ok := cfg.Thresholds[metric]
			if !ok || thr.Warn == nil || thr.Crit == nil {
				continue
			}
			cmds = append(cmds, fmt.Sprintf("thr set %s %s %s", metric, thr.Warn, thr.Crit))
		}
		cmds = append(cmds, "thr show")
	}

	if cfg.LED != nil {
		if cfg.LED.Mode != nil {
			cmds = append(cmds, "led mode "+*cfg.LED.Mode)
		}
		if cfg.LED.Bright != nil {
			cmds = append(cmds, "led bright "+cfg.LED.Bright.String())
		}
		if len(cfg.LED.RGB) >= 3 {
			cmds = append(cmds, fmt.Sprintf("led rgb %s %s %s",
				cfg.LED.RGB[0], cfg.LED.RGB[1], cfg.LED.RGB[2]))
		}
	}

	if cfg.Sound != nil {
		cmds = append(cmds, fmt.Sprintf("sound %d", cfg.Sound.Int()))
	}

	if calLoad {
		cmds = append(cmds, "cal load")
	}
	if calSave {
		cmds = append(cmds, "cal save")
	}

	return append(cmds, "cfg save", "cfg show", "status", "telem")
}
