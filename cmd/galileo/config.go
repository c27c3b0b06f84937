// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/maruel/go-galileo/galileo"
	"github.com/maruel/go-galileo/galileo/timing"

	"gopkg.in/yaml.v3"
	"periph.io/x/periph/conn/physic"
)

// Config is the board profile.
type Config struct {
	I2C      I2CConfig        `yaml:"i2c"`
	Power    string           `yaml:"power"` // GPIO pin name, optional.
	RefClkHz int64            `yaml:"refclk_hz"`
	Lanes    uint32           `yaml:"lanes"`
	Format   FormatConfig     `yaml:"format"`
	Crop     CropConfig       `yaml:"crop"`
	FPS      uint32           `yaml:"fps"`
	Controls map[string]int32 `yaml:"controls"`
	Stream   bool             `yaml:"stream"` // Start streaming once configured.
	Port     int              `yaml:"port"`
	MQTT     MQTTConfig       `yaml:"mqtt"`
}

// I2CConfig selects the bus.
type I2CConfig struct {
	Bus string `yaml:"bus"`
	Hz  int64  `yaml:"hz"`
}

// FormatConfig is the output size.
type FormatConfig struct {
	Width  uint32 `yaml:"width" json:"width"`
	Height uint32 `yaml:"height" json:"height"`
}

// CropConfig is the pixel array area to read.
type CropConfig struct {
	Left   uint32 `yaml:"left" json:"left"`
	Top    uint32 `yaml:"top" json:"top"`
	Width  uint32 `yaml:"width" json:"width"`
	Height uint32 `yaml:"height" json:"height"`
}

// MQTTConfig is the control plane. It is disabled when Broker is empty.
type MQTTConfig struct {
	Broker   string     `yaml:"broker"`
	ClientID string     `yaml:"client_id"` // Random when empty.
	QoS      byte       `yaml:"qos"`
	Topics   MQTTTopics `yaml:"topics"`
}

// MQTTTopics lists the topics used.
type MQTTTopics struct {
	Command string `yaml:"command"`
	Status  string `yaml:"status"`
}

// defaultConfig returns a profile matching galileo.DefaultOpts.
func defaultConfig() *Config {
	o := &galileo.DefaultOpts
	return &Config{
		RefClkHz: int64(o.RefClk / physic.Hertz),
		Lanes:    o.Lanes,
		Format:   FormatConfig{Width: o.Format.Width, Height: o.Format.Height},
		Crop:     CropConfig{Left: o.Crop.Left, Top: o.Crop.Top, Width: o.Crop.Width, Height: o.Crop.Height},
		FPS:      o.FrameInterval.Denominator / o.FrameInterval.Numerator,
		Controls: map[string]int32{},
		Port:     8010,
		MQTT: MQTTConfig{
			Topics: MQTTTopics{Command: "galileo/command", Status: "galileo/status"},
		},
	}
}

// loadConfig reads the profile at path. Missing fields keep their default
// value.
func loadConfig(path string) (*Config, error) {
	c := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// writeConfig saves c at path.
func writeConfig(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0600)
}

func (c *Config) validate() error {
	if c.FPS == 0 {
		return fmt.Errorf("%w: fps must be set", galileo.ErrInvalid)
	}
	if err := c.format().Validate(); err != nil {
		return err
	}
	if err := c.crop().Validate(); err != nil {
		return err
	}
	for name := range c.Controls {
		if _, err := galileo.ParseControl(name); err != nil {
			return err
		}
	}
	return nil
}

// opts returns the options to open the device with.
func (c *Config) opts() *galileo.Opts {
	o := galileo.DefaultOpts
	o.RefClk = physic.Frequency(c.RefClkHz) * physic.Hertz
	o.Lanes = c.Lanes
	o.Format = c.format()
	o.Crop = c.crop()
	o.FrameInterval = c.interval()
	return &o
}

func (c *Config) format() timing.Format {
	f := galileo.DefaultOpts.Format
	f.Width = c.Format.Width
	f.Height = c.Format.Height
	return f
}

func (c *Config) crop() timing.Rect {
	return c.Crop.rect()
}

func (c *Config) interval() timing.Fract {
	return timing.Fract{Numerator: 1, Denominator: c.FPS}
}

func (c *CropConfig) rect() timing.Rect {
	return timing.Rect{Left: c.Left, Top: c.Top, Width: c.Width, Height: c.Height}
}
