// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/maruel/go-galileo/galileo"
	"github.com/maruel/go-galileo/galileo/timing"
)

// Command is a request received over MQTT.
type Command struct {
	ID      string        `json:"id,omitempty"`
	Command string        `json:"command"`
	Control string        `json:"control,omitempty"`
	Value   int32         `json:"value,omitempty"`
	Format  *FormatConfig `json:"format,omitempty"`
	Crop    *CropConfig   `json:"crop,omitempty"`
	FPS     uint32        `json:"fps,omitempty"`
}

// Status is the device state as published.
type Status struct {
	Instance      string           `json:"instance"`
	State         string           `json:"state"`
	Format        FormatConfig     `json:"format"`
	Crop          CropConfig       `json:"crop"`
	FrameInterval string           `json:"frame_interval"`
	FPS           float64          `json:"fps"` // Achieved.
	Timings       string           `json:"timings,omitempty"`
	Error         string           `json:"error,omitempty"`
	Controls      map[string]int32 `json:"controls"`
	Timestamp     time.Time        `json:"timestamp"`
}

// camera serializes the commands sent to the device and notifies listeners
// of each change.
type camera struct {
	id string
	d  *galileo.Dev

	mu        sync.Mutex
	listeners []func(*Status)
}

func newCamera(id string, d *galileo.Dev) *camera {
	return &camera{id: id, d: d}
}

// listen registers f to be called after every state change.
func (c *camera) listen(f func(*Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, f)
}

// status returns the current device state.
func (c *camera) status() *Status {
	f := c.d.Format()
	r := c.d.Crop()
	fi := c.d.FrameInterval()
	s := &Status{
		Instance:      c.id,
		State:         c.d.State().String(),
		Format:        FormatConfig{Width: f.Width, Height: f.Height},
		Crop:          CropConfig{Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height},
		FrameInterval: fi.String(),
		Controls:      map[string]int32{},
		Timestamp:     time.Now().UTC(),
	}
	if t, err := c.d.Timings(); err != nil {
		s.Error = err.Error()
	} else {
		s.Timings = t.String()
		fi = t.FrameInterval
	}
	if fi.Numerator != 0 {
		s.FPS = float64(fi.Denominator) / float64(fi.Numerator)
	}
	for _, ctrl := range galileo.Controls() {
		v, _ := c.d.GetControl(ctrl)
		s.Controls[ctrl.String()] = v
	}
	return s
}

// handle runs a command and returns the resulting state.
func (c *camera) handle(cmd *Command) (*Status, error) {
	c.mu.Lock()
	err := c.run(cmd)
	c.mu.Unlock()
	s := c.status()
	if err != nil {
		return s, err
	}
	if cmd.Command != "get_status" {
		c.notify(s)
	}
	return s, nil
}

// apply configures the device as described by the profile.
func (c *camera) apply(cfg *Config) error {
	c.mu.Lock()
	err := c.applyLocked(cfg)
	c.mu.Unlock()
	c.notify(c.status())
	return err
}

// Private details.

func (c *camera) run(cmd *Command) error {
	switch cmd.Command {
	case "get_status":
		return nil
	case "stream_on":
		return c.d.StreamOn()
	case "stream_off":
		c.d.StreamOff()
		return nil
	case "set_control":
		ctrl, err := galileo.ParseControl(cmd.Control)
		if err != nil {
			return err
		}
		return c.d.SetControl(ctrl, cmd.Value)
	case "set_format":
		if cmd.Format == nil {
			return fmt.Errorf("%w: set_format requires format", galileo.ErrInvalid)
		}
		f := c.d.Format()
		f.Width = cmd.Format.Width
		f.Height = cmd.Format.Height
		return c.d.SetFormat(f)
	case "set_crop":
		if cmd.Crop == nil {
			return fmt.Errorf("%w: set_crop requires crop", galileo.ErrInvalid)
		}
		return c.d.SetCrop(cmd.Crop.rect())
	case "set_interval":
		return c.d.SetFrameInterval(timing.Fract{Numerator: 1, Denominator: cmd.FPS})
	default:
		return fmt.Errorf("%w: unknown command %q", galileo.ErrInvalid, cmd.Command)
	}
}

func (c *camera) applyLocked(cfg *Config) error {
	if err := c.d.SetFormat(cfg.format()); err != nil {
		return err
	}
	if err := c.d.SetCrop(cfg.crop()); err != nil {
		return err
	}
	if err := c.d.SetFrameInterval(cfg.interval()); err != nil {
		return err
	}
	for name, v := range cfg.Controls {
		ctrl, err := galileo.ParseControl(name)
		if err != nil {
			return err
		}
		if err := c.d.SetControl(ctrl, v); err != nil {
			return err
		}
	}
	if cfg.Stream {
		return c.d.StreamOn()
	}
	return nil
}

func (c *camera) notify(s *Status) {
	c.mu.Lock()
	l := c.listeners
	c.mu.Unlock()
	for _, f := range l {
		f(s)
	}
	log.Printf("%s %s fps=%.3f", s.State, s.Timings, s.FPS)
}
