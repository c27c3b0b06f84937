// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pll finds the PLL1 dividers and multiplier that best reach a pair
// of video timing and serial link clock targets from a reference clock.
//
// The search is exhaustive over the legal values listed in the datasheet and
// iterates in a fixed order so equal solutions always resolve the same way.
package pll

import (
	"errors"
	"fmt"
	"log"

	"github.com/maruel/go-galileo/galileo/timing"
)

// Absolute hardware ranges, in Hz, inclusive.
const (
	MinVTClk   = 20000000
	MaxVTClk   = 256000000
	MinMIPIClk = 82500000
	MaxMIPIClk = 1000000000
	MinRefClk  = 6000000
	MaxRefClk  = 27000000
	MinPLLIn   = 3000000
	MaxPLLIn   = 27000000
	MinPLLOut  = 1000000000
	MaxPLLOut  = 2080000000
	MinVTSys   = 83330000
	MaxVTSys   = 2080000000
)

// Multiplier range, inclusive.
const (
	MinMultiplier = 36
	MaxMultiplier = 832
)

// Legal divider values, in search order.
var (
	PreDivs   = []uint32{1, 2, 4}
	VTSysDivs = []uint32{1, 2, 4, 6, 8, 10, 12}
	VTPixDivs = []uint32{4, 5, 6, 7, 8, 9, 10, 12}
	OPSysDivs = []uint32{2, 4, 12, 16, 20, 24}
)

// ErrNoFeasibleConfig is returned when no combination keeps every clock in
// range.
var ErrNoFeasibleConfig = errors.New("pll: no feasible configuration")

// Config is a PLL1 configuration and the clocks it achieves.
type Config struct {
	PreDiv     uint32
	Multiplier uint32
	VTSysDiv   uint32
	VTPixDiv   uint32
	OPSysDiv   uint32

	VT   uint64 // Achieved vtclk in Hz.
	MIPI uint64 // Achieved mipiclk in Hz.

	// KeepFPS is true when the achieved clocks are both at or above their
	// targets.
	KeepFPS bool
}

func (c *Config) String() string {
	return fmt.Sprintf("pre=%d m=%d vts=%d vtp=%d op=%d vtclk=%dHz mipiclk=%dHz", c.PreDiv, c.Multiplier, c.VTSysDiv, c.VTPixDiv, c.OPSysDiv, c.VT, c.MIPI)
}

// Clocks returns the achieved clocks.
func (c *Config) Clocks() timing.Clocks {
	return timing.Clocks{VT: c.VT, MIPI: c.MIPI}
}

// Error returns the distance between the achieved clocks and t.
func (c *Config) Error(t timing.Clocks) uint64 {
	return absDiff(c.VT, t.VT) + absDiff(c.MIPI, t.MIPI)
}

// Solve searches first for a configuration at or above both targets, and
// if there is none, for the closest one, derating the frame rate.
func Solve(t timing.Clocks, refclk uint64) (*Config, error) {
	c, err := Search(t, refclk, true)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNoFeasibleConfig) {
		return nil, err
	}
	log.Printf("pll: can't keep fps for %s, derating", t)
	return Search(t, refclk, false)
}

// Search does a single pass over all combinations.
//
// When keepFPS is true, combinations achieving a clock lower than its target
// are rejected.
func Search(t timing.Clocks, refclk uint64, keepFPS bool) (*Config, error) {
	if err := checkRange("vtclk", t.VT, MinVTClk, MaxVTClk); err != nil {
		return nil, err
	}
	if err := checkRange("mipiclk", t.MIPI, MinMIPIClk, MaxMIPIClk); err != nil {
		return nil, err
	}
	if err := checkRange("refclk", refclk, MinRefClk, MaxRefClk); err != nil {
		return nil, err
	}
	var best *Config
	bestErr := uint64(0)
	for _, p := range PreDivs {
		in := refclk / uint64(p)
		if !between(in, MinPLLIn, MaxPLLIn) {
			continue
		}
		for m := uint32(MinMultiplier); m <= MaxMultiplier; m++ {
			out := in * uint64(m)
			if !between(out, MinPLLOut, MaxPLLOut) {
				continue
			}
			for _, vts := range VTSysDivs {
				sys := out / uint64(vts)
				if !between(sys, MinVTSys, MaxVTSys) {
					continue
				}
				for _, vtp := range VTPixDivs {
					vt := sys / uint64(vtp)
					if !between(vt, MinVTClk, MaxVTClk) {
						continue
					}
					for _, op := range OPSysDivs {
						mipi := out / uint64(op) / 2
						if !between(mipi, MinMIPIClk, MaxMIPIClk) {
							continue
						}
						if keepFPS && (vt < t.VT || mipi < t.MIPI) {
							continue
						}
						e := absDiff(vt, t.VT) + absDiff(mipi, t.MIPI)
						if best == nil || e < bestErr {
							bestErr = e
							best = &Config{PreDiv: p, Multiplier: m, VTSysDiv: vts, VTPixDiv: vtp, OPSysDiv: op}
						}
					}
				}
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %s from refclk=%dHz keep_fps=%t", ErrNoFeasibleConfig, t, refclk, keepFPS)
	}
	// Recompute without the intermediate truncations.
	best.VT = refclk * uint64(best.Multiplier) / uint64(best.PreDiv*best.VTSysDiv*best.VTPixDiv)
	best.MIPI = refclk * uint64(best.Multiplier) / uint64(best.PreDiv*best.OPSysDiv*2)
	best.KeepFPS = keepFPS
	return best, nil
}

// Private details.

func between(f, min, max uint64) bool {
	return f >= min && f <= max
}

func checkRange(name string, f, min, max uint64) error {
	if !between(f, min, max) {
		return fmt.Errorf("%w: %s %dHz is out of range [%d - %d]", ErrNoFeasibleConfig, name, f, min, max)
	}
	return nil
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
