// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package shutter computes the global reset timers that synchronize the
// mechanical shutter with the exposure and the readout.
//
// All values are in lines unless noted otherwise. Durations are rounded to
// the nearest line.
package shutter

import (
	"errors"
	"fmt"
	"math"

	"github.com/maruel/go-galileo/galileo/timing"
)

// MinReadyDelay is the minimum tRDY, in lines.
const MinReadyDelay = 0x0034

// FlashStrobeTick is the flash strobe width register unit, in ns.
const FlashStrobeTick = 108

// ErrRegisterOverflow is matched by every OverflowError.
var ErrRegisterOverflow = errors.New("shutter: register overflow")

// OverflowError is returned when a derived value doesn't fit its 16 bits
// register.
type OverflowError struct {
	Field string
	Value uint64
}

func (o *OverflowError) Error() string {
	return fmt.Sprintf("shutter: %s %d doesn't fit in 16 bits", o.Field, o.Value)
}

// Is makes errors.Is(err, ErrRegisterOverflow) succeed.
func (o *OverflowError) Is(target error) bool {
	return target == ErrRegisterOverflow
}

// Input is what the plan is derived from.
type Input struct {
	Exposure     uint32 // In µs.
	ShutterDelay uint16 // Mechanical shutter closing delay in µs, from the NVM.
	LineDuration uint64 // In ns.
	VT           timing.VT
	Crop         timing.Rect
	Binning      timing.Binning
}

// Plan is the set of global reset timer values.
type Plan struct {
	ReadyDelay    uint16 // TRDY_CTRL
	StrobeDelay   uint16 // TSHUTTER_STROBE_DELAY_CTRL
	StrobeWidth   uint16 // TSHUTTER_STROBE_WIDTH_CTRL
	ReadoutDelay  uint16 // TRDOUT_CTRL
	ResetInterval uint16 // TGRST_INTERVAL_CTRL
}

func (p *Plan) String() string {
	return fmt.Sprintf("trdy=%d strobe_delay=%d strobe_width=%d trdout=%d tgrst=%d", p.ReadyDelay, p.StrobeDelay, p.StrobeWidth, p.ReadoutDelay, p.ResetInterval)
}

// Compute returns the plan so the shutter finishes closing when the readout
// starts and stays closed for all the active lines.
func Compute(in *Input) (*Plan, error) {
	if in.LineDuration == 0 || in.Binning.Y == 0 {
		return nil, fmt.Errorf("shutter: invalid line duration %dns or binning %d", in.LineDuration, in.Binning.Y)
	}
	half := in.LineDuration / 2
	sdelay := (uint64(in.ShutterDelay)*1000 + half) / in.LineDuration
	trdout := (uint64(in.Exposure)*1000 + half) / in.LineDuration
	ready := uint64(MinReadyDelay)
	if sdelay > ready+trdout {
		ready = sdelay - trdout
	}
	p := &Plan{}
	fields := []struct {
		name string
		v    uint64
		out  *uint16
	}{
		{"ready delay", ready, &p.ReadyDelay},
		{"strobe delay", ready + trdout - sdelay, &p.StrobeDelay},
		{"strobe width", uint64(in.Crop.Height/in.Binning.Y) + sdelay, &p.StrobeWidth},
		{"readout delay", trdout, &p.ReadoutDelay},
		{"reset interval", uint64(in.VT.FrameLength) + trdout + ready + sdelay + timing.MinLineBlanking, &p.ResetInterval},
	}
	for _, f := range fields {
		r, err := fit(f.name, f.v)
		if err != nil {
			return nil, err
		}
		*f.out = r
	}
	return p, nil
}

// Coarse returns COARSE_INTEGRATION_TIME for an exposure in µs. It truncates.
func Coarse(exposure uint32, lineDuration uint64) (uint16, error) {
	if lineDuration == 0 {
		return 0, errors.New("shutter: invalid line duration 0ns")
	}
	return fit("coarse integration time", uint64(exposure)*1000/lineDuration)
}

// FlashStrobeWidth returns the flash strobe width register value for a
// width in µs.
func FlashStrobeWidth(width uint32) (uint16, error) {
	return fit("flash strobe width", uint64(width)*1000/FlashStrobeTick)
}

// Private details.

func fit(name string, v uint64) (uint16, error) {
	if v > math.MaxUint16 {
		return 0, &OverflowError{Field: name, Value: v}
	}
	return uint16(v), nil
}
