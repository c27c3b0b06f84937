// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package galileo

import (
	"fmt"

	"github.com/maruel/go-galileo/galileo/cci"
	"github.com/maruel/go-galileo/galileo/shutter"
)

// Control identifies a user control.
type Control int

// Valid values for Control.
const (
	HFlip             Control = iota // 0 or 1.
	VFlip                            // 0 or 1.
	Exposure                         // In µs.
	AnalogGain                       // ANALOG_GAIN_CODE_GLOBAL.
	Focus                            // Lens actuator code.
	NeutralDensity                   // 0 or 1.
	GlobalShutter                    // 0 or 1.
	MechanicalShutter                // MSStrobe, MSOpen or MSClose.
	FlashStrobeSource                // StrobeSoftware or StrobeExternal.
	FlashStrobeWidth                 // In µs.
	numControls
)

// Valid values for MechanicalShutter.
const (
	// MSStrobe lets the sensor shutter strobe drive the shutter.
	MSStrobe int32 = 0
	MSOpen   int32 = 1
	MSClose  int32 = 2
)

// Valid values for FlashStrobeSource.
const (
	StrobeSoftware int32 = 0
	StrobeExternal int32 = 1
)

// ControlInfo describes the range of a control.
type ControlInfo struct {
	Name    string
	Min     int32
	Max     int32
	Default int32
}

func (c Control) String() string {
	if c < 0 || c >= numControls {
		return fmt.Sprintf("Control(%d)", int(c))
	}
	return controlInfos[c].Name
}

// Controls returns all the controls.
func Controls() []Control {
	out := make([]Control, numControls)
	for i := range out {
		out[i] = Control(i)
	}
	return out
}

// ParseControl returns the control named name.
func ParseControl(name string) (Control, error) {
	for i := range controlInfos {
		if controlInfos[i].Name == name {
			return Control(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown control %q", ErrInvalid, name)
}

// ControlInfo returns the range of a control.
//
// The focus range comes from the NVM.
func (d *Dev) ControlInfo(c Control) (ControlInfo, error) {
	if c < 0 || c >= numControls {
		return ControlInfo{}, fmt.Errorf("%w: %s", ErrInvalid, c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info[c], nil
}

// GetControl returns the current value of a control.
func (d *Dev) GetControl(c Control) (int32, error) {
	if c < 0 || c >= numControls {
		return 0, fmt.Errorf("%w: %s", ErrInvalid, c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctrls[c], nil
}

// SetControl changes a control.
//
// The value is applied immediately when streaming and at the next StreamOn()
// otherwise. On failure, the previous value is kept.
func (d *Dev) SetControl(c Control, v int32) error {
	if c < 0 || c >= numControls {
		return fmt.Errorf("%w: %s", ErrInvalid, c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	i := &d.info[c]
	if v < i.Min || v > i.Max {
		return fmt.Errorf("%w: %s=%d is out of range [%d, %d]", ErrInvalid, c, v, i.Min, i.Max)
	}
	old := d.ctrls[c]
	d.ctrls[c] = v
	if d.state != Streaming {
		return nil
	}
	p, err := appliers[c](d, d.active)
	if err == nil {
		err = p.Apply(d.c)
	}
	if err != nil {
		d.ctrls[c] = old
		return err
	}
	return nil
}

// Private details.

var controlInfos = [numControls]ControlInfo{
	HFlip:             {"hflip", 0, 1, 0},
	VFlip:             {"vflip", 0, 1, 0},
	Exposure:          {"exposure", 0, 1000000, 20000},
	AnalogGain:        {"analog_gain", 0, 0x208, 5 * 0x34},
	Focus:             {"focus", 0, 0, 0},
	NeutralDensity:    {"neutral_density", 0, 1, 0},
	GlobalShutter:     {"global_shutter", 0, 1, 0},
	MechanicalShutter: {"mechanical_shutter", MSStrobe, MSClose, MSStrobe},
	FlashStrobeSource: {"flash_strobe_source", StrobeSoftware, StrobeExternal, StrobeSoftware},
	FlashStrobeWidth:  {"flash_strobe_width", 1, 50000, 100},
}

// appliers is the register program to run when a control changes while
// streaming.
var appliers = [numControls]func(d *Dev, s *Snapshot) (cci.Program, error){
	HFlip:             (*Dev).orientationProgram,
	VFlip:             (*Dev).orientationProgram,
	Exposure:          (*Dev).exposureProgram,
	AnalogGain:        (*Dev).gainProgram,
	Focus:             noProgram,
	NeutralDensity:    noProgram,
	GlobalShutter:     (*Dev).globalShutterProgram,
	MechanicalShutter: (*Dev).mechanicalShutterProgram,
	FlashStrobeSource: (*Dev).flashStrobeProgram,
	FlashStrobeWidth:  (*Dev).flashStrobeProgram,
}

func (d *Dev) initControls() {
	d.info = controlInfos
	f := d.cal.Focus()
	d.info[Focus].Min = int32(f.FarEnd)
	d.info[Focus].Max = int32(f.NearEnd)
	d.info[Focus].Default = int32(f.Infinity)
	for i := range d.info {
		d.ctrls[i] = d.info[i].Default
	}
}

// The lens actuator and the neutral density filter have no documented
// registers.
func noProgram(d *Dev, s *Snapshot) (cci.Program, error) {
	return nil, nil
}

func (d *Dev) orientationProgram(s *Snapshot) (cci.Program, error) {
	v := uint8(0)
	if d.ctrls[HFlip] != 0 {
		v |= cci.OrientationHMirror
	}
	if d.ctrls[VFlip] != 0 {
		v |= cci.OrientationVMirror
	}
	var p cci.Program
	p.Write8(cci.ImageOrientation, v)
	return p, nil
}

func (d *Dev) coarseProgram(s *Snapshot) (cci.Program, error) {
	coarse, err := shutter.Coarse(uint32(d.ctrls[Exposure]), s.LineDuration)
	if err != nil {
		return nil, err
	}
	var p cci.Program
	p.Write16(cci.CoarseIntegrationTime, coarse)
	return p, nil
}

// exposureProgram also updates the global reset timers since tRDOUT depends
// on the exposure.
func (d *Dev) exposureProgram(s *Snapshot) (cci.Program, error) {
	p, err := d.coarseProgram(s)
	if err != nil || d.ctrls[GlobalShutter] == 0 {
		return p, err
	}
	gs, err := d.globalShutterProgram(s)
	if err != nil {
		return nil, err
	}
	p.Append(gs)
	return p, nil
}

func (d *Dev) gainProgram(s *Snapshot) (cci.Program, error) {
	var p cci.Program
	p.Write16(cci.AnalogGainCodeGlobal, uint16(d.ctrls[AnalogGain]))
	return p, nil
}

func (d *Dev) mechanicalShutterProgram(s *Snapshot) (cci.Program, error) {
	return shutterProgram(d.ctrls[MechanicalShutter]), nil
}

// globalShutterProgram enables or disables the global reset mode.
//
// When enabled, the shutter strobe closes the mechanical shutter at the end of
// the exposure.
func (d *Dev) globalShutterProgram(s *Snapshot) (cci.Program, error) {
	var p cci.Program
	ms := d.ctrls[MechanicalShutter]
	if d.ctrls[GlobalShutter] == 0 {
		p.Write8(cci.GlobalResetModeConfig1, d.resetModeConfig())
		p.Write8(cci.GlobalResetCtrl1, 0)
		if ms != MSClose {
			p.Append(shutterProgram(ms))
		}
		return p, nil
	}
	plan, err := shutter.Compute(&shutter.Input{
		Exposure:     uint32(d.ctrls[Exposure]),
		ShutterDelay: d.cal.ShutterDelay(),
		LineDuration: s.LineDuration,
		VT:           s.VT,
		Crop:         s.Crop,
		Binning:      s.Binning,
	})
	if err != nil {
		return nil, err
	}
	p.Write16(cci.TRDYCtrl, plan.ReadyDelay)
	p.Write16(cci.TShutterStrobeDelayCtrl, plan.StrobeDelay)
	p.Write16(cci.TRDOUTCtrl, plan.ReadoutDelay)
	p.Write16(cci.TShutterStrobeWidthCtrl, plan.StrobeWidth)
	p.Write16(cci.TGRSTIntervalCtrl, plan.ResetInterval)
	p.Write8(cci.GlobalResetModeConfig1, d.resetModeConfig())
	p.Write8(cci.GlobalResetCtrl1, 1)
	return p, nil
}

func (d *Dev) flashStrobeProgram(s *Snapshot) (cci.Program, error) {
	var p cci.Program
	if d.ctrls[FlashStrobeSource] == StrobeSoftware {
		p.Write8(cci.GlobalResetModeConfig1, d.resetModeConfig())
		p.Write8(cci.FlashTriggerRS, 0)
		return p, nil
	}
	w, err := shutter.FlashStrobeWidth(uint32(d.ctrls[FlashStrobeWidth]))
	if err != nil {
		return nil, err
	}
	if d.ctrls[GlobalShutter] != 0 {
		p.Write8(cci.GlobalResetModeConfig1, d.resetModeConfig())
		p.Write16(cci.TFlashStrobeWidthHigh, w)
	} else {
		p.Write16(cci.TFlashStrobeWidthHighRS, w)
		p.Write8(cci.FlashModeRS, 1)
		p.Write8(cci.FlashTriggerRS, 1)
	}
	return p, nil
}

// resetModeConfig returns GLOBAL_RESET_MODE_CONFIG1 for the current
// controls.
func (d *Dev) resetModeConfig() uint8 {
	v := cci.GRShutterStrobeMuxing
	if d.ctrls[GlobalShutter] == 0 {
		return v
	}
	v |= cci.GRContinuousReset
	if d.ctrls[MechanicalShutter] == MSStrobe {
		v |= cci.GRSAShutterStrobeMuxed
	}
	if d.ctrls[FlashStrobeSource] == StrobeExternal {
		v |= cci.GRFlashStrobe
	}
	return v
}

// shutterProgram drives the AD5830.
func shutterProgram(ms int32) cci.Program {
	var p cci.Program
	switch ms {
	case MSStrobe:
		p.WriteShutter(cci.ShutterRegMode, cci.ShutterMode200mAStrobe)
		p.WriteShutter(cci.ShutterRegDrive, cci.ShutterDriveStrobeArmed)
	case MSOpen:
		p.WriteShutter(cci.ShutterRegMode, cci.ShutterMode150mAI2C)
		p.WriteShutter(cci.ShutterRegDrive, cci.ShutterDriveOpen)
	case MSClose:
		p.WriteShutter(cci.ShutterRegMode, cci.ShutterMode150mAI2C)
		p.WriteShutter(cci.ShutterRegDrive, cci.ShutterDriveClose)
	}
	return p
}
