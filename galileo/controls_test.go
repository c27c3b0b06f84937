// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package galileo

import (
	"errors"
	"reflect"
	"testing"

	"github.com/maruel/go-galileo/galileo/cci"
)

func TestControls(t *testing.T) {
	c := Controls()
	if len(c) != 10 {
		t.Fatal(c)
	}
	for _, i := range c {
		p, err := ParseControl(i.String())
		if err != nil {
			t.Fatal(err)
		}
		if p != i {
			t.Fatal(p, i)
		}
	}
	if _, err := ParseControl("zoom"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unexpected error %v", err)
	}
	if s := Control(99).String(); s != "Control(99)" {
		t.Fatal(s)
	}
}

func TestSetControl_idle(t *testing.T) {
	d, s := newDev(t)
	if err := d.SetControl(HFlip, 1); err != nil {
		t.Fatal(err)
	}
	if err := d.SetControl(Exposure, 1000000); err != nil {
		t.Fatal(err)
	}
	if w := s.Writes(); len(w) != 0 {
		t.Fatalf("unexpected writes %s", w)
	}
	if v, err := d.GetControl(HFlip); err != nil || v != 1 {
		t.Fatal(v, err)
	}

	data := []struct {
		c Control
		v int32
	}{
		{HFlip, 2},
		{Exposure, -1},
		{Exposure, 1000001},
		{Focus, 99},
		{Focus, 376},
		{MechanicalShutter, 3},
		{FlashStrobeWidth, 0},
		{Control(-1), 0},
		{numControls, 0},
	}
	for i, line := range data {
		if err := d.SetControl(line.c, line.v); !errors.Is(err, ErrInvalid) {
			t.Fatalf("#%d: unexpected error %v", i, err)
		}
	}
	if _, err := d.GetControl(numControls); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := d.ControlInfo(Control(-1)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSetControl_streaming(t *testing.T) {
	d, s := newDev(t)
	if err := d.StreamOn(); err != nil {
		t.Fatal(err)
	}
	s.Writes()
	s.ShutterWrites()

	data := []struct {
		c        Control
		v        int32
		expected func(p *cci.Program)
	}{
		{HFlip, 1, func(p *cci.Program) { p.Write8(cci.ImageOrientation, 1) }},
		{VFlip, 1, func(p *cci.Program) { p.Write8(cci.ImageOrientation, 3) }},
		{HFlip, 0, func(p *cci.Program) { p.Write8(cci.ImageOrientation, 2) }},
		{Exposure, 10000, func(p *cci.Program) { p.Write16(cci.CoarseIntegrationTime, 228) }},
		{AnalogGain, 0x100, func(p *cci.Program) { p.Write16(cci.AnalogGainCodeGlobal, 0x100) }},
		{Focus, 200, func(p *cci.Program) {}},
		{NeutralDensity, 1, func(p *cci.Program) {}},
		{FlashStrobeSource, StrobeExternal, func(p *cci.Program) {
			p.Write16(cci.TFlashStrobeWidthHighRS, 925)
			p.Write8(cci.FlashModeRS, 1)
			p.Write8(cci.FlashTriggerRS, 1)
		}},
		{FlashStrobeWidth, 7077, func(p *cci.Program) {
			p.Write16(cci.TFlashStrobeWidthHighRS, 65527)
			p.Write8(cci.FlashModeRS, 1)
			p.Write8(cci.FlashTriggerRS, 1)
		}},
		{FlashStrobeSource, StrobeSoftware, func(p *cci.Program) {
			p.Write8(cci.GlobalResetModeConfig1, cci.GRShutterStrobeMuxing)
			p.Write8(cci.FlashTriggerRS, 0)
		}},
	}
	for i, line := range data {
		if err := d.SetControl(line.c, line.v); err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		var expected cci.Program
		line.expected(&expected)
		if w := s.Writes(); w.String() != expected.String() {
			t.Fatalf("#%d: %s != %s", i, w, expected)
		}
		if v, _ := d.GetControl(line.c); v != line.v {
			t.Fatalf("#%d: %d", i, v)
		}
	}
	if w := s.ShutterWrites(); len(w) != 0 {
		t.Fatalf("unexpected writes %v", w)
	}

	if err := d.SetControl(MechanicalShutter, MSOpen); err != nil {
		t.Fatal(err)
	}
	expected := [][2]byte{{cci.ShutterRegMode, cci.ShutterMode150mAI2C}, {cci.ShutterRegDrive, cci.ShutterDriveOpen}}
	if w := s.ShutterWrites(); !reflect.DeepEqual(w, expected) {
		t.Fatalf("%v != %v", w, expected)
	}
	if w := s.Writes(); len(w) != 0 {
		t.Fatalf("unexpected writes %s", w)
	}
}

func TestSetControl_globalShutter(t *testing.T) {
	d, s := newDev(t)
	if err := d.StreamOn(); err != nil {
		t.Fatal(err)
	}
	s.Writes()
	if err := d.SetControl(GlobalShutter, 1); err != nil {
		t.Fatal(err)
	}
	if w, expected := s.Writes(), globalShutterWrites(3249); w.String() != expected.String() {
		t.Fatalf("%s != %s", w, expected)
	}

	// The readout delay follows the exposure.
	if err := d.SetControl(Exposure, 10000); err != nil {
		t.Fatal(err)
	}
	var expected cci.Program
	expected.Write16(cci.CoarseIntegrationTime, 228)
	expected.Write16(cci.TRDYCtrl, 457)
	expected.Write16(cci.TShutterStrobeDelayCtrl, 0)
	expected.Write16(cci.TRDOUTCtrl, 229)
	expected.Write16(cci.TShutterStrobeWidthCtrl, 2027)
	expected.Write16(cci.TGRSTIntervalCtrl, 3249)
	expected.Write8(cci.GlobalResetModeConfig1, cci.GRShutterStrobeMuxing|cci.GRContinuousReset|cci.GRSAShutterStrobeMuxed)
	expected.Write8(cci.GlobalResetCtrl1, 1)
	if w := s.Writes(); w.String() != expected.String() {
		t.Fatalf("%s != %s", w, expected)
	}

	if err := d.SetControl(FlashStrobeSource, StrobeExternal); err != nil {
		t.Fatal(err)
	}
	expected = nil
	expected.Write8(cci.GlobalResetModeConfig1, cci.GRShutterStrobeMuxing|cci.GRContinuousReset|cci.GRSAShutterStrobeMuxed|cci.GRFlashStrobe)
	expected.Write16(cci.TFlashStrobeWidthHigh, 925)
	if w := s.Writes(); w.String() != expected.String() {
		t.Fatalf("%s != %s", w, expected)
	}

	// Disabling the global reset rearms the mechanical shutter.
	s.ShutterWrites()
	if err := d.SetControl(GlobalShutter, 0); err != nil {
		t.Fatal(err)
	}
	expected = nil
	expected.Write8(cci.GlobalResetModeConfig1, cci.GRShutterStrobeMuxing)
	expected.Write8(cci.GlobalResetCtrl1, 0)
	if w := s.Writes(); w.String() != expected.String() {
		t.Fatalf("%s != %s", w, expected)
	}
	sw := [][2]byte{{cci.ShutterRegMode, cci.ShutterMode200mAStrobe}, {cci.ShutterRegDrive, cci.ShutterDriveStrobeArmed}}
	if w := s.ShutterWrites(); !reflect.DeepEqual(w, sw) {
		t.Fatalf("%v != %v", w, sw)
	}
}

func TestSetControl_fail(t *testing.T) {
	d, s := newDev(t)
	if err := d.StreamOn(); err != nil {
		t.Fatal(err)
	}
	s.Writes()

	s.Fail(cci.AnalogGainCodeGlobal, true)
	if err := d.SetControl(AnalogGain, 0x100); !errors.Is(err, ErrTransport) {
		t.Fatalf("unexpected error %v", err)
	}
	if v, _ := d.GetControl(AnalogGain); v != 5*0x34 {
		t.Fatal(v)
	}

	if err := d.SetControl(FlashStrobeSource, StrobeExternal); err != nil {
		t.Fatal(err)
	}
	s.Writes()
	if err := d.SetControl(FlashStrobeWidth, 50000); !errors.Is(err, ErrRegisterOverflow) {
		t.Fatalf("unexpected error %v", err)
	}
	if v, _ := d.GetControl(FlashStrobeWidth); v != 100 {
		t.Fatal(v)
	}
	if w := s.Writes(); len(w) != 0 {
		t.Fatalf("unexpected writes %s", w)
	}
}
