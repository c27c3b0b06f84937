// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package shutter

import (
	"errors"
	"testing"

	"github.com/maruel/go-galileo/galileo/timing"
)

func TestCompute(t *testing.T) {
	vt := timing.VT{LineLength: 8240, FrameLength: 5388}
	line := timing.LineDuration(vt)
	if line != 82400 {
		t.Fatal(line)
	}
	crop := timing.Rect{Left: 4, Top: 4, Width: 7716, Height: 5364}
	data := []struct {
		delay    uint16
		expected Plan
	}{
		// sdelay=364 > 52+243, tRDY is stretched.
		{30000, Plan{ReadyDelay: 121, StrobeDelay: 0, StrobeWidth: 5728, ReadoutDelay: 243, ResetInterval: 6628}},
		// sdelay=121, tRDY stays at its minimum.
		{10000, Plan{ReadyDelay: 52, StrobeDelay: 174, StrobeWidth: 5485, ReadoutDelay: 243, ResetInterval: 6316}},
		{0, Plan{ReadyDelay: 52, StrobeDelay: 295, StrobeWidth: 5364, ReadoutDelay: 243, ResetInterval: 6195}},
	}
	for i, d := range data {
		in := Input{
			Exposure:     20000,
			ShutterDelay: d.delay,
			LineDuration: line,
			VT:           vt,
			Crop:         crop,
			Binning:      timing.Binning{X: 1, Y: 1},
		}
		p, err := Compute(&in)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if *p != d.expected {
			t.Fatalf("#%d: %s != %s", i, p, &d.expected)
		}
	}
}

func TestCompute_rounding(t *testing.T) {
	data := []struct {
		exposure uint32
		trdout   uint16
	}{
		{14, 1},
		{15, 2}, // 1.5 rounds up.
		{24, 2},
		{25, 3},
		{20000, 2000},
	}
	for i, d := range data {
		in := Input{
			Exposure:     d.exposure,
			LineDuration: 10000,
			VT:           timing.VT{LineLength: 1000, FrameLength: 1104},
			Crop:         timing.Rect{Width: 1920, Height: 1080},
			Binning:      timing.Binning{X: 1, Y: 2},
		}
		p, err := Compute(&in)
		if err != nil {
			t.Fatalf("#%d: %v", i, err)
		}
		if p.ReadoutDelay != d.trdout {
			t.Fatalf("#%d: %d != %d", i, p.ReadoutDelay, d.trdout)
		}
		if p.StrobeWidth != 540 {
			t.Fatalf("#%d: %d", i, p.StrobeWidth)
		}
	}
}

func TestCompute_overflow(t *testing.T) {
	in := Input{
		Exposure:     1000000,
		LineDuration: 10000,
		VT:           timing.VT{LineLength: 1000, FrameLength: 1104},
		Crop:         timing.Rect{Width: 1920, Height: 1080},
		Binning:      timing.Binning{X: 1, Y: 1},
	}
	_, err := Compute(&in)
	if !errors.Is(err, ErrRegisterOverflow) {
		t.Fatalf("unexpected error %v", err)
	}
	var o *OverflowError
	if !errors.As(err, &o) || o.Field != "strobe delay" || o.Value != 100052 {
		t.Fatalf("unexpected error %#v", err)
	}
	in.LineDuration = 0
	if _, err := Compute(&in); err == nil || errors.Is(err, ErrRegisterOverflow) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCoarse(t *testing.T) {
	if c, err := Coarse(20000, 82400); err != nil || c != 242 {
		t.Fatalf("%d, %v", c, err)
	}
	if _, err := Coarse(1000000, 10000); !errors.Is(err, ErrRegisterOverflow) {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := Coarse(1, 0); err == nil {
		t.Fatal("expected failure")
	}
}

func TestFlashStrobeWidth(t *testing.T) {
	if w, err := FlashStrobeWidth(100); err != nil || w != 925 {
		t.Fatalf("%d, %v", w, err)
	}
	if w, err := FlashStrobeWidth(7077); err != nil || w != 65527 {
		t.Fatalf("%d, %v", w, err)
	}
	if _, err := FlashStrobeWidth(50000); !errors.Is(err, ErrRegisterOverflow) {
		t.Fatalf("unexpected error %v", err)
	}
}
