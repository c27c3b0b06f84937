// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package timing

import (
	"errors"
	"testing"
)

func TestComputeVT(t *testing.T) {
	data := []struct {
		f  Format
		c  Rect
		b  Binning
		vt VT
	}{
		{
			Format{Width: 1920, Height: 1080, Code: CodeSGBRG10_1X10},
			Rect{Left: 4, Top: 4, Width: 7716, Height: 5364},
			Binning{X: 2, Y: 4},
			VT{LineLength: 3858 + 512, FrameLength: 1341 + 24},
		},
		{
			// 7716/3000 = 2.572 truncates to 2.
			Format{Width: 3000, Height: 5364, Code: CodeSGBRG10_1X10},
			Rect{Width: 7716, Height: 5364},
			Binning{X: 2, Y: 1},
			VT{LineLength: 3858 + 512, FrameLength: 5364 + 24},
		},
		{
			Format{Width: 1920, Height: 1080, Code: CodeSGBRG10_1X10},
			Rect{Width: 1920, Height: 1080},
			Binning{X: 1, Y: 1},
			VT{LineLength: 2432, FrameLength: 1104},
		},
		{
			// Clamped to 2 and 8.
			Format{Width: 100, Height: 100, Code: CodeSGBRG10_1X10},
			Rect{Width: 7716, Height: 5364},
			Binning{X: 2, Y: 8},
			VT{LineLength: 3858 + 512, FrameLength: 670 + 24},
		},
		{
			// Upscaling never bins below 1.
			Format{Width: 4000, Height: 3000, Code: CodeSGBRG10_1X10},
			Rect{Width: 1000, Height: 1000},
			Binning{X: 1, Y: 1},
			VT{LineLength: 1512, FrameLength: 1024},
		},
	}
	for i, line := range data {
		b, vt := ComputeVT(line.f, line.c)
		if b != line.b {
			t.Fatalf("#%d: binning %+v != %+v", i, b, line.b)
		}
		if vt != line.vt {
			t.Fatalf("#%d: vt %+v != %+v", i, vt, line.vt)
		}
		if vt.LineLength < line.c.Width/b.X+MinLineBlanking {
			t.Fatalf("#%d: line length %d too short", i, vt.LineLength)
		}
		if vt.FrameLength < line.c.Height/b.Y+MinFrameBlanking {
			t.Fatalf("#%d: frame length %d too short", i, vt.FrameLength)
		}
	}
}

func TestComputeClocks(t *testing.T) {
	f := Format{Width: 1920, Height: 1080, Code: CodeSGBRG10_1X10}
	c := Rect{Left: 4, Top: 4, Width: 7716, Height: 5364}
	b, vt := ComputeVT(f, c)
	clk, err := ComputeClocks(vt, Fract{1, 30}, f, c, b, 4)
	if err != nil {
		t.Fatal(err)
	}
	if clk.VT != 178951500 {
		t.Fatalf("vtclk %d", clk.VT)
	}
	if clk.MIPI != 111322861 {
		t.Fatalf("mipiclk %d", clk.MIPI)
	}

	c = Rect{Width: 1920, Height: 1080}
	b, vt = ComputeVT(f, c)
	if clk, err = ComputeClocks(vt, Fract{1, 30}, f, c, b, 4); err != nil {
		t.Fatal(err)
	}
	if (clk != Clocks{VT: 80547840, MIPI: 100684800}) {
		t.Fatalf("unexpected %s", clk)
	}
}

func TestComputeClocks_fail(t *testing.T) {
	f := Format{Width: 1920, Height: 1080, Code: CodeUYVY8_2X8}
	c := Rect{Width: 1920, Height: 1080}
	b, vt := ComputeVT(f, c)
	if _, err := ComputeClocks(vt, Fract{1, 30}, f, c, b, 4); !errors.Is(err, ErrUnsupportedPixelEncoding) {
		t.Fatalf("unexpected error %v", err)
	}
	f.Code = CodeSGBRG10_1X10
	if _, err := ComputeClocks(vt, Fract{0, 30}, f, c, b, 4); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := ComputeClocks(vt, Fract{1, 30}, f, c, b, 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestBitsPerPixel(t *testing.T) {
	for _, c := range []Code{CodeSBGGR10_1X10, CodeSGBRG10_1X10, CodeSGRBG10_1X10, CodeSRGGB10_1X10} {
		if bpp, err := c.BitsPerPixel(); err != nil || bpp != 10 {
			t.Fatalf("%s: %d, %v", c, bpp, err)
		}
	}
	if _, err := Code(0x1234).BitsPerPixel(); err == nil {
		t.Fatal("expected failure")
	}
	if s := Code(0x1234).String(); s != "Code(0x1234)" {
		t.Fatal(s)
	}
}

func TestLineDuration(t *testing.T) {
	if d := LineDuration(VT{LineLength: 8240}); d != 82400 {
		t.Fatal(d)
	}
	if d := LineDuration(VT{LineLength: 1000}); d != 10000 {
		t.Fatal(d)
	}
}

func TestFrameInterval(t *testing.T) {
	vt := VT{LineLength: 2432, FrameLength: 1104}
	if fi := FrameInterval(80547840, vt); fi != (Fract{2432 * 1104, 80547840}) {
		t.Fatalf("unexpected %s", fi)
	}
}

func TestAdjustFrameLength(t *testing.T) {
	c := Rect{Left: 4, Top: 4, Width: 7716, Height: 5364}
	b := Binning{X: 2, Y: 4}
	vt := VT{LineLength: 4370, FrameLength: 1365}
	const vtclk = 178951500

	// 10fps stretches the blanking.
	fl, fi := AdjustFrameLength(vtclk, vt, Fract{1, 10}, c, b)
	if fl != 4095 {
		t.Fatalf("unexpected %d", fl)
	}
	if fi != (Fract{1, 10}) {
		t.Fatalf("unexpected %s", fi)
	}

	// 30fps leaves 24 lines of blanking; that's under the 42 lines floor.
	fl, fi = AdjustFrameLength(vtclk, vt, Fract{1, 30}, c, b)
	if fl != 5364/4+MinFrameBlankingStreaming {
		t.Fatalf("unexpected %d", fl)
	}
	if fi != (Fract{4370 * 1383, vtclk}) {
		t.Fatalf("unexpected %s", fi)
	}

	// 1s fits in VT_FRAME_LENGTH_LINES.
	if fl, _ = AdjustFrameLength(vtclk, vt, Fract{1, 1}, c, b); fl != 40950 || fl > MaxFrameLength {
		t.Fatalf("unexpected %d", fl)
	}
	// The frame length is returned untruncated.
	if fl, _ = AdjustFrameLength(vtclk, vt, Fract{1000, 1}, c, b); fl != 40950000 {
		t.Fatalf("unexpected %d", fl)
	}
	if fl, _ = AdjustFrameLength(vtclk, vt, Fract{209710, 1}, c, b); fl != 178951500*209710/4370 {
		t.Fatalf("unexpected %d", fl)
	}
}

func TestValidate(t *testing.T) {
	if err := (Rect{Left: 4, Top: 4, Width: 7716, Height: 5364}).Validate(); err != nil {
		t.Fatal(err)
	}
	if err := Bounds.Validate(); err != nil {
		t.Fatal(err)
	}
	bad := []Rect{
		{},
		{Width: 10},
		{Left: 1, Width: SensorWidth, Height: 10},
		{Top: 5000, Width: 10, Height: 369},
	}
	for i, r := range bad {
		if err := r.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("#%d: %v", i, err)
		}
	}
	if (Format{Width: 1}).Validate() == nil {
		t.Fatal("expected failure")
	}
	if (Fract{1, 0}).Validate() == nil {
		t.Fatal("expected failure")
	}
	if b := (Binning{X: 2, Y: 4}).Type(); b != 0x24 {
		t.Fatalf("0x%x", b)
	}
}
