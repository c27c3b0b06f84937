// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package timing derives the binning, the video timing and the minimum clocks
// needed to output a format from a crop of the pixel array at a given frame
// interval.
//
// All functions are pure.
package timing

import (
	"errors"
	"fmt"
)

// Pixel array size.
const (
	SensorWidth  = 7728
	SensorHeight = 5368
)

// Blanking minima, in binned pixels and lines.
const (
	// MinLineBlanking is min_vt_line_blanking_pck.
	MinLineBlanking = 512
	// MinFrameBlanking is used when computing the timing from scratch.
	MinFrameBlanking = 24
	// MinFrameBlankingStreaming is enforced when the frame interval is changed
	// while streaming.
	MinFrameBlankingStreaming = 42
)

// MaxFrameLength is the largest value of VT_FRAME_LENGTH_LINES.
const MaxFrameLength = 0xFFFF

// ReferencePixelClock is the pixel clock used to express line durations.
const ReferencePixelClock = 100000000

var (
	// ErrUnsupportedPixelEncoding is returned when the bits per pixel of a code
	// is unknown.
	ErrUnsupportedPixelEncoding = errors.New("timing: unsupported pixel encoding")
	// ErrInvalid is returned for a format, crop or interval that can't be used.
	ErrInvalid = errors.New("timing: invalid parameter")
)

// Code is a media bus pixel code.
type Code uint32

// Known codes. Values match V4L2_MBUS_FMT_*.
const (
	CodeUYVY8_2X8    Code = 0x2006
	CodeSBGGR10_1X10 Code = 0x3007
	CodeSGBRG10_1X10 Code = 0x300e
	CodeSGRBG10_1X10 Code = 0x300a
	CodeSRGGB10_1X10 Code = 0x300f
)

func (c Code) String() string {
	switch c {
	case CodeUYVY8_2X8:
		return "UYVY8_2X8"
	case CodeSBGGR10_1X10:
		return "SBGGR10_1X10"
	case CodeSGBRG10_1X10:
		return "SGBRG10_1X10"
	case CodeSGRBG10_1X10:
		return "SGRBG10_1X10"
	case CodeSRGGB10_1X10:
		return "SRGGB10_1X10"
	default:
		return fmt.Sprintf("Code(0x%x)", uint32(c))
	}
}

// BitsPerPixel returns the number of bits sent on the serial link per pixel.
func (c Code) BitsPerPixel() (uint32, error) {
	switch c {
	case CodeSBGGR10_1X10, CodeSGBRG10_1X10, CodeSGRBG10_1X10, CodeSRGGB10_1X10:
		return 10, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedPixelEncoding, c)
	}
}

// ColorSpace of the output.
type ColorSpace uint32

// Valid values for ColorSpace.
const (
	ColorSpaceDefault ColorSpace = 0
	ColorSpaceSRGB    ColorSpace = 8
	ColorSpaceRaw     ColorSpace = 11
)

// Field order of the output.
type Field uint32

// Valid values for Field.
const (
	FieldAny  Field = 0
	FieldNone Field = 1
)

// Format is the output format.
type Format struct {
	Width      uint32
	Height     uint32
	Code       Code
	ColorSpace ColorSpace
	Field      Field
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s", f.Width, f.Height, f.Code)
}

// Validate returns an error if the format has a null dimension or is larger
// than the pixel array.
func (f Format) Validate() error {
	if f.Width == 0 || f.Height == 0 || f.Width > SensorWidth || f.Height > SensorHeight {
		return fmt.Errorf("%w: format %dx%d", ErrInvalid, f.Width, f.Height)
	}
	return nil
}

// Rect is a rectangle in sensor pixels.
type Rect struct {
	Left   uint32
	Top    uint32
	Width  uint32
	Height uint32
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-%dx%d", r.Left, r.Top, r.Width, r.Height)
}

// Bounds is the whole pixel array.
var Bounds = Rect{Width: SensorWidth, Height: SensorHeight}

// Validate returns an error if the crop is empty or outside the pixel array.
func (r Rect) Validate() error {
	if r.Width == 0 || r.Height == 0 {
		return fmt.Errorf("%w: empty crop %s", ErrInvalid, r)
	}
	if uint64(r.Left)+uint64(r.Width) > SensorWidth || uint64(r.Top)+uint64(r.Height) > SensorHeight {
		return fmt.Errorf("%w: crop %s outside of %s", ErrInvalid, r, Bounds)
	}
	return nil
}

// Fract is a frame interval in seconds per frame.
type Fract struct {
	Numerator   uint32
	Denominator uint32
}

func (f Fract) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// Validate returns an error if the fraction is null or undefined.
func (f Fract) Validate() error {
	if f.Numerator == 0 || f.Denominator == 0 {
		return fmt.Errorf("%w: frame interval %s", ErrInvalid, f)
	}
	return nil
}

// Binning is the number of pixels combined horizontally and vertically.
type Binning struct {
	X uint32 // 1 or 2
	Y uint32 // 1 to 8
}

// Type returns the BINNING_TYPE register value.
func (b Binning) Type() uint8 {
	return uint8(b.X<<4 | b.Y)
}

// VT is the video timing, including blanking.
type VT struct {
	LineLength  uint32 // In binned pixels.
	FrameLength uint32 // In lines.
}

// Clocks are the video timing clock and the serial link clock, in Hz.
type Clocks struct {
	VT   uint64
	MIPI uint64
}

func (c Clocks) String() string {
	return fmt.Sprintf("vtclk=%dHz mipiclk=%dHz", c.VT, c.MIPI)
}

// ComputeVT bins as much as possible before scaling and returns the minimal
// video timing for the crop.
//
// Non-integer ratios under-bin.
func ComputeVT(f Format, c Rect) (Binning, VT) {
	b := Binning{
		X: clamp(c.Width/f.Width, 1, 2),
		Y: clamp(c.Height/f.Height, 1, 8),
	}
	vt := VT{
		LineLength:  c.Width/b.X + MinLineBlanking,
		FrameLength: c.Height/b.Y + MinFrameBlanking,
	}
	return b, vt
}

// ComputeClocks returns the minimum theoretical clocks needed to reach the
// frame interval fi.
//
// The serial link carries the horizontally scaled frame only; vertical scaling
// is absorbed by the line buffers.
func ComputeClocks(vt VT, fi Fract, f Format, c Rect, b Binning, lanes uint32) (Clocks, error) {
	bpp, err := f.Code.BitsPerPixel()
	if err != nil {
		return Clocks{}, err
	}
	if err := fi.Validate(); err != nil {
		return Clocks{}, err
	}
	if lanes == 0 || c.Width == 0 {
		return Clocks{}, fmt.Errorf("%w: lanes=%d crop width=%d", ErrInvalid, lanes, c.Width)
	}
	vtclk := uint64(vt.LineLength) * uint64(vt.FrameLength) * uint64(fi.Denominator) / uint64(fi.Numerator)
	num := vtclk * uint64(bpp) * uint64(f.Width) * uint64(b.X)
	den := uint64(c.Width) * uint64(lanes) * 2
	return Clocks{VT: vtclk, MIPI: num / den}, nil
}

// FrameInterval returns the frame interval achieved by vtclk with vt.
func FrameInterval(vtclk uint64, vt VT) Fract {
	return Fract{
		Numerator:   vt.LineLength * vt.FrameLength,
		Denominator: uint32(vtclk),
	}
}

// LineDuration returns the duration of one line in ns at ReferencePixelClock.
func LineDuration(vt VT) uint64 {
	return uint64(vt.LineLength) * 1000000000 / ReferencePixelClock
}

// AdjustFrameLength stretches the vertical blanking of a running stream to
// match fi, keeping vtclk and the line length unchanged.
//
// When the frame would be shorter than the active lines plus
// MinFrameBlankingStreaming, the frame length is floored and the returned
// interval is recomputed from it. The returned frame length is not truncated;
// the caller must check it against MaxFrameLength.
func AdjustFrameLength(vtclk uint64, vt VT, fi Fract, c Rect, b Binning) (uint64, Fract) {
	fl := vtclk * uint64(fi.Numerator) / (uint64(vt.LineLength) * uint64(fi.Denominator))
	min := uint64(c.Height/b.Y + MinFrameBlankingStreaming)
	if fl < min {
		return min, FrameInterval(vtclk, VT{LineLength: vt.LineLength, FrameLength: uint32(min)})
	}
	return fl, fi
}

// Private details.

func clamp(v, min, max uint32) uint32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
