// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package galileo

import (
	"fmt"
	"log"

	"github.com/maruel/go-galileo/galileo/cci"
	"github.com/maruel/go-galileo/galileo/timing"

	"periph.io/x/periph/conn/physic"
)

// StreamState is the state of the stream as seen by the caller.
type StreamState int

// Valid values for StreamState.
const (
	// Idle means not streaming.
	Idle StreamState = iota
	// TimingsStale means not streaming and the format, crop or frame interval
	// changed since the timings were last derived.
	TimingsStale
	// Configuring is only held while StreamOn() runs.
	Configuring
	Streaming
)

func (s StreamState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case TimingsStale:
		return "TimingsStale"
	case Configuring:
		return "Configuring"
	case Streaming:
		return "Streaming"
	default:
		return fmt.Sprintf("StreamState(%d)", int(s))
	}
}

// State returns the current stream state.
func (d *Dev) State() StreamState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetStream calls StreamOn() or StreamOff().
func (d *Dev) SetStream(on bool) error {
	if on {
		return d.StreamOn()
	}
	d.StreamOff()
	return nil
}

// StreamOn derives the timings if needed, programs the sensor and starts
// streaming.
//
// It is a no-op when already streaming. On failure, the state is Idle.
func (d *Dev) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Streaming {
		return nil
	}
	d.state = Configuring
	s, err := d.refresh()
	var p cci.Program
	if err == nil {
		p, err = d.streamOnProgram(s)
	}
	if err == nil {
		err = p.Apply(d.c)
	}
	if err != nil {
		d.state = Idle
		return err
	}
	d.active = s
	d.state = Streaming
	return nil
}

// StreamOff stops streaming.
//
// The global reset and the flash strobe are disabled first. Bus errors are
// logged and the state is Idle on return.
func (d *Dev) StreamOff() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Streaming {
		return
	}
	d.state = Idle
	d.active = nil
	var p cci.Program
	if d.ctrls[GlobalShutter] != 0 {
		p.Write8(cci.GlobalResetCtrl1, 0)
	} else if d.ctrls[FlashStrobeSource] == StrobeExternal {
		p.Write8(cci.FlashTriggerRS, 0)
	}
	p.Write8(cci.ModeSelect, 0)
	for _, w := range p {
		if err := (cci.Program{w}).Apply(d.c); err != nil {
			log.Printf("galileo: stream off: %v", err)
		}
	}
}

// Format returns the output format.
func (d *Dev) Format() timing.Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format
}

// SetFormat changes the output format.
//
// While streaming, the change is only applied at the next StreamOn().
func (d *Dev) SetFormat(f timing.Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.format = f
	d.invalidate("format")
	return nil
}

// Codes returns the supported pixel codes.
func (d *Dev) Codes() []timing.Code {
	return []timing.Code{timing.CodeSGBRG10_1X10}
}

// CropBounds returns the whole pixel array.
func (d *Dev) CropBounds() timing.Rect {
	return timing.Bounds
}

// Crop returns the area of the pixel array being read.
func (d *Dev) Crop() timing.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.crop
}

// SetCrop changes the area of the pixel array being read.
//
// While streaming, the change is only applied at the next StreamOn().
func (d *Dev) SetCrop(c timing.Rect) error {
	if err := c.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.crop = c
	d.invalidate("crop")
	return nil
}

// FrameInterval returns the frame interval. After the timings are derived,
// it is the interval actually achieved.
func (d *Dev) FrameInterval() timing.Fract {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fi
}

// SetFrameInterval changes the frame interval.
//
// While streaming, the clocks are kept and the vertical blanking is adjusted
// instead, with a minimum of 42 lines. The interval actually achieved is
// returned by FrameInterval().
func (d *Dev) SetFrameInterval(fi timing.Fract) error {
	if err := fi.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Streaming {
		d.fi = fi
		d.invalidate("frame interval")
		return nil
	}
	a := d.active
	fl, got := timing.AdjustFrameLength(a.PLL.VT, a.VT, fi, a.Crop, a.Binning)
	if fl > timing.MaxFrameLength {
		return fmt.Errorf("%w: frame length %d for %s", ErrRegisterOverflow, fl, fi)
	}
	n := *a
	n.VT.FrameLength = uint32(fl)
	n.FrameInterval = got
	var p cci.Program
	p.Write16(cci.VTFrameLengthLines, uint16(fl))
	if d.ctrls[GlobalShutter] != 0 {
		// tGRST depends on the frame length.
		gs, err := d.globalShutterProgram(&n)
		if err != nil {
			return err
		}
		p.Append(gs)
	}
	if err := p.Hold().Apply(d.c); err != nil {
		return err
	}
	d.active = &n
	d.fi = got
	// The cold start path recomputes the clocks from scratch.
	d.derived = nil
	return nil
}

// Private details.

// invalidate marks the derived timings as stale.
func (d *Dev) invalidate(what string) {
	d.derived = nil
	if d.state == Streaming {
		log.Printf("galileo: %s change deferred to the next stream on", what)
		return
	}
	d.state = TimingsStale
}

// streamOnProgram returns the whole configuration, ending with MODE_SELECT.
func (d *Dev) streamOnProgram(s *Snapshot) (cci.Program, error) {
	var p cci.Program
	f := &s.Format
	c := &s.Crop
	bpp := uint8(s.BitsPerPixel)

	// PLL1.
	p.Write16(cci.PrePLLClkDiv, uint16(s.PLL.PreDiv))
	p.Write16(cci.PLLMultiplier, uint16(s.PLL.Multiplier))
	p.Write16(cci.VTSysClkDiv, uint16(s.PLL.VTSysDiv))
	p.Write16(cci.VTPixClkDiv, uint16(s.PLL.VTPixDiv))
	p.Write16(cci.OPSysClkDiv, uint16(s.PLL.OPSysDiv))
	p.Write16(cci.OPPixClkDiv, uint16(bpp))

	// Static configuration.
	whole, fract := extclk(d.opts.RefClk)
	p.Write8(cci.ExtclkFrqMHz, whole)
	p.Write8(cci.ExtclkFrqMHz+1, fract)
	p.Write8(cci.GlobalResetModeConfig1, cci.GRShutterStrobeMuxing)
	p.Write8(cci.DPHYCtrl, 1)
	for i, v := range []uint8{0x0F, 0x99, 0x00, 0x00} {
		p.Write8(cci.RequestedLinkBitRate+cci.Register(i), v)
	}

	// CSI-2.
	p.Write8(cci.CSISignalingMode, 2)
	p.Write8(cci.CSIDataFormatSource, bpp)
	p.Write8(cci.CSIDataFormatDest, bpp)
	p.Write8(cci.CSILaneMode, uint8(d.opts.Lanes-1))

	// Output size and horizontal scaler.
	p.Write16(cci.XOutputSize, uint16(f.Width))
	p.Write16(cci.YOutputSize, uint16(f.Height))
	p.Write16(cci.ScalingMode, 1)
	p.Write16(cci.SpatialSampling, 0)
	p.Write16(cci.OutputImageWidth, uint16(f.Width))

	// Video timing.
	p.Write16(cci.VTLineLengthPck, uint16(s.VT.LineLength))
	p.Write16(cci.VTFrameLengthLines, uint16(s.VT.FrameLength))

	// Pixel array area, binned but not cropped before the scaler.
	p.Write16(cci.XAddrStart, uint16(c.Left))
	p.Write16(cci.YAddrStart, uint16(c.Top))
	p.Write16(cci.XAddrEnd, uint16(c.Left+c.Width-1))
	p.Write16(cci.YAddrEnd, uint16(c.Top+c.Height-1))
	p.Write16(cci.DigitalCropXOffset, 0)
	p.Write16(cci.DigitalCropYOffset, 0)
	p.Write16(cci.DigitalCropImageWidth, uint16(c.Width/s.Binning.X))
	p.Write16(cci.DigitalCropImageHeight, uint16(c.Height/s.Binning.Y))
	if s.Binning.X == 1 && s.Binning.Y == 1 {
		p.Write8(cci.BinningMode, 0)
		p.Write8(cci.BinningType, 0)
	} else {
		p.Write8(cci.BinningMode, 1)
		p.Write8(cci.BinningType, s.Binning.Type())
	}

	// Defect pixel correction.
	p.Write8(cci.SingleDefectCorrect, 0)
	p.Write8(cci.CoupletDefectCorrect, 1)

	// Controls.
	for _, build := range []func(*Dev, *Snapshot) (cci.Program, error){
		(*Dev).coarseProgram,
		(*Dev).gainProgram,
		appliers[Focus],
		(*Dev).mechanicalShutterProgram,
		(*Dev).orientationProgram,
		appliers[NeutralDensity],
		(*Dev).globalShutterProgram,
		(*Dev).flashStrobeProgram,
	} {
		q, err := build(d, s)
		if err != nil {
			return nil, err
		}
		p.Append(q)
	}

	p.Write8(cci.ModeSelect, 1)
	return p, nil
}

// extclk returns EXTCLK_FRQ_MHZ as whole MHz and 1/256th of MHz.
func extclk(f physic.Frequency) (uint8, uint8) {
	hz := uint64(f / physic.Hertz)
	whole := hz / 1000000
	fract := (hz - whole*1000000) * 0x100 / 1000000
	return uint8(whole), uint8(fract)
}
