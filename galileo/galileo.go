// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package galileo controls a Galileo2 41 MPix image sensor connected over
// i²c, along with its AD5830 mechanical shutter driver.
//
// The driver derives the binning, the video timing, the clock tree and the
// global shutter timers from the requested output format, crop and frame
// interval, and programs the sensor when the stream is started. The image
// data itself flows over CSI-2 to a host bridge and is not handled here.
//
// References:
//
// SMIA++ functional specification:
//   - p. 45-78 register map.
//   - p. 110-125 PLL and video timing.
//
// Galileo2 global reset application note:
//   - tRDY, tRDOUT, tGRST and shutter strobe timers.
//
// AD5830 mechanical shutter driver datasheet:
//   - p. 12 register map.
package galileo

import (
	"fmt"
	"log"
	"sync"

	"github.com/maruel/go-galileo/galileo/cci"
	"github.com/maruel/go-galileo/galileo/nvm"
	"github.com/maruel/go-galileo/galileo/pll"
	"github.com/maruel/go-galileo/galileo/shutter"
	"github.com/maruel/go-galileo/galileo/timing"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/physic"
)

// Errors returned by the driver. Use errors.Is to test for them.
var (
	ErrUnsupportedPixelEncoding   = timing.ErrUnsupportedPixelEncoding
	ErrNoFeasibleConfig           = pll.ErrNoFeasibleConfig
	ErrRegisterOverflow           = shutter.ErrRegisterOverflow
	ErrCalibrationVersionMismatch = nvm.ErrVersionMismatch
	ErrTransport                  = cci.ErrTransport
	ErrInvalid                    = timing.ErrInvalid
)

// Opts is the board configuration.
type Opts struct {
	RefClk      physic.Frequency // EXTCLK, 6MHz to 27MHz.
	Lanes       uint32           // Number of CSI-2 data lanes, 1 to 4.
	Addr        uint16           // Sensor i²c address.
	ShutterAddr uint16           // AD5830 i²c address.
	// ModelID is compared with SENSOR_MODEL_ID. Zero disables the check.
	ModelID uint16

	// Initial configuration.
	Format        timing.Format
	Crop          timing.Rect
	FrameInterval timing.Fract
}

// DefaultOpts is the recommended default options.
//
// The whole usable pixel array is scaled down to 1080p at 30fps.
var DefaultOpts = Opts{
	RefClk:        24 * physic.MegaHertz,
	Lanes:         4,
	ModelID:       cci.Galileo2ModelID,
	Addr:          cci.SensorAddr,
	ShutterAddr:   cci.ShutterAddr,
	Format:        timing.Format{Width: 1920, Height: 1080, Code: timing.CodeSGBRG10_1X10, ColorSpace: timing.ColorSpaceSRGB, Field: timing.FieldNone},
	Crop:          timing.Rect{Left: 4, Top: 4, Width: 7716, Height: 5364},
	FrameInterval: timing.Fract{Numerator: 1, Denominator: 30},
}

// Snapshot is the result of one derivation pass. It is never modified once
// created.
type Snapshot struct {
	Format  timing.Format
	Crop    timing.Rect
	Binning timing.Binning
	VT      timing.VT
	Target  timing.Clocks // Minimum clocks to reach the requested interval.
	PLL     pll.Config
	// FrameInterval is the interval actually achieved.
	FrameInterval timing.Fract
	LineDuration  uint64 // In ns.
	BitsPerPixel  uint32
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("%s crop=%s bin=%dx%d vt=%dx%d fi=%s %s", s.Format, s.Crop, s.Binning.X, s.Binning.Y, s.VT.LineLength, s.VT.FrameLength, s.FrameInterval, &s.PLL)
}

// Derive runs the whole derivation chain for a configuration: binning and
// video timing, minimum clocks, then the PLL.
//
// It doesn't touch the hardware.
func Derive(f timing.Format, c timing.Rect, fi timing.Fract, lanes uint32, refclk physic.Frequency) (*Snapshot, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	bpp, err := f.Code.BitsPerPixel()
	if err != nil {
		return nil, err
	}
	b, vt := timing.ComputeVT(f, c)
	target, err := timing.ComputeClocks(vt, fi, f, c, b, lanes)
	if err != nil {
		return nil, err
	}
	p, err := pll.Solve(target, uint64(refclk/physic.Hertz))
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Format:        f,
		Crop:          c,
		Binning:       b,
		VT:            vt,
		Target:        target,
		PLL:           *p,
		FrameInterval: timing.FrameInterval(p.VT, vt),
		LineDuration:  timing.LineDuration(vt),
		BitsPerPixel:  bpp,
	}, nil
}

// Dev is a handle to a Galileo2 sensor.
//
// It is safe for concurrent use.
type Dev struct {
	c     *cci.Dev
	power gpio.PinOut
	opts  Opts
	cal   *nvm.NVM

	mu     sync.Mutex
	state  StreamState
	format timing.Format
	crop   timing.Rect
	fi     timing.Fract
	// derived is the snapshot for format, crop and fi, nil when stale.
	derived *Snapshot
	// active is the snapshot programmed in the sensor while streaming.
	active *Snapshot
	ctrls  [numControls]int32
	info   [numControls]ControlInfo
}

// New opens a handle to a Galileo2 sensor.
//
// power is optional. When specified, it is driven high to power the sensor
// and low on Halt().
//
// The sensor is identified, its mechanical shutter is closed and its NVM is
// read.
func New(b i2c.Bus, power gpio.PinOut, opts *Opts) (*Dev, error) {
	if opts.Lanes < 1 || opts.Lanes > 4 {
		return nil, fmt.Errorf("%w: %d lanes", ErrInvalid, opts.Lanes)
	}
	if opts.RefClk < pll.MinRefClk*physic.Hertz || opts.RefClk > pll.MaxRefClk*physic.Hertz {
		return nil, fmt.Errorf("%w: refclk %s", ErrInvalid, opts.RefClk)
	}
	d := &Dev{
		c:      cci.New(b, opts.Addr, opts.ShutterAddr),
		power:  power,
		opts:   *opts,
		format: opts.Format,
		crop:   opts.Crop,
		fi:     opts.FrameInterval,
	}
	// Make sure the initial configuration is usable.
	if _, err := d.refresh(); err != nil {
		return nil, err
	}
	if power != nil {
		if err := power.Out(gpio.High); err != nil {
			return nil, err
		}
	}
	if err := d.init(); err != nil {
		if power != nil {
			power.Out(gpio.Low)
		}
		return nil, err
	}
	return d, nil
}

func (d *Dev) String() string {
	return d.c.String()
}

// Halt stops the stream and powers the sensor down.
func (d *Dev) Halt() error {
	d.StreamOff()
	if d.power != nil {
		return d.power.Out(gpio.Low)
	}
	return nil
}

// Calibration returns the content of the NVM.
func (d *Dev) Calibration() *nvm.NVM {
	return d.cal
}

// Timings returns the snapshot in use when streaming, or the one that would
// be used by the next StreamOn() otherwise.
//
// It doesn't change the state nor the requested frame interval.
func (d *Dev) Timings() (*Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Streaming {
		return d.active, nil
	}
	if d.derived != nil {
		return d.derived, nil
	}
	return Derive(d.format, d.crop, d.fi, d.opts.Lanes, d.opts.RefClk)
}

// ReadRegister reads an 8 bits register. It is meant for debugging.
func (d *Dev) ReadRegister(r cci.Register) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.c.ReadUint8(r)
}

// WriteRegister writes an 8 bits register. It is meant for debugging.
func (d *Dev) WriteRegister(r cci.Register, v uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.c.WriteUint8(r, v)
}

// Private details.

func (d *Dev) init() error {
	if d.opts.ModelID != 0 {
		id, err := d.c.ReadUint16(cci.SensorModelID)
		if err != nil {
			return err
		}
		if id != d.opts.ModelID {
			return fmt.Errorf("galileo: unexpected sensor model 0x%04x, expected 0x%04x", id, d.opts.ModelID)
		}
		log.Printf("galileo: found sensor model 0x%04x", id)
	}
	if err := shutterProgram(MSClose).Apply(d.c); err != nil {
		return err
	}
	cal, err := nvm.Read(d.c)
	if err != nil {
		return err
	}
	d.cal = cal
	d.initControls()
	return nil
}

// refresh returns the derived snapshot, computing it if stale.
//
// The achieved frame interval replaces the requested one.
func (d *Dev) refresh() (*Snapshot, error) {
	if d.derived != nil {
		return d.derived, nil
	}
	s, err := Derive(d.format, d.crop, d.fi, d.opts.Lanes, d.opts.RefClk)
	if err != nil {
		return nil, err
	}
	if !s.PLL.KeepFPS {
		log.Printf("galileo: frame interval derated from %s to %s", d.fi, s.FrameInterval)
	}
	d.derived = s
	d.fi = s.FrameInterval
	if d.state == TimingsStale {
		d.state = Idle
	}
	return s, nil
}
