// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// galileo-query uses the i²c interface to query the sensor state and prints
// the timings derived for a configuration.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/maruel/go-galileo/galileo"
	"github.com/maruel/go-galileo/galileo/cci"
	"github.com/maruel/go-galileo/galileo/galileotest"
	"github.com/maruel/go-galileo/galileo/shutter"
	"github.com/maruel/go-galileo/galileo/timing"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/host"
)

func parseCrop(s string) (timing.Rect, error) {
	var v [4]uint32
	p := strings.Split(s, ",")
	if len(p) != len(v) {
		return timing.Rect{}, fmt.Errorf("-crop: expected left,top,width,height, got %q", s)
	}
	for i := range p {
		n, err := strconv.ParseUint(p[i], 10, 32)
		if err != nil {
			return timing.Rect{}, fmt.Errorf("-crop: %v", err)
		}
		v[i] = uint32(n)
	}
	return timing.Rect{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}, nil
}

func printCalibration(d *galileo.Dev) {
	cal := d.Calibration()
	m := cal.MemoryMap()
	f := cal.Focus()
	fmt.Printf("NVM.ShutterDelay:    %dµs\n", cal.ShutterDelay())
	fmt.Printf("NVM.MemoryMap:       AF=0x%x MS=0x%x DPC=0x%x LSC=0x%x\n", m.AF, m.MS, m.DPC, m.LSC)
	fmt.Printf("NVM.Focus:           far=%d infinity=%d macro=%d near=%d\n", f.FarEnd, f.Infinity, f.Macro, f.NearEnd)
	for _, c := range galileo.Controls() {
		i, _ := d.ControlInfo(c)
		v, _ := d.GetControl(c)
		fmt.Printf("Control.%-20s %7d [%d - %d]\n", i.Name+":", v, i.Min, i.Max)
	}
}

func printSnapshot(s *galileo.Snapshot, exposure uint32, shutterDelay uint16) error {
	fmt.Printf("Format:              %s\n", s.Format)
	fmt.Printf("Crop:                %s\n", s.Crop)
	fmt.Printf("Binning:             %dx%d (0x%02x)\n", s.Binning.X, s.Binning.Y, s.Binning.Type())
	fmt.Printf("VT:                  %d pck x %d lines\n", s.VT.LineLength, s.VT.FrameLength)
	fmt.Printf("Target:              %s\n", s.Target)
	fmt.Printf("PLL:                 %s\n", &s.PLL)
	fmt.Printf("PLL.KeepFPS:         %t\n", s.PLL.KeepFPS)
	fmt.Printf("FrameInterval:       %s (%.3ffps)\n", s.FrameInterval, float64(s.FrameInterval.Denominator)/float64(s.FrameInterval.Numerator))
	fmt.Printf("LineDuration:        %dns\n", s.LineDuration)
	coarse, err := shutter.Coarse(exposure, s.LineDuration)
	if err != nil {
		return err
	}
	fmt.Printf("CoarseIntegration:   %d lines\n", coarse)
	p, err := shutter.Compute(&shutter.Input{
		Exposure:     exposure,
		ShutterDelay: shutterDelay,
		LineDuration: s.LineDuration,
		VT:           s.VT,
		Crop:         s.Crop,
		Binning:      s.Binning,
	})
	if err != nil {
		return err
	}
	fmt.Printf("GlobalReset:         %s\n", p)
	return nil
}

func mainImpl() error {
	i2cName := flag.String("i2c", "", "I²C bus to use")
	i2cHz := flag.Int("hz", 0, "I²C bus speed")
	fake := flag.Bool("fake", false, "use a fake sensor")
	verbose := flag.Bool("v", false, "verbose mode")
	w := flag.Int("w", 0, "output width; defaults to the driver's")
	h := flag.Int("h", 0, "output height; defaults to the driver's")
	fps := flag.Int("fps", 0, "frame rate; defaults to the driver's")
	crop := flag.String("crop", "", "crop as left,top,width,height")
	refclk := flag.Int("refclk", 0, "EXTCLK in Hz; defaults to 24MHz")
	lanes := flag.Int("lanes", 0, "number of CSI-2 lanes; defaults to 4")
	exposure := flag.Int("exposure", 20000, "exposure in µs to compute the shutter timings")
	derive := flag.Bool("derive", false, "only derive the timings without accessing the sensor")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	opts := galileo.DefaultOpts
	if *w != 0 {
		opts.Format.Width = uint32(*w)
	}
	if *h != 0 {
		opts.Format.Height = uint32(*h)
	}
	if *fps != 0 {
		opts.FrameInterval = timing.Fract{Numerator: 1, Denominator: uint32(*fps)}
	}
	if *crop != "" {
		c, err := parseCrop(*crop)
		if err != nil {
			return err
		}
		opts.Crop = c
	}
	if *refclk != 0 {
		opts.RefClk = physic.Frequency(*refclk) * physic.Hertz
	}
	if *lanes != 0 {
		opts.Lanes = uint32(*lanes)
	}

	if *derive {
		s, err := galileo.Derive(opts.Format, opts.Crop, opts.FrameInterval, opts.Lanes, opts.RefClk)
		if err != nil {
			return err
		}
		return printSnapshot(s, uint32(*exposure), 0)
	}

	var bus i2c.Bus
	if *fake {
		bus = galileotest.New(galileotest.NVM(30000, [4]uint16{100, 50, 200, 25}))
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
		b, err := i2creg.Open(*i2cName)
		if err != nil {
			return err
		}
		defer b.Close()
		if *i2cHz != 0 {
			if err := b.SetSpeed(physic.Frequency(*i2cHz) * physic.Hertz); err != nil {
				return err
			}
		}
		bus = b
	}
	dev, err := galileo.New(bus, nil, &opts)
	if err != nil {
		return err
	}
	defer dev.Halt()
	fmt.Printf("Device:              %s\n", dev)
	fmt.Printf("State:               %s\n", dev.State())
	orientation, err := dev.ReadRegister(cci.ImageOrientation)
	if err != nil {
		return err
	}
	fmt.Printf("ImageOrientation:    0x%02x\n", orientation)
	printCalibration(dev)
	s, err := dev.Timings()
	if err != nil {
		return err
	}
	return printSnapshot(s, uint32(*exposure), dev.Calibration().ShutterDelay())
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ngalileo-query: %s.\n", err)
		os.Exit(1)
	}
}
