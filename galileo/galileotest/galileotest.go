// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package galileotest implements a fake Galileo2 sensor on a fake i²c bus.
//
// It behaves like a register file: writes are stored and logged, reads return
// the last value written. The NVM data transfer interface and the AD5830
// shutter driver are emulated.
package galileotest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/maruel/go-galileo/galileo/cci"
	"github.com/maruel/go-galileo/galileo/nvm"

	"periph.io/x/periph/conn/physic"
)

// ModelID is the value returned by SENSOR_MODEL_ID.
const ModelID = cci.Galileo2ModelID

// ErrInjected is returned by Tx for a register listed in Sensor.Fail.
var ErrInjected = errors.New("galileotest: injected failure")

// Sensor is a fake Galileo2 sensor and AD5830 shutter driver.
//
// It implements i2c.Bus.
type Sensor struct {
	Addr        uint16
	ShutterAddr uint16

	mu      sync.Mutex
	regs    [0x10000]byte
	nvm     []byte
	shutter [256]byte
	writes  cci.Program
	sWrites [][2]byte
	fail    map[cci.Register]bool
	speed   physic.Frequency
}

// New returns a fake sensor at the default addresses exposing image as its
// NVM.
func New(image []byte) *Sensor {
	s := &Sensor{
		Addr:        cci.SensorAddr,
		ShutterAddr: cci.ShutterAddr,
		nvm:         image,
		fail:        map[cci.Register]bool{},
	}
	binary.BigEndian.PutUint16(s.regs[cci.SensorModelID:], ModelID)
	return s
}

func (s *Sensor) String() string {
	return "galileotest"
}

// SetSpeed implements i2c.Bus.
func (s *Sensor) SetSpeed(f physic.Frequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = f
	return nil
}

// Tx implements i2c.Bus.
func (s *Sensor) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch addr {
	case s.Addr:
		return s.sensorTx(w, r)
	case s.ShutterAddr:
		if len(w) != 2 || len(r) != 0 {
			return fmt.Errorf("galileotest: unexpected shutter transaction w=%#v r=%d", w, len(r))
		}
		s.shutter[w[0]] = w[1]
		s.sWrites = append(s.sWrites, [2]byte{w[0], w[1]})
		return nil
	default:
		return fmt.Errorf("galileotest: no device at 0x%02x", addr)
	}
}

// Fail makes every access to r fail, or stop failing.
func (s *Sensor) Fail(r cci.Register, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fail {
		s.fail[r] = true
	} else {
		delete(s.fail, r)
	}
}

// Writes returns the sensor register writes logged so far and resets the
// log.
func (s *Sensor) Writes() cci.Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.writes
	s.writes = nil
	return out
}

// ShutterWrites returns the shutter driver writes logged so far and resets
// the log.
func (s *Sensor) ShutterWrites() [][2]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sWrites
	s.sWrites = nil
	return out
}

// Uint8 returns the current value of an 8 bits register.
func (s *Sensor) Uint8(r cci.Register) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[r]
}

// Uint16 returns the current value of a 16 bits register.
func (s *Sensor) Uint16(r cci.Register) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return binary.BigEndian.Uint16(s.regs[r:])
}

// Shutter returns the current value of a shutter driver register.
func (s *Sensor) Shutter(r uint8) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutter[r]
}

// NVM returns a valid NVM image with the given mechanical shutter delay in µs
// and focus end stops as stored: far end then deltas.
func NVM(shutterDelay uint16, focus [4]uint16) []byte {
	const af = 0x40
	const ms = 0x80
	b := make([]byte, nvm.Size)
	b[0] = nvm.Version
	binary.BigEndian.PutUint16(b[nvm.MemoryMapOffset:], af)
	binary.BigEndian.PutUint16(b[nvm.MemoryMapOffset+2:], ms)
	binary.BigEndian.PutUint16(b[nvm.MemoryMapOffset+4:], 0xC0)
	binary.BigEndian.PutUint16(b[nvm.MemoryMapOffset+6:], 0x100)
	for i, v := range focus {
		binary.BigEndian.PutUint16(b[af+nvm.AFFarEndOffset+2*i:], v)
	}
	binary.BigEndian.PutUint16(b[ms:], shutterDelay)
	return b
}

// Private details.

func (s *Sensor) sensorTx(w, r []byte) error {
	if len(w) < 2 {
		return fmt.Errorf("galileotest: register address is %d bytes", len(w))
	}
	reg := cci.Register(binary.BigEndian.Uint16(w))
	if s.fail[reg] {
		return ErrInjected
	}
	data := w[2:]
	switch len(data) {
	case 0:
	case 1:
		s.writes.Write8(reg, data[0])
	case 2:
		s.writes.Write16(reg, binary.BigEndian.Uint16(data))
	default:
		return fmt.Errorf("galileotest: unexpected %d bytes write at 0x%04x", len(data), uint16(reg))
	}
	for i, v := range data {
		s.regs[(int(reg)+i)&0xFFFF] = v
	}
	if reg == cci.DataTransferIF1PageSel && len(data) == 1 {
		s.loadPage(int(data[0]))
	}
	for i := range r {
		r[i] = s.regs[(int(reg)+i)&0xFFFF]
	}
	return nil
}

// loadPage emulates the data transfer interface paging in 64 bytes of NVM.
func (s *Sensor) loadPage(page int) {
	status := cci.DTReadReady
	off := page * nvm.PageSize
	if s.regs[cci.DataTransferIF1Ctrl] == 0 || off+nvm.PageSize > len(s.nvm) {
		status = cci.DTImproperUsage
	} else {
		copy(s.regs[cci.DataTransferIF1Data:], s.nvm[off:off+nvm.PageSize])
	}
	s.regs[cci.DataTransferIF1Status] = status
}
