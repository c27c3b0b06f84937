// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package cci implements the Galileo2 Camera Control Interface over i²c.
//
// The sensor follows the SMIA++ register map: addresses are 16 bits big
// endian, values are either 8 bits or 16 bits big endian. The AD5830
// mechanical shutter driver sits on the same bus at its own address and uses 8
// bits addresses.
//
// References:
// SMIA++ functional specification, register map p. 45-78.
// AD5830 datasheet, p. 12 register map.
package cci

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/periph/conn/i2c"
)

// Default i²c addresses.
const (
	SensorAddr  uint16 = 0x10
	ShutterAddr uint16 = 0x0C
)

// ErrTransport is matched by every bus error returned by this package.
var ErrTransport = errors.New("cci: transport failure")

// TransportError is returned when an i²c transaction fails.
type TransportError struct {
	Addr uint16   // i²c device address.
	Reg  Register // Register being accessed.
	Op   string   // "read" or "write".
	Err  error
}

func (t *TransportError) Error() string {
	return fmt.Sprintf("cci: %s 0x%02x:0x%04x: %v", t.Op, t.Addr, uint16(t.Reg), t.Err)
}

func (t *TransportError) Unwrap() error {
	return t.Err
}

// Is makes errors.Is(err, ErrTransport) succeed.
func (t *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Dev is a handle to the sensor and its mechanical shutter driver.
//
// It is not safe for concurrent use; the caller serializes accesses.
type Dev struct {
	sensor  i2c.Dev
	shutter i2c.Dev
}

// New returns a Dev talking to the sensor at addr and the shutter driver at
// shutterAddr on bus b.
func New(b i2c.Bus, addr, shutterAddr uint16) *Dev {
	return &Dev{
		sensor:  i2c.Dev{Bus: b, Addr: addr},
		shutter: i2c.Dev{Bus: b, Addr: shutterAddr},
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("galileo2(%s, 0x%02x)", d.sensor.Bus, d.sensor.Addr)
}

// ReadUint8 reads an 8 bits register.
func (d *Dev) ReadUint8(r Register) (uint8, error) {
	var b [1]byte
	err := d.ReadBlock(r, b[:])
	return b[0], err
}

// ReadUint16 reads a 16 bits big endian register.
func (d *Dev) ReadUint16(r Register) (uint16, error) {
	var b [2]byte
	err := d.ReadBlock(r, b[:])
	return binary.BigEndian.Uint16(b[:]), err
}

// ReadBlock reads len(b) consecutive bytes starting at r in one transaction.
func (d *Dev) ReadBlock(r Register, b []byte) error {
	var a [2]byte
	binary.BigEndian.PutUint16(a[:], uint16(r))
	if err := d.sensor.Tx(a[:], b); err != nil {
		for i := range b {
			b[i] = 0
		}
		return &TransportError{Addr: d.sensor.Addr, Reg: r, Op: "read", Err: err}
	}
	return nil
}

// WriteUint8 writes an 8 bits register.
func (d *Dev) WriteUint8(r Register, v uint8) error {
	var w [3]byte
	binary.BigEndian.PutUint16(w[:], uint16(r))
	w[2] = v
	return d.write(r, w[:])
}

// WriteUint16 writes a 16 bits big endian register.
func (d *Dev) WriteUint16(r Register, v uint16) error {
	var w [4]byte
	binary.BigEndian.PutUint16(w[:], uint16(r))
	binary.BigEndian.PutUint16(w[2:], v)
	return d.write(r, w[:])
}

// WriteShutter writes an 8 bits register of the AD5830 shutter driver.
func (d *Dev) WriteShutter(r uint8, v uint8) error {
	if err := d.shutter.Tx([]byte{r, v}, nil); err != nil {
		return &TransportError{Addr: d.shutter.Addr, Reg: Register(r), Op: "write", Err: err}
	}
	return nil
}

// Private details.

func (d *Dev) write(r Register, w []byte) error {
	if err := d.sensor.Tx(w, nil); err != nil {
		return &TransportError{Addr: d.sensor.Addr, Reg: r, Op: "write", Err: err}
	}
	return nil
}
