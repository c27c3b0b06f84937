// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package nvm reads the factory programmed non-volatile memory of the
// Galileo2 sensor and exposes the calibration fields the driver needs.
//
// The NVM is read once through the sensor data transfer interface, 64 bytes
// at a time. All multi-byte fields are big endian.
//
// Layout:
//
//	0x00       version tag, must be Version
//	0x08-0x0F  memory map: 4 x uint16 offsets (AF, MS, DPC, LSC)
//	AF+0x04    focus end stops: 4 x uint16 (far end, then deltas)
//	MS+0x00    mechanical shutter delay in µs, uint16
package nvm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/maruel/go-galileo/galileo/cci"
)

// Layout constants.
const (
	PageSize        = 64
	Pages           = 16
	Size            = PageSize * Pages
	MemoryMapOffset = 0x08
	AFFarEndOffset  = 0x04
)

// Version is the only supported layout version.
const Version byte = 0x12

// maxPolls bounds the wait for a page to become readable.
const maxPolls = 100

var (
	// ErrVersionMismatch is matched when the version tag is absent or wrong.
	ErrVersionMismatch = errors.New("nvm: version mismatch")
	// ErrCorrupted is returned when the content is not self-consistent.
	ErrCorrupted = errors.New("nvm: corrupted")
)

// VersionError is returned by Parse when the version tag is wrong.
type VersionError struct {
	Got  byte
	Want byte
}

func (v *VersionError) Error() string {
	return fmt.Sprintf("nvm: version 0x%02x is not correct, expecting 0x%02x", v.Got, v.Want)
}

// Is makes errors.Is(err, ErrVersionMismatch) succeed.
func (v *VersionError) Is(target error) bool {
	return target == ErrVersionMismatch
}

// MemoryMap is the table of offsets of each calibration block.
type MemoryMap struct {
	AF  uint16 // Auto focus.
	MS  uint16 // Mechanical shutter.
	DPC uint16 // Defect pixel correction.
	LSC uint16 // Lens shading correction.
}

// FocusRange is the lens actuator end stops, in actuator codes.
//
// The NVM stores the far end then deltas; the values here are absolute.
type FocusRange struct {
	FarEnd   uint16
	Infinity uint16
	Macro    uint16
	NearEnd  uint16
}

// NVM is the parsed content. It is immutable.
type NVM struct {
	raw          []byte
	memMap       MemoryMap
	focus        FocusRange
	shutterDelay uint16
}

// Bus is the subset of cci.Dev used to page the NVM in.
type Bus interface {
	ReadUint8(r cci.Register) (uint8, error)
	ReadBlock(r cci.Register, b []byte) error
	WriteUint8(r cci.Register, v uint8) error
}

// Read pages in the whole NVM then parses it.
func Read(b Bus) (*NVM, error) {
	raw := make([]byte, Size)
	if err := b.WriteUint8(cci.DataTransferIF1Ctrl, 1); err != nil {
		return nil, err
	}
	err := readPages(b, raw)
	// Always disable the interface, even on failure.
	if err2 := b.WriteUint8(cci.DataTransferIF1Ctrl, 0); err == nil {
		err = err2
	}
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse validates and decodes a raw NVM image. raw is copied.
func Parse(raw []byte) (*NVM, error) {
	if len(raw) != Size {
		return nil, fmt.Errorf("%w: size %d, expected %d", ErrCorrupted, len(raw), Size)
	}
	if raw[0] != Version {
		return nil, &VersionError{Got: raw[0], Want: Version}
	}
	n := &NVM{raw: make([]byte, Size)}
	copy(n.raw, raw)
	m := n.raw[MemoryMapOffset:]
	n.memMap = MemoryMap{
		AF:  binary.BigEndian.Uint16(m[0:]),
		MS:  binary.BigEndian.Uint16(m[2:]),
		DPC: binary.BigEndian.Uint16(m[4:]),
		LSC: binary.BigEndian.Uint16(m[6:]),
	}
	af := int(n.memMap.AF) + AFFarEndOffset
	if af+8 > Size {
		return nil, fmt.Errorf("%w: AF offset 0x%x", ErrCorrupted, n.memMap.AF)
	}
	far := uint32(binary.BigEndian.Uint16(n.raw[af:]))
	inf := far + uint32(binary.BigEndian.Uint16(n.raw[af+2:]))
	macro := inf + uint32(binary.BigEndian.Uint16(n.raw[af+4:]))
	near := macro + uint32(binary.BigEndian.Uint16(n.raw[af+6:]))
	if near > 0xFFFF {
		return nil, fmt.Errorf("%w: focus near end %d overflows", ErrCorrupted, near)
	}
	n.focus = FocusRange{FarEnd: uint16(far), Infinity: uint16(inf), Macro: uint16(macro), NearEnd: uint16(near)}
	ms := int(n.memMap.MS)
	if ms+2 > Size {
		return nil, fmt.Errorf("%w: MS offset 0x%x", ErrCorrupted, n.memMap.MS)
	}
	n.shutterDelay = binary.BigEndian.Uint16(n.raw[ms:])
	return n, nil
}

// ShutterDelay returns the mechanical shutter closing delay in µs.
func (n *NVM) ShutterDelay() uint16 {
	return n.shutterDelay
}

// Focus returns the absolute lens end stops.
func (n *NVM) Focus() FocusRange {
	return n.focus
}

// MemoryMap returns the calibration blocks offsets.
func (n *NVM) MemoryMap() MemoryMap {
	return n.memMap
}

// Raw returns a copy of the NVM image.
func (n *NVM) Raw() []byte {
	out := make([]byte, len(n.raw))
	copy(out, n.raw)
	return out
}

// Private details.

func readPages(b Bus, raw []byte) error {
	for page := 0; page < Pages; page++ {
		if err := b.WriteUint8(cci.DataTransferIF1PageSel, uint8(page)); err != nil {
			return err
		}
		if err := waitReadReady(b, page); err != nil {
			return err
		}
		if err := b.ReadBlock(cci.DataTransferIF1Data, raw[page*PageSize:(page+1)*PageSize]); err != nil {
			return err
		}
	}
	return nil
}

func waitReadReady(b Bus, page int) error {
	for i := 0; i < maxPolls; i++ {
		status, err := b.ReadUint8(cci.DataTransferIF1Status)
		if err != nil {
			return err
		}
		if status&(cci.DTImproperUsage|cci.DTDataCorrupted) != 0 {
			return fmt.Errorf("%w: data transfer interface status 0x%02x on page %d", ErrCorrupted, status, page)
		}
		if status&cci.DTReadReady != 0 {
			return nil
		}
	}
	return fmt.Errorf("nvm: page %d not ready after %d polls", page, maxPolls)
}
