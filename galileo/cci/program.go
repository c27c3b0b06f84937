// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package cci

import (
	"fmt"
	"strings"
)

// Sink receives register writes in order.
//
// Dev implements it.
type Sink interface {
	WriteUint8(r Register, v uint8) error
	WriteUint16(r Register, v uint16) error
	WriteShutter(r uint8, v uint8) error
}

// Write is a single register write.
type Write struct {
	Reg     Register
	Value   uint16
	Wide    bool // 16 bits write when true, 8 bits otherwise.
	Shutter bool // Targets the shutter driver; Reg and Value are 8 bits.
}

func (w Write) String() string {
	if w.Shutter {
		return fmt.Sprintf("shutter:0x%02x=0x%02x", uint16(w.Reg), w.Value)
	}
	if w.Wide {
		return fmt.Sprintf("0x%04x=0x%04x", uint16(w.Reg), w.Value)
	}
	return fmt.Sprintf("0x%04x=0x%02x", uint16(w.Reg), w.Value)
}

// Program is an ordered sequence of register writes.
type Program []Write

// Write8 appends an 8 bits write.
func (p *Program) Write8(r Register, v uint8) {
	*p = append(*p, Write{Reg: r, Value: uint16(v)})
}

// Write16 appends a 16 bits write.
func (p *Program) Write16(r Register, v uint16) {
	*p = append(*p, Write{Reg: r, Value: v, Wide: true})
}

// WriteShutter appends a shutter driver write.
func (p *Program) WriteShutter(r uint8, v uint8) {
	*p = append(*p, Write{Reg: Register(r), Value: uint16(v), Shutter: true})
}

// Append appends all the writes of o.
func (p *Program) Append(o Program) {
	*p = append(*p, o...)
}

// Hold returns p surrounded by GROUPED_PARAMETER_HOLD so the sensor latches
// all the values on the same frame boundary.
func (p Program) Hold() Program {
	out := make(Program, 0, len(p)+2)
	out.Write8(GroupedParameterHold, 1)
	out = append(out, p...)
	out.Write8(GroupedParameterHold, 0)
	return out
}

// Apply writes the program to s. It stops at the first failure.
func (p Program) Apply(s Sink) error {
	for _, w := range p {
		var err error
		if w.Shutter {
			err = s.WriteShutter(uint8(w.Reg), uint8(w.Value))
		} else if w.Wide {
			err = s.WriteUint16(w.Reg, w.Value)
		} else {
			err = s.WriteUint8(w.Reg, uint8(w.Value))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p Program) String() string {
	s := make([]string, len(p))
	for i, w := range p {
		s[i] = w.String()
	}
	return "[" + strings.Join(s, " ") + "]"
}
