// Copyright 2026 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package nvm_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/maruel/go-galileo/galileo/cci"
	"github.com/maruel/go-galileo/galileo/galileotest"
	"github.com/maruel/go-galileo/galileo/nvm"
)

func TestRead(t *testing.T) {
	s := galileotest.New(galileotest.NVM(30000, [4]uint16{100, 50, 200, 25}))
	n, err := nvm.Read(cci.New(s, s.Addr, s.ShutterAddr))
	if err != nil {
		t.Fatal(err)
	}
	if d := n.ShutterDelay(); d != 30000 {
		t.Fatal(d)
	}
	expected := nvm.FocusRange{FarEnd: 100, Infinity: 150, Macro: 350, NearEnd: 375}
	if f := n.Focus(); f != expected {
		t.Fatalf("%+v != %+v", f, expected)
	}
	if m := n.MemoryMap(); m != (nvm.MemoryMap{AF: 0x40, MS: 0x80, DPC: 0xC0, LSC: 0x100}) {
		t.Fatalf("%+v", m)
	}
	raw := n.Raw()
	raw[0] = 0
	if n.Raw()[0] != nvm.Version {
		t.Fatal("Raw() must return a copy")
	}
	// The interface is disabled once done.
	if v := s.Uint8(cci.DataTransferIF1Ctrl); v != 0 {
		t.Fatal(v)
	}
}

func TestRead_fail(t *testing.T) {
	s := galileotest.New(galileotest.NVM(0, [4]uint16{}))
	s.Fail(cci.DataTransferIF1Data, true)
	if _, err := nvm.Read(cci.New(s, s.Addr, s.ShutterAddr)); !errors.Is(err, cci.ErrTransport) {
		t.Fatalf("unexpected error %v", err)
	}
	if v := s.Uint8(cci.DataTransferIF1Ctrl); v != 0 {
		t.Fatal(v)
	}

	// Image too short: the interface reports improper usage on the last pages.
	s = galileotest.New(make([]byte, nvm.PageSize))
	if _, err := nvm.Read(cci.New(s, s.Addr, s.ShutterAddr)); !errors.Is(err, nvm.ErrCorrupted) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestParse(t *testing.T) {
	b := galileotest.NVM(1234, [4]uint16{1, 2, 3, 4})
	n, err := nvm.Parse(b)
	if err != nil {
		t.Fatal(err)
	}
	if n.ShutterDelay() != 1234 {
		t.Fatal(n.ShutterDelay())
	}
	if f := n.Focus(); f != (nvm.FocusRange{FarEnd: 1, Infinity: 3, Macro: 6, NearEnd: 10}) {
		t.Fatalf("%+v", f)
	}
}

func TestParse_fail(t *testing.T) {
	if _, err := nvm.Parse(make([]byte, 10)); !errors.Is(err, nvm.ErrCorrupted) {
		t.Fatalf("unexpected error %v", err)
	}

	b := galileotest.NVM(0, [4]uint16{})
	b[0] = 0x11
	_, err := nvm.Parse(b)
	if !errors.Is(err, nvm.ErrVersionMismatch) {
		t.Fatalf("unexpected error %v", err)
	}
	var v *nvm.VersionError
	if !errors.As(err, &v) || v.Got != 0x11 || v.Want != nvm.Version {
		t.Fatalf("unexpected error %#v", err)
	}

	// Empty image, the tag is absent.
	if _, err := nvm.Parse(make([]byte, nvm.Size)); !errors.Is(err, nvm.ErrVersionMismatch) {
		t.Fatalf("unexpected error %v", err)
	}

	b = galileotest.NVM(0, [4]uint16{})
	binary.BigEndian.PutUint16(b[nvm.MemoryMapOffset:], nvm.Size-4)
	if _, err := nvm.Parse(b); !errors.Is(err, nvm.ErrCorrupted) {
		t.Fatalf("unexpected error %v", err)
	}

	b = galileotest.NVM(0, [4]uint16{0xFFFF, 1, 0, 0})
	if _, err := nvm.Parse(b); !errors.Is(err, nvm.ErrCorrupted) {
		t.Fatalf("unexpected error %v", err)
	}

	b = galileotest.NVM(0, [4]uint16{})
	binary.BigEndian.PutUint16(b[nvm.MemoryMapOffset+2:], nvm.Size-1)
	if _, err := nvm.Parse(b); !errors.Is(err, nvm.ErrCorrupted) {
		t.Fatalf("unexpected error %v", err)
	}
}
