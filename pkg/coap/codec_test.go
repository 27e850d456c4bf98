// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package coap

import (
	"bytes"
	"testing"
)

func TestDecodeGetScenario(t *testing.T) {
	// GET /c/Bth, msgid 0x1234.
	raw := []byte{0x40, 0x01, 0x12, 0x34, 0xB1, 'c', 0x03, 'B', 't', 'h', 0xC0}
	f := Decode(raw)
	if f.Poisoned() {
		t.Fatalf("unexpected error: %v", f.Err)
	}
	if f.Type != CON {
		t.Errorf("type = %v, want CON", f.Type)
	}
	if f.Code != (Code{Class: 0, Detail: GET}) {
		t.Errorf("code = %v, want 0.01", f.Code)
	}
	if f.MessageID != 0x1234 {
		t.Errorf("msgid = %#x, want 0x1234", f.MessageID)
	}
	if got := JoinPath(f.Path); got != "/c/Bth" {
		t.Errorf("path = %q, want /c/Bth", got)
	}
	if f.Block2 == nil || *f.Block2 != (BlockOption{Num: 0, More: false, Size: 16}) {
		t.Errorf("block2 = %+v, want num=0 more=false size=16", f.Block2)
	}
}

func TestEncodeGetScenario(t *testing.T) {
	f := &Frame{
		Type:      CON,
		Code:      NewRequestCode(GET),
		MessageID: 0x1234,
		Path:      []string{"c", "Bth"},
		Block2:    &BlockOption{Num: 0, More: false, Size: 16},
	}
	raw, err := Encode(f)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x40, 0x01, 0x12, 0x34, 0xB1, 'c', 0x03, 'B', 't', 'h', 0xC0}
	if !bytes.Equal(raw, want) {
		t.Errorf("encode = % x, want % x", raw, want)
	}
}

func TestRoundTripFrames(t *testing.T) {
	cf := uint32(60)
	tests := []struct {
		name string
		f    *Frame
	}{
		{"empty-get", &Frame{Type: CON, Code: NewRequestCode(GET), MessageID: 1}},
		{"path-and-query", &Frame{
			Type: NON, Code: NewRequestCode(FETCH), MessageID: 42,
			Path: []string{"a", "b", "c"}, Query: []string{"x=1", "y"},
		}},
		{"with-token-and-payload", &Frame{
			Type: ACK, Code: Code{Class: 2, Detail: 5}, MessageID: 7,
			Token: []byte{1, 2, 3}, ContentFormat: &cf,
			Payload: []byte("hello"),
		}},
		{"with-block1-and-block2", &Frame{
			Type: CON, Code: NewRequestCode(PUT), MessageID: 99,
			Path:   []string{"x"},
			Block1: &BlockOption{Num: 3, More: true, Size: 256},
			Block2: &BlockOption{Num: 0, More: false, Size: 1024},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode(tt.f)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got := Decode(raw)
			if got.Poisoned() {
				t.Fatalf("decode: %v", got.Err)
			}
			if got.Type != tt.f.Type || got.Code != tt.f.Code || got.MessageID != tt.f.MessageID {
				t.Errorf("header mismatch: got %+v", got)
			}
			if !bytes.Equal(got.Token, tt.f.Token) {
				t.Errorf("token = % x, want % x", got.Token, tt.f.Token)
			}
			if !bytes.Equal(got.Payload, tt.f.Payload) {
				t.Errorf("payload = %q, want %q", got.Payload, tt.f.Payload)
			}
			if len(got.Path) != len(tt.f.Path) {
				t.Errorf("path = %v, want %v", got.Path, tt.f.Path)
			}
		})
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	raw := []byte{0x81, 0x01, 0x00, 0x00}
	f := Decode(raw)
	if !f.Poisoned() {
		t.Fatal("expected poisoned frame for bad version")
	}
}

func TestDecodeReservedOptionNibble(t *testing.T) {
	raw := []byte{0x40, 0x01, 0x00, 0x00, 0xF0}
	f := Decode(raw)
	if !f.Poisoned() {
		t.Fatal("expected poisoned frame for reserved option nibble")
	}
}

func TestOptionOrderingNonDecreasing(t *testing.T) {
	f := &Frame{
		Type: CON, Code: NewRequestCode(GET), MessageID: 1,
		Path:   []string{"a"},
		Query:  []string{"q=1"},
		Block1: &BlockOption{Num: 0, More: false, Size: 16},
	}
	raw, err := Encode(f)
	if err != nil {
		t.Fatal(err)
	}
	opts, _, err := decodeOptions(raw[4:])
	if err != nil {
		t.Fatal(err)
	}
	var prev uint32
	for _, o := range opts {
		if o.Number < prev {
			t.Fatalf("options not non-decreasing: %d after %d", o.Number, prev)
		}
		prev = o.Number
	}
}

func TestExtendedDeltaUsedWhenDeltaAtLeast13(t *testing.T) {
	// uri-path (11) then block1 (27): delta = 16, must use extended nibble 13.
	f := &Frame{
		Type: CON, Code: NewRequestCode(GET), MessageID: 1,
		Path:   []string{"a"},
		Block1: &BlockOption{Num: 0, More: false, Size: 16},
	}
	raw, err := Encode(f)
	if err != nil {
		t.Fatal(err)
	}
	opts, _, err := decodeOptions(raw[4:])
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 2 {
		t.Fatalf("expected 2 options, got %d", len(opts))
	}
	// First byte of the second option's delta nibble should be 13 (extended).
	// Re-derive by encoding just the block1 option delta manually.
	deltaNibble, _ := extLenEncoding(opts[1].Number - opts[0].Number)
	if deltaNibble != 13 {
		t.Errorf("delta nibble = %d, want 13 for delta >= 13", deltaNibble)
	}
}

func TestBlockOptionBoundaries(t *testing.T) {
	tests := []struct {
		num  uint32
		more bool
		size uint16
	}{
		{0, false, 16},
		{1, true, 1024},
		{4095, false, 256},
	}
	for _, tt := range tests {
		b := BlockOption{Num: tt.num, More: tt.more, Size: tt.size}
		raw, err := b.encode()
		if err != nil {
			t.Fatal(err)
		}
		got, err := decodeBlockOption(raw)
		if err != nil {
			t.Fatal(err)
		}
		if got != b {
			t.Errorf("got %+v, want %+v", got, b)
		}
	}
}

func TestBlockOptionInvalidSize(t *testing.T) {
	b := BlockOption{Num: 0, More: false, Size: 999}
	if _, err := b.encode(); err == nil {
		t.Fatal("expected error for invalid block size")
	}
}
