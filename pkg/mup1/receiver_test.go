// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mup1

import (
	"bytes"
	"testing"
)

func TestTransmitReceiveRoundTrip(t *testing.T) {
	// type 'C', payload with bytes requiring escape.
	payload := []byte{0x3E, 0x00, 0xFF}
	wire, err := Encode(TypeCoAP, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	wantEscaped := []byte{ESC, SOF, ESC, escZero, ESC, escFF}
	if !bytes.Contains(wire, wantEscaped) {
		t.Errorf("wire = % x, want escaped payload % x inside it", wire, wantEscaped)
	}

	var got Frame
	r := NewReceiver()
	r.Subscribe(TypeCoAP, func(f Frame) { got = f })
	r.FeedBytes(wire)

	if got.Type != TypeCoAP {
		t.Fatalf("dispatched type = %q, want %q", got.Type, TypeCoAP)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("dispatched payload = % x, want % x", got.Payload, payload)
	}
}

func TestReceiverDispatchesToNonMUP1WhenNoSubscriber(t *testing.T) {
	wire, err := Encode(TypePing, []byte("ok"))
	if err != nil {
		t.Fatal(err)
	}
	var got Frame
	r := NewReceiver()
	r.SubscribeNonMUP1(func(f Frame) { got = f })
	r.FeedBytes(wire)

	if got.Type != TypePing {
		t.Fatalf("fallback type = %q, want %q", got.Type, TypePing)
	}
	if string(got.Payload) != "ok" {
		t.Errorf("fallback payload = %q, want %q", got.Payload, "ok")
	}
}

func TestReceiverFlushesPreFrameBytesToNonMUP1(t *testing.T) {
	var gotFrames []Frame
	r := NewReceiver()
	r.SubscribeNonMUP1(func(f Frame) { gotFrames = append(gotFrames, f) })

	r.FeedBytes([]byte("boot log noise\n"))

	wire, err := Encode(TypeAnnounce, []byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	r.FeedBytes(wire)

	if len(gotFrames) != 2 {
		t.Fatalf("got %d frames, want 2 (pre-frame bytes then the announce frame)", len(gotFrames))
	}
	if string(gotFrames[0].Payload) != "boot log noise\n" {
		t.Errorf("pre-frame bytes = %q, want %q", gotFrames[0].Payload, "boot log noise\n")
	}
	if gotFrames[1].Type != TypeAnnounce || string(gotFrames[1].Payload) != "hi" {
		t.Errorf("announce frame = %+v", gotFrames[1])
	}
}

func TestReceiverRecoversFromChecksumError(t *testing.T) {
	wire, err := Encode(TypeCoAP, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt one checksum hex digit.
	corrupt := append([]byte(nil), wire...)
	corrupt[len(corrupt)-1] ^= 0x01

	var errs []error
	var got Frame
	r := NewReceiver()
	r.OnFrameError(func(err error) { errs = append(errs, err) })
	r.Subscribe(TypeCoAP, func(f Frame) { got = f })
	r.FeedBytes(corrupt)

	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if got.Payload != nil {
		t.Errorf("handler should not fire on checksum failure, got %+v", got)
	}

	// The receiver must recover and parse the next frame normally.
	wire2, err := Encode(TypeCoAP, []byte("second"))
	if err != nil {
		t.Fatal(err)
	}
	r.FeedBytes(wire2)
	if string(got.Payload) != "second" {
		t.Errorf("payload after recovery = %q, want %q", got.Payload, "second")
	}
}

func TestReceiverTimeoutResetsPartialFrame(t *testing.T) {
	var gotFrames []Frame
	r := NewReceiver()
	r.SubscribeNonMUP1(func(f Frame) { gotFrames = append(gotFrames, f) })

	r.FeedBytes([]byte{SOF, TypeCoAP, 'a', 'b'}) // never completes
	r.Timeout()

	wire, err := Encode(TypePing, []byte("pong"))
	if err != nil {
		t.Fatal(err)
	}
	r.FeedBytes(wire)

	if len(gotFrames) != 1 {
		t.Fatalf("got %d frames, want 1 (only the frame after the reset)", len(gotFrames))
	}
	if gotFrames[0].Type != TypePing {
		t.Errorf("frame after timeout reset = %+v", gotFrames[0])
	}
}

func TestReceiverOversizedPayloadIsRejected(t *testing.T) {
	big := bytes.Repeat([]byte{'x'}, MaxPayload+1)
	r := NewReceiver()
	var errs []error
	r.OnFrameError(func(err error) { errs = append(errs, err) })

	r.Feed(SOF)
	r.Feed(TypeCoAP)
	r.FeedBytes(big)

	if len(errs) == 0 {
		t.Fatal("expected a frame-too-big error")
	}
}

func TestReceiverDisabledPassesBytesThroughVerbatim(t *testing.T) {
	var gotFrames []Frame
	r := NewReceiver()
	r.SubscribeNonMUP1(func(f Frame) { gotFrames = append(gotFrames, f) })
	r.SetEnabled(false)

	r.FeedBytes([]byte{SOF, 'x', EOF})

	if len(gotFrames) != 3 {
		t.Fatalf("got %d dispatches, want 3 (one per raw byte)", len(gotFrames))
	}
	for _, f := range gotFrames {
		if f.Type != NonMUP1 {
			t.Errorf("type = %q, want NonMUP1", f.Type)
		}
	}
}
