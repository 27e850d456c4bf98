// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/blockwise"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/coap"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/metrics"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/mup1"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeCarrier is an in-memory carrier.Carrier double: writes land in a
// captured buffer, reads drain a byte queue a test can append to. No real
// I/O, no goroutines started by the fake itself.
type fakeCarrier struct {
	mu       sync.Mutex
	toRead   []byte
	written  bytes.Buffer
	deadline time.Time
	closed   bool
}

func (f *fakeCarrier) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, io.EOF
	}
	for len(f.toRead) == 0 {
		if f.deadline.IsZero() {
			return 0, io.EOF
		}
		if !time.Now().Before(f.deadline) {
			return 0, nil // go.bug.st/serial-style silent timeout
		}
		// Wait without holding the lock, so bytes a test pushes meanwhile
		// end the read early, as they would on a real carrier.
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
		f.mu.Lock()
		if f.closed {
			return 0, io.EOF
		}
	}
	n := copy(p, f.toRead)
	f.toRead = f.toRead[n:]
	return n, nil
}

func (f *fakeCarrier) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Write(p)
}

func (f *fakeCarrier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeCarrier) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func (f *fakeCarrier) push(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toRead = append(f.toRead, b...)
}

func TestDriverDoCompletesSingleFrameExchange(t *testing.T) {
	fc := &fakeCarrier{}
	d := New(fc, nil)
	defer d.Close()

	reply := &coap.Frame{
		Type:      coap.ACK,
		Code:      coap.Code{Class: 2, Detail: 5},
		MessageID: 0,
		Payload:   []byte("hello"),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Wait for the client's request to land, then read its MID out of
		// the wire bytes it wrote and answer with a matching ACK.
		for i := 0; i < 200; i++ {
			fc.mu.Lock()
			wrote := fc.written.Len() > 0
			fc.mu.Unlock()
			if wrote {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}

		fc.mu.Lock()
		wire := append([]byte(nil), fc.written.Bytes()...)
		fc.mu.Unlock()

		var got mup1.Frame
		parser := mup1.NewReceiver()
		parser.Subscribe(mup1.TypeCoAP, func(f mup1.Frame) { got = f })
		parser.FeedBytes(wire)
		if got.Payload == nil {
			t.Errorf("failed to parse request wire frame")
			return
		}
		reqFrame := coap.Decode(got.Payload)
		reply.MessageID = reqFrame.MessageID
		reply.Token = reqFrame.Token

		raw, err := coap.Encode(reply)
		if err != nil {
			t.Errorf("encode reply: %v", err)
			return
		}
		replyWire, err := mup1.Encode(mup1.TypeCoAP, raw)
		if err != nil {
			t.Errorf("encode reply wire: %v", err)
			return
		}
		fc.push(replyWire)
	}()

	outcome, err := d.Do(blockwise.Request{Method: coap.GET, URI: "/status"})
	<-done
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if string(outcome.Payload) != "hello" {
		t.Errorf("outcome.Payload = %q, want %q", outcome.Payload, "hello")
	}
	if outcome.Code != reply.Code {
		t.Errorf("outcome.Code = %+v, want %+v", outcome.Code, reply.Code)
	}
}

func TestDriverDoRecordsRequestMetrics(t *testing.T) {
	fc := &fakeCarrier{}
	d := New(fc, nil)
	defer d.Close()

	m := metrics.New("mup1wd_test_" + t.Name())
	d.SetMetrics(m)

	reply := &coap.Frame{Type: coap.ACK, Code: coap.Code{Class: 2, Detail: 5}, Payload: []byte("ok")}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			fc.mu.Lock()
			wrote := fc.written.Len() > 0
			fc.mu.Unlock()
			if wrote {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		fc.mu.Lock()
		wire := append([]byte(nil), fc.written.Bytes()...)
		fc.mu.Unlock()

		var got mup1.Frame
		parser := mup1.NewReceiver()
		parser.Subscribe(mup1.TypeCoAP, func(f mup1.Frame) { got = f })
		parser.FeedBytes(wire)
		reqFrame := coap.Decode(got.Payload)
		reply.MessageID = reqFrame.MessageID
		reply.Token = reqFrame.Token

		raw, _ := coap.Encode(reply)
		replyWire, _ := mup1.Encode(mup1.TypeCoAP, raw)
		fc.push(replyWire)
	}()

	if _, err := d.Do(blockwise.Request{Method: coap.GET, URI: "/status"}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	<-done

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("get", "ok")); got != 1 {
		t.Errorf("RequestsTotal{get,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FramesTx.WithLabelValues(string(mup1.TypeCoAP))); got != 1 {
		t.Errorf("FramesTx = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FramesRx.WithLabelValues(string(mup1.TypeCoAP))); got != 1 {
		t.Errorf("FramesRx = %v, want 1", got)
	}
}

func TestDriverObserversFireForNonCoAPTags(t *testing.T) {
	fc := &fakeCarrier{}
	d := New(fc, nil)
	defer d.Close()

	got := make(chan mup1.Frame, 1)
	d.OnPing(func(f mup1.Frame) { got <- f })

	wire, err := mup1.Encode(mup1.TypePing, []byte("pong"))
	if err != nil {
		t.Fatalf("encode ping: %v", err)
	}
	fc.push(wire)

	if err := d.poll(time.Now().Add(200 * time.Millisecond)); err != nil {
		t.Fatalf("poll: %v", err)
	}

	select {
	case f := <-got:
		if string(f.Payload) != "pong" {
			t.Errorf("payload = %q, want %q", f.Payload, "pong")
		}
	case <-time.After(time.Second):
		t.Fatal("ping observer never fired")
	}
}

func TestDriverIdleDispatchesObserversWithoutAnInFlightDo(t *testing.T) {
	fc := &fakeCarrier{}
	d := New(fc, nil)
	defer d.Close()

	got := make(chan mup1.Frame, 1)
	d.OnTrace(func(f mup1.Frame) { got <- f })

	wire, err := mup1.Encode(mup1.TypeTrace, []byte("hi"))
	if err != nil {
		t.Fatalf("encode trace: %v", err)
	}
	fc.push(wire)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go d.Idle(ctx)

	select {
	case f := <-got:
		if string(f.Payload) != "hi" {
			t.Errorf("payload = %q, want %q", f.Payload, "hi")
		}
	case <-time.After(time.Second):
		t.Fatal("trace observer never fired from Idle")
	}
}

func TestDriverPollArmsTimeoutWhileMidFrame(t *testing.T) {
	fc := &fakeCarrier{}
	d := New(fc, nil)
	defer d.Close()

	// Feed a SOF and type byte only: a frame is now in progress with no
	// terminator in sight, so TimeoutNext must report armed.
	fc.push([]byte{mup1.SOF, mup1.TypePing})

	if err := d.poll(time.Now().Add(50 * time.Millisecond)); err != nil {
		t.Fatalf("poll: %v", err)
	}

	if _, ok := d.root.TimeoutNext(); !ok {
		t.Error("TimeoutNext() reports no deadline while a frame is mid-reception")
	}
	if !d.recv.InFrame() {
		t.Error("receiver should report InFrame() true after SOF+type with no terminator")
	}
}
