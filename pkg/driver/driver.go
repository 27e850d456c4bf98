// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/blockwise"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/carrier"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/coap"
	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/metrics"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/mup1"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/pipeline"
)

// mup1InactivityTimeout bounds how long the receiver may sit mid-frame
// before the driver forces a Timeout() call to flush it. Not itself a
// fixed wire-protocol constant; chosen well inside the 3s block-wise
// retransmit interval so a stuck partial frame never stalls a request.
const mup1InactivityTimeout = 500 * time.Millisecond

const pollReadBufferSize = 512

// idleLoopInterval bounds how long Idle holds doMu per iteration, so a
// concurrent Do call never waits longer than this for its turn at the
// carrier.
const idleLoopInterval = 200 * time.Millisecond

// Driver owns a carrier and the handler tree fed from it.
type Driver struct {
	carrier carrier.Carrier
	logger  *slog.Logger

	recv *mup1.Receiver
	root *pipeline.Node

	coap *coapRxLayer

	doMu    sync.Mutex
	metrics *metrics.Metrics

	onAnnounce func(mup1.Frame)
	onPing     func(mup1.Frame)
	onTrace    func(mup1.Frame)
	onRaw      func(mup1.Frame)
}

// New wires a fresh Driver over carrier: a mup1.Receiver feeding a
// pipeline.Node tree keyed by the MUP1 tag registry (announce, CoAP,
// ping, trace, non-MUP1).
func New(c carrier.Carrier, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Driver{carrier: c, logger: logger, recv: mup1.NewReceiver()}

	d.root, logger = pipeline.NewRoot(mup1FramerLayer{d: d}, logger)
	d.logger = logger
	d.root.SetTxDown(func(data []byte) error {
		_, err := c.Write(data)
		return err
	})

	d.coap = &coapRxLayer{incoming: make(chan *coap.Frame, 1), onDecodeErr: func() {
		if d.metrics != nil {
			d.metrics.CodecErrors.WithLabelValues("decode", "coap").Inc()
		}
	}}
	d.root.Register(mup1.TypeCoAP, pipeline.NewNode(d.coap, logger))

	d.root.Register(mup1.TypeAnnounce, pipeline.NewNode(observerLayer{name: "announce", fn: func(f mup1.Frame) {
		if d.onAnnounce != nil {
			d.onAnnounce(f)
		}
	}}, logger))
	d.root.Register(mup1.TypePing, pipeline.NewNode(observerLayer{name: "ping", fn: func(f mup1.Frame) {
		if d.onPing != nil {
			d.onPing(f)
		}
	}}, logger))
	d.root.Register(mup1.TypeTrace, pipeline.NewNode(observerLayer{name: "trace", fn: func(f mup1.Frame) {
		if d.onTrace != nil {
			d.onTrace(f)
		}
	}}, logger))
	d.root.Register(mup1.NonMUP1, pipeline.NewNode(observerLayer{name: "raw", fn: func(f mup1.Frame) {
		if d.onRaw != nil {
			d.onRaw(f)
		}
	}}, logger))

	for _, tag := range []byte{mup1.TypeAnnounce, mup1.TypeCoAP, mup1.TypePing, mup1.TypeTrace} {
		tag := tag
		d.recv.Subscribe(tag, func(f mup1.Frame) {
			if d.metrics != nil {
				d.metrics.FramesRx.WithLabelValues(string(tag)).Inc()
			}
			d.root.Dispatch(tag, f)
		})
	}
	d.recv.SubscribeNonMUP1(func(f mup1.Frame) { d.root.Dispatch(mup1.NonMUP1, f) })
	d.recv.OnFrameError(func(err error) {
		d.logger.Debug("mup1 frame error, receiver recovered", "err", err)
		if d.metrics != nil {
			d.metrics.FrameErrors.WithLabelValues(frameErrorKind(err)).Inc()
		}
	})

	return d
}

func frameErrorKind(err error) string {
	switch {
	case errors.Is(err, cerrors.ErrChecksum):
		return "checksum_mismatch"
	case errors.Is(err, cerrors.ErrBadEscape):
		return "bad_escape"
	case errors.Is(err, cerrors.ErrReservedByte):
		return "reserved_byte"
	case errors.Is(err, cerrors.ErrFrameTooBig):
		return "frame_too_big"
	default:
		return "other"
	}
}

// OnAnnounce, OnPing, OnTrace, OnRawBytes install observers for MUP1 frame
// types the block-wise engine never consumes directly.
func (d *Driver) OnAnnounce(fn func(mup1.Frame)) { d.onAnnounce = fn }
func (d *Driver) OnPing(fn func(mup1.Frame))     { d.onPing = fn }
func (d *Driver) OnTrace(fn func(mup1.Frame))    { d.onTrace = fn }
func (d *Driver) OnRawBytes(fn func(mup1.Frame)) { d.onRaw = fn }

// SetMetrics installs the collector set Do and poll report to. A nil
// Driver.metrics (the zero value) disables instrumentation entirely.
func (d *Driver) SetMetrics(m *metrics.Metrics) { d.metrics = m }

// Close releases the carrier.
func (d *Driver) Close() error { return d.carrier.Close() }

// Do runs one block-wise CoAP exchange to completion. Only one exchange
// runs at a time; a concurrent call blocks until the
// first finishes, matching the "never more than one frame in flight"
// invariant even under misuse from multiple goroutines.
func (d *Driver) Do(req blockwise.Request) (blockwise.Outcome, error) {
	d.doMu.Lock()
	defer d.doMu.Unlock()

	transport := &driverTransport{d: d}
	engine := blockwise.New(blockwise.Config{}, transport)

	method := coap.MethodName(req.Method)
	if d.metrics == nil {
		return engine.Do(req)
	}

	var outcome blockwise.Outcome
	err := d.metrics.ObserveRequest(method, func() (string, error) {
		var err error
		outcome, err = engine.Do(req)
		switch {
		case err == nil:
			return "ok", nil
		case errors.Is(err, blockwise.ErrTimeout) || errors.Is(err, cerrors.ErrRetryExhausted):
			return "timeout", err
		default:
			return "error", err
		}
	})
	if transport.sends > 1 {
		d.metrics.Retransmits.WithLabelValues(method).Add(float64(transport.sends - 1))
	}
	return outcome, err
}

// Idle repeatedly polls the carrier until ctx is cancelled, so MUP1
// frames that arrive with no request in flight — announce, ping, trace,
// raw bytes — still reach their observers promptly. It shares doMu with
// Do, taking and releasing it once per short poll window so a concurrent
// Do is never blocked for longer than idleLoopInterval.
func (d *Driver) Idle(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		d.doMu.Lock()
		err := d.poll(time.Now().Add(idleLoopInterval))
		d.doMu.Unlock()
		if err != nil {
			return err
		}
	}
}

// poll performs exactly one bounded wait: it computes the aggregate
// deadline (the caller's own deadline, clamped by anything the handler
// tree has armed), reads what the carrier offers before that deadline,
// feeds it to the receiver, and fires any expired timeouts.
func (d *Driver) poll(deadline time.Time) error {
	effective := deadline
	if next, ok := d.root.TimeoutNext(); ok && next.Before(effective) {
		effective = next
	}

	if err := d.carrier.SetReadDeadline(effective); err != nil {
		return err
	}

	buf := make([]byte, pollReadBufferSize)
	n, err := d.carrier.Read(buf)
	now := time.Now()

	if n > 0 {
		if d.metrics != nil {
			d.metrics.BytesRead.Add(float64(n))
		}
		d.recv.FeedBytes(buf[:n])
	}

	if d.recv.InFrame() {
		if n > 0 {
			d.root.SetTimeoutSelf(now.Add(mup1InactivityTimeout), true)
		}
	} else {
		d.root.SetTimeoutSelf(time.Time{}, false)
	}

	if err != nil {
		if isTimeout(err) {
			if d.metrics != nil {
				d.metrics.PipelineTimeouts.WithLabelValues(d.root.Layer().Name()).Inc()
			}
			d.root.FireExpired(now)
			return nil
		}
		return err
	}
	if n == 0 {
		// go.bug.st/serial reports an elapsed ReadTimeout as (0, nil).
		if d.metrics != nil {
			d.metrics.PipelineTimeouts.WithLabelValues(d.root.Layer().Name()).Inc()
		}
		d.root.FireExpired(now)
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// driverTransport adapts a Driver to blockwise.Transport.
type driverTransport struct {
	d     *Driver
	sends int
}

func (t *driverTransport) Send(frame *coap.Frame) error {
	raw, err := coap.Encode(frame)
	if err != nil {
		if t.d.metrics != nil {
			t.d.metrics.CodecErrors.WithLabelValues("encode", "coap").Inc()
		}
		return cerrors.New("send", "coap", err)
	}
	wire, err := mup1.Encode(mup1.TypeCoAP, raw)
	if err != nil {
		if t.d.metrics != nil {
			t.d.metrics.CodecErrors.WithLabelValues("encode", "mup1").Inc()
		}
		return cerrors.New("send", "mup1", err)
	}
	n, err := t.d.carrier.Write(wire)
	if t.d.metrics != nil {
		t.d.metrics.BytesWritten.Add(float64(n))
		t.d.metrics.FramesTx.WithLabelValues(string(mup1.TypeCoAP)).Inc()
	}
	t.sends++
	return err
}

func (t *driverTransport) Recv(deadline time.Time) (*coap.Frame, error) {
	for {
		select {
		case f := <-t.d.coap.incoming:
			return f, nil
		default:
		}
		if !time.Now().Before(deadline) {
			return nil, blockwise.ErrTimeout
		}
		if err := t.d.poll(deadline); err != nil {
			return nil, err
		}
	}
}

// mup1FramerLayer is the root of the handler tree: it never receives a
// Dispatch itself (nothing sits above it). Its self-timeout is the
// inactivity deadline Driver.poll arms on the root node while a frame is
// partway in; when that fires, the receiver's partial frame is flushed.
type mup1FramerLayer struct{ d *Driver }

func (mup1FramerLayer) Name() string          { return "mup1" }
func (mup1FramerLayer) Rx(tag byte, unit any) {}
func (l mup1FramerLayer) TimeoutWork(now time.Time) {
	l.d.recv.Timeout()
	l.d.root.SetTimeoutSelf(time.Time{}, false)
}

// coapRxLayer decodes MUP1-delivered CoAP frames and relays them to
// whichever Driver.Do invocation is currently waiting.
type coapRxLayer struct {
	incoming    chan *coap.Frame
	onDecodeErr func()
}

func (l *coapRxLayer) Name() string { return "coap" }

func (l *coapRxLayer) Rx(tag byte, unit any) {
	f, ok := unit.(mup1.Frame)
	if !ok {
		return
	}
	frame := coap.Decode(f.Payload)
	if frame.Poisoned() && l.onDecodeErr != nil {
		l.onDecodeErr()
	}
	select {
	case l.incoming <- frame:
	default:
	}
}

func (l *coapRxLayer) TimeoutWork(now time.Time) {}

// observerLayer relays a dispatched frame to a plain callback, for the
// MUP1 tags the block-wise engine never interprets (announce, ping,
// trace, non-MUP1 bytes).
type observerLayer struct {
	name string
	fn   func(mup1.Frame)
}

func (o observerLayer) Name() string { return o.name }

func (o observerLayer) Rx(tag byte, unit any) {
	f, ok := unit.(mup1.Frame)
	if !ok {
		return
	}
	o.fn(f)
}

func (o observerLayer) TimeoutWork(now time.Time) {}
