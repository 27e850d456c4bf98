// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package blockwise

import (
	"net/url"
	"strings"
	"time"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/coap"
	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
)

// Config tunes the engine's retransmission policy and block size. Defaults
// match the fixed 3s x 5 behaviour; exponential backoff remains unimplemented.
type Config struct {
	BlockSize          uint16
	RetransmitInterval time.Duration
	MaxRetries         int
}

func (c Config) withDefaults() Config {
	if c.BlockSize == 0 {
		c.BlockSize = 256
	}
	if c.RetransmitInterval == 0 {
		c.RetransmitInterval = 3 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	return c
}

// Request is the user-facing description of a single block-wise exchange.
type Request struct {
	Method        uint8
	URI           string
	Payload       []byte
	ContentFormat *uint32
	Accept        *uint32
}

// Phase is the engine's coarse lifecycle stage.
type Phase uint8

const (
	PhaseSending Phase = iota
	PhaseReadingResponse
	PhaseTerminal
)

// Outcome is the terminal result delivered to the caller of Do.
type Outcome struct {
	Code    coap.Code
	Payload []byte
}

// State is the full mutable state of one in-flight request. It is a
// plain value so Step/OnReply can be tested without any I/O.
type State struct {
	Phase Phase

	sentInitial bool
	ReqTx       int
	ReqTxAck    int

	ResMore bool
	ResNum  uint32
	ResBS   uint16

	PayloadRx []byte

	MID   uint16
	Retry int

	HasDeadline bool
	Deadline    time.Time

	LastFrame        *coap.Frame
	LastResponseCode coap.Code

	Outcome *Outcome
	Err     error
}

// NewState returns the initial state for a fresh request.
func NewState() State {
	return State{Phase: PhaseSending}
}

func (s State) reqTxDone(payloadLen int) bool {
	if !s.sentInitial {
		return false
	}
	if s.ReqTx != s.ReqTxAck {
		return false
	}
	return payloadLen == 0 || s.ReqTx == payloadLen
}

// Action describes what the caller of Step must do.
type Action struct {
	Frame *coap.Frame // non-nil: send this frame
	Wait  time.Time   // when Frame or not-yet-terminal, the next deadline to wait until
	Done  bool        // true: state.Phase == PhaseTerminal, nothing further to do
}

// Step is the pure next-step policy: given the current state and time,
// it decides whether to retransmit, advance the exchange with a fresh
// frame, or terminate. newMID supplies a random message id for freshly
// built frames.
func Step(cfg Config, req Request, st State, now time.Time, newMID func() uint16) (State, Action) {
	cfg = cfg.withDefaults()

	if st.HasDeadline && !now.Before(st.Deadline) {
		if st.Retry < cfg.MaxRetries {
			st.Retry++
			st.Deadline = now.Add(cfg.RetransmitInterval)
			return st, Action{Frame: st.LastFrame, Wait: st.Deadline}
		}
		st.Phase = PhaseTerminal
		st.Err = cerrors.ErrRetryExhausted
		return st, Action{Done: true}
	}

	if st.HasDeadline {
		// The last frame is still awaiting its reply: keep waiting.
		return st, Action{Wait: st.Deadline}
	}

	payloadLen := len(req.Payload)
	sendNext := !st.sentInitial || (payloadLen > 0 && !st.reqTxDone(payloadLen))

	if sendNext {
		frame := buildFrame(req, newMID())

		if payloadLen > int(cfg.BlockSize) {
			start := st.ReqTxAck
			end := start + int(cfg.BlockSize)
			more := true
			if end >= payloadLen {
				end = payloadLen
				more = false
			}
			frame.Block1 = &coap.BlockOption{
				Num:  uint32(start / int(cfg.BlockSize)),
				More: more,
				Size: cfg.BlockSize,
			}
			frame.Payload = req.Payload[start:end]
			st.ReqTx = end
		} else if payloadLen > 0 {
			frame.Payload = req.Payload
			st.ReqTx = payloadLen
		}

		st.sentInitial = true
		st.MID = frame.MessageID
		st.LastFrame = frame
		st.Deadline = now.Add(cfg.RetransmitInterval)
		st.HasDeadline = true
		st.Phase = PhaseSending
		return st, Action{Frame: frame, Wait: st.Deadline}
	}

	if st.ResMore {
		frame := buildFrame(req, newMID())
		frame.Block2 = &coap.BlockOption{Num: st.ResNum + 1, More: false, Size: st.ResBS}
		st.MID = frame.MessageID
		st.LastFrame = frame
		st.Deadline = now.Add(cfg.RetransmitInterval)
		st.HasDeadline = true
		st.Phase = PhaseReadingResponse
		return st, Action{Frame: frame, Wait: st.Deadline}
	}

	st.Phase = PhaseTerminal
	st.Outcome = &Outcome{Code: st.LastResponseCode, Payload: append([]byte(nil), st.PayloadRx...)}
	return st, Action{Done: true}
}

// buildFrame constructs the common frame skeleton shared by every step of
// an exchange: fresh CON request, parsed URI, Block2(0,0,256) always
// attached so server-fragmented error responses can reassemble too.
func buildFrame(req Request, mid uint16) *coap.Frame {
	path, query := splitURI(req.URI)
	f := &coap.Frame{
		Type:      coap.CON,
		Code:      coap.NewRequestCode(req.Method),
		MessageID: mid,
		Path:      path,
		Query:     query,
		Block2:    &coap.BlockOption{Num: 0, More: false, Size: 256},
	}
	if req.ContentFormat != nil {
		f.ContentFormat = req.ContentFormat
	}
	if req.Accept != nil {
		f.Accept = req.Accept
	}
	return f
}

func splitURI(uri string) (path, query []string) {
	u, err := url.Parse(uri)
	if err != nil {
		return coap.SplitPath(uri), nil
	}
	path = coap.SplitPath(u.Path)
	if u.RawQuery == "" {
		return path, nil
	}
	for _, item := range strings.Split(u.RawQuery, "&") {
		if item != "" {
			query = append(query, item)
		}
	}
	return path, query
}

// OnReply folds an inbound frame matching the current exchange into
// state. A poisoned frame, or one whose message id doesn't match, is
// ignored outright — the caller should simply re-invoke Step, which keeps
// waiting until the current deadline.
func OnReply(st State, frame *coap.Frame) State {
	if frame.Poisoned() || frame.MessageID != st.MID {
		return st
	}

	if frame.Type == coap.ACK && frame.Code.Class == 2 {
		st.ReqTxAck = st.ReqTx
	}

	st.PayloadRx = append(st.PayloadRx, frame.Payload...)
	if frame.Block2 != nil && frame.Block2.More {
		st.ResMore = true
		st.ResNum = frame.Block2.Num
		st.ResBS = frame.Block2.Size
	} else {
		st.ResMore = false
	}
	st.LastResponseCode = frame.Code

	if frame.Code.IsError() {
		st.Phase = PhaseTerminal
		st.Outcome = &Outcome{Code: frame.Code, Payload: append([]byte(nil), st.PayloadRx...)}
		return st
	}

	st.Retry = 0
	st.HasDeadline = false
	return st
}
