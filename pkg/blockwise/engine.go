// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package blockwise

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/coap"
)

// ErrTimeout is returned by a Transport's Recv when no frame arrived before
// the requested deadline.
var ErrTimeout = errors.New("blockwise: receive deadline exceeded")

// Transport is the carrier-facing dependency a block-wise Engine drives.
// Implementations typically wrap a mup1.Receiver subscription over a
// pkg/carrier connection.
type Transport interface {
	Send(frame *coap.Frame) error
	Recv(deadline time.Time) (*coap.Frame, error)
}

// Engine runs the block-wise request/response protocol to completion for
// one request at a time, as a single synchronous call.
type Engine struct {
	cfg       Config
	transport Transport
}

// New builds an Engine with the given retransmission configuration.
func New(cfg Config, transport Transport) *Engine {
	return &Engine{cfg: cfg.withDefaults(), transport: transport}
}

// Do blocks until the request reaches a terminal state: a full response, a
// 4.xx/5.xx from the server, or retry-budget exhaustion.
func (e *Engine) Do(req Request) (Outcome, error) {
	st := NewState()
	now := time.Now()

	for {
		var action Action
		st, action = Step(e.cfg, req, st, now, randomMID)

		if action.Frame != nil {
			if err := e.transport.Send(action.Frame); err != nil {
				return Outcome{}, err
			}
		}
		if st.Phase == PhaseTerminal {
			if st.Err != nil {
				return Outcome{}, st.Err
			}
			return *st.Outcome, nil
		}

		frame, err := e.transport.Recv(action.Wait)
		now = time.Now()
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				continue
			}
			return Outcome{}, err
		}

		st = OnReply(st, frame)
		if st.Phase == PhaseTerminal {
			return *st.Outcome, nil
		}
	}
}

func randomMID() uint16 {
	return uint16(rand.N(uint32(1) << 16))
}
