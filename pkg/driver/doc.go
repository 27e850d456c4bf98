// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package driver owns the single carrier a process talks to a device
// over, and runs a single-threaded cooperative poll loop: one wait
// primitive ("bytes available or deadline reached"), no background
// goroutines reading the wire behind the caller's back.
//
// A Driver wires a mup1.Receiver's tag dispatch into a pipeline.Node
// tree whose aggregate next deadline (pipeline.Node.TimeoutNext) carries
// the MUP1 in-progress-frame timeout; each poll waits until the earlier
// of that and the caller's own deadline, which for Do is the block-wise
// request's retransmit deadline. Do runs one
// block-wise exchange to completion by feeding the carrier's bytes
// through that tree until the CoAP reply tag ('C') surfaces a frame.
// Idle runs the same poll step in a loop for a caller with no request of
// its own to drive, so unsolicited announce/ping/trace frames still get
// dispatched; it shares Do's lock so the two never read the carrier at
// the same time.
package driver
