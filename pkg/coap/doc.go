// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package coap implements a minimal, dependency-free CoAP (RFC 7252)
// message codec: header, token, options (with extended delta/length
// encoding), and the Block1/Block2 options (RFC 7959) the block-wise
// request engine in pkg/blockwise depends on.
//
// # Scope
//
// This is a codec, not a client or server. It knows how to turn a Frame
// into wire bytes and back, and nothing else — no retransmission, no
// message-id bookkeeping, no transport. Those live in pkg/blockwise and
// pkg/driver.
//
// # Wire format
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|Ver| T |  TKL  |      Code     |          Message ID          |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|   Token (if any, TKL bytes) ...
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|   Options (if any) ...
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|1 1 1 1 1 1 1 1|    Payload (if any) ...
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// Only the option numbers this system actually uses are decoded: uri-path
// (11), content-format (12), uri-query (15), accept (17), Block2 (23),
// Block1 (27). Any other option number is skipped (its bytes are consumed
// so the following options still parse, but its value is discarded).
package coap
