// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mup1 implements the MUP1 byte-framing protocol: a
// start-of-frame/end-of-frame delimited, escaped, checksummed wrapper
// around an arbitrary payload, addressed by a single type byte.
//
// # Wire format
//
//	SOF(1) type(1) payload(escaped, 0..1024 bytes) EOF(1) [EOF(1)] checksum(4 hex ASCII)
//
// SOF is '>' (0x3E), EOF is '<' (0x3C), ESC is '\' (0x5C). The second EOF
// is present iff the pre-checksum wrapper length (SOF + type + payload +
// first EOF) is even; this odd/even trailing-EOF rule gives the receiver
// self-synchronisation without a length field.
//
// On the wire, payload bytes in {SOF, EOF, ESC, 0x00, 0xFF} are escaped:
// prefixed with ESC, and 0x00/0xFF are further remapped to '0'/'F' after
// escaping.
//
// # Receive model
//
// Receive is a byte-at-a-time state machine (see receiver.go) driven by
// Feed, in the cooperative, non-blocking style every layer of the
// handler pipeline uses: no method here blocks or spawns a goroutine.
package mup1
