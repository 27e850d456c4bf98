// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mup1

import (
	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
)

// Encode builds the wire bytes for a MUP1 frame of the given type and
// (unescaped) payload: SOF, type, escaped payload, one or two EOF, and the
// 4-byte hex checksum.
func Encode(typ byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, cerrors.ErrFrameTooBig
	}

	trailingEOFs := wrapperTrailingEOFCount(len(payload))

	// Checksum is computed over the unescaped wrapper.
	wrapper := make([]byte, 0, 2+len(payload)+trailingEOFs)
	wrapper = append(wrapper, SOF, typ)
	wrapper = append(wrapper, payload...)
	for i := 0; i < trailingEOFs; i++ {
		wrapper = append(wrapper, EOF)
	}
	cs := checksum(wrapper)

	// The bytes actually sent escape the payload but not the delimiters,
	// type byte, or checksum digits.
	out := make([]byte, 0, len(wrapper)+8)
	out = append(out, SOF, typ)
	out = append(out, escapePayload(payload)...)
	for i := 0; i < trailingEOFs; i++ {
		out = append(out, EOF)
	}
	out = append(out, checksumHex(cs)...)
	return out, nil
}
