// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package coap

import (
	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
)

// Recognised option numbers. Any option number not in this list is skipped
// on decode (its bytes are consumed, its value discarded) and never
// emitted on encode.
const (
	OptionURIPath       = 11
	OptionContentFormat = 12
	OptionURIQuery      = 15
	OptionAccept        = 17
	OptionBlock2        = 23
	OptionBlock1        = 27
)

// rawOption is a decoded option before it's folded into a Frame.
type rawOption struct {
	Number uint32
	Value  []byte
}

// extLen reads an option's extended delta or length nibble: values 0..12
// are literal, 13 means "one more byte, value+13", 14 means "two more
// bytes (big-endian), value+269", 15 is reserved and invalid.
func extLen(nibble uint8, buf []byte) (value uint32, consumed int, err error) {
	switch {
	case nibble <= 12:
		return uint32(nibble), 0, nil
	case nibble == 13:
		if len(buf) < 1 {
			return 0, 0, cerrors.ErrTruncated
		}
		return uint32(buf[0]) + 13, 1, nil
	case nibble == 14:
		if len(buf) < 2 {
			return 0, 0, cerrors.ErrTruncated
		}
		return (uint32(buf[0])<<8 | uint32(buf[1])) + 269, 2, nil
	default: // 15
		return 0, 0, cerrors.ErrInvalidOption
	}
}

// extLenEncoding returns the nibble and any extension bytes for the given
// delta or length value.
func extLenEncoding(v uint32) (nibble uint8, ext []byte) {
	switch {
	case v <= 12:
		return uint8(v), nil
	case v <= 12+255:
		return 13, []byte{byte(v - 13)}
	default:
		x := v - 269
		return 14, []byte{byte(x >> 8), byte(x)}
	}
}

// decodeOptions parses the option sequence starting at buf, returning the
// options found and the payload that follows the 0xFF marker (nil when
// there is no marker).
func decodeOptions(buf []byte) ([]rawOption, []byte, error) {
	var opts []rawOption
	var current uint32

	for len(buf) > 0 {
		if buf[0] == 0xFF {
			return opts, buf[1:], nil
		}

		deltaNibble := uint8(buf[0] >> 4)
		lenNibble := uint8(buf[0] & 0x0F)
		buf = buf[1:]

		if deltaNibble == 15 || lenNibble == 15 {
			return nil, nil, cerrors.ErrInvalidOption
		}

		delta, n, err := extLen(deltaNibble, buf)
		if err != nil {
			return nil, nil, err
		}
		buf = buf[n:]

		length, n, err := extLen(lenNibble, buf)
		if err != nil {
			return nil, nil, err
		}
		buf = buf[n:]

		if uint32(len(buf)) < length {
			return nil, nil, cerrors.ErrTruncated
		}

		current += delta
		value := make([]byte, length)
		copy(value, buf[:length])
		buf = buf[length:]

		opts = append(opts, rawOption{Number: current, Value: value})
	}
	return opts, nil, nil
}

// encodeOptions serializes options as deltas from the previous option
// number, so they must arrive in non-decreasing numeric order, which the
// caller guarantees by sorting them first (sortOptionsStable).
func encodeOptions(opts []rawOption) []byte {
	var out []byte
	var prev uint32
	for _, o := range opts {
		delta := o.Number - prev
		prev = o.Number

		deltaNibble, deltaExt := extLenEncoding(delta)
		lenNibble, lenExt := extLenEncoding(uint32(len(o.Value)))

		out = append(out, (deltaNibble<<4)|lenNibble)
		out = append(out, deltaExt...)
		out = append(out, lenExt...)
		out = append(out, o.Value...)
	}
	return out
}
