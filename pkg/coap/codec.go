// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package coap

import (
	"strings"

	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
)

const version = 1

// Decode parses raw into a Frame. On a protocol error the returned Frame
// carries whatever was already parsed plus a non-nil Err: a poisoned
// frame's parse-error state is a single diagnostic string.
func Decode(raw []byte) *Frame {
	f := &Frame{}

	if len(raw) < 4 {
		f.Err = cerrors.ErrTruncated
		return f
	}

	ver := raw[0] >> 6
	if ver != version {
		f.Err = cerrors.ErrInvalidVersion
		return f
	}

	f.Type = Type((raw[0] >> 4) & 0x3)
	tkl := raw[0] & 0x0F
	f.Code = CodeFromByte(raw[1])
	f.MessageID = uint16(raw[2])<<8 | uint16(raw[3])

	rest := raw[4:]
	if int(tkl) > len(rest) || tkl > 8 {
		f.Err = cerrors.ErrTruncated
		return f
	}
	if tkl > 0 {
		f.Token = append([]byte(nil), rest[:tkl]...)
	}
	rest = rest[tkl:]

	opts, payload, err := decodeOptions(rest)
	if err != nil {
		f.Err = err
		return f
	}
	f.Payload = payload

	var prev uint32
	for _, o := range opts {
		if o.Number < prev {
			f.Err = cerrors.ErrInvalidOption
			return f
		}
		prev = o.Number

		switch o.Number {
		case OptionURIPath:
			if len(o.Value) > 0 {
				f.Path = append(f.Path, string(o.Value))
			}
		case OptionURIQuery:
			if len(o.Value) > 0 {
				f.Query = append(f.Query, string(o.Value))
			}
		case OptionContentFormat:
			v := decodeUint(o.Value)
			f.ContentFormat = &v
		case OptionAccept:
			v := decodeUint(o.Value)
			f.Accept = &v
		case OptionBlock1:
			b, err := decodeBlockOption(o.Value)
			if err != nil {
				f.Err = err
				return f
			}
			f.Block1 = &b
		case OptionBlock2:
			b, err := decodeBlockOption(o.Value)
			if err != nil {
				f.Err = err
				return f
			}
			f.Block2 = &b
		default:
			// Unrecognised option, silently skipped.
		}
	}

	return f
}

// Encode serializes f into wire bytes. Options are emitted in numeric
// order regardless of the order the Frame's fields were populated in;
// zero-length URI path/query items are omitted; Block options are emitted
// only when all three fields (Num, More, Size) are meaningfully set —
// callers signal "unset" by leaving the pointer nil.
func Encode(f *Frame) ([]byte, error) {
	if len(f.Token) > 8 {
		return nil, cerrors.ErrInvalidOption
	}

	out := make([]byte, 4, 4+len(f.Token)+32)
	out[0] = byte(version<<6) | byte(f.Type)<<4 | byte(len(f.Token))
	out[1] = f.Code.Byte()
	out[2] = byte(f.MessageID >> 8)
	out[3] = byte(f.MessageID)
	out = append(out, f.Token...)

	var opts []rawOption
	for _, seg := range f.Path {
		if seg == "" {
			continue
		}
		opts = append(opts, rawOption{Number: OptionURIPath, Value: []byte(seg)})
	}
	for _, q := range f.Query {
		if q == "" {
			continue
		}
		opts = append(opts, rawOption{Number: OptionURIQuery, Value: []byte(q)})
	}
	if f.ContentFormat != nil {
		opts = append(opts, rawOption{Number: OptionContentFormat, Value: encodeUint(*f.ContentFormat)})
	}
	if f.Accept != nil {
		opts = append(opts, rawOption{Number: OptionAccept, Value: encodeUint(*f.Accept)})
	}
	if f.Block1 != nil {
		v, err := f.Block1.encode()
		if err != nil {
			return nil, err
		}
		opts = append(opts, rawOption{Number: OptionBlock1, Value: v})
	}
	if f.Block2 != nil {
		v, err := f.Block2.encode()
		if err != nil {
			return nil, err
		}
		opts = append(opts, rawOption{Number: OptionBlock2, Value: v})
	}

	opts = sortOptionsStable(opts)
	out = append(out, encodeOptions(opts)...)

	if len(f.Payload) > 0 {
		out = append(out, 0xFF)
		out = append(out, f.Payload...)
	}

	return out, nil
}

// sortOptionsStable performs a stable insertion sort on option number.
// The set of options this codec emits is small (at most six), so a linear
// sort is simpler than pulling in sort.Slice for a handful of elements.
func sortOptionsStable(opts []rawOption) []rawOption {
	for i := 1; i < len(opts); i++ {
		for j := i; j > 0 && opts[j-1].Number > opts[j].Number; j-- {
			opts[j-1], opts[j] = opts[j], opts[j-1]
		}
	}
	return opts
}

// SplitPath splits a URI path on '/', returning only non-empty segments.
func SplitPath(uriPath string) []string {
	parts := strings.Split(uriPath, "/")
	var segs []string
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}
