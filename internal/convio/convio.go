// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package convio reads and writes the three wire-adjacent formats the
// `conv` CLI converts between: YAML, JSON, and CBOR. Decoding a textual
// format preserves large integers as json.Number rather than float64, so
// the schema codec's numeric coercion never silently loses precision.
package convio

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Format is one of the three formats conv understands.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a --input/--output flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON, FormatCBOR:
		return Format(s), nil
	default:
		return "", fmt.Errorf("convio: unknown format %q (want yaml, json, or cbor)", s)
	}
}

// Decode parses raw in the given format into a generic Go value tree:
// maps, slices, strings, bools, and json.Number for anything numeric.
func Decode(raw []byte, f Format) (any, error) {
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("convio: decode json: %w", err)
		}
		return v, nil

	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("convio: decode yaml: %w", err)
		}
		return normalizeYAMLMaps(v), nil

	case FormatCBOR:
		var v any
		if err := cbor.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("convio: decode cbor: %w", err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("convio: unknown format %q", f)
	}
}

// Encode serializes v (as produced by pkg/sid's Encode/Decode, or a plain
// value tree) into the given format.
func Encode(v any, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("convio: encode json: %w", err)
		}
		return append(raw, '\n'), nil

	case FormatYAML:
		raw, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("convio: encode yaml: %w", err)
		}
		return raw, nil

	case FormatCBOR:
		raw, err := cbor.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("convio: encode cbor: %w", err)
		}
		return raw, nil

	default:
		return nil, fmt.Errorf("convio: unknown format %q", f)
	}
}

// normalizeYAMLMaps converts yaml.v3's map[string]interface{} tree (its
// default for string-keyed mappings) recursively, so downstream callers
// never have to special-case YAML's map type versus JSON's.
func normalizeYAMLMaps(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalizeYAMLMaps(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalizeYAMLMaps(val)
		}
		return out
	default:
		return v
	}
}
