// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sid

import (
	"fmt"
	"strings"

	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
)

// iidSegment is one "/arg[key='value']..." path element.
type iidSegment struct {
	arg  string
	keys []iidKey
}

type iidKey struct {
	name  string
	value string
}

// EncodeInstanceIdentifier turns an RFC 7951-style instance-identifier
// string into its CBOR form: the terminal node's SID alone when the path
// carries no list keys, or [sid, k1, k2, ...] with keys in schema key-
// statement order, flattened across every keyed list the path crosses.
func EncodeInstanceIdentifier(ctx *Context, value string) (any, error) {
	segments, err := splitIIDPath(value)
	if err != nil {
		return nil, err
	}
	cur := ctx.Schema.Root()
	var keyValues []any
	for _, seg := range segments {
		_, name := splitIIDQualified(seg.arg)
		child, ok := ctx.Schema.SubstmByArg(cur, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", cerrors.ErrSIDNotFound, seg.arg)
		}
		cur = child
		if len(seg.keys) == 0 {
			continue
		}
		node := ctx.Schema.Node(cur)
		byName := make(map[string]string, len(seg.keys))
		for _, k := range seg.keys {
			byName[k.name] = k.value
		}
		for _, kname := range node.Keys {
			raw, ok := byName[kname]
			if !ok {
				return nil, fmt.Errorf("%w: missing key %s", cerrors.ErrSchemaTypeMismatch, kname)
			}
			keyLeaf, ok := ctx.Schema.SubstmByArg(cur, kname)
			if !ok {
				return nil, fmt.Errorf("%w: %s", cerrors.ErrSIDNotFound, kname)
			}
			encoded, err := TypeEncode(ctx, ctx.Schema.Node(keyLeaf).Type, keyLeaf, coerceIIDKeyValue(raw), false)
			if err != nil {
				return nil, err
			}
			keyValues = append(keyValues, encoded)
		}
	}
	sid, ok := nodeSIDValue(ctx.Schema, cur)
	if !ok {
		return nil, cerrors.ErrSIDNotFound
	}
	if len(keyValues) == 0 {
		return sid, nil
	}
	out := make([]any, 0, len(keyValues)+1)
	out = append(out, sid)
	out = append(out, keyValues...)
	return out, nil
}

// coerceIIDKeyValue turns the bare string an instance-identifier carries
// for a key value into something TypeEncode accepts for non-string leaf
// types: "[null]" for an empty-typed key becomes nil, everything else is
// left as a string since toInt64/toUint64/toBool already parse strings.
func coerceIIDKeyValue(raw string) any {
	if raw == "[null]" {
		return nil
	}
	return raw
}

// DecodeInstanceIdentifier is EncodeInstanceIdentifier's inverse: given a
// CBOR SID, or [SID, k1, k2, ...], it rebuilds the "/a/b[k='v']/c" string.
func DecodeInstanceIdentifier(ctx *Context, value any) (string, error) {
	var sid uint64
	var keyValues []any
	switch v := value.(type) {
	case []interface{}:
		if len(v) == 0 {
			return "", cerrors.ErrSchemaTypeMismatch
		}
		s, ok := toUint64(v[0])
		if !ok {
			return "", cerrors.ErrSchemaTypeMismatch
		}
		sid, keyValues = s, v[1:]
	default:
		s, ok := toUint64(value)
		if !ok {
			return "", cerrors.ErrSchemaTypeMismatch
		}
		sid = s
	}

	_, path, ok := ctx.Schema.FindBySID(sid)
	if !ok {
		return "", fmt.Errorf("%w: %d", cerrors.ErrSIDNotFound, sid)
	}

	var sb strings.Builder
	keyIdx := 0
	for _, id := range path {
		if id == ctx.Schema.Root() {
			continue
		}
		n := ctx.Schema.Node(id)
		sb.WriteByte('/')
		sb.WriteString(n.Arg)
		if n.Keyword != yang.KwList || len(n.Keys) == 0 {
			continue
		}
		for _, kname := range n.Keys {
			if keyIdx >= len(keyValues) {
				return "", fmt.Errorf("%w: too few keys for %s", cerrors.ErrSchemaTypeMismatch, n.Arg)
			}
			rendered := any(keyValues[keyIdx])
			if keyLeaf, ok := ctx.Schema.SubstmByArg(id, kname); ok {
				if v, err := TypeDecode(ctx, ctx.Schema.Node(keyLeaf).Type, keyLeaf, keyValues[keyIdx], false); err == nil {
					rendered = v
				}
			}
			fmt.Fprintf(&sb, "[%s='%v']", kname, rendered)
			keyIdx++
		}
	}
	return sb.String(), nil
}

// splitIIDPath splits an instance-identifier string on '/', never inside
// a "[...]" predicate, then splits each segment into its bare argument
// and zero or more key='value' (or key="value") predicates.
func splitIIDPath(s string) ([]iidSegment, error) {
	var rawSegs []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case '/':
			if depth == 0 {
				rawSegs = append(rawSegs, s[start:i])
				start = i + 1
			}
		}
	}
	rawSegs = append(rawSegs, s[start:])

	segments := make([]iidSegment, 0, len(rawSegs))
	for _, raw := range rawSegs {
		if raw == "" {
			continue
		}
		seg, err := parseIIDSegment(raw)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func parseIIDSegment(raw string) (iidSegment, error) {
	br := strings.IndexByte(raw, '[')
	if br < 0 {
		return iidSegment{arg: raw}, nil
	}
	seg := iidSegment{arg: raw[:br]}
	rest := raw[br:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return iidSegment{}, fmt.Errorf("%w: malformed instance-identifier predicate %q", cerrors.ErrSchemaTypeMismatch, raw)
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return iidSegment{}, fmt.Errorf("%w: unterminated predicate in %q", cerrors.ErrSchemaTypeMismatch, raw)
		}
		pred := rest[1:end]
		eq := strings.IndexByte(pred, '=')
		if eq < 0 {
			return iidSegment{}, fmt.Errorf("%w: predicate missing '=' in %q", cerrors.ErrSchemaTypeMismatch, raw)
		}
		name := strings.TrimSpace(pred[:eq])
		value := strings.TrimSpace(pred[eq+1:])
		if len(value) >= 2 && (value[0] == '\'' || value[0] == '"') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		seg.keys = append(seg.keys, iidKey{name: name, value: value})
		rest = rest[end+1:]
	}
	return seg, nil
}

// splitIIDQualified strips an optional "module:" prefix off an
// instance-identifier path segment's bare argument.
func splitIIDQualified(s string) (module, name string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}
