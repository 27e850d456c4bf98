// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sid

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
)

const (
	tagBits        = 43
	tagEnumeration = 44
	tagIdentityref = 45
	tagDecimal64   = 4
)

// TypeEncode converts a JSON-shaped value into its CBOR-ready form per the
// type table in §4.F. insideUnion selects the tagged variant for
// enumeration/bits/identityref; decimal64, binary, integers, leafref and
// empty encode identically either way.
func TypeEncode(ctx *Context, t *yang.Type, owner yang.NodeID, value any, insideUnion bool) (any, error) {
	switch t.Name {
	case "union":
		return encodeUnion(ctx, t, owner, value)

	case "enumeration":
		name, ok := toStr(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		v, ok := t.Enums[name]
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		if insideUnion {
			return cbor.Tag{Number: tagEnumeration, Content: name}, nil
		}
		return int64(v), nil

	case "bits":
		names, _ := toStr(value)
		positions, err := bitNamesToPositions(t, names)
		if err != nil {
			return nil, err
		}
		if insideUnion {
			return cbor.Tag{Number: tagBits, Content: strings.Join(sortedBitNames(t, positions), " ")}, nil
		}
		return bitsEncode(positions), nil

	case "identityref":
		name, ok := toStr(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		idSID, ok := ctx.Identities[qualifyIdentity(name, t.IdentityModule)]
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		if insideUnion {
			return cbor.Tag{Number: tagIdentityref, Content: idSID}, nil
		}
		return idSID, nil

	case "decimal64":
		return encodeDecimal64(t, value)

	case "binary":
		s, ok := toStr(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return base64.StdEncoding.DecodeString(s)

	case "int8", "int16", "int32", "int64":
		n, ok := toInt64(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return n, nil

	case "uint8", "uint16", "uint32", "uint64":
		n, ok := toUint64(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return n, nil

	case "leafref":
		target, memberT, err := resolveLeafref(ctx, owner, t)
		if err != nil {
			return nil, err
		}
		return TypeEncode(ctx, memberT, target, value, insideUnion)

	case "empty":
		return nil, nil

	case "boolean":
		b, ok := toBool(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return b, nil

	default: // string, instance-identifier handled by caller, and any passthrough builtin
		return value, nil
	}
}

// TypeDecode is TypeEncode's inverse.
func TypeDecode(ctx *Context, t *yang.Type, owner yang.NodeID, value any, insideUnion bool) (any, error) {
	switch t.Name {
	case "union":
		return decodeUnion(ctx, t, owner, value)

	case "enumeration":
		if tag, ok := value.(cbor.Tag); ok && tag.Number == tagEnumeration {
			return tag.Content, nil
		}
		n, ok := toInt64(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		for name, v := range t.Enums {
			if int64(v) == n {
				return name, nil
			}
		}
		return nil, cerrors.ErrSchemaTypeMismatch

	case "bits":
		if tag, ok := value.(cbor.Tag); ok && tag.Number == tagBits {
			s, _ := tag.Content.(string)
			return s, nil
		}
		positions, err := bitsDecode(value)
		if err != nil {
			return nil, err
		}
		return strings.Join(sortedBitNames(t, positions), " "), nil

	case "identityref":
		if tag, ok := value.(cbor.Tag); ok && tag.Number == tagIdentityref {
			sid, _ := toUint64(tag.Content)
			return ctx.IdentitiesBySID[sid], nil
		}
		sid, ok := toUint64(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return ctx.IdentitiesBySID[sid], nil

	case "decimal64":
		return decodeDecimal64(t, value)

	case "binary":
		b, ok := value.([]byte)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return base64.StdEncoding.EncodeToString(b), nil

	case "int8", "int16", "int32", "int64":
		n, ok := toInt64(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return strconv.FormatInt(n, 10), nil

	case "uint8", "uint16", "uint32", "uint64":
		n, ok := toUint64(value)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return strconv.FormatUint(n, 10), nil

	case "leafref":
		target, memberT, err := resolveLeafref(ctx, owner, t)
		if err != nil {
			return nil, err
		}
		return TypeDecode(ctx, memberT, target, value, insideUnion)

	case "empty":
		return nil, nil

	default:
		return value, nil
	}
}

func qualifyIdentity(name, defaultModule string) string {
	if strings.Contains(name, ":") {
		return name
	}
	return defaultModule + ":" + name
}

func encodeUnion(ctx *Context, t *yang.Type, owner yang.NodeID, value any) (any, error) {
	for _, member := range t.Union {
		if MatchTypeJSON(ctx, member, owner, value) {
			return TypeEncode(ctx, member, owner, value, true)
		}
	}
	return nil, cerrors.ErrUnionNoMatch
}

func decodeUnion(ctx *Context, t *yang.Type, owner yang.NodeID, value any) (any, error) {
	if tag, ok := value.(cbor.Tag); ok {
		for _, member := range t.Union {
			if tagNumberFor(member.Name) == tag.Number {
				return TypeDecode(ctx, member, owner, value, true)
			}
		}
	}
	// Untagged: decimal64, binary, integers, leafref, empty, passthrough
	// types can all be distinguished structurally without a tag.
	for _, member := range t.Union {
		if tagNumberFor(member.Name) != 0 {
			continue
		}
		if v, err := TypeDecode(ctx, member, owner, value, true); err == nil {
			return v, nil
		}
	}
	return nil, cerrors.ErrUnionNoMatch
}

func tagNumberFor(typeName string) uint64 {
	switch typeName {
	case "enumeration":
		return tagEnumeration
	case "bits":
		return tagBits
	case "identityref":
		return tagIdentityref
	}
	return 0
}

// MatchTypeJSON implements the union member-selection predicate.
func MatchTypeJSON(ctx *Context, t *yang.Type, owner yang.NodeID, value any) bool {
	switch t.Name {
	case "int8", "int16", "int32", "int64":
		n, ok := toInt64(value)
		return ok && inRanges(t.Ranges, n)
	case "uint8", "uint16", "uint32", "uint64":
		n, ok := toUint64(value)
		return ok && inRanges(t.Ranges, int64(n))
	case "decimal64":
		s, ok := toStr(value)
		return ok && decimalPattern.MatchString(s)
	case "string":
		s, ok := toStr(value)
		if !ok {
			return false
		}
		if !inRanges(t.LengthRanges, int64(len(s))) {
			return false
		}
		for _, p := range t.Patterns {
			re, err := regexp.Compile(p)
			if err != nil || !re.MatchString(s) {
				return false
			}
		}
		return true
	case "binary":
		s, ok := toStr(value)
		if !ok {
			return false
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		return err == nil && inRanges(t.LengthRanges, int64(len(decoded)))
	case "bits":
		names, ok := toStr(value)
		if !ok {
			return false
		}
		for _, n := range strings.Fields(names) {
			if _, ok := t.Bits[n]; !ok {
				return false
			}
		}
		return true
	case "enumeration":
		name, ok := toStr(value)
		if !ok {
			return false
		}
		_, ok = t.Enums[name]
		return ok
	case "identityref":
		name, ok := toStr(value)
		if !ok {
			return false
		}
		_, ok = ctx.Identities[qualifyIdentity(name, t.IdentityModule)]
		return ok
	case "instance-identifier":
		s, ok := toStr(value)
		return ok && strings.HasPrefix(s, "/")
	case "boolean":
		_, ok := toBool(value)
		return ok
	case "empty":
		return value == nil
	case "leafref":
		_, memberT, err := resolveLeafref(ctx, owner, t)
		if err != nil {
			return false
		}
		return MatchTypeJSON(ctx, memberT, owner, value)
	default:
		return true
	}
}

func inRanges(ranges []yang.Range, v int64) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if v >= r.Min && v <= r.Max {
			return true
		}
	}
	return false
}

var decimalPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

func encodeDecimal64(t *yang.Type, value any) (any, error) {
	s, ok := toStr(value)
	if !ok {
		return nil, cerrors.ErrSchemaTypeMismatch
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	for len(fracPart) < t.FractionDigits {
		fracPart += "0"
	}
	if len(fracPart) > t.FractionDigits {
		fracPart = fracPart[:t.FractionDigits]
	}
	mantissaStr := intPart + fracPart
	mantissa, err := strconv.ParseInt(mantissaStr, 10, 64)
	if err != nil {
		return nil, cerrors.New("encodeDecimal64", "sid", err)
	}
	if neg {
		mantissa = -mantissa
	}
	return cbor.Tag{Number: tagDecimal64, Content: []any{int64(-t.FractionDigits), mantissa}}, nil
}

func decodeDecimal64(t *yang.Type, value any) (any, error) {
	tag, ok := value.(cbor.Tag)
	if !ok {
		return nil, cerrors.ErrSchemaTypeMismatch
	}
	parts, ok := tag.Content.([]any)
	if !ok || len(parts) != 2 {
		return nil, cerrors.ErrSchemaTypeMismatch
	}
	exp, _ := toInt64(parts[0])
	mant, _ := toInt64(parts[1])
	fd := int(-exp)

	neg := mant < 0
	if neg {
		mant = -mant
	}
	digits := strconv.FormatInt(mant, 10)
	for len(digits) <= fd {
		digits = "0" + digits
	}
	intPart := digits[:len(digits)-fd]
	fracPart := digits[len(digits)-fd:]
	out := intPart
	if fd > 0 {
		out += "." + fracPart
	}
	if neg {
		out = "-" + out
	}
	return out, nil
}

func resolveLeafref(ctx *Context, owner yang.NodeID, t *yang.Type) (yang.NodeID, *yang.Type, error) {
	segs := leafrefSegments(t.LeafrefPath)
	target, ok := ctx.Schema.ResolveSchemaPath(owner, segs)
	if !ok {
		return yang.NoNode, nil, cerrors.New("resolveLeafref", "sid", fmt.Errorf("leafref path %q did not resolve", t.LeafrefPath))
	}
	targetType := ctx.Schema.Node(target).Type
	if targetType == nil {
		return yang.NoNode, nil, cerrors.New("resolveLeafref", "sid", fmt.Errorf("leafref target %q has no type", t.LeafrefPath))
	}
	return target, targetType, nil
}

func leafrefSegments(path string) []string {
	var segs []string
	for _, p := range strings.Split(path, "/") {
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "current()") {
			continue
		}
		_, name := splitLeafrefSeg(p)
		segs = append(segs, name)
	}
	return segs
}

func splitLeafrefSeg(seg string) (module, name string) {
	if seg == ".." {
		return "", ".."
	}
	if i := strings.IndexByte(seg, ':'); i >= 0 {
		return seg[:i], seg[i+1:]
	}
	return "", seg
}

// --- bits compact encoding -----------------------------------------------

func bitNamesToPositions(t *yang.Type, names string) ([]int, error) {
	var positions []int
	for _, n := range strings.Fields(names) {
		pos, ok := t.Bits[n]
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	return positions, nil
}

func sortedBitNames(t *yang.Type, positions []int) []string {
	set := make(map[int]bool, len(positions))
	for _, p := range positions {
		set[p] = true
	}
	type kv struct {
		name string
		pos  int
	}
	var matched []kv
	for name, pos := range t.Bits {
		if set[pos] {
			matched = append(matched, kv{name, pos})
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].pos < matched[j].pos })
	names := make([]string, len(matched))
	for i, m := range matched {
		names[i] = m.name
	}
	return names
}

// bitsEncode implements the sweep algorithm from §4.F: a single contiguous
// run collapses to a bare byte-string; any gap produces the alternating
// [byte-string, skip, byte-string, ...] array form.
func bitsEncode(positions []int) any {
	if len(positions) == 0 {
		return []any{}
	}

	var result []any
	var buf []byte
	bufStartByte := -1
	curByteIdx := -1
	var curByte byte

	flushCurByte := func() {
		if curByteIdx != -1 {
			buf = append(buf, curByte)
			curByte = 0
			curByteIdx = -1
		}
	}
	flushBuf := func() {
		flushCurByte()
		if len(buf) > 0 {
			result = append(result, string(buf))
			buf = nil
		}
		bufStartByte = -1
	}

	for _, pos := range positions {
		byteIdx := pos / 8
		bit := uint(pos % 8)

		if curByteIdx == byteIdx {
			curByte |= 1 << bit
			continue
		}
		if bufStartByte == -1 {
			bufStartByte = byteIdx
			curByteIdx = byteIdx
			curByte = 1 << bit
			continue
		}

		flushCurByte()
		expectedNext := bufStartByte + len(buf)
		gap := byteIdx - expectedNext
		if gap == 0 {
			curByteIdx = byteIdx
			curByte = 1 << bit
			continue
		}
		flushBuf()
		result = append(result, gap)
		bufStartByte = byteIdx
		curByteIdx = byteIdx
		curByte = 1 << bit
	}
	flushBuf()

	if len(result) == 1 {
		return result[0]
	}
	return result
}

// bitsDecode inverts bitsEncode, also accepting a bare byte-string.
func bitsDecode(value any) ([]int, error) {
	var segments []any
	switch v := value.(type) {
	case []byte, string:
		segments = []any{v}
	case []any:
		segments = v
	default:
		return nil, cerrors.ErrSchemaTypeMismatch
	}

	var positions []int
	byteIdx := 0
	for _, seg := range segments {
		switch s := seg.(type) {
		case []byte:
			positions = append(positions, bytesToPositions(s, byteIdx)...)
			byteIdx += len(s)
		case string:
			positions = append(positions, bytesToPositions([]byte(s), byteIdx)...)
			byteIdx += len(s)
		default:
			gap, ok := toInt64(seg)
			if !ok {
				return nil, cerrors.ErrSchemaTypeMismatch
			}
			byteIdx += int(gap)
		}
	}
	return positions, nil
}

func bytesToPositions(bs []byte, startByte int) []int {
	var positions []int
	for i, b := range bs {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				positions = append(positions, (startByte+i)*8+bit)
			}
		}
	}
	return positions
}
