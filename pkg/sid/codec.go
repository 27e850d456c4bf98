// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sid

import (
	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
)

// Encode walks value (a generic JSON-shaped tree) against the schema
// starting at nodeID and produces a CBOR-ready value: maps keyed by
// int64 SID deltas, arrays, and type-encoded leaves.
func Encode(ctx *Context, nodeID yang.NodeID, value any, format ContentFormat) (any, error) {
	n := ctx.Schema.Node(nodeID)
	switch n.Keyword {
	case yang.KwModule, yang.KwContainer, yang.KwInput, yang.KwOutput:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		ownSID, _ := nodeSIDValue(ctx.Schema, nodeID)
		return encodeMapFields(ctx, nodeID, ownSID, m, format)

	case yang.KwList:
		return encodeList(ctx, nodeID, value, format)

	case yang.KwLeaf:
		return TypeEncode(ctx, n.Type, nodeID, value, false)

	case yang.KwLeafList:
		arr, ok := value.([]any)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			v, err := TypeEncode(ctx, n.Type, nodeID, item, false)
			if err != nil {
				if err2 := ctx.skip("leaf-list item", err); err2 != nil {
					return nil, err2
				}
				continue
			}
			out = append(out, v)
		}
		return out, nil

	case yang.KwRPC, yang.KwAction:
		return encodeRPC(ctx, nodeID, value, format)

	case yang.KwAnydata, yang.KwAnyxml:
		if n.Arg == "board:factory_default_config" {
			return Encode(ctx, ctx.Schema.Root(), value, format)
		}
		return value, nil

	default:
		return value, nil
	}
}

// Decode is Encode's inverse.
func Decode(ctx *Context, nodeID yang.NodeID, value any, format ContentFormat) (any, error) {
	n := ctx.Schema.Node(nodeID)
	switch n.Keyword {
	case yang.KwModule, yang.KwContainer, yang.KwInput, yang.KwOutput:
		ownSID, _ := nodeSIDValue(ctx.Schema, nodeID)
		return decodeMapFields(ctx, nodeID, ownSID, value, format)

	case yang.KwList:
		return decodeList(ctx, nodeID, value, format)

	case yang.KwLeaf:
		return TypeDecode(ctx, n.Type, nodeID, value, false)

	case yang.KwLeafList:
		arr, ok := value.([]any)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			v, err := TypeDecode(ctx, n.Type, nodeID, item, false)
			if err != nil {
				if err2 := ctx.skip("leaf-list item", err); err2 != nil {
					return nil, err2
				}
				continue
			}
			out = append(out, v)
		}
		return out, nil

	case yang.KwRPC, yang.KwAction:
		return decodeRPC(ctx, nodeID, value, format)

	case yang.KwAnydata, yang.KwAnyxml:
		if n.Arg == "board:factory_default_config" {
			return Decode(ctx, ctx.Schema.Root(), value, format)
		}
		return value, nil

	default:
		return value, nil
	}
}

func nodeSIDValue(s *yang.Schema, id yang.NodeID) (uint64, bool) {
	if id == s.Root() {
		return 0, true
	}
	n := s.Node(id)
	if n.SID == nil {
		return 0, false
	}
	return *n.SID, true
}

func encodeMapFields(ctx *Context, lookupNode yang.NodeID, deltaBase uint64, value map[string]any, format ContentFormat) (map[int64]any, error) {
	out := make(map[int64]any, len(value))
	for key, val := range value {
		child, ok := ctx.Schema.SubstmByArg(lookupNode, key)
		if !ok {
			if err := ctx.skip("unknown child argument "+key, cerrors.ErrSIDNotFound); err != nil {
				return nil, err
			}
			continue
		}
		childSID, ok := nodeSIDValue(ctx.Schema, child)
		if !ok {
			if err := ctx.skip("missing sid for "+key, cerrors.ErrSIDNotFound); err != nil {
				return nil, err
			}
			continue
		}
		encoded, err := Encode(ctx, child, val, format)
		if err != nil {
			if err2 := ctx.skip("encode "+key, err); err2 != nil {
				return nil, err2
			}
			continue
		}
		out[int64(childSID)-int64(deltaBase)] = encoded
	}
	return out, nil
}

func decodeMapFields(ctx *Context, lookupNode yang.NodeID, deltaBase uint64, value any, format ContentFormat) (map[string]any, error) {
	cm, ok := value.(map[interface{}]interface{})
	if !ok {
		return nil, cerrors.ErrSchemaTypeMismatch
	}
	out := make(map[string]any, len(cm))
	for k, v := range cm {
		delta, ok := toInt64(k)
		if !ok {
			continue
		}
		childSID := uint64(int64(deltaBase) + delta)
		child, ok := ctx.Schema.SubstmBySID(lookupNode, childSID)
		if !ok {
			if err := ctx.skip("unknown sid delta", cerrors.ErrSIDNotFound); err != nil {
				return nil, err
			}
			continue
		}
		decoded, err := Decode(ctx, child, v, format)
		if err != nil {
			if err2 := ctx.skip("decode sid "+ctx.Schema.Node(child).Arg, err); err2 != nil {
				return nil, err2
			}
			continue
		}
		out[ctx.Schema.Node(child).Arg] = decoded
	}
	return out, nil
}

func encodeList(ctx *Context, nodeID yang.NodeID, value any, format ContentFormat) (any, error) {
	listSID, ok := nodeSIDValue(ctx.Schema, nodeID)
	if !ok {
		return nil, cerrors.ErrSIDNotFound
	}
	encodeEntry := func(entry any) (any, error) {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return encodeMapFields(ctx, nodeID, listSID, m, format)
	}

	if arr, ok := value.([]any); ok {
		out := make([]any, 0, len(arr))
		for _, entry := range arr {
			enc, err := encodeEntry(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, enc)
		}
		return out, nil
	}
	if format == FormatFetch || format == FormatIPatch {
		if m, ok := value.(map[string]any); ok {
			return encodeEntry(m)
		}
	}
	return nil, cerrors.ErrSchemaTypeMismatch
}

func decodeList(ctx *Context, nodeID yang.NodeID, value any, format ContentFormat) (any, error) {
	listSID, ok := nodeSIDValue(ctx.Schema, nodeID)
	if !ok {
		return nil, cerrors.ErrSIDNotFound
	}
	decodeEntry := func(entry any) (any, error) {
		return decodeMapFields(ctx, nodeID, listSID, entry, format)
	}

	if arr, ok := value.([]interface{}); ok {
		out := make([]any, 0, len(arr))
		for _, entry := range arr {
			dec, err := decodeEntry(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, dec)
		}
		return out, nil
	}
	if format == FormatFetch || format == FormatIPatch {
		return decodeEntry(value)
	}
	return nil, cerrors.ErrSchemaTypeMismatch
}

func encodeRPC(ctx *Context, nodeID yang.NodeID, value any, format ContentFormat) (any, error) {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, cerrors.ErrSchemaTypeMismatch
	}
	ownSID, ok := nodeSIDValue(ctx.Schema, nodeID)
	if !ok {
		return nil, cerrors.ErrSIDNotFound
	}
	for kw, sub := range m {
		if kw != yang.KwInput && kw != yang.KwOutput {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		ioNode, ok := ctx.Schema.ResolveSchemaPath(nodeID, []string{kw})
		if !ok {
			return nil, cerrors.ErrSIDNotFound
		}
		subMap, ok := sub.(map[string]any)
		if !ok {
			return nil, cerrors.ErrSchemaTypeMismatch
		}
		return encodeMapFields(ctx, ioNode, ownSID, subMap, format)
	}
	return nil, cerrors.ErrSchemaTypeMismatch
}

func decodeRPC(ctx *Context, nodeID yang.NodeID, value any, format ContentFormat) (any, error) {
	ownSID, ok := nodeSIDValue(ctx.Schema, nodeID)
	if !ok {
		return nil, cerrors.ErrSIDNotFound
	}
	ioNode, ok := ctx.Schema.ResolveSchemaPath(nodeID, []string{yang.KwOutput})
	kw := yang.KwOutput
	if !ok {
		ioNode, ok = ctx.Schema.ResolveSchemaPath(nodeID, []string{yang.KwInput})
		kw = yang.KwInput
		if !ok {
			return nil, cerrors.ErrSIDNotFound
		}
	}
	fields, err := decodeMapFields(ctx, ioNode, ownSID, value, format)
	if err != nil {
		return nil, err
	}
	return map[string]any{kw: fields}, nil
}
