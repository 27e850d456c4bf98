// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package jsonschema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/sid"
	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
)

// Draft is the JSON Schema dialect URI every emitted document declares.
const Draft = "http://json-schema.org/draft-07/schema#"

// Schema is a single draft-07 (sub)schema node. It is a plain map, so
// encoding/json emits its keys in sorted order.
type Schema map[string]any

// Options controls the shape rules that differ by content format: fetch
// and ipatch list schemas become oneOf(array, object), and a configuration-
// only emission omits status (non-config) nodes entirely.
type Options struct {
	Content        sid.ContentFormat
	ConfigOnly     bool
	LocalIdentities map[string]uint64 // "module:name" -> sid, for identityref enums
}

// Emit builds the draft-07 schema for node under ctx's option set.
func Emit(s *yang.Schema, node yang.NodeID, opts Options) Schema {
	out := emitNode(s, node, opts)
	out["$schema"] = Draft
	return out
}

func emitNode(s *yang.Schema, id yang.NodeID, opts Options) Schema {
	node := s.Node(id)

	if opts.ConfigOnly && isStatusNode(node) {
		return nil
	}

	switch node.Keyword {
	case yang.KwContainer, yang.KwModule, yang.KwInput, yang.KwOutput:
		return emitObject(s, id, opts)
	case yang.KwList:
		return emitList(s, id, opts)
	case yang.KwLeafList:
		return Schema{
			"type":  "array",
			"items": emitType(node.Type, opts),
		}
	case yang.KwLeaf:
		return emitType(node.Type, opts)
	default:
		return Schema{}
	}
}

func isStatusNode(n *yang.Node) bool {
	return !n.Config
}

func emitObject(s *yang.Schema, id yang.NodeID, opts Options) Schema {
	node := s.Node(id)
	props := Schema{}
	var required []string

	for _, cid := range node.Children {
		child := s.Node(cid)
		if child.Keyword == yang.KwInput || child.Keyword == yang.KwOutput {
			continue // RPC/action I/O surfaces only at the RPC's own schema
		}
		sub := emitNode(s, cid, opts)
		if sub == nil {
			continue
		}
		props[child.Arg] = sub
		if isListKey(node, child.Arg) {
			required = append(required, child.Arg)
		}
	}

	out := Schema{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		sort.Strings(required)
		out["required"] = required
	}
	return out
}

func isListKey(listNode *yang.Node, childArg string) bool {
	for _, k := range listNode.Keys {
		if k == childArg {
			return true
		}
	}
	return false
}

// emitList renders a YANG list. A configuration list gets uniqueItems
// (there is no server-assigned duplicate-suppression to rely on); for
// fetch/ipatch content a list may additionally be addressed as a single
// keyed object, so those formats wrap the array in oneOf(array, object).
func emitList(s *yang.Schema, id yang.NodeID, opts Options) Schema {
	node := s.Node(id)
	itemSchema := emitObject(s, id, opts)

	arraySchema := Schema{
		"type":  "array",
		"items": itemSchema,
	}
	if node.Config {
		arraySchema["uniqueItems"] = true
	}

	switch opts.Content {
	case sid.FormatFetch, sid.FormatIPatch:
		return Schema{
			"oneOf": []Schema{arraySchema, itemSchema},
		}
	default:
		return arraySchema
	}
}

// emitType renders a leaf's type: types wide enough to lose precision in
// a JSON number, or with a structural encoding JSON has no native
// representation for, become constrained strings instead of verbatim
// JSON types.
func emitType(t *yang.Type, opts Options) Schema {
	if t == nil {
		return Schema{}
	}

	switch t.Name {
	case "union":
		members := make([]Schema, 0, len(t.Union))
		for _, m := range t.Union {
			members = append(members, emitType(m, opts))
		}
		return Schema{"oneOf": members}

	case "int8", "int16", "int32", "uint8", "uint16", "uint32":
		s := Schema{"type": "integer"}
		if r := rangeSchema(t.Ranges); r != nil {
			s["minimum"] = r[0]
			s["maximum"] = r[1]
		}
		return s

	case "int64", "uint64", "decimal64":
		return Schema{
			"type":    "string",
			"pattern": `^-?\d+(\.\d+)?$`,
		}

	case "binary":
		s := Schema{
			"type":    "string",
			"pattern": `^[A-Za-z0-9+/]*={0,2}$`,
		}
		if r := rangeSchema(t.LengthRanges); r != nil {
			// Base64 expands length by 4/3; bound the encoded string length
			// accordingly so the constraint still rejects out-of-range binary.
			s["minLength"] = base64Len(r[0])
			s["maxLength"] = base64Len(r[1])
		}
		return s

	case "boolean":
		return Schema{"type": "boolean"}

	case "empty":
		return Schema{"type": "null"}

	case "string":
		s := Schema{"type": "string"}
		if r := rangeSchema(t.LengthRanges); r != nil {
			s["minLength"] = r[0]
			s["maxLength"] = r[1]
		}
		if len(t.Patterns) > 0 {
			s["pattern"] = t.Patterns[0]
		}
		return s

	case "enumeration":
		names := make([]string, 0, len(t.Enums))
		for name := range t.Enums {
			names = append(names, name)
		}
		sort.Strings(names)
		return Schema{"type": "string", "enum": names}

	case "bits":
		names := make([]string, 0, len(t.Bits))
		for name := range t.Bits {
			names = append(names, name)
		}
		sort.Strings(names)
		return Schema{
			"type":    "string",
			"pattern": bitsPattern(names),
		}

	case "identityref":
		return Schema{
			"type": "string",
			"enum": identityEnumValues(t, opts.LocalIdentities),
		}

	case "instance-identifier":
		return Schema{"type": "string", "pattern": `^/`}

	case "leafref":
		return Schema{"type": "string"}

	default:
		return Schema{"type": "string"}
	}
}

// bitsPattern builds `^(b1|b2|...)?(\s(b1|b2|...))*$`.
func bitsPattern(names []string) string {
	if len(names) == 0 {
		return `^$`
	}
	alt := strings.Join(names, "|")
	return fmt.Sprintf(`^(%s)?(\s(%s))*$`, alt, alt)
}

// identityEnumValues lists every identity known locally in its fully
// qualified "module:name" form, plus the bare name of each identity
// defined in the type's own module (t.IdentityModule).
func identityEnumValues(t *yang.Type, identities map[string]uint64) []string {
	var out []string
	for qualified := range identities {
		if t.IdentityModule != "" && strings.HasPrefix(qualified, t.IdentityModule+":") {
			out = append(out, qualified, strings.TrimPrefix(qualified, t.IdentityModule+":"))
		} else {
			out = append(out, qualified)
		}
	}
	sort.Strings(out)
	return out
}

func rangeSchema(ranges []yang.Range) []int64 {
	if len(ranges) == 0 {
		return nil
	}
	min, max := ranges[0].Min, ranges[0].Max
	for _, r := range ranges[1:] {
		if r.Min < min {
			min = r.Min
		}
		if r.Max > max {
			max = r.Max
		}
	}
	return []int64{min, max}
}

func base64Len(n int64) int64 {
	return (n + 2) / 3 * 4
}
