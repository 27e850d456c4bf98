// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package yang

import (
	"encoding/json"
	"strings"

	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
)

// sidFileDoc mirrors the RFC 9595 ".sid" file JSON shape:
//
//	{"ietf-sid-file:sid-file": {
//	   "module-name": "...", "module-revision": "...",
//	   "sid": {"entry-point": N, "size": N},
//	   "items": [{"namespace": "identifier", "identifier": "/mod:a/b", "sid": N}, ...]
//	}}
type sidFileDoc struct {
	SIDFile struct {
		ModuleName string `json:"module-name"`
		Items      []struct {
			Namespace  string `json:"namespace"`
			Identifier string `json:"identifier"`
			SID        uint64 `json:"sid"`
		} `json:"items"`
	} `json:"ietf-sid-file:sid-file"`
}

// ApplySIDFile assigns SIDs to nodes by matching each item's identifier
// path (e.g. "/mod:interfaces/interface/name") against the schema tree.
// Every item, whatever its namespace, resolves via ResolveSchemaPath from
// the root after module prefixes are stripped from each segment, so an
// identity item ("mod:name") binds to the node of that name directly
// under the module.
func (s *Schema) ApplySIDFile(raw []byte) error {
	var doc sidFileDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return cerrors.New("ApplySIDFile", "yang", err)
	}
	for _, item := range doc.SIDFile.Items {
		segs := splitIdentifierPath(item.Identifier)
		id, ok := s.ResolveSchemaPath(s.root, segs)
		if !ok {
			continue
		}
		sid := item.SID
		s.nodes[id].SID = &sid
		s.bySID[sid] = id
	}
	return nil
}

func splitIdentifierPath(identifier string) []string {
	trimmed := strings.Trim(identifier, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		_, name := splitQualified(p)
		segs = append(segs, name)
	}
	return segs
}
