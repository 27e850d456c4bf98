// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sid

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
)

// ContentFormat selects the top-level shape rules of §4.F/§6.
type ContentFormat uint8

const (
	FormatYANG ContentFormat = iota
	FormatGet
	FormatPut
	FormatFetch
	FormatIPatch
	FormatPost
)

// Context carries everything the codec needs beyond the schema node
// being visited: the identity registry for identityref, and a logger
// for recoverable errors that get logged and skip the offending item
// rather than aborting the whole decode.
type Context struct {
	Schema *yang.Schema

	// Identities maps "module:name" to that identity's SID, and back.
	Identities      map[string]uint64
	IdentitiesBySID map[uint64]string

	Logger *slog.Logger

	// ContinueOnError governs whether schema/codec errors (unknown child
	// argument, missing SID, union type-match failure) are merely logged
	// and skipped (true, the default) or returned as hard errors.
	ContinueOnError bool
}

// NewContext builds a Context for schema, populating Identities by
// scanning the module's direct identity statements for the SIDs a
// previously-applied .sid file assigned them.
func NewContext(schema *yang.Schema, logger *slog.Logger) *Context {
	ctx := &Context{
		Schema:          schema,
		Identities:      make(map[string]uint64),
		IdentitiesBySID: make(map[uint64]string),
		Logger:          logger,
		ContinueOnError: true,
	}

	root := schema.Node(schema.Root())
	moduleName := root.Arg
	for _, cid := range root.Children {
		c := schema.Node(cid)
		if c.Keyword != yang.KwIdentity || c.SID == nil {
			continue
		}
		qualified := moduleName + ":" + c.Arg
		ctx.Identities[qualified] = *c.SID
		ctx.IdentitiesBySID[*c.SID] = qualified
	}
	return ctx
}

func (c *Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Context) skip(op string, err error) error {
	c.logger().Warn("sid: skipping item", "op", op, "err", err)
	if c.ContinueOnError {
		return nil
	}
	return err
}

// --- generic JSON numeric coercion --------------------------------------

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case float64:
		return int64(x), true
	case int64:
		return x, true
	case uint64:
		return int64(x), true
	case int:
		return int64(x), true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch x := v.(type) {
	case json.Number:
		n, err := strconv.ParseUint(x.String(), 10, 64)
		return n, err == nil
	case string:
		n, err := strconv.ParseUint(x, 10, 64)
		return n, err == nil
	case float64:
		return uint64(x), true
	case uint64:
		return x, true
	case int64:
		return uint64(x), true
	case int:
		return uint64(x), true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch x {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func toStr(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
