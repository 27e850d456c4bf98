// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package sid implements the schema-driven JSON<->CBOR codec keyed by
// RFC 9254/9595 Schema Item iDentifiers: YANG data encoded for the wire
// uses a CBOR map whose keys are SID deltas relative to the parent's own
// SID, and leaf values are encoded per YANG type using the rules in
// RFC 9254 (enumeration, bits, identityref, decimal64, unions, ...).
//
// Encode walks a yang.Schema node alongside a generic JSON value (as
// produced by encoding/json with UseNumber enabled, so integers round-trip
// exactly); Decode is the inverse, walking a CBOR-decoded generic value
// alongside the same schema.
package sid
