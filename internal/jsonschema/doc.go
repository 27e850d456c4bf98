// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package jsonschema emits draft-07 JSON Schema documents from a YANG
// schema tree, for the `conv schema` CLI surface: lists become arrays
// with uniqueItems for configuration lists, numeric leaves wide enough to
// lose precision in JSON become pattern-constrained strings, bits become
// a single space-separated pattern string, and identityref becomes an
// enum of every locally known "module:name", plus the bare name of each
// identity defined in the type's own module.
package jsonschema
