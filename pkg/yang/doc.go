// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package yang holds the in-memory YANG schema tree the codec in pkg/sid
// walks: statements (module, container, list, leaf, ...) with their typed
// contracts, each optionally tagged with a numeric SID (RFC 9595/9254).
//
// Nodes live in a flat arena (Schema.nodes) and are referred to by integer
// ID rather than pointer, because groupings and augments make the
// statement graph a DAG with back-references — a leafref's target is
// stored as an ID, never a strong reference, so the arena can be built
// incrementally without worrying about forward references.
package yang
