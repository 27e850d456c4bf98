// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package pipeline implements a layered handler tree: a tree of Nodes
// rooted at the byte-stream driver, each
// dispatching reassembled units to subscribers registered against a tag
// byte, and each carrying a pair of deadlines — timeout_self (its own next
// wakeup) and timeout_next (the minimum across itself and every descendant)
// — kept consistent bottom-up as handlers rearm their own timers.
//
// The tree is strictly single-threaded and cooperative: Dispatch and
// FireExpired never block and never spawn a goroutine. The only blocking
// call anywhere in this system is the driver's carrier read, bounded by
// the root's TimeoutNext.
package pipeline
