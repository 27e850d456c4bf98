// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Layer is the protocol-specific behaviour a Node wraps: parsing inbound
// units and reacting to its own timer.
type Layer interface {
	// Name identifies the layer in logs.
	Name() string
	// Rx delivers a unit dispatched from the parent under the given tag.
	Rx(tag byte, unit any)
	// TimeoutWork runs when this layer's own timeout_self has elapsed. It
	// is responsible for rearming (or clearing) its own deadline via the
	// owning Node's SetTimeoutSelf.
	TimeoutWork(now time.Time)
}

// TxFunc hands serialized bytes down to the next lower layer (ultimately
// the carrier). A Node with no TxFunc cannot transmit — only the root,
// which the driver wires directly to the carrier, needs one that writes.
type TxFunc func(data []byte) error

// Node is one participant in the handler tree.
type Node struct {
	layer  Layer
	logger *slog.Logger

	parent   *Node
	children map[byte][]*Node

	suppressed map[byte]bool

	hasTimeoutSelf bool
	timeoutSelf    time.Time
	hasTimeoutNext bool
	timeoutNext    time.Time

	txDown TxFunc
}

// NewNode wraps layer in a fresh, unattached Node.
func NewNode(layer Layer, logger *slog.Logger) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		layer:      layer,
		logger:     logger,
		children:   make(map[byte][]*Node),
		suppressed: make(map[byte]bool),
	}
}

// NewRoot wraps layer as the root of a tree and stamps every log line the
// tree produces with a fresh run_id, so log lines from independent driver
// runs over the same carrier never get interleaved by a reader. It returns
// both the Node and the run-scoped logger callers should pass to the
// children they Register under it.
func NewRoot(layer Layer, logger *slog.Logger) (*Node, *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("run_id", uuid.NewString()))
	return NewNode(layer, logger), logger
}

// SetTxDown installs how this node forwards outbound bytes to its lower
// layer. The driver sets this on the root to the carrier's Write.
func (n *Node) SetTxDown(f TxFunc) { n.txDown = f }

// Layer returns the Layer this Node wraps, so a caller instrumenting a
// tree from outside (metrics, logging) can name it without duplicating
// the name the Node already carries.
func (n *Node) Layer() Layer { return n.layer }

// Register attaches child under tag; multiple children per tag are
// permitted and Dispatch invokes all of them.
func (n *Node) Register(tag byte, child *Node) {
	child.parent = n
	n.children[tag] = append(n.children[tag], child)
}

// Dispatch invokes Rx(tag, unit) on every subscriber registered for tag. A
// tag with no subscriber logs once, then is suppressed for this node.
func (n *Node) Dispatch(tag byte, unit any) {
	kids := n.children[tag]
	if len(kids) == 0 {
		if !n.suppressed[tag] {
			n.logger.Warn("pipeline: no subscriber for tag", "layer", n.layer.Name(), "tag", tag)
			n.suppressed[tag] = true
		}
		return
	}
	for _, c := range kids {
		c.layer.Rx(tag, unit)
	}
}

// Tx walks down the lower-layer chain: it hands data to this node's own
// TxFunc if set, otherwise forwards to the parent. The bottom of the chain
// (the root, wired by the driver) is expected to actually write to the
// carrier.
func (n *Node) Tx(data []byte) error {
	if n.txDown != nil {
		return n.txDown(data)
	}
	if n.parent != nil {
		return n.parent.Tx(data)
	}
	return nil
}

// SetTimeoutSelf sets this node's own deadline (ok=false clears it) and
// recomputes timeout_next bottom-up from here to the root.
func (n *Node) SetTimeoutSelf(t time.Time, ok bool) {
	n.hasTimeoutSelf = ok
	n.timeoutSelf = t
	for p := n; p != nil; p = p.parent {
		p.recomputeTimeoutNext()
	}
}

func (n *Node) recomputeTimeoutNext() {
	next := n.timeoutSelf
	has := n.hasTimeoutSelf
	for _, kids := range n.children {
		for _, c := range kids {
			if !c.hasTimeoutNext {
				continue
			}
			if !has || c.timeoutNext.Before(next) {
				next = c.timeoutNext
				has = true
			}
		}
	}
	n.timeoutNext = next
	n.hasTimeoutNext = has
}

// TimeoutNext returns the minimum deadline across this node and every
// descendant, or ok=false if none has one set.
func (n *Node) TimeoutNext() (t time.Time, ok bool) {
	return n.timeoutNext, n.hasTimeoutNext
}

// FireExpired walks the whole subtree and invokes TimeoutWork on every
// node whose timeout_self has elapsed as of now, deepest first so a
// child's rearm is visible when its ancestors recompute afterward.
func (n *Node) FireExpired(now time.Time) {
	for _, kids := range n.children {
		for _, c := range kids {
			c.FireExpired(now)
		}
	}
	if n.hasTimeoutSelf && !n.timeoutSelf.After(now) {
		n.layer.TimeoutWork(now)
	}
}
