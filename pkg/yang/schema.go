// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package yang

import "fmt"

// NodeID indexes into a Schema's arena. NoNode is the sentinel "no such
// node" value, distinct from the root (which is always 0).
type NodeID int

const NoNode NodeID = -1

// Keyword values this model understands. Statements with any other
// keyword are retained verbatim but carry no typed behaviour.
const (
	KwModule    = "module"
	KwContainer = "container"
	KwList      = "list"
	KwLeaf      = "leaf"
	KwLeafList  = "leaf-list"
	KwChoice    = "choice"
	KwCase      = "case"
	KwRPC       = "rpc"
	KwAction    = "action"
	KwInput     = "input"
	KwOutput    = "output"
	KwAnydata   = "anydata"
	KwAnyxml    = "anyxml"
	KwGrouping  = "grouping"
	KwIdentity  = "identity"
)

// Range is an inclusive numeric bound pair used for integer range and
// string/binary length restrictions.
type Range struct {
	Min, Max int64
}

// Type carries a leaf's or leaf-list's full typed contract.
type Type struct {
	Name string // builtin type name, e.g. "string", "int32", "decimal64"

	Ranges       []Range
	LengthRanges []Range
	Patterns     []string

	Bits  map[string]int // bit name -> position
	Enums map[string]int // enum name -> integer value

	Union []*Type

	LeafrefTarget   NodeID
	LeafrefPath     string
	IdentityBase    string
	IdentityModule  string
	FractionDigits  int
}

// Node is one YANG statement.
type Node struct {
	ID      NodeID
	Keyword string
	Arg     string // statement argument as written; empty for input/output
	Config  bool
	Default *string
	Keys    []string // ordered key leaf names, for list nodes
	SID     *uint64
	Type    *Type

	Parent   NodeID
	Children []NodeID
}

// Schema is the full arena-indexed statement tree plus a SID index.
type Schema struct {
	nodes []*Node
	root  NodeID
	bySID map[uint64]NodeID
}

// NewSchema returns an empty schema with a synthetic module root.
func NewSchema(moduleName string) *Schema {
	s := &Schema{bySID: make(map[uint64]NodeID)}
	root := &Node{ID: 0, Keyword: KwModule, Arg: moduleName, Parent: NoNode}
	s.nodes = append(s.nodes, root)
	s.root = 0
	return s
}

// Root returns the schema's root node id.
func (s *Schema) Root() NodeID { return s.root }

// Nodes returns the full node arena, indexed by NodeID. Callers must treat
// it as read-only; it exists so a cache can serialize a built schema
// without reaching into unexported fields.
func (s *Schema) Nodes() []*Node { return s.nodes }

// FromNodes rebuilds a Schema from a previously-serialized node arena
// (as returned by Nodes), reindexing the SID lookup table. Node.ID and
// Node.Parent/Children entries are assumed to already reflect their
// position in nodes, as they do coming out of Nodes.
func FromNodes(nodes []*Node) *Schema {
	s := &Schema{nodes: nodes, root: 0, bySID: make(map[uint64]NodeID)}
	for _, n := range nodes {
		if n.SID != nil {
			s.bySID[*n.SID] = n.ID
		}
	}
	return s
}

// Node returns the node at id. Panics on an out-of-range id, matching
// arena-index semantics: a valid NodeID was always handed out by this
// Schema.
func (s *Schema) Node(id NodeID) *Node { return s.nodes[id] }

// AddChild appends a new node as a child of parent and returns its id.
func (s *Schema) AddChild(parent NodeID, n Node) NodeID {
	id := NodeID(len(s.nodes))
	n.ID = id
	n.Parent = parent
	s.nodes = append(s.nodes, &n)
	s.nodes[parent].Children = append(s.nodes[parent].Children, id)
	if n.SID != nil {
		s.bySID[*n.SID] = id
	}
	return id
}

// SubstmByArg finds the direct child of parent with the given argument.
func (s *Schema) SubstmByArg(parent NodeID, arg string) (NodeID, bool) {
	p := s.nodes[parent]
	for _, cid := range p.Children {
		if s.nodes[cid].Arg == arg {
			return cid, true
		}
	}
	return NoNode, false
}

// SubstmBySID finds the direct child of parent carrying the given SID.
func (s *Schema) SubstmBySID(parent NodeID, sid uint64) (NodeID, bool) {
	p := s.nodes[parent]
	for _, cid := range p.Children {
		c := s.nodes[cid]
		if c.SID != nil && *c.SID == sid {
			return cid, true
		}
	}
	return NoNode, false
}

// FindBySID does a global DFS for sid, returning the node and the
// root-to-node path of ids.
func (s *Schema) FindBySID(sid uint64) (NodeID, []NodeID, bool) {
	id, ok := s.bySID[sid]
	if !ok {
		return NoNode, nil, false
	}
	return id, s.pathTo(id), true
}

func (s *Schema) pathTo(id NodeID) []NodeID {
	var rev []NodeID
	for id != NoNode {
		rev = append(rev, id)
		id = s.nodes[id].Parent
	}
	path := make([]NodeID, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}

// ResolveSchemaPath walks substatements by argument starting at from,
// honouring two special cases: for an rpc/action node, the segment
// "input" or "output" selects the implicit child of that name; ".."
// ascends to the parent.
func (s *Schema) ResolveSchemaPath(from NodeID, segments []string) (NodeID, bool) {
	cur := from
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if seg == ".." {
			p := s.nodes[cur].Parent
			if p == NoNode {
				return NoNode, false
			}
			cur = p
			continue
		}
		node := s.nodes[cur]
		if (node.Keyword == KwRPC || node.Keyword == KwAction) && (seg == KwInput || seg == KwOutput) {
			found := NoNode
			for _, cid := range node.Children {
				if s.nodes[cid].Keyword == seg {
					found = cid
					break
				}
			}
			if found == NoNode {
				return NoNode, false
			}
			cur = found
			continue
		}
		id, ok := s.SubstmByArg(cur, seg)
		if !ok {
			return NoNode, false
		}
		cur = id
	}
	return cur, true
}

func (n *Node) String() string {
	return fmt.Sprintf("yang.Node{%s %q sid=%v}", n.Keyword, n.Arg, n.SID)
}
