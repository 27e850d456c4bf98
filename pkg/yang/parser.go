// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package yang

import (
	"fmt"
	"strconv"
	"strings"

	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
)

// ParseModule parses a YANG module's statement tree (the ABNF subset this
// codec actually exercises: module/container/list/leaf/leaf-list/choice/
// case/rpc/action/input/output/anydata/anyxml/grouping/identity and their
// type/key/config/default/range/length/pattern/bit/enum/base/
// fraction-digits/path substatements). `grouping`/`uses` are parsed but
// left unexpanded — see DESIGN.md.
func ParseModule(src string) (*Schema, error) {
	toks := tokenize(src)
	p := &parser{toks: toks}
	stmt, err := p.statement()
	if err != nil {
		return nil, err
	}
	if stmt.keyword != KwModule {
		return nil, cerrors.New("ParseModule", "yang", fmt.Errorf("top-level statement must be %q, got %q", KwModule, stmt.keyword))
	}

	s := NewSchema(stmt.arg)
	if err := buildChildren(s, s.root, stmt.children); err != nil {
		return nil, err
	}
	return s, nil
}

// rawStmt is the untyped parse tree before it's lowered into Schema nodes.
type rawStmt struct {
	keyword  string
	arg      string
	children []*rawStmt
}

func buildChildren(s *Schema, parent NodeID, raws []*rawStmt) error {
	for _, r := range raws {
		switch r.keyword {
		case KwModule, KwContainer, KwList, KwLeaf, KwLeafList, KwChoice, KwCase,
			KwRPC, KwAction, KwInput, KwOutput, KwAnydata, KwAnyxml, KwGrouping, KwIdentity:
			n := Node{Keyword: r.keyword, Arg: r.arg, Config: true}
			if cfg := findArg(r, "config"); cfg != nil {
				n.Config = *cfg == "true"
			}
			if def := findArg(r, "default"); def != nil {
				n.Default = def
			}
			if keyStmt := find(r, "key"); keyStmt != nil {
				n.Keys = strings.Fields(keyStmt.arg)
			}
			if typeStmt := find(r, "type"); typeStmt != nil {
				t, err := buildType(typeStmt)
				if err != nil {
					return err
				}
				n.Type = t
			}
			id := s.AddChild(parent, n)
			if err := buildChildren(s, id, r.children); err != nil {
				return err
			}
			if (r.keyword == KwRPC || r.keyword == KwAction) && find(r, KwInput) == nil && find(r, KwOutput) == nil {
				return cerrors.New("buildChildren", "yang", cerrors.ErrMissingInputOutput)
			}
		default:
			// Unrecognised keyword: not an error (YANG has many extension
			// statements this model doesn't need). The statement and its
			// substatements are left out of the schema tree.
		}
	}
	return nil
}

func buildType(r *rawStmt) (*Type, error) {
	t := &Type{Name: r.arg}
	for _, c := range r.children {
		switch c.keyword {
		case "range":
			rs, err := parseRanges(c.arg)
			if err != nil {
				return nil, err
			}
			t.Ranges = rs
		case "length":
			rs, err := parseRanges(c.arg)
			if err != nil {
				return nil, err
			}
			t.LengthRanges = rs
		case "pattern":
			t.Patterns = append(t.Patterns, c.arg)
		case "bit":
			if t.Bits == nil {
				t.Bits = make(map[string]int)
			}
			pos := len(t.Bits)
			if posStmt := find(c, "position"); posStmt != nil {
				if v, err := strconv.Atoi(posStmt.arg); err == nil {
					pos = v
				}
			}
			t.Bits[c.arg] = pos
		case "enum":
			if t.Enums == nil {
				t.Enums = make(map[string]int)
			}
			val := len(t.Enums)
			if valStmt := find(c, "value"); valStmt != nil {
				if v, err := strconv.Atoi(valStmt.arg); err == nil {
					val = v
				}
			}
			t.Enums[c.arg] = val
		case "type":
			member, err := buildType(c)
			if err != nil {
				return nil, err
			}
			t.Union = append(t.Union, member)
		case "path":
			t.LeafrefTarget = NoNode
			t.LeafrefPath = c.arg
		case "base":
			mod, name := splitQualified(c.arg)
			t.IdentityModule, t.IdentityBase = mod, name
		case "fraction-digits":
			if v, err := strconv.Atoi(c.arg); err == nil {
				t.FractionDigits = v
			}
		}
	}
	return t, nil
}

func splitQualified(s string) (module, name string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func parseRanges(spec string) ([]Range, error) {
	var out []Range
	for _, part := range strings.Split(spec, "|") {
		part = strings.TrimSpace(part)
		bounds := strings.SplitN(part, "..", 2)
		min, err := strconv.ParseInt(strings.TrimSpace(bounds[0]), 10, 64)
		if err != nil {
			return nil, cerrors.New("parseRanges", "yang", err)
		}
		max := min
		if len(bounds) == 2 {
			b := strings.TrimSpace(bounds[1])
			if b == "max" {
				max = int64(^uint64(0) >> 1)
			} else if max, err = strconv.ParseInt(b, 10, 64); err != nil {
				return nil, cerrors.New("parseRanges", "yang", err)
			}
		}
		out = append(out, Range{Min: min, Max: max})
	}
	return out, nil
}

func find(r *rawStmt, keyword string) *rawStmt {
	for _, c := range r.children {
		if c.keyword == keyword {
			return c
		}
	}
	return nil
}

func findArg(r *rawStmt, keyword string) *string {
	if s := find(r, keyword); s != nil {
		return &s.arg
	}
	return nil
}

// --- tokenizer + recursive-descent parser -------------------------------

type token struct {
	text string
	kind tokKind
}

type tokKind uint8

const (
	tokWord tokKind = iota
	tokString
	tokLBrace
	tokRBrace
	tokSemi
)

func tokenize(src string) []token {
	var toks []token
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '{':
			toks = append(toks, token{kind: tokLBrace})
			i++
		case c == '}':
			toks = append(toks, token{kind: tokRBrace})
			i++
		case c == ';':
			toks = append(toks, token{kind: tokSemi})
			i++
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			for j < n && src[j] != quote {
				j++
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : j]})
			i = j + 1
		default:
			j := i
			for j < n && !strings.ContainsRune(" \t\n\r{};", rune(src[j])) {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: src[i:j]})
			i = j
		}
	}
	return toks
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() *token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *parser) next() *token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *parser) statement() (*rawStmt, error) {
	kwTok := p.next()
	if kwTok == nil || kwTok.kind != tokWord {
		return nil, cerrors.New("statement", "yang", cerrors.ErrUnknownKeyword)
	}
	stmt := &rawStmt{keyword: kwTok.text}

	argTok := p.peek()
	if argTok != nil && (argTok.kind == tokWord || argTok.kind == tokString) {
		stmt.arg = argTok.text
		p.next()
	}

	end := p.next()
	if end == nil {
		return nil, cerrors.New("statement", "yang", fmt.Errorf("unexpected end of input after %q", stmt.keyword))
	}
	switch end.kind {
	case tokSemi:
		return stmt, nil
	case tokLBrace:
		for {
			t := p.peek()
			if t == nil {
				return nil, cerrors.New("statement", "yang", fmt.Errorf("unterminated block for %q", stmt.keyword))
			}
			if t.kind == tokRBrace {
				p.next()
				return stmt, nil
			}
			child, err := p.statement()
			if err != nil {
				return nil, err
			}
			stmt.children = append(stmt.children, child)
		}
	default:
		return nil, cerrors.New("statement", "yang", fmt.Errorf("expected ';' or '{' after %q", stmt.keyword))
	}
}
