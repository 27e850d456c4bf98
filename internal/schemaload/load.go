// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package schemaload turns a set of YANG module files and RFC 9595 .sid
// files, as passed on the `conv` command line, into ready-to-use
// yang.Schema trees with SIDs applied — the input-discovery step shared
// by every `conv` subcommand.
package schemaload

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
)

// Set is every module schema built from one invocation's --yang/--sid
// inputs, keyed by module name.
type Set struct {
	Modules map[string]*yang.Schema
	Order   []string // module names, sorted, for deterministic listing
}

// Load walks yangDirs for *.yang files, parses each as its own module,
// applies every file in sidFiles to every parsed module (ApplySIDFile is
// a harmless no-op for items that don't resolve against a given module),
// and returns the resulting Set.
func Load(yangDirs, sidFiles []string) (*Set, error) {
	yangPaths, err := discoverYANGFiles(yangDirs)
	if err != nil {
		return nil, err
	}
	if len(yangPaths) == 0 {
		return nil, fmt.Errorf("schemaload: no .yang files found under %v", yangDirs)
	}

	set := &Set{Modules: make(map[string]*yang.Schema)}
	for _, p := range yangPaths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("schemaload: read %s: %w", p, err)
		}
		s, err := yang.ParseModule(string(src))
		if err != nil {
			return nil, fmt.Errorf("schemaload: parse %s: %w", p, err)
		}
		name := s.Node(s.Root()).Arg
		if _, exists := set.Modules[name]; exists {
			return nil, fmt.Errorf("schemaload: module %q defined twice (%s)", name, p)
		}
		set.Modules[name] = s
		set.Order = append(set.Order, name)
	}
	sort.Strings(set.Order)

	for _, p := range sidFiles {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("schemaload: read %s: %w", p, err)
		}
		for _, s := range set.Modules {
			if err := s.ApplySIDFile(raw); err != nil {
				return nil, fmt.Errorf("schemaload: apply %s: %w", p, err)
			}
		}
	}

	return set, nil
}

// Select returns the named module's schema, or — when name is empty and
// exactly one module was loaded — that single module. An empty name with
// more than one loaded module is ambiguous and an error.
func (s *Set) Select(name string) (*yang.Schema, error) {
	if name != "" {
		sch, ok := s.Modules[name]
		if !ok {
			return nil, fmt.Errorf("schemaload: no loaded module named %q (have: %s)", name, strings.Join(s.Order, ", "))
		}
		return sch, nil
	}
	if len(s.Order) == 1 {
		return s.Modules[s.Order[0]], nil
	}
	return nil, fmt.Errorf("schemaload: --module is required when more than one module is loaded (have: %s)", strings.Join(s.Order, ", "))
}

func discoverYANGFiles(dirs []string) ([]string, error) {
	var out []string
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".yang") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("schemaload: walk %s: %w", dir, err)
		}
	}
	sort.Strings(out)
	return out, nil
}
