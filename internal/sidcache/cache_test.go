// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sidcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hwkim3330/velocitydrivesp-support/pkg/yang"
)

const testModule = `
module iana-if-type {
  container interfaces {
    list interface {
      key "name";
      leaf name {
        type string;
      }
    }
  }
}
`

func writeTempModule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "iana-if-type.yang")
	if err := os.WriteFile(p, []byte(testModule), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStatFilesSortsByPath(t *testing.T) {
	a := filepath.Join(t.TempDir(), "b.yang")
	os.WriteFile(a, []byte("x"), 0o644)
	b := filepath.Join(t.TempDir(), "a.yang")
	os.WriteFile(b, []byte("y"), 0o644)

	stats, err := StatFiles([]string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	if stats[0].Path > stats[1].Path {
		t.Errorf("stats not sorted: %v", stats)
	}
}

func TestKeyChangesWithModTime(t *testing.T) {
	p := writeTempModule(t)
	stats1, err := StatFiles([]string{p})
	if err != nil {
		t.Fatal(err)
	}
	k1, err := Key(stats1)
	if err != nil {
		t.Fatal(err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(p, future, future); err != nil {
		t.Fatal(err)
	}
	stats2, err := StatFiles([]string{p})
	if err != nil {
		t.Fatal(err)
	}
	k2, err := Key(stats2)
	if err != nil {
		t.Fatal(err)
	}

	if k1 == k2 {
		t.Error("expected key to change after modification time changed")
	}
}

func TestStoreLoadRoundTripsSchema(t *testing.T) {
	s, err := yang.ParseModule(testModule)
	if err != nil {
		t.Fatal(err)
	}

	cache := New(filepath.Join(t.TempDir(), "schema.json"))
	if err := cache.Store("k1", s); err != nil {
		t.Fatal(err)
	}

	loaded, ok := cache.Load("k1")
	if !ok {
		t.Fatal("expected a cache hit for the key just stored")
	}

	ifaces, ok := loaded.SubstmByArg(loaded.Root(), "interfaces")
	if !ok {
		t.Fatal("expected interfaces container to survive the round trip")
	}
	iface, ok := loaded.SubstmByArg(ifaces, "interface")
	if !ok {
		t.Fatal("expected interface list to survive the round trip")
	}
	if len(loaded.Node(iface).Keys) != 1 || loaded.Node(iface).Keys[0] != "name" {
		t.Errorf("keys = %v, want [name]", loaded.Node(iface).Keys)
	}
}

func TestLoadMissesOnKeyMismatch(t *testing.T) {
	s, err := yang.ParseModule(testModule)
	if err != nil {
		t.Fatal(err)
	}
	cache := New(filepath.Join(t.TempDir(), "schema.json"))
	if err := cache.Store("k1", s); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Load("k2"); ok {
		t.Error("expected a miss for a different key")
	}
}

func TestLoadMissesWithoutAPriorStore(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "never-written.json"))
	if _, ok := cache.Load("anything"); ok {
		t.Error("expected a miss when no cache file exists yet")
	}
}
