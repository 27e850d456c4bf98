// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package yang

import "testing"

const testModule = `
module iana-if-type {
  container interfaces {
    list interface {
      key "name";
      leaf name {
        type string;
      }
      leaf enabled {
        type boolean;
      }
    }
  }
  rpc reboot {
    input {
      leaf delay {
        type uint32;
      }
    }
    output {
      leaf accepted {
        type boolean;
      }
    }
  }
}
`

func TestParseModuleBuildsTree(t *testing.T) {
	s, err := ParseModule(testModule)
	if err != nil {
		t.Fatal(err)
	}
	ifaces, ok := s.SubstmByArg(s.Root(), "interfaces")
	if !ok {
		t.Fatal("expected interfaces container")
	}
	iface, ok := s.SubstmByArg(ifaces, "interface")
	if !ok {
		t.Fatal("expected interface list")
	}
	if s.Node(iface).Keyword != KwList {
		t.Errorf("keyword = %q, want list", s.Node(iface).Keyword)
	}
	if len(s.Node(iface).Keys) != 1 || s.Node(iface).Keys[0] != "name" {
		t.Errorf("keys = %v, want [name]", s.Node(iface).Keys)
	}
}

func TestResolveSchemaPathHandlesRPCInputOutputAndDotDot(t *testing.T) {
	s, err := ParseModule(testModule)
	if err != nil {
		t.Fatal(err)
	}
	rpc, ok := s.SubstmByArg(s.Root(), "reboot")
	if !ok {
		t.Fatal("expected reboot rpc")
	}
	delay, ok := s.ResolveSchemaPath(rpc, []string{"input", "delay"})
	if !ok {
		t.Fatal("expected to resolve input/delay")
	}
	if s.Node(delay).Arg != "delay" {
		t.Errorf("arg = %q, want delay", s.Node(delay).Arg)
	}
	back, ok := s.ResolveSchemaPath(delay, []string{"..", ".."})
	if !ok || back != rpc {
		t.Errorf("'..'  '..' from input/delay should land back on rpc, got %v ok=%v", back, ok)
	}
}

func TestMissingInputOutputOnRPCIsRejected(t *testing.T) {
	_, err := ParseModule(`module m { rpc noop { leaf x { type string; } } }`)
	if err == nil {
		t.Fatal("expected an error for rpc without input/output")
	}
}

func TestApplySIDFileAssignsAndIndexesSIDs(t *testing.T) {
	s, err := ParseModule(testModule)
	if err != nil {
		t.Fatal(err)
	}
	sidJSON := []byte(`{
		"ietf-sid-file:sid-file": {
			"module-name": "iana-if-type",
			"items": [
				{"namespace": "data", "identifier": "/iana-if-type:interfaces", "sid": 1000},
				{"namespace": "data", "identifier": "/iana-if-type:interfaces/interface", "sid": 1001},
				{"namespace": "data", "identifier": "/iana-if-type:interfaces/interface/name", "sid": 1002},
				{"namespace": "data", "identifier": "/iana-if-type:interfaces/interface/enabled", "sid": 1880}
			]
		}
	}`)
	if err := s.ApplySIDFile(sidJSON); err != nil {
		t.Fatal(err)
	}
	id, path, ok := s.FindBySID(1880)
	if !ok {
		t.Fatal("expected to find node by sid 1880")
	}
	if s.Node(id).Arg != "enabled" {
		t.Errorf("arg = %q, want enabled", s.Node(id).Arg)
	}
	if len(path) != 4 {
		t.Errorf("path length = %d, want 4 (module, interfaces, interface, enabled)", len(path))
	}
}
