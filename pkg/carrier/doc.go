// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package carrier opens the single bidirectional byte stream a driver
// polls: a local serial port, or a TCP-based termhub/telnet endpoint.
// Every carrier exposes a read deadline so the driver's single wait
// primitive — "bytes available or deadline reached" — has something to
// call. Open parses the URI once at startup; a malformed one is fatal.
package carrier
