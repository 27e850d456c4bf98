// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package carrier

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	cerrors "github.com/hwkim3330/velocitydrivesp-support/pkg/errors"
	"go.bug.st/serial"
)

// Carrier is the byte-duplex resource a driver owns for the lifetime of
// the process: a serial port or a TCP connection, read with a bounded
// deadline instead of a context or a cancellation channel.
type Carrier interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

const (
	schemeTermhub = "termhub"
	schemeTelnet  = "telnet"

	serialBaud = 115200
)

// telnetHandshake is IAC WILL BIN, IAC DO BIN, IAC DO ECHO, sent once
// right after connecting to a telnet-scheme carrier.
var telnetHandshake = []byte{0xFF, 0xFB, 0x03, 0xFF, 0xFD, 0x03, 0xFF, 0xFD, 0x01}

// Open parses uri and returns the corresponding carrier: termhub://host:port
// and telnet://host:port dial TCP (telnet additionally performs the
// handshake and drains one read); anything else is treated as a local
// filesystem path and opened as a serial port at 115200 8N1, no flow
// control. A URI this function cannot make sense of is a fatal error —
// there is no partial-carrier fallback.
func Open(uri string) (Carrier, error) {
	if !strings.Contains(uri, "://") {
		return openSerial(uri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", cerrors.ErrBadCarrierURI, uri, err)
	}

	switch u.Scheme {
	case schemeTermhub:
		return openTCP(u.Host)
	case schemeTelnet:
		return openTelnet(u.Host)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", cerrors.ErrBadCarrierURI, u.Scheme)
	}
}

func openTCP(hostport string) (Carrier, error) {
	conn, err := net.Dial("tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("carrier: dial %s: %w", hostport, err)
	}
	return &tcpCarrier{conn: conn}, nil
}

func openTelnet(hostport string) (Carrier, error) {
	conn, err := net.Dial("tcp", hostport)
	if err != nil {
		return nil, fmt.Errorf("carrier: dial %s: %w", hostport, err)
	}
	if _, err := conn.Write(telnetHandshake); err != nil {
		conn.Close()
		return nil, fmt.Errorf("carrier: telnet handshake to %s: %w", hostport, err)
	}
	drain := make([]byte, 256)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _ = conn.Read(drain)
	_ = conn.SetReadDeadline(time.Time{})
	return &tcpCarrier{conn: conn}, nil
}

// tcpCarrier wraps a net.Conn for termhub and telnet carriers.
type tcpCarrier struct {
	conn net.Conn
}

func (c *tcpCarrier) Read(p []byte) (int, error)  { return c.conn.Read(p) }
func (c *tcpCarrier) Write(p []byte) (int, error) { return c.conn.Write(p) }
func (c *tcpCarrier) Close() error                { return c.conn.Close() }
func (c *tcpCarrier) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func openSerial(path string) (Carrier, error) {
	mode := &serial.Mode{
		BaudRate: serialBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("carrier: open serial %s: %w", path, err)
	}
	return &serialCarrier{port: port}, nil
}

// serialCarrier wraps a go.bug.st/serial port, which has no per-call
// deadline API: SetReadTimeout bounds every subsequent Read, so
// SetReadDeadline converts the absolute deadline it's given into that
// relative timeout on each call.
type serialCarrier struct {
	port serial.Port
}

func (c *serialCarrier) Read(p []byte) (int, error)  { return c.port.Read(p) }
func (c *serialCarrier) Write(p []byte) (int, error) { return c.port.Write(p) }
func (c *serialCarrier) Close() error                { return c.port.Close() }

func (c *serialCarrier) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		return c.port.SetReadTimeout(serial.NoTimeout)
	}
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	return c.port.SetReadTimeout(d)
}
