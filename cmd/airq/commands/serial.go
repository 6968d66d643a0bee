// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"bytes"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaud is the baud rate of the AirQ device CLI.
	DefaultBaud = 115200
	// DefaultReadTimeout bounds a single read attempt on the transport.
	DefaultReadTimeout = 250 * time.Millisecond
	// DefaultReplyWindow is how long accumulated output counts as "the
	// reply" to a just-sent command.
	DefaultReplyWindow = 1500 * time.Millisecond
	// DefaultSettle is how long boot-time chatter is drained before the
	// first command is sent.
	DefaultSettle = 2 * time.Second

	// idleBackoff is slept between read attempts that returned nothing.
	idleBackoff = 10 * time.Millisecond
)

// transport is the slice of serial.Port the session needs; tests substitute
// an in-memory fake.
type transport interface {
	io.ReadWriteCloser
}

// Session owns one open serial transport and drives the half-duplex command
// dialogue over it. A closed session is never reopened; callers open a fresh
// one for a new dialogue.
type Session struct {
	port   transport
	name   string
	clock  Clock
	closed bool
}

// OpenSession opens the named port at the given baud rate with 8-N-1
// framing, no flow control, DTR and RTS asserted, and a short per-read
// timeout. The CP210x bridge holds the device in reset unless DTR/RTS are
// asserted, so this is done before any traffic.
func OpenSession(name string, baud int, readTimeout time.Duration) (*Session, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	dev, err := serial.Open(name, mode)
	if err != nil {
		return nil, &TransportError{Op: "open", Port: name, Err: err}
	}

	if err := dev.SetDTR(true); err != nil {
		dev.Close()
		return nil, &TransportError{Op: "open", Port: name, Err: err}
	}
	if err := dev.SetRTS(true); err != nil {
		dev.Close()
		return nil, &TransportError{Op: "open", Port: name, Err: err}
	}
	if err := dev.SetReadTimeout(readTimeout); err != nil {
		dev.Close()
		return nil, &TransportError{Op: "open", Port: name, Err: err}
	}

	return &Session{port: dev, name: name, clock: systemClock{}}, nil
}

// WriteLine sends one command line, terminated by exactly one newline. The
// transport performs no other framing.
func (s *Session) WriteLine(line string) error {
	if _, err := s.port.Write([]byte(line + "\n")); err != nil {
		return &TransportError{Op: "write", Port: s.name, Err: err}
	}
	return nil
}

// ReadFor collects whatever bytes arrive within the given wall-clock window.
// Per-attempt read timeouts surface as zero-byte reads and are expected, not
// errors; only a transport fault propagates, together with whatever was read
// before it. The device CLI has no reply terminator, so an elapsed window is
// the only available definition of "the reply is in".
func (s *Session) ReadFor(window time.Duration) (string, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 256)
	deadline := s.clock.Now().Add(window)
	for s.clock.Now().Before(deadline) {
		n, err := s.port.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			return buf.String(), &TransportError{Op: "read", Port: s.name, Err: err}
		}
		if n == 0 {
			s.clock.Sleep(idleBackoff)
		}
	}
	return buf.String(), nil
}

// Close releases the transport. Safe to call more than once; callers close
// via defer so the handle is released on every exit path.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}
