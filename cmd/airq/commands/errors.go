// Copyright (C) 2024 the AirQ project authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"time"
)

// TransportError indicates a serial infrastructure failure: the port could
// not be opened, or a write/read faulted mid-dialogue. Fatal to the session.
type TransportError struct {
	Op   string
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("serial %s on '%s': %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UploadTimeout indicates the upload tool was forcibly terminated because it
// did not exit before the wall-clock deadline. Output holds whatever the tool
// printed before it was killed.
type UploadTimeout struct {
	Timeout time.Duration
	Output  string
}

func (e *UploadTimeout) Error() string {
	return fmt.Sprintf("upload did not finish within %s and was terminated", e.Timeout)
}

// UploadFailed indicates the upload tool exited with a non-zero status.
type UploadFailed struct {
	ExitCode int
	Output   string
}

func (e *UploadFailed) Error() string {
	return fmt.Sprintf("upload failed with exit code %d", e.ExitCode)
}

// ConfigParseError indicates a malformed configuration document. It is always
// raised before any device interaction, so a bad document never partially
// reconfigures a device.
type ConfigParseError struct {
	Path   string
	Reason string
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("invalid config '%s': %s", e.Path, e.Reason)
}

// PortNotFound indicates that no serial port was specified and none could be
// detected.
type PortNotFound struct{}

func (e *PortNotFound) Error() string {
	return "no serial ports detected. Have you connected the AirQ board and installed the USB bridge driver?"
}
