// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import (
	"errors"
	"fmt"
)

// error defined
var (
	ErrSessionClosed = errors.New("use of closed session")
	ErrTimeout       = errors.New("device response timeout")
	ErrCorruptFrames = errors.New("repeated corrupt frames")
)

// ValidationError reports a caller-supplied parameter outside the accepted
// domain. It is raised before any bytes are written to the wire and is never
// retried.
type ValidationError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Param, e.Value, e.Reason)
}

func validationErr(param string, value any, reason string) error {
	return &ValidationError{Param: param, Value: value, Reason: reason}
}

// TransportError reports a channel-level failure: the device stopped
// answering or kept answering garbage past the retry budget. The session
// stays usable afterwards; only the operation fails.
type TransportError struct {
	Op       string
	Attempts int
	// Err is ErrTimeout or ErrCorruptFrames, or the raw port error
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a structurally valid frame whose payload does not
// match the shape the requested operation expects. A shape mismatch points
// at a protocol or firmware revision mismatch, not line noise, so it is
// never retried.
type DecodeError struct {
	Op     string
	Reason string
	Raw    []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: cannot decode payload: %s (raw [% X])", e.Op, e.Reason, e.Raw)
}

func decodeErr(op, reason string, raw []byte) error {
	return &DecodeError{Op: op, Reason: reason, Raw: raw}
}

// ConfigurationError reports that the device explicitly rejected a
// configuration value. Status carries the diagnostic code verbatim.
type ConfigurationError struct {
	Op     string
	Status byte
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: device rejected request: %s (0x%02X)", e.Op, statusName(e.Status), e.Status)
}

// Device status codes carried in the response frame header.
const (
	StatusSuccess      byte = 0x00
	StatusBadCommand   byte = 0x01
	StatusBadParameter byte = 0x02
	StatusBusy         byte = 0x03
	StatusExecFailed   byte = 0x04
)

func statusName(code byte) string {
	switch code {
	case StatusSuccess:
		return "success"
	case StatusBadCommand:
		return "unrecognized command"
	case StatusBadParameter:
		return "invalid parameter"
	case StatusBusy:
		return "device busy"
	case StatusExecFailed:
		return "execution failed"
	default:
		return "unknown status"
	}
}
