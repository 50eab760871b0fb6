// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/serialcables/atlas3-go/clog"
	"github.com/serialcables/atlas3-go/frame"
)

// session owns the serial channel for its lifetime. The protocol is strictly
// synchronous: one request, one response. A mutex serializes callers so two
// operations can never interleave bytes on the wire; the second caller
// blocks until the first completes.
type session struct {
	clog.Clog

	mu     sync.Mutex
	port   io.ReadWriteCloser
	closed bool

	cs          frame.Checksum
	retryLimit  int
	readTimeout time.Duration // poll granularity of one port read
}

func newSession(port io.ReadWriteCloser, cs frame.Checksum, retryLimit int, readTimeout time.Duration, log clog.Clog) *session {
	return &session{
		Clog:        log,
		port:        port,
		cs:          cs,
		retryLimit:  retryLimit,
		readTimeout: readTimeout,
	}
}

// execute sends one request frame and waits for one complete response frame
// within timeout. On a timeout or a corrupt frame it resends the identical
// bytes, up to the configured retry limit. The request is never mutated
// between attempts.
func (sf *session) execute(op Opcode, params []byte, timeout time.Duration) (*frame.Response, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.closed {
		return nil, ErrSessionClosed
	}

	raw, err := frame.EncodeRequest(byte(op), params, sf.cs)
	if err != nil {
		return nil, err
	}

	attempts := sf.retryLimit + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sf.Debug("%s attempt %d/%d, TX [% X]", op, attempt, attempts, raw)

		if _, err := sf.port.Write(raw); err != nil {
			return nil, &TransportError{Op: op.String(), Attempts: attempt, Err: err}
		}

		resp, err := sf.readResponse(time.Now().Add(timeout))
		if err == nil {
			sf.Debug("%s RX opcode=%s status=0x%02X len=%d", op, Opcode(resp.Opcode), resp.Status, len(resp.Payload))
			return resp, nil
		}

		var ferr *frame.Error
		switch {
		case errors.Is(err, ErrTimeout):
			sf.Warn("%s: response timeout (attempt %d/%d)", op, attempt, attempts)
			lastErr = ErrTimeout
		case errors.As(err, &ferr):
			sf.Warn("%s: corrupt frame: %v (attempt %d/%d)", op, err, attempt, attempts)
			lastErr = ErrCorruptFrames
			sf.drain()
		default:
			// port-level failure, not worth retrying
			return nil, &TransportError{Op: op.String(), Attempts: attempt, Err: err}
		}
	}
	return nil, &TransportError{Op: op.String(), Attempts: attempts, Err: lastErr}
}

// readResponse assembles exactly one response frame before the deadline.
// On timeout it drains whatever partial frame is on the line so the next
// command starts from a clean channel.
func (sf *session) readResponse(deadline time.Time) (*frame.Response, error) {
	header, err := sf.readHeader(deadline)
	if err != nil {
		sf.drain()
		return nil, err
	}

	total, err := frame.ResponseLength(header, sf.cs)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, total)
	copy(raw, header)
	if err := sf.readFull(raw[len(header):], deadline); err != nil {
		sf.drain()
		return nil, err
	}
	return frame.DecodeResponse(raw, sf.cs)
}

// readHeader scans for the start byte, discarding line noise, then reads the
// rest of the fixed response header.
func (sf *session) readHeader(deadline time.Time) ([]byte, error) {
	one := make([]byte, 1)
	for {
		if err := sf.readFull(one, deadline); err != nil {
			return nil, err
		}
		if one[0] == frame.StartByte {
			break
		}
		sf.Debug("discarding stray byte 0x%02X", one[0])
	}
	header := make([]byte, frame.RespHeaderLen)
	header[0] = frame.StartByte
	if err := sf.readFull(header[1:], deadline); err != nil {
		return nil, err
	}
	return header, nil
}

// readFull fills buf from the port before the deadline. The port itself
// polls at readTimeout granularity and reports an expired poll as a zero
// byte read.
func (sf *session) readFull(buf []byte, deadline time.Time) error {
	filled := 0
	for filled < len(buf) {
		if !time.Now().Before(deadline) {
			return ErrTimeout
		}
		n, err := sf.port.Read(buf[filled:])
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrTimeout
			}
			return err
		}
		filled += n
	}
	return nil
}

// drain discards buffered bytes until the line goes quiet, leaving the
// channel resynchronized for the next request.
func (sf *session) drain() {
	scratch := make([]byte, 64)
	budget := time.Now().Add(4 * sf.readTimeout)
	discarded := 0
	for time.Now().Before(budget) {
		n, err := sf.port.Read(scratch)
		if err != nil || n == 0 {
			break
		}
		discarded += n
	}
	if discarded > 0 {
		sf.Debug("drained %d stale byte(s)", discarded)
	}
}

// close releases the channel. Safe to call more than once.
func (sf *session) close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.closed {
		return nil
	}
	sf.closed = true
	return sf.port.Close()
}
