// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package frame implements the Atlas3 serial wire framing: encoding command
// frames, decoding response frames and validating their structure. It is a
// pure byte-level transform with no I/O; the transport session in package
// atlas3 feeds it raw bytes read from the serial channel.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Atlas3 frame format constants.
const (
	// StartByte is the start-of-frame marker
	StartByte byte = 0x55
	// EndByte is the end-of-frame marker
	EndByte byte = 0xAA

	// ReqHeaderLen is SOP(1) + OPCODE(1) + LEN(2)
	ReqHeaderLen = 4
	// RespHeaderLen is SOP(1) + OPCODE(1) + STATUS(1) + LEN(2)
	RespHeaderLen = 5

	// MaxPayloadLen bounds the declared payload length of a single frame.
	MaxPayloadLen = 512
)

// Frame parsing errors.
var (
	ErrInvalidStartByte = errors.New("invalid start byte")
	ErrInvalidEndByte   = errors.New("invalid end byte")
	ErrFrameTooShort    = errors.New("frame is too short for headers")
	ErrLengthMismatch   = errors.New("declared length does not match frame size")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrPayloadTooLarge  = errors.New("payload length exceeds maximum")
)

// Error is a frame-level decode failure. It wraps one of the sentinel errors
// above and keeps the offending raw bytes for diagnostics.
type Error struct {
	Reason error
	Raw    []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("frame: %v (raw [% X])", e.Reason, e.Raw)
}

func (e *Error) Unwrap() error { return e.Reason }

func frameErr(reason error, raw []byte) error {
	return &Error{Reason: reason, Raw: raw}
}

// Response is a decoded response frame. The payload is interpreted by the
// per-operation decoders, not here.
type Response struct {
	Opcode  byte
	Status  byte
	Payload []byte
}

// EncodeRequest builds a complete command frame:
//
//	[SOP][OPCODE][LEN_L][LEN_H][PARAMS...][CHK...][EOP]
//
// The length field counts only the parameter bytes. Encoding is
// deterministic: identical inputs always produce identical bytes.
func EncodeRequest(opcode byte, params []byte, cs Checksum) ([]byte, error) {
	if len(params) > MaxPayloadLen {
		return nil, frameErr(ErrPayloadTooLarge, params)
	}
	buf := make([]byte, 0, ReqHeaderLen+len(params)+cs.Size()+1)
	buf = append(buf, StartByte, opcode)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(params)))
	buf = append(buf, params...)
	buf = append(buf, cs.Sum(buf[1:])...)
	buf = append(buf, EndByte)
	return buf, nil
}

// DecodeRequest parses a command frame back into its opcode and parameters.
// It exists for the synthetic peer used in tests and for wire tracing; the
// driver itself only decodes responses.
func DecodeRequest(raw []byte, cs Checksum) (opcode byte, params []byte, err error) {
	minLen := ReqHeaderLen + cs.Size() + 1
	if len(raw) < minLen {
		return 0, nil, frameErr(ErrFrameTooShort, raw)
	}
	if raw[0] != StartByte {
		return 0, nil, frameErr(ErrInvalidStartByte, raw)
	}
	if raw[len(raw)-1] != EndByte {
		return 0, nil, frameErr(ErrInvalidEndByte, raw)
	}
	declared := int(binary.LittleEndian.Uint16(raw[2:4]))
	if declared > MaxPayloadLen {
		return 0, nil, frameErr(ErrPayloadTooLarge, raw)
	}
	if len(raw) != minLen+declared {
		return 0, nil, frameErr(ErrLengthMismatch, raw)
	}
	body := raw[1 : ReqHeaderLen+declared]
	if !cs.Verify(body, raw[ReqHeaderLen+declared:len(raw)-1]) {
		return 0, nil, frameErr(ErrChecksumMismatch, raw)
	}
	return raw[1], raw[ReqHeaderLen : ReqHeaderLen+declared], nil
}

// EncodeResponse builds a complete response frame:
//
//	[SOP][OPCODE][STATUS][LEN_L][LEN_H][PAYLOAD...][CHK...][EOP]
//
// Used by the synthetic peer in tests; the device produces these on real
// hardware.
func EncodeResponse(opcode, status byte, payload []byte, cs Checksum) ([]byte, error) {
	if len(payload) > MaxPayloadLen {
		return nil, frameErr(ErrPayloadTooLarge, payload)
	}
	buf := make([]byte, 0, RespHeaderLen+len(payload)+cs.Size()+1)
	buf = append(buf, StartByte, opcode, status)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, cs.Sum(buf[1:])...)
	buf = append(buf, EndByte)
	return buf, nil
}

// DecodeResponse validates a complete response frame and extracts the
// opcode, status and payload. It rejects structural problems (bad markers,
// length mismatch, checksum failure) but never judges whether the opcode is
// the one the caller expected; that is the command layer's job.
func DecodeResponse(raw []byte, cs Checksum) (*Response, error) {
	minLen := RespHeaderLen + cs.Size() + 1
	if len(raw) < minLen {
		return nil, frameErr(ErrFrameTooShort, raw)
	}
	if raw[0] != StartByte {
		return nil, frameErr(ErrInvalidStartByte, raw)
	}
	if raw[len(raw)-1] != EndByte {
		return nil, frameErr(ErrInvalidEndByte, raw)
	}
	declared := int(binary.LittleEndian.Uint16(raw[3:5]))
	if declared > MaxPayloadLen {
		return nil, frameErr(ErrPayloadTooLarge, raw)
	}
	if len(raw) != minLen+declared {
		return nil, frameErr(ErrLengthMismatch, raw)
	}
	body := raw[1 : RespHeaderLen+declared]
	if !cs.Verify(body, raw[RespHeaderLen+declared:len(raw)-1]) {
		return nil, frameErr(ErrChecksumMismatch, raw)
	}
	resp := &Response{
		Opcode: raw[1],
		Status: raw[2],
	}
	if declared > 0 {
		resp.Payload = append([]byte(nil), raw[RespHeaderLen:RespHeaderLen+declared]...)
	}
	return resp, nil
}

// ResponseLength returns the total on-wire length of a response frame whose
// first RespHeaderLen bytes are in header. The session uses it to know how
// many more bytes to read once the header has been assembled.
func ResponseLength(header []byte, cs Checksum) (int, error) {
	if len(header) < RespHeaderLen {
		return 0, frameErr(ErrFrameTooShort, header)
	}
	if header[0] != StartByte {
		return 0, frameErr(ErrInvalidStartByte, header)
	}
	declared := int(binary.LittleEndian.Uint16(header[3:5]))
	if declared > MaxPayloadLen {
		return 0, frameErr(ErrPayloadTooLarge, header)
	}
	return RespHeaderLen + declared + cs.Size() + 1, nil
}
