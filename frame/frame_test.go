// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package frame

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeRequestDeterministic(t *testing.T) {
	a, err := EncodeRequest(0x11, []byte{0x01}, Sum8{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := EncodeRequest(0x11, []byte{0x01}, Sum8{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("encoding not deterministic: [% X] vs [% X]", a, b)
	}
}

func TestEncodeRequestLiteral(t *testing.T) {
	// [SOP][OPCODE][LEN_L][LEN_H][PARAM][CHK][EOP] with sum8 over bytes 1..4
	got, err := EncodeRequest(0x18, []byte{0x03}, Sum8{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sum := byte(0x18 + 0x01 + 0x00 + 0x03)
	want := []byte{0x55, 0x18, 0x01, 0x00, 0x03, ^sum + 1, 0xAA}
	if !bytes.Equal(got, want) {
		t.Errorf("frame = [% X], want [% X]", got, want)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	strategies := []Checksum{Sum8{}, CRC16{}, None{}}
	cases := []struct {
		name   string
		opcode byte
		params []byte
	}{
		{"no params", 0x01, nil},
		{"one param", 0x11, []byte{0x02}},
		{"multi param", 0x30, []byte{0x02, 0x00, 0xD4, 0x00, 0x08}},
	}
	for _, cs := range strategies {
		for _, tt := range cases {
			t.Run(cs.Name()+"/"+tt.name, func(t *testing.T) {
				raw, err := EncodeRequest(tt.opcode, tt.params, cs)
				if err != nil {
					t.Fatalf("encode: %v", err)
				}
				opcode, params, err := DecodeRequest(raw, cs)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				if opcode != tt.opcode {
					t.Errorf("opcode = 0x%02X, want 0x%02X", opcode, tt.opcode)
				}
				if !bytes.Equal(params, tt.params) {
					t.Errorf("params = [% X], want [% X]", params, tt.params)
				}
			})
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	for _, cs := range []Checksum{Sum8{}, CRC16{}, None{}} {
		raw, err := EncodeResponse(0x02, 0x00, payload, cs)
		if err != nil {
			t.Fatalf("%s: encode: %v", cs.Name(), err)
		}
		resp, err := DecodeResponse(raw, cs)
		if err != nil {
			t.Fatalf("%s: decode: %v", cs.Name(), err)
		}
		if resp.Opcode != 0x02 || resp.Status != 0x00 {
			t.Errorf("%s: header = (0x%02X, 0x%02X), want (0x02, 0x00)", cs.Name(), resp.Opcode, resp.Status)
		}
		if !bytes.Equal(resp.Payload, payload) {
			t.Errorf("%s: payload = [% X], want [% X]", cs.Name(), resp.Payload, payload)
		}
	}
}

func TestDecodeResponseRejects(t *testing.T) {
	valid, _ := EncodeResponse(0x02, 0x00, []byte{0x01, 0x02}, Sum8{})

	corruptChecksum := append([]byte(nil), valid...)
	corruptChecksum[len(corruptChecksum)-2] ^= 0xFF

	badStart := append([]byte(nil), valid...)
	badStart[0] = 0x00

	badEnd := append([]byte(nil), valid...)
	badEnd[len(badEnd)-1] = 0x00

	shortLen := append([]byte(nil), valid...)
	shortLen[3] = 0x05 // declared length no longer matches

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"too short", []byte{0x55, 0x01}, ErrFrameTooShort},
		{"bad start byte", badStart, ErrInvalidStartByte},
		{"bad end byte", badEnd, ErrInvalidEndByte},
		{"length mismatch", shortLen, ErrLengthMismatch},
		{"checksum mismatch", corruptChecksum, ErrChecksumMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse(tt.raw, Sum8{})
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			var ferr *Error
			if !errors.As(err, &ferr) {
				t.Fatalf("error %T does not carry raw bytes", err)
			}
			if !bytes.Equal(ferr.Raw, tt.raw) {
				t.Errorf("diagnostic bytes = [% X], want [% X]", ferr.Raw, tt.raw)
			}
		})
	}
}

func TestResponseLength(t *testing.T) {
	raw, _ := EncodeResponse(0x03, 0x00, make([]byte, 40), Sum8{})
	total, err := ResponseLength(raw[:RespHeaderLen], Sum8{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != len(raw) {
		t.Errorf("total = %d, want %d", total, len(raw))
	}

	if _, err := ResponseLength([]byte{0x55, 0x01}, Sum8{}); !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("short header error = %v, want %v", err, ErrFrameTooShort)
	}
	if _, err := ResponseLength([]byte{0x00, 0x01, 0x00, 0x00, 0x00}, Sum8{}); !errors.Is(err, ErrInvalidStartByte) {
		t.Errorf("bad start error = %v, want %v", err, ErrInvalidStartByte)
	}
}

func TestNoneSkipsVerification(t *testing.T) {
	raw, _ := EncodeResponse(0x01, 0x00, []byte{0x42}, None{})
	raw[len(raw)-2] = 0x77 // garbage in the checksum slot
	if _, err := DecodeResponse(raw, None{}); err != nil {
		t.Errorf("none strategy rejected frame: %v", err)
	}
}
