// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package frame

// CRC-16-CCITT parameters.
const (
	crc16Polynomial   = 0x1021
	crc16InitialValue = 0xFFFF
	crc16HighBitMask  = 0x8000
)

// Checksum is the frame integrity strategy. The exact algorithm used by the
// Atlas3 wire is a configuration point; callers pick a strategy once per
// session and both sides of the frame codec apply it consistently.
type Checksum interface {
	// Size is the number of checksum bytes appended to a frame.
	Size() int
	// Sum computes the checksum over the covered bytes (opcode through the
	// end of the payload, start and end markers excluded).
	Sum(data []byte) []byte
	// Verify reports whether got matches the checksum of data.
	Verify(data, got []byte) bool
	// Name identifies the strategy for logs and configuration files.
	Name() string
}

// Sum8 is the default strategy: sum all covered bytes, then two's
// complement, truncated to 8 bits.
type Sum8 struct{}

func (Sum8) Size() int    { return 1 }
func (Sum8) Name() string { return "sum8" }

func (Sum8) Sum(data []byte) []byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return []byte{^sum + 1}
}

func (s Sum8) Verify(data, got []byte) bool {
	return len(got) == 1 && got[0] == s.Sum(data)[0]
}

// CRC16 is the CRC-16-CCITT strategy, appended little-endian. No final XOR.
type CRC16 struct{}

func (CRC16) Size() int    { return 2 }
func (CRC16) Name() string { return "crc16" }

func (CRC16) Sum(data []byte) []byte {
	crc := uint16(crc16InitialValue)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&crc16HighBitMask != 0 {
				crc = (crc << 1) ^ crc16Polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return []byte{byte(crc), byte(crc >> 8)}
}

func (c CRC16) Verify(data, got []byte) bool {
	want := c.Sum(data)
	return len(got) == 2 && got[0] == want[0] && got[1] == want[1]
}

// None disables integrity checking. The checksum slot is still present on
// the wire (a single 0x00 byte) so frame lengths stay predictable.
type None struct{}

func (None) Size() int                 { return 1 }
func (None) Name() string              { return "none" }
func (None) Sum([]byte) []byte         { return []byte{0x00} }
func (None) Verify(_, got []byte) bool { return len(got) == 1 }

// ChecksumByName maps a configuration string to a strategy. Unknown names
// fall back to the default Sum8.
func ChecksumByName(name string) Checksum {
	switch name {
	case "crc16":
		return CRC16{}
	case "none":
		return None{}
	default:
		return Sum8{}
	}
}
