// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import "encoding/binary"

// Opcode identifies a logical operation on the wire.
type Opcode byte

// The Atlas3 command set.
const (
	OpGetVersion        Opcode = 0x01
	OpGetHostCardInfo   Opcode = 0x02
	OpGetPortStatus     Opcode = 0x03
	OpRunBist           Opcode = 0x04
	OpGetErrorCounters  Opcode = 0x05
	OpClearErrorCounter Opcode = 0x06

	OpGetMode        Opcode = 0x10
	OpSetMode        Opcode = 0x11
	OpGetSpread      Opcode = 0x12
	OpSetSpread      Opcode = 0x13
	OpGetClockStatus Opcode = 0x14
	OpSetClockOutput Opcode = 0x15
	OpGetFlitStatus  Opcode = 0x16
	OpSetFlitMode    Opcode = 0x17
	OpResetConnector Opcode = 0x18

	OpReadPortRegisters Opcode = 0x20
	OpReadFlash         Opcode = 0x21

	OpI2CRead  Opcode = 0x30
	OpI2CWrite Opcode = 0x31
)

func (op Opcode) String() string {
	switch op {
	case OpGetVersion:
		return "GetVersion"
	case OpGetHostCardInfo:
		return "GetHostCardInfo"
	case OpGetPortStatus:
		return "GetPortStatus"
	case OpRunBist:
		return "RunBist"
	case OpGetErrorCounters:
		return "GetErrorCounters"
	case OpClearErrorCounter:
		return "ClearErrorCounters"
	case OpGetMode:
		return "GetMode"
	case OpSetMode:
		return "SetMode"
	case OpGetSpread:
		return "GetSpread"
	case OpSetSpread:
		return "SetSpread"
	case OpGetClockStatus:
		return "GetClockStatus"
	case OpSetClockOutput:
		return "SetClockOutput"
	case OpGetFlitStatus:
		return "GetFlitStatus"
	case OpSetFlitMode:
		return "SetFlitMode"
	case OpResetConnector:
		return "ResetConnector"
	case OpReadPortRegisters:
		return "ReadPortRegisters"
	case OpReadFlash:
		return "ReadFlash"
	case OpI2CRead:
		return "I2CRead"
	case OpI2CWrite:
		return "I2CWrite"
	default:
		return "Unknown"
	}
}

// Wire limits fixed by the device firmware.
const (
	// RegistersPerFrame is the register read window capacity of one frame.
	RegistersPerFrame = 16

	// PortRegisterWindow is the size of a port's config register dump.
	PortRegisterWindow = 64

	// ConnectorMax is the highest valid connector id (CON0..CON7).
	ConnectorMax = 7

	// FlitAllStations selects every station in a SetFlitMode request.
	FlitAllStations byte = 0xFF
)

// I2CChannel selects one leg of a connector's I2C mux.
type I2CChannel byte

const (
	I2CChannelA I2CChannel = 0
	I2CChannelB I2CChannel = 1
)

// flitStations is the fixed station set carrying flit-capable ports.
var flitStations = [4]byte{2, 5, 7, 8}

func validStation(station byte) bool {
	for _, s := range flitStations {
		if s == station {
			return true
		}
	}
	return false
}

// Request builders. Each returns the raw parameter bytes for one opcode;
// framing, checksumming and transmission belong to the session. Builders
// assume already-validated inputs, the facade validates before building.

func buildSetModeParams(mode OperationMode) []byte { return []byte{byte(mode)} }

func buildSetSpreadParams(mode SpreadMode) []byte { return []byte{byte(mode)} }

func buildSetClockOutputParams(enable bool) []byte {
	if enable {
		return []byte{1}
	}
	return []byte{0}
}

func buildSetFlitModeParams(station byte, disable bool) []byte {
	d := byte(0)
	if disable {
		d = 1
	}
	return []byte{station, d}
}

func buildResetConnectorParams(connector byte) []byte { return []byte{connector} }

func buildReadPortRegistersParams(port byte, base uint32, count byte) []byte {
	params := make([]byte, 0, 6)
	params = append(params, port)
	params = binary.LittleEndian.AppendUint32(params, base)
	return append(params, count)
}

func buildReadFlashParams(addr uint32, count byte) []byte {
	params := make([]byte, 0, 5)
	params = binary.LittleEndian.AppendUint32(params, addr)
	return append(params, count)
}

func buildI2CReadParams(connector byte, channel I2CChannel, addr, register, readLen byte) []byte {
	return []byte{connector, byte(channel), addr, register, readLen}
}

func buildI2CWriteParams(connector byte, channel I2CChannel, addr, register byte, data []byte) []byte {
	params := make([]byte, 0, 5+len(data))
	params = append(params, connector, byte(channel), addr, register, byte(len(data)))
	return append(params, data...)
}
