// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Status decoders: pure payload-to-value transforms, one per response shape.
// A payload shorter than the operation's fixed layout is a DecodeError.
// Enumerated fields outside the known set decode to their raw value so newer
// firmware never hard-fails the driver.

// hostCardInfoLen is temp(2) + fan(2) + voltage(2) + current(2) + power(4)
// + four rails(8).
const hostCardInfoLen = 20

func decodeVersion(payload []byte) (*Version, error) {
	fields := bytes.Split(payload, []byte{0})
	// trailing NUL of the last field yields one empty trailing element
	if len(fields) > 0 && len(fields[len(fields)-1]) == 0 {
		fields = fields[:len(fields)-1]
	}
	if len(fields) != 5 {
		return nil, decodeErr(OpGetVersion.String(),
			fmt.Sprintf("expected 5 string fields, got %d", len(fields)), payload)
	}
	v := &Version{
		Company:    string(fields[0]),
		Model:      string(fields[1]),
		MCUVersion: string(fields[3]),
		SBRVersion: string(fields[4]),
	}
	if len(fields[2]) > 0 {
		serial := string(fields[2])
		v.SerialNumber = &serial
	}
	return v, nil
}

func decodeHostCardStatus(payload []byte) (*HostCardStatus, error) {
	if len(payload) < hostCardInfoLen {
		return nil, decodeErr(OpGetHostCardInfo.String(),
			fmt.Sprintf("payload %d bytes, need %d", len(payload), hostCardInfoLen), payload)
	}
	temp := int16(binary.LittleEndian.Uint16(payload[0:2]))
	fan := binary.LittleEndian.Uint16(payload[2:4])
	voltageMV := binary.LittleEndian.Uint16(payload[4:6])
	currentMA := binary.LittleEndian.Uint16(payload[6:8])
	powerMW := binary.LittleEndian.Uint32(payload[8:12])

	st := &HostCardStatus{
		Thermal: Thermal{SwitchTemperatureCelsius: float64(temp) / 10},
		Fan:     Fan{SwitchFanRPM: int(fan)},
		Power: Power{
			PowerVoltage: float64(voltageMV) / 1000,
			LoadCurrent:  float64(currentMA) / 1000,
		},
		Voltages: Voltages{
			Voltage1V5:    float64(binary.LittleEndian.Uint16(payload[12:14])) / 1000,
			VoltageVDD:    float64(binary.LittleEndian.Uint16(payload[14:16])) / 1000,
			VoltageVDDA:   float64(binary.LittleEndian.Uint16(payload[16:18])) / 1000,
			VoltageVDDA12: float64(binary.LittleEndian.Uint16(payload[18:20])) / 1000,
		},
	}
	// Pre-Gen6 firmware reports 0 in the power word; the host derives it.
	if powerMW != 0 {
		st.Power.LoadPower = float64(powerMW) / 1000
	} else {
		st.Power.LoadPower = st.Power.PowerVoltage * st.Power.LoadCurrent
	}
	return st, nil
}

func decodePortStatus(payload []byte) (*PortStatusReport, error) {
	op := OpGetPortStatus.String()
	if len(payload) < 1 {
		return nil, decodeErr(op, "empty payload", payload)
	}
	chipLen := int(payload[0])
	if len(payload) < 1+chipLen+4 {
		return nil, decodeErr(op, "payload shorter than chip version header", payload)
	}
	report := &PortStatusReport{
		ChipVersion: string(payload[1 : 1+chipLen]),
	}
	counts := payload[1+chipLen : 1+chipLen+4]
	rest := payload[1+chipLen+4:]

	total := int(counts[0]) + int(counts[1]) + int(counts[2]) + int(counts[3])
	if len(rest) < total*4 {
		return nil, decodeErr(op,
			fmt.Sprintf("payload carries %d port bytes, need %d", len(rest), total*4), payload)
	}

	next := func(n int) []Port {
		ports := make([]Port, 0, n)
		for i := 0; i < n; i++ {
			ports = append(ports, decodePortSlot(rest[:4]))
			rest = rest[4:]
		}
		return ports
	}
	report.UpstreamPorts = next(int(counts[0]))
	report.ExtMCIOPorts = next(int(counts[1]))
	report.IntMCIOPorts = next(int(counts[2]))
	report.StraddlePorts = next(int(counts[3]))
	return report, nil
}

// decodePortSlot decodes one 4-byte port entry. Speed and width are only
// meaningful on a linked slot; an idle slot keeps them absent regardless of
// what the firmware left in those bytes.
func decodePortSlot(b []byte) Port {
	p := Port{
		PortNumber: int(b[0]),
		Status:     LinkStatus(b[1]),
	}
	if p.Status == LinkUp {
		speed := LinkSpeed(b[2])
		p.NegotiatedSpeed = &speed
		p.NegotiatedWidth = int(b[3])
	}
	return p
}

func decodeBistReport(payload []byte) (*BistReport, error) {
	op := OpRunBist.String()
	if len(payload) < 1 {
		return nil, decodeErr(op, "empty payload", payload)
	}
	count := int(payload[0])
	rest := payload[1:]
	report := &BistReport{Devices: make([]BistDevice, 0, count)}
	for i := 0; i < count; i++ {
		if len(rest) < 1 {
			return nil, decodeErr(op, fmt.Sprintf("truncated at device %d", i), payload)
		}
		nameLen := int(rest[0])
		if len(rest) < 1+nameLen+3 {
			return nil, decodeErr(op, fmt.Sprintf("truncated at device %d", i), payload)
		}
		report.Devices = append(report.Devices, BistDevice{
			DeviceName: string(rest[1 : 1+nameLen]),
			Channel:    rest[1+nameLen],
			Address:    rest[1+nameLen+1],
			Passed:     rest[1+nameLen+2] != 0,
		})
		rest = rest[1+nameLen+3:]
	}
	return report, nil
}

// counterEntryLen is port(1) + badTLP(4) + badDLLP(4) + flitErr(4).
const counterEntryLen = 13

func decodeErrorCounters(payload []byte) (*ErrorCounterReport, error) {
	op := OpGetErrorCounters.String()
	if len(payload) < 1 {
		return nil, decodeErr(op, "empty payload", payload)
	}
	count := int(payload[0])
	rest := payload[1:]
	if len(rest) < count*counterEntryLen {
		return nil, decodeErr(op,
			fmt.Sprintf("payload carries %d counter bytes, need %d", len(rest), count*counterEntryLen), payload)
	}
	report := &ErrorCounterReport{Counters: make([]PortErrorCounter, 0, count)}
	for i := 0; i < count; i++ {
		e := rest[:counterEntryLen]
		report.Counters = append(report.Counters, PortErrorCounter{
			PortNumber: int(e[0]),
			BadTLP:     binary.LittleEndian.Uint32(e[1:5]),
			BadDLLP:    binary.LittleEndian.Uint32(e[5:9]),
			FlitError:  binary.LittleEndian.Uint32(e[9:13]),
		})
		rest = rest[counterEntryLen:]
	}
	return report, nil
}

func decodeMode(payload []byte) (OperationMode, error) {
	if len(payload) < 1 {
		return 0, decodeErr(OpGetMode.String(), "empty payload", payload)
	}
	return OperationMode(payload[0]), nil
}

func decodeSpread(payload []byte) (SpreadMode, error) {
	if len(payload) < 1 {
		return 0, decodeErr(OpGetSpread.String(), "empty payload", payload)
	}
	return SpreadMode(payload[0]), nil
}

func decodeClockStatus(payload []byte) (*ClockStatus, error) {
	if len(payload) < 1 {
		return nil, decodeErr(OpGetClockStatus.String(), "empty payload", payload)
	}
	b := payload[0]
	return &ClockStatus{
		StraddleEnabled: b&0x01 != 0,
		ExtMCIOEnabled:  b&0x02 != 0,
		IntMCIOEnabled:  b&0x04 != 0,
	}, nil
}

func decodeFlitStatus(payload []byte) (*FlitStatus, error) {
	if len(payload) < 1 {
		return nil, decodeErr(OpGetFlitStatus.String(), "empty payload", payload)
	}
	b := payload[0]
	return &FlitStatus{
		Station2: b&0x01 != 0,
		Station5: b&0x02 != 0,
		Station7: b&0x04 != 0,
		Station8: b&0x08 != 0,
	}, nil
}

// registerEntryLen is addr(4) + value(4).
const registerEntryLen = 8

// decodeRegisterEntries parses one response window of register reads into
// dump, preserving the device's address order.
func decodeRegisterEntries(op Opcode, payload []byte, want int, dump *RegisterDump) error {
	if len(payload) < want*registerEntryLen {
		return decodeErr(op.String(),
			fmt.Sprintf("payload carries %d register bytes, need %d", len(payload), want*registerEntryLen), payload)
	}
	for i := 0; i < want; i++ {
		e := payload[i*registerEntryLen:]
		addr := binary.LittleEndian.Uint32(e[0:4])
		value := binary.LittleEndian.Uint32(e[4:8])
		if _, seen := dump.Values[addr]; !seen {
			dump.Addrs = append(dump.Addrs, addr)
		}
		dump.Values[addr] = value
	}
	return nil
}

func decodeI2CRead(payload []byte, want int) (*I2CResult, error) {
	if len(payload) < want {
		return nil, decodeErr(OpI2CRead.String(),
			fmt.Sprintf("device returned %d bytes, requested %d", len(payload), want), payload)
	}
	return &I2CResult{Data: append([]byte(nil), payload[:want]...)}, nil
}
