// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package simulator emulates the Atlas3 management MCU behind an
// io.ReadWriteCloser. It answers the same wire protocol the real card
// speaks, so the driver can run end to end without hardware: pass a
// simulator Device to atlas3.NewDevice.
package simulator

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/serialcables/atlas3-go/clog"
	"github.com/serialcables/atlas3-go/frame"
)

// Opcodes and status codes of the Atlas3 wire protocol. Kept local so the
// simulator stays decoupled from the driver package it is used to test.
const (
	opGetVersion        = 0x01
	opGetHostCardInfo   = 0x02
	opGetPortStatus     = 0x03
	opRunBist           = 0x04
	opGetErrorCounters  = 0x05
	opClearErrorCounter = 0x06
	opGetMode           = 0x10
	opSetMode           = 0x11
	opGetSpread         = 0x12
	opSetSpread         = 0x13
	opGetClockStatus    = 0x14
	opSetClockOutput    = 0x15
	opGetFlitStatus     = 0x16
	opSetFlitMode       = 0x17
	opResetConnector    = 0x18
	opReadPortRegisters = 0x20
	opReadFlash         = 0x21
	opI2CRead           = 0x30
	opI2CWrite          = 0x31

	statusSuccess      = 0x00
	statusBadCommand   = 0x01
	statusBadParameter = 0x02
)

// PortState is one simulated switch port slot.
type PortState struct {
	Number byte
	Link   byte // 0 idle, 1 up, 2 error
	Speed  byte
	Width  byte
}

// BistDevice is one simulated self-test target.
type BistDevice struct {
	Name    string
	Channel byte
	Address byte
	Passed  bool
}

// Counter is one port's simulated error counters.
type Counter struct {
	Port    byte
	BadTLP  uint32
	BadDLLP uint32
	FlitErr uint32
}

// State is the card model the simulator serves from. Zero values are valid;
// DefaultState fills in a plausible card.
type State struct {
	Company      string
	Model        string
	SerialNumber string
	MCUVersion   string
	SBRVersion   string

	TemperatureTenths int16
	FanRPM            uint16
	VoltageMV         uint16
	CurrentMA         uint16
	PowerMW           uint32
	RailsMV           [4]uint16

	ChipVersion string
	Upstream    []PortState
	ExtMCIO     []PortState
	IntMCIO     []PortState
	Straddle    []PortState

	BistDevices []BistDevice
	Counters    []Counter

	Mode      byte
	Spread    byte
	ClockMask byte // bit0 straddle, bit1 ext mcio, bit2 int mcio
	FlitMask  byte // set bit = flit disabled; bit0 st2, bit1 st5, bit2 st7, bit3 st8

	Flash map[uint32]uint32
	// I2C maps "connector/channel/address" devices to their register files.
	I2C map[I2CKey][]byte
}

// I2CKey addresses one simulated I2C device.
type I2CKey struct {
	Connector byte
	Channel   byte
	Address   byte
}

// DefaultState returns a card with an upstream x16 Gen6 link, a populated
// straddle connector and passing self-test devices.
func DefaultState() State {
	return State{
		Company:      "SerialCables",
		Model:        "Atlas3",
		SerialNumber: "AT3-SIM-001",
		MCUVersion:   "1.2.3",
		SBRVersion:   "4.5.6",

		TemperatureTenths: 425,
		FanRPM:            6800,
		VoltageMV:         12100,
		CurrentMA:         2500,
		PowerMW:           30250,
		RailsMV:           [4]uint16{1498, 890, 902, 1205},

		ChipVersion: "B0",
		Upstream:    []PortState{{Number: 32, Link: 1, Speed: 6, Width: 16}},
		ExtMCIO: []PortState{
			{Number: 0}, {Number: 4},
		},
		IntMCIO: []PortState{{Number: 8}},
		Straddle: []PortState{
			{Number: 12, Link: 1, Speed: 5, Width: 8},
		},

		BistDevices: []BistDevice{
			{Name: "PM8551", Channel: 0, Address: 0xB0, Passed: true},
			{Name: "TMP451", Channel: 1, Address: 0x4C, Passed: true},
			{Name: "INA233", Channel: 1, Address: 0x40, Passed: true},
			{Name: "EEPROM", Channel: 0, Address: 0xA0, Passed: true},
		},
		Counters: []Counter{
			{Port: 32}, {Port: 0}, {Port: 12},
		},

		Mode:      1,
		ClockMask: 0x07,
	}
}

// Device is the simulated card. It satisfies io.ReadWriteCloser: Write
// feeds it request frames, Read drains the queued response bytes. An empty
// queue reads as zero bytes, the way a polled serial port reports an
// expired timeout.
type Device struct {
	clog.Clog

	mu      sync.Mutex
	state   State
	cs      frame.Checksum
	pending bytes.Buffer
	closed  bool
}

// New creates a simulated card serving the given state with the sum8
// checksum strategy.
func New(state State) *Device {
	return NewWithChecksum(state, frame.Sum8{})
}

// NewWithChecksum creates a simulated card using the given frame integrity
// strategy. It must match the driver's configured strategy.
func NewWithChecksum(state State, cs frame.Checksum) *Device {
	sim := &Device{
		Clog:  clog.NewLogger("atlas3-sim => "),
		state: state,
		cs:    cs,
	}
	if sim.state.Flash == nil {
		sim.state.Flash = make(map[uint32]uint32)
	}
	if sim.state.I2C == nil {
		sim.state.I2C = make(map[I2CKey][]byte)
	}
	return sim
}

// State returns a snapshot of the simulated card state.
func (sf *Device) State() State {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.state
}

// Write accepts one complete request frame and queues the response.
func (sf *Device) Write(p []byte) (int, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.closed {
		return 0, errors.New("simulator: write on closed device")
	}

	opcode, params, err := frame.DecodeRequest(p, sf.cs)
	if err != nil {
		// a real card stays silent on garbage and lets the host time out
		sf.Warn("dropping undecodable request: %v", err)
		return len(p), nil
	}
	status, payload := sf.dispatch(opcode, params)
	sf.Debug("op 0x%02X status 0x%02X -> %d payload byte(s)", opcode, status, len(payload))

	raw, err := frame.EncodeResponse(opcode, status, payload, sf.cs)
	if err != nil {
		return len(p), err
	}
	sf.pending.Write(raw)
	return len(p), nil
}

// Read drains queued response bytes, reporting an empty queue as a
// zero-byte read after a short poll pause.
func (sf *Device) Read(p []byte) (int, error) {
	sf.mu.Lock()
	if sf.closed {
		sf.mu.Unlock()
		return 0, io.EOF
	}
	if sf.pending.Len() == 0 {
		sf.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n, _ := sf.pending.Read(p)
	sf.mu.Unlock()
	return n, nil
}

// Close shuts the simulated card down.
func (sf *Device) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.closed = true
	return nil
}

func (sf *Device) dispatch(opcode byte, params []byte) (byte, []byte) {
	switch opcode {
	case opGetVersion:
		return statusSuccess, sf.versionPayload()
	case opGetHostCardInfo:
		return statusSuccess, sf.hostCardPayload()
	case opGetPortStatus:
		return statusSuccess, sf.portStatusPayload()
	case opRunBist:
		return statusSuccess, sf.bistPayload()
	case opGetErrorCounters:
		return statusSuccess, sf.countersPayload()
	case opClearErrorCounter:
		for i := range sf.state.Counters {
			sf.state.Counters[i].BadTLP = 0
			sf.state.Counters[i].BadDLLP = 0
			sf.state.Counters[i].FlitErr = 0
		}
		return statusSuccess, nil
	case opGetMode:
		return statusSuccess, []byte{sf.state.Mode}
	case opSetMode:
		if len(params) != 1 || params[0] < 1 || params[0] > 4 {
			return statusBadParameter, nil
		}
		sf.state.Mode = params[0]
		return statusSuccess, nil
	case opGetSpread:
		return statusSuccess, []byte{sf.state.Spread}
	case opSetSpread:
		if len(params) != 1 || params[0] > 2 {
			return statusBadParameter, nil
		}
		sf.state.Spread = params[0]
		return statusSuccess, nil
	case opGetClockStatus:
		return statusSuccess, []byte{sf.state.ClockMask}
	case opSetClockOutput:
		if len(params) != 1 {
			return statusBadParameter, nil
		}
		if params[0] != 0 {
			sf.state.ClockMask = 0x07
		} else {
			sf.state.ClockMask = 0
		}
		return statusSuccess, nil
	case opGetFlitStatus:
		return statusSuccess, []byte{sf.state.FlitMask}
	case opSetFlitMode:
		return sf.setFlitMode(params)
	case opResetConnector:
		if len(params) != 1 || params[0] > 7 {
			return statusBadParameter, nil
		}
		return statusSuccess, nil
	case opReadPortRegisters:
		return sf.readPortRegisters(params)
	case opReadFlash:
		return sf.readFlash(params)
	case opI2CRead:
		return sf.i2cRead(params)
	case opI2CWrite:
		return sf.i2cWrite(params)
	default:
		return statusBadCommand, nil
	}
}

func (sf *Device) versionPayload() []byte {
	var b []byte
	for _, f := range []string{
		sf.state.Company, sf.state.Model, sf.state.SerialNumber,
		sf.state.MCUVersion, sf.state.SBRVersion,
	} {
		b = append(b, f...)
		b = append(b, 0)
	}
	return b
}

func (sf *Device) hostCardPayload() []byte {
	b := make([]byte, 20)
	binary.LittleEndian.PutUint16(b[0:2], uint16(sf.state.TemperatureTenths))
	binary.LittleEndian.PutUint16(b[2:4], sf.state.FanRPM)
	binary.LittleEndian.PutUint16(b[4:6], sf.state.VoltageMV)
	binary.LittleEndian.PutUint16(b[6:8], sf.state.CurrentMA)
	binary.LittleEndian.PutUint32(b[8:12], sf.state.PowerMW)
	for i, mv := range sf.state.RailsMV {
		binary.LittleEndian.PutUint16(b[12+i*2:14+i*2], mv)
	}
	return b
}

func (sf *Device) portStatusPayload() []byte {
	b := []byte{byte(len(sf.state.ChipVersion))}
	b = append(b, sf.state.ChipVersion...)
	b = append(b,
		byte(len(sf.state.Upstream)), byte(len(sf.state.ExtMCIO)),
		byte(len(sf.state.IntMCIO)), byte(len(sf.state.Straddle)))
	for _, group := range [][]PortState{
		sf.state.Upstream, sf.state.ExtMCIO, sf.state.IntMCIO, sf.state.Straddle,
	} {
		for _, p := range group {
			b = append(b, p.Number, p.Link, p.Speed, p.Width)
		}
	}
	return b
}

func (sf *Device) bistPayload() []byte {
	b := []byte{byte(len(sf.state.BistDevices))}
	for _, d := range sf.state.BistDevices {
		b = append(b, byte(len(d.Name)))
		b = append(b, d.Name...)
		pass := byte(0)
		if d.Passed {
			pass = 1
		}
		b = append(b, d.Channel, d.Address, pass)
	}
	return b
}

func (sf *Device) countersPayload() []byte {
	b := []byte{byte(len(sf.state.Counters))}
	for _, c := range sf.state.Counters {
		b = append(b, c.Port)
		b = binary.LittleEndian.AppendUint32(b, c.BadTLP)
		b = binary.LittleEndian.AppendUint32(b, c.BadDLLP)
		b = binary.LittleEndian.AppendUint32(b, c.FlitErr)
	}
	return b
}

func (sf *Device) setFlitMode(params []byte) (byte, []byte) {
	if len(params) != 2 {
		return statusBadParameter, nil
	}
	var bit byte
	switch params[0] {
	case 0xFF:
		bit = 0x0F
	case 2:
		bit = 0x01
	case 5:
		bit = 0x02
	case 7:
		bit = 0x04
	case 8:
		bit = 0x08
	default:
		return statusBadParameter, nil
	}
	if params[1] != 0 {
		sf.state.FlitMask |= bit
	} else {
		sf.state.FlitMask &^= bit
	}
	return statusSuccess, nil
}

func (sf *Device) readPortRegisters(params []byte) (byte, []byte) {
	if len(params) != 6 {
		return statusBadParameter, nil
	}
	port := params[0]
	base := binary.LittleEndian.Uint32(params[1:5])
	count := int(params[5])
	if count == 0 || count > 16 {
		return statusBadParameter, nil
	}
	b := make([]byte, 0, count*8)
	for i := 0; i < count; i++ {
		addr := base + uint32(i)*4
		b = binary.LittleEndian.AppendUint32(b, addr)
		b = binary.LittleEndian.AppendUint32(b, registerValue(port, addr))
	}
	return statusSuccess, b
}

// registerValue fabricates a deterministic register file: the PCIe vendor
// and device id at offset 0, zeroes elsewhere seeded by port and address.
func registerValue(port byte, addr uint32) uint32 {
	if addr == 0 {
		return 0xC0101B4B
	}
	return uint32(port)<<24 ^ addr
}

func (sf *Device) readFlash(params []byte) (byte, []byte) {
	if len(params) != 5 {
		return statusBadParameter, nil
	}
	base := binary.LittleEndian.Uint32(params[0:4])
	count := int(params[4])
	if count == 0 || count > 16 {
		return statusBadParameter, nil
	}
	b := make([]byte, 0, count*8)
	for i := 0; i < count; i++ {
		addr := base + uint32(i)*4
		value, ok := sf.state.Flash[addr]
		if !ok {
			value = 0xFFFFFFFF // erased
		}
		b = binary.LittleEndian.AppendUint32(b, addr)
		b = binary.LittleEndian.AppendUint32(b, value)
	}
	return statusSuccess, b
}

func (sf *Device) i2cRead(params []byte) (byte, []byte) {
	if len(params) != 5 {
		return statusBadParameter, nil
	}
	key := I2CKey{Connector: params[0], Channel: params[1], Address: params[2]}
	register, count := int(params[3]), int(params[4])
	regs, ok := sf.state.I2C[key]
	if !ok {
		return statusBadParameter, nil // no device acknowledged
	}
	out := make([]byte, count)
	if register < len(regs) {
		copy(out, regs[register:])
	}
	return statusSuccess, out
}

func (sf *Device) i2cWrite(params []byte) (byte, []byte) {
	if len(params) < 5 {
		return statusBadParameter, nil
	}
	key := I2CKey{Connector: params[0], Channel: params[1], Address: params[2]}
	register, declared := int(params[3]), int(params[4])
	data := params[5:]
	if len(data) != declared {
		return statusBadParameter, nil
	}
	regs, ok := sf.state.I2C[key]
	if !ok {
		return statusBadParameter, nil
	}
	if need := register + len(data); need > len(regs) {
		regs = append(regs, make([]byte, need-len(regs))...)
	}
	copy(regs[register:], data)
	sf.state.I2C[key] = regs
	return statusSuccess, nil
}
