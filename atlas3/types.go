// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import "fmt"

// Version is the card identification block returned by GetVersion.
type Version struct {
	// Company is the vendor name reported by the MCU
	Company string

	// Model is the product model string
	Model string

	// SerialNumber is the card serial, nil when the device does not report one
	SerialNumber *string

	// MCUVersion is the management controller firmware version
	MCUVersion string

	// SBRVersion is the switch boot ROM version
	SBRVersion string
}

// Thermal holds the switch temperature reading.
type Thermal struct {
	// SwitchTemperatureCelsius is reported in tenths of a degree on the wire
	SwitchTemperatureCelsius float64
}

// Fan holds the fan tachometer reading.
type Fan struct {
	SwitchFanRPM int
}

// Power holds the card input power readings.
type Power struct {
	// PowerVoltage is the input rail voltage in volts
	PowerVoltage float64
	// LoadCurrent is the input current in amperes
	LoadCurrent float64
	// LoadPower is the load in watts. Device-reported when the firmware
	// supplies it, otherwise derived as PowerVoltage * LoadCurrent.
	LoadPower float64
}

// Voltages holds the four monitored supply rails, in volts.
type Voltages struct {
	Voltage1V5    float64
	VoltageVDD    float64
	VoltageVDDA   float64
	VoltageVDDA12 float64
}

// HostCardStatus is the full telemetry snapshot returned by GetHostCardInfo.
// All fields are decoded fixed-point values; the snapshot is immutable and
// reflects the device at the moment of the round-trip.
type HostCardStatus struct {
	Thermal  Thermal
	Fan      Fan
	Power    Power
	Voltages Voltages
}

// LinkStatus is the per-port link state.
type LinkStatus byte

// Known link states. Firmware revisions may report values outside this set;
// those decode to a status for which Known() is false rather than failing.
const (
	LinkIdle  LinkStatus = 0
	LinkUp    LinkStatus = 1
	LinkError LinkStatus = 2
)

// Known reports whether the status is one this driver release recognizes.
func (s LinkStatus) Known() bool {
	return s == LinkIdle || s == LinkUp || s == LinkError
}

func (s LinkStatus) String() string {
	switch s {
	case LinkIdle:
		return "Idle"
	case LinkUp:
		return "Linked"
	case LinkError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(s))
	}
}

// LinkSpeed is the negotiated PCIe generation.
type LinkSpeed byte

const (
	SpeedGen1 LinkSpeed = 1
	SpeedGen2 LinkSpeed = 2
	SpeedGen3 LinkSpeed = 3
	SpeedGen4 LinkSpeed = 4
	SpeedGen5 LinkSpeed = 5
	SpeedGen6 LinkSpeed = 6
)

// Known reports whether the speed is one this driver release recognizes.
func (s LinkSpeed) Known() bool { return s >= SpeedGen1 && s <= SpeedGen6 }

func (s LinkSpeed) String() string {
	if s.Known() {
		return fmt.Sprintf("Gen%d", byte(s))
	}
	return fmt.Sprintf("Unknown(0x%02X)", byte(s))
}

// Port is one switch port slot. NegotiatedSpeed and NegotiatedWidth are nil
// and zero respectively on an unlinked slot: "no link" is distinct from a
// link that negotiated down.
type Port struct {
	PortNumber      int
	Status          LinkStatus
	NegotiatedSpeed *LinkSpeed
	NegotiatedWidth int
}

// IsLinked reports whether the slot carries an active link.
func (p Port) IsLinked() bool { return p.Status == LinkUp }

// PortStatusReport groups all port slots by physical category, in the order
// the device reports them.
type PortStatusReport struct {
	ChipVersion   string
	UpstreamPorts []Port
	ExtMCIOPorts  []Port
	IntMCIOPorts  []Port
	StraddlePorts []Port
}

// BistDevice is one sub-device result from the built-in self test.
type BistDevice struct {
	DeviceName string
	Channel    byte
	Address    byte
	Passed     bool
}

// BistReport is the aggregate self-test outcome.
type BistReport struct {
	Devices []BistDevice
}

// AllPassed reports whether every probed device passed. An empty report
// passes vacuously.
func (r BistReport) AllPassed() bool {
	for _, d := range r.Devices {
		if !d.Passed {
			return false
		}
	}
	return true
}

// PortErrorCounter is one port's PCIe error counters.
type PortErrorCounter struct {
	PortNumber int
	BadTLP     uint32
	BadDLLP    uint32
	FlitError  uint32
}

// HasErrors reports whether any of the port's counters is nonzero.
func (c PortErrorCounter) HasErrors() bool {
	return c.BadTLP != 0 || c.BadDLLP != 0 || c.FlitError != 0
}

// ErrorCounterReport holds per-port counters in device order.
type ErrorCounterReport struct {
	Counters []PortErrorCounter
}

// TotalErrors sums every counter of every port.
func (r ErrorCounterReport) TotalErrors() uint64 {
	var total uint64
	for _, c := range r.Counters {
		total += uint64(c.BadTLP) + uint64(c.BadDLLP) + uint64(c.FlitError)
	}
	return total
}

// OperationMode selects the card clocking/precoding behavior. A new mode
// takes effect only after the card is reset.
type OperationMode byte

const (
	// Mode1 is common clock with precoding enabled
	Mode1 OperationMode = 1
	// Mode2 is common clock with precoding disabled
	Mode2 OperationMode = 2
	// Mode3 is SRIS clocking with precoding enabled
	Mode3 OperationMode = 3
	// Mode4 is SRIS clocking with precoding disabled
	Mode4 OperationMode = 4
)

// Known reports whether the mode is in the configured enumeration.
func (m OperationMode) Known() bool { return m >= Mode1 && m <= Mode4 }

func (m OperationMode) String() string {
	if m.Known() {
		return fmt.Sprintf("Mode %d", byte(m))
	}
	return fmt.Sprintf("Unknown(0x%02X)", byte(m))
}

// SpreadMode selects clock spread spectrum behavior.
type SpreadMode byte

const (
	SpreadOff      SpreadMode = 0
	SpreadDown2500 SpreadMode = 1
	SpreadDown5000 SpreadMode = 2
)

// Known reports whether the spread setting is in the configured enumeration.
func (m SpreadMode) Known() bool { return m <= SpreadDown5000 }

// Enabled reports whether spread spectrum is active.
func (m SpreadMode) Enabled() bool { return m != SpreadOff }

func (m SpreadMode) String() string {
	switch m {
	case SpreadOff:
		return "Off"
	case SpreadDown2500:
		return "Down -2500ppm"
	case SpreadDown5000:
		return "Down -5000ppm"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(m))
	}
}

// ClockStatus reports clock output enablement per connector group.
type ClockStatus struct {
	StraddleEnabled bool
	ExtMCIOEnabled  bool
	IntMCIOEnabled  bool
}

// FlitStatus reports flit-mode disablement per switch station. A set flag
// means flit mode is disabled on that station.
type FlitStatus struct {
	Station2 bool
	Station5 bool
	Station7 bool
	Station8 bool
}

// RegisterDump is an ordered register window read from the switch or flash.
// Addrs preserves ascending address order; Values maps address to the 32-bit
// word read there.
type RegisterDump struct {
	Addrs  []uint32
	Values map[uint32]uint32
}

// I2CResult holds the bytes returned by an I2C read. A write acknowledgement
// carries an empty Data.
type I2CResult struct {
	Data []byte
}
