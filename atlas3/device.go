// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/serialcables/atlas3-go/clog"
)

// AllStations targets every flit-capable station in SetFlitMode.
const AllStations = -1

// Device is the user-facing handle for one Atlas3 host adapter card. It owns
// a transport session over the card's serial management channel and maps
// each high-level operation onto one or more protocol round-trips.
//
// All methods are safe for concurrent use; the underlying session serializes
// wire access so requests never interleave.
type Device struct {
	clog.Clog
	cfg  Config
	sess *session
}

// Open opens the configured serial port and returns a Device bound to it.
//
// Example:
//
//	card, err := atlas3.Open(atlas3.NewOption().SetAddress("/dev/ttyUSB0"))
//	if err != nil { ... }
//	defer card.Close()
func Open(o *Option) (*Device, error) {
	opt := *o
	if err := opt.config.Valid(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opt.config.Serial.BaudRate,
		DataBits: opt.config.Serial.DataBits,
		Parity:   opt.config.Serial.Parity,
		StopBits: opt.config.Serial.StopBits,
	}
	port, err := serial.Open(opt.config.Serial.Address, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", opt.config.Serial.Address, err)
	}
	if err := port.SetReadTimeout(opt.config.Serial.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", opt.config.Serial.Address, err)
	}
	return newDevice(port, opt), nil
}

// NewDevice wraps an already-open channel. Intended for tests and for
// embedders that tunnel the management protocol over something other than a
// local serial port. The channel's Read must honor a poll timeout by
// returning a zero-byte read.
func NewDevice(port io.ReadWriteCloser, o *Option) (*Device, error) {
	opt := *o
	opt.config.Serial.Address = "external"
	if err := opt.config.Valid(); err != nil {
		return nil, err
	}
	return newDevice(port, opt), nil
}

func newDevice(port io.ReadWriteCloser, opt Option) *Device {
	log := clog.NewLogger(fmt.Sprintf("atlas3 [%s] => ", opt.config.Serial.Address))
	log.LogMode(opt.logMode)
	return &Device{
		Clog: log,
		cfg:  opt.config,
		sess: newSession(port, opt.config.checksum(), opt.config.RetryLimit, opt.config.Serial.ReadTimeout, log),
	}
}

// Close releases the serial channel. The Device is unusable afterwards.
func (sf *Device) Close() error {
	return sf.sess.close()
}

// SetLogMode enables or disables logging output.
func (sf *Device) SetLogMode(enable bool) {
	sf.Clog.LogMode(enable)
}

// exec performs one round-trip and applies the checks shared by every
// operation: the response must echo the request opcode and carry a success
// status before its payload is handed to a decoder.
func (sf *Device) exec(op Opcode, params []byte, timeout time.Duration) ([]byte, error) {
	resp, err := sf.sess.execute(op, params, timeout)
	if err != nil {
		return nil, err
	}
	if resp.Opcode != byte(op) {
		return nil, decodeErr(op.String(),
			fmt.Sprintf("response opcode 0x%02X does not match request", resp.Opcode), resp.Payload)
	}
	if resp.Status != StatusSuccess {
		return nil, &ConfigurationError{Op: op.String(), Status: resp.Status}
	}
	return resp.Payload, nil
}

// GetVersion reads the card identification block.
func (sf *Device) GetVersion() (*Version, error) {
	payload, err := sf.exec(OpGetVersion, nil, sf.cfg.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	return decodeVersion(payload)
}

// GetHostCardInfo reads the thermal, fan, power and voltage rail telemetry.
func (sf *Device) GetHostCardInfo() (*HostCardStatus, error) {
	payload, err := sf.exec(OpGetHostCardInfo, nil, sf.cfg.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	return decodeHostCardStatus(payload)
}

// GetPortStatus reads the link state of every port, grouped by category in
// device order.
func (sf *Device) GetPortStatus() (*PortStatusReport, error) {
	payload, err := sf.exec(OpGetPortStatus, nil, sf.cfg.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	return decodePortStatus(payload)
}

// RunBist triggers the built-in self test and blocks until the device
// reports per-device results or the BIST timeout elapses.
func (sf *Device) RunBist() (*BistReport, error) {
	payload, err := sf.exec(OpRunBist, nil, sf.cfg.BistTimeout)
	if err != nil {
		return nil, err
	}
	return decodeBistReport(payload)
}

// GetErrorCounters reads the per-port PCIe error counters.
func (sf *Device) GetErrorCounters() (*ErrorCounterReport, error) {
	payload, err := sf.exec(OpGetErrorCounters, nil, sf.cfg.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	return decodeErrorCounters(payload)
}

// ClearErrorCounters zeroes every port's error counters.
func (sf *Device) ClearErrorCounters() error {
	_, err := sf.exec(OpClearErrorCounter, nil, sf.cfg.ResponseTimeout)
	return err
}

// GetMode reads the configured operation mode.
func (sf *Device) GetMode() (OperationMode, error) {
	payload, err := sf.exec(OpGetMode, nil, sf.cfg.ResponseTimeout)
	if err != nil {
		return 0, err
	}
	return decodeMode(payload)
}

// SetMode configures the operation mode. The new mode takes effect after
// the next card reset; links already up keep their current behavior.
func (sf *Device) SetMode(mode OperationMode) error {
	if !mode.Known() {
		return validationErr("mode", byte(mode), "must be 1..4")
	}
	_, err := sf.exec(OpSetMode, buildSetModeParams(mode), sf.cfg.ResponseTimeout)
	return err
}

// GetSpread reads the clock spread spectrum setting.
func (sf *Device) GetSpread() (SpreadMode, error) {
	payload, err := sf.exec(OpGetSpread, nil, sf.cfg.ResponseTimeout)
	if err != nil {
		return 0, err
	}
	return decodeSpread(payload)
}

// SetSpread configures clock spread spectrum.
func (sf *Device) SetSpread(mode SpreadMode) error {
	if !mode.Known() {
		return validationErr("spread mode", byte(mode), "must be off, down-2500ppm or down-5000ppm")
	}
	_, err := sf.exec(OpSetSpread, buildSetSpreadParams(mode), sf.cfg.ResponseTimeout)
	return err
}

// GetClockStatus reads clock output enablement per connector group.
func (sf *Device) GetClockStatus() (*ClockStatus, error) {
	payload, err := sf.exec(OpGetClockStatus, nil, sf.cfg.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	return decodeClockStatus(payload)
}

// SetClockOutput enables or disables clock output to all connectors.
func (sf *Device) SetClockOutput(enable bool) error {
	_, err := sf.exec(OpSetClockOutput, buildSetClockOutputParams(enable), sf.cfg.ResponseTimeout)
	return err
}

// GetFlitStatus reads flit-mode disablement per station.
func (sf *Device) GetFlitStatus() (*FlitStatus, error) {
	payload, err := sf.exec(OpGetFlitStatus, nil, sf.cfg.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	return decodeFlitStatus(payload)
}

// SetFlitMode disables or re-enables flit mode on one station, or on every
// station when station is AllStations. Flit mode must be enabled for Gen6
// links. Valid stations are 2, 5, 7 and 8.
func (sf *Device) SetFlitMode(station int, disable bool) error {
	wire := FlitAllStations
	if station != AllStations {
		if station < 0 || station > 0xFF || !validStation(byte(station)) {
			return validationErr("station", station, "must be one of 2, 5, 7, 8 or AllStations")
		}
		wire = byte(station)
	}
	_, err := sf.exec(OpSetFlitMode, buildSetFlitModeParams(wire, disable), sf.cfg.ResponseTimeout)
	return err
}

// ResetConnector pulses reset on one downstream connector (CON0..CON7).
func (sf *Device) ResetConnector(connector int) error {
	if connector < 0 || connector > ConnectorMax {
		return validationErr("connector", connector, fmt.Sprintf("must be 0..%d", ConnectorMax))
	}
	_, err := sf.exec(OpResetConnector, buildResetConnectorParams(byte(connector)), sf.cfg.ResponseTimeout)
	return err
}

// ReadPortRegisters dumps the config register window of one switch port
// (port 32 is the golden finger). The window spans PortRegisterWindow
// 32-bit registers and is fetched across as many frames as the per-frame
// capacity requires.
func (sf *Device) ReadPortRegisters(port int) (*RegisterDump, error) {
	if port < 0 || port > 0xFF {
		return nil, validationErr("port", port, "must be 0..255")
	}
	dump := &RegisterDump{Values: make(map[uint32]uint32, PortRegisterWindow)}
	remaining := PortRegisterWindow
	base := uint32(0)
	for remaining > 0 {
		n := remaining
		if n > RegistersPerFrame {
			n = RegistersPerFrame
		}
		params := buildReadPortRegistersParams(byte(port), base, byte(n))
		payload, err := sf.exec(OpReadPortRegisters, params, sf.cfg.ResponseTimeout)
		if err != nil {
			return nil, err
		}
		if err := decodeRegisterEntries(OpReadPortRegisters, payload, n, dump); err != nil {
			return nil, err
		}
		base += uint32(n) * 4
		remaining -= n
	}
	return dump, nil
}

// ReadFlash reads count 32-bit words from SPI flash starting at addr.
// Requests larger than the per-frame capacity are windowed across multiple
// round-trips and merged in ascending address order; the result always
// carries exactly count entries.
func (sf *Device) ReadFlash(addr uint32, count int) (*RegisterDump, error) {
	if count < 1 {
		return nil, validationErr("count", count, "must be at least 1")
	}
	dump := &RegisterDump{Values: make(map[uint32]uint32, count)}
	remaining := count
	next := addr
	for remaining > 0 {
		n := remaining
		if n > RegistersPerFrame {
			n = RegistersPerFrame
		}
		payload, err := sf.exec(OpReadFlash, buildReadFlashParams(next, byte(n)), sf.cfg.ResponseTimeout)
		if err != nil {
			return nil, err
		}
		if err := decodeRegisterEntries(OpReadFlash, payload, n, dump); err != nil {
			return nil, err
		}
		next += uint32(n) * 4
		remaining -= n
	}
	return dump, nil
}

// I2CRead reads readBytes bytes from the device at address behind the given
// connector and mux channel ("a" or "b"), starting at the device register.
func (sf *Device) I2CRead(address byte, connector int, channel string, readBytes int, register byte) (*I2CResult, error) {
	ch, err := parseI2CChannel(channel)
	if err != nil {
		return nil, err
	}
	if connector < 0 || connector > ConnectorMax {
		return nil, validationErr("connector", connector, fmt.Sprintf("must be 0..%d", ConnectorMax))
	}
	if readBytes < 1 || readBytes > 0xFF {
		return nil, validationErr("read_bytes", readBytes, "must be 1..255")
	}
	params := buildI2CReadParams(byte(connector), ch, address, register, byte(readBytes))
	payload, err := sf.exec(OpI2CRead, params, sf.cfg.ResponseTimeout)
	if err != nil {
		return nil, err
	}
	return decodeI2CRead(payload, readBytes)
}

// I2CWrite writes data to the device at address behind the given connector
// and mux channel, starting at the device register. The device answers with
// a bare acknowledgement.
func (sf *Device) I2CWrite(address byte, connector int, channel string, register byte, data []byte) error {
	ch, err := parseI2CChannel(channel)
	if err != nil {
		return err
	}
	if connector < 0 || connector > ConnectorMax {
		return validationErr("connector", connector, fmt.Sprintf("must be 0..%d", ConnectorMax))
	}
	if len(data) < 1 || len(data) > 0xFF {
		return validationErr("data", len(data), "must carry 1..255 bytes")
	}
	_, err = sf.exec(OpI2CWrite, buildI2CWriteParams(byte(connector), ch, address, register, data), sf.cfg.ResponseTimeout)
	return err
}

func parseI2CChannel(channel string) (I2CChannel, error) {
	switch strings.ToLower(channel) {
	case "a":
		return I2CChannelA, nil
	case "b":
		return I2CChannelB, nil
	default:
		return 0, validationErr("channel", channel, `must be "a" or "b"`)
	}
}
