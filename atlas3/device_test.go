// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serialcables/atlas3-go/frame"
)

// mockPort is a scripted serial channel. Each Write records the request
// frame and releases the next scripted byte stream for reading. An empty
// read buffer behaves like an expired poll: a zero-byte read.
type mockPort struct {
	mu      sync.Mutex
	writes  [][]byte
	scripts [][]byte
	pending []byte
	closed  bool
}

func (m *mockPort) script(streams ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, streams...)
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, append([]byte(nil), p...))
	if len(m.scripts) > 0 {
		m.pending = append(m.pending, m.scripts[0]...)
		m.scripts = m.scripts[1:]
	}
	return len(p), nil
}

func (m *mockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	m.mu.Unlock()
	return n, nil
}

func (m *mockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockPort) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *mockPort) writtenFrame(t *testing.T, i int) (byte, []byte) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.writes) {
		t.Fatalf("frame %d not written, only %d frames recorded", i, len(m.writes))
	}
	opcode, params, err := frame.DecodeRequest(m.writes[i], frame.Sum8{})
	if err != nil {
		t.Fatalf("recorded frame %d does not decode: %v", i, err)
	}
	return opcode, params
}

func respond(t *testing.T, op Opcode, status byte, payload []byte) []byte {
	t.Helper()
	raw, err := frame.EncodeResponse(byte(op), status, payload, frame.Sum8{})
	if err != nil {
		t.Fatalf("cannot build response frame: %v", err)
	}
	return raw
}

func newTestDevice(t *testing.T, port *mockPort, retryLimit int) *Device {
	t.Helper()
	dev, err := NewDevice(port, NewOption().
		SetResponseTimeout(60*time.Millisecond).
		SetRetryLimit(retryLimit))
	if err != nil {
		t.Fatalf("cannot build device: %v", err)
	}
	return dev
}

func TestDeviceGetVersion(t *testing.T) {
	port := &mockPort{}
	port.script(respond(t, OpGetVersion, StatusSuccess,
		nulJoin("SerialCables", "Atlas3", "AT3-00172", "1.2.3", "4.5.6")))
	dev := newTestDevice(t, port, 1)

	v, err := dev.GetVersion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Model != "Atlas3" || v.MCUVersion != "1.2.3" {
		t.Errorf("version = %+v", v)
	}
	if port.writeCount() != 1 {
		t.Errorf("write count = %d, want 1", port.writeCount())
	}
	opcode, params := port.writtenFrame(t, 0)
	if opcode != byte(OpGetVersion) || len(params) != 0 {
		t.Errorf("request = (0x%02X, [% X])", opcode, params)
	}
}

func TestDeviceTimeoutRetries(t *testing.T) {
	port := &mockPort{} // never answers
	dev := newTestDevice(t, port, 2)

	start := time.Now()
	_, err := dev.GetVersion()
	elapsed := time.Since(start)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if terr.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", terr.Attempts)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("cause = %v, want %v", terr.Err, ErrTimeout)
	}
	if got := port.writeCount(); got != 3 {
		t.Errorf("write count = %d, want 3", got)
	}
	// identical bytes on every attempt
	port.mu.Lock()
	for i := 1; i < len(port.writes); i++ {
		if !bytes.Equal(port.writes[i], port.writes[0]) {
			t.Errorf("attempt %d sent different bytes", i+1)
		}
	}
	port.mu.Unlock()
	if elapsed < 3*60*time.Millisecond {
		t.Errorf("returned after %v, before the retry budget could elapse", elapsed)
	}
}

func TestDeviceCorruptThenValid(t *testing.T) {
	valid := respond(t, OpGetMode, StatusSuccess, []byte{byte(Mode3)})
	corrupt := append([]byte(nil), valid...)
	corrupt[len(corrupt)-2] ^= 0xFF

	port := &mockPort{}
	port.script(corrupt, valid)
	dev := newTestDevice(t, port, 1)

	mode, err := dev.GetMode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != Mode3 {
		t.Errorf("mode = %v, want %v", mode, Mode3)
	}
	if got := port.writeCount(); got != 2 {
		t.Errorf("write count = %d, want 2", got)
	}
}

func TestDeviceCorruptExhaustsRetries(t *testing.T) {
	valid := respond(t, OpGetMode, StatusSuccess, []byte{byte(Mode1)})
	corrupt := append([]byte(nil), valid...)
	corrupt[len(corrupt)-2] ^= 0xFF

	port := &mockPort{}
	port.script(corrupt, corrupt)
	dev := newTestDevice(t, port, 1)

	_, err := dev.GetMode()
	if !errors.Is(err, ErrCorruptFrames) {
		t.Fatalf("error = %v, want %v", err, ErrCorruptFrames)
	}
	if got := port.writeCount(); got != 2 {
		t.Errorf("write count = %d, want 2", got)
	}
}

func TestDeviceNoiseBeforeFrame(t *testing.T) {
	stream := append([]byte{0x00, 0xFF, 0x12}, respond(t, OpGetSpread, StatusSuccess, []byte{byte(SpreadDown2500)})...)
	port := &mockPort{}
	port.script(stream)
	dev := newTestDevice(t, port, 1)

	mode, err := dev.GetSpread()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mode != SpreadDown2500 || !mode.Enabled() {
		t.Errorf("spread = %v", mode)
	}
}

func TestDeviceValidationBeforeIO(t *testing.T) {
	port := &mockPort{}
	dev := newTestDevice(t, port, 1)

	calls := []struct {
		name string
		call func() error
	}{
		{"bad mode", func() error { return dev.SetMode(OperationMode(9)) }},
		{"bad spread", func() error { return dev.SetSpread(SpreadMode(7)) }},
		{"bad station", func() error { return dev.SetFlitMode(3, true) }},
		{"bad connector", func() error { return dev.ResetConnector(8) }},
		{"bad i2c channel", func() error {
			_, err := dev.I2CRead(0xD4, 2, "c", 8, 0)
			return err
		}},
		{"bad i2c length", func() error {
			_, err := dev.I2CRead(0xD4, 2, "a", 0, 0)
			return err
		}},
		{"empty i2c write", func() error { return dev.I2CWrite(0xD4, 2, "a", 0, nil) }},
		{"bad flash count", func() error {
			_, err := dev.ReadFlash(0x400, 0)
			return err
		}},
		{"bad register port", func() error {
			_, err := dev.ReadPortRegisters(-1)
			return err
		}},
	}
	for _, tt := range calls {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
	if got := port.writeCount(); got != 0 {
		t.Errorf("rejected calls reached the wire: %d write(s)", got)
	}
}

func TestDeviceStatusRejection(t *testing.T) {
	port := &mockPort{}
	port.script(respond(t, OpSetMode, StatusBadParameter, nil))
	dev := newTestDevice(t, port, 2)

	err := dev.SetMode(Mode2)
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want ConfigurationError", err)
	}
	if cerr.Status != StatusBadParameter {
		t.Errorf("status = 0x%02X, want 0x%02X", cerr.Status, StatusBadParameter)
	}
	// a device rejection is not a transport fault and must not be retried
	if got := port.writeCount(); got != 1 {
		t.Errorf("write count = %d, want 1", got)
	}
}

func TestDeviceOpcodeMismatch(t *testing.T) {
	port := &mockPort{}
	port.script(respond(t, OpGetMode, StatusSuccess, []byte{1}))
	dev := newTestDevice(t, port, 1)

	_, err := dev.GetSpread()
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
}

func registerWindow(base uint32, n int) []byte {
	payload := make([]byte, 0, n*registerEntryLen)
	for i := 0; i < n; i++ {
		addr := base + uint32(i)*4
		payload = binary.LittleEndian.AppendUint32(payload, addr)
		payload = binary.LittleEndian.AppendUint32(payload, addr^0xA5A5A5A5)
	}
	return payload
}

func TestDeviceReadPortRegistersPagination(t *testing.T) {
	port := &mockPort{}
	for i := 0; i < 4; i++ {
		base := uint32(i * RegistersPerFrame * 4)
		port.script(respond(t, OpReadPortRegisters, StatusSuccess,
			registerWindow(base, RegistersPerFrame)))
	}
	dev := newTestDevice(t, port, 1)

	dump, err := dev.ReadPortRegisters(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := port.writeCount(); got != 4 {
		t.Errorf("write count = %d, want 4", got)
	}
	if len(dump.Addrs) != PortRegisterWindow {
		t.Fatalf("register count = %d, want %d", len(dump.Addrs), PortRegisterWindow)
	}
	for i, addr := range dump.Addrs {
		if addr != uint32(i*4) {
			t.Fatalf("addrs[%d] = 0x%X, out of ascending order", i, addr)
		}
		if dump.Values[addr] != addr^0xA5A5A5A5 {
			t.Fatalf("values[0x%X] = 0x%X", addr, dump.Values[addr])
		}
	}

	// each request carries the port, the running base and the window size
	for i := 0; i < 4; i++ {
		opcode, params := port.writtenFrame(t, i)
		if opcode != byte(OpReadPortRegisters) {
			t.Fatalf("frame %d opcode = 0x%02X", i, opcode)
		}
		if len(params) != 6 || params[0] != 32 {
			t.Fatalf("frame %d params = [% X]", i, params)
		}
		base := binary.LittleEndian.Uint32(params[1:5])
		if base != uint32(i*RegistersPerFrame*4) || params[5] != RegistersPerFrame {
			t.Fatalf("frame %d window = (base 0x%X, count %d)", i, base, params[5])
		}
	}
}

func TestDeviceReadFlashPagination(t *testing.T) {
	const start = uint32(0x400)
	port := &mockPort{}
	port.script(
		respond(t, OpReadFlash, StatusSuccess, registerWindow(start, RegistersPerFrame)),
		respond(t, OpReadFlash, StatusSuccess, registerWindow(start+RegistersPerFrame*4, 4)),
	)
	dev := newTestDevice(t, port, 1)

	dump, err := dev.ReadFlash(start, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := port.writeCount(); got != 2 {
		t.Errorf("write count = %d, want 2", got)
	}
	if len(dump.Addrs) != 20 {
		t.Fatalf("word count = %d, want 20", len(dump.Addrs))
	}
	if dump.Addrs[0] != start || dump.Addrs[19] != start+19*4 {
		t.Errorf("address range = [0x%X, 0x%X]", dump.Addrs[0], dump.Addrs[19])
	}

	_, params := port.writtenFrame(t, 1)
	if got := binary.LittleEndian.Uint32(params[0:4]); got != start+RegistersPerFrame*4 {
		t.Errorf("second window base = 0x%X", got)
	}
	if params[4] != 4 {
		t.Errorf("second window count = %d, want 4", params[4])
	}
}

func TestDeviceSingleFlashWindow(t *testing.T) {
	port := &mockPort{}
	port.script(respond(t, OpReadFlash, StatusSuccess, registerWindow(0x400, 4)))
	dev := newTestDevice(t, port, 1)

	dump, err := dev.ReadFlash(0x400, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port.writeCount() != 1 || len(dump.Addrs) != 4 {
		t.Errorf("writes = %d, words = %d", port.writeCount(), len(dump.Addrs))
	}
}

func TestDeviceI2CRoundTrip(t *testing.T) {
	port := &mockPort{}
	port.script(respond(t, OpI2CRead, StatusSuccess, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	dev := newTestDevice(t, port, 1)

	res, err := dev.I2CRead(0xD4, 2, "A", 8, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Data) != 8 {
		t.Fatalf("data = [% X]", res.Data)
	}
	opcode, params := port.writtenFrame(t, 0)
	if opcode != byte(OpI2CRead) {
		t.Fatalf("opcode = 0x%02X", opcode)
	}
	want := []byte{2, byte(I2CChannelA), 0xD4, 0, 8}
	if !bytes.Equal(params, want) {
		t.Errorf("params = [% X], want [% X]", params, want)
	}

	port.script(respond(t, OpI2CWrite, StatusSuccess, nil))
	if err := dev.I2CWrite(0xD4, 2, "b", 0x10, []byte{0xAB, 0xCD}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, params = port.writtenFrame(t, 1)
	want = []byte{2, byte(I2CChannelB), 0xD4, 0x10, 2, 0xAB, 0xCD}
	if !bytes.Equal(params, want) {
		t.Errorf("write params = [% X], want [% X]", params, want)
	}
}

func TestDeviceSetFlitModeAllStations(t *testing.T) {
	port := &mockPort{}
	port.script(respond(t, OpSetFlitMode, StatusSuccess, nil))
	dev := newTestDevice(t, port, 1)

	if err := dev.SetFlitMode(AllStations, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, params := port.writtenFrame(t, 0)
	if len(params) != 2 || params[0] != FlitAllStations || params[1] != 0 {
		t.Errorf("params = [% X]", params)
	}
}

func TestDeviceClosed(t *testing.T) {
	port := &mockPort{}
	dev := newTestDevice(t, port, 1)
	if err := dev.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
	if _, err := dev.GetVersion(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("error = %v, want %v", err, ErrSessionClosed)
	}
	// Close is idempotent
	if err := dev.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestDeviceRunBist(t *testing.T) {
	payload := []byte{2}
	payload = append(payload, bistEntry("PM8551", 0, 0xB0, true)...)
	payload = append(payload, bistEntry("TMP451", 1, 0x4C, true)...)

	port := &mockPort{}
	port.script(respond(t, OpRunBist, StatusSuccess, payload))
	dev := newTestDevice(t, port, 1)

	report, err := dev.RunBist()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.AllPassed() || len(report.Devices) != 2 {
		t.Errorf("report = %+v", report)
	}
}
