// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.bug.st/serial"
	"gopkg.in/yaml.v3"

	"github.com/serialcables/atlas3-go/frame"
)

// Defaults and ranges for session parameters.
const (
	// DefaultBaudRate matches the card's MCU UART configuration.
	DefaultBaudRate = 115200

	// DefaultResponseTimeout bounds one wait for a complete response frame.
	DefaultResponseTimeout = 2 * time.Second
	ResponseTimeoutMin     = 50 * time.Millisecond
	ResponseTimeoutMax     = 60 * time.Second

	// DefaultBistTimeout bounds the self-test round-trip; the device walks
	// every attached sub-device before answering.
	DefaultBistTimeout = 15 * time.Second

	// DefaultRetryLimit is the number of additional attempts after the first
	// send fails on timeout or a corrupt frame.
	DefaultRetryLimit = 2
	RetryLimitMax     = 10
)

// SerialConfig holds serial port parameters.
type SerialConfig struct {
	// Address is the serial port address (e.g., "COM3" on Windows,
	// "/dev/ttyUSB0" on Linux).
	Address string
	// BaudRate is the serial port speed.
	BaudRate int
	// DataBits is the number of data bits, usually 8.
	DataBits int
	// StopBits specifies the number of stop bits. Use serial.OneStopBit or
	// serial.TwoStopBits.
	StopBits serial.StopBits
	// Parity specifies the parity mode. Use serial.NoParity,
	// serial.OddParity, serial.EvenParity.
	Parity serial.Parity
	// ReadTimeout is the poll granularity for port reads. The session applies
	// the overall ResponseTimeout on top of it.
	ReadTimeout time.Duration
}

// Config defines an Atlas3 driver configuration.
type Config struct {
	// Serial port settings
	Serial SerialConfig

	// ResponseTimeout is the deadline for one complete response frame.
	ResponseTimeout time.Duration

	// BistTimeout is the deadline for the RunBist round-trip.
	BistTimeout time.Duration

	// RetryLimit is the number of retries after a timeout or corrupt frame.
	RetryLimit int

	// Checksum selects the frame integrity strategy: "sum8", "crc16" or
	// "none". The real wire algorithm is confirmed against hardware
	// captures; sum8 is the default.
	Checksum string
}

// Valid applies defaults and checks configuration validity.
func (sf *Config) Valid() error {
	if sf == nil {
		return errors.New("invalid nil config")
	}
	if sf.Serial.Address == "" {
		return errors.New("serial address (port name) must be configured")
	}
	if sf.Serial.BaudRate == 0 {
		sf.Serial.BaudRate = DefaultBaudRate
	} else if sf.Serial.BaudRate < 0 {
		return errors.New("serial baud rate must be positive")
	}
	if sf.Serial.DataBits == 0 {
		sf.Serial.DataBits = 8
	}
	if sf.Serial.ReadTimeout == 0 {
		sf.Serial.ReadTimeout = 100 * time.Millisecond
	} else if sf.Serial.ReadTimeout < 0 {
		return errors.New("serial read timeout must be positive")
	}

	if sf.ResponseTimeout == 0 {
		sf.ResponseTimeout = DefaultResponseTimeout
	} else if sf.ResponseTimeout < ResponseTimeoutMin || sf.ResponseTimeout > ResponseTimeoutMax {
		return fmt.Errorf("response timeout out of range [%v, %v]", ResponseTimeoutMin, ResponseTimeoutMax)
	}

	if sf.BistTimeout == 0 {
		sf.BistTimeout = DefaultBistTimeout
	} else if sf.BistTimeout < sf.ResponseTimeout {
		return errors.New("bist timeout must not be shorter than response timeout")
	}

	if sf.RetryLimit == 0 {
		sf.RetryLimit = DefaultRetryLimit
	} else if sf.RetryLimit < 0 || sf.RetryLimit > RetryLimitMax {
		return fmt.Errorf("retry limit out of range [0, %d]", RetryLimitMax)
	}

	switch sf.Checksum {
	case "":
		sf.Checksum = frame.Sum8{}.Name()
	case "sum8", "crc16", "none":
	default:
		return fmt.Errorf("unknown checksum strategy %q", sf.Checksum)
	}

	return nil
}

// checksum returns the configured frame integrity strategy.
func (sf *Config) checksum() frame.Checksum {
	return frame.ChecksumByName(sf.Checksum)
}

// DefaultConfig provides a default configuration.
// NOTE: the serial Address must be set explicitly.
func DefaultConfig() Config {
	return Config{
		Serial: SerialConfig{
			BaudRate:    DefaultBaudRate,
			DataBits:    8,
			StopBits:    serial.OneStopBit,
			Parity:      serial.NoParity,
			ReadTimeout: 100 * time.Millisecond,
		},
		ResponseTimeout: DefaultResponseTimeout,
		BistTimeout:     DefaultBistTimeout,
		RetryLimit:      DefaultRetryLimit,
		Checksum:        frame.Sum8{}.Name(),
	}
}

// yamlConfig is the on-disk schema. Durations are plain millisecond
// integers so files never depend on Go duration syntax.
type yamlConfig struct {
	Serial struct {
		Address       string `yaml:"address"`
		BaudRate      int    `yaml:"baud_rate"`
		DataBits      int    `yaml:"data_bits"`
		StopBits      int    `yaml:"stop_bits"`
		Parity        int    `yaml:"parity"`
		ReadTimeoutMs int    `yaml:"read_timeout_ms"`
	} `yaml:"serial"`
	ResponseTimeoutMs int    `yaml:"response_timeout_ms"`
	BistTimeoutMs     int    `yaml:"bist_timeout_ms"`
	RetryLimit        int    `yaml:"retry_limit"`
	Checksum          string `yaml:"checksum"`
}

// LoadConfig reads a YAML configuration file and validates it. Fields left
// out of the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config read failed: %w", err)
	}
	var y yamlConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Serial.Address = y.Serial.Address
	if y.Serial.BaudRate != 0 {
		cfg.Serial.BaudRate = y.Serial.BaudRate
	}
	if y.Serial.DataBits != 0 {
		cfg.Serial.DataBits = y.Serial.DataBits
	}
	if y.Serial.StopBits != 0 {
		cfg.Serial.StopBits = serial.StopBits(y.Serial.StopBits)
	}
	if y.Serial.Parity != 0 {
		cfg.Serial.Parity = serial.Parity(y.Serial.Parity)
	}
	if y.Serial.ReadTimeoutMs != 0 {
		cfg.Serial.ReadTimeout = time.Duration(y.Serial.ReadTimeoutMs) * time.Millisecond
	}
	if y.ResponseTimeoutMs != 0 {
		cfg.ResponseTimeout = time.Duration(y.ResponseTimeoutMs) * time.Millisecond
	}
	if y.BistTimeoutMs != 0 {
		cfg.BistTimeout = time.Duration(y.BistTimeoutMs) * time.Millisecond
	}
	if y.RetryLimit != 0 {
		cfg.RetryLimit = y.RetryLimit
	}
	if y.Checksum != "" {
		cfg.Checksum = y.Checksum
	}

	if err := cfg.Valid(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
