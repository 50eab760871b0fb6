// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package atlas3

import "time"

// Option collects Device construction knobs. Setters chain and invalid
// values fall back to defaults, so a half-configured Option still yields a
// working Device.
type Option struct {
	config  Config
	logMode bool
}

// NewOption creates an Option with the default configuration.
// Note: the serial Address must be set before Open, e.g. with SetAddress.
func NewOption() *Option {
	return &Option{config: DefaultConfig()}
}

// SetConfig replaces the whole configuration. An invalid cfg is discarded in
// favor of the defaults.
func (sf *Option) SetConfig(cfg Config) *Option {
	if err := cfg.Valid(); err != nil {
		sf.config = DefaultConfig()
	} else {
		sf.config = cfg
	}
	return sf
}

// SerialConfig returns the serial port parameters currently held by the
// Option, for read-modify-write updates of a single field.
func (sf *Option) SerialConfig() SerialConfig {
	return sf.config.Serial
}

// SetSerialConfig sets the serial port parameters.
func (sf *Option) SetSerialConfig(serialCfg SerialConfig) *Option {
	sf.config.Serial = serialCfg
	return sf
}

// SetAddress sets the serial port address (e.g., "/dev/ttyUSB0").
func (sf *Option) SetAddress(address string) *Option {
	sf.config.Serial.Address = address
	return sf
}

// SetResponseTimeout sets the deadline for one response frame.
func (sf *Option) SetResponseTimeout(t time.Duration) *Option {
	if t > 0 {
		sf.config.ResponseTimeout = t
	}
	return sf
}

// SetRetryLimit sets the number of retries after a timeout or corrupt frame.
func (sf *Option) SetRetryLimit(n int) *Option {
	if n >= 0 && n <= RetryLimitMax {
		sf.config.RetryLimit = n
	}
	return sf
}

// SetChecksum selects the frame integrity strategy by name ("sum8", "crc16"
// or "none").
func (sf *Option) SetChecksum(name string) *Option {
	sf.config.Checksum = name
	return sf
}

// SetLogMode enables or disables driver logging.
func (sf *Option) SetLogMode(enable bool) *Option {
	sf.logMode = enable
	return sf
}
