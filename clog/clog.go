// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog provides the small leveled logger embedded by the driver
// types. Logging is off by default and enabled per instance with LogMode.
package clog

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

// Clog is an embeddable prefixed logger. The zero value is unusable; create
// one with NewLogger.
type Clog struct {
	logger  *log.Logger
	enabled *uint32
}

// NewLogger creates a logger writing to stderr with the given prefix.
func NewLogger(prefix string) Clog {
	return Clog{
		logger:  log.New(os.Stderr, prefix, log.LstdFlags),
		enabled: new(uint32),
	}
}

// NewLoggerWithWriter creates a logger writing to w with the given prefix.
func NewLoggerWithWriter(w io.Writer, prefix string) Clog {
	return Clog{
		logger:  log.New(w, prefix, log.LstdFlags),
		enabled: new(uint32),
	}
}

// LogMode enables or disables output.
func (sf Clog) LogMode(enable bool) {
	if sf.enabled == nil {
		return
	}
	if enable {
		atomic.StoreUint32(sf.enabled, 1)
	} else {
		atomic.StoreUint32(sf.enabled, 0)
	}
}

func (sf Clog) active() bool {
	return sf.enabled != nil && atomic.LoadUint32(sf.enabled) == 1
}

// Debug logs a debug message.
func (sf Clog) Debug(format string, v ...any) {
	if sf.active() {
		sf.logger.Printf("[D] "+format, v...)
	}
}

// Warn logs a warning message.
func (sf Clog) Warn(format string, v ...any) {
	if sf.active() {
		sf.logger.Printf("[W] "+format, v...)
	}
}

// Error logs an error message.
func (sf Clog) Error(format string, v ...any) {
	if sf.active() {
		sf.logger.Printf("[E] "+format, v...)
	}
}
