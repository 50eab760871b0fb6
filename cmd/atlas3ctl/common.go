// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/serialcables/atlas3-go/atlas3"
)

// openDevice builds a Device from the persistent flags, with the optional
// configuration file as the base layer. Flags override the file.
func openDevice() (*atlas3.Device, error) {
	opt := atlas3.NewOption()

	if flagConfig != "" {
		cfg, err := atlas3.LoadConfig(flagConfig)
		if err != nil {
			return nil, err
		}
		opt.SetConfig(*cfg)
	}
	if flagPort != "" {
		opt.SetAddress(flagPort)
	}
	if flagBaud != 0 {
		serialCfg := opt.SerialConfig()
		serialCfg.BaudRate = flagBaud
		opt.SetSerialConfig(serialCfg)
	}
	if flagChecksum != "" {
		opt.SetChecksum(flagChecksum)
	}
	opt.SetLogMode(flagVerbose)

	dev, err := atlas3.Open(opt)
	if err != nil {
		return nil, fmt.Errorf("cannot open card: %w", err)
	}
	return dev, nil
}

// withDevice runs fn against an open Device and always closes the channel.
func withDevice(fn func(*atlas3.Device) error) error {
	dev, err := openDevice()
	if err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()
	return fn(dev)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func passFail(b bool) string {
	if b {
		return "PASS"
	}
	return "FAIL"
}
