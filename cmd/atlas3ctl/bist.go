// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/serialcables/atlas3-go/atlas3"
	"github.com/spf13/cobra"
)

func bistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bist",
		Short: "Run the built-in self test",
		Long: `Run the built-in self test. The card probes every on-board sub-device
(switch, sensors, EEPROM) and reports a per-device verdict. The command
exits nonzero when any device fails.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				report, err := dev.RunBist()
				if err != nil {
					return err
				}
				for _, d := range report.Devices {
					fmt.Printf("  %-12s ch %d addr 0x%02X  %s\n",
						d.DeviceName, d.Channel, d.Address, passFail(d.Passed))
				}
				if !report.AllPassed() {
					return fmt.Errorf("self test failed")
				}
				fmt.Println("All devices passed")
				return nil
			})
		},
	}
}
