// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/serialcables/atlas3-go/atlas3"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Read the card identification block",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				v, err := dev.GetVersion()
				if err != nil {
					return err
				}
				fmt.Printf("Company:     %s\n", v.Company)
				fmt.Printf("Model:       %s\n", v.Model)
				if v.SerialNumber != nil {
					fmt.Printf("Serial:      %s\n", *v.SerialNumber)
				} else {
					fmt.Printf("Serial:      (not programmed)\n")
				}
				fmt.Printf("MCU version: %s\n", v.MCUVersion)
				fmt.Printf("SBR version: %s\n", v.SBRVersion)
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Read thermal, fan, power and voltage telemetry",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				st, err := dev.GetHostCardInfo()
				if err != nil {
					return err
				}
				fmt.Printf("Switch temperature: %.1f C\n", st.Thermal.SwitchTemperatureCelsius)
				fmt.Printf("Switch fan:         %d RPM\n", st.Fan.SwitchFanRPM)
				fmt.Printf("Input voltage:      %.3f V\n", st.Power.PowerVoltage)
				fmt.Printf("Load current:       %.3f A\n", st.Power.LoadCurrent)
				fmt.Printf("Load power:         %.2f W\n", st.Power.LoadPower)
				fmt.Printf("Rail 1V5:           %.3f V\n", st.Voltages.Voltage1V5)
				fmt.Printf("Rail VDD:           %.3f V\n", st.Voltages.VoltageVDD)
				fmt.Printf("Rail VDDA:          %.3f V\n", st.Voltages.VoltageVDDA)
				fmt.Printf("Rail VDDA12:        %.3f V\n", st.Voltages.VoltageVDDA12)
				return nil
			})
		},
	}
}
