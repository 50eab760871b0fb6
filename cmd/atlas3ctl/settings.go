// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/serialcables/atlas3-go/atlas3"
	"github.com/spf13/cobra"
)

func modeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode [1-4]",
		Short: "Read or set the card operation mode",
		Long: `Read or set the card operation mode:

  1  common clock, precoding on
  2  common clock, precoding off
  3  SRIS clock, precoding on
  4  SRIS clock, precoding off

A new mode takes effect after the card is reset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				if len(args) == 0 {
					mode, err := dev.GetMode()
					if err != nil {
						return err
					}
					fmt.Printf("Operation mode: %s\n", mode)
					return nil
				}
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid mode %q", args[0])
				}
				if err := dev.SetMode(atlas3.OperationMode(n)); err != nil {
					return err
				}
				fmt.Printf("Operation mode set to %d, effective after reset\n", n)
				return nil
			})
		},
	}
}

func spreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spread [off|2500|5000]",
		Short: "Read or set clock spread spectrum",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				if len(args) == 0 {
					mode, err := dev.GetSpread()
					if err != nil {
						return err
					}
					fmt.Printf("Spread spectrum: %s\n", mode)
					return nil
				}
				var mode atlas3.SpreadMode
				switch args[0] {
				case "off":
					mode = atlas3.SpreadOff
				case "2500":
					mode = atlas3.SpreadDown2500
				case "5000":
					mode = atlas3.SpreadDown5000
				default:
					return fmt.Errorf("invalid spread %q, use off, 2500 or 5000", args[0])
				}
				if err := dev.SetSpread(mode); err != nil {
					return err
				}
				fmt.Printf("Spread spectrum set to %s\n", mode)
				return nil
			})
		},
	}
}

func clockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clock [on|off]",
		Short: "Read or set connector clock output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				if len(args) == 0 {
					cs, err := dev.GetClockStatus()
					if err != nil {
						return err
					}
					fmt.Printf("Straddle connectors:      %s\n", onOff(cs.StraddleEnabled))
					fmt.Printf("External MCIO connectors: %s\n", onOff(cs.ExtMCIOEnabled))
					fmt.Printf("Internal MCIO connectors: %s\n", onOff(cs.IntMCIOEnabled))
					return nil
				}
				switch args[0] {
				case "on", "off":
				default:
					return fmt.Errorf("invalid argument %q, use on or off", args[0])
				}
				if err := dev.SetClockOutput(args[0] == "on"); err != nil {
					return err
				}
				fmt.Printf("Clock output switched %s\n", args[0])
				return nil
			})
		},
	}
}

var flitStation int

func flitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flit [enable|disable]",
		Short: "Read or set per-station flit mode",
		Long: `Read or set flit mode per switch station. Flit mode must stay enabled
for Gen6 links; disabling it caps the affected ports at Gen5. Stations
carrying ports are 2, 5, 7 and 8; the default targets all of them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				if len(args) == 0 {
					fs, err := dev.GetFlitStatus()
					if err != nil {
						return err
					}
					fmt.Printf("Station 2 flit: %s\n", onOff(!fs.Station2))
					fmt.Printf("Station 5 flit: %s\n", onOff(!fs.Station5))
					fmt.Printf("Station 7 flit: %s\n", onOff(!fs.Station7))
					fmt.Printf("Station 8 flit: %s\n", onOff(!fs.Station8))
					return nil
				}
				var disable bool
				switch args[0] {
				case "enable":
					disable = false
				case "disable":
					disable = true
				default:
					return fmt.Errorf("invalid argument %q, use enable or disable", args[0])
				}
				if err := dev.SetFlitMode(flitStation, disable); err != nil {
					return err
				}
				fmt.Printf("Flit mode %sd\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&flitStation, "station", atlas3.AllStations, "Target station (2, 5, 7 or 8; default all)")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <connector>",
		Short: "Pulse reset on one downstream connector (0-7)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid connector %q", args[0])
				}
				if err := dev.ResetConnector(n); err != nil {
					return err
				}
				fmt.Printf("Connector %d reset\n", n)
				return nil
			})
		},
	}
}
