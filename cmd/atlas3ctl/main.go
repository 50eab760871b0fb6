// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// atlas3ctl is a command line tool for the Atlas3 PCIe switch host adapter
// management channel.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagPort     string
	flagBaud     int
	flagConfig   string
	flagChecksum string
	flagVerbose  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atlas3ctl",
		Short: "Manage Serial Cables Atlas3 host adapter cards",
		Long: `atlas3ctl talks to the management MCU of an Atlas3 PCIe Gen6 switch
host adapter over its serial channel: identification, telemetry, link
status, self test, error counters, card settings, register dumps and
sideband I2C access.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "", "Serial port of the card (e.g. /dev/ttyUSB0)")
	rootCmd.PersistentFlags().IntVarP(&flagBaud, "baud", "b", 0, "Baud rate (default 115200)")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flagChecksum, "checksum", "", "Frame checksum strategy: sum8, crc16 or none")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log every frame on the wire")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(portsCmd())
	rootCmd.AddCommand(bistCmd())
	rootCmd.AddCommand(countersCmd())
	rootCmd.AddCommand(modeCmd())
	rootCmd.AddCommand(spreadCmd())
	rootCmd.AddCommand(clockCmd())
	rootCmd.AddCommand(flitCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(regsCmd())
	rootCmd.AddCommand(flashCmd())
	rootCmd.AddCommand(i2cCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
