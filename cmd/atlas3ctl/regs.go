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

func regsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regs <port>",
		Short: "Dump the config register window of one switch port",
		Long: `Dump the config register window of one switch port. Port 32 is the
golden finger (upstream edge) port.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				port, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid port %q", args[0])
				}
				dump, err := dev.ReadPortRegisters(port)
				if err != nil {
					return err
				}
				printDump(dump)
				return nil
			})
		},
	}
}

var flashCount int

func flashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flash <addr>",
		Short: "Read 32-bit words from SPI flash",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				addr, err := strconv.ParseUint(args[0], 0, 32)
				if err != nil {
					return fmt.Errorf("invalid address %q", args[0])
				}
				dump, err := dev.ReadFlash(uint32(addr), flashCount)
				if err != nil {
					return err
				}
				printDump(dump)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&flashCount, "count", "n", 4, "Number of 32-bit words to read")
	return cmd
}

func printDump(dump *atlas3.RegisterDump) {
	for _, addr := range dump.Addrs {
		fmt.Printf("  0x%08X: 0x%08X\n", addr, dump.Values[addr])
	}
}
