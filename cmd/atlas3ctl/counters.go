// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/serialcables/atlas3-go/atlas3"
	"github.com/spf13/cobra"
)

var (
	countersClear   bool
	countersNonzero bool
)

func countersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counters",
		Short: "Read or clear the per-port PCIe error counters",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				if countersClear {
					if err := dev.ClearErrorCounters(); err != nil {
						return err
					}
					fmt.Println("Error counters cleared")
					return nil
				}

				report, err := dev.GetErrorCounters()
				if err != nil {
					return err
				}
				fmt.Printf("  %-6s %12s %12s %12s\n", "port", "bad TLP", "bad DLLP", "flit err")
				for _, c := range report.Counters {
					if countersNonzero && !c.HasErrors() {
						continue
					}
					fmt.Printf("  %-6d %12d %12d %12d\n", c.PortNumber, c.BadTLP, c.BadDLLP, c.FlitError)
				}
				fmt.Printf("Total: %d error(s)\n", report.TotalErrors())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&countersClear, "clear", false, "Zero every counter instead of reading")
	cmd.Flags().BoolVar(&countersNonzero, "nonzero", false, "Show only ports with errors")
	return cmd
}
