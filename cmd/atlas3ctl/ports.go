// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/serialcables/atlas3-go/atlas3"
	"github.com/spf13/cobra"
)

var portsLinkedOnly bool

func portsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Read the link status of every switch port",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				report, err := dev.GetPortStatus()
				if err != nil {
					return err
				}
				fmt.Printf("Chip version: %s\n", report.ChipVersion)
				printPortGroup("Upstream", report.UpstreamPorts)
				printPortGroup("External MCIO", report.ExtMCIOPorts)
				printPortGroup("Internal MCIO", report.IntMCIOPorts)
				printPortGroup("Straddle", report.StraddlePorts)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&portsLinkedOnly, "linked", false, "Show only ports with an active link")
	return cmd
}

func printPortGroup(name string, ports []atlas3.Port) {
	fmt.Printf("\n%s:\n", name)
	shown := 0
	for _, p := range ports {
		if portsLinkedOnly && !p.IsLinked() {
			continue
		}
		shown++
		if p.IsLinked() {
			fmt.Printf("  port %3d  %-8s %s x%d\n", p.PortNumber, p.Status, p.NegotiatedSpeed, p.NegotiatedWidth)
		} else {
			fmt.Printf("  port %3d  %-8s\n", p.PortNumber, p.Status)
		}
	}
	if shown == 0 {
		fmt.Printf("  (none)\n")
	}
}
