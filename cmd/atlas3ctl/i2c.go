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

var (
	i2cConnector int
	i2cChannel   string
	i2cRegister  uint8
	i2cCount     int
)

func i2cCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "i2c",
		Short: "Sideband I2C access through a downstream connector",
	}
	cmd.PersistentFlags().IntVar(&i2cConnector, "connector", 0, "Downstream connector (0-7)")
	cmd.PersistentFlags().StringVar(&i2cChannel, "channel", "a", `Connector mux channel ("a" or "b")`)
	cmd.PersistentFlags().Uint8Var(&i2cRegister, "register", 0, "Starting device register")

	cmd.AddCommand(i2cReadCmd())
	cmd.AddCommand(i2cWriteCmd())
	return cmd
}

func i2cReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <addr>",
		Short: "Read bytes from an I2C device behind a connector",
		Long: `Read bytes from an I2C device behind a connector.

Example:
  atlas3ctl i2c read 0xD4 --connector 2 --channel a --count 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				addr, err := strconv.ParseUint(args[0], 0, 8)
				if err != nil {
					return fmt.Errorf("invalid device address %q", args[0])
				}
				res, err := dev.I2CRead(byte(addr), i2cConnector, i2cChannel, i2cCount, i2cRegister)
				if err != nil {
					return err
				}
				fmt.Printf("[% X]\n", res.Data)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&i2cCount, "count", "n", 1, "Number of bytes to read")
	return cmd
}

func i2cWriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write <addr> <byte>...",
		Short: "Write bytes to an I2C device behind a connector",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDevice(func(dev *atlas3.Device) error {
				addr, err := strconv.ParseUint(args[0], 0, 8)
				if err != nil {
					return fmt.Errorf("invalid device address %q", args[0])
				}
				data := make([]byte, 0, len(args)-1)
				for _, arg := range args[1:] {
					b, err := strconv.ParseUint(arg, 0, 8)
					if err != nil {
						return fmt.Errorf("invalid data byte %q", arg)
					}
					data = append(data, byte(b))
				}
				if err := dev.I2CWrite(byte(addr), i2cConnector, i2cChannel, i2cRegister, data); err != nil {
					return err
				}
				fmt.Printf("Wrote %d byte(s)\n", len(data))
				return nil
			})
		},
	}
}
