// Copyright 2025 Serial Cables. All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

/*
Package atlas3 drives the Serial Cables Atlas3 PCIe Gen6 host adapter card
over its serial management channel.

The card is controlled through a synchronous command/response protocol: the
host sends one framed command, the MCU answers with one framed response.
Device wraps that exchange behind typed operations: identification,
thermal/power telemetry, per-port link status, built-in self test, error
counters, clocking configuration, register and flash dumps, and I2C access
to devices behind the card's connectors.

Basic usage:

	card, err := atlas3.Open(atlas3.NewOption().SetAddress("/dev/ttyUSB0"))
	if err != nil {
		log.Fatal(err)
	}
	defer card.Close()

	version, err := card.GetVersion()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(version.Model, version.MCUVersion)

Every result is a snapshot built from one protocol round-trip; the driver
caches nothing. Failures are typed: ValidationError for bad caller input
(raised before any bytes hit the wire), TransportError for a silent or noisy
channel after retries, DecodeError for payloads that do not match the
operation's shape, ConfigurationError when the device rejects a setting, and
frame.Error for corrupt frames inside the transport layer.
*/
package atlas3
