// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Bus transport flags, shared by run/monitor/dump.
	portName string
	baudRate int

	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Node identity flags.
	nodeNumber  uint16
	busID       byte
	moduleLabel string
	tickMs      int
	maxFrames   int
)

var rootCmd = &cobra.Command{
	Use:   "cbusnode",
	Short: "CBUS node simulator and monitor",
	Long: `cbusnode runs or observes a MERG CBUS-style node: dynamic bus-address
enumeration, the lean/flexible configuration handshake, and accessory event
learn/dispatch, over a real serial/USB-CAN adapter or a WebSocket relay.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the CBUS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket bus-relay URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().Uint16Var(&nodeNumber, "node-number", 0, "Node number to present (0 = unassigned, lean mode)")
	rootCmd.PersistentFlags().Uint8Var(&busID, "bus-id", 0, "Initial bus local id, 1-99 (0 = unallocated until ENUM or CANID assigns one)")
	rootCmd.PersistentFlags().StringVar(&moduleLabel, "name", "GOCBUS ", "7-character module name advertised in RQMN/NAME")
	rootCmd.PersistentFlags().IntVar(&tickMs, "tick", 20, "Host loop tick interval in milliseconds")
	rootCmd.PersistentFlags().IntVar(&maxFrames, "max-frames", 8, "Max frames drained from the bus per tick")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
