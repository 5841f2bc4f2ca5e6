// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Decode and log raw frames from a bus connection without running a node",
	Long: `dump opens the same --port/--url bus connection as "run" but never
answers probes or dispatches opcodes itself; it only decodes and logs every
frame it observes, for passively monitoring traffic on a live layout.`,
	RunE: runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	drv, desc, err := openDriver()
	if err != nil {
		return err
	}
	defer drv.Close()

	log.Printf("cbusnode dump: %s", desc)
	for {
		f, ok := drv.Recv()
		if !ok {
			continue
		}
		log.Printf("RX %s", formatFrame(f))
	}
}
