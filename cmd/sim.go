// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/thermoquad/cbusnode/button"
	"github.com/thermoquad/cbusnode/busdriver"
	"github.com/thermoquad/cbusnode/clock"
	"github.com/thermoquad/cbusnode/configstore"
	"github.com/thermoquad/cbusnode/dispatcher"
	"github.com/thermoquad/cbusnode/frame"
	"github.com/thermoquad/cbusnode/indicator"
)

func init() {
	rootCmd.AddCommand(simCmd)
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a scripted enumeration and event-learn demo against an in-memory bus",
	Long: `sim wires one cbusnode Dispatcher and four simulated peers onto an
in-memory busdriver.Bus, drives the ENUM opcode to claim a free bus address
the same way a real peer collision would, then walks through a full
NNLRN/EVLRN/REVAL/EVULN learn cycle, logging every frame along the way.`,
	RunE: runSim,
}

// simPeerLocalIDs are the bus addresses the simulated peers already hold;
// the node under test must pick the lowest id not in this set (spec §8
// scenario 2: {1,2,4,5} -> select 3).
var simPeerLocalIDs = []byte{1, 2, 4, 5}

func runSim(cmd *cobra.Command, args []string) error {
	bus := busdriver.NewBus()
	nodeDrv := bus.NewMember(64)
	operator := bus.NewMember(32)

	peerDone := make(chan struct{})
	for _, id := range simPeerLocalIDs {
		peer := bus.NewMember(8)
		go runSimPeer(peer, id, peerDone)
	}

	store := configstore.NewMemStore()
	demoNN := nodeNumber
	if demoNN == 0 {
		demoNN = 260
	}
	store.SetNodeNumber(demoNN)

	fakeClock := clock.NewFake(0)
	disp := dispatcher.NewWithUI(
		fakeClock, store, nodeDrv,
		defaultParams(), dispatcher.NewModuleName(moduleLabel),
		consoleIndicator{}, button.Noop{},
	)
	disp.SetTransmitObserver(func(f frame.Frame) {
		log.Printf("TX %s", formatFrame(f))
	})
	disp.Events().SetHandlerEx(func(index byte, nn, en uint16, payload []byte, onEvent bool, firstEV byte) {
		log.Printf("event[%d] nn=%d en=%d on=%v firstEV=%d", index, nn, en, onEvent, firstEV)
	})

	log.Printf("step 1: node number=%d local-id=%d (unallocated), peers hold %v", demoNN, store.LocalID(), simPeerLocalIDs)

	// Force enumeration via the ENUM opcode, addressed to our node number
	// from a foreign identifier (99, not our still-zero local id) so the
	// preconditions in handleENUM pass (spec §4.3's ENUM row).
	enumFrame := frame.New(frame.Encode(frame.DefaultPriority, 99), false, false,
		[]byte{dispatcher.OpENUM, byte(demoNN >> 8), byte(demoNN), 0, 0})
	sendAndSettle(operator, disp, enumFrame)

	// Run the 100ms collection window forward on the fake clock while giving
	// the real peer goroutines wall-clock time to answer the probe.
	for i := 0; i < 60; i++ {
		time.Sleep(2 * time.Millisecond)
		fakeClock.Advance(2 * time.Millisecond)
		disp.Process(maxFrames)
	}
	log.Printf("step 2: enumeration settled, local-id=%d", store.LocalID())

	// Learn cycle: NNLRN -> EVLRN(10,20,ev1=0x77) -> REVAL -> EVULN.
	nnlrn := frame.New(0, false, false, []byte{dispatcher.OpNNLRN, byte(demoNN >> 8), byte(demoNN), 0, 0})
	sendAndSettle(operator, disp, nnlrn)
	log.Printf("step 3: learn mode entered")

	evlrn := frame.New(0, false, false, []byte{dispatcher.OpEVLRN, 0, 10, 0, 20, 1, 0x77})
	sendAndSettle(operator, disp, evlrn)

	idx := store.FindExisting(10, 20)
	if idx == configstore.NotFound {
		return fmt.Errorf("sim: event (10,20) not found after EVLRN")
	}
	log.Printf("step 4: learned event (10,20) at index %d", idx)

	reval := frame.New(0, false, false, []byte{dispatcher.OpREVAL, byte(demoNN >> 8), byte(demoNN), idx, 1})
	sendAndSettle(operator, disp, reval)

	evuln := frame.New(0, false, false, []byte{dispatcher.OpEVULN, 0, 10, 0, 20})
	sendAndSettle(operator, disp, evuln)
	if store.FindExisting(10, 20) != configstore.NotFound {
		return fmt.Errorf("sim: event (10,20) still present after EVULN")
	}
	log.Printf("step 5: event (10,20) unlearned, sim complete")

	close(peerDone)
	return nil
}

// runSimPeer answers every zero-length remote probe it sees with a
// zero-length standard frame carrying its own identifier, exactly as spec
// §4.1 step 3 requires of a real peer.
func runSimPeer(drv *busdriver.Loopback, localID byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		f, ok := drv.Recv()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		if f.IsProbe() {
			drv.Send(frame.New(frame.Encode(frame.DefaultPriority, localID), false, false, nil))
		}
	}
}

// sendAndSettle broadcasts f from operator onto the shared bus, then ticks
// disp once so the node under test processes it within this function call,
// matching the single-threaded cooperative contract of Process (spec §5).
func sendAndSettle(operator *busdriver.Loopback, disp *dispatcher.Dispatcher, f frame.Frame) {
	operator.Send(f)
	time.Sleep(time.Millisecond)
	disp.Process(maxFrames)
}

var _ indicator.Indicator = consoleIndicator{}
