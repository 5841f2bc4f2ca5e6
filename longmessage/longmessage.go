// Package longmessage defines the seam the Dispatcher calls for DTXC frames.
// Reassembly of multi-frame transfers is an explicitly excluded sibling
// subsystem (spec §1); this package only carries fragments to it.
package longmessage

import "github.com/thermoquad/cbusnode/frame"

// FragmentHandler receives each DTXC frame as it arrives. The Dispatcher
// calls OnFragment when a handler is registered and drops the frame silently
// otherwise.
type FragmentHandler interface {
	OnFragment(f frame.Frame)
}

// HandlerFunc adapts a plain function to FragmentHandler.
type HandlerFunc func(f frame.Frame)

func (h HandlerFunc) OnFragment(f frame.Frame) {
	h(f)
}
