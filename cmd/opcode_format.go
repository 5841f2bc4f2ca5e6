// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/thermoquad/cbusnode/dispatcher"
	"github.com/thermoquad/cbusnode/frame"
)

// opCodeNames maps the operation codes in dispatcher/opcodes.go to a short
// mnemonic for log output, mirroring the teacher's
// pkg/helios_protocol/formatter.go FormatMessageType switch.
var opCodeNames = map[byte]string{
	dispatcher.OpACON:   "ACON",
	dispatcher.OpACOF:   "ACOF",
	dispatcher.OpARON:   "ARON",
	dispatcher.OpAROF:   "AROF",
	dispatcher.OpASON:   "ASON",
	dispatcher.OpASOF:   "ASOF",
	dispatcher.OpRQNP:   "RQNP",
	dispatcher.OpRQNPN:  "RQNPN",
	dispatcher.OpSNN:    "SNN",
	dispatcher.OpRQNN:   "RQNN",
	dispatcher.OpCANID:  "CANID",
	dispatcher.OpENUM:   "ENUM",
	dispatcher.OpNVRD:   "NVRD",
	dispatcher.OpNVSET:  "NVSET",
	dispatcher.OpNNLRN:  "NNLRN",
	dispatcher.OpNNULN:  "NNULN",
	dispatcher.OpEVULN:  "EVULN",
	dispatcher.OpEVLRN:  "EVLRN",
	dispatcher.OpNNCLR:  "NNCLR",
	dispatcher.OpNNEVN:  "NNEVN",
	dispatcher.OpRQEVN:  "RQEVN",
	dispatcher.OpNERD:   "NERD",
	dispatcher.OpREVAL:  "REVAL",
	dispatcher.OpQNN:    "QNN",
	dispatcher.OpRQMN:   "RQMN",
	dispatcher.OpDTXC:   "DTXC",
	dispatcher.OpBOOT:   "BOOT",
	dispatcher.OpRSTAT:  "RSTAT",
	dispatcher.OpPARAMS: "PARAMS",
	dispatcher.OpPARAN:  "PARAN",
	dispatcher.OpNNACK:  "NNACK",
	dispatcher.OpNVANS:  "NVANS",
	dispatcher.OpWRACK:  "WRACK",
	dispatcher.OpCMDERR: "CMDERR",
	dispatcher.OpEVNLF:  "EVNLF",
	dispatcher.OpNUMEV:  "NUMEV",
	dispatcher.OpENRSP:  "ENRSP",
	dispatcher.OpNEVAL:  "NEVAL",
	dispatcher.OpPNN:    "PNN",
	dispatcher.OpNAME:   "NAME",
}

// formatOpCode returns a human-readable mnemonic for opc, or a hex fallback
// for an unrecognized code.
func formatOpCode(opc byte) string {
	if name, ok := opCodeNames[opc]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", opc)
}

// formatFrame renders f for log output: probe/remote frames print their
// identifier only, data frames print the opcode mnemonic and node/event
// numbers when the payload is long enough to carry them.
func formatFrame(f frame.Frame) string {
	if f.Length == 0 {
		if f.Remote {
			return fmt.Sprintf("id=%#03x PROBE", f.ID)
		}
		return fmt.Sprintf("id=%#03x (empty)", f.ID)
	}
	opc := f.OpCode()
	s := fmt.Sprintf("id=%#03x %s", f.ID, formatOpCode(opc))
	if f.Length >= 3 {
		s += fmt.Sprintf(" nn=%d", f.NodeNumber())
	}
	if f.Length >= 5 {
		s += fmt.Sprintf(" en=%d", f.EventNumber())
	}
	if f.Length > 5 {
		s += fmt.Sprintf(" extra=% x", f.Data()[5:])
	}
	return s
}
