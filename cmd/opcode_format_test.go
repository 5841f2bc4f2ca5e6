// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"testing"

	"github.com/thermoquad/cbusnode/dispatcher"
	"github.com/thermoquad/cbusnode/frame"
)

func TestFormatOpCode(t *testing.T) {
	tests := []struct {
		name string
		opc  byte
		want string
	}{
		{"known opcode", dispatcher.OpACON, "ACON"},
		{"another known opcode", dispatcher.OpEVLRN, "EVLRN"},
		{"unknown opcode falls back to hex", 0xFE, "0xFE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatOpCode(tt.opc); got != tt.want {
				t.Errorf("formatOpCode(%#x) = %q, want %q", tt.opc, got, tt.want)
			}
		})
	}
}

func TestFormatFrame(t *testing.T) {
	id := frame.Encode(frame.DefaultPriority, 5)

	t.Run("probe", func(t *testing.T) {
		f := frame.New(id, false, true, nil)
		want := "id=0x585 PROBE"
		if got := formatFrame(f); got != want {
			t.Errorf("formatFrame(probe) = %q, want %q", got, want)
		}
	})

	t.Run("empty non-remote", func(t *testing.T) {
		f := frame.New(id, false, false, nil)
		want := "id=0x585 (empty)"
		if got := formatFrame(f); got != want {
			t.Errorf("formatFrame(empty) = %q, want %q", got, want)
		}
	})

	t.Run("data frame with node and event numbers", func(t *testing.T) {
		f := frame.New(id, false, false, []byte{dispatcher.OpACON, 0, 10, 0, 20})
		want := "id=0x585 ACON nn=10 en=20"
		if got := formatFrame(f); got != want {
			t.Errorf("formatFrame(data) = %q, want %q", got, want)
		}
	})

	t.Run("short opcode-only frame", func(t *testing.T) {
		f := frame.New(id, false, false, []byte{dispatcher.OpQNN})
		want := "id=0x585 QNN"
		if got := formatFrame(f); got != want {
			t.Errorf("formatFrame(short) = %q, want %q", got, want)
		}
	})
}
