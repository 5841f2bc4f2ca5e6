package frame

// Identifier is the 11-bit frame identifier: a 4-bit priority prefix over a
// 7-bit local (bus) address, encoded as (priority<<7)|(localID&0x7f).
//
// Grounded on the CBUS COB-ID composition convention, in the shape of
// other_examples/notnil-canbus__ids.go's COBID/ParseCOBID helpers.
type Identifier uint16

// Encode composes an Identifier from a priority and a local bus address.
// Only the low 4 bits of priority and low 7 bits of localID are significant.
func Encode(priority, localID byte) Identifier {
	return Identifier((uint16(priority&0x0f) << 7) | uint16(localID&0x7f))
}

// Priority returns the 4-bit priority prefix.
func (id Identifier) Priority() byte {
	return byte((id >> 7) & 0x0f)
}

// LocalID returns the low 7 bits of the identifier. Per the original CBUS
// source, this silently discards the priority bits; that is intentional and
// this accessor must only be used for local-id comparisons, never as a full
// identifier equality check.
func (id Identifier) LocalID() byte {
	return byte(id & 0x7f)
}
