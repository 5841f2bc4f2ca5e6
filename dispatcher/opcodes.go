package dispatcher

// Operation codes identify the purpose of a frame's payload (spec §4.3).
// Accessory opcodes are grouped so that polarity can be read directly off
// the byte value: an even opcode is "on", odd is "off".
const (
	OpACON byte = 0x90 // long-form accessory on
	OpACOF byte = 0x91 // long-form accessory off
	OpARON byte = 0x92 // long-form accessory on (response/feedback)
	OpAROF byte = 0x93 // long-form accessory off (response/feedback)
	OpASON byte = 0x94 // short-form accessory on
	OpASOF byte = 0x95 // short-form accessory off

	OpRQNP  byte = 0x96 // request node parameters
	OpRQNPN byte = 0x97 // request a single node parameter
	OpSNN   byte = 0x98 // set node number
	OpRQNN  byte = 0x99 // request node number (claim setup)
	OpCANID byte = 0x9A // set bus identifier
	OpENUM  byte = 0x9B // force enumeration
	OpNVRD  byte = 0x9C // read node variable
	OpNVSET byte = 0x9D // write node variable
	OpNNLRN byte = 0x9E // enter learn mode
	OpNNULN byte = 0x9F // leave learn mode
	OpEVULN byte = 0xA0 // unlearn event
	OpEVLRN byte = 0xA1 // learn event
	OpNNCLR byte = 0xA2 // clear all events
	OpNNEVN byte = 0xA3 // request free event-slot count
	OpRQEVN byte = 0xA4 // request used event-slot count
	OpNERD  byte = 0xA5 // read back all events
	OpREVAL byte = 0xA6 // read back one event variable
	OpQNN   byte = 0xA7 // query node number
	OpRQMN  byte = 0xA8 // request module name
	OpDTXC  byte = 0xA9 // long-message fragment
	OpBOOT  byte = 0xAA // enter bootloader (ignored)
	OpRSTAT byte = 0xAB // request status (ignored)

	OpPARAMS byte = 0xB0
	OpPARAN  byte = 0xB1
	OpNNACK  byte = 0xB2
	OpNVANS  byte = 0xB3
	OpWRACK  byte = 0xB4
	OpCMDERR byte = 0xB5
	OpEVNLF  byte = 0xB6
	OpNUMEV  byte = 0xB7
	OpENRSP  byte = 0xB8
	OpNEVAL  byte = 0xB9
	OpPNN    byte = 0xBA
	OpNAME   byte = 0xBB
)
