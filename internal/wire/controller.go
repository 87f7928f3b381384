package wire

// The four Controller opcodes carry no payload beyond the common header;
// they are addressed to the switch and distinguished entirely by Cmd.
// ControllerResetSwitch, ControllerStop, ControllerStartTimer, and
// ControllerStopTimer are sent with Size and CapID left zero.

// NewControllerHeader builds the CommonHeader for one of the four
// controller opcodes.
func NewControllerHeader(op Opcode) CommonHeader {
	return CommonHeader{
		Size:     0,
		StreamID: NewStreamID(),
		Cmd:      op,
		CapID:    NilCapabilityID,
	}
}
