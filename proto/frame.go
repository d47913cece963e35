package proto

// CommandFrame is the 5-byte request the host sends to address a device, per
// spec.md §3: device_id, command, aux1, aux2, checksum.
type CommandFrame struct {
	DeviceID byte
	Command  byte
	Aux1     byte
	Aux2     byte
	Checksum byte
}

// ParseCommandFrame decodes a 5-byte buffer into a CommandFrame. It does not
// validate the checksum; call ChecksumValid for that.
func ParseCommandFrame(b []byte) CommandFrame {
	return CommandFrame{
		DeviceID: b[0],
		Command:  b[1],
		Aux1:     b[2],
		Aux2:     b[3],
		Checksum: b[4],
	}
}

// ChecksumValid reports whether f.Checksum matches the SIO checksum of the
// first four bytes of the frame.
func (f CommandFrame) ChecksumValid() bool {
	return Checksum([]byte{f.DeviceID, f.Command, f.Aux1, f.Aux2}) == f.Checksum
}

// Sector returns the 1-based target sector number encoded in aux2·256+aux1.
func (f CommandFrame) Sector() uint16 {
	return uint16(f.Aux2)<<8 | uint16(f.Aux1)
}

// HardwareStatus is the WD179x-shaped byte 1 of a StatusFrame. All bits are
// named in the decoded (active-high) sense; producers on the real wire use
// active-low semantics for some of these, which callers must account for
// when decoding copy-protection per-sector status (see image/pro.go,
// image/atx.go).
type HardwareStatus struct {
	Busy            bool
	DRQOrIndex      bool
	DataLostOrTrack0 bool
	CRCError        bool
	RecordNotFound  bool
	RecordType      bool
	WriteProtected  bool
	NotReady        bool
}

// Pack encodes h into its single wire byte, bit 0 = Busy .. bit 7 = NotReady.
func (h HardwareStatus) Pack() byte {
	var b byte
	setBit(&b, 0, h.Busy)
	setBit(&b, 1, h.DRQOrIndex)
	setBit(&b, 2, h.DataLostOrTrack0)
	setBit(&b, 3, h.CRCError)
	setBit(&b, 4, h.RecordNotFound)
	setBit(&b, 5, h.RecordType)
	setBit(&b, 6, h.WriteProtected)
	setBit(&b, 7, h.NotReady)
	return b
}

// UnpackHardwareStatus decodes a wire byte into a HardwareStatus.
func UnpackHardwareStatus(b byte) HardwareStatus {
	return HardwareStatus{
		Busy:             getBit(b, 0),
		DRQOrIndex:       getBit(b, 1),
		DataLostOrTrack0: getBit(b, 2),
		CRCError:         getBit(b, 3),
		RecordNotFound:   getBit(b, 4),
		RecordType:       getBit(b, 5),
		WriteProtected:   getBit(b, 6),
		NotReady:         getBit(b, 7),
	}
}

// CommandStatus is byte 0 of a StatusFrame.
type CommandStatus struct {
	InvalidCommandFrame bool
	InvalidDataFrame    bool
	WriteFailure        bool
	WriteProtect        bool
	Motor               bool
	DoubleDensity       bool
	_                   bool // unused, bit 6
	EnhancedDensity     bool
}

// Pack encodes c into its single wire byte, bit 0 = InvalidCommandFrame ..
// bit 7 = EnhancedDensity.
func (c CommandStatus) Pack() byte {
	var b byte
	setBit(&b, 0, c.InvalidCommandFrame)
	setBit(&b, 1, c.InvalidDataFrame)
	setBit(&b, 2, c.WriteFailure)
	setBit(&b, 3, c.WriteProtect)
	setBit(&b, 4, c.Motor)
	setBit(&b, 5, c.DoubleDensity)
	setBit(&b, 7, c.EnhancedDensity)
	return b
}

// UnpackCommandStatus decodes a wire byte into a CommandStatus.
func UnpackCommandStatus(b byte) CommandStatus {
	return CommandStatus{
		InvalidCommandFrame: getBit(b, 0),
		InvalidDataFrame:    getBit(b, 1),
		WriteFailure:        getBit(b, 2),
		WriteProtect:        getBit(b, 3),
		Motor:               getBit(b, 4),
		DoubleDensity:       getBit(b, 5),
		EnhancedDensity:     getBit(b, 7),
	}
}

// StatusFrame is the 4-byte reply to a STATUS command (and the per-sector
// status some copy-protection formats inject), per spec.md §3.
type StatusFrame struct {
	CommandStatus  CommandStatus
	HardwareStatus HardwareStatus
	TimeoutLSB     byte
	TimeoutMSB     byte
}

// DefaultStatusFrame returns a StatusFrame with timeout_lsb defaulted to
// 0xE0, as spec.md §3 requires.
func DefaultStatusFrame() StatusFrame {
	return StatusFrame{TimeoutLSB: 0xE0}
}

// Marshal encodes f into its 4 wire bytes.
func (f StatusFrame) Marshal() [4]byte {
	return [4]byte{
		f.CommandStatus.Pack(),
		f.HardwareStatus.Pack(),
		f.TimeoutLSB,
		f.TimeoutMSB,
	}
}

// UnmarshalStatusFrame decodes 4 wire bytes into a StatusFrame.
func UnmarshalStatusFrame(b [4]byte) StatusFrame {
	return StatusFrame{
		CommandStatus:  UnpackCommandStatus(b[0]),
		HardwareStatus: UnpackHardwareStatus(b[1]),
		TimeoutLSB:     b[2],
		TimeoutMSB:     b[3],
	}
}

func setBit(b *byte, pos uint, v bool) {
	if v {
		*b |= 1 << pos
	}
}

func getBit(b byte, pos uint) bool {
	return b&(1<<pos) != 0
}
