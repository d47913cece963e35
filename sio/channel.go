package sio

import (
	"time"

	"github.com/whizzosoftware/sio2go/drive"
	"github.com/whizzosoftware/sio2go/proto"
	"github.com/whizzosoftware/sio2go/sdrive"
)

// state is the Channel's position in the command/data-frame state machine,
// per spec.md §4.2.
type state int

const (
	stateInit state = iota
	stateWaitCmdStart
	stateReadCmd
	stateReadDataFrame
	stateWaitCmdEnd
)

// Timing constants, per spec.md §4.2 and §6.
const (
	T2 = 5 * time.Millisecond
	T4 = 1 * time.Millisecond
	T5 = 1 * time.Millisecond

	InterByteGap = 700 * time.Microsecond

	ReadCmdTimeout  = 500 * time.Millisecond
	ReadFrameTimeout = 2000 * time.Millisecond
)

// pendingWrite tracks the in-flight WRITE/PUT command while the channel is
// in stateReadDataFrame.
type pendingWrite struct {
	deviceID byte
	sector   uint16
}

// Channel is the SIO protocol engine, per spec.md §2 and §4.2. It owns no
// transport; callers drive it with RunCycle and OnByte and it emits wire
// bytes through a UARTWriter.
type Channel struct {
	line    CommandLine
	uart    UARTWriter
	sleeper Sleeper
	clock   Clock

	registry *drive.Registry
	sdrive   *sdrive.Handler

	state      state
	cmdBuf     []byte
	cmdStart   time.Time
	frameStart time.Time

	dataBuf        []byte
	dataSectorSize int

	write pendingWrite

	lastWriteErr error
}

// emit writes a single byte to the transport. Per spec.md §7, nothing in
// this core panics; a transport failure is recorded and the caller can
// inspect it with LastWriteError rather than the channel crashing mid-reply.
func (c *Channel) emit(b byte) {
	if err := c.uart.WriteByte(b); err != nil {
		c.lastWriteErr = err
	}
}

// LastWriteError returns the most recent transport write error, if any.
func (c *Channel) LastWriteError() error {
	return c.lastWriteErr
}

// NewChannel constructs a Channel. registry and sdriveHandler supply the
// command dispatch targets; line/uart/sleeper/clock are the transport and
// timing collaborators (spec.md §6).
func NewChannel(line CommandLine, uart UARTWriter, sleeper Sleeper, clock Clock, registry *drive.Registry, sdriveHandler *sdrive.Handler) *Channel {
	return &Channel{
		line:     line,
		uart:     uart,
		sleeper:  sleeper,
		clock:    clock,
		registry: registry,
		sdrive:   sdriveHandler,
		state:    stateInit,
	}
}

// RunCycle polls the COMMAND line and channel timers. Call it as often as
// possible, per spec.md §5.
func (c *Channel) RunCycle() {
	switch c.state {
	case stateInit:
		if c.line.High() {
			c.state = stateWaitCmdStart
		}
	case stateWaitCmdStart:
		if !c.line.High() {
			c.cmdBuf = c.cmdBuf[:0]
			c.cmdStart = c.clock.Now()
			c.state = stateReadCmd
		}
	case stateReadCmd:
		if len(c.cmdBuf) == 0 {
			c.cmdStart = c.clock.Now()
		}
		if c.clock.Now().Sub(c.cmdStart) > ReadCmdTimeout {
			c.state = stateWaitCmdStart
		}
	case stateReadDataFrame:
		if c.clock.Now().Sub(c.frameStart) > ReadFrameTimeout {
			c.state = stateWaitCmdStart
		}
	case stateWaitCmdEnd:
		if c.line.High() {
			c.state = stateWaitCmdStart
		}
	}
}

// OnByte feeds one serial byte into the channel. Call it on every UART byte
// received, per spec.md §5.
func (c *Channel) OnByte(b byte) {
	switch c.state {
	case stateReadCmd:
		c.onCommandByte(b)
	case stateReadDataFrame:
		c.onDataByte(b)
	}
}

// onCommandByte accumulates the 5-byte command frame, per spec.md §4.2's
// command-frame arrival rule: bytes are only accepted while COMMAND is LOW,
// and the first byte must pass IsValidDevice or it is dropped.
func (c *Channel) onCommandByte(b byte) {
	if len(c.cmdBuf) == 0 {
		if !proto.IsValidDevice(b) {
			return
		}
		c.cmdStart = c.clock.Now()
	}
	c.cmdBuf = append(c.cmdBuf, b)
	if len(c.cmdBuf) < proto.CommandFrameSize {
		return
	}

	frame := proto.ParseCommandFrame(c.cmdBuf)
	c.cmdBuf = c.cmdBuf[:0]

	if !frame.ChecksumValid() {
		// Bad command-frame checksum: silent return to idle, per spec.md §7.
		c.state = stateWaitCmdStart
		return
	}
	c.dispatch(frame)
}

// dispatch executes a validated command frame and drives the reply framing
// described in spec.md §4.2.
func (c *Channel) dispatch(frame proto.CommandFrame) {
	switch {
	case frame.DeviceID == proto.DeviceSDrive:
		c.dispatchSDrive(frame)
	case c.registry.Drive(frame.DeviceID) != nil:
		c.dispatchDrive(frame)
	default:
		// Not addressed to a device we own: silently return to idle.
		c.state = stateWaitCmdStart
	}
}

func (c *Channel) dispatchSDrive(frame proto.CommandFrame) {
	if !sdrive.IsValidCommand(frame.Command) {
		c.nak()
		return
	}

	c.sleeper.Sleep(T2)
	c.emit(proto.ACK)

	result := c.sdrive.Handle(frame.Command, frame.Aux1, frame.Aux2)

	c.sleeper.Sleep(T5)
	c.emit(proto.COMPLETE)

	if len(result.Data) > 0 {
		if frame.Command == sdrive.CmdGet20 {
			// get20's Data is already the complete wire payload, including
			// its own trailing checksum over the 220 name bytes (spec.md
			// §4.3, §8 scenario 6): emit it as-is rather than appending a
			// second checksum over the whole buffer via sendDataFrame.
			c.sendRawFrame(result.Data)
		} else {
			c.sendDataFrame(result.Data)
		}
	}
	c.state = stateWaitCmdEnd
}

// dispatchDrive handles the D1..D8 disk commands, per spec.md §4.2's table.
func (c *Channel) dispatchDrive(frame proto.CommandFrame) {
	if !proto.IsDriveCommand(frame.Command) {
		c.nak()
		return
	}

	d := c.registry.Drive(frame.DeviceID)

	c.sleeper.Sleep(T2)
	c.emit(proto.ACK)

	switch frame.Command {
	case proto.CmdStatus, proto.CmdPoll:
		c.sleeper.Sleep(T5)
		c.emit(proto.COMPLETE)
		if frame.Command == proto.CmdStatus {
			c.sendDataFrame(d.Status().StatusFrame.Marshal()[:])
		}
		c.state = stateWaitCmdEnd

	case proto.CmdRead:
		c.pace(d)
		packet, derr := d.ReadSector(frame.Sector())
		c.sleeper.Sleep(T5)
		if derr != nil {
			c.emit(proto.ERR)
			zeros := make([]byte, d.Status().SectorSize)
			c.sendDataFrame(zeros)
		} else if packet.Error {
			c.emit(proto.ERR)
			c.sendDataFrame(packet.Data)
		} else {
			c.emit(proto.COMPLETE)
			c.sendDataFrame(packet.Data)
		}
		c.state = stateWaitCmdEnd

	case proto.CmdWrite, proto.CmdPut:
		c.write = pendingWrite{deviceID: frame.DeviceID, sector: frame.Sector()}
		c.frameStart = c.clock.Now()
		c.state = stateReadDataFrame
		c.dataBuf = c.dataBuf[:0]
		c.dataSectorSize = int(d.Status().SectorSize)

	case proto.CmdFormat:
		c.completeFormat(d, proto.DensitySD)

	case proto.CmdFormatMD:
		c.completeFormat(d, proto.DensityED)

	default:
		c.state = stateWaitCmdEnd
	}
}

// completeFormat implements the FORMAT/FORMAT_MD reply framing, per
// spec.md §4.2: a data frame whose first two and last two bytes are 0xFF,
// interior 0x00, of length sector_size.
func (c *Channel) completeFormat(d *drive.Drive, density byte) {
	derr := d.Format(density)
	c.sleeper.Sleep(T5)
	if derr != nil {
		c.emit(proto.ERR)
	} else {
		c.emit(proto.COMPLETE)
	}
	n := int(d.Status().SectorSize)
	payload := make([]byte, n)
	if n >= 4 {
		payload[0], payload[1] = 0xFF, 0xFF
		payload[n-2], payload[n-1] = 0xFF, 0xFF
	}
	c.sendDataFrame(payload)
	c.state = stateWaitCmdEnd
}

// pace sleeps once for the mounted image's pacing delay before a sector
// read, if the image reports one (only PRO images do). It does not measure
// the read's service time or round it up to a multiple of that delay.
func (c *Channel) pace(d *drive.Drive) {
	quantum, ok := d.Pace()
	if !ok || quantum <= 0 {
		return
	}
	c.sleeper.Sleep(quantum)
}

// sendDataFrame waits the inter-byte gap, then emits data followed by its
// SIO checksum, per spec.md §4.2 step 4.
func (c *Channel) sendDataFrame(data []byte) {
	c.sleeper.Sleep(InterByteGap)
	for _, b := range data {
		c.emit(b)
	}
	c.emit(proto.Checksum(data))
}

// sendRawFrame waits the inter-byte gap, then emits data verbatim with no
// checksum byte appended, for replies that already carry their own trailing
// checksum as part of data (GET20, per spec.md §4.3/§8 scenario 6).
func (c *Channel) sendRawFrame(data []byte) {
	c.sleeper.Sleep(InterByteGap)
	for _, b := range data {
		c.emit(b)
	}
}

// nak replies NAK to a malformed-but-addressed command, per spec.md §4.2/§7.
func (c *Channel) nak() {
	c.sleeper.Sleep(T2)
	c.emit(proto.NAK)
	c.state = stateWaitCmdEnd
}

// onDataByte accumulates the inbound WRITE/PUT payload (sector_size+1
// bytes: data then checksum), per spec.md §4.2 state READ_DATAFRAME.
func (c *Channel) onDataByte(b byte) {
	c.dataBuf = append(c.dataBuf, b)
	if len(c.dataBuf) < c.dataSectorSize+1 {
		return
	}

	payload := c.dataBuf[:c.dataSectorSize]
	checksum := c.dataBuf[c.dataSectorSize]
	c.dataBuf = c.dataBuf[:0]

	c.sleeper.Sleep(T4)
	if proto.Checksum(payload) != checksum {
		c.emit(proto.NAK)
		c.state = stateWaitCmdEnd
		return
	}
	c.emit(proto.ACK)

	d := c.registry.Drive(c.write.deviceID)
	derr := d.WriteSector(c.write.sector, payload)

	c.sleeper.Sleep(T5)
	if derr != nil {
		c.emit(proto.ERR)
	} else {
		c.emit(proto.COMPLETE)
	}
	c.state = stateWaitCmdEnd
}
