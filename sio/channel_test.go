package sio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/whizzosoftware/sio2go/drive"
	"github.com/whizzosoftware/sio2go/image"
	"github.com/whizzosoftware/sio2go/proto"
	"github.com/whizzosoftware/sio2go/sdrive"
	"github.com/whizzosoftware/sio2go/sio"
)

// fakeLine is a manually-driven COMMAND line: low while asserted=true.
type fakeLine struct{ asserted bool }

func (f *fakeLine) High() bool { return !f.asserted }

// fakeUART records every emitted byte.
type fakeUART struct{ out []byte }

func (f *fakeUART) WriteByte(b byte) error {
	f.out = append(f.out, b)
	return nil
}

// fakeSleeper records requested delays instead of blocking.
type fakeSleeper struct{ delays []time.Duration }

func (f *fakeSleeper) Sleep(d time.Duration) { f.delays = append(f.delays, d) }

// fakeClock is manually advanced.
type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

type fakeControl struct{}

func (fakeControl) ListFiles(startIndex int, out []sdrive.FileEntry) int { return 0 }
func (fakeControl) MountFile(driveSlot int, fileIndex int)               {}
func (fakeControl) ChangeDir(index int)                                  {}

// namedFilesControl reports a handful of real 11-byte 8.3-style names
// followed by zero-padded empty slots, so GET20's checksum fixture isn't
// degenerate all-zero data.
type namedFilesControl struct{}

func (namedFilesControl) ListFiles(startIndex int, out []sdrive.FileEntry) int {
	names := []string{"GAME1   XEX", "BOOT    ATR", "UTIL1   COM"}
	for i, name := range names {
		if startIndex+i >= len(out) {
			break
		}
		copy(out[startIndex+i].Name[:], name)
	}
	return len(out)
}
func (namedFilesControl) MountFile(driveSlot int, fileIndex int) {}
func (namedFilesControl) ChangeDir(index int)                    {}

func freshATRBytes(sectors int) []byte {
	header := make([]byte, 16)
	header[0], header[1] = 0x96, 0x02
	header[4] = 128
	return append(header, make([]byte, sectors*128)...)
}

func feedCommandFrame(t *testing.T, c *sio.Channel, line *fakeLine, clk *fakeClock, deviceID, cmd, aux1, aux2 byte) {
	t.Helper()
	line.asserted = true
	c.RunCycle()
	c.RunCycle()

	frame := []byte{deviceID, cmd, aux1, aux2}
	frame = append(frame, proto.Checksum(frame))
	for _, b := range frame {
		c.OnByte(b)
	}
	line.asserted = false
}

func newChannel(reg *drive.Registry) (*sio.Channel, *fakeLine, *fakeUART, *fakeSleeper, *fakeClock) {
	return newChannelWithControl(reg, fakeControl{})
}

func newChannelWithControl(reg *drive.Registry, control sdrive.ControlSurface) (*sio.Channel, *fakeLine, *fakeUART, *fakeSleeper, *fakeClock) {
	line := &fakeLine{}
	uart := &fakeUART{}
	sleeper := &fakeSleeper{}
	clock := &fakeClock{now: time.Unix(0, 0)}
	h := sdrive.NewHandler(control)
	c := sio.NewChannel(line, uart, sleeper, clock, reg, h)
	// line starts HIGH (idle): move stateInit -> stateWaitCmdStart.
	c.RunCycle()
	return c, line, uart, sleeper, clock
}

func TestChannel_Status_EmptyDrive_MatchesScenario1(t *testing.T) {
	reg := drive.NewRegistry()
	c, line, uart, _, clk := newChannel(reg)

	feedCommandFrame(t, c, line, clk, proto.DeviceD1, proto.CmdStatus, 0x00, 0x00)

	require.GreaterOrEqual(t, len(uart.out), 1)
	assert.EqualValues(t, proto.ACK, uart.out[0])
	assert.EqualValues(t, proto.COMPLETE, uart.out[1])

	payload := uart.out[2:]
	require.Len(t, payload, 5) // 4-byte status frame + checksum
	assert.EqualValues(t, 0xE0, payload[len(payload)-1])
}

func TestChannel_Read_ReturnsZeroSectorAndCompletes(t *testing.T) {
	reg := drive.NewRegistry()
	raw := freshATRBytes(720)
	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "empty.atr", int64(len(raw)))
	require.Nil(t, derr)
	require.NoError(t, reg.Mount(proto.DeviceD1, codec))

	c, line, uart, _, clk := newChannel(reg)
	feedCommandFrame(t, c, line, clk, proto.DeviceD1, proto.CmdRead, 0x01, 0x00)

	assert.EqualValues(t, proto.ACK, uart.out[0])
	assert.EqualValues(t, proto.COMPLETE, uart.out[1])
	data := uart.out[2 : len(uart.out)-1]
	assert.Len(t, data, 128)
	for _, b := range data {
		assert.EqualValues(t, 0x00, b)
	}
	assert.EqualValues(t, proto.Checksum(data), uart.out[len(uart.out)-1])
}

func TestChannel_Write_RoundTrip(t *testing.T) {
	reg := drive.NewRegistry()
	raw := freshATRBytes(720)
	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "empty.atr", int64(len(raw)))
	require.Nil(t, derr)
	require.NoError(t, reg.Mount(proto.DeviceD1, codec))

	c, line, uart, _, clk := newChannel(reg)
	feedCommandFrame(t, c, line, clk, proto.DeviceD1, proto.CmdWrite, 0x02, 0x00)

	assert.EqualValues(t, proto.ACK, uart.out[0])

	payload := make([]byte, 128)
	for i := range payload {
		payload[i] = 0xAA
	}
	frame := append(append([]byte{}, payload...), proto.Checksum(payload))
	for _, b := range frame {
		c.OnByte(b)
	}

	assert.EqualValues(t, proto.ACK, uart.out[1]) // data-frame ack
	assert.EqualValues(t, proto.COMPLETE, uart.out[2])

	d := reg.Drive(proto.DeviceD1)
	packet, derr := d.ReadSector(2)
	require.Nil(t, derr)
	assert.Equal(t, payload, packet.Data)
}

func TestChannel_SDrive_Get20_ChecksumMatchesScenario6(t *testing.T) {
	// Scenario 6, spec.md §8: the GET20 reply is 20 entries of 11-byte
	// name + 0x00 separator, a trailing 0x00, then the SIO checksum of
	// exactly the 220 name bytes (not the separators, not the trailing
	// byte). The expected checksum here is computed independently of the
	// channel/handler under test, straight from the known file names, so
	// this catches a wire frame that's shaped right but checksummed wrong
	// (e.g. a checksum taken over the whole reply instead of just the
	// name bytes).
	names := []string{"GAME1   XEX", "BOOT    ATR", "UTIL1   COM"}
	var expectedNameBytes []byte
	for i := 0; i < 20; i++ {
		var name [11]byte
		if i < len(names) {
			copy(name[:], names[i])
		}
		expectedNameBytes = append(expectedNameBytes, name[:]...)
	}
	expectedChecksum := proto.Checksum(expectedNameBytes)

	reg := drive.NewRegistry()
	c, line, uart, _, clk := newChannelWithControl(reg, namedFilesControl{})

	feedCommandFrame(t, c, line, clk, proto.DeviceSDrive, sdrive.CmdGet20, 0x00, 0x00)

	assert.EqualValues(t, proto.ACK, uart.out[0])
	assert.EqualValues(t, proto.COMPLETE, uart.out[1])

	wire := uart.out[2:]
	require.Len(t, wire, 20*12+2)
	for i := 0; i < 20; i++ {
		off := i * 12
		assert.EqualValues(t, expectedNameBytes[i*11:i*11+11], wire[off:off+11])
		assert.EqualValues(t, 0x00, wire[off+11])
	}
	assert.EqualValues(t, 0x00, wire[240])
	assert.EqualValues(t, expectedChecksum, wire[241])
}

func TestChannel_UnaddressedDevice_StaysSilent(t *testing.T) {
	// 0x99 addresses neither a drive (D1..D8) nor SDrive, so it fails
	// IsValidDevice as a first byte and is dropped before a frame ever
	// accumulates.
	reg := drive.NewRegistry()
	c, line, uart, _, clk := newChannel(reg)

	feedCommandFrame(t, c, line, clk, 0x99, proto.CmdStatus, 0x00, 0x00)

	assert.Empty(t, uart.out)
}

func TestChannel_CommandReadTimeout_ReturnsToIdle(t *testing.T) {
	reg := drive.NewRegistry()
	c, line, uart, _, clk := newChannel(reg)

	line.asserted = true
	c.RunCycle()
	c.RunCycle()
	c.OnByte(proto.DeviceD1)

	clk.Advance(sio.ReadCmdTimeout + time.Millisecond)
	c.RunCycle()

	// The partial frame was abandoned on timeout; these bytes land in
	// stateWaitCmdStart and are ignored rather than completing a reply.
	c.OnByte(proto.CmdStatus)
	c.OnByte(0x00)
	c.OnByte(0x00)
	c.OnByte(proto.Checksum([]byte{proto.DeviceD1, proto.CmdStatus, 0x00, 0x00}))

	assert.Empty(t, uart.out)
}
