package image_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/whizzosoftware/sio2go/image"
)

// buildPRO constructs a minimal one-sector PRO image. sectorHeaderByte1 is
// the raw wire byte1 (hardware_status, active-low) of the sole sector's
// header.
func buildPRO(sectorHeaderByte1 byte, data []byte) []byte {
	const sectorCount = 1
	header := make([]byte, 16)
	header[0] = 0x00
	header[1] = sectorCount
	header[2] = 'P'
	header[4] = 0 // PSMSimple: no phantom toggling

	sectorHeader := make([]byte, 16)
	sectorHeader[1] = sectorHeaderByte1

	buf := append(header, sectorHeader...)
	buf = append(buf, data...)
	return buf
}

func TestOpen_RecognizesPRO(t *testing.T) {
	data := make([]byte, 128)
	raw := buildPRO(0xFF, data)

	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "game.pro", int64(len(raw)))
	require.Nil(t, derr)

	assert.Equal(t, image.KindPRO, codec.Kind())
	assert.True(t, codec.ReadOnly())
	assert.True(t, codec.HasCopyProtection())
}

func TestPRO_ReadSector_CRCErrorBit(t *testing.T) {
	// Scenario 4, spec.md §8: wire byte1 has only the crc_error bit
	// cleared (active-low asserted); every other bit deasserted (=1).
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}
	raw := buildPRO(0xF7, data)

	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "game.pro", int64(len(raw)))
	require.Nil(t, derr)

	packet, derr := codec.ReadSector(1)
	require.Nil(t, derr)

	assert.True(t, packet.Error)
	assert.True(t, packet.ValidStatusFrame)
	assert.True(t, packet.StatusFrame.HardwareStatus.CRCError)
	assert.False(t, packet.StatusFrame.HardwareStatus.RecordNotFound)
	assert.Equal(t, data, packet.Data)
}

func TestPRO_WriteAndFormat_AreReadOnly(t *testing.T) {
	raw := buildPRO(0xFF, make([]byte, 128))
	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "game.pro", int64(len(raw)))
	require.Nil(t, derr)

	assert.NotNil(t, codec.WriteSector(1, make([]byte, 128)))
	assert.NotNil(t, codec.Format(1))
}

func TestPRO_PhantomToggle_AlternatesOnEveryRead(t *testing.T) {
	// Sector 1 carries a phantom at slot 720+1=721, per spec.md §4.5's
	// "offset 720 + phantom1 into the same sector-stride table".
	const stride = 16 + 128
	const slotCount = 721
	const fileSize = 16 + slotCount*stride

	buf := make([]byte, fileSize)
	buf[0] = byte(slotCount >> 8)
	buf[1] = byte(slotCount)
	buf[2] = 'P'
	buf[4] = byte(2) // PSMGlobalFlipFlop

	namedOffset := 16 + int64(0)*stride
	buf[namedOffset+1] = 0xFF // no error
	buf[namedOffset+5] = 1    // total_phantoms
	buf[namedOffset+7] = 1    // phantom1 -> slot 720+1
	buf[namedOffset+16] = 0x01

	phantomOffset := 16 + int64(720)*stride
	buf[phantomOffset+1] = 0xFF
	buf[phantomOffset+16] = 0x02

	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(buf), "game.pro", int64(len(buf)))
	require.Nil(t, derr)

	first, derr := codec.ReadSector(1)
	require.Nil(t, derr)
	second, derr := codec.ReadSector(1)
	require.Nil(t, derr)

	assert.EqualValues(t, 0x01, first.Data[0])
	assert.EqualValues(t, 0x02, second.Data[0])
}
