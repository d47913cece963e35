package image_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/whizzosoftware/sio2go/image"
)

func TestOpen_RecognizesXEX(t *testing.T) {
	raw := make([]byte, 256)
	raw[0], raw[1] = 0xFF, 0xFF
	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "game.xex", int64(len(raw)))
	require.Nil(t, derr)

	assert.Equal(t, image.KindXEX, codec.Kind())
	assert.True(t, codec.ReadOnly())
}

func TestXEX_ReadSector_LoaderEncodesPayloadSize(t *testing.T) {
	raw := make([]byte, 600)
	raw[0], raw[1] = 0xFF, 0xFF
	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "game.xex", int64(len(raw)))
	require.Nil(t, derr)

	packet, derr := codec.ReadSector(1)
	require.Nil(t, derr)
	assert.EqualValues(t, len(raw)&0xFF, packet.Data[9])
	assert.EqualValues(t, (len(raw)>>8)&0xFF, packet.Data[10])
}

func TestXEX_ReadSector_PayloadFollowsLoader(t *testing.T) {
	raw := make([]byte, 600)
	raw[0], raw[1] = 0xFF, 0xFF
	for i := 128; i < len(raw); i++ {
		raw[i] = byte(i)
	}
	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "game.xex", int64(len(raw)))
	require.Nil(t, derr)

	packet, derr := codec.ReadSector(4)
	require.Nil(t, derr)
	assert.Equal(t, raw[0:128], packet.Data)
}

func TestXEX_ReadSector_PastPayloadIsError(t *testing.T) {
	raw := make([]byte, 128)
	raw[0], raw[1] = 0xFF, 0xFF
	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "game.xex", int64(len(raw)))
	require.Nil(t, derr)

	_, derr = codec.ReadSector(5)
	assert.NotNil(t, derr)
}

func TestXEX_WriteAndFormat_AreReadOnly(t *testing.T) {
	raw := make([]byte, 256)
	raw[0], raw[1] = 0xFF, 0xFF
	codec, derr := image.Open(bytesextra.NewReadWriteSeeker(raw), "game.xex", int64(len(raw)))
	require.Nil(t, derr)

	assert.NotNil(t, codec.WriteSector(1, make([]byte, 128)))
	assert.NotNil(t, codec.Format(1))
}
