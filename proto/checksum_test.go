package proto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/whizzosoftware/sio2go/proto"
)

func TestChecksum_CommandFrame(t *testing.T) {
	// 0x31 0x53 0x00 0x00 -> checksum 0x84, per spec.md §8 scenario 1.
	got := proto.Checksum([]byte{0x31, 0x53, 0x00, 0x00})
	assert.EqualValues(t, 0x84, got)
}

func TestChecksum_AllZeroSector(t *testing.T) {
	data := make([]byte, 128)
	assert.EqualValues(t, 0x00, proto.Checksum(data))
}

func TestChecksum_CommutativeInAddition(t *testing.T) {
	forward := []byte{0x01, 0x02, 0x03, 0xFF, 0x7E}
	reversed := make([]byte, len(forward))
	for i, b := range forward {
		reversed[len(forward)-1-i] = b
	}
	assert.Equal(t, proto.Checksum(forward), proto.Checksum(reversed))
}
