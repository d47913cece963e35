package image

import (
	"io"

	"github.com/whizzosoftware/sio2go/proto"
	"github.com/whizzosoftware/sio2go/sioerr"
)

type xfdCodec struct {
	s        Stream
	dataSize int64
}

func newXFDCodec(s Stream, fileSize int64) (Codec, *sioerr.DriverError) {
	return &xfdCodec{s: s, dataSize: fileSize}, nil
}

func (c *xfdCodec) Kind() Kind             { return KindXFD }
func (c *xfdCodec) SectorSize() uint32     { return proto.SDSectorSize }
func (c *xfdCodec) ReadOnly() bool         { return false }
func (c *xfdCodec) HasCopyProtection() bool { return false }

func (c *xfdCodec) offsetFor(sector uint16) int64 {
	return int64(sector-1) * proto.SDSectorSize
}

func (c *xfdCodec) ReadSector(sector uint16) (*SectorPacket, *sioerr.DriverError) {
	offset := c.offsetFor(sector)
	if sector == 0 || offset+proto.SDSectorSize > c.dataSize {
		return nil, sioerr.Newf(sioerr.EBadSector, "sector %d out of range", sector)
	}
	if _, err := c.s.Seek(offset, io.SeekStart); err != nil {
		return nil, sioerr.Newf(sioerr.EShortRead, "seek: %s", err)
	}
	data := make([]byte, proto.SDSectorSize)
	if _, err := io.ReadFull(c.s, data); err != nil {
		return nil, sioerr.Newf(sioerr.EShortRead, "read sector %d: %s", sector, err)
	}
	return &SectorPacket{SectorSize: proto.SDSectorSize, Data: data}, nil
}

func (c *xfdCodec) WriteSector(sector uint16, data []byte) *sioerr.DriverError {
	offset := c.offsetFor(sector)
	if sector == 0 || offset+proto.SDSectorSize > c.dataSize {
		return sioerr.Newf(sioerr.EBadSector, "sector %d out of range", sector)
	}
	if _, err := c.s.Seek(offset, io.SeekStart); err != nil {
		return sioerr.Newf(sioerr.EWriteFailed, "seek: %s", err)
	}
	if _, err := c.s.Write(data[:proto.SDSectorSize]); err != nil {
		return sioerr.Newf(sioerr.EWriteFailed, "write sector %d: %s", sector, err)
	}
	return nil
}

func (c *xfdCodec) Format(density byte) *sioerr.DriverError {
	length := int64(FormatSSSD40)
	if density == proto.DensityED {
		length = FormatSSED40
	}
	if _, err := c.s.Seek(0, io.SeekStart); err != nil {
		return sioerr.Newf(sioerr.EFormatFailed, "seek: %s", err)
	}
	zeroes := make([]byte, length)
	if _, err := c.s.Write(zeroes); err != nil {
		return sioerr.Newf(sioerr.EFormatFailed, "zero data: %s", err)
	}
	c.dataSize = length
	return nil
}
