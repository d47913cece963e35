package image

import (
	"encoding/binary"
	"io"

	"github.com/noxer/bytewriter"

	"github.com/whizzosoftware/sio2go/proto"
	"github.com/whizzosoftware/sio2go/sioerr"
)

const atrSignature = 0x0296
const atrHeaderSize = 16

// ATRHeader is the 16-byte little-endian header of an .atr image, per
// spec.md §3.
type ATRHeader struct {
	Signature uint16
	Pars      uint16
	SecSize   uint16
	ParsHigh  uint8
	CRC       uint32
	Unused    uint32
	Flags     uint8
}

// WriteProtectHint reports whether bit 0 of the reserved Flags byte is set.
// Real ATR tooling treats this as a hint the original author wanted the
// image treated as read-only; this core's own writability decision (ATR is
// always writable at the codec level, per spec.md §3) is unaffected by it,
// see SPEC_FULL.md.
func (h ATRHeader) WriteProtectHint() bool {
	return h.Flags&0x01 != 0
}

func parseATRHeader(b []byte) ATRHeader {
	return ATRHeader{
		Signature: u16le(b[0:2]),
		Pars:      u16le(b[2:4]),
		SecSize:   u16le(b[4:6]),
		ParsHigh:  b[6],
		CRC:       u32le(b[7:11]),
		Unused:    u32le(b[11:15]),
		Flags:     b[15],
	}
}

// marshalATRHeader writes h into a fresh 16-byte header the way
// file_systems/unixv1's formatter writes into a fixed-size output slice:
// via bytewriter wrapping the preallocated buffer as an io.Writer instead
// of indexing it by hand.
func marshalATRHeader(h ATRHeader) []byte {
	b := make([]byte, atrHeaderSize)
	w := bytewriter.New(b)
	binary.Write(w, binary.LittleEndian, h.Signature)
	binary.Write(w, binary.LittleEndian, h.Pars)
	binary.Write(w, binary.LittleEndian, h.SecSize)
	binary.Write(w, binary.LittleEndian, h.ParsHigh)
	binary.Write(w, binary.LittleEndian, h.CRC)
	binary.Write(w, binary.LittleEndian, h.Unused)
	binary.Write(w, binary.LittleEndian, h.Flags)
	return b
}

func isATR(header []byte) bool {
	return u16le(header[0:2]) == atrSignature
}

type atrCodec struct {
	s          Stream
	header     ATRHeader
	sectorSize uint32
	dataSize   int64
}

func newATRCodec(s Stream, header []byte, fileSize int64) (Codec, *sioerr.DriverError) {
	h := parseATRHeader(header)
	c := &atrCodec{
		s:          s,
		header:     h,
		sectorSize: uint32(h.SecSize),
		dataSize:   fileSize - atrHeaderSize,
	}
	if c.sectorSize == 0 {
		c.sectorSize = proto.SDSectorSize
	}
	return c, nil
}

func (c *atrCodec) Kind() Kind             { return KindATR }
func (c *atrCodec) SectorSize() uint32     { return c.sectorSize }
func (c *atrCodec) ReadOnly() bool         { return false }
func (c *atrCodec) HasCopyProtection() bool { return false }

func (c *atrCodec) offsetFor(sector uint16) int64 {
	return int64(atrHeaderSize) + int64(sector-1)*int64(c.sectorSize)
}

func (c *atrCodec) ReadSector(sector uint16) (*SectorPacket, *sioerr.DriverError) {
	offset := c.offsetFor(sector)
	if sector == 0 || offset+int64(c.sectorSize) > atrHeaderSize+c.dataSize {
		return nil, sioerr.Newf(sioerr.EBadSector, "sector %d out of range", sector)
	}
	if _, err := c.s.Seek(offset, io.SeekStart); err != nil {
		return nil, sioerr.Newf(sioerr.EShortRead, "seek: %s", err)
	}
	data := make([]byte, c.sectorSize)
	if _, err := io.ReadFull(c.s, data); err != nil {
		return nil, sioerr.Newf(sioerr.EShortRead, "read sector %d: %s", sector, err)
	}
	return &SectorPacket{SectorSize: c.sectorSize, Data: data}, nil
}

func (c *atrCodec) WriteSector(sector uint16, data []byte) *sioerr.DriverError {
	offset := c.offsetFor(sector)
	if sector == 0 || offset+int64(c.sectorSize) > atrHeaderSize+c.dataSize {
		return sioerr.Newf(sioerr.EBadSector, "sector %d out of range", sector)
	}
	if _, err := c.s.Seek(offset, io.SeekStart); err != nil {
		return sioerr.Newf(sioerr.EWriteFailed, "seek: %s", err)
	}
	if _, err := c.s.Write(data[:c.sectorSize]); err != nil {
		return sioerr.Newf(sioerr.EWriteFailed, "write sector %d: %s", sector, err)
	}
	return nil
}

func (c *atrCodec) Format(density byte) *sioerr.DriverError {
	length := int64(FormatSSSD40)
	if density == proto.DensityED {
		length = FormatSSED40
	}

	if _, err := c.s.Seek(0, io.SeekStart); err != nil {
		return sioerr.Newf(sioerr.EFormatFailed, "seek: %s", err)
	}

	header := ATRHeader{
		Signature: atrSignature,
		Pars:      uint16(length / 16),
		SecSize:   proto.SDSectorSize,
		CRC:       c.header.CRC,
		Flags:     c.header.Flags,
	}
	if _, err := c.s.Write(marshalATRHeader(header)); err != nil {
		return sioerr.Newf(sioerr.EFormatFailed, "write header: %s", err)
	}

	zeroes := make([]byte, length)
	if _, err := c.s.Write(zeroes); err != nil {
		return sioerr.Newf(sioerr.EFormatFailed, "zero data: %s", err)
	}

	c.header = header
	c.sectorSize = proto.SDSectorSize
	c.dataSize = length
	return nil
}
