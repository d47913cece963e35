// Package image implements the disk-image codec: decoding ATR, XFD, PRO,
// ATX, and XEX files into a uniform sector read/write/format surface, per
// spec.md §3-4.4 through §4.8.
package image

import (
	"io"

	"github.com/whizzosoftware/sio2go/proto"
	"github.com/whizzosoftware/sio2go/sioerr"
)

// Kind identifies the on-disk layout of a mounted image.
type Kind int

const (
	KindATR Kind = iota + 1
	KindXFD
	KindPRO
	KindATX
	KindXEX
)

func (k Kind) String() string {
	switch k {
	case KindATR:
		return "ATR"
	case KindXFD:
		return "XFD"
	case KindPRO:
		return "PRO"
	case KindATX:
		return "ATX"
	case KindXEX:
		return "XEX"
	default:
		return "UNKNOWN"
	}
}

// SectorPacket is the result of a sector read, per spec.md §3.
type SectorPacket struct {
	SectorSize      uint32
	Data            []byte
	Error           bool
	ValidStatusFrame bool
	StatusFrame     proto.StatusFrame
}

// Codec is the uniform interface the SIO channel's Drive uses to talk to a
// mounted image, regardless of its on-disk Kind.
type Codec interface {
	Kind() Kind
	SectorSize() uint32
	ReadOnly() bool
	HasCopyProtection() bool
	ReadSector(sector uint16) (*SectorPacket, *sioerr.DriverError)
	WriteSector(sector uint16, data []byte) *sioerr.DriverError
	Format(density byte) *sioerr.DriverError
}

// Stream is the subset of io.ReadWriteSeeker the codecs need; images are
// backed by an os.File in production and an in-memory bytesextra seeker in
// tests (see SPEC_FULL.md "External interfaces").
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
}

// Open reads the first bytes of s and the (optional) file name hint, and
// returns a Codec for whichever format matches first, per the recognition
// order in spec.md §4.4. size is the total byte length of s.
func Open(s Stream, name string, size int64) (Codec, *sioerr.DriverError) {
	header := make([]byte, 16)
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return nil, sioerr.Newf(sioerr.EShortRead, "seek to header: %s", err)
	}
	n, err := io.ReadFull(s, header)
	if err != nil && n < 4 {
		return nil, sioerr.Newf(sioerr.EUnrecognizedFormat, "file too short for any known image format")
	}
	// Pad short reads (e.g. a tiny file) with zeroes so format tests below
	// can inspect header bytes without bounds-checking every access.
	for i := n; i < len(header); i++ {
		header[i] = 0
	}

	if isATR(header) {
		return newATRCodec(s, header, size)
	}
	if isPRO(header, size) {
		return newPROCodec(s, header, size)
	}
	if isATX(header) {
		return newATXCodec(s, size)
	}
	if hasExtension(name, ".xfd") && size == FormatSSSD40 {
		return newXFDCodec(s, size)
	}
	if hasExtension(name, ".xex") {
		return newXEXCodec(s, size)
	}

	return nil, sioerr.New(sioerr.EUnrecognizedFormat)
}

func hasExtension(name, ext string) bool {
	if len(name) < len(ext) {
		return false
	}
	tail := name[len(name)-len(ext):]
	return equalFold(tail, ext)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
