// Package drive implements the virtual disk drive and its registry: the
// abstract status/read/write/format operations spec.md §2 describes, each
// wrapping exactly one image.Codec.
package drive

import (
	"time"

	"github.com/whizzosoftware/sio2go/image"
	"github.com/whizzosoftware/sio2go/proto"
	"github.com/whizzosoftware/sio2go/sioerr"
)

// Status is a Drive's reported DriveStatus, per spec.md §3.
type Status struct {
	SectorSize  uint32
	StatusFrame proto.StatusFrame
}

// Drive wraps one mounted image.Codec and owns its Status, per spec.md §2.
// A Drive with no mounted image still answers Status (motor bit as
// configured, sector_size=128) but fails Read/Write/Format.
type Drive struct {
	codec  image.Codec
	status proto.StatusFrame
}

// emptyDriveStatus returns the StatusFrame reported by a slot with no media
// present. Per spec.md §8 scenario 1, the hardware_status lines read all
// asserted with no drive hardware actively driving them low, the way
// pulled-up WD179x status lines read when idle; only command_status stays
// clear since nothing has been attempted at the OS level yet.
func emptyDriveStatus() proto.StatusFrame {
	f := proto.DefaultStatusFrame()
	f.HardwareStatus = proto.HardwareStatus{
		Busy: true, DRQOrIndex: true, DataLostOrTrack0: true, CRCError: true,
		RecordNotFound: true, RecordType: true, WriteProtected: true, NotReady: true,
	}
	return f
}

// New returns an empty Drive with no image mounted.
func New() *Drive {
	return &Drive{status: emptyDriveStatus()}
}

// Mount replaces any previously mounted image with codec. Per spec.md §3's
// lifecycle invariant, the old codec (and its sector buffers) is simply
// dropped; Go's GC reclaims it once this is the last reference.
func (d *Drive) Mount(codec image.Codec) {
	d.codec = codec
	d.status = proto.DefaultStatusFrame()
	d.status.CommandStatus.WriteProtect = codec.ReadOnly()
	d.status.HardwareStatus.WriteProtected = codec.ReadOnly()
}

// Unmount removes any mounted image, reverting the Drive to its empty state.
func (d *Drive) Unmount() {
	d.codec = nil
	d.status = emptyDriveStatus()
}

// HasImage reports whether an image is currently mounted.
func (d *Drive) HasImage() bool {
	return d.codec != nil
}

// Status returns the Drive's current status, per spec.md §4.2's STATUS
// command and §3's DriveStatus type.
func (d *Drive) Status() Status {
	sectorSize := uint32(proto.SDSectorSize)
	if d.codec != nil {
		sectorSize = d.codec.SectorSize()
	}
	return Status{SectorSize: sectorSize, StatusFrame: d.status}
}

// ReadSector implements the READ command, per spec.md §4.2. A per-sector
// valid status frame from the image codec is copied into the Drive's
// status for the next STATUS query, per spec.md §3.
func (d *Drive) ReadSector(sector uint16) (*image.SectorPacket, *sioerr.DriverError) {
	if d.codec == nil {
		return nil, sioerr.New(sioerr.ENoImage)
	}
	packet, err := d.codec.ReadSector(sector)
	if err != nil {
		return nil, err
	}
	if packet.ValidStatusFrame {
		d.status = packet.StatusFrame
	}
	return packet, nil
}

// WriteSector implements the WRITE/PUT commands, per spec.md §4.2.
func (d *Drive) WriteSector(sector uint16, data []byte) *sioerr.DriverError {
	if d.codec == nil {
		return sioerr.New(sioerr.ENoImage)
	}
	return d.codec.WriteSector(sector, data)
}

// Format implements the FORMAT/FORMAT_MD commands, per spec.md §4.2.
func (d *Drive) Format(density byte) *sioerr.DriverError {
	if d.codec == nil {
		return sioerr.New(sioerr.ENoImage)
	}
	err := d.codec.Format(density)
	if err != nil {
		d.status.CommandStatus.WriteFailure = true
		return err
	}
	d.status.CommandStatus.WriteFailure = false
	return nil
}

// Pace reports the delay the mounted image asks to be slept before each
// sector read (see image.MinProSectorRead), or zero and false if the image
// has no pacing requirement or no image is mounted.
func (d *Drive) Pace() (quantum time.Duration, ok bool) {
	type paced interface{ Pace() time.Duration }
	p, isPaced := d.codec.(paced)
	if !isPaced {
		return 0, false
	}
	return p.Pace(), true
}
