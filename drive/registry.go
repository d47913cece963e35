package drive

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
	"github.com/hashicorp/go-multierror"

	"github.com/whizzosoftware/sio2go/image"
	"github.com/whizzosoftware/sio2go/proto"
)

// NumSlots is the number of drive device IDs the registry tracks (D1..D8),
// per spec.md §2.
const NumSlots = 8

// Registry is the fixed-size device-ID → Drive mapping spec.md §2 names.
// Slot occupancy is tracked with the same bitmap allocator pattern the
// teacher uses for block allocation (drivers/common/allocatormap.go).
type Registry struct {
	drives   [NumSlots]*Drive
	occupied bitmap.Bitmap
}

// NewRegistry returns a Registry with all 8 slots populated with empty
// (unmounted) Drives.
func NewRegistry() *Registry {
	r := &Registry{occupied: bitmap.New(NumSlots)}
	for i := range r.drives {
		r.drives[i] = New()
	}
	return r
}

// slotForDevice converts a wire device ID (proto.DeviceD1..D8) to a 0-based
// slot index, or -1 if deviceID doesn't address a drive.
func slotForDevice(deviceID byte) int {
	if deviceID < proto.DeviceD1 || deviceID > proto.DeviceD8 {
		return -1
	}
	return int(deviceID - proto.DeviceD1)
}

// Drive returns the Drive for deviceID, or nil if deviceID isn't D1..D8.
func (r *Registry) Drive(deviceID byte) *Drive {
	slot := slotForDevice(deviceID)
	if slot < 0 {
		return nil
	}
	return r.drives[slot]
}

// Mount mounts codec onto the drive addressed by deviceID.
func (r *Registry) Mount(deviceID byte, codec image.Codec) error {
	slot := slotForDevice(deviceID)
	if slot < 0 {
		return fmt.Errorf("device id 0x%02X does not address a drive", deviceID)
	}
	r.drives[slot].Mount(codec)
	r.occupied.Set(slot, true)
	return nil
}

// MountSlot mounts codec onto the 0-based drive slot, for callers such as
// the CLI that address slots rather than wire device IDs.
func (r *Registry) MountSlot(slot int, codec image.Codec) error {
	if slot < 0 || slot >= NumSlots {
		return fmt.Errorf("drive slot %d out of range", slot)
	}
	r.drives[slot].Mount(codec)
	r.occupied.Set(slot, true)
	return nil
}

// Unmount clears the image mounted on deviceID, if any.
func (r *Registry) Unmount(deviceID byte) {
	slot := slotForDevice(deviceID)
	if slot < 0 {
		return
	}
	r.drives[slot].Unmount()
	r.occupied.Set(slot, false)
}

// Occupied reports which of the 8 slots currently have an image mounted.
func (r *Registry) Occupied() [NumSlots]bool {
	var out [NumSlots]bool
	for i := range out {
		out[i] = r.occupied.Get(i)
	}
	return out
}

// MountAll is a bulk-mount helper: it mounts every (slot, codec)
// pair, aggregating failures with go-multierror instead of stopping at the
// first bad image so a typo in one slot doesn't block the rest from coming
// up.
func (r *Registry) MountAll(codecs map[int]image.Codec) error {
	var result *multierror.Error
	for slot, codec := range codecs {
		if err := r.MountSlot(slot, codec); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
