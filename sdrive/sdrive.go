// Package sdrive implements the SDrive auxiliary file-selection device
// (0x71): the non-disk command subset described in spec.md §4.3. Only the
// on-wire command set is in scope; directory traversal/browsing UI is an
// external collaborator per spec.md §1.
package sdrive

import "github.com/whizzosoftware/sio2go/proto"

// Command codes, per spec.md §4.3.
const (
	CmdIdent       byte = 0xE0
	CmdInit        byte = 0xE1
	CmdGetParams   byte = 0xEF
	CmdGetEntries  byte = 0xEB
	CmdChdir       byte = 0xE3
	CmdGet20       byte = 0xC0
	CmdMountD0     byte = 0xF0
	CmdMountD1     byte = 0xF1
	CmdMountD2     byte = 0xF2
	CmdMountD3     byte = 0xF3
	CmdMountD4     byte = 0xF4
	CmdSwapVDN     byte = 0xEE
	CmdChroot      byte = 0xFE
)

// IdentString is the fixed identification reply for CmdIdent.
const IdentString = "SDrive01"

// FileEntry is one directory entry as returned by a ControlSurface, in the
// 8.3-style 11-character name form the GET20 command transmits.
type FileEntry struct {
	Name [11]byte
}

// ControlSurface is the host-application callback surface SDrive commands
// dispatch to, per spec.md §6.
type ControlSurface interface {
	// ListFiles fills out with up to len(out) entries starting at
	// startIndex, returning the number of entries actually filled.
	ListFiles(startIndex int, out []FileEntry) int
	// MountFile mounts the file at fileIndex onto driveSlot (0-based).
	MountFile(driveSlot int, fileIndex int)
	// ChangeDir changes the current directory to the entry at index.
	ChangeDir(index int)
}

// Handler decodes SDrive commands and calls into a ControlSurface, per
// spec.md §4.3. It does not itself perform wire framing/timing; callers
// (sio.Channel) wrap its Handle result with the ACK/COMPLETE/ERR pacing
// common to every SIO command.
type Handler struct {
	control ControlSurface
}

// NewHandler returns a Handler dispatching to control.
func NewHandler(control ControlSurface) *Handler {
	return &Handler{control: control}
}

// IsValidCommand reports whether cmd is a recognized SDrive command.
func IsValidCommand(cmd byte) bool {
	switch cmd {
	case CmdIdent, CmdInit, CmdGetParams, CmdGetEntries, CmdChdir, CmdGet20,
		CmdMountD0, CmdMountD1, CmdMountD2, CmdMountD3, CmdMountD4,
		CmdSwapVDN, CmdChroot:
		return true
	default:
		return false
	}
}

// Result is what a Handle call produces: the data frame, if any, to send
// after COMPLETE.
type Result struct {
	Data []byte
}

// Handle executes cmd with the given aux bytes and returns the data frame
// (if any) to emit after COMPLETE. SDrive commands never fail at the
// command-execution level in this core (per spec.md §4.3, every listed
// command is a no-op or returns a fixed/derived shape), so Handle has no
// error return.
func (h *Handler) Handle(cmd, aux1, aux2 byte) Result {
	switch cmd {
	case CmdIdent:
		return Result{Data: append([]byte(IdentString), 0xB0)}
	case CmdInit, CmdSwapVDN, CmdChroot:
		return Result{}
	case CmdGetParams:
		return Result{Data: []byte{0x06, 0x00, 0x06}}
	case CmdGetEntries:
		n := int(aux1)
		data := make([]byte, n*12+1)
		return Result{Data: data}
	case CmdChdir:
		data := make([]byte, 15)
		if h.control != nil {
			h.control.ChangeDir(int(aux1))
		}
		return Result{Data: data}
	case CmdGet20:
		return Result{Data: h.get20()}
	case CmdMountD0, CmdMountD1, CmdMountD2, CmdMountD3, CmdMountD4:
		slot := int(cmd - CmdMountD0)
		fileIndex := int(aux2)<<8 | int(aux1)
		if h.control != nil {
			h.control.MountFile(slot, fileIndex)
		}
		return Result{}
	default:
		return Result{}
	}
}

// get20 builds the GET20 reply: 20 entries of 11-byte name + 0x00, a
// trailing 0x00, then the SIO checksum computed over exactly the 220 name
// bytes, per spec.md §4.3 and §8 scenario 6.
func (h *Handler) get20() []byte {
	var entries [20]FileEntry
	if h.control != nil {
		h.control.ListFiles(0, entries[:])
	}

	out := make([]byte, 0, 20*12+2)
	var nameBytes []byte
	for _, e := range entries {
		out = append(out, e.Name[:]...)
		out = append(out, 0x00)
		nameBytes = append(nameBytes, e.Name[:]...)
	}
	out = append(out, 0x00)
	out = append(out, proto.Checksum(nameBytes))
	return out
}
