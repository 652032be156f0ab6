package attachment

import (
	"fmt"

	"charattach/internal/proxy"
	"charattach/internal/skeleton"
)

// ProcFunc is a named procedure run on a bone attachment after its update.
type ProcFunc func(a Attachment, pose *skeleton.Pose)

type procEntry struct {
	name string
	crc  uint32
	fn   ProcFunc
}

// RegisterProcFunction adds a named procedure. Names are keyed by their
// lowercase hash.
func (m *Manager) RegisterProcFunction(name string, fn ProcFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("attachment: invalid proc function %q", name)
	}
	crc := proxy.NameCRC(name)
	for _, p := range m.procs {
		if p.crc == crc {
			return fmt.Errorf("%w: proc function %q", ErrNameInUse, name)
		}
	}
	m.procs = append(m.procs, procEntry{name: name, crc: crc, fn: fn})
	return nil
}

// GetProcFunctionName returns the name registered at idx, or "".
func (m *Manager) GetProcFunctionName(idx int) string {
	if idx < 0 || idx >= len(m.procs) {
		return ""
	}
	return m.procs[idx].name
}

// ExecProcFunction runs the procedure called name on a. It reports false
// when nothing is registered under that name.
func (m *Manager) ExecProcFunction(name string, a Attachment, pose *skeleton.Pose) bool {
	return m.ExecProcFunctionCRC(proxy.NameCRC(name), a, pose)
}

func (m *Manager) ExecProcFunctionCRC(crc uint32, a Attachment, pose *skeleton.Pose) bool {
	for _, p := range m.procs {
		if p.crc == crc {
			p.fn(a, pose)
			return true
		}
	}
	return false
}
