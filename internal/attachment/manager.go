package attachment

import (
	"fmt"
	"strings"

	"charattach/internal/mathutil"
	"charattach/internal/proxy"
	"charattach/internal/simulation"
	"charattach/internal/skeleton"
)

// Handle is a stable reference to an attachment. It stops resolving once
// the attachment is removed, even if its slot is reused.
type Handle struct {
	Index uint32
	Gen   uint32
}

// IsValid reports whether h was ever issued; it says nothing about liveness.
func (h Handle) IsValid() bool { return h.Gen != 0 }

type slot struct {
	a   Attachment
	gen uint32
}

// ObjectLoader creates payloads for attachment list bindings.
type ObjectLoader interface {
	Load(binding string, typ Type) (Object, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithObjectLoader sets the loader used for list bindings.
func WithObjectLoader(l ObjectLoader) Option {
	return func(m *Manager) { m.loader = l }
}

// WithObserver sets the simulation observer.
func WithObserver(o simulation.Observer) Option {
	return func(m *Manager) { m.SetObserver(o) }
}

// Manager owns every attachment and proxy of one character. It is not safe
// for concurrent use and must not be mutated from inside an update pass.
type Manager struct {
	skel     *skeleton.Default
	pose     *skeleton.Pose // last pose handed to an update pass
	location mathutil.QuatTS
	loader   ObjectLoader
	observer simulation.Observer

	slots []slot
	free  []uint32
	order []Attachment // flat attachment array, partitioned by SortByType

	gen              uint64
	sortedGen        uint64
	ranges           [numBuckets][2]int
	redirectPayloads int

	proxies    []proxySlot
	proxyFree  []uint32
	proxyOrder []ProxyHandle
	proxyByCRC map[uint32]ProxyHandle

	procs     []procEntry
	setupErrs map[string]string

	blendJoint int
	turbulence float64
	zoomSq     float64
}

// NewManager returns an empty manager for characters built on skel.
func NewManager(skel *skeleton.Default, opts ...Option) *Manager {
	m := &Manager{
		skel:       skel,
		location:   mathutil.IdentityTS(),
		observer:   simulation.NopObserver{},
		gen:        1,
		proxyByCRC: make(map[uint32]ProxyHandle),
		setupErrs:  make(map[string]string),
		blendJoint: -1,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetObserver replaces the simulation observer; nil disables observation.
func (m *Manager) SetObserver(o simulation.Observer) {
	if o == nil {
		o = simulation.NopObserver{}
	}
	m.observer = o
}

// Skeleton returns the default skeleton attachments are projected onto.
func (m *Manager) Skeleton() *skeleton.Default { return m.skel }

// SetLocation places the character in the world.
func (m *Manager) SetLocation(loc mathutil.QuatTS) { m.location = loc }

func (m *Manager) Location() mathutil.QuatTS { return m.location }

// ZoomDistanceSq is the squared zoom-adjusted camera distance of the last
// non-recursive draw.
func (m *Manager) ZoomDistanceSq() float64 { return m.zoomSq }

// Turbulence is the accumulated row turbulence phase.
func (m *Manager) Turbulence() float64 { return m.turbulence }

func (m *Manager) touch() { m.gen++ }

// CreateAttachment adds an attachment. Names are unique case-insensitively
// and by name hash. Bones need a joint known to the skeleton, rows a row
// joint name. Failures are logged and return a nil attachment.
func (m *Manager) CreateAttachment(name string, typ Type, joint, secondJoint string) (Attachment, error) {
	a, err := m.create(name, typ, joint, secondJoint)
	if err != nil {
		Logger().Warn("attachment: create failed", "name", name, "type", typ, "joint", joint, "err", err)
		return nil, err
	}
	m.insert(a)
	return a, nil
}

func (m *Manager) create(name string, typ Type, joint, secondJoint string) (Attachment, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	crc := proxy.NameCRC(name)
	for _, a := range m.order {
		if strings.EqualFold(a.Name(), name) {
			return nil, fmt.Errorf("%w: %q", ErrNameInUse, name)
		}
		if a.NameCRC() == crc {
			return nil, fmt.Errorf("%w: %q and %q", ErrNameCRCClash, name, a.Name())
		}
	}
	switch typ {
	case TypeBone:
		if m.skel == nil || m.skel.JointIDByName(joint) < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownJoint, joint)
		}
		if secondJoint != "" && m.skel.JointIDByName(secondJoint) < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownJoint, secondJoint)
		}
		return newBone(name, joint, secondJoint), nil
	case TypeFace:
		return newFace(name), nil
	case TypeSkin:
		return newSkin(name), nil
	case TypeRow:
		names := simulation.RowJointNames(joint)
		if len(names) == 0 || m.skel == nil || m.skel.JointIDByName(names[0]) < 0 {
			return nil, fmt.Errorf("%w: row joint %q", ErrUnknownJoint, joint)
		}
		return newRow(name, joint), nil
	case TypeVCloth:
		return newVCloth(name), nil
	}
	return nil, fmt.Errorf("%w: cannot create %v attachments", ErrTypeMismatch, typ)
}

func (m *Manager) insert(a Attachment) {
	b := a.core()
	var idx uint32
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		idx = uint32(len(m.slots))
		m.slots = append(m.slots, slot{})
	}
	s := &m.slots[idx]
	s.gen++
	s.a = a
	b.mgr = m
	b.handle = Handle{Index: idx, Gen: s.gen}
	m.order = append(m.order, a)
	m.touch()
}

// RemoveAttachmentByIndex removes the attachment at i, moving the last one
// into its place. It reports false for an index out of range.
func (m *Manager) RemoveAttachmentByIndex(i int) bool {
	if i < 0 || i >= len(m.order) {
		return false
	}
	a := m.order[i]
	last := len(m.order) - 1
	m.order[i] = m.order[last]
	m.order[last] = nil
	m.order = m.order[:last]
	m.retire(a)
	return true
}

func (m *Manager) retire(a Attachment) {
	b := a.core()
	b.clear()
	b.refs = 0
	s := &m.slots[b.handle.Index]
	s.a = nil
	s.gen++
	m.free = append(m.free, b.handle.Index)
	delete(m.setupErrs, b.name)
	b.mgr = nil
	b.handle = Handle{}
	m.touch()
}

func (m *Manager) RemoveAttachmentByName(name string) bool {
	return m.RemoveAttachmentByIndex(m.GetIndexByName(name))
}

func (m *Manager) RemoveAttachmentByNameCRC(crc uint32) bool {
	return m.RemoveAttachmentByIndex(m.GetIndexByNameCRC(crc))
}

func (m *Manager) RemoveAttachmentByInterface(a Attachment) bool {
	if a == nil {
		return false
	}
	for i, x := range m.order {
		if x == a {
			return m.RemoveAttachmentByIndex(i)
		}
	}
	return false
}

// RemoveAllAttachments releases every payload, then every attachment.
func (m *Manager) RemoveAllAttachments() {
	for _, a := range m.order {
		a.ClearBinding()
	}
	for i := len(m.order); i > 0; i-- {
		m.RemoveAttachmentByIndex(i - 1)
	}
}

func (m *Manager) AttachmentCount() int { return len(m.order) }

// GetInterfaceByIndex returns the attachment at i in the flat array, nil
// when out of range. Indices change whenever the array is re-sorted.
func (m *Manager) GetInterfaceByIndex(i int) Attachment {
	if i < 0 || i >= len(m.order) {
		return nil
	}
	return m.order[i]
}

func (m *Manager) GetInterfaceByName(name string) Attachment {
	return m.GetInterfaceByIndex(m.GetIndexByName(name))
}

func (m *Manager) GetInterfaceByNameCRC(crc uint32) Attachment {
	return m.GetInterfaceByIndex(m.GetIndexByNameCRC(crc))
}

// GetInterfaceByHandle resolves h, nil when the attachment is gone.
func (m *Manager) GetInterfaceByHandle(h Handle) Attachment {
	if !h.IsValid() || int(h.Index) >= len(m.slots) {
		return nil
	}
	s := m.slots[h.Index]
	if s.gen != h.Gen {
		return nil
	}
	return s.a
}

// GetIndexByName is case-insensitive; -1 when unknown.
func (m *Manager) GetIndexByName(name string) int {
	return m.GetIndexByNameCRC(proxy.NameCRC(name))
}

func (m *Manager) GetIndexByNameCRC(crc uint32) int {
	for i, a := range m.order {
		if a.NameCRC() == crc {
			return i
		}
	}
	return -1
}

// skins lists the skin attachments in flat-array order.
func (m *Manager) skins() []*SkinAttachment {
	var out []*SkinAttachment
	for _, a := range m.order {
		if s, ok := a.(*SkinAttachment); ok {
			out = append(out, s)
		}
	}
	return out
}

// inView reports whether a payload is large enough to see at the current zoom.
func (m *Manager) inView(obj Object) bool {
	r := obj.RadiusSqr()
	return r > 0 && m.zoomSq <= r
}

// setupError logs a simulation setup problem once per distinct message.
func (m *Manager) setupError(name, msg string) {
	if m.setupErrs[name] == msg {
		return
	}
	m.setupErrs[name] = msg
	Logger().Warn("attachment: simulation setup error", "name", name, "err", msg)
}
