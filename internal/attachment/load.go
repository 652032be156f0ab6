package attachment

import (
	"fmt"

	"charattach/internal/attachlist"
	"charattach/internal/mathutil"
	"charattach/internal/proxy"
	"charattach/internal/simulation"
)

// LoadAttachmentList parses an attachment list file and creates everything
// it describes. It returns the number of attachments and proxies created.
func (m *Manager) LoadAttachmentList(path string) (int, error) {
	descs, err := attachlist.Parse(path)
	if err != nil {
		return 0, err
	}
	n := m.InitAttachmentList(descs)
	Logger().Info("attachment: list loaded", "path", path, "entries", len(descs), "created", n)
	return n, nil
}

// InitAttachmentList creates the attachments and proxies of descs in order.
// Entries that fail are logged and skipped; the rest are projected.
func (m *Manager) InitAttachmentList(descs []attachlist.Desc) int {
	n := 0
	for i := range descs {
		if err := m.initOne(&descs[i]); err != nil {
			Logger().Warn("attachment: list entry skipped", "name", descs[i].Name, "type", descs[i].Type, "err", err)
			continue
		}
		n++
	}
	m.ProjectAllAttachments()
	return n
}

func (m *Manager) initOne(d *attachlist.Desc) error {
	typ, ok := ParseType(d.Type)
	if !ok {
		return fmt.Errorf("%w: unknown type %q", ErrTypeMismatch, d.Type)
	}
	if typ == TypeProx {
		_, err := m.CreateProxy(d.Name, d.BoneName, d.ProxyParams, proxy.Purpose(d.ProxyPurpose), d.AbsoluteDefault())
		return err
	}

	joint := d.BoneName
	if typ == TypeRow {
		joint = d.RowJointName
	}
	a, err := m.CreateAttachment(d.Name, typ, joint, "")
	if err != nil {
		return err
	}

	switch v := a.(type) {
	case *BoneAttachment:
		v.SetAttAbsoluteDefault(m.boneDefault(d))
		if d.Sim.ClampType != simulation.ClampNone {
			v.SetSimParams(d.Sim)
		}
		v.SetProcFunction(d.ProcFunction)
	case *FaceAttachment:
		v.SetAttAbsoluteDefault(d.AbsoluteDefault())
		if d.Sim.ClampType != simulation.ClampNone {
			v.SetSimParams(d.Sim)
		}
	case *RowAttachment:
		if d.HasRow {
			v.SetRowParams(d.Row)
		}
	case *VClothAttachment:
		v.Cloth = d.Cloth
	}

	a.SetFlags(Flags(d.Flags))
	a.HideAttachment(Flags(d.Flags)&FlagHideAttachment != 0)
	m.bindListObject(a, d.Binding)
	return nil
}

// boneDefault returns the model-space default of a bone entry. Authored
// relative components override the ones derived from the absolute default.
func (m *Manager) boneDefault(d *attachlist.Desc) mathutil.QuatT {
	abs := d.AbsoluteDefault()
	if !d.HasRelPosition && !d.HasRelRotation {
		return abs
	}
	id := m.skel.JointIDByName(d.BoneName)
	jd := m.skel.DefaultAbsolute(id)
	rel := jd.Inverted().Mul(abs)
	if d.HasRelRotation {
		rel.Q = d.RelRotation.Normalize()
	}
	if d.HasRelPosition {
		rel.T = d.RelPosition
	}
	return jd.Mul(rel).Normalized()
}

func (m *Manager) bindListObject(a Attachment, binding string) {
	if binding == "" || m.loader == nil {
		return
	}
	obj, err := m.loader.Load(binding, a.Type())
	if err != nil {
		Logger().Warn("attachment: binding not loaded", "name", a.Name(), "binding", binding, "err", err)
		return
	}
	if obj == nil {
		return
	}
	if err := a.AddBinding(obj); err != nil {
		Logger().Warn("attachment: binding rejected", "name", a.Name(), "binding", binding, "kind", obj.Kind(), "err", err)
		obj.Release()
	}
}
