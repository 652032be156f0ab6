package assets

import (
	"errors"
	"fmt"

	"charattach/internal/attachment"
)

// ErrNotFound is returned for bindings the index cannot resolve.
var ErrNotFound = errors.New("assets: binding not found")

// Loader creates attachment payloads from model files. Geometry is shared
// through the cache; every Load returns a fresh payload.
type Loader struct {
	cache *Cache
}

// NewLoader returns a loader backed by cache.
func NewLoader(cache *Cache) *Loader {
	return &Loader{cache: cache}
}

// Load implements attachment.ObjectLoader. SKIN attachments get a skin mesh,
// VCLOTH attachments a cloth mesh and everything else a static object.
func (l *Loader) Load(binding string, typ attachment.Type) (attachment.Object, error) {
	path, ok := l.cache.Index().ResolvePath(binding)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, binding)
	}
	geom, err := l.cache.Geometry(path)
	if err != nil {
		return nil, err
	}
	switch typ {
	case attachment.TypeSkin:
		return &SkinMesh{Static: Static{Geom: geom}, kind: attachment.KindSkinMesh}, nil
	case attachment.TypeVCloth:
		return &SkinMesh{Static: Static{Geom: geom}, kind: attachment.KindCloth}, nil
	}
	return &Static{Geom: geom}, nil
}

// Static is a rigid payload bound to a socket.
type Static struct {
	Geom      *Geometry
	Processed int // frames the payload was updated
	Released  bool
}

func (s *Static) Kind() attachment.ObjectKind { return attachment.KindStatObj }
func (s *Static) RadiusSqr() float64          { return s.Geom.RadiusSqr }

func (s *Static) ProcessAttachment(attachment.Attachment) { s.Processed++ }
func (s *Static) Release()                                { s.Released = true }

// SkinMesh is a deformable payload that exposes its geometry for joint
// remapping and face projection.
type SkinMesh struct {
	Static
	kind attachment.ObjectKind
}

func (s *SkinMesh) Kind() attachment.ObjectKind       { return s.kind }
func (s *SkinMesh) Ready() bool                       { return !s.Released }
func (s *SkinMesh) JointNames() []string              { return s.Geom.Joints }
func (s *SkinMesh) Vertices() []attachment.SkinVertex { return s.Geom.Vertices }
func (s *SkinMesh) Triangles() [][3]int               { return s.Geom.Triangles }
