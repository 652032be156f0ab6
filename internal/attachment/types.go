// Package attachment binds payload objects to a character skeleton, drives
// their per-frame socket simulation and collects them for rendering.
package attachment

import (
	"errors"
	"strings"

	"charattach/internal/mathutil"
)

// Type is the attachment variant.
type Type int

const (
	TypeBone Type = iota + 1
	TypeFace
	TypeSkin
	TypeProx
	TypeRow
	TypeVCloth
)

var typeNames = map[Type]string{
	TypeBone:   "CA_BONE",
	TypeFace:   "CA_FACE",
	TypeSkin:   "CA_SKIN",
	TypeProx:   "CA_PROX",
	TypeRow:    "CA_PROW",
	TypeVCloth: "CA_VCLOTH",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "CA_INVALID"
}

// ParseType maps a list type tag such as "CA_BONE" to its Type. Unknown tags
// return 0, false.
func ParseType(s string) (Type, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == s {
			return t, true
		}
	}
	return 0, false
}

// Flags is the per-attachment render and state bitset.
type Flags uint32

const (
	FlagHideMainPass Flags = 1 << iota
	FlagHideShadowPass
	FlagHideRecursion
	FlagNearestNoShadow
	FlagPhysicalizedRays
	FlagPhysicalizedCollisions
	FlagSWSkinning
	FlagRenderOnlyExistingLOD
	FlagLinearSkinning
	FlagMatrixSkinning
)

const (
	FlagVisible          Flags = 1 << 13
	FlagProjected        Flags = 1 << 14
	FlagWasPhysicalized  Flags = 1 << 15
	FlagHideAttachment         = FlagHideMainPass | FlagHideShadowPass | FlagHideRecursion
	derivedFlags               = FlagVisible | FlagProjected | FlagWasPhysicalized
)

// ObjectKind is the concrete kind of a bound payload.
type ObjectKind int

const (
	KindStatObj ObjectKind = iota + 1
	KindSkeleton
	KindEntity
	KindLight
	KindEffect
	KindSkinMesh
	KindCloth
)

func (k ObjectKind) String() string {
	switch k {
	case KindStatObj:
		return "statobj"
	case KindSkeleton:
		return "skeleton"
	case KindEntity:
		return "entity"
	case KindLight:
		return "light"
	case KindEffect:
		return "effect"
	case KindSkinMesh:
		return "skinmesh"
	case KindCloth:
		return "cloth"
	}
	return "unknown"
}

// animated reports whether a payload needs a per-frame processing hook.
func (k ObjectKind) animated() bool {
	switch k {
	case KindSkeleton, KindEntity, KindLight, KindEffect:
		return true
	}
	return false
}

// Object is a payload bound to an attachment. Release is called exactly once
// when the binding is cleared.
type Object interface {
	Kind() ObjectKind
	RadiusSqr() float64
	ProcessAttachment(a Attachment)
	Release()
}

// SkinVertex is one bind-pose vertex of a skin mesh with up to four joint
// influences. Joints index the skin's own JointNames table.
type SkinVertex struct {
	Pos     mathutil.Vec3
	Joints  [4]int
	Weights [4]float64
}

// SkinSource is implemented by skin payloads that expose their geometry for
// joint remapping and face projection.
type SkinSource interface {
	Object
	// Ready reports whether the geometry has finished streaming in.
	Ready() bool
	JointNames() []string
	Vertices() []SkinVertex
	Triangles() [][3]int
}

// Record is the persisted per-attachment state.
type Record struct {
	Name   string `json:"name"`
	Hidden bool   `json:"hidden"`
}

var (
	ErrNameInUse          = errors.New("attachment: name already in use")
	ErrNameCRCClash       = errors.New("attachment: name hash collides with an existing attachment")
	ErrUnknownJoint       = errors.New("attachment: unknown joint")
	ErrTypeMismatch       = errors.New("attachment: type mismatch")
	ErrIncompatibleObject = errors.New("attachment: object kind not supported by this attachment type")
	ErrEmptyName          = errors.New("attachment: empty name")
)
