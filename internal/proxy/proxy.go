// Package proxy implements the lozenge collision volumes that socket
// simulations and cloth collide against. A lozenge is a box with half-extents
// Params.X/Y/Z inflated by radius Params.W; zero extents give a sphere, one
// non-zero extent a capsule.
package proxy

import (
	"hash/crc32"
	"math"
	"strings"

	"charattach/internal/mathutil"
)

// Purpose tags what a proxy collides with.
type Purpose int

const (
	PurposeSimulation Purpose = iota
	PurposeCloth
	PurposeRagdoll
)

func (p Purpose) String() string {
	switch p {
	case PurposeSimulation:
		return "simulation"
	case PurposeCloth:
		return "cloth"
	case PurposeRagdoll:
		return "ragdoll"
	}
	return "unknown"
}

// DefaultParams is the lozenge used when none is given: a 0.25 sphere.
var DefaultParams = mathutil.Vec4{0, 0, 0, 0.25}

// Proxy is one collision lozenge bound to a joint.
type Proxy struct {
	Name      string
	NameCRC   uint32
	JointName string
	JointID   int
	Params    mathutil.Vec4
	Purpose   Purpose
	Hidden    bool

	AbsoluteDefault   mathutil.QuatT // model space at bind time
	RelativeDefault   mathutil.QuatT // joint space
	ModelRelative     mathutil.QuatT // current frame, model space
	ModelRelativePrev mathutil.QuatT
}

// NameCRC hashes a name the way attachments and proxies are keyed: CRC32 of
// the lowercased name.
func NameCRC(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(strings.ToLower(name)))
}

// New returns an unprojected proxy (JointID -1).
func New(name, joint string, params mathutil.Vec4, purpose Purpose, absDefault mathutil.QuatT) *Proxy {
	return &Proxy{
		Name:              name,
		NameCRC:           NameCRC(name),
		JointName:         joint,
		JointID:           -1,
		Params:            params,
		Purpose:           purpose,
		AbsoluteDefault:   absDefault,
		RelativeDefault:   mathutil.Identity(),
		ModelRelative:     absDefault,
		ModelRelativePrev: absDefault,
	}
}

// JointResolver is the slice of the default skeleton a proxy needs.
type JointResolver interface {
	JointIDByName(name string) int
	DefaultAbsolute(id int) mathutil.QuatT
}

// Project binds the proxy to its joint and derives the joint-relative default.
// It reports false, leaving JointID at -1, when the joint is unknown.
func (p *Proxy) Project(skel JointResolver) bool {
	p.JointID = -1
	id := skel.JointIDByName(p.JointName)
	if id < 0 {
		return false
	}
	p.JointID = id
	p.RelativeDefault = skel.DefaultAbsolute(id).Inverted().Mul(p.AbsoluteDefault)
	return true
}

// AlignWithJoint snaps the proxy onto its joint's default transform.
func (p *Proxy) AlignWithJoint(skel JointResolver) {
	if p.JointID < 0 {
		return
	}
	p.AbsoluteDefault = skel.DefaultAbsolute(p.JointID)
	p.RelativeDefault = mathutil.Identity()
}

// UpdateFromJoint refreshes ModelRelative from the joint's current transform.
func (p *Proxy) UpdateFromJoint(jointAbs mathutil.QuatT) {
	p.ModelRelative = jointAbs.Mul(p.RelativeDefault)
}

// Valid reports whether the lozenge parameters can be queried.
func (p *Proxy) Valid() bool {
	return validParams(p.Params)
}

func validParams(l mathutil.Vec4) bool {
	for _, c := range l {
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			return false
		}
	}
	return true
}
