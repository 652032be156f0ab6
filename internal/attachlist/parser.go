// Package attachlist reads character attachment lists: XML documents with
// one <Attachment> element per socket, skin, proxy, row or cloth.
package attachlist

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"charattach/internal/mathutil"
	"charattach/internal/simulation"
)

type xmlList struct {
	Attachments []xmlAttachment `xml:"Attachment"`
}

type xmlAttachment struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

var validTypes = map[string]bool{
	"CA_BONE": true, "CA_FACE": true, "CA_SKIN": true,
	"CA_PROX": true, "CA_PROW": true, "CA_VCLOTH": true,
}

// Parse reads an attachment list from disk.
func Parse(path string) ([]Desc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attachlist: read %s: %w", path, err)
	}
	descs, err := Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("attachlist: parse %s: %w", path, err)
	}
	return descs, nil
}

// Decode reads an attachment list. Entries with an unknown Type are skipped.
func Decode(r io.Reader) ([]Desc, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	var list xmlList
	if err := dec.Decode(&list); err != nil {
		return nil, err
	}
	descs := make([]Desc, 0, len(list.Attachments))
	for _, x := range list.Attachments {
		a := newAttrs(x.Attrs)
		if d, ok := a.desc(); ok {
			descs = append(descs, d)
		}
	}
	return descs, nil
}

// charsetReader decodes the legacy code pages older lists were saved in.
func charsetReader(label string, in io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		enc, err = ianaindex.MIME.Encoding(label)
	}
	if err != nil || enc == nil {
		return charmap.Windows1252.NewDecoder().Reader(in), nil
	}
	return enc.NewDecoder().Reader(in), nil
}

// attrs is a case-insensitive attribute set.
type attrs map[string]string

func newAttrs(list []xml.Attr) attrs {
	a := make(attrs, len(list))
	for _, x := range list {
		a[strings.ToLower(x.Name.Local)] = x.Value
	}
	return a
}

func (a attrs) str(k string) string { return a[strings.ToLower(k)] }

func (a attrs) floats(k string, n int) ([]float64, bool) {
	s, ok := a[strings.ToLower(k)]
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (a attrs) num(k string, dst *float64) bool {
	v, ok := a.floats(k, 1)
	if ok {
		*dst = v[0]
	}
	return ok
}

func (a attrs) vec2(k string, dst *mathutil.Vec2) bool {
	v, ok := a.floats(k, 2)
	if ok {
		*dst = mathutil.Vec2{v[0], v[1]}
	}
	return ok
}

func (a attrs) vec3(k string, dst *mathutil.Vec3) bool {
	v, ok := a.floats(k, 3)
	if ok {
		*dst = mathutil.Vec3{v[0], v[1], v[2]}
	}
	return ok
}

func (a attrs) vec4(k string, dst *mathutil.Vec4) bool {
	v, ok := a.floats(k, 4)
	if ok {
		*dst = mathutil.Vec4{v[0], v[1], v[2], v[3]}
	}
	return ok
}

// quat reads "w,x,y,z" and normalizes it.
func (a attrs) quat(k string, dst *mathutil.Quat) bool {
	v, ok := a.floats(k, 4)
	if !ok {
		return false
	}
	q := mgl64.Quat{W: v[0], V: mgl64.Vec3{v[1], v[2], v[3]}}
	if q.Len() < mathutil.Epsilon {
		return false
	}
	*dst = q.Normalize()
	return true
}

func (a attrs) integer(k string) (int, bool) {
	s, ok := a[strings.ToLower(k)]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if ferr != nil {
			return 0, false
		}
		v = int64(f)
	}
	return int(v), true
}

func (a attrs) intTo(k string, dst *int) bool {
	v, ok := a.integer(k)
	if ok {
		*dst = v
	}
	return ok
}

func (a attrs) flag(k string, dst *bool) bool {
	s, ok := a[strings.ToLower(k)]
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		*dst = true
	default:
		*dst = false
	}
	return true
}

// proxies appends the names under prefix00..prefix07.
func (a attrs) proxies(prefix string, dst []string) []string {
	for i := 0; i < simulation.MaxProxies; i++ {
		if n := a.str(fmt.Sprintf("%s%02d", prefix, i)); n != "" {
			dst = append(dst, n)
		}
	}
	return dst
}

// unifyPath lowercases and uses forward slashes.
func unifyPath(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "\\", "/"))
}

func (a attrs) desc() (Desc, bool) {
	typ := strings.ToUpper(strings.TrimSpace(a.str("Type")))
	if !validTypes[typ] {
		return Desc{}, false
	}
	d := Desc{
		Type:        typ,
		Name:        unifyPath(a.str("AName")),
		Rotation:    mgl64.QuatIdent(),
		RelRotation: mgl64.QuatIdent(),
		BoneName:    a.str("BoneName"),
		Binding:     unifyPath(a.str("Binding")),
		SimBinding:  a.str("SimBinding"),
		ProxyParams: mathutil.Vec4{0, 0, 0, 0.25},
		Sim:         simulation.DefaultParams(),
		Row:         simulation.DefaultRowParams(),
		Cloth:       simulation.DefaultClothParams(),
	}
	a.quat("Rotation", &d.Rotation)
	a.vec3("Position", &d.Position)
	d.HasRelRotation = a.quat("RelRotation", &d.RelRotation)
	d.HasRelPosition = a.vec3("RelPosition", &d.RelPosition)
	a.vec4("ProxyParams", &d.ProxyParams)
	a.intTo("ProxyPurpose", &d.ProxyPurpose)
	if f, ok := a.integer("Flags"); ok {
		d.Flags = uint32(f)
	}

	a.pendulum(&d)
	a.spring(&d)
	a.projection(&d)
	d.ProcFunction = a.str("ProcFunction")

	switch typ {
	case "CA_VCLOTH":
		a.cloth(&d.Cloth)
	case "CA_PROW":
		d.RowJointName = a.str("RowJointName")
		d.HasRow = a.row(&d.Row)
	}
	return d, true
}

func (a attrs) pendulum(d *Desc) {
	t, _ := a.integer("PA_PendulumType")
	ct := simulation.ClampType(t)
	if !ct.IsPendulum() {
		return
	}
	p := &d.Sim
	p.ClampType = ct
	a.num("PA_FPS", &p.FPS)
	a.flag("PA_Redirect", &p.Redirect)
	a.num("PA_MaxAngle", &p.MaxAngle)
	a.num("PA_HRotation", &p.HRotation)
	a.num("PA_Mass", &p.Mass)
	a.num("PA_Gravity", &p.Gravity)
	a.num("PA_Damping", &p.Damping)
	a.num("PA_Stiffness", &p.Stiffness)
	a.vec3("PA_PivotOffset", &p.PivotOffset)
	a.vec3("PA_PendulumOffset", &p.SimulationAxis)
	a.vec3("PA_SimulationAxis", &p.SimulationAxis)
	a.vec2("PA_StiffnessTarget", &p.StiffnessTarget)
	a.num("PA_CapsuleX", &p.CapsuleX)
	a.num("PA_CapsuleY", &p.CapsuleY)
	a.projectionType("PA_ProjectionType", &p.ProjectionType)
	p.DirTransJoint = dirTrans(a.str("PA_DirTransJointName"), d.BoneName)
	p.ProxyNames = a.proxies("PA_Proxy", p.ProxyNames)
}

func (a attrs) spring(d *Desc) {
	if t, _ := a.integer("SA_SpringType"); t == 0 {
		return
	}
	p := &d.Sim
	p.ClampType = simulation.ClampSpringEllipsoid
	a.num("SA_FPS", &p.FPS)
	a.num("SA_Radius", &p.Radius)
	a.num("SA_ScaleZP", &p.ScaleZP)
	a.num("SA_ScaleZN", &p.ScaleZN)
	a.num("SA_DiskRotX", &p.DiskRotX)
	a.num("SA_DiskRotZ", &p.DiskRotZ)
	a.num("SA_HRotation", &p.DiskRotX)
	a.flag("SA_Redirect", &p.Redirect)
	a.num("SA_Mass", &p.Mass)
	a.num("SA_Gravity", &p.Gravity)
	a.num("SA_Damping", &p.Damping)
	a.num("SA_Stiffness", &p.Stiffness)
	a.vec3("SA_PivotOffset", &p.PivotOffset)
	a.vec2("SA_StiffnessTarget", &p.StiffnessTarget)
	p.CapsuleX = 0
	a.num("SA_CapsuleY", &p.CapsuleY)
	a.projectionType("SA_ProjectionType", &p.ProjectionType)
	p.ProxyNames = a.proxies("SA_Proxy", p.ProxyNames)
}

func (a attrs) projection(d *Desc) {
	if t, _ := a.integer("P_Projection"); t == 0 {
		return
	}
	p := &d.Sim
	p.ClampType = simulation.ClampTranslationalProjection
	p.Redirect = true
	a.projectionType("P_ProjectionType", &p.ProjectionType)
	p.DirTransJoint = dirTrans(a.str("P_DirTransJointName"), d.BoneName)
	a.vec3("P_TranslationAxis", &p.TranslationAxis)
	a.num("P_CapsuleX", &p.CapsuleX)
	a.num("P_CapsuleY", &p.CapsuleY)
	a.vec3("P_PivotOffset", &p.PivotOffset)
	p.ProxyNames = a.proxies("P_Proxy", p.ProxyNames)
}

func (a attrs) projectionType(k string, dst *simulation.ProjectionType) {
	if v, ok := a.integer(k); ok && v >= 0 && v <= int(simulation.ProjectionDirectedRotation) {
		*dst = simulation.ProjectionType(v)
	}
}

// dirTrans drops a direction joint that names the socket's own joint.
func dirTrans(joint, bone string) string {
	if strings.EqualFold(joint, bone) {
		return ""
	}
	return joint
}

// rowClamp maps ROW_ClampMode (0 cone, 1 hinge plane, 2 half cone).
var rowClamp = []simulation.ClampType{
	simulation.ClampPendulumCone,
	simulation.ClampPendulumHingePlane,
	simulation.ClampPendulumHalfCone,
}

func (a attrs) row(p *simulation.RowParams) bool {
	mode, ok := a.integer("ROW_ClampMode")
	if !ok {
		return false
	}
	if mode >= 0 && mode < len(rowClamp) {
		p.ClampMode = rowClamp[mode]
	}
	a.num("ROW_FPS", &p.FPS)
	a.num("ROW_ConeAngle", &p.ConeAngle)
	a.vec3("ROW_ConeRotation", &p.ConeRotation)
	a.num("ROW_Mass", &p.Mass)
	a.num("ROW_Gravity", &p.Gravity)
	a.num("ROW_Damping", &p.Damping)
	a.num("ROW_JointSpring", &p.JointSpring)
	a.num("ROW_RodLength", &p.RodLength)
	a.vec2("ROW_StiffnessTarget", &p.StiffnessTarget)
	a.vec2("ROW_Turbulence", &p.Turbulence)
	a.num("ROW_MaxVelocity", &p.MaxVelocity)
	a.num("ROW_WorldSpaceDamping", &p.WorldSpaceDamping)
	a.flag("ROW_Cycle", &p.Cycle)
	a.intTo("ROW_RelaxLoops", &p.RelaxLoops)
	a.num("ROW_Stretch", &p.Stretch)
	a.num("ROW_CapsuleX", &p.CapsuleX)
	a.num("ROW_CapsuleY", &p.CapsuleY)
	a.projectionType("ROW_ProjectionType", &p.ProjectionType)
	p.ProxyNames = a.proxies("ROW_Proxy", p.ProxyNames)
	return true
}

func (a attrs) cloth(c *simulation.ClothParams) {
	a.flag("hide", &c.Hide)
	a.num("thickness", &c.Thickness)
	a.num("collsionDamping", &c.CollisionDamping)
	a.num("stretchStiffness", &c.StretchStiffness)
	a.num("shearStiffness", &c.ShearStiffness)
	a.num("bendStiffness", &c.BendStiffness)
	a.intTo("numIterations", &c.NumIterations)
	a.num("timeStep", &c.TimeStep)
	a.num("rigidDamping", &c.RigidDamping)
	a.num("translationBlend", &c.TranslationBlend)
	a.num("rotationBlend", &c.RotationBlend)
	a.num("friction", &c.Friction)
	a.num("pullStiffness", &c.PullStiffness)
	a.num("SA_Mass", &c.Tolerance)
	a.num("maxBlendWeight", &c.MaxBlendWeight)
	a.num("maxAnimDistance", &c.MaxAnimDistance)
	a.num("stiffnessGradient", &c.StiffnessGradient)
	a.intTo("halfStretchIterations", &c.HalfStretchIterations)
	a.flag("isMainCharacter", &c.IsMainCharacter)
	c.SimMeshName = a.str("simMeshName")
	c.RenderMeshName = a.str("renderMeshName")
	c.SimBinding = a.str("SimBinding")
	c.RenderBinding = a.str("Binding")
}
