// Package overrides applies editor parameter overrides from a JSON file to
// the sockets and rows of a loaded character.
package overrides

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"charattach/internal/attachment"
	"charattach/internal/simulation"
)

// Entry holds optional overrides. Nil fields keep the value from the
// attachment list. Fields that only exist on one side (socket or row) are
// ignored on the other.
type Entry struct {
	FPS       *float64 `json:"fps"`
	Mass      *float64 `json:"mass"`
	Gravity   *float64 `json:"gravity"`
	Damping   *float64 `json:"damping"`
	Stiffness *float64 `json:"stiffness"`
	CapsuleX  *float64 `json:"capsule_x"`
	CapsuleY  *float64 `json:"capsule_y"`
	Proxies   []string `json:"proxies"`
	Hidden    *bool    `json:"hidden"`

	// Sockets
	Redirect  *bool    `json:"redirect"`
	MaxAngle  *float64 `json:"max_angle"`
	HRotation *float64 `json:"h_rotation"`
	Radius    *float64 `json:"radius"`

	// Rows
	ConeAngle         *float64    `json:"cone_angle"`
	JointSpring       *float64    `json:"joint_spring"`
	Turbulence        *[2]float64 `json:"turbulence"`
	MaxVelocity       *float64    `json:"max_velocity"`
	WorldSpaceDamping *float64    `json:"world_space_damping"`
	RelaxLoops        *int        `json:"relax_loops"`
	Stretch           *float64    `json:"stretch"`
}

// file matches the JSON schema of the overrides file.
//
//	{
//	  "presets": {"stiff": {"stiffness": 40, "damping": 4}},
//	  "sockets": {"tail": "stiff", "earring_*": {"max_angle": 15}},
//	  "rows":    {"hair*": {"cone_angle": 30, "turbulence": [0.1, 2]}}
//	}
type file struct {
	Presets map[string]json.RawMessage `json:"presets"`
	Sockets map[string]json.RawMessage `json:"sockets"`
	Rows    map[string]json.RawMessage `json:"rows"`
}

type rule struct {
	pattern string // lowercase, path.Match syntax
	entry   Entry
}

func (r rule) matches(name string) bool {
	ok, err := path.Match(r.pattern, strings.ToLower(name))
	return err == nil && ok
}

// Set is a parsed overrides file. Wildcard rules apply before exact names,
// so an exact entry always wins.
type Set struct {
	sockets []rule
	rows    []rule
}

// Load reads an overrides file.
func Load(p string) (*Set, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("overrides: read %s: %w", p, err)
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("overrides: parse %s: %w", p, err)
	}
	return s, nil
}

// Parse decodes the JSON overrides document.
func Parse(raw []byte) (*Set, error) {
	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	sockets, err := rules(f.Sockets, f.Presets)
	if err != nil {
		return nil, err
	}
	rows, err := rules(f.Rows, f.Presets)
	if err != nil {
		return nil, err
	}
	return &Set{sockets: sockets, rows: rows}, nil
}

// resolveEntry resolves a value that is either a preset name or an inline
// entry object.
func resolveEntry(raw json.RawMessage, presets map[string]json.RawMessage) (Entry, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		presetRaw, ok := presets[name]
		if !ok {
			return Entry{}, fmt.Errorf("preset %q not found", name)
		}
		raw = presetRaw
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func rules(m map[string]json.RawMessage, presets map[string]json.RawMessage) ([]rule, error) {
	out := make([]rule, 0, len(m))
	for key, raw := range m {
		pat := strings.ToLower(strings.TrimSpace(key))
		if _, err := path.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", key, err)
		}
		e, err := resolveEntry(raw, presets)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, rule{pattern: pat, entry: e})
	}
	sort.Slice(out, func(i, j int) bool {
		wi, wj := isWildcard(out[i].pattern), isWildcard(out[j].pattern)
		if wi != wj {
			return wi
		}
		return out[i].pattern < out[j].pattern
	})
	return out, nil
}

func isWildcard(p string) bool { return strings.ContainsAny(p, "*?[") }

// socketEditor is implemented by BONE and FACE attachments.
type socketEditor interface {
	attachment.Attachment
	SimParams() simulation.Params
	SetSimParams(simulation.Params)
}

// Len returns the number of socket and row rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sockets) + len(s.rows)
}

// Apply edits every matching attachment of m and returns how many were
// changed. It must run between frames.
func (s *Set) Apply(m *attachment.Manager) int {
	if s == nil || m == nil {
		return 0
	}
	// Edits can move attachments between buckets, so collect first.
	all := make([]attachment.Attachment, 0, m.AttachmentCount())
	for i := 0; i < m.AttachmentCount(); i++ {
		all = append(all, m.GetInterfaceByIndex(i))
	}
	n := 0
	for _, a := range all {
		switch a := a.(type) {
		case *attachment.RowAttachment:
			if s.applyRow(a) {
				n++
			}
		case socketEditor:
			if s.applySocket(a) {
				n++
			}
		}
	}
	if n > 0 {
		attachment.Logger().Info("overrides: applied", "attachments", n)
	}
	return n
}

func (s *Set) applySocket(a socketEditor) bool {
	p := a.SimParams()
	hit := false
	for _, r := range s.sockets {
		if !r.matches(a.Name()) {
			continue
		}
		hit = true
		mergeSocket(&p, r.entry)
		if r.entry.Hidden != nil {
			a.HideAttachment(*r.entry.Hidden)
		}
	}
	if hit {
		p.Touch()
		a.SetSimParams(p)
	}
	return hit
}

func (s *Set) applyRow(a *attachment.RowAttachment) bool {
	p := a.RowParams()
	hit := false
	for _, r := range s.rows {
		if !r.matches(a.Name()) {
			continue
		}
		hit = true
		mergeRow(&p, r.entry)
		if r.entry.Hidden != nil {
			a.HideAttachment(*r.entry.Hidden)
		}
	}
	if hit {
		a.SetRowParams(p)
	}
	return hit
}

// mergeSocket merges only non-nil fields.
func mergeSocket(p *simulation.Params, e Entry) {
	set(&p.FPS, e.FPS)
	set(&p.Mass, e.Mass)
	set(&p.Gravity, e.Gravity)
	set(&p.Damping, e.Damping)
	set(&p.Stiffness, e.Stiffness)
	set(&p.CapsuleX, e.CapsuleX)
	set(&p.CapsuleY, e.CapsuleY)
	set(&p.MaxAngle, e.MaxAngle)
	set(&p.HRotation, e.HRotation)
	set(&p.Radius, e.Radius)
	if e.Redirect != nil {
		p.Redirect = *e.Redirect
	}
	if e.Proxies != nil {
		p.ProxyNames = truncate(e.Proxies)
	}
}

func mergeRow(p *simulation.RowParams, e Entry) {
	set(&p.FPS, e.FPS)
	set(&p.Mass, e.Mass)
	set(&p.Gravity, e.Gravity)
	set(&p.Damping, e.Damping)
	set(&p.CapsuleX, e.CapsuleX)
	set(&p.CapsuleY, e.CapsuleY)
	set(&p.ConeAngle, e.ConeAngle)
	set(&p.JointSpring, e.JointSpring)
	set(&p.MaxVelocity, e.MaxVelocity)
	set(&p.WorldSpaceDamping, e.WorldSpaceDamping)
	set(&p.Stretch, e.Stretch)
	if e.RelaxLoops != nil {
		p.RelaxLoops = *e.RelaxLoops
	}
	if e.Turbulence != nil {
		p.Turbulence[0], p.Turbulence[1] = e.Turbulence[0], e.Turbulence[1]
	}
	if e.Proxies != nil {
		p.ProxyNames = truncate(e.Proxies)
	}
}

func set(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func truncate(names []string) []string {
	if len(names) > simulation.MaxProxies {
		names = names[:simulation.MaxProxies]
	}
	return append([]string(nil), names...)
}
