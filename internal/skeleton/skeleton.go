package skeleton

import (
	"fmt"
	"strings"

	"charattach/internal/mathutil"
)

// JointDef describes one joint of a default skeleton. Parents must precede
// their children; the root has Parent -1.
type JointDef struct {
	Name     string
	Parent   int
	Relative mathutil.QuatT
}

// Default is the immutable default (bind) pose of a skeleton.
type Default struct {
	names    []string
	lower    map[string]int
	parents  []int
	relative []mathutil.QuatT
	absolute []mathutil.QuatT
}

// New builds a default skeleton and its absolute bind transforms.
func New(joints []JointDef) (*Default, error) {
	d := &Default{
		names:    make([]string, len(joints)),
		lower:    make(map[string]int, len(joints)),
		parents:  make([]int, len(joints)),
		relative: make([]mathutil.QuatT, len(joints)),
		absolute: make([]mathutil.QuatT, len(joints)),
	}
	for i, j := range joints {
		if j.Parent >= i {
			return nil, fmt.Errorf("skeleton: joint %q (%d) has parent %d that does not precede it", j.Name, i, j.Parent)
		}
		if j.Parent < 0 {
			j.Parent = -1
		}
		d.names[i] = j.Name
		d.parents[i] = j.Parent
		d.relative[i] = j.Relative.Normalized()
		if j.Parent >= 0 {
			d.absolute[i] = d.absolute[j.Parent].Mul(d.relative[i])
		} else {
			d.absolute[i] = d.relative[i]
		}
		if j.Name == "" {
			continue
		}
		key := strings.ToLower(j.Name)
		if _, dup := d.lower[key]; !dup {
			d.lower[key] = i
		}
	}
	return d, nil
}

// JointCount returns the number of joints.
func (d *Default) JointCount() int { return len(d.names) }

// JointIDByName resolves a joint name case-insensitively, -1 if unknown.
func (d *Default) JointIDByName(name string) int {
	if name == "" {
		return -1
	}
	if id, ok := d.lower[strings.ToLower(name)]; ok {
		return id
	}
	return -1
}

// JointName returns the name of joint id, "" when out of range.
func (d *Default) JointName(id int) string {
	if id < 0 || id >= len(d.names) {
		return ""
	}
	return d.names[id]
}

// ParentID returns the parent of joint id, -1 for roots or invalid ids.
func (d *Default) ParentID(id int) int {
	if id < 0 || id >= len(d.parents) {
		return -1
	}
	return d.parents[id]
}

// DefaultRelative returns the parent-relative bind transform of joint id.
func (d *Default) DefaultRelative(id int) mathutil.QuatT {
	if id < 0 || id >= len(d.relative) {
		return mathutil.Identity()
	}
	return d.relative[id]
}

// DefaultAbsolute returns the model-space bind transform of joint id.
func (d *Default) DefaultAbsolute(id int) mathutil.QuatT {
	if id < 0 || id >= len(d.absolute) {
		return mathutil.Identity()
	}
	return d.absolute[id]
}

// Descendants returns every joint below id in ascending order.
func (d *Default) Descendants(id int) []int {
	if id < 0 || id >= len(d.parents) {
		return nil
	}
	in := make([]bool, len(d.parents))
	in[id] = true
	var out []int
	for i := id + 1; i < len(d.parents); i++ {
		if p := d.parents[i]; p >= 0 && in[p] {
			in[i] = true
			out = append(out, i)
		}
	}
	return out
}
