package bmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

// ErrEncrypted is returned for v12/v15 files, which need the client cipher keys.
var ErrEncrypted = errors.New("bmd: encrypted model versions are not supported")

// Parse reads a BMD file from disk.
func Parse(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bmd: read %s: %w", path, err)
	}
	m, err := ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("bmd: parse %s: %w", path, err)
	}
	return m, nil
}

// ParseBytes decodes an unencrypted (v10) BMD image.
func ParseBytes(raw []byte) (*Model, error) {
	if len(raw) < 4 || string(raw[:3]) != "BMD" {
		return nil, errors.New("bmd: invalid header")
	}
	switch raw[3] {
	case 12, 15:
		return nil, ErrEncrypted
	}
	r := &reader{data: raw[4:]}
	return r.model()
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) take(n int) []byte {
	if r.off+n > len(r.data) {
		r.off = len(r.data)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) str(n int) string {
	b := r.take(n)
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (r *reader) i16() int16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int16(binary.LittleEndian.Uint16(b))
}

func (r *reader) f32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (r *reader) u8() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) eof() bool { return r.off >= len(r.data) }

func (r *reader) model() (*Model, error) {
	m := &Model{Name: r.str(32)}
	meshCount := int(uint16(r.i16()))
	boneCount := int(uint16(r.i16()))
	actionCount := int(uint16(r.i16()))
	if meshCount > 100 {
		return nil, fmt.Errorf("bmd: invalid mesh count %d", meshCount)
	}

	for i := 0; i < meshCount; i++ {
		mesh, err := r.mesh()
		if err != nil {
			return nil, fmt.Errorf("bmd: mesh %d: %w", i, err)
		}
		m.Meshes = append(m.Meshes, mesh)
	}

	keys := make([]int, actionCount)
	for a := range keys {
		keys[a] = int(r.i16())
		if r.u8() > 0 {
			r.take(keys[a] * 12) // locked positions
		}
	}

	for b := 0; b < boneCount; b++ {
		if r.u8() > 0 {
			m.Bones = append(m.Bones, Bone{Parent: -1, IsDummy: true})
			continue
		}
		bone := Bone{Name: r.str(32), Parent: int(r.i16())}
		for a, n := range keys {
			for k := 0; k < n; k++ {
				p := [3]float64{float64(r.f32()), float64(r.f32()), float64(r.f32())}
				if a == 0 && k == 0 {
					bone.BindPosition = p
				}
			}
			for k := 0; k < n; k++ {
				q := [3]float64{float64(r.f32()), float64(r.f32()), float64(r.f32())}
				if a == 0 && k == 0 {
					bone.BindRotation = q
				}
			}
		}
		if r.eof() && b < boneCount-1 {
			return nil, fmt.Errorf("bmd: truncated at bone %d", b)
		}
		m.Bones = append(m.Bones, bone)
	}
	return m, nil
}

func (r *reader) mesh() (Mesh, error) {
	nv := int(r.i16())
	nn := int(r.i16())
	nt := int(r.i16())
	ntri := int(r.i16())
	r.i16() // texture index
	if nv < 0 || nn < 0 || nt < 0 || ntri < 0 {
		return Mesh{}, errors.New("negative element count")
	}

	mesh := Mesh{
		Verts: make([][3]float32, nv),
		Nodes: make([]int16, nv),
	}
	// node:i16 pad:i16 xyz:f32
	for j := 0; j < nv; j++ {
		mesh.Nodes[j] = r.i16()
		r.i16()
		mesh.Verts[j] = [3]float32{r.f32(), r.f32(), r.f32()}
	}
	r.take(nn * 20) // normals
	r.take(nt * 8)  // texcoords

	for j := 0; j < ntri; j++ {
		rec := r.take(64)
		if rec == nil {
			return Mesh{}, fmt.Errorf("truncated triangle %d", j)
		}
		var vi [4]int32
		for k := range vi {
			vi[k] = int32(int16(binary.LittleEndian.Uint16(rec[2+k*2:])))
		}
		mesh.Tris = append(mesh.Tris, [3]int32{vi[0], vi[1], vi[2]})
		if rec[0] == 4 {
			mesh.Tris = append(mesh.Tris, [3]int32{vi[0], vi[2], vi[3]})
		}
	}
	mesh.TexPath = strings.ReplaceAll(r.str(32), "\\", "/")
	return mesh, nil
}
