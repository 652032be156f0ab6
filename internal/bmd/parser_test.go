package bmd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

type builder struct{ bytes.Buffer }

func (b *builder) str(s string, n int) {
	buf := make([]byte, n)
	copy(buf, s)
	b.Write(buf)
}

func (b *builder) le(v any) { _ = binary.Write(&b.Buffer, binary.LittleEndian, v) }

func sampleModel() []byte {
	var b builder
	b.WriteString("BMD")
	b.WriteByte(10)
	b.str("hero", 32)
	b.le(uint16(1)) // meshes
	b.le(uint16(3)) // bones
	b.le(uint16(1)) // actions

	// mesh: 4 verts, 0 normals, 0 uvs, 1 quad
	b.le([5]int16{4, 0, 0, 1, 0})
	for i := 0; i < 4; i++ {
		b.le(int16(i % 2))
		b.le(int16(0))
		b.le([3]float32{float32(i), 0, 0})
	}
	tri := make([]byte, 64)
	tri[0] = 4
	for k := 0; k < 4; k++ {
		binary.LittleEndian.PutUint16(tri[2+k*2:], uint16(k))
	}
	b.Write(tri)
	b.str(`skin\hero.jpg`, 32)

	// action 0: one key, not locked
	b.le(int16(1))
	b.WriteByte(0)

	// bone 0 root
	b.WriteByte(0)
	b.str("Bip01", 32)
	b.le(int16(-1))
	b.le([3]float32{0, 0, 1})
	b.le([3]float32{0, 0, 0})
	// bone 1 dummy
	b.WriteByte(1)
	// bone 2 child
	b.WriteByte(0)
	b.str("Bip01 Head", 32)
	b.le(int16(0))
	b.le([3]float32{0, 0, 0.5})
	b.le([3]float32{0.1, 0, 0})
	return b.Bytes()
}

func TestParseBytes(t *testing.T) {
	m, err := ParseBytes(sampleModel())
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if m.Name != "hero" {
		t.Errorf("name = %q", m.Name)
	}
	if len(m.Meshes) != 1 || len(m.Meshes[0].Verts) != 4 {
		t.Fatalf("meshes = %+v", m.Meshes)
	}
	if got := len(m.Meshes[0].Tris); got != 2 {
		t.Errorf("quad split into %d triangles, want 2", got)
	}
	if m.Meshes[0].TexPath != "skin/hero.jpg" {
		t.Errorf("tex path = %q", m.Meshes[0].TexPath)
	}
	want := []string{"Bip01", "", "Bip01 Head"}
	for i, n := range m.BoneNames() {
		if n != want[i] {
			t.Errorf("bone %d = %q, want %q", i, n, want[i])
		}
	}
	if !m.Bones[1].IsDummy || m.Bones[2].Parent != 0 {
		t.Errorf("bones = %+v", m.Bones)
	}
	if m.Bones[2].BindPosition != [3]float64{0, 0, 0.5} {
		t.Errorf("bind position = %v", m.Bones[2].BindPosition)
	}
}

func TestParseBytesRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("BM")},
		{"magic", []byte("XYZ\x0a")},
		{"encrypted", []byte("BMD\x0c\x00\x00\x00\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBytes(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := ParseBytes([]byte("BMD\x0f")); !errors.Is(err, ErrEncrypted) {
		t.Errorf("v15 err = %v", err)
	}
}
