package assets

import (
	"sync"

	"charattach/internal/attachment"
	"charattach/internal/bmd"
	"charattach/internal/mathutil"
	"charattach/internal/skeleton"
)

// Geometry is the bind-pose data shared by every payload loaded from one
// model file. It is immutable once cached.
type Geometry struct {
	Name      string
	Joints    []string
	Vertices  []attachment.SkinVertex
	Triangles [][3]int
	RadiusSqr float64
}

// Cache is a concurrency-safe cache of parsed model geometry.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	index *Index
}

type cacheEntry struct {
	geom *Geometry
	err  error // parse failures are cached too
}

// NewCache creates a new geometry cache backed by the given index.
func NewCache(index *Index) *Cache {
	return &Cache{
		items: make(map[string]*cacheEntry),
		index: index,
	}
}

// Index returns the index the cache resolves bindings with.
func (c *Cache) Index() *Index { return c.index }

// Geometry loads and caches the model at path.
func (c *Cache) Geometry(path string) (*Geometry, error) {
	c.mu.RLock()
	if entry, exists := c.items[path]; exists {
		c.mu.RUnlock()
		return entry.geom, entry.err
	}
	c.mu.RUnlock()

	geom, err := loadGeometry(path)

	c.mu.Lock()
	if entry, exists := c.items[path]; exists {
		c.mu.Unlock()
		return entry.geom, entry.err
	}
	c.items[path] = &cacheEntry{geom: geom, err: err}
	c.mu.Unlock()

	return geom, err
}

// Len returns the number of cached files, failures included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func loadGeometry(path string) (*Geometry, error) {
	model, err := bmd.Parse(path)
	if err != nil {
		return nil, err
	}
	return GeometryFromModel(model)
}

// GeometryFromModel moves every vertex from its bone's local space into model
// space using the bind pose. Each vertex keeps a single full-weight influence.
func GeometryFromModel(model *bmd.Model) (*Geometry, error) {
	def, err := skeleton.FromBMD(model.Bones)
	if err != nil {
		return nil, err
	}
	g := &Geometry{Name: model.Name, Joints: model.BoneNames()}
	for _, mesh := range model.Meshes {
		first := len(g.Vertices)
		for i, v := range mesh.Verts {
			node := int(mesh.Nodes[i])
			local := mathutil.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
			pos := def.DefaultAbsolute(node).TransformPoint(local)
			if node < 0 || node >= def.JointCount() {
				node = 0
			}
			sv := attachment.SkinVertex{Pos: pos}
			sv.Joints[0], sv.Weights[0] = node, 1
			g.Vertices = append(g.Vertices, sv)
			if r := pos.Dot(pos); r > g.RadiusSqr {
				g.RadiusSqr = r
			}
		}
		for _, tri := range mesh.Tris {
			ok := true
			var t [3]int
			for k, vi := range tri {
				if vi < 0 || int(vi) >= len(mesh.Verts) {
					ok = false
					break
				}
				t[k] = first + int(vi)
			}
			if ok {
				g.Triangles = append(g.Triangles, t)
			}
		}
	}
	return g, nil
}
