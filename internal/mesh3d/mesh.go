// Package mesh3d stores the incremental 3D triangle mesh built from
// landmark observations and implements the operations that grow, filter
// and reconcile it against the estimator's active landmark window.
package mesh3d

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/planemesh/internal/geometry"
)

// LandmarkID identifies a landmark tracked by the upstream estimator.
type LandmarkID int64

// InvalidLandmarkID is returned by pixel lookups that find no landmark.
const InvalidLandmarkID LandmarkID = -1

// PolygonDimension is the arity of every polygon in a Mesh.
const PolygonDimension = 3

// LandmarkMap holds the latest world position per landmark.
type LandmarkMap map[LandmarkID]r3.Vec

// Clone returns a shallow copy of the map.
func (m LandmarkMap) Clone() LandmarkMap {
	out := make(LandmarkMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Vertex is a mesh vertex; its identity is the landmark id.
type Vertex struct {
	LandmarkID LandmarkID `json:"lmk_id"`
	Position   r3.Vec     `json:"position"`
}

// Polygon is an ordered list of vertices. Meshes only hold triangles.
type Polygon []Vertex

// Points returns the vertex positions.
func (p Polygon) Points() []r3.Vec {
	pts := make([]r3.Vec, len(p))
	for i, v := range p {
		pts[i] = v.Position
	}
	return pts
}

// LandmarkIDs returns the vertex ids in polygon order.
func (p Polygon) LandmarkIDs() []LandmarkID {
	ids := make([]LandmarkID, len(p))
	for i, v := range p {
		ids[i] = v.LandmarkID
	}
	return ids
}

func checkArity(op string, p Polygon) {
	if len(p) != PolygonDimension {
		geometry.Preconditionf(op, "polygon has %d vertices, want %d", len(p), PolygonDimension)
	}
}

type polygonKey [PolygonDimension]LandmarkID

// keyOf rotates the id triple so the smallest id comes first. Rotation
// keeps winding, so (1,2,3) and (2,3,1) share a key but (1,3,2) does not.
func keyOf(ids [PolygonDimension]LandmarkID) polygonKey {
	start := 0
	for i := 1; i < PolygonDimension; i++ {
		if ids[i] < ids[start] {
			start = i
		}
	}
	var k polygonKey
	for i := 0; i < PolygonDimension; i++ {
		k[i] = ids[(start+i)%PolygonDimension]
	}
	return k
}

// Mesh is a triangle mesh indexed by landmark id. Vertices are kept in
// insertion order and polygons reference them by index. The zero value is
// not usable; call NewMesh.
type Mesh struct {
	ids       []LandmarkID
	positions []r3.Vec
	vertexIdx map[LandmarkID]int

	polygons  [][PolygonDimension]int
	polygonAt map[polygonKey]int
}

// NewMesh returns an empty mesh.
func NewMesh() *Mesh {
	return &Mesh{
		vertexIdx: make(map[LandmarkID]int),
		polygonAt: make(map[polygonKey]int),
	}
}

// AddPolygon inserts p. Vertices already in the mesh take the position
// carried by p. A polygon with the same id triple in the same winding is
// refreshed rather than duplicated.
func (m *Mesh) AddPolygon(p Polygon) {
	checkArity("AddPolygon", p)

	var face [PolygonDimension]int
	var ids [PolygonDimension]LandmarkID
	for i, v := range p {
		ids[i] = v.LandmarkID
		idx, ok := m.vertexIdx[v.LandmarkID]
		if !ok {
			idx = len(m.ids)
			m.ids = append(m.ids, v.LandmarkID)
			m.positions = append(m.positions, v.Position)
			m.vertexIdx[v.LandmarkID] = idx
		} else {
			m.positions[idx] = v.Position
		}
		face[i] = idx
	}

	key := keyOf(ids)
	if _, ok := m.polygonAt[key]; ok {
		return
	}
	m.polygonAt[key] = len(m.polygons)
	m.polygons = append(m.polygons, face)
}

// NumPolygons returns the polygon count.
func (m *Mesh) NumPolygons() int { return len(m.polygons) }

// NumVertices returns the vertex count.
func (m *Mesh) NumVertices() int { return len(m.ids) }

// Polygon returns a copy of polygon i.
func (m *Mesh) Polygon(i int) (Polygon, bool) {
	if i < 0 || i >= len(m.polygons) {
		return nil, false
	}
	face := m.polygons[i]
	p := make(Polygon, PolygonDimension)
	for j, idx := range face {
		p[j] = Vertex{LandmarkID: m.ids[idx], Position: m.positions[idx]}
	}
	return p, true
}

// Polygons returns copies of every polygon in storage order.
func (m *Mesh) Polygons() []Polygon {
	out := make([]Polygon, len(m.polygons))
	for i := range m.polygons {
		out[i], _ = m.Polygon(i)
	}
	return out
}

// Vertices returns the vertices in insertion order.
func (m *Mesh) Vertices() []Vertex {
	out := make([]Vertex, len(m.ids))
	for i, id := range m.ids {
		out[i] = Vertex{LandmarkID: id, Position: m.positions[i]}
	}
	return out
}

// VertexPosition returns the stored position for id.
func (m *Mesh) VertexPosition(id LandmarkID) (r3.Vec, bool) {
	idx, ok := m.vertexIdx[id]
	if !ok {
		return r3.Vec{}, false
	}
	return m.positions[idx], true
}

// PolygonIDs returns the landmark id triples of every polygon.
func (m *Mesh) PolygonIDs() [][PolygonDimension]LandmarkID {
	out := make([][PolygonDimension]LandmarkID, len(m.polygons))
	for i, face := range m.polygons {
		for j, idx := range face {
			out[i][j] = m.ids[idx]
		}
	}
	return out
}

// Clone returns an independent deep copy.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		ids:       append([]LandmarkID(nil), m.ids...),
		positions: append([]r3.Vec(nil), m.positions...),
		vertexIdx: make(map[LandmarkID]int, len(m.vertexIdx)),
		polygons:  append([][PolygonDimension]int(nil), m.polygons...),
		polygonAt: make(map[polygonKey]int, len(m.polygonAt)),
	}
	for k, v := range m.vertexIdx {
		c.vertexIdx[k] = v
	}
	for k, v := range m.polygonAt {
		c.polygonAt[k] = v
	}
	return c
}

// Equal reports whether both meshes hold the same vertices and polygons
// in the same order.
func (m *Mesh) Equal(o *Mesh) bool {
	if m.NumVertices() != o.NumVertices() || m.NumPolygons() != o.NumPolygons() {
		return false
	}
	for i := range m.ids {
		if m.ids[i] != o.ids[i] || m.positions[i] != o.positions[i] {
			return false
		}
	}
	for i := range m.polygons {
		if m.polygons[i] != o.polygons[i] {
			return false
		}
	}
	return true
}

func (m *Mesh) String() string {
	return fmt.Sprintf("Mesh{vertices: %d, polygons: %d}", m.NumVertices(), m.NumPolygons())
}
