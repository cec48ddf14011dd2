package mesh

// Vertex is one surface vertex. Normal is always populated after
// reconstruction; Color is meaningful only when Surface.HasColors is true.
type Vertex struct {
	Position Vec3
	Normal   Vec3
	Color    Color
}

// Surface is a triangulated mesh. The reconstruction stage guarantees that
// every edge is shared by exactly two triangles and winding is consistent.
type Surface struct {
	Vertices  []Vertex
	Triangles [][3]uint32
	HasColors bool
}

// Bounds returns the axis-aligned bounding box of the vertices.
func (s *Surface) Bounds() Bounds {
	b := NewBounds()
	for _, v := range s.Vertices {
		b.Extend(v.Position)
	}
	return b
}

type edgeKey struct {
	a, b uint32
}

func orderedEdge(a, b uint32) edgeKey {
	if a < b {
		return edgeKey{a, b}
	}
	return edgeKey{b, a}
}

// BoundaryEdges counts edges not shared by exactly two triangles. Zero means
// the surface is watertight.
func (s *Surface) BoundaryEdges() int {
	uses := make(map[edgeKey]int, len(s.Triangles)*3)
	for _, t := range s.Triangles {
		uses[orderedEdge(t[0], t[1])]++
		uses[orderedEdge(t[1], t[2])]++
		uses[orderedEdge(t[2], t[0])]++
	}
	boundary := 0
	for _, n := range uses {
		if n != 2 {
			boundary++
		}
	}
	return boundary
}

// TriangleNormal returns the unnormalized face normal of triangle i.
func (s *Surface) TriangleNormal(i int) Vec3 {
	t := s.Triangles[i]
	p0 := s.Vertices[t[0]].Position
	p1 := s.Vertices[t[1]].Position
	p2 := s.Vertices[t[2]].Position
	return p1.Sub(p0).Cross(p2.Sub(p0))
}

// RecomputeVertexNormals replaces vertex normals with the area-weighted
// average of incident face normals.
func (s *Surface) RecomputeVertexNormals() {
	acc := make([]Vec3, len(s.Vertices))
	for i := range s.Triangles {
		n := s.TriangleNormal(i)
		for _, vi := range s.Triangles[i] {
			acc[vi] = acc[vi].Add(n)
		}
	}
	for i := range s.Vertices {
		s.Vertices[i].Normal = acc[i].Normalize()
	}
}
