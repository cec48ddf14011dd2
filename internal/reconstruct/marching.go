package reconstruct

import "plyconv/internal/mesh"

// Cube corners in (x,y,z) offsets, and the six tetrahedra sharing the 0-6
// diagonal. The same decomposition in every cell splits shared cube faces
// along the same diagonal, so the extracted surface has no cracks.
var cubeCorners = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

var cubeTets = [6][4]int{
	{0, 5, 1, 6}, {0, 1, 2, 6}, {0, 2, 3, 6},
	{0, 3, 7, 6}, {0, 7, 4, 6}, {0, 4, 5, 6},
}

type tetEdgeKey struct {
	a, b int
}

// extractSurface runs marching tetrahedra over the field. Zero-crossing
// vertices are deduplicated by grid edge, which makes every surface edge
// shared by exactly two triangles.
func extractSurface(f *scalarField) *mesh.Surface {
	// Exact zeros at nodes would produce degenerate crossings.
	for i, v := range f.values {
		if v == 0 {
			f.values[i] = 1e-12
		}
	}

	s := &mesh.Surface{}
	edgeVerts := make(map[tetEdgeKey]uint32)

	vertexOnEdge := func(na, nb int) uint32 {
		key := tetEdgeKey{na, nb}
		if key.a > key.b {
			key.a, key.b = key.b, key.a
		}
		if vi, ok := edgeVerts[key]; ok {
			return vi
		}
		va, vb := f.values[key.a], f.values[key.b]
		t := va / (va - vb)
		pa, pb := f.nodePosOf(key.a), f.nodePosOf(key.b)
		pos := pa.Add(pb.Sub(pa).Scale(t))
		vi := uint32(len(s.Vertices))
		s.Vertices = append(s.Vertices, mesh.Vertex{Position: pos})
		edgeVerts[key] = vi
		return vi
	}

	var nodes [8]int
	var vals [8]float64
	for z := 0; z < f.nz; z++ {
		for y := 0; y < f.ny; y++ {
			for x := 0; x < f.nx; x++ {
				for c, off := range cubeCorners {
					nodes[c] = f.nodeIndex(x+off[0], y+off[1], z+off[2])
					vals[c] = f.values[nodes[c]]
				}
				for _, tet := range cubeTets {
					emitTet(s, vertexOnEdge,
						[4]int{nodes[tet[0]], nodes[tet[1]], nodes[tet[2]], nodes[tet[3]]},
						[4]float64{vals[tet[0]], vals[tet[1]], vals[tet[2]], vals[tet[3]]})
				}
			}
		}
	}

	orientByGradient(s, f)
	return s
}

// emitTet triangulates the zero crossing inside one tetrahedron. Winding is
// normalized afterwards, so the case table only has to enumerate crossings.
func emitTet(s *mesh.Surface, vertexOnEdge func(a, b int) uint32, nodes [4]int, vals [4]float64) {
	var in, out []int
	for i, v := range vals {
		if v < 0 {
			in = append(in, i)
		} else {
			out = append(out, i)
		}
	}
	switch len(in) {
	case 1:
		a := vertexOnEdge(nodes[in[0]], nodes[out[0]])
		b := vertexOnEdge(nodes[in[0]], nodes[out[1]])
		c := vertexOnEdge(nodes[in[0]], nodes[out[2]])
		s.Triangles = append(s.Triangles, [3]uint32{a, b, c})
	case 3:
		a := vertexOnEdge(nodes[out[0]], nodes[in[0]])
		b := vertexOnEdge(nodes[out[0]], nodes[in[1]])
		c := vertexOnEdge(nodes[out[0]], nodes[in[2]])
		s.Triangles = append(s.Triangles, [3]uint32{a, b, c})
	case 2:
		a := vertexOnEdge(nodes[in[0]], nodes[out[0]])
		b := vertexOnEdge(nodes[in[0]], nodes[out[1]])
		c := vertexOnEdge(nodes[in[1]], nodes[out[1]])
		d := vertexOnEdge(nodes[in[1]], nodes[out[0]])
		s.Triangles = append(s.Triangles, [3]uint32{a, b, c}, [3]uint32{a, c, d})
	}
}

// orientByGradient flips triangles whose normal disagrees with the field
// gradient so every face points outward (the field increases outward).
func orientByGradient(s *mesh.Surface, f *scalarField) {
	for i, t := range s.Triangles {
		centroid := s.Vertices[t[0]].Position.
			Add(s.Vertices[t[1]].Position).
			Add(s.Vertices[t[2]].Position).
			Scale(1.0 / 3.0)
		if s.TriangleNormal(i).Dot(f.gradient(centroid)) < 0 {
			s.Triangles[i][1], s.Triangles[i][2] = s.Triangles[i][2], s.Triangles[i][1]
		}
	}
}

// nodePosOf converts a linear node index back into a world position.
func (f *scalarField) nodePosOf(i int) mesh.Vec3 {
	w := f.nx + 1
	h := f.ny + 1
	x := i % w
	y := (i / w) % h
	z := i / (w * h)
	return f.nodePos(x, y, z)
}
