// Package reconstruct turns a point cloud into a closed triangulated surface.
//
// The pipeline is an implicit-surface reconstruction in the Poisson family:
// estimate and orient per-point normals when the input carries none, blend
// the oriented points into a signed scalar field over a uniform sampling
// grid, extract the zero isosurface with marching tetrahedra, then trim
// stray components and transfer input colors. The output is watertight by
// construction regardless of the input's topology.
package reconstruct

import (
	"errors"
	"math"

	"plyconv/internal/domain"
	"plyconv/internal/mesh"
)

var (
	ErrInsufficientPoints = errors.New("insufficient points: need at least 3 non-degenerate points")
	ErrNoSurface          = errors.New("reconstruction produced no surface")
)

// levelParams maps a smoothing level to the field sampling resolution and
// blend radius (in cells). Higher smoothing means a coarser grid and a wider
// blend, producing a simpler, smoother surface.
type levelParams struct {
	resolution int
	blend      float64
}

var smoothingParams = map[domain.SmoothingLevel]levelParams{
	domain.SmoothingLight:  {resolution: 112, blend: 1.6},
	domain.SmoothingMedium: {resolution: 88, blend: 2.0},
	domain.SmoothingHigh:   {resolution: 64, blend: 2.6},
	domain.SmoothingUltra:  {resolution: 48, blend: 3.2},
}

// minComponentShare is the triangle-count fraction below which a connected
// component is discarded as reconstruction noise.
const minComponentShare = 0.01

// Run reconstructs a closed surface from the cloud at the given smoothing
// level.
func Run(cloud *mesh.PointCloud, level domain.SmoothingLevel) (*mesh.Surface, error) {
	params, ok := smoothingParams[level]
	if !ok {
		params = smoothingParams[domain.DefaultSmoothing]
	}

	positions := cloud.Positions
	if countDistinct(positions, 3) < 3 {
		return nil, ErrInsufficientPoints
	}
	bounds := cloud.Bounds()
	if bounds.Diagonal() <= 0 {
		return nil, ErrInsufficientPoints
	}

	// Neighbor index over the input, reused by normal estimation, field
	// evaluation and color transfer. Cell size tracks mean point spacing.
	spacing := bounds.Diagonal() / math.Cbrt(float64(len(positions)))
	grid := mesh.NewGrid(positions, math.Max(spacing*2, bounds.Diagonal()*1e-4))

	normals := cloud.Normals
	if !cloud.HasNormals() {
		normals = estimateNormals(positions, grid)
		orientNormals(positions, normals, grid)
	} else {
		normals = make([]mesh.Vec3, len(cloud.Normals))
		for i, n := range cloud.Normals {
			normals[i] = n.Normalize()
		}
	}

	field := sampleField(positions, normals, grid, bounds, params.resolution, params.blend)
	surface := extractSurface(field)
	if len(surface.Triangles) == 0 {
		return nil, ErrNoSurface
	}

	dropSmallComponents(surface)
	if len(surface.Triangles) == 0 {
		return nil, ErrNoSurface
	}
	surface.RecomputeVertexNormals()

	if cloud.HasColors() {
		transferColors(surface, cloud, grid)
	}
	return surface, nil
}

// countDistinct counts distinct positions up to the given limit.
func countDistinct(positions []mesh.Vec3, limit int) int {
	seen := make(map[mesh.Vec3]struct{}, limit)
	for _, p := range positions {
		seen[p] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

// dropSmallComponents removes connected components carrying less than
// minComponentShare of all triangles. Components of a watertight surface are
// themselves closed, so removal preserves watertightness.
func dropSmallComponents(s *mesh.Surface) {
	parent := make([]int, len(s.Vertices))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, t := range s.Triangles {
		union(int(t[0]), int(t[1]))
		union(int(t[1]), int(t[2]))
	}

	counts := make(map[int]int)
	for _, t := range s.Triangles {
		counts[find(int(t[0]))]++
	}
	threshold := int(float64(len(s.Triangles)) * minComponentShare)

	kept := s.Triangles[:0]
	for _, t := range s.Triangles {
		if counts[find(int(t[0]))] > threshold {
			kept = append(kept, t)
		}
	}
	s.Triangles = kept
	compactVertices(s)
}

// compactVertices drops unreferenced vertices and reindexes triangles.
func compactVertices(s *mesh.Surface) {
	remap := make([]int32, len(s.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	var vertices []mesh.Vertex
	for ti, t := range s.Triangles {
		for c, vi := range t {
			if remap[vi] < 0 {
				remap[vi] = int32(len(vertices))
				vertices = append(vertices, s.Vertices[vi])
			}
			s.Triangles[ti][c] = uint32(remap[vi])
		}
	}
	s.Vertices = vertices
}

// transferColors assigns each output vertex the color of its nearest input
// point.
func transferColors(s *mesh.Surface, cloud *mesh.PointCloud, grid *mesh.Grid) {
	for i := range s.Vertices {
		if nn := grid.Nearest(s.Vertices[i].Position); nn >= 0 {
			s.Vertices[i].Color = cloud.Colors[nn]
		}
	}
	s.HasColors = true
}
