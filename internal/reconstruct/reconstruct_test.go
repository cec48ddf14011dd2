package reconstruct

import (
	"math"
	"math/rand"
	"testing"

	"plyconv/internal/domain"
	"plyconv/internal/mesh"
)

// spherePoints samples n roughly uniform points on a sphere using a spiral
// lattice.
func spherePoints(n int, radius float64, center mesh.Vec3) []mesh.Vec3 {
	points := make([]mesh.Vec3, n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1 - 2*float64(i)/float64(n-1)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		points[i] = mesh.Vec3{
			X: center.X + radius*r*math.Cos(theta),
			Y: center.Y + radius*y,
			Z: center.Z + radius*r*math.Sin(theta),
		}
	}
	return points
}

func TestRunSphereIsWatertight(t *testing.T) {
	cloud := &mesh.PointCloud{Positions: spherePoints(2000, 1.0, mesh.Vec3{})}

	surface, err := Run(cloud, domain.SmoothingUltra)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(surface.Triangles) == 0 {
		t.Fatal("no triangles produced")
	}
	if open := surface.BoundaryEdges(); open != 0 {
		t.Fatalf("surface has %d boundary edges, want 0", open)
	}

	b := surface.Bounds()
	if d := b.Diagonal(); d < 2.0 || d > 5.0 {
		t.Fatalf("surface diagonal = %v, out of plausible range for a unit sphere", d)
	}
}

func TestRunRespectsProvidedNormals(t *testing.T) {
	positions := spherePoints(1500, 1.0, mesh.Vec3{})
	normals := make([]mesh.Vec3, len(positions))
	for i, p := range positions {
		normals[i] = p.Normalize()
	}
	cloud := &mesh.PointCloud{Positions: positions, Normals: normals}

	surface, err := Run(cloud, domain.SmoothingUltra)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if surface.BoundaryEdges() != 0 {
		t.Fatal("surface not closed")
	}

	// Outward normals must make the reconstruction enclose the origin, so
	// vertex normals point away from the center on average.
	outward := 0
	for _, v := range surface.Vertices {
		if v.Normal.Dot(v.Position) > 0 {
			outward++
		}
	}
	if outward*2 < len(surface.Vertices) {
		t.Fatalf("only %d/%d vertex normals face outward", outward, len(surface.Vertices))
	}
}

func TestRunTransfersColors(t *testing.T) {
	positions := spherePoints(1200, 1.0, mesh.Vec3{})
	colors := make([]mesh.Color, len(positions))
	for i := range colors {
		colors[i] = mesh.Color{R: 200, G: 10, B: 10}
	}
	cloud := &mesh.PointCloud{Positions: positions, Colors: colors}

	surface, err := Run(cloud, domain.SmoothingUltra)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !surface.HasColors {
		t.Fatal("colors were not transferred")
	}
	for i, v := range surface.Vertices {
		if v.Color != (mesh.Color{R: 200, G: 10, B: 10}) {
			t.Fatalf("vertex %d color = %+v", i, v.Color)
		}
	}
}

func TestRunInsufficientPoints(t *testing.T) {
	tests := []struct {
		name      string
		positions []mesh.Vec3
	}{
		{"empty", nil},
		{"two points", []mesh.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 1}}},
		{"duplicates", []mesh.Vec3{{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Run(&mesh.PointCloud{Positions: tc.positions}, domain.SmoothingMedium)
			if err != ErrInsufficientPoints {
				t.Fatalf("Run() error = %v, want ErrInsufficientPoints", err)
			}
		})
	}
}

func TestRunUnknownLevelFallsBack(t *testing.T) {
	cloud := &mesh.PointCloud{Positions: spherePoints(1000, 1.0, mesh.Vec3{})}
	if _, err := Run(cloud, domain.SmoothingLevel("bogus")); err != nil {
		t.Fatalf("Run() with unknown level error = %v", err)
	}
}

func TestRunCubeShellIsWatertight(t *testing.T) {
	// Points sampled on the faces of a unit cube.
	var positions []mesh.Vec3
	const steps = 18
	for i := 0; i <= steps; i++ {
		for j := 0; j <= steps; j++ {
			u := float64(i) / steps
			v := float64(j) / steps
			positions = append(positions,
				mesh.Vec3{X: u, Y: v, Z: 0},
				mesh.Vec3{X: u, Y: v, Z: 1},
				mesh.Vec3{X: u, Y: 0, Z: v},
				mesh.Vec3{X: u, Y: 1, Z: v},
				mesh.Vec3{X: 0, Y: u, Z: v},
				mesh.Vec3{X: 1, Y: u, Z: v},
			)
		}
	}

	surface, err := Run(&mesh.PointCloud{Positions: positions}, domain.SmoothingUltra)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if surface.BoundaryEdges() != 0 {
		t.Fatal("cube shell reconstruction is not closed")
	}
}

func TestRunNoisySphere(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	positions := spherePoints(2500, 1.0, mesh.Vec3{})
	for i := range positions {
		jitter := mesh.Vec3{
			X: (rng.Float64() - 0.5) * 0.02,
			Y: (rng.Float64() - 0.5) * 0.02,
			Z: (rng.Float64() - 0.5) * 0.02,
		}
		positions[i] = positions[i].Add(jitter)
	}

	surface, err := Run(&mesh.PointCloud{Positions: positions}, domain.SmoothingHigh)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if surface.BoundaryEdges() != 0 {
		t.Fatal("noisy input broke watertightness")
	}
}

func TestDropSmallComponents(t *testing.T) {
	s := &mesh.Surface{}
	// Big component: a fan of 500 triangles sharing vertex 0.
	s.Vertices = append(s.Vertices, mesh.Vertex{})
	for i := 0; i < 500; i++ {
		base := uint32(len(s.Vertices))
		s.Vertices = append(s.Vertices,
			mesh.Vertex{Position: mesh.Vec3{X: float64(i), Y: 1}},
			mesh.Vertex{Position: mesh.Vec3{X: float64(i), Y: 2}},
		)
		s.Triangles = append(s.Triangles, [3]uint32{0, base, base + 1})
	}
	// Stray component: one isolated triangle far away.
	base := uint32(len(s.Vertices))
	s.Vertices = append(s.Vertices,
		mesh.Vertex{Position: mesh.Vec3{X: 100}},
		mesh.Vertex{Position: mesh.Vec3{X: 101}},
		mesh.Vertex{Position: mesh.Vec3{X: 100, Y: 1}},
	)
	s.Triangles = append(s.Triangles, [3]uint32{base, base + 1, base + 2})

	dropSmallComponents(s)

	if len(s.Triangles) != 500 {
		t.Fatalf("kept %d triangles, want 500", len(s.Triangles))
	}
	for _, v := range s.Vertices {
		if v.Position.X >= 100 {
			t.Fatalf("stray vertex survived: %+v", v.Position)
		}
	}
}

func TestSmallestEigenvector(t *testing.T) {
	// Covariance of points spread in the xy plane: smallest eigenvector is z.
	a := [3][3]float64{
		{4, 0, 0},
		{0, 2, 0},
		{0, 0, 0.1},
	}
	v := smallestEigenvector(a)
	if math.Abs(math.Abs(v.Z)-1) > 1e-6 {
		t.Fatalf("smallestEigenvector() = %+v, want +-z axis", v)
	}
}
