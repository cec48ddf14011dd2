package reconstruct

import (
	"math"

	"plyconv/internal/mesh"
)

// scalarField holds implicit function samples on a uniform grid of
// (nx+1)*(ny+1)*(nz+1) nodes. Negative values are inside the surface.
type scalarField struct {
	origin     mesh.Vec3
	cell       float64
	nx, ny, nz int
	values     []float64
}

func (f *scalarField) nodeIndex(x, y, z int) int {
	return (z*(f.ny+1)+y)*(f.nx+1) + x
}

func (f *scalarField) nodePos(x, y, z int) mesh.Vec3 {
	return mesh.Vec3{
		X: f.origin.X + float64(x)*f.cell,
		Y: f.origin.Y + float64(y)*f.cell,
		Z: f.origin.Z + float64(z)*f.cell,
	}
}

// sampleField evaluates a signed-distance style implicit function of the
// oriented point set at every grid node. The value at a node is the
// squared-distance weighted blend of the tangent-plane distances of nearby
// samples; nodes beyond the support cutoff are treated as exterior so the
// extracted surface stays bounded to the sampled region.
func sampleField(positions, normals []mesh.Vec3, grid *mesh.Grid, bounds mesh.Bounds, resolution int, blend float64) *scalarField {
	size := bounds.Size()
	longest := math.Max(size.X, math.Max(size.Y, size.Z))
	if longest <= 0 {
		longest = 1
	}
	cell := longest / float64(resolution)
	// One cell of padding per side keeps the zero crossing strictly interior.
	margin := cell * 2
	origin := bounds.Min.Sub(mesh.Vec3{X: margin, Y: margin, Z: margin})
	nx := int(math.Ceil((size.X+2*margin)/cell)) + 1
	ny := int(math.Ceil((size.Y+2*margin)/cell)) + 1
	nz := int(math.Ceil((size.Z+2*margin)/cell)) + 1

	f := &scalarField{
		origin: origin,
		cell:   cell,
		nx:     nx,
		ny:     ny,
		nz:     nz,
		values: make([]float64, (nx+1)*(ny+1)*(nz+1)),
	}

	support := blend * cell
	cutoff := support * 2
	for z := 0; z <= nz; z++ {
		for y := 0; y <= ny; y++ {
			for x := 0; x <= nx; x++ {
				f.values[f.nodeIndex(x, y, z)] = evaluate(f.nodePos(x, y, z), positions, normals, grid, support, cutoff)
			}
		}
	}
	f.sealBoundary()
	return f
}

// evaluate returns the implicit function value at p.
func evaluate(p mesh.Vec3, positions, normals []mesh.Vec3, grid *mesh.Grid, support, cutoff float64) float64 {
	var num, den float64
	grid.WithinRadius(p, support, func(i int, d2 float64) {
		w := wendland(math.Sqrt(d2) / support)
		if w <= 0 {
			return
		}
		num += w * p.Sub(positions[i]).Dot(normals[i])
		den += w
	})
	if den > 1e-12 {
		return num / den
	}

	// No sample inside the support radius: fall back to the single nearest
	// sample, clamped positive past the cutoff so empty space never reads
	// as interior.
	nn := grid.Nearest(p)
	if nn < 0 {
		return cutoff
	}
	d := p.Sub(positions[nn])
	if dist := d.Length(); dist > cutoff {
		return dist
	}
	return d.Dot(normals[nn])
}

// wendland is the compactly supported C2 Wendland kernel on [0,1].
func wendland(r float64) float64 {
	if r >= 1 {
		return 0
	}
	t := 1 - r
	return t * t * t * t * (4*r + 1)
}

// sealBoundary forces the outermost node layer positive so the isosurface
// can never cross the volume boundary.
func (f *scalarField) sealBoundary() {
	seal := f.cell * 10
	for z := 0; z <= f.nz; z++ {
		for y := 0; y <= f.ny; y++ {
			for x := 0; x <= f.nx; x++ {
				if x == 0 || y == 0 || z == 0 || x == f.nx || y == f.ny || z == f.nz {
					f.values[f.nodeIndex(x, y, z)] = seal
				}
			}
		}
	}
}

// gradient estimates the field gradient at p by central differences.
func (f *scalarField) gradient(p mesh.Vec3) mesh.Vec3 {
	h := f.cell * 0.5
	return mesh.Vec3{
		X: f.valueAt(mesh.Vec3{X: p.X + h, Y: p.Y, Z: p.Z}) - f.valueAt(mesh.Vec3{X: p.X - h, Y: p.Y, Z: p.Z}),
		Y: f.valueAt(mesh.Vec3{X: p.X, Y: p.Y + h, Z: p.Z}) - f.valueAt(mesh.Vec3{X: p.X, Y: p.Y - h, Z: p.Z}),
		Z: f.valueAt(mesh.Vec3{X: p.X, Y: p.Y, Z: p.Z + h}) - f.valueAt(mesh.Vec3{X: p.X, Y: p.Y, Z: p.Z - h}),
	}
}

// valueAt trilinearly interpolates the sampled field at an arbitrary point.
func (f *scalarField) valueAt(p mesh.Vec3) float64 {
	fx := (p.X - f.origin.X) / f.cell
	fy := (p.Y - f.origin.Y) / f.cell
	fz := (p.Z - f.origin.Z) / f.cell
	x0 := clampInt(int(math.Floor(fx)), 0, f.nx-1)
	y0 := clampInt(int(math.Floor(fy)), 0, f.ny-1)
	z0 := clampInt(int(math.Floor(fz)), 0, f.nz-1)
	tx := clampFloat(fx-float64(x0), 0, 1)
	ty := clampFloat(fy-float64(y0), 0, 1)
	tz := clampFloat(fz-float64(z0), 0, 1)

	var c [2][2][2]float64
	for dz := 0; dz < 2; dz++ {
		for dy := 0; dy < 2; dy++ {
			for dx := 0; dx < 2; dx++ {
				c[dz][dy][dx] = f.values[f.nodeIndex(x0+dx, y0+dy, z0+dz)]
			}
		}
	}
	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	v00 := lerp(c[0][0][0], c[0][0][1], tx)
	v01 := lerp(c[0][1][0], c[0][1][1], tx)
	v10 := lerp(c[1][0][0], c[1][0][1], tx)
	v11 := lerp(c[1][1][0], c[1][1][1], tx)
	return lerp(lerp(v00, v01, ty), lerp(v10, v11, ty), tz)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
