package mesh

import "sort"

// Grid is a uniform spatial hash over a fixed point set, used for nearest
// neighbor and radius queries during reconstruction.
type Grid struct {
	cellSize float64
	points   []Vec3
	cells    map[[3]int32][]int32
	bounds   Bounds
}

// NewGrid indexes points with the given cell size. Cell size must be > 0.
func NewGrid(points []Vec3, cellSize float64) *Grid {
	g := &Grid{
		cellSize: cellSize,
		points:   points,
		cells:    make(map[[3]int32][]int32, len(points)),
		bounds:   NewBounds(),
	}
	for i, p := range points {
		c := g.cellOf(p)
		g.cells[c] = append(g.cells[c], int32(i))
		g.bounds.Extend(p)
	}
	return g
}

func (g *Grid) cellOf(p Vec3) [3]int32 {
	return [3]int32{
		int32(floorDiv(p.X, g.cellSize)),
		int32(floorDiv(p.Y, g.cellSize)),
		int32(floorDiv(p.Z, g.cellSize)),
	}
}

func floorDiv(v, size float64) float64 {
	d := v / size
	f := float64(int64(d))
	if d < 0 && d != f {
		f--
	}
	return f
}

type neighbor struct {
	index int
	dist2 float64
}

// KNearest returns the indices of the k points closest to p, nearest first.
// Fewer than k are returned when the set is smaller.
func (g *Grid) KNearest(p Vec3, k int) []int {
	if k <= 0 || len(g.points) == 0 {
		return nil
	}
	center := g.cellOf(p)
	var found []neighbor

	// Expand cell shells until the next shell cannot contain a closer point
	// than the current k-th candidate.
	for ring := int32(0); ; ring++ {
		g.visitShell(center, ring, func(i int32) {
			d := g.points[i].Sub(p)
			found = append(found, neighbor{index: int(i), dist2: d.Dot(d)})
		})
		if len(found) >= k {
			sort.Slice(found, func(a, b int) bool { return found[a].dist2 < found[b].dist2 })
			kth := found[min(k, len(found))-1].dist2
			nextMin := float64(ring) * g.cellSize
			if nextMin*nextMin > kth {
				break
			}
		}
		if int(ring) > g.maxRings() {
			break
		}
	}
	sort.Slice(found, func(a, b int) bool { return found[a].dist2 < found[b].dist2 })
	if len(found) > k {
		found = found[:k]
	}
	out := make([]int, len(found))
	for i, n := range found {
		out[i] = n.index
	}
	return out
}

// Nearest returns the index of the closest point to p, or -1 when empty.
func (g *Grid) Nearest(p Vec3) int {
	nn := g.KNearest(p, 1)
	if len(nn) == 0 {
		return -1
	}
	return nn[0]
}

// WithinRadius calls fn for every point within r of p.
func (g *Grid) WithinRadius(p Vec3, r float64, fn func(index int, dist2 float64)) {
	if r <= 0 {
		return
	}
	r2 := r * r
	lo := g.cellOf(Vec3{p.X - r, p.Y - r, p.Z - r})
	hi := g.cellOf(Vec3{p.X + r, p.Y + r, p.Z + r})
	for cx := lo[0]; cx <= hi[0]; cx++ {
		for cy := lo[1]; cy <= hi[1]; cy++ {
			for cz := lo[2]; cz <= hi[2]; cz++ {
				for _, i := range g.cells[[3]int32{cx, cy, cz}] {
					d := g.points[i].Sub(p)
					d2 := d.Dot(d)
					if d2 <= r2 {
						fn(int(i), d2)
					}
				}
			}
		}
	}
}

// visitShell visits all points in cells at Chebyshev distance exactly ring
// from center.
func (g *Grid) visitShell(center [3]int32, ring int32, fn func(i int32)) {
	if ring == 0 {
		for _, i := range g.cells[center] {
			fn(i)
		}
		return
	}
	for dx := -ring; dx <= ring; dx++ {
		for dy := -ring; dy <= ring; dy++ {
			for dz := -ring; dz <= ring; dz++ {
				if maxAbs3(dx, dy, dz) != ring {
					continue
				}
				cell := [3]int32{center[0] + dx, center[1] + dy, center[2] + dz}
				for _, i := range g.cells[cell] {
					fn(i)
				}
			}
		}
	}
}

func (g *Grid) maxRings() int {
	// Bail-out bound: enough shells to cover the whole indexed extent from
	// any query point inside or near it.
	return int(g.bounds.Diagonal()/g.cellSize) + 2
}

func maxAbs3(a, b, c int32) int32 {
	m := a
	if m < 0 {
		m = -m
	}
	if b < 0 {
		b = -b
	}
	if b > m {
		m = b
	}
	if c < 0 {
		c = -c
	}
	if c > m {
		m = c
	}
	return m
}
