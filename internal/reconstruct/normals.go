package reconstruct

import (
	"math"

	"plyconv/internal/mesh"
)

const neighborCount = 16

// estimateNormals fits a tangent plane to the k nearest neighbors of every
// point and takes the plane normal: the eigenvector of the neighborhood
// covariance with the smallest eigenvalue.
func estimateNormals(positions []mesh.Vec3, grid *mesh.Grid) []mesh.Vec3 {
	normals := make([]mesh.Vec3, len(positions))
	for i, p := range positions {
		nn := grid.KNearest(p, neighborCount)
		if len(nn) < 3 {
			normals[i] = mesh.Vec3{X: 0, Y: 0, Z: 1}
			continue
		}
		var centroid mesh.Vec3
		for _, j := range nn {
			centroid = centroid.Add(positions[j])
		}
		centroid = centroid.Scale(1 / float64(len(nn)))

		var cov [3][3]float64
		for _, j := range nn {
			d := positions[j].Sub(centroid)
			c := [3]float64{d.X, d.Y, d.Z}
			for r := 0; r < 3; r++ {
				for s := 0; s < 3; s++ {
					cov[r][s] += c[r] * c[s]
				}
			}
		}
		normals[i] = smallestEigenvector(cov)
	}
	return normals
}

// orientNormals makes normal signs consistent by propagating agreement over
// the neighbor graph, then flips globally if the majority points inward
// relative to the centroid.
func orientNormals(positions []mesh.Vec3, normals []mesh.Vec3, grid *mesh.Grid) {
	n := len(positions)
	if n == 0 {
		return
	}

	// Seed at the extreme +X point, whose normal can be assumed to face +X.
	seed := 0
	for i := 1; i < n; i++ {
		if positions[i].X > positions[seed].X {
			seed = i
		}
	}
	if normals[seed].X < 0 {
		normals[seed] = normals[seed].Scale(-1)
	}

	visited := make([]bool, n)
	queue := []int{seed}
	visited[seed] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, j := range grid.KNearest(positions[cur], neighborCount) {
			if visited[j] {
				continue
			}
			if normals[cur].Dot(normals[j]) < 0 {
				normals[j] = normals[j].Scale(-1)
			}
			visited[j] = true
			queue = append(queue, j)
		}
	}
	// Disconnected islands never reached by the walk keep estimated signs;
	// the global flip below still gives them a majority-consistent chance.

	var center mesh.Vec3
	for _, p := range positions {
		center = center.Add(p)
	}
	center = center.Scale(1 / float64(n))
	outward := 0
	for i := range positions {
		if normals[i].Dot(positions[i].Sub(center)) > 0 {
			outward++
		}
	}
	if outward*2 < n {
		for i := range normals {
			normals[i] = normals[i].Scale(-1)
		}
	}
}

// smallestEigenvector returns the unit eigenvector for the smallest
// eigenvalue of a symmetric 3x3 matrix, via cyclic Jacobi rotations.
func smallestEigenvector(a [3][3]float64) mesh.Vec3 {
	v := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for sweep := 0; sweep < 16; sweep++ {
		off := a[0][1]*a[0][1] + a[0][2]*a[0][2] + a[1][2]*a[1][2]
		if off < 1e-24 {
			break
		}
		for p := 0; p < 2; p++ {
			for q := p + 1; q < 3; q++ {
				if math.Abs(a[p][q]) < 1e-18 {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				rotate(&a, &v, p, q, c, s)
			}
		}
	}
	// Pick the column with the smallest diagonal entry.
	best := 0
	for i := 1; i < 3; i++ {
		if a[i][i] < a[best][best] {
			best = i
		}
	}
	return mesh.Vec3{X: v[0][best], Y: v[1][best], Z: v[2][best]}.Normalize()
}

func rotate(a, v *[3][3]float64, p, q int, c, s float64) {
	for i := 0; i < 3; i++ {
		aip, aiq := a[i][p], a[i][q]
		a[i][p] = c*aip - s*aiq
		a[i][q] = s*aip + c*aiq
	}
	for i := 0; i < 3; i++ {
		api, aqi := a[p][i], a[q][i]
		a[p][i] = c*api - s*aqi
		a[q][i] = s*api + c*aqi
	}
	for i := 0; i < 3; i++ {
		vip, viq := v[i][p], v[i][q]
		v[i][p] = c*vip - s*viq
		v[i][q] = s*vip + c*viq
	}
}
