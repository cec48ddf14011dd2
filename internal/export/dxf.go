package export

import (
	"fmt"
	"strings"

	"plyconv/internal/mesh"
)

// writeDXF encodes a 2D drafting view: the unique triangle edges projected
// onto the XY plane as LINE entities. This is a documented lossy
// approximation, not a faithful 3D export.
func writeDXF(s *mesh.Surface) ([]byte, error) {
	type edge struct{ a, b uint32 }
	seen := make(map[edge]struct{}, len(s.Triangles)*3)
	addEdge := func(a, b uint32) edge {
		if a > b {
			a, b = b, a
		}
		return edge{a, b}
	}

	var b strings.Builder
	b.WriteString("0\nSECTION\n2\nHEADER\n9\n$ACADVER\n1\nAC1009\n0\nENDSEC\n")
	b.WriteString("0\nSECTION\n2\nENTITIES\n")
	for _, t := range s.Triangles {
		for _, e := range [][2]uint32{{t[0], t[1]}, {t[1], t[2]}, {t[2], t[0]}} {
			key := addEdge(e[0], e[1])
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			p, q := s.Vertices[e[0]].Position, s.Vertices[e[1]].Position
			fmt.Fprintf(&b, "0\nLINE\n8\n0\n10\n%g\n20\n%g\n30\n0.0\n11\n%g\n21\n%g\n31\n0.0\n",
				p.X, p.Y, q.X, q.Y)
		}
	}
	b.WriteString("0\nENDSEC\n0\nEOF\n")
	return []byte(b.String()), nil
}
