package export

import (
	"fmt"
	"strings"

	"plyconv/internal/mesh"
)

// writeOBJ encodes ASCII OBJ. Vertex colors use the widely supported
// "v x y z r g b" extension when the surface carries color.
func writeOBJ(s *mesh.Surface) ([]byte, error) {
	var b strings.Builder
	b.WriteString("# reconstructed surface\n")
	b.WriteString(fmt.Sprintf("# %d vertices, %d triangles\n", len(s.Vertices), len(s.Triangles)))

	for _, v := range s.Vertices {
		if s.HasColors {
			fmt.Fprintf(&b, "v %g %g %g %.4f %.4f %.4f\n",
				v.Position.X, v.Position.Y, v.Position.Z,
				float64(v.Color.R)/255, float64(v.Color.G)/255, float64(v.Color.B)/255)
		} else {
			fmt.Fprintf(&b, "v %g %g %g\n", v.Position.X, v.Position.Y, v.Position.Z)
		}
	}
	for _, v := range s.Vertices {
		fmt.Fprintf(&b, "vn %g %g %g\n", v.Normal.X, v.Normal.Y, v.Normal.Z)
	}
	for _, t := range s.Triangles {
		// OBJ indices are 1-based.
		fmt.Fprintf(&b, "f %d//%d %d//%d %d//%d\n",
			t[0]+1, t[0]+1, t[1]+1, t[1]+1, t[2]+1, t[2]+1)
	}
	return []byte(b.String()), nil
}
