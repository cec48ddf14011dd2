package export

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"plyconv/internal/mesh"
)

// writeSTL encodes binary STL. STL describes a solid, so the surface must be
// closed; color has no channel in the container and is dropped.
func writeSTL(s *mesh.Surface) ([]byte, error) {
	if n := s.BoundaryEdges(); n != 0 {
		return nil, fmt.Errorf("%w: %d boundary edges", ErrNotWatertight, n)
	}

	buf := &bytes.Buffer{}
	var header [80]byte
	copy(header[:], "binary STL; closed solid")
	buf.Write(header[:])
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s.Triangles)))

	for i, t := range s.Triangles {
		n := s.TriangleNormal(i).Normalize()
		writeVec32(buf, n)
		for _, vi := range t {
			writeVec32(buf, s.Vertices[vi].Position)
		}
		_ = binary.Write(buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes(), nil
}

func writeVec32(buf *bytes.Buffer, v mesh.Vec3) {
	_ = binary.Write(buf, binary.LittleEndian, [3]float32{float32(v.X), float32(v.Y), float32(v.Z)})
}
