package formats

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"testing"

	"plyconv/internal/mesh"
)

func TestReadPLYASCII(t *testing.T) {
	data := []byte(strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"comment generated by a scanner",
		"element vertex 3",
		"property float x",
		"property float y",
		"property float z",
		"property float nx",
		"property float ny",
		"property float nz",
		"property uchar red",
		"property uchar green",
		"property uchar blue",
		"end_header",
		"0 0 0 0 0 1 255 0 0",
		"1 0 0 0 0 1 0 255 0",
		"0 1 0 0 0 1 0 0 255",
		"",
	}, "\n"))

	cloud, err := ReadPLY(data)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Len() != 3 {
		t.Fatalf("decoded %d points, want 3", cloud.Len())
	}
	if !cloud.HasNormals() {
		t.Fatal("normals missing")
	}
	if !cloud.HasColors() {
		t.Fatal("colors missing")
	}
	if cloud.Positions[1] != (mesh.Vec3{X: 1}) {
		t.Fatalf("point 1 = %+v", cloud.Positions[1])
	}
	if cloud.Colors[0] != (mesh.Color{R: 255}) {
		t.Fatalf("color 0 = %+v", cloud.Colors[0])
	}
}

func TestReadPLYCRLF(t *testing.T) {
	data := []byte("ply\r\nformat ascii 1.0\r\nelement vertex 2\r\n" +
		"property float x\r\nproperty float y\r\nproperty float z\r\n" +
		"end_header\r\n1 2 3\r\n4 5 6\r\n")

	cloud, err := ReadPLY(data)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Len() != 2 || cloud.Positions[1] != (mesh.Vec3{X: 4, Y: 5, Z: 6}) {
		t.Fatalf("decoded %d points, last %+v", cloud.Len(), cloud.Positions[cloud.Len()-1])
	}
}

func binaryHeader(format string, count int) string {
	return strings.Join([]string{
		"ply",
		"format " + format + " 1.0",
		"element vertex " + strconv.Itoa(count),
		"property float x",
		"property float y",
		"property float z",
		"end_header",
		"",
	}, "\n")
}

func TestReadPLYBinaryLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(binaryHeader("binary_little_endian", 2))
	for _, v := range []float32{1, 2, 3, 4, 5, 6} {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	cloud, err := ReadPLY(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Len() != 2 {
		t.Fatalf("decoded %d points, want 2", cloud.Len())
	}
	if cloud.Positions[0] != (mesh.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("point 0 = %+v", cloud.Positions[0])
	}
}

func TestReadPLYBinaryBigEndian(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(binaryHeader("binary_big_endian", 1))
	for _, v := range []float32{7, 8, 9} {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}

	cloud, err := ReadPLY(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Positions[0] != (mesh.Vec3{X: 7, Y: 8, Z: 9}) {
		t.Fatalf("point 0 = %+v", cloud.Positions[0])
	}
}

func TestReadPLYLenientVendorNames(t *testing.T) {
	data := []byte(strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"element vertex 1",
		"property float X",
		"property float Y",
		"property float Z",
		"property float normal_x",
		"property float normal_y",
		"property float normal_z",
		"property uchar diffuse_red",
		"property uchar diffuse_green",
		"property uchar diffuse_blue",
		"end_header",
		"1 2 3 0 1 0 10 20 30",
		"",
	}, "\n"))

	cloud, err := ReadPLY(data)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Positions[0] != (mesh.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("point = %+v", cloud.Positions[0])
	}
	if !cloud.HasNormals() || cloud.Normals[0] != (mesh.Vec3{Y: 1}) {
		t.Fatalf("normal = %+v", cloud.Normals)
	}
	if !cloud.HasColors() || cloud.Colors[0] != (mesh.Color{R: 10, G: 20, B: 30}) {
		t.Fatalf("color = %+v", cloud.Colors)
	}
}

func TestReadPLYLenientOverdeclaredCount(t *testing.T) {
	data := []byte(strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"element vertex 100",
		"property float x",
		"property float y",
		"property float z",
		"end_header",
		"0 0 0",
		"1 1 1",
		"2 2 2",
		"",
	}, "\n"))

	cloud, err := ReadPLY(data)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Len() != 3 {
		t.Fatalf("decoded %d points from short body, want 3", cloud.Len())
	}
}

func TestReadPLYScanFallback(t *testing.T) {
	data := []byte(strings.Join([]string{
		"some exporter wrote garbage here",
		"1.0 2.0 3.0",
		"4.0 5.0 6.0",
		"not a point",
		"7.0 8.0 9.0 extra trailing fields",
		"",
	}, "\n"))

	cloud, err := ReadPLY(data)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Len() != 3 {
		t.Fatalf("scan harvested %d points, want 3", cloud.Len())
	}
	if cloud.Positions[2] != (mesh.Vec3{X: 7, Y: 8, Z: 9}) {
		t.Fatalf("point 2 = %+v", cloud.Positions[2])
	}
}

func TestReadPLYNoPoints(t *testing.T) {
	if _, err := ReadPLY([]byte("nothing numeric in here\nat all\n")); err == nil {
		t.Fatal("ReadPLY() on non-numeric garbage should fail")
	}
}

func TestReadPLYDropsNonFinite(t *testing.T) {
	data := []byte(strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"element vertex 3",
		"property float x",
		"property float y",
		"property float z",
		"end_header",
		"0 0 0",
		"nan nan nan",
		"1 1 1",
		"",
	}, "\n"))

	cloud, err := ReadPLY(data)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Len() != 2 {
		t.Fatalf("kept %d points, want 2 after dropping nan", cloud.Len())
	}
	for _, p := range cloud.Positions {
		if !p.Finite() {
			t.Fatalf("non-finite point survived: %+v", p)
		}
	}
}

func TestReadPLYFloatColors(t *testing.T) {
	data := []byte(strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"element vertex 1",
		"property float x",
		"property float y",
		"property float z",
		"property float red",
		"property float green",
		"property float blue",
		"end_header",
		"0 0 0 1.0 0.5 0.0",
		"",
	}, "\n"))

	cloud, err := ReadPLY(data)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	c := cloud.Colors[0]
	if c.R != 255 || c.G != 127 || c.B != 0 {
		t.Fatalf("color = %+v, want scaled unit floats", c)
	}
}

func TestReadPLYSkipsFaceElement(t *testing.T) {
	data := []byte(strings.Join([]string{
		"ply",
		"format ascii 1.0",
		"element vertex 3",
		"property float x",
		"property float y",
		"property float z",
		"element face 1",
		"property list uchar int vertex_indices",
		"end_header",
		"0 0 0",
		"1 0 0",
		"0 1 0",
		"3 0 1 2",
		"",
	}, "\n"))

	cloud, err := ReadPLY(data)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if cloud.Len() != 3 {
		t.Fatalf("decoded %d points, want 3", cloud.Len())
	}
}

func TestParseHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing magic", "format ascii 1.0\nelement vertex 1\nproperty float x\nend_header\n"},
		{"unknown encoding", "ply\nformat binary_middle_endian 1.0\nelement vertex 1\nproperty float x\nend_header\n"},
		{"no elements", "ply\nformat ascii 1.0\nend_header\n"},
		{"bad count", "ply\nformat ascii 1.0\nelement vertex many\nend_header\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := parseHeader([]byte(tc.data)); err == nil {
				t.Fatal("parseHeader() should fail")
			}
		})
	}
}

func TestBinaryDecoderScalarTypes(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, int8(-5))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(300))
	_ = binary.Write(&buf, binary.LittleEndian, int32(-70000))
	_ = binary.Write(&buf, binary.LittleEndian, float64(2.5))

	d := newBinaryDecoder(buf.Bytes(), false)
	for _, want := range []struct {
		typ plyType
		val float64
	}{
		{typeInt8, -5},
		{typeUint16, 300},
		{typeInt32, -70000},
		{typeFloat64, 2.5},
	} {
		got, err := d.scalar(want.typ)
		if err != nil {
			t.Fatalf("scalar(%v) error = %v", want.typ, err)
		}
		if math.Abs(got-want.val) > 1e-12 {
			t.Fatalf("scalar(%v) = %v, want %v", want.typ, got, want.val)
		}
	}
	if _, err := d.scalar(typeFloat32); err == nil {
		t.Fatal("scalar() past end of data should fail")
	}
}
