package export

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"

	"plyconv/internal/mesh"
)

// glTF 2.0 component and target constants.
const (
	glbMagic        = 0x46546C67 // "glTF"
	glbChunkJSON    = 0x4E4F534A // "JSON"
	glbChunkBIN     = 0x004E4942 // "BIN\0"
	compFloat       = 5126
	compUint32      = 5125
	targetArray     = 34962
	targetElemArray = 34963
)

type gltfBuffer struct {
	ByteLength int `json:"byteLength"`
}

type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target,omitempty"`
}

type gltfAccessor struct {
	BufferView    int       `json:"bufferView"`
	ComponentType int       `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    int            `json:"indices"`
	Material   int            `json:"material"`
}

type gltfDocument struct {
	Asset  map[string]string  `json:"asset"`
	Scene  int                `json:"scene"`
	Scenes []map[string][]int `json:"scenes"`
	Nodes  []map[string]int   `json:"nodes"`
	Meshes []struct {
		Primitives []gltfPrimitive `json:"primitives"`
	} `json:"meshes"`
	Materials   []map[string]any `json:"materials"`
	Buffers     []gltfBuffer     `json:"buffers"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Accessors   []gltfAccessor   `json:"accessors"`
}

// writeGLB encodes a single-mesh glTF 2.0 binary container with positions,
// normals, optional per-vertex color and a neutral PBR material.
func writeGLB(s *mesh.Surface) ([]byte, error) {
	bin := &bytes.Buffer{}
	doc := &gltfDocument{
		Asset:   map[string]string{"version": "2.0"},
		Scene:   0,
		Scenes:  []map[string][]int{{"nodes": {0}}},
		Nodes:   []map[string]int{{"mesh": 0}},
		Buffers: []gltfBuffer{{}},
		Materials: []map[string]any{{
			"pbrMetallicRoughness": map[string]any{
				"baseColorFactor": []float64{1, 1, 1, 1},
				"metallicFactor":  0.0,
				"roughnessFactor": 0.9,
			},
			"doubleSided": false,
		}},
	}

	addView := func(data []byte, target int) int {
		offset := bin.Len()
		bin.Write(data)
		for bin.Len()%4 != 0 {
			bin.WriteByte(0)
		}
		doc.BufferViews = append(doc.BufferViews, gltfBufferView{
			Buffer:     0,
			ByteOffset: offset,
			ByteLength: len(data),
			Target:     target,
		})
		return len(doc.BufferViews) - 1
	}
	addAccessor := func(view, comp, count int, typ string, min, max []float64) int {
		doc.Accessors = append(doc.Accessors, gltfAccessor{
			BufferView:    view,
			ComponentType: comp,
			Count:         count,
			Type:          typ,
			Min:           min,
			Max:           max,
		})
		return len(doc.Accessors) - 1
	}

	bounds := s.Bounds()
	positions := make([]byte, 0, len(s.Vertices)*12)
	normals := make([]byte, 0, len(s.Vertices)*12)
	for _, v := range s.Vertices {
		positions = appendVec32(positions, v.Position)
		normals = appendVec32(normals, v.Normal)
	}
	posAcc := addAccessor(addView(positions, targetArray), compFloat, len(s.Vertices), "VEC3",
		[]float64{f32(bounds.Min.X), f32(bounds.Min.Y), f32(bounds.Min.Z)},
		[]float64{f32(bounds.Max.X), f32(bounds.Max.Y), f32(bounds.Max.Z)})
	nrmAcc := addAccessor(addView(normals, targetArray), compFloat, len(s.Vertices), "VEC3", nil, nil)

	attrs := map[string]int{"POSITION": posAcc, "NORMAL": nrmAcc}
	if s.HasColors {
		colors := make([]byte, 0, len(s.Vertices)*12)
		for _, v := range s.Vertices {
			colors = appendVec32(colors, mesh.Vec3{
				X: float64(v.Color.R) / 255,
				Y: float64(v.Color.G) / 255,
				Z: float64(v.Color.B) / 255,
			})
		}
		attrs["COLOR_0"] = addAccessor(addView(colors, targetArray), compFloat, len(s.Vertices), "VEC3", nil, nil)
	}

	indices := make([]byte, 0, len(s.Triangles)*12)
	for _, t := range s.Triangles {
		indices = binary.LittleEndian.AppendUint32(indices, t[0])
		indices = binary.LittleEndian.AppendUint32(indices, t[1])
		indices = binary.LittleEndian.AppendUint32(indices, t[2])
	}
	idxAcc := addAccessor(addView(indices, targetElemArray), compUint32, len(s.Triangles)*3, "SCALAR", nil, nil)

	doc.Meshes = append(doc.Meshes, struct {
		Primitives []gltfPrimitive `json:"primitives"`
	}{Primitives: []gltfPrimitive{{Attributes: attrs, Indices: idxAcc, Material: 0}}})
	doc.Buffers[0].ByteLength = bin.Len()

	jsonChunk, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	binChunk := bin.Bytes()

	out := &bytes.Buffer{}
	total := 12 + 8 + len(jsonChunk) + 8 + len(binChunk)
	_ = binary.Write(out, binary.LittleEndian, uint32(glbMagic))
	_ = binary.Write(out, binary.LittleEndian, uint32(2))
	_ = binary.Write(out, binary.LittleEndian, uint32(total))
	_ = binary.Write(out, binary.LittleEndian, uint32(len(jsonChunk)))
	_ = binary.Write(out, binary.LittleEndian, uint32(glbChunkJSON))
	out.Write(jsonChunk)
	_ = binary.Write(out, binary.LittleEndian, uint32(len(binChunk)))
	_ = binary.Write(out, binary.LittleEndian, uint32(glbChunkBIN))
	out.Write(binChunk)
	return out.Bytes(), nil
}

func appendVec32(dst []byte, v mesh.Vec3) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.X)))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.Y)))
	dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v.Z)))
	return dst
}

// f32 rounds through float32 so accessor min/max match the encoded data.
func f32(v float64) float64 {
	return float64(float32(v))
}
