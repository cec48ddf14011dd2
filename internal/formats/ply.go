// Package formats decodes PLY point-cloud and mesh files.
//
// Real-world PLY exports frequently violate the format: wrong element counts,
// mixed line endings, vendor property names, truncated bodies. ReadPLY runs a
// chain of increasingly forgiving strategies and only fails when all of them
// are exhausted.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"plyconv/internal/mesh"
)

// PLY format errors.
var (
	ErrNotPLY          = errors.New("missing 'ply' magic")
	ErrBadHeader       = errors.New("malformed PLY header")
	ErrUnknownEncoding = errors.New("unknown PLY encoding")
	ErrTruncated       = errors.New("truncated PLY body")
	ErrNoPoints        = errors.New("no decodable points")
)

type plyEncoding int

const (
	encASCII plyEncoding = iota
	encBinaryLE
	encBinaryBE
)

type plyType int

const (
	typeInvalid plyType = iota
	typeInt8
	typeUint8
	typeInt16
	typeUint16
	typeInt32
	typeUint32
	typeFloat32
	typeFloat64
)

var typeNames = map[string]plyType{
	"char": typeInt8, "int8": typeInt8,
	"uchar": typeUint8, "uint8": typeUint8,
	"short": typeInt16, "int16": typeInt16,
	"ushort": typeUint16, "uint16": typeUint16,
	"int": typeInt32, "int32": typeInt32,
	"uint": typeUint32, "uint32": typeUint32,
	"float": typeFloat32, "float32": typeFloat32,
	"double": typeFloat64, "float64": typeFloat64,
}

var typeSizes = map[plyType]int{
	typeInt8: 1, typeUint8: 1,
	typeInt16: 2, typeUint16: 2,
	typeInt32: 4, typeUint32: 4,
	typeFloat32: 4, typeFloat64: 8,
}

type plyProperty struct {
	name      string
	typ       plyType
	isList    bool
	countType plyType
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	encoding plyEncoding
	elements []plyElement
}

// ReadPLY decodes data into a point cloud, trying the strict, lenient and
// best-effort scan strategies in order. The error of the last attempted
// strategy is returned when every strategy fails.
func ReadPLY(data []byte) (*mesh.PointCloud, error) {
	strategies := []struct {
		name string
		fn   func([]byte) (*mesh.PointCloud, error)
	}{
		{"strict", readStrict},
		{"lenient", readLenient},
		{"scan", readScan},
	}

	var lastErr error
	for _, s := range strategies {
		cloud, err := s.fn(data)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", s.name, err)
			continue
		}
		sanitize(cloud)
		if cloud.Len() == 0 {
			lastErr = fmt.Errorf("%s: %w", s.name, ErrNoPoints)
			continue
		}
		return cloud, nil
	}
	return nil, lastErr
}

// readStrict honors the declared header exactly: canonical property names,
// declared counts enforced, truncation is an error.
func readStrict(data []byte) (*mesh.PointCloud, error) {
	hdr, body, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	return decodeElements(hdr, body, decodeOptions{})
}

// readLenient maps recognizable property names case-insensitively, accepts
// vendor spellings, skips unknown properties and tolerates short bodies.
func readLenient(data []byte) (*mesh.PointCloud, error) {
	hdr, body, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	return decodeElements(hdr, body, decodeOptions{
		allowTruncation:   true,
		caseInsensitive:   true,
		vendorColorNames:  true,
		vendorNormalNames: true,
	})
}

// readScan ignores the header entirely and harvests any line whose first
// three fields parse as finite floats.
func readScan(data []byte) (*mesh.PointCloud, error) {
	cloud := &mesh.PointCloud{}
	for _, line := range splitLines(data) {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var p mesh.Vec3
		var ok = true
		for i, dst := range []*float64{&p.X, &p.Y, &p.Z} {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				ok = false
				break
			}
			*dst = v
		}
		if !ok || !p.Finite() {
			continue
		}
		cloud.Positions = append(cloud.Positions, p)
	}
	if cloud.Len() == 0 {
		return nil, ErrNoPoints
	}
	return cloud, nil
}

func parseHeader(data []byte) (*plyHeader, []byte, error) {
	end := bytes.Index(data, []byte("end_header"))
	if end < 0 {
		return nil, nil, ErrBadHeader
	}
	headerText := string(data[:end])
	body := data[end+len("end_header"):]
	// Consume the single newline terminating end_header, tolerating CRLF.
	if len(body) > 0 && body[0] == '\r' {
		body = body[1:]
	}
	if len(body) > 0 && body[0] == '\n' {
		body = body[1:]
	}

	hdr := &plyHeader{}
	lines := splitLines([]byte(headerText))
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "ply" {
		return nil, nil, ErrNotPLY
	}
	sawFormat := false
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
			continue
		case "format":
			if len(fields) < 2 {
				return nil, nil, ErrBadHeader
			}
			switch fields[1] {
			case "ascii":
				hdr.encoding = encASCII
			case "binary_little_endian":
				hdr.encoding = encBinaryLE
			case "binary_big_endian":
				hdr.encoding = encBinaryBE
			default:
				return nil, nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, fields[1])
			}
			sawFormat = true
		case "element":
			if len(fields) < 3 {
				return nil, nil, ErrBadHeader
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, nil, fmt.Errorf("%w: bad element count %q", ErrBadHeader, fields[2])
			}
			hdr.elements = append(hdr.elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(hdr.elements) == 0 {
				return nil, nil, fmt.Errorf("%w: property before element", ErrBadHeader)
			}
			el := &hdr.elements[len(hdr.elements)-1]
			prop, err := parseProperty(fields)
			if err != nil {
				return nil, nil, err
			}
			el.props = append(el.props, prop)
		default:
			return nil, nil, fmt.Errorf("%w: unexpected keyword %q", ErrBadHeader, fields[0])
		}
	}
	if !sawFormat {
		return nil, nil, fmt.Errorf("%w: missing format line", ErrBadHeader)
	}
	if len(hdr.elements) == 0 {
		return nil, nil, fmt.Errorf("%w: no elements declared", ErrBadHeader)
	}
	return hdr, body, nil
}

func parseProperty(fields []string) (plyProperty, error) {
	if len(fields) >= 5 && fields[1] == "list" {
		countType, ok1 := typeNames[fields[2]]
		valType, ok2 := typeNames[fields[3]]
		if !ok1 || !ok2 {
			return plyProperty{}, fmt.Errorf("%w: unknown list types %q %q", ErrBadHeader, fields[2], fields[3])
		}
		return plyProperty{name: fields[4], typ: valType, isList: true, countType: countType}, nil
	}
	if len(fields) >= 3 {
		typ, ok := typeNames[fields[1]]
		if !ok {
			return plyProperty{}, fmt.Errorf("%w: unknown type %q", ErrBadHeader, fields[1])
		}
		return plyProperty{name: fields[2], typ: typ}, nil
	}
	return plyProperty{}, fmt.Errorf("%w: short property line", ErrBadHeader)
}

type decodeOptions struct {
	allowTruncation   bool
	caseInsensitive   bool
	vendorColorNames  bool
	vendorNormalNames bool
}

// channelSlot identifies which output channel a property feeds, if any.
type channelSlot int

const (
	slotSkip channelSlot = iota
	slotX
	slotY
	slotZ
	slotNX
	slotNY
	slotNZ
	slotR
	slotG
	slotB
)

func (o decodeOptions) slotFor(name string) channelSlot {
	n := name
	if o.caseInsensitive {
		n = strings.ToLower(n)
	}
	switch n {
	case "x":
		return slotX
	case "y":
		return slotY
	case "z":
		return slotZ
	case "nx":
		return slotNX
	case "ny":
		return slotNY
	case "nz":
		return slotNZ
	case "red":
		return slotR
	case "green":
		return slotG
	case "blue":
		return slotB
	}
	if o.vendorNormalNames {
		switch n {
		case "normal_x", "normalx":
			return slotNX
		case "normal_y", "normaly":
			return slotNY
		case "normal_z", "normalz":
			return slotNZ
		}
	}
	if o.vendorColorNames {
		switch n {
		case "r", "diffuse_red":
			return slotR
		case "g", "diffuse_green":
			return slotG
		case "b", "diffuse_blue":
			return slotB
		}
	}
	return slotSkip
}

func decodeElements(hdr *plyHeader, body []byte, opts decodeOptions) (*mesh.PointCloud, error) {
	var dec recordDecoder
	if hdr.encoding == encASCII {
		dec = newASCIIDecoder(body)
	} else {
		dec = newBinaryDecoder(body, hdr.encoding == encBinaryBE)
	}

	var cloud *mesh.PointCloud
	for _, el := range hdr.elements {
		if el.name == "vertex" && cloud == nil {
			c, err := decodeVertexElement(el, dec, opts)
			if err != nil {
				return nil, err
			}
			cloud = c
			continue
		}
		// Skip non-vertex elements so later elements stay aligned. Once the
		// vertex element is decoded nothing after it matters.
		if cloud != nil {
			break
		}
		if err := skipElement(el, dec); err != nil {
			if opts.allowTruncation {
				break
			}
			return nil, err
		}
	}
	if cloud == nil {
		return nil, fmt.Errorf("%w: no vertex element", ErrBadHeader)
	}
	return cloud, nil
}

func decodeVertexElement(el plyElement, dec recordDecoder, opts decodeOptions) (*mesh.PointCloud, error) {
	slots := make([]channelSlot, len(el.props))
	sawX, sawY, sawZ := false, false, false
	hasNormals, hasColors := 0, 0
	for i, p := range el.props {
		if p.isList {
			slots[i] = slotSkip
			continue
		}
		s := opts.slotFor(p.name)
		slots[i] = s
		switch s {
		case slotX:
			sawX = true
		case slotY:
			sawY = true
		case slotZ:
			sawZ = true
		case slotNX, slotNY, slotNZ:
			hasNormals++
		case slotR, slotG, slotB:
			hasColors++
		}
	}
	if !sawX || !sawY || !sawZ {
		return nil, fmt.Errorf("%w: vertex element lacks x/y/z", ErrBadHeader)
	}
	withNormals := hasNormals == 3
	withColors := hasColors == 3
	colorIsFloat := false
	for i, p := range el.props {
		if slots[i] == slotR {
			colorIsFloat = p.typ == typeFloat32 || p.typ == typeFloat64
		}
	}

	cloud := &mesh.PointCloud{}
	for rec := 0; rec < el.count; rec++ {
		var pos, nrm mesh.Vec3
		var col [3]float64
		err := dec.record(el.props, func(i int, v float64, _ plyType) {
			switch slots[i] {
			case slotX:
				pos.X = v
			case slotY:
				pos.Y = v
			case slotZ:
				pos.Z = v
			case slotNX:
				nrm.X = v
			case slotNY:
				nrm.Y = v
			case slotNZ:
				nrm.Z = v
			case slotR:
				col[0] = v
			case slotG:
				col[1] = v
			case slotB:
				col[2] = v
			}
		})
		if err != nil {
			if opts.allowTruncation {
				break
			}
			return nil, fmt.Errorf("%w: vertex %d: %v", ErrTruncated, rec, err)
		}
		cloud.Positions = append(cloud.Positions, pos)
		if withNormals {
			cloud.Normals = append(cloud.Normals, nrm)
		}
		if withColors {
			cloud.Colors = append(cloud.Colors, toColor(col, colorIsFloat))
		}
	}
	return cloud, nil
}

func toColor(c [3]float64, isFloat bool) mesh.Color {
	scale := 1.0
	if isFloat && c[0] <= 1.0 && c[1] <= 1.0 && c[2] <= 1.0 {
		scale = 255.0
	}
	clamp := func(v float64) uint8 {
		v *= scale
		if v < 0 {
			return 0
		}
		if v > 255 {
			return 255
		}
		return uint8(v)
	}
	return mesh.Color{R: clamp(c[0]), G: clamp(c[1]), B: clamp(c[2])}
}

func skipElement(el plyElement, dec recordDecoder) error {
	for rec := 0; rec < el.count; rec++ {
		if err := dec.record(el.props, func(int, float64, plyType) {}); err != nil {
			return fmt.Errorf("%w: %s %d: %v", ErrTruncated, el.name, rec, err)
		}
	}
	return nil
}

// sanitize enforces the channel invariants: drop non-finite points (with
// their channel entries) and unreliable normal channels.
func sanitize(cloud *mesh.PointCloud) {
	keep := 0
	for i, p := range cloud.Positions {
		if !p.Finite() {
			continue
		}
		cloud.Positions[keep] = p
		if cloud.HasNormals() {
			cloud.Normals[keep] = cloud.Normals[i]
		}
		if cloud.HasColors() {
			cloud.Colors[keep] = cloud.Colors[i]
		}
		keep++
	}
	if cloud.HasNormals() {
		cloud.Normals = cloud.Normals[:keep]
	}
	if cloud.HasColors() {
		cloud.Colors = cloud.Colors[:keep]
	}
	cloud.Positions = cloud.Positions[:keep]
	cloud.DropUnreliableNormals()
}

func splitLines(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// recordDecoder reads one record of an element, invoking visit for every
// scalar property value. List properties are consumed to keep the stream
// aligned but never reported.
type recordDecoder interface {
	record(props []plyProperty, visit func(propIndex int, value float64, typ plyType)) error
}

type asciiDecoder struct {
	tokens []string
	pos    int
}

func newASCIIDecoder(body []byte) *asciiDecoder {
	return &asciiDecoder{tokens: strings.Fields(string(body))}
}

func (d *asciiDecoder) next() (string, error) {
	if d.pos >= len(d.tokens) {
		return "", ErrTruncated
	}
	t := d.tokens[d.pos]
	d.pos++
	return t, nil
}

func (d *asciiDecoder) record(props []plyProperty, visit func(int, float64, plyType)) error {
	for i, p := range props {
		if p.isList {
			tok, err := d.next()
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(tok)
			if err != nil || n < 0 {
				return fmt.Errorf("bad list count %q", tok)
			}
			for j := 0; j < n; j++ {
				if _, err := d.next(); err != nil {
					return err
				}
			}
			continue
		}
		tok, err := d.next()
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("bad value %q", tok)
		}
		visit(i, v, p.typ)
	}
	return nil
}

type binaryDecoder struct {
	data []byte
	pos  int
	ord  binary.ByteOrder
}

func newBinaryDecoder(body []byte, bigEndian bool) *binaryDecoder {
	var ord binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		ord = binary.BigEndian
	}
	return &binaryDecoder{data: body, ord: ord}
}

func (d *binaryDecoder) scalar(t plyType) (float64, error) {
	size := typeSizes[t]
	if d.pos+size > len(d.data) {
		return 0, ErrTruncated
	}
	raw := d.data[d.pos : d.pos+size]
	d.pos += size
	switch t {
	case typeInt8:
		return float64(int8(raw[0])), nil
	case typeUint8:
		return float64(raw[0]), nil
	case typeInt16:
		return float64(int16(d.ord.Uint16(raw))), nil
	case typeUint16:
		return float64(d.ord.Uint16(raw)), nil
	case typeInt32:
		return float64(int32(d.ord.Uint32(raw))), nil
	case typeUint32:
		return float64(d.ord.Uint32(raw)), nil
	case typeFloat32:
		return float64(math.Float32frombits(d.ord.Uint32(raw))), nil
	case typeFloat64:
		return math.Float64frombits(d.ord.Uint64(raw)), nil
	}
	return 0, fmt.Errorf("unreadable type %d", t)
}

func (d *binaryDecoder) record(props []plyProperty, visit func(int, float64, plyType)) error {
	for i, p := range props {
		if p.isList {
			count, err := d.scalar(p.countType)
			if err != nil {
				return err
			}
			n := int(count)
			if n < 0 || n > len(d.data) {
				return fmt.Errorf("bad list count %d", n)
			}
			for j := 0; j < n; j++ {
				if _, err := d.scalar(p.typ); err != nil {
					return err
				}
			}
			continue
		}
		v, err := d.scalar(p.typ)
		if err != nil {
			return err
		}
		visit(i, v, p.typ)
	}
	return nil
}
