// Package export encodes a reconstructed surface into the supported output
// containers. Writers are stateless and safe to run concurrently against the
// same surface.
package export

import (
	"errors"
	"fmt"

	"plyconv/internal/domain"
	"plyconv/internal/mesh"
)

// ErrNotWatertight is returned by writers that require a closed solid.
var ErrNotWatertight = errors.New("surface is not watertight")

type writerFunc func(*mesh.Surface) ([]byte, error)

// writers is the closed set of format encoders.
var writers = map[domain.OutputFormat]writerFunc{
	domain.FormatSTL:     writeSTL,
	domain.FormatOBJ:     writeOBJ,
	domain.FormatGLB:     writeGLB,
	domain.FormatThreeMF: writeThreeMF,
	domain.FormatDXF:     writeDXF,
}

// Write encodes the surface in the given format. Formats without a color
// channel silently drop color; geometry is the contract.
func Write(format domain.OutputFormat, s *mesh.Surface) ([]byte, error) {
	w, ok := writers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return w(s)
}

// MIMEType returns the media type served for a format's artifact.
func MIMEType(format domain.OutputFormat) string {
	switch format {
	case domain.FormatSTL:
		return "model/stl"
	case domain.FormatOBJ:
		return "model/obj"
	case domain.FormatGLB:
		return "model/gltf-binary"
	case domain.FormatThreeMF:
		return "application/vnd.ms-package.3dmanufacturing-3dmodel+xml"
	case domain.FormatDXF:
		return "image/vnd.dxf"
	}
	return "application/octet-stream"
}

// FileExtension returns the artifact filename extension, without dot.
func FileExtension(format domain.OutputFormat) string {
	return string(format)
}
