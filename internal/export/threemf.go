package export

import (
	"fmt"
	"strings"

	"plyconv/internal/mesh"
	"plyconv/pkg/zip"
)

const (
	threemfContentTypes = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
 <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
 <Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>
`
	threemfRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
 <Relationship Target="/3D/3dmodel.model" Id="rel-1" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>
</Relationships>
`
)

// writeThreeMF encodes the 3D-printing container: an OPC zip package with a
// content-type manifest, a package relationship and the model part.
func writeThreeMF(s *mesh.Surface) ([]byte, error) {
	var model strings.Builder
	model.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	model.WriteString(`<model unit="millimeter" xml:lang="en-US" xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02">` + "\n")
	model.WriteString(" <resources>\n")
	model.WriteString(`  <object id="1" type="model">` + "\n")
	model.WriteString("   <mesh>\n    <vertices>\n")
	for _, v := range s.Vertices {
		fmt.Fprintf(&model, `     <vertex x="%g" y="%g" z="%g"/>`+"\n", v.Position.X, v.Position.Y, v.Position.Z)
	}
	model.WriteString("    </vertices>\n    <triangles>\n")
	for _, t := range s.Triangles {
		fmt.Fprintf(&model, `     <triangle v1="%d" v2="%d" v3="%d"/>`+"\n", t[0], t[1], t[2])
	}
	model.WriteString("    </triangles>\n   </mesh>\n  </object>\n </resources>\n")
	model.WriteString(" <build>\n  <item objectid=\"1\"/>\n </build>\n</model>\n")

	return zip.Archive([]zip.Entry{
		{Name: "[Content_Types].xml", Data: []byte(threemfContentTypes)},
		{Name: "_rels/.rels", Data: []byte(threemfRels)},
		{Name: "3D/3dmodel.model", Data: []byte(model.String())},
	})
}
