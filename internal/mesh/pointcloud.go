package mesh

// Color is an RGB color with 8-bit channels.
type Color struct {
	R, G, B uint8
}

// PointCloud is an ordered set of points with optional per-point normal and
// color channels. A channel is either nil or exactly len(Positions) long;
// partial channels are never stored.
type PointCloud struct {
	Positions []Vec3
	Normals   []Vec3
	Colors    []Color
}

// Len returns the number of points.
func (c *PointCloud) Len() int { return len(c.Positions) }

// HasNormals reports whether a full normal channel is present.
func (c *PointCloud) HasNormals() bool {
	return len(c.Normals) == len(c.Positions) && len(c.Normals) > 0
}

// HasColors reports whether a full color channel is present.
func (c *PointCloud) HasColors() bool {
	return len(c.Colors) == len(c.Positions) && len(c.Colors) > 0
}

// Bounds returns the axis-aligned bounding box of the positions.
func (c *PointCloud) Bounds() Bounds {
	b := NewBounds()
	for _, p := range c.Positions {
		b.Extend(p)
	}
	return b
}

// DropUnreliableNormals removes the normal channel when any entry is
// non-finite or near zero length. The caller re-estimates in that case.
func (c *PointCloud) DropUnreliableNormals() {
	if !c.HasNormals() {
		c.Normals = nil
		return
	}
	for _, n := range c.Normals {
		if !n.Finite() || n.Length() < 1e-9 {
			c.Normals = nil
			return
		}
	}
}
