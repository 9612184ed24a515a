package bake

import (
	"errors"
	"fmt"
	"math"

	"gridnav/gridmap"
)

var ErrHeightFieldSize = errors.New("bake: height field size mismatch")

// HeightField 规则采样点上的高度, 采样点之间双线性插值, 范围外取边缘值.
type HeightField struct {
	origin  gridmap.Vector3
	spacing float64
	columns int
	rows    int
	heights []float64 // row major, z*columns + x
}

var _ gridmap.HeightSampler = (*HeightField)(nil)

func NewHeightField(origin gridmap.Vector3, spacing float64, columns, rows int, heights []float64) (*HeightField, error) {
	if spacing <= 0 || columns <= 0 || rows <= 0 || len(heights) != columns*rows {
		return nil, fmt.Errorf("%w: %dx%d spacing %.2f with %d samples",
			ErrHeightFieldSize, columns, rows, spacing, len(heights))
	}
	return &HeightField{
		origin:  origin,
		spacing: spacing,
		columns: columns,
		rows:    rows,
		heights: append([]float64(nil), heights...),
	}, nil
}

func (h *HeightField) at(x, z int) float64 {
	x = min(max(x, 0), h.columns-1)
	z = min(max(z, 0), h.rows-1)
	return h.heights[z*h.columns+x]
}

func (h *HeightField) SampleHeight(pos gridmap.Vector3) float64 {
	fx := (pos.X - h.origin.X) / h.spacing
	fz := (pos.Z - h.origin.Z) / h.spacing
	fx = math.Max(0, math.Min(fx, float64(h.columns-1)))
	fz = math.Max(0, math.Min(fz, float64(h.rows-1)))

	x0, z0 := int(math.Floor(fx)), int(math.Floor(fz))
	tx, tz := fx-float64(x0), fz-float64(z0)

	top := lerp(h.at(x0, z0), h.at(x0+1, z0), tx)
	bottom := lerp(h.at(x0, z0+1), h.at(x0+1, z0+1), tx)
	return h.origin.Y + lerp(top, bottom, tz)
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// Plane is a constant slope through Origin.
type Plane struct {
	Origin         gridmap.Vector3
	SlopeX, SlopeZ float64
}

func (p Plane) SampleHeight(pos gridmap.Vector3) float64 {
	return p.Origin.Y + (pos.X-p.Origin.X)*p.SlopeX + (pos.Z-p.Origin.Z)*p.SlopeZ
}
