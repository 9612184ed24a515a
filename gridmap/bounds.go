package gridmap

import (
	"fmt"
)

// Bounds is an axis aligned rectangle on the XZ plane. Min inclusive, Max exclusive.
type Bounds struct {
	MinX, MinZ float64
	MaxX, MaxZ float64
}

func (b Bounds) Width() float64 { return b.MaxX - b.MinX }
func (b Bounds) Depth() float64 { return b.MaxZ - b.MinZ }

// Contains 判断点是否在矩形内（Min inclusive, Max exclusive）.
func (b Bounds) Contains(p Vector3) bool {
	return b.MinX <= p.X && p.X < b.MaxX && b.MinZ <= p.Z && p.Z < b.MaxZ
}

func (b Bounds) Intersects(o Bounds) bool {
	return b.MinX < o.MaxX && o.MinX < b.MaxX && b.MinZ < o.MaxZ && o.MinZ < b.MaxZ
}

func (b Bounds) Center() Vector3 {
	return Vector3{X: (b.MinX + b.MaxX) / 2, Z: (b.MinZ + b.MaxZ) / 2}
}

func (b Bounds) String() string {
	return fmt.Sprintf("[(%.2f,%.2f), (%.2f,%.2f))", b.MinX, b.MinZ, b.MaxX, b.MaxZ)
}

// MatrixBounds is a rectangle of matrix indices, both ends inclusive.
type MatrixBounds struct {
	MinX, MinZ int
	MaxX, MaxZ int
}

func (b MatrixBounds) Contains(x, z int) bool {
	return b.MinX <= x && x <= b.MaxX && b.MinZ <= z && z <= b.MaxZ
}

func (b MatrixBounds) Overlaps(o MatrixBounds) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinZ <= o.MaxZ && o.MinZ <= b.MaxZ
}

// Expand 四周各扩 n 格，不做裁剪.
func (b MatrixBounds) Expand(n int) MatrixBounds {
	return MatrixBounds{MinX: b.MinX - n, MinZ: b.MinZ - n, MaxX: b.MaxX + n, MaxZ: b.MaxZ + n}
}

func (b MatrixBounds) Clamp(columns, rows int) MatrixBounds {
	return MatrixBounds{
		MinX: max(b.MinX, 0),
		MinZ: max(b.MinZ, 0),
		MaxX: min(b.MaxX, columns-1),
		MaxZ: min(b.MaxZ, rows-1),
	}
}

func (b MatrixBounds) Empty() bool {
	return b.MaxX < b.MinX || b.MaxZ < b.MinZ
}

func (b MatrixBounds) String() string {
	return fmt.Sprintf("[%d,%d]-[%d,%d]", b.MinX, b.MinZ, b.MaxX, b.MaxZ)
}
