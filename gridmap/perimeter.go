package gridmap

import (
	"math"
	"sort"
)

type PerimeterSide int8

const (
	SideLeft   PerimeterSide = iota // -X
	SideRight                       // +X
	SideBottom                      // -Z
	SideTop                         // +Z
)

func (s PerimeterSide) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	case SideBottom:
		return "bottom"
	case SideTop:
		return "top"
	}
	return "unknown"
}

// Perimeter 网格的一条边. 坐标和相互关系在构造时固定.
type Perimeter struct {
	Side PerimeterSide
	// Edge 边所在的世界坐标: 左右边是 x, 上下边是 z.
	Edge float64

	// InsideCornerOne/Two 边的两端(One 在坐标较小的一端).
	InsideCornerOne Vector3
	InsideCornerTwo Vector3
	// OutsideCornerOne/Two 沿对角线向外偏移一格的角点.
	OutsideCornerOne Vector3
	OutsideCornerTwo Vector3

	// PerpendicularOne 与 InsideCornerOne 相接的垂直边, Two 同理.
	PerpendicularOne *Perimeter
	PerpendicularTwo *Perimeter
	Opposite         *Perimeter

	grid   *Grid
	normal [2]int // 向外的法线 (x, z)
}

func (g *Grid) buildPerimeters() {
	b := g.bounds
	cs := g.matrix.CellSize()
	y := g.matrix.Origin().Y

	left := &Perimeter{Side: SideLeft, Edge: b.MinX, normal: [2]int{-1, 0},
		InsideCornerOne: Vector3{X: b.MinX, Y: y, Z: b.MinZ}, InsideCornerTwo: Vector3{X: b.MinX, Y: y, Z: b.MaxZ}}
	right := &Perimeter{Side: SideRight, Edge: b.MaxX, normal: [2]int{1, 0},
		InsideCornerOne: Vector3{X: b.MaxX, Y: y, Z: b.MinZ}, InsideCornerTwo: Vector3{X: b.MaxX, Y: y, Z: b.MaxZ}}
	bottom := &Perimeter{Side: SideBottom, Edge: b.MinZ, normal: [2]int{0, -1},
		InsideCornerOne: Vector3{X: b.MinX, Y: y, Z: b.MinZ}, InsideCornerTwo: Vector3{X: b.MaxX, Y: y, Z: b.MinZ}}
	top := &Perimeter{Side: SideTop, Edge: b.MaxZ, normal: [2]int{0, 1},
		InsideCornerOne: Vector3{X: b.MinX, Y: y, Z: b.MaxZ}, InsideCornerTwo: Vector3{X: b.MaxX, Y: y, Z: b.MaxZ}}

	left.PerpendicularOne, left.PerpendicularTwo, left.Opposite = bottom, top, right
	right.PerpendicularOne, right.PerpendicularTwo, right.Opposite = bottom, top, left
	bottom.PerpendicularOne, bottom.PerpendicularTwo, bottom.Opposite = left, right, top
	top.PerpendicularOne, top.PerpendicularTwo, top.Opposite = left, right, bottom

	g.perimeters = [4]*Perimeter{left, right, bottom, top}
	for _, p := range g.perimeters {
		p.grid = g
		p.OutsideCornerOne = p.outsideCorner(p.InsideCornerOne, cs)
		p.OutsideCornerTwo = p.outsideCorner(p.InsideCornerTwo, cs)
	}
}

func (p *Perimeter) outsideCorner(corner Vector3, cs float64) Vector3 {
	c := p.grid.bounds.Center()
	dx, dz := cs, cs
	if corner.X < c.X {
		dx = -cs
	}
	if corner.Z < c.Z {
		dz = -cs
	}
	return Vector3{X: corner.X + dx, Y: corner.Y, Z: corner.Z + dz}
}

func (g *Grid) Perimeter(side PerimeterSide) *Perimeter { return g.perimeters[side] }

func (g *Grid) Perimeters() [4]*Perimeter { return g.perimeters }

func (p *Perimeter) Grid() *Grid { return p.grid }

func (p *Perimeter) IsVertical() bool { return p.Side == SideLeft || p.Side == SideRight }

func (p *Perimeter) Normal() Vector3 {
	return Vector3{X: float64(p.normal[0]), Z: float64(p.normal[1])}
}

// NearestOutsideCorner 两个外角点中离 pos 较近的一个.
func (p *Perimeter) NearestOutsideCorner(pos Vector3) Vector3 {
	if p.OutsideCornerOne.SqrDistXZ(pos) <= p.OutsideCornerTwo.SqrDistXZ(pos) {
		return p.OutsideCornerOne
	}
	return p.OutsideCornerTwo
}

// Crossing 线段穿过某条边的位置, T 为沿线段的参数.
type Crossing struct {
	Perimeter *Perimeter
	T         float64
	Point     Vector3
}

// Crosses tests the segment from->to against the perimeter edge.
func (p *Perimeter) Crosses(from, to Vector3) (Crossing, bool) {
	t, ok := segmentIntersectXZ(from, to, p.InsideCornerOne, p.InsideCornerTwo)
	if !ok {
		return Crossing{}, false
	}
	pt := from.Add(to.Sub(from).Scale(t))
	return Crossing{Perimeter: p, T: t, Point: pt}, true
}

// CrossedPerimeters 线段穿过的边, 按离 from 的远近排序, 最多两条.
func (g *Grid) CrossedPerimeters(from, to Vector3) []Crossing {
	var out []Crossing
	for _, p := range g.perimeters {
		if c, ok := p.Crosses(from, to); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].T < out[j].T })
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}

// maxPerimeterSteps 沿边搜索的步数上限.
const maxPerimeterSteps = 1 << 16

// GetNearestWalkablePerimeterCell 在边 p 上找离 pos 最近的可通行格子.
// adjustToPerimeter 为 true 时先把 pos 投影到边上(另一轴截断到网格范围内);
// 否则在 pos 所在的行/列上沿边的方向搜索. 找不到返回 nil.
func (g *Grid) GetNearestWalkablePerimeterCell(p *Perimeter, pos Vector3, mask AttributeMask, adjustToPerimeter bool) *Cell {
	m := g.matrix
	half := m.CellSize() / 2
	if adjustToPerimeter {
		if p.IsVertical() {
			pos.X = p.Edge - float64(p.normal[0])*half
			pos.Z = clamp(pos.Z, g.bounds.MinZ+half, g.bounds.MaxZ-half)
		} else {
			pos.Z = p.Edge - float64(p.normal[1])*half
			pos.X = clamp(pos.X, g.bounds.MinX+half, g.bounds.MaxX-half)
		}
	}
	start := m.GetCellClamped(pos)
	if start.IsWalkable(mask) {
		return start
	}

	// 沿边交替向两侧扩展.
	sx, sz := 0, 1
	if !p.IsVertical() {
		sx, sz = 1, 0
	}
	limit := m.Columns()
	if p.IsVertical() {
		limit = m.Rows()
	}
	limit = min(limit, maxPerimeterSteps)
	for i := 1; i < limit; i++ {
		up := m.CellAt(start.x+sx*i, start.z+sz*i)
		down := m.CellAt(start.x-sx*i, start.z-sz*i)
		if up == nil && down == nil {
			break
		}
		if up != nil && up.IsWalkable(mask) {
			return up
		}
		if down != nil && down.IsWalkable(mask) {
			return down
		}
	}
	return nil
}

// OutsidePoint 从 cell 越过边 p 向外一个格子宽度的点.
func (g *Grid) OutsidePoint(p *Perimeter, cell *Cell) Vector3 {
	cs := g.matrix.CellSize()
	pos := cell.Position()
	if p.IsVertical() {
		pos.X = p.Edge + float64(p.normal[0])*cs/2
	} else {
		pos.Z = p.Edge + float64(p.normal[1])*cs/2
	}
	return pos
}

// DistanceOutside 点到网格矩形的 XZ 距离, 在内部为 0.
func (g *Grid) DistanceOutside(pos Vector3) float64 {
	dx := math.Max(math.Max(g.bounds.MinX-pos.X, 0), pos.X-g.bounds.MaxX)
	dz := math.Max(math.Max(g.bounds.MinZ-pos.Z, 0), pos.Z-g.bounds.MaxZ)
	return math.Hypot(dx, dz)
}
