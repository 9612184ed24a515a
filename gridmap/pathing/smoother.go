package pathing

import (
	"math"

	"gridnav/gridmap"
)

// Smoother 把搜索得到的节点链压缩成拐点列表.
type Smoother struct {
	// Epsilon 走廊与格子重叠判定的容差.
	Epsilon float64
}

func NewSmoother() *Smoother {
	return &Smoother{Epsilon: 1e-6}
}

type waypoint struct {
	pos    gridmap.Vector3
	matrix *gridmap.CellMatrix
	portal bool
}

// Smooth 输入 chain 为 [终点, ..., 起点]. 返回的路径首尾精确等于请求起点与 destination.
func (s *Smoother) Smooth(chain []gridmap.Node, maxLength int, req *gridmap.PathRequest, destination gridmap.Vector3) *gridmap.Path {
	if len(chain) == 0 {
		return gridmap.NewPath(req.From, destination)
	}
	pts := s.prune(chain, max(maxLength, 2), req, destination)
	if !req.PreventDiagonalMoves {
		pts = s.pullString(pts, req)
	}

	path := gridmap.NewPath()
	for i := len(pts) - 1; i >= 0; i-- {
		path.Push(pts[i].pos)
	}
	return path
}

// prune 只保留方向变化处和传送门端点, 返回从起点到终点的顺序.
func (s *Smoother) prune(chain []gridmap.Node, capHint int, req *gridmap.PathRequest, destination gridmap.Vector3) []waypoint {
	rev := make(waypoints, 0, capHint)
	rev = append(rev, waypoint{pos: destination, matrix: chain[0].Matrix()})

	last := len(chain) - 1
	for i := 1; i < last; i++ {
		n := chain[i]
		if pc, ok := n.(*gridmap.PortalCell); ok {
			partner := pc.Partner()
			rev.add(waypoint{pos: partner.Position(), matrix: partner.Matrix(), portal: true})
			rev.add(waypoint{pos: pc.Position(), matrix: pc.Matrix(), portal: true})
			continue
		}
		_, prevPortal := chain[i-1].(*gridmap.PortalCell)
		_, nextPortal := chain[i+1].(*gridmap.PortalCell)
		if prevPortal || nextPortal || heading(chain[i-1], n) != heading(n, chain[i+1]) {
			rev.add(waypoint{pos: n.Position(), matrix: n.Matrix()})
		}
	}
	if from := (waypoint{pos: req.From, matrix: chain[last].Matrix()}); len(rev) > 1 {
		rev.add(from)
	} else {
		rev = append(rev, from)
	}

	// 整条链没有拐点时补回终点前一个节点, 由走廊检查决定是否能去掉.
	if len(rev) == 2 && last > 1 {
		n := chain[1]
		rev = append(rev[:1], waypoint{pos: n.Position(), matrix: n.Matrix()}, rev[1])
	}

	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

type waypoints []waypoint

// add 与上一个点重合时合并, 门端点与其覆盖的格子中心常常重合.
func (w *waypoints) add(p waypoint) {
	if n := len(*w); n > 0 && (*w)[n-1].pos == p.pos {
		(*w)[n-1].portal = (*w)[n-1].portal || p.portal
		return
	}
	*w = append(*w, p)
}

// heading 两个节点间的方向, 按位置符号判断.
func heading(from, to gridmap.Node) gridmap.Dir {
	a, b := from.Position(), to.Position()
	return gridmap.DirOf(cmpf(b.X, a.X), cmpf(b.Z, a.Z))
}

func cmpf(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// pullString 对每组相邻三点 (p1,p2,p3), 若 p1->p3 的半径走廊畅通则去掉 p2.
// 遇到传送门时跳过端点并切换到门另一侧的矩阵.
func (s *Smoother) pullString(pts []waypoint, req *gridmap.PathRequest) []waypoint {
	mask := req.Attributes()
	radius := req.Radius()
	out := make([]waypoint, 0, len(pts))
	out = append(out, pts[0])
	for i := 1; i < len(pts); i++ {
		cur := pts[i]
		if cur.portal || i == len(pts)-1 {
			out = append(out, cur)
			continue
		}
		anchor := out[len(out)-1]
		next := pts[i+1]
		// 刚穿过传送门时 anchor 是门的另一端, 已在新矩阵上.
		if next.portal || anchor.matrix != next.matrix {
			out = append(out, cur)
			continue
		}
		if !s.corridorClear(anchor.matrix, anchor.pos, next.pos, radius, mask) {
			out = append(out, cur)
		}
	}
	return out
}

// corridorClear 沿 a->b 宽度为 radius 的走廊覆盖到的格子都必须可走,
// 且走廊内相邻格子之间没有高度阻挡. 矩阵外的部分不检查.
func (s *Smoother) corridorClear(m *gridmap.CellMatrix, a, b gridmap.Vector3, radius float64, mask gridmap.AttributeMask) bool {
	if m == nil {
		return false
	}
	origin := m.GetCell(a)
	if origin == nil {
		origin = m.GetCellClamped(a)
	}

	// 两条切线 a±n*r -> b±n*r 的包围盒.
	dx, dz := b.X-a.X, b.Z-a.Z
	l := math.Hypot(dx, dz)
	var nx, nz float64
	if l > 0 {
		nx, nz = -dz/l*radius, dx/l*radius
	}
	minX := math.Min(math.Min(a.X+nx, a.X-nx), math.Min(b.X+nx, b.X-nx)) - radius
	maxX := math.Max(math.Max(a.X+nx, a.X-nx), math.Max(b.X+nx, b.X-nx)) + radius
	minZ := math.Min(math.Min(a.Z+nz, a.Z-nz), math.Min(b.Z+nz, b.Z-nz)) - radius
	maxZ := math.Max(math.Max(a.Z+nz, a.Z-nz), math.Max(b.Z+nz, b.Z-nz)) + radius
	box := m.BoundsOf(gridmap.Bounds{MinX: minX, MinZ: minZ, MaxX: maxX, MaxZ: maxZ})
	if box.Empty() {
		return true
	}

	cs := m.CellSize()
	o := m.Origin()
	inside := func(c *gridmap.Cell) bool {
		x0 := o.X + float64(c.X())*cs
		z0 := o.Z + float64(c.Z())*cs
		d := segmentRectDistance(a, b, x0, z0, x0+cs, z0+cs)
		if radius > 0 {
			return d < radius-s.Epsilon
		}
		return d <= s.Epsilon
	}

	clear := true
	m.CellsIn(box, func(c *gridmap.Cell) {
		if !clear || !inside(c) {
			return
		}
		if c != origin && !c.IsWalkable(mask) {
			clear = false
			return
		}
		if c.HeightBlocked() == 0 {
			return
		}
		for _, d := range allDirs {
			if !c.IsHeightBlocked(d) {
				continue
			}
			if n := c.Neighbour(d); n != nil && inside(n) {
				clear = false
				return
			}
		}
	})
	return clear
}

// segmentRectDistance 线段 a-b 到矩形的 XZ 距离, 相交为 0.
func segmentRectDistance(a, b gridmap.Vector3, minX, minZ, maxX, maxZ float64) float64 {
	if clipSegment(a.X, a.Z, b.X, b.Z, minX, minZ, maxX, maxZ) {
		return 0
	}
	d := math.Min(pointRectDistance(a.X, a.Z, minX, minZ, maxX, maxZ), pointRectDistance(b.X, b.Z, minX, minZ, maxX, maxZ))
	for _, c := range [4][2]float64{{minX, minZ}, {maxX, minZ}, {maxX, maxZ}, {minX, maxZ}} {
		d = math.Min(d, pointSegmentDistance(c[0], c[1], a.X, a.Z, b.X, b.Z))
	}
	return d
}

func pointRectDistance(px, pz, minX, minZ, maxX, maxZ float64) float64 {
	dx := math.Max(math.Max(minX-px, 0), px-maxX)
	dz := math.Max(math.Max(minZ-pz, 0), pz-maxZ)
	return math.Hypot(dx, dz)
}

func pointSegmentDistance(px, pz, ax, az, bx, bz float64) float64 {
	dx, dz := bx-ax, bz-az
	l2 := dx*dx + dz*dz
	t := 0.0
	if l2 > 0 {
		t = math.Max(0, math.Min(1, ((px-ax)*dx+(pz-az)*dz)/l2))
	}
	return math.Hypot(px-(ax+t*dx), pz-(az+t*dz))
}

// clipSegment Liang-Barsky 裁剪, 判断线段是否与矩形相交.
func clipSegment(x0, z0, x1, z1, minX, minZ, maxX, maxZ float64) bool {
	t0, t1 := 0.0, 1.0
	dx, dz := x1-x0, z1-z0
	p := [4]float64{-dx, dx, -dz, dz}
	q := [4]float64{x0 - minX, maxX - x0, z0 - minZ, maxZ - z0}
	for i := 0; i < 4; i++ {
		if p[i] == 0 {
			if q[i] < 0 {
				return false
			}
			continue
		}
		r := q[i] / p[i]
		if p[i] < 0 {
			t0 = math.Max(t0, r)
		} else {
			t1 = math.Min(t1, r)
		}
		if t0 > t1 {
			return false
		}
	}
	return true
}
