package pathing

import (
	"gridnav/gridmap"
)

// NewJPSEngine returns an engine using Jump Point Search successors.
// Cells with portals, extra cost or height blocks (and their direct
// neighbours) are always fully expanded, so jumps only cross uniform ground.
func NewJPSEngine(provider gridmap.MoveCostProvider, opts Options) *Engine {
	return newEngine("jps", provider, opts, (*Engine).jumpSuccessors)
}

type jumpDir struct{ dx, dz int }

func (e *Engine) jumpSuccessors(cur int32, emit func(n gridmap.Node, cost int)) {
	s := e.arena.at(cur)
	c, ok := s.node.(*gridmap.Cell)
	if !ok || s.parent == noParent || e.req.PreventDiagonalMoves || needsFullExpansion(c) {
		e.gridSuccessors(cur, emit)
		return
	}
	p, ok := e.arena.at(s.parent).node.(*gridmap.Cell)
	if !ok || p.Matrix() != c.Matrix() {
		e.gridSuccessors(cur, emit)
		return
	}
	dx, dz := sign(c.X()-p.X()), sign(c.Z()-p.Z())
	if dx == 0 && dz == 0 {
		e.gridSuccessors(cur, emit)
		return
	}

	j := e.newJumper(c.Matrix())
	for _, d := range j.prune(c.X(), c.Z(), dx, dz) {
		var jp *gridmap.Cell
		if d.dx != 0 && d.dz != 0 {
			jp = j.jumpDiagonal(c.X()+d.dx, c.Z()+d.dz, d.dx, d.dz)
		} else {
			jp = j.jumpStraight(c.X()+d.dx, c.Z()+d.dz, d.dx, d.dz)
		}
		if jp != nil {
			emit(jp, e.provider.MoveCost(c, jp))
		}
	}
}

// irregular 有传送门、额外代价或高度阻挡的格子.
func irregular(c *gridmap.Cell) bool {
	return c.HasVirtualNeighbours() || c.Cost() != 0 || c.HeightBlocked() != 0
}

func needsFullExpansion(c *gridmap.Cell) bool {
	if irregular(c) {
		return true
	}
	for _, d := range allDirs {
		if n := c.Neighbour(d); n != nil && irregular(n) {
			return true
		}
	}
	return false
}

type jumper struct {
	m      *gridmap.CellMatrix
	mask   gridmap.AttributeMask
	goal   *gridmap.Cell
	cut    bool
	budget int
	out    [8]jumpDir
}

func (e *Engine) newJumper(m *gridmap.CellMatrix) *jumper {
	j := &jumper{
		m:      m,
		mask:   e.mask,
		cut:    e.req.AllowCornerCutting,
		budget: m.Columns() * m.Rows(),
	}
	if g, ok := e.goal.(*gridmap.Cell); ok && g.Matrix() == m {
		j.goal = g
	}
	return j
}

func (j *jumper) walkable(x, z int) bool {
	c := j.m.CellAt(x, z)
	return c != nil && c.IsWalkable(j.mask)
}

// stop 终点、需要完整展开的格子以及步数耗尽时停下.
func (j *jumper) stop(c *gridmap.Cell) bool {
	if c == j.goal || needsFullExpansion(c) || j.budget <= 0 {
		return true
	}
	j.budget--
	return false
}

// prune 按到达方向裁剪出需要跳跃的方向(自然邻居 + 强制邻居).
func (j *jumper) prune(x, z, dx, dz int) []jumpDir {
	out := j.out[:0]
	w := j.walkable
	if dx != 0 && dz != 0 {
		okZ, okX := w(x, z+dz), w(x+dx, z)
		if okZ {
			out = append(out, jumpDir{0, dz})
		}
		if okX {
			out = append(out, jumpDir{dx, 0})
		}
		if j.cut {
			if okZ || okX {
				out = append(out, jumpDir{dx, dz})
			}
			if !w(x-dx, z) && okZ {
				out = append(out, jumpDir{-dx, dz})
			}
			if !w(x, z-dz) && okX {
				out = append(out, jumpDir{dx, -dz})
			}
		} else if okZ && okX {
			out = append(out, jumpDir{dx, dz})
		}
		return out
	}

	// 直行: 统一成沿 (dx,dz) 前进, 两侧为 (px,pz) 与 (-px,-pz).
	px, pz := dz, dx
	if j.cut {
		if w(x+dx, z+dz) {
			out = append(out, jumpDir{dx, dz})
			if !w(x+px, z+pz) {
				out = append(out, jumpDir{dx + px, dz + pz})
			}
			if !w(x-px, z-pz) {
				out = append(out, jumpDir{dx - px, dz - pz})
			}
		}
		return out
	}
	next, sideA, sideB := w(x+dx, z+dz), w(x+px, z+pz), w(x-px, z-pz)
	if next {
		out = append(out, jumpDir{dx, dz})
		if sideA {
			out = append(out, jumpDir{dx + px, dz + pz})
		}
		if sideB {
			out = append(out, jumpDir{dx - px, dz - pz})
		}
	}
	if sideA {
		out = append(out, jumpDir{px, pz})
	}
	if sideB {
		out = append(out, jumpDir{-px, -pz})
	}
	return out
}

// forcedStraight 直行到 (x,z) 时是否出现强制邻居.
func (j *jumper) forcedStraight(x, z, dx, dz int) bool {
	w := j.walkable
	px, pz := dz, dx
	if j.cut {
		return (w(x+dx+px, z+dz+pz) && !w(x+px, z+pz)) ||
			(w(x+dx-px, z+dz-pz) && !w(x-px, z-pz))
	}
	return (w(x+px, z+pz) && !w(x-dx+px, z-dz+pz)) ||
		(w(x-px, z-pz) && !w(x-dx-px, z-dz-pz))
}

// jumpStraight 从 (x,z) 开始沿直线跳跃, (x,z) 是第一个待检查的格子.
func (j *jumper) jumpStraight(x, z, dx, dz int) *gridmap.Cell {
	for {
		if !j.walkable(x, z) {
			return nil
		}
		c := j.m.CellAt(x, z)
		if j.stop(c) || j.forcedStraight(x, z, dx, dz) {
			return c
		}
		x, z = x+dx, z+dz
	}
}

func (j *jumper) jumpDiagonal(x, z, dx, dz int) *gridmap.Cell {
	w := j.walkable
	for {
		if !w(x, z) {
			return nil
		}
		c := j.m.CellAt(x, z)
		if j.stop(c) {
			return c
		}
		if j.cut && ((w(x-dx, z+dz) && !w(x-dx, z)) || (w(x+dx, z-dz) && !w(x, z-dz))) {
			return c
		}
		if j.jumpStraight(x+dx, z, dx, 0) != nil || j.jumpStraight(x, z+dz, 0, dz) != nil {
			return c
		}
		okX, okZ := w(x+dx, z), w(x, z+dz)
		if j.cut && !okX && !okZ {
			return nil
		}
		if !j.cut && (!okX || !okZ) {
			return nil
		}
		x, z = x+dx, z+dz
	}
}

func sign(a int) int {
	switch {
	case a < 0:
		return -1
	case a > 0:
		return 1
	}
	return 0
}
