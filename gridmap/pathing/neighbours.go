package pathing

import (
	"gridnav/gridmap"
)

var allDirs = [8]gridmap.Dir{gridmap.N, gridmap.NE, gridmap.E, gridmap.SE, gridmap.S, gridmap.SW, gridmap.W, gridmap.NW}

// gridSuccessors 完整邻居展开: 8 方向实格子 + 注册在格子上的传送门端点.
func (e *Engine) gridSuccessors(cur int32, emit func(n gridmap.Node, cost int)) {
	switch n := e.arena.at(cur).node.(type) {
	case *gridmap.Cell:
		e.cellSuccessors(n, emit)
	case *gridmap.PortalCell:
		e.portalSuccessors(n, emit)
	}
}

func (e *Engine) cellSuccessors(c *gridmap.Cell, emit func(n gridmap.Node, cost int)) {
	for _, d := range allDirs {
		if n := e.canStep(c, d); n != nil {
			emit(n, e.provider.MoveCost(c, n))
		}
	}
	e.virtualSuccessors(c, emit)
}

func (e *Engine) virtualSuccessors(c *gridmap.Cell, emit func(n gridmap.Node, cost int)) {
	base := e.provider.BaseMoveCost()
	for _, pc := range c.VirtualNeighbours() {
		if pc.IsWalkable(e.mask) {
			emit(pc, pc.EnterCost(base))
		}
	}
}

// portalSuccessors 离开传送门: 邻居是另一端覆盖的格子, 代价为 0.
func (e *Engine) portalSuccessors(pc *gridmap.PortalCell, emit func(n gridmap.Node, cost int)) {
	for _, c := range pc.Partner().Cells() {
		if c.IsWalkable(e.mask) {
			emit(c, 0)
		}
	}
}

// canStep 返回沿 d 可走到的邻格, 不可走时为 nil.
// 斜向移动: 允许切角时两侧至少一侧可走, 否则两侧都要可走.
func (e *Engine) canStep(c *gridmap.Cell, d gridmap.Dir) *gridmap.Cell {
	if d.IsDiagonal() && e.req.PreventDiagonalMoves {
		return nil
	}
	n := c.Neighbour(d)
	if n == nil || !n.IsWalkableFrom(c, e.mask) {
		return nil
	}
	if !d.IsDiagonal() {
		return n
	}
	a, b := d.Flanks()
	okA, okB := e.stepOpen(c, a), e.stepOpen(c, b)
	if e.req.AllowCornerCutting {
		if okA || okB {
			return n
		}
		return nil
	}
	if okA && okB {
		return n
	}
	return nil
}

func (e *Engine) stepOpen(c *gridmap.Cell, d gridmap.Dir) bool {
	n := c.Neighbour(d)
	return n != nil && n.IsWalkableFrom(c, e.mask)
}
