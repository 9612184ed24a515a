package gridmap

import "fmt"

// PortalCell 传送门的一端. 作为寻路节点时, 邻居是另一端覆盖的格子.
type PortalCell struct {
	portal   *Portal
	grid     *Grid
	bounds   MatrixBounds
	cells    []*Cell
	position Vector3
	partner  *PortalCell
}

func newPortalCell(p *Portal, g *Grid, area Bounds) (*PortalCell, error) {
	if g == nil {
		return nil, ErrPortalNoGrid
	}
	pc := &PortalCell{portal: p, grid: g, bounds: g.matrix.BoundsOf(area)}
	if pc.bounds.Empty() {
		return nil, ErrPortalNoCells
	}
	g.matrix.CellsIn(pc.bounds, func(c *Cell) {
		pc.cells = append(pc.cells, c)
	})
	if len(pc.cells) == 0 {
		return nil, ErrPortalNoCells
	}

	first := pc.cells[0].position
	last := pc.cells[len(pc.cells)-1].position
	centre := Vector3{X: (first.X + last.X) / 2, Z: (first.Z + last.Z) / 2}
	centre.Y = g.matrix.GetCellClamped(centre).position.Y
	pc.position = centre
	return pc, nil
}

func (pc *PortalCell) isNode() {}

func (pc *PortalCell) Position() Vector3    { return pc.position }
func (pc *PortalCell) Matrix() *CellMatrix  { return pc.grid.matrix }
func (pc *PortalCell) Grid() *Grid          { return pc.grid }
func (pc *PortalCell) Portal() *Portal      { return pc.portal }
func (pc *PortalCell) Partner() *PortalCell { return pc.partner }
func (pc *PortalCell) Cells() []*Cell       { return pc.cells }
func (pc *PortalCell) Bounds() MatrixBounds { return pc.bounds }
func (pc *PortalCell) Action() PortalAction { return pc.portal.action }
func (pc *PortalCell) IsShortcut() bool     { return pc.portal.typ == PortalShortcut }

func (pc *PortalCell) IsWalkable(mask AttributeMask) bool { return pc.portal.IsUsableBy(mask) }

// Covers reports whether c is one of the real cells under this endpoint.
func (pc *PortalCell) Covers(c *Cell) bool {
	return c != nil && c.matrix == pc.grid.matrix && pc.bounds.Contains(c.x, c.z)
}

// EnterCost 从本端穿越到另一端的代价.
func (pc *PortalCell) EnterCost(baseMoveCost int) int {
	return pc.portal.action.ActionCost(pc.position, pc.partner.position) * baseMoveCost
}

func (pc *PortalCell) String() string {
	return fmt.Sprintf("PortalCell[%s@%s]%v", pc.portal.name, pc.grid.name, pc.position)
}
