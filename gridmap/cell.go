package gridmap

import (
	"fmt"
	"slices"
)

// Node is a vertex of the search graph: either a *Cell or a *PortalCell.
type Node interface {
	Position() Vector3
	Matrix() *CellMatrix
	IsWalkable(mask AttributeMask) bool
	isNode()
}

// Cell 网格中的一格, 可通行性每次按需计算, 不做缓存.
type Cell struct {
	matrix   *CellMatrix
	x, z     int
	position Vector3

	blocked bool // 烘焙阻挡或手动阻挡
	// slopeBlocks 坡度过大导致的阻挡, 按引起阻挡的前向格子对的 Dir 标记.
	slopeBlocks uint8

	exclusion AttributeMask
	obstacles []*DynamicObstacle

	heightBlocked uint8 // 按 Dir 的 bit 标记
	cost          int

	virtual []*PortalCell
}

func (c *Cell) isNode() {}

func (c *Cell) X() int               { return c.x }
func (c *Cell) Z() int               { return c.z }
func (c *Cell) Position() Vector3    { return c.position }
func (c *Cell) Matrix() *CellMatrix  { return c.matrix }
func (c *Cell) Cost() int            { return c.cost }
func (c *Cell) SetCost(cost int)     { c.cost = max(cost, 0) }
func (c *Cell) HeightBlocked() uint8 { return c.heightBlocked }

func (c *Cell) ExclusionMask() AttributeMask { return c.exclusion }

func (c *Cell) SetHeight(y float64) { c.position.Y = y }

func (c *Cell) SetBlocked(blocked bool) { c.blocked = blocked }

func (c *Cell) IsPermanentlyBlocked() bool { return c.blocked || c.slopeBlocks != 0 }

// IsWalkable mask 为 None 时任何障碍都阻挡；否则只要有一个属性被所有障碍豁免即可通行.
func (c *Cell) IsWalkable(mask AttributeMask) bool {
	if c.blocked || c.slopeBlocks != 0 {
		return false
	}
	if mask == AttributesNone {
		return c.exclusion == AttributesNone
	}
	return c.exclusion&mask != mask
}

// IsWalkableFrom reports whether the cell can be entered from neighbour.
func (c *Cell) IsWalkableFrom(neighbour *Cell, mask AttributeMask) bool {
	if neighbour == nil || neighbour.matrix != c.matrix {
		return c.IsWalkable(mask)
	}
	d := DirOf(neighbour.x-c.x, neighbour.z-c.z)
	if d == DirNone {
		return c.IsWalkable(mask)
	}
	return c.IsWalkableFromDir(d, mask)
}

// IsWalkableFromDir d 为从本格指向来源格的方向.
func (c *Cell) IsWalkableFromDir(d Dir, mask AttributeMask) bool {
	if c.heightBlocked&d.bit() != 0 {
		return false
	}
	return c.IsWalkable(mask)
}

func (c *Cell) IsHeightBlocked(d Dir) bool {
	return c.heightBlocked&d.bit() != 0
}

func (c *Cell) Neighbour(d Dir) *Cell {
	return c.matrix.CellAt(c.x+d.DX(), c.z+d.DZ())
}

// AddDynamicObstacle 返回有效屏蔽掩码是否发生变化.
func (c *Cell) AddDynamicObstacle(o *DynamicObstacle) bool {
	if o == nil || slices.Contains(c.obstacles, o) {
		return false
	}
	c.obstacles = append(c.obstacles, o)
	return c.recomputeExclusion()
}

func (c *Cell) RemoveDynamicObstacle(o *DynamicObstacle) bool {
	i := slices.Index(c.obstacles, o)
	if i < 0 {
		return false
	}
	c.obstacles = slices.Delete(c.obstacles, i, i+1)
	return c.recomputeExclusion()
}

func (c *Cell) DynamicObstacles() []*DynamicObstacle { return c.obstacles }

func (c *Cell) recomputeExclusion() bool {
	var mask AttributeMask
	for _, o := range c.obstacles {
		mask |= ^o.Exceptions
	}
	changed := mask != c.exclusion
	c.exclusion = mask
	return changed
}

// VirtualNeighbours 返回注册在本格上的传送门端点.
func (c *Cell) VirtualNeighbours() []*PortalCell { return c.virtual }

func (c *Cell) HasVirtualNeighbours() bool { return len(c.virtual) > 0 }

func (c *Cell) addVirtualNeighbour(pc *PortalCell) {
	if !slices.Contains(c.virtual, pc) {
		c.virtual = append(c.virtual, pc)
	}
}

func (c *Cell) removeVirtualNeighbour(pc *PortalCell) {
	if i := slices.Index(c.virtual, pc); i >= 0 {
		c.virtual = slices.Delete(c.virtual, i, i+1)
	}
}

func (c *Cell) String() string {
	return fmt.Sprintf("Cell[%d,%d]%v", c.x, c.z, c.position)
}
