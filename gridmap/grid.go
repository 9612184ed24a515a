package gridmap

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const defaultSectionSize = 16

type GridOptions struct {
	// SectionSize 每个分区的边长(格子数).
	SectionSize int
	// SectionOverlap 分区向四周额外覆盖的格子数.
	SectionOverlap int
}

// GridSection 只用于记录"某时刻之后是否变化过", 不参与寻路.
type GridSection struct {
	Bounds      MatrixBounds
	lastChanged atomic.Int64
}

func (s *GridSection) LastChanged() time.Time {
	ns := s.lastChanged.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Grid 包装一个 CellMatrix, 提供边界、分区和动态障碍的入口.
type Grid struct {
	name   string
	matrix *CellMatrix
	bounds Bounds

	perimeters [4]*Perimeter
	sections   []*GridSection

	mu  sync.Mutex // 动态障碍与地形修改
	now func() time.Time
}

func NewGrid(name string, matrix *CellMatrix, opts GridOptions) *Grid {
	g := &Grid{
		name:   name,
		matrix: matrix,
		bounds: matrix.WorldBounds(),
		now:    time.Now,
	}
	g.buildPerimeters()
	g.buildSections(opts)
	return g
}

func (g *Grid) buildSections(opts GridOptions) {
	size := opts.SectionSize
	if size <= 0 {
		size = defaultSectionSize
	}
	overlap := max(opts.SectionOverlap, 0)
	cols, rows := g.matrix.Columns(), g.matrix.Rows()
	for z := 0; z < rows; z += size {
		for x := 0; x < cols; x += size {
			b := MatrixBounds{MinX: x, MinZ: z, MaxX: x + size - 1, MaxZ: z + size - 1}
			g.sections = append(g.sections, &GridSection{Bounds: b.Expand(overlap).Clamp(cols, rows)})
		}
	}
}

func (g *Grid) Name() string              { return g.name }
func (g *Grid) Matrix() *CellMatrix       { return g.matrix }
func (g *Grid) Bounds() Bounds            { return g.bounds }
func (g *Grid) Sections() []*GridSection  { return g.sections }
func (g *Grid) Contains(pos Vector3) bool { return g.bounds.Contains(pos) }
func (g *Grid) GetCell(pos Vector3) *Cell { return g.matrix.GetCell(pos) }
func (g *Grid) CellSize() float64         { return g.matrix.CellSize() }

// MarkChanged stamps every section overlapping b.
func (g *Grid) MarkChanged(b MatrixBounds) {
	ns := g.now().UnixNano()
	for _, s := range g.sections {
		if s.Bounds.Overlaps(b) {
			s.lastChanged.Store(ns)
		}
	}
}

// HasChangedSince reports whether any section overlapping b changed after t.
func (g *Grid) HasChangedSince(b MatrixBounds, t time.Time) bool {
	ns := t.UnixNano()
	for _, s := range g.sections {
		if s.Bounds.Overlaps(b) && s.lastChanged.Load() > ns {
			return true
		}
	}
	return false
}

// AddDynamicObstacle 作用于 area 覆盖的所有格子, 只有屏蔽掩码真的变化时才标记分区.
func (g *Grid) AddDynamicObstacle(o *DynamicObstacle, area Bounds) bool {
	return g.applyObstacle(area, func(c *Cell) bool { return c.AddDynamicObstacle(o) })
}

func (g *Grid) RemoveDynamicObstacle(o *DynamicObstacle, area Bounds) bool {
	return g.applyObstacle(area, func(c *Cell) bool { return c.RemoveDynamicObstacle(o) })
}

func (g *Grid) applyObstacle(area Bounds, f func(c *Cell) bool) bool {
	if !g.bounds.Intersects(area) {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	mb := g.matrix.BoundsOf(area)
	changed := false
	g.matrix.CellsIn(mb, func(c *Cell) {
		if f(c) {
			changed = true
		}
	})
	if changed {
		g.MarkChanged(mb)
	}
	return changed
}

// UpdateTerrain re-bakes heights and walkability in area.
func (g *Grid) UpdateTerrain(area Bounds) error {
	if !g.bounds.Intersects(area) {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	mb := g.matrix.BoundsOf(area)
	if err := g.matrix.UpdateRegion(mb); err != nil {
		return fmt.Errorf("grid %s: %w", g.name, err)
	}
	g.MarkChanged(mb.Expand(1))
	return nil
}

// SetBlocked 手动阻挡, 不经过烘焙源.
func (g *Grid) SetBlocked(area Bounds, blocked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	mb := g.matrix.BoundsOf(area)
	g.matrix.CellsIn(mb, func(c *Cell) { c.SetBlocked(blocked) })
	g.MarkChanged(mb)
}

func (g *Grid) String() string {
	return fmt.Sprintf("Grid[%s %dx%d %v]", g.name, g.matrix.Columns(), g.matrix.Rows(), g.bounds)
}
