package gridmap

import (
	"fmt"
	"math"
	"slices"
)

const (
	defaultMaxSlopeAngle  = 30
	defaultMaxScaleHeight = 0.5
)

// Obstruction answers whether a disc at pos is obstructed by static geometry.
type Obstruction interface {
	IsBlocked(pos Vector3, radius float64) bool
}

// BakeSources are the collaborators used to bake walkability and heights.
// Both are optional.
type BakeSources struct {
	Heights     HeightSampler
	Obstruction Obstruction
}

type MatrixConfig struct {
	// Origin 矩阵左下角（最小 x,z）的世界坐标.
	Origin   Vector3
	Columns  int
	Rows     int
	CellSize float64

	MaxSlopeAngle            float64 // 度
	MaxScaleHeight           float64
	HeightGranularity        float64
	ObstacleSensitivityRange float64
	// ObstructionRadius 烘焙阻挡时的探测半径, 默认半格.
	ObstructionRadius float64
}

func (cfg *MatrixConfig) normalize() {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 1
	}
	cfg.Columns = max(cfg.Columns, 1)
	cfg.Rows = max(cfg.Rows, 1)
	if cfg.MaxSlopeAngle <= 0 {
		cfg.MaxSlopeAngle = defaultMaxSlopeAngle
	}
	if cfg.MaxScaleHeight <= 0 {
		cfg.MaxScaleHeight = defaultMaxScaleHeight
	}
	if cfg.HeightGranularity <= 0 || cfg.HeightGranularity > cfg.CellSize {
		cfg.HeightGranularity = cfg.CellSize / 4
	}
	if cfg.ObstructionRadius <= 0 {
		cfg.ObstructionRadius = cfg.CellSize / 2
	}
}

// CellMatrix 一个 Grid 下的稠密格子数组, 尺寸创建后不变.
type CellMatrix struct {
	cfg     MatrixConfig
	cells   []Cell // idx = x + z*columns
	heights *HeightMap
	src     BakeSources

	shortcuts []*Portal
}

// NewCellMatrix 布局并烘焙整个矩阵, 烘焙失败时 panic. 采样器可能失败时用 BakeCellMatrix.
func NewCellMatrix(cfg MatrixConfig, src BakeSources) *CellMatrix {
	m, err := BakeCellMatrix(cfg, src)
	if err != nil {
		panic(err)
	}
	return m
}

func BakeCellMatrix(cfg MatrixConfig, src BakeSources) (*CellMatrix, error) {
	m := newCellMatrix(cfg, src)
	if src.Heights != nil || src.Obstruction != nil {
		if err := m.UpdateRegion(m.Bounds()); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newCellMatrix(cfg MatrixConfig, src BakeSources) *CellMatrix {
	cfg.normalize()
	m := &CellMatrix{
		cfg:     cfg,
		cells:   make([]Cell, cfg.Columns*cfg.Rows),
		heights: NewHeightMap(cfg.Origin, cfg.HeightGranularity),
		src:     src,
	}
	half := cfg.CellSize / 2
	for z := 0; z < cfg.Rows; z++ {
		for x := 0; x < cfg.Columns; x++ {
			c := &m.cells[x+z*cfg.Columns]
			c.matrix = m
			c.x, c.z = x, z
			c.position = Vector3{
				X: cfg.Origin.X + float64(x)*cfg.CellSize + half,
				Y: cfg.Origin.Y,
				Z: cfg.Origin.Z + float64(z)*cfg.CellSize + half,
			}
		}
	}
	return m
}

func (m *CellMatrix) Config() MatrixConfig { return m.cfg }
func (m *CellMatrix) Columns() int         { return m.cfg.Columns }
func (m *CellMatrix) Rows() int            { return m.cfg.Rows }
func (m *CellMatrix) CellSize() float64    { return m.cfg.CellSize }
func (m *CellMatrix) Origin() Vector3      { return m.cfg.Origin }

func (m *CellMatrix) HeightMap() *HeightMap { return m.heights }

func (m *CellMatrix) Bounds() MatrixBounds {
	return MatrixBounds{MaxX: m.cfg.Columns - 1, MaxZ: m.cfg.Rows - 1}
}

func (m *CellMatrix) WorldBounds() Bounds {
	o := m.cfg.Origin
	return Bounds{
		MinX: o.X,
		MinZ: o.Z,
		MaxX: o.X + float64(m.cfg.Columns)*m.cfg.CellSize,
		MaxZ: o.Z + float64(m.cfg.Rows)*m.cfg.CellSize,
	}
}

func (m *CellMatrix) CellAt(x, z int) *Cell {
	if x < 0 || z < 0 || x >= m.cfg.Columns || z >= m.cfg.Rows {
		return nil
	}
	return &m.cells[x+z*m.cfg.Columns]
}

func (m *CellMatrix) indexOf(pos Vector3) (int, int) {
	x := int(math.Floor((pos.X - m.cfg.Origin.X) / m.cfg.CellSize))
	z := int(math.Floor((pos.Z - m.cfg.Origin.Z) / m.cfg.CellSize))
	return x, z
}

// GetCell 世界坐标取格子, 越界返回 nil.
func (m *CellMatrix) GetCell(pos Vector3) *Cell {
	x, z := m.indexOf(pos)
	return m.CellAt(x, z)
}

// GetCellClamped never returns nil.
func (m *CellMatrix) GetCellClamped(pos Vector3) *Cell {
	x, z := m.indexOf(pos)
	x = min(max(x, 0), m.cfg.Columns-1)
	z = min(max(z, 0), m.cfg.Rows-1)
	return &m.cells[x+z*m.cfg.Columns]
}

// BoundsOf converts a world rectangle to the clamped matrix rectangle it touches.
func (m *CellMatrix) BoundsOf(b Bounds) MatrixBounds {
	minX, minZ := m.indexOf(Vector3{X: b.MinX, Z: b.MinZ})
	maxX := int(math.Ceil((b.MaxX-m.cfg.Origin.X)/m.cfg.CellSize)) - 1
	maxZ := int(math.Ceil((b.MaxZ-m.cfg.Origin.Z)/m.cfg.CellSize)) - 1
	return MatrixBounds{MinX: minX, MinZ: minZ, MaxX: max(maxX, minX), MaxZ: max(maxZ, minZ)}.
		Clamp(m.cfg.Columns, m.cfg.Rows)
}

// CellsIn calls f for every cell inside b (clamped).
func (m *CellMatrix) CellsIn(b MatrixBounds, f func(c *Cell)) {
	b = b.Clamp(m.cfg.Columns, m.cfg.Rows)
	for z := b.MinZ; z <= b.MaxZ; z++ {
		for x := b.MinX; x <= b.MaxX; x++ {
			f(&m.cells[x+z*m.cfg.Columns])
		}
	}
}

// SampleHeight 先查高度图, 没有则回落到采样器.
func (m *CellMatrix) SampleHeight(x, z float64) float64 {
	if h, ok := m.heights.Sample(x, z); ok {
		return h
	}
	if m.src.Heights != nil {
		return m.src.Heights.SampleHeight(Vector3{X: x, Z: z})
	}
	return m.cfg.Origin.Y
}

func (m *CellMatrix) Shortcuts() []*Portal { return m.shortcuts }

func (m *CellMatrix) registerShortcut(p *Portal) {
	if !slices.Contains(m.shortcuts, p) {
		m.shortcuts = append(m.shortcuts, p)
	}
}

func (m *CellMatrix) unregisterShortcut(p *Portal) {
	if i := slices.Index(m.shortcuts, p); i >= 0 {
		m.shortcuts = slices.Delete(m.shortcuts, i, i+1)
	}
}

// UpdateRegion 重新采样区域内高度、阻挡, 并重算所有与区域相邻的格子对的坡度阻挡.
// 高度采样失败时区域保持原样.
func (m *CellMatrix) UpdateRegion(b MatrixBounds) error {
	b = b.Clamp(m.cfg.Columns, m.cfg.Rows)
	if b.Empty() {
		return nil
	}
	cs := m.cfg.CellSize
	o := m.cfg.Origin

	if m.src.Heights != nil {
		outer := b.Expand(1).Clamp(m.cfg.Columns, m.cfg.Rows)
		area := Bounds{
			MinX: o.X + float64(outer.MinX)*cs,
			MinZ: o.Z + float64(outer.MinZ)*cs,
			MaxX: o.X + float64(outer.MaxX+1)*cs,
			MaxZ: o.Z + float64(outer.MaxZ+1)*cs,
		}
		if err := m.heights.Populate(area, m.src.Heights); err != nil {
			return fmt.Errorf("update region %v: %w", b, err)
		}
		m.CellsIn(b, func(c *Cell) {
			c.position.Y = m.SampleHeight(c.position.X, c.position.Z)
		})
	}
	if m.src.Obstruction != nil {
		m.CellsIn(b, func(c *Cell) {
			c.blocked = m.src.Obstruction.IsBlocked(c.position, m.cfg.ObstructionRadius)
		})
	}
	m.updateSlopes(b)
	return nil
}

func (m *CellMatrix) updateSlopes(b MatrixBounds) {
	if m.src.Heights == nil && m.heights.Len() == 0 {
		return
	}

	tan := math.Tan(m.cfg.MaxSlopeAngle * math.Pi / 180)
	straight := tan * m.cfg.HeightGranularity
	diagonal := straight * math.Sqrt2

	// 区域外扩一格, 覆盖区域外四个角上的对角格子对.
	m.CellsIn(b.Expand(1), func(c *Cell) {
		for _, d := range forwardDirs {
			n := c.Neighbour(d)
			if n == nil {
				continue
			}
			if !b.Contains(c.x, c.z) && !b.Contains(n.x, n.z) {
				continue
			}
			c.heightBlocked &^= d.bit()
			n.heightBlocked &^= d.Opposite().bit()
			c.slopeBlocks &^= d.bit()

			threshold := straight
			if d.IsDiagonal() {
				threshold = diagonal
			}
			m.evaluateSlope(c, n, d, threshold)
		}
	})
}

// evaluateSlope 沿两格中心连线按高度图精度采样, 累计超过阈值的单步高差.
func (m *CellMatrix) evaluateSlope(c, n *Cell, d Dir, threshold float64) {
	g := m.cfg.HeightGranularity
	steps := int(math.Round(m.cfg.CellSize / g))
	stepX, stepZ := float64(d.DX())*g, float64(d.DZ())*g

	prev := m.SampleHeight(c.position.X, c.position.Z)
	var acc float64
	for i := 1; i <= steps; i++ {
		px := c.position.X + stepX*float64(i)
		pz := c.position.Z + stepZ*float64(i)
		h := m.SampleHeight(px, pz)
		if delta := math.Abs(h - prev); delta > threshold {
			acc += delta
		}
		prev = h
		if acc <= m.cfg.MaxScaleHeight {
			continue
		}
		dx, dz := px-c.position.X, pz-c.position.Z
		if math.Sqrt(dx*dx+dz*dz) <= m.cfg.ObstacleSensitivityRange {
			c.slopeBlocks |= d.bit()
			return
		}
		c.heightBlocked |= d.bit()
		n.heightBlocked |= d.Opposite().bit()
		return
	}
}
