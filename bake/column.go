package bake

import (
	"sort"

	"gridnav/gridmap"
)

const (
	// HeightScale 柱列高度单位换算: 真实高度 = value / HeightScale.
	HeightScale = 20

	DefaultStepUp   = 1 * HeightScale // 允许上台阶 ≤ 1.0m
	DefaultHeadroom = 36              // 1.8m 抬头空间
)

type Material uint32

type MaterialMask uint64

func (m MaterialMask) Has(t Material) bool { return (m & (1 << (uint64(t) & 63))) != 0 }

// Span 阻挡高度区间 [Begin, End), 单位 1/HeightScale 米.
type Span struct {
	Begin, End uint16
	Material   Material
}

// Column 某个 x,z 位置的所有阻挡区间.
type Column struct {
	spans []Span
}

// NewColumn copies spans and normalizes them.
func NewColumn(spans ...Span) *Column {
	c := &Column{spans: append([]Span(nil), spans...)}
	c.Normalize()
	return c
}

func (c *Column) Spans() []Span { return c.spans }

// Normalize 排序并归并, 得到按上表面有序且同材质不重叠的阻挡段.
func (c *Column) Normalize() {
	if len(c.spans) <= 1 {
		return
	}
	sort.SliceStable(c.spans, func(i, j int) bool {
		if c.spans[i].End == c.spans[j].End {
			return c.spans[i].Begin < c.spans[j].Begin
		}
		return c.spans[i].End < c.spans[j].End
	})
	merged := c.spans[:0]
	for _, s := range c.spans {
		n := len(merged)
		if n == 0 {
			merged = append(merged, s)
			continue
		}
		last := &merged[n-1]
		// 同材质、相交或首尾相接
		if last.Material == s.Material && s.Begin <= last.End {
			last.End = max(last.End, s.End)
			last.Begin = min(last.Begin, s.Begin)
			continue
		}
		merged = append(merged, s)
	}
	c.spans = merged
}

// SupportRule 站立规则. IgnoreHeadroom 中的材质只在判断抬头空间时忽略, 承重不忽略.
type SupportRule struct {
	StepUp         uint16
	Headroom       uint16
	IgnoreHeadroom MaterialMask
}

func DefaultSupportRule() SupportRule {
	return SupportRule{StepUp: DefaultStepUp, Headroom: DefaultHeadroom}
}

// Support 在当前高度 h 下寻找可站立的上表面. 先尝试上台阶, 再取下方最高的面.
func (c *Column) Support(h uint16, rule SupportRule) (uint16, bool) {
	if len(c.spans) == 0 {
		return 0, false
	}
	upper := uint32(h) + uint32(rule.StepUp)
	idx := sort.Search(len(c.spans), func(i int) bool {
		return uint32(c.spans[i].End) > upper
	})
	// [0, idx) 的上表面都不高于 upper
	for i := idx - 1; i >= 0; i-- {
		e := c.spans[i].End
		if e < h {
			break
		}
		if c.hasHeadroomAbove(i, e, rule) {
			return e, true
		}
	}

	idx = sort.Search(len(c.spans), func(i int) bool {
		return c.spans[i].End >= h
	})
	for i := idx - 1; i >= 0; i-- {
		e := c.spans[i].End
		if c.hasHeadroomAbove(i, e, rule) {
			return e, true
		}
	}
	return 0, false
}

// hasHeadroomAbove 第 i 段之上第一个不被忽略的阻挡段与 end 的距离不小于 Headroom.
// 上方没有阻挡视为无限空间.
func (c *Column) hasHeadroomAbove(i int, end uint16, rule SupportRule) bool {
	for j := i + 1; j < len(c.spans); j++ {
		if rule.IgnoreHeadroom.Has(c.spans[j].Material) {
			continue
		}
		return int32(c.spans[j].Begin)-int32(end) >= int32(rule.Headroom)
	}
	return true
}

func (c *Column) equal(o *Column) bool {
	if len(c.spans) != len(o.spans) {
		return false
	}
	for i := range c.spans {
		if c.spans[i] != o.spans[i] {
			return false
		}
	}
	return true
}

type columnKey struct{ x, z int32 }

// ColumnMap 规则网格上的柱列, 同时作为高度源和阻挡源.
// 高度取以 Reference 为当前高度时的支撑面; 有阻挡却没有支撑面的柱列视为阻挡.
// 没有设置柱列的位置高度为 origin.Y 且不阻挡.
type ColumnMap struct {
	origin    gridmap.Vector3
	spacing   float64
	rule      SupportRule
	reference uint16

	store *columnStore
	cells map[columnKey]ColumnID
}

var (
	_ gridmap.HeightSampler = (*ColumnMap)(nil)
	_ gridmap.Obstruction   = (*ColumnMap)(nil)
)

func NewColumnMap(origin gridmap.Vector3, spacing float64, rule SupportRule, reference uint16) *ColumnMap {
	if spacing <= 0 {
		spacing = 1
	}
	return &ColumnMap{
		origin:    origin,
		spacing:   spacing,
		rule:      rule,
		reference: reference,
		store:     newColumnStore(),
		cells:     make(map[columnKey]ColumnID),
	}
}

// Set 设置 x,z 处的柱列, 相同的柱列只保存一份.
func (m *ColumnMap) Set(x, z int, col *Column) ColumnID {
	id := m.store.Intern(col)
	m.cells[columnKey{int32(x), int32(z)}] = id
	return id
}

func (m *ColumnMap) Len() int { return len(m.cells) }

// Unique returns how many distinct columns are stored.
func (m *ColumnMap) Unique() int { return m.store.Len() }

func (m *ColumnMap) columnAt(pos gridmap.Vector3) *Column {
	x := int32(floorDiv(pos.X-m.origin.X, m.spacing))
	z := int32(floorDiv(pos.Z-m.origin.Z, m.spacing))
	id, ok := m.cells[columnKey{x, z}]
	if !ok {
		return nil
	}
	return m.store.Get(id)
}

func (m *ColumnMap) SampleHeight(pos gridmap.Vector3) float64 {
	col := m.columnAt(pos)
	if col == nil {
		return m.origin.Y
	}
	top, ok := col.Support(m.reference, m.rule)
	if !ok {
		return m.origin.Y
	}
	return m.origin.Y + float64(top)/HeightScale
}

func (m *ColumnMap) IsBlocked(pos gridmap.Vector3, _ float64) bool {
	col := m.columnAt(pos)
	if col == nil || len(col.spans) == 0 {
		return false
	}
	_, ok := col.Support(m.reference, m.rule)
	return !ok
}

// AnyOf 任一来源阻挡即阻挡, nil 项被忽略.
type AnyOf []gridmap.Obstruction

func (a AnyOf) IsBlocked(pos gridmap.Vector3, radius float64) bool {
	for _, o := range a {
		if o != nil && o.IsBlocked(pos, radius) {
			return true
		}
	}
	return false
}
