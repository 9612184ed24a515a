package gridmap

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrDuplicateGrid   = errors.New("gridmap: grid already registered")
	ErrUnknownGrid     = errors.New("gridmap: unknown grid")
	ErrDuplicatePortal = errors.New("gridmap: portal already registered")
	ErrUnknownPortal   = errors.New("gridmap: unknown portal")
)

// Manager 网格和传送门的注册表. 由调用方创建并注入, 不是全局单例.
type Manager struct {
	mu      sync.RWMutex
	grids   []*Grid
	byName  map[string]*Grid
	portals map[string]*Portal
}

func NewManager() *Manager {
	return &Manager{
		byName:  make(map[string]*Grid),
		portals: make(map[string]*Portal),
	}
}

func (m *Manager) RegisterGrid(g *Grid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[g.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateGrid, g.name)
	}
	m.grids = append(m.grids, g)
	m.byName[g.name] = g
	return nil
}

// UnregisterGrid also disables and drops every portal touching the grid.
func (m *Manager) UnregisterGrid(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGrid, name)
	}
	delete(m.byName, name)
	m.grids = slices.DeleteFunc(m.grids, func(o *Grid) bool { return o == g })
	for pn, p := range m.portals {
		if p.one.grid == g || p.two.grid == g {
			p.Disable()
			delete(m.portals, pn)
		}
	}
	return nil
}

func (m *Manager) Grids() []*Grid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.grids)
}

func (m *Manager) GridByName(name string) *Grid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byName[name]
}

// GridAt 返回包含 pos 的第一个网格(按注册顺序).
func (m *Manager) GridAt(pos Vector3) *Grid {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gridAtLocked(pos)
}

func (m *Manager) gridAtLocked(pos Vector3) *Grid {
	for _, g := range m.grids {
		if g.Contains(pos) {
			return g
		}
	}
	return nil
}

// InjectGrids 为请求填充 FromGrid/ToGrid.
// 起点不在任何网格内时, 取线段 from->to 最先穿过其包围盒对角线的网格;
// 都没穿过则退回 ToGrid.
func (m *Manager) InjectGrids(req *PathRequest) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if req.FromGrid == nil {
		req.FromGrid = m.gridAtLocked(req.From)
	}
	if req.ToGrid == nil {
		req.ToGrid = m.gridAtLocked(req.To)
	}
	if req.FromGrid != nil {
		return
	}

	best, bestT := (*Grid)(nil), 2.0
	for _, g := range m.grids {
		b := g.bounds
		diagonals := [2][2]Vector3{
			{{X: b.MinX, Z: b.MinZ}, {X: b.MaxX, Z: b.MaxZ}},
			{{X: b.MinX, Z: b.MaxZ}, {X: b.MaxX, Z: b.MinZ}},
		}
		for _, d := range diagonals {
			if t, ok := segmentIntersectXZ(req.From, req.To, d[0], d[1]); ok && t < bestT {
				best, bestT = g, t
			}
		}
	}
	if best == nil {
		best = req.ToGrid
	}
	req.FromGrid = best
}

func (m *Manager) RegisterPortal(p *Portal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.portals[p.name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePortal, p.name)
	}
	for _, pc := range [2]*PortalCell{p.one, p.two} {
		if m.byName[pc.grid.name] != pc.grid {
			return fmt.Errorf("portal %s: %w: %s", p.name, ErrUnknownGrid, pc.grid.name)
		}
	}
	m.portals[p.name] = p
	p.Enable()
	return nil
}

func (m *Manager) UnregisterPortal(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.portals[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPortal, name)
	}
	p.Disable()
	delete(m.portals, name)
	return nil
}

func (m *Manager) Portal(name string) *Portal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portals[name]
}

func (m *Manager) Portals() []*Portal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Portal, 0, len(m.portals))
	for _, p := range m.portals {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Portal) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})
	return out
}

// PortalExists 无序: a->b 与 b->a 等价. 只统计已启用且 mask 可用的门.
func (m *Manager) PortalExists(a, b *Grid, mask AttributeMask) bool {
	if a == nil || b == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.portals {
		if p.Connects(a, b) && p.IsUsableBy(mask) {
			return true
		}
	}
	return false
}
