package gridmap

import (
	"errors"
	"fmt"
	"sync"
)

type PortalType int8

const (
	// PortalShortcut 参与启发式估价, 可能在远离直线路线时也被考虑.
	PortalShortcut PortalType = iota
	// PortalConnector 只作为普通虚拟邻居.
	PortalConnector
)

func (t PortalType) String() string {
	switch t {
	case PortalShortcut:
		return "shortcut"
	case PortalConnector:
		return "connector"
	}
	return "unknown"
}

// Transform is the moving agent as seen by a portal action.
type Transform interface {
	Position() Vector3
	SetPosition(pos Vector3)
}

// PortalAction is run when an agent physically crosses a portal.
type PortalAction interface {
	Execute(agent Transform, from *Cell, to Positioned, onComplete func())
	ActionCost(from, to Vector3) int
}

var (
	ErrPortalNoAction = errors.New("gridmap: portal has no action")
	ErrPortalNoGrid   = errors.New("gridmap: portal endpoint has no grid")
	ErrPortalNoCells  = errors.New("gridmap: portal endpoint covers no cells")
)

type PortalConfig struct {
	Name               string
	Type               PortalType
	RequiredAttributes AttributeMask
	Action             PortalAction

	GridOne   *Grid
	BoundsOne Bounds
	GridTwo   *Grid
	BoundsTwo Bounds
}

// Portal 双向虚拟边, 两端各是一个 PortalCell.
type Portal struct {
	mu       sync.Mutex
	name     string
	typ      PortalType
	required AttributeMask
	action   PortalAction
	enabled  bool

	one, two *PortalCell
}

func NewPortal(cfg PortalConfig) (*Portal, error) {
	if cfg.Action == nil {
		return nil, fmt.Errorf("portal %q: %w", cfg.Name, ErrPortalNoAction)
	}
	p := &Portal{
		name:     cfg.Name,
		typ:      cfg.Type,
		required: cfg.RequiredAttributes,
		action:   cfg.Action,
	}
	var err error
	if p.one, err = newPortalCell(p, cfg.GridOne, cfg.BoundsOne); err != nil {
		return nil, fmt.Errorf("portal %q side one: %w", cfg.Name, err)
	}
	if p.two, err = newPortalCell(p, cfg.GridTwo, cfg.BoundsTwo); err != nil {
		return nil, fmt.Errorf("portal %q side two: %w", cfg.Name, err)
	}
	p.one.partner, p.two.partner = p.two, p.one
	return p, nil
}

func (p *Portal) Name() string                      { return p.name }
func (p *Portal) Type() PortalType                  { return p.typ }
func (p *Portal) Action() PortalAction              { return p.action }
func (p *Portal) RequiredAttributes() AttributeMask { return p.required }
func (p *Portal) One() *PortalCell                  { return p.one }
func (p *Portal) Two() *PortalCell                  { return p.two }

func (p *Portal) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Enable 在两端覆盖的格子上注册虚拟邻居, shortcut 还会注册到两端矩阵.
func (p *Portal) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return
	}
	p.enabled = true
	for _, pc := range [2]*PortalCell{p.one, p.two} {
		for _, c := range pc.cells {
			c.addVirtualNeighbour(pc)
		}
		if p.typ == PortalShortcut {
			pc.grid.matrix.registerShortcut(p)
		}
	}
}

func (p *Portal) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	p.enabled = false
	for _, pc := range [2]*PortalCell{p.one, p.two} {
		for _, c := range pc.cells {
			c.removeVirtualNeighbour(pc)
		}
		if p.typ == PortalShortcut {
			pc.grid.matrix.unregisterShortcut(p)
		}
	}
}

// IsUsableBy 无属性要求的门所有人可用, 否则请求者至少具备其中一个属性.
func (p *Portal) IsUsableBy(mask AttributeMask) bool {
	if !p.Enabled() {
		return false
	}
	return p.required == AttributesNone || p.required.Any(mask)
}

// Connects reports whether the portal links a and b, in either order.
func (p *Portal) Connects(a, b *Grid) bool {
	return (p.one.grid == a && p.two.grid == b) || (p.one.grid == b && p.two.grid == a)
}

// EndpointOn returns the endpoint sitting on g, or nil.
func (p *Portal) EndpointOn(g *Grid) *PortalCell {
	switch g {
	case p.one.grid:
		return p.one
	case p.two.grid:
		return p.two
	}
	return nil
}

func (p *Portal) String() string {
	return fmt.Sprintf("Portal[%s %s]", p.name, p.typ)
}
