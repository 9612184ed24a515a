// Package portalaction holds the PortalAction implementations a host can
// attach to portals: instant teleports, tweened moves and scripted actions.
package portalaction

import (
	"gridnav/gridmap"
)

// point adapts a bare position to gridmap.Positioned.
type point gridmap.Vector3

func (p point) Position() gridmap.Vector3 { return gridmap.Vector3(p) }

// At wraps pos as a gridmap.Positioned.
func At(pos gridmap.Vector3) gridmap.Positioned { return point(pos) }

// Teleport 瞬移到另一端, 代价固定.
type Teleport struct {
	// Cost 以基础移动代价为单位.
	Cost int
}

func (t Teleport) Execute(agent gridmap.Transform, _ *gridmap.Cell, to gridmap.Positioned, onComplete func()) {
	agent.SetPosition(to.Position())
	if onComplete != nil {
		onComplete()
	}
}

func (t Teleport) ActionCost(_, _ gridmap.Vector3) int { return max(t.Cost, 0) }
