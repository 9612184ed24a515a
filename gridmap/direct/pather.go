// Package direct resolves requests that can be answered without a graph
// search: endpoints off every grid, a blocked origin, a blocked destination
// and routes that have to enter or leave a grid through its perimeter.
package direct

import (
	"slices"

	"github.com/sirupsen/logrus"

	"gridnav/gridmap"
)

const outsideEpsilon = 1e-6

// Pather 在搜索之前处理请求. 完成的请求返回 nil; 需要搜索的请求原地修改后返回.
type Pather struct {
	manager *gridmap.Manager
	log     logrus.FieldLogger
}

func New(manager *gridmap.Manager, log logrus.FieldLogger) *Pather {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pather{manager: manager, log: log.WithField("component", "direct")}
}

func (p *Pather) Resolve(req *gridmap.PathRequest) *gridmap.PathRequest {
	if p.manager != nil {
		p.manager.InjectGrids(req)
	}
	mask := req.Attributes()

	if req.FromGrid == nil && req.ToGrid == nil {
		if req.PreventOffGridNavigation {
			return p.fail(req, gridmap.StatusNoRouteExists, "both endpoints off grid")
		}
		return p.complete(req, "both endpoints off grid", nil, req.From, req.To)
	}

	fromCell := cellOf(req.FromGrid, req.From)
	toCell := cellOf(req.ToGrid, req.To)

	if fromCell != nil && !fromCell.IsWalkable(mask) {
		escape := escapeCell(fromCell, req.From, req.MaxEscapeCellDistanceIfOriginBlocked, mask)
		if escape == nil {
			return p.fail(req, gridmap.StatusNoRouteExists, "origin blocked, no escape")
		}
		return p.complete(req, "origin blocked, escaping", prepend(req.PendingWaypoints, req.To), req.From, escape.Position())
	}

	if toCell != nil && !toCell.IsWalkable(mask) && !req.NavigatesToNearest() {
		return p.fail(req, gridmap.StatusDestinationBlocked, "destination blocked")
	}

	if fromCell != nil && toCell != nil {
		if req.FromGrid == req.ToGrid || req.PreventOffGridNavigation ||
			(p.manager != nil && p.manager.PortalExists(req.FromGrid, req.ToGrid, mask)) {
			return req
		}
	}

	if req.PreventOffGridNavigation {
		return p.fail(req, gridmap.StatusNoRouteExists, "off-grid navigation prevented")
	}
	return p.routeOffGrid(req, fromCell, toCell, mask)
}

// routeOffGrid 至少一个端点在网格外, 或两个网格之间没有传送门.
func (p *Pather) routeOffGrid(req *gridmap.PathRequest, fromCell, toCell *gridmap.Cell, mask gridmap.AttributeMask) *gridmap.PathRequest {
	g := req.FromGrid
	if g == nil {
		g = req.ToGrid
	}
	exiting := fromCell != nil

	crossings := g.CrossedPerimeters(req.From, req.To)
	if len(crossings) == 0 {
		return p.complete(req, "no perimeter crossed", nil, req.From, req.To)
	}

	best, ok := p.bestEntry(g, crossings, req, mask)
	if !ok {
		if !exiting && toCell == nil {
			corner := nearestCorner(crossings, req.To)
			return p.complete(req, "crossing unwalkable, routing around corner", prepend(req.PendingWaypoints, req.To), req.From, corner)
		}
		best, ok = p.fallbackEntry(g, crossings[0], req, mask)
		if !ok {
			return p.fail(req, gridmap.StatusNoRouteExists, "no walkable perimeter cell")
		}
	}

	outside := g.OutsidePoint(best.perimeter, best.cell)
	if exiting {
		if best.cell == fromCell {
			var pending []gridmap.Vector3
			if !req.To.ApproxEqual(outside, outsideEpsilon) {
				pending = prepend(req.PendingWaypoints, req.To)
			}
			return p.complete(req, "leaving grid", pending, req.From, outside)
		}
		pending := make([]gridmap.Vector3, 0, len(req.PendingWaypoints)+2)
		pending = append(pending, outside, req.To)
		req.PendingWaypoints = append(pending, req.PendingWaypoints...)
		req.To = best.cell.Position()
		req.ToGrid = req.FromGrid
		req.Type = gridmap.RequestPathboundWaypoint
		p.log.WithFields(logrus.Fields{
			"request":   req.String(),
			"grid":      g.Name(),
			"perimeter": best.perimeter.Side.String(),
		}).Debug("reissued to exit cell")
		return req
	}

	pending := prepend(req.PendingWaypoints, req.To)
	if req.From.ApproxEqual(outside, outsideEpsilon) {
		return p.complete(req, "entering grid", pending, req.From, best.cell.Position())
	}
	return p.complete(req, "entering grid", pending, req.From, outside, best.cell.Position())
}

type entry struct {
	perimeter *gridmap.Perimeter
	cell      *gridmap.Cell
}

// score (from->cell)² + (to->cell)².
func score(req *gridmap.PathRequest, c *gridmap.Cell) float64 {
	pos := c.Position()
	return req.From.SqrDistXZ(pos) + req.To.SqrDistXZ(pos)
}

func (p *Pather) bestEntry(g *gridmap.Grid, crossings []gridmap.Crossing, req *gridmap.PathRequest, mask gridmap.AttributeMask) (entry, bool) {
	var (
		best      entry
		found     bool
		bestScore float64
	)
	for _, c := range crossings {
		cell := g.GetNearestWalkablePerimeterCell(c.Perimeter, c.Point, mask, true)
		if cell == nil {
			continue
		}
		if s := score(req, cell); !found || s < bestScore {
			best, bestScore, found = entry{perimeter: c.Perimeter, cell: cell}, s, true
		}
	}
	return best, found
}

// fallbackEntry 先试被穿过那条边的两条垂直边, 再试它的对边.
func (p *Pather) fallbackEntry(g *gridmap.Grid, primary gridmap.Crossing, req *gridmap.PathRequest, mask gridmap.AttributeMask) (entry, bool) {
	per := primary.Perimeter
	var (
		best      entry
		found     bool
		bestScore float64
	)
	for _, side := range [2]*gridmap.Perimeter{per.PerpendicularOne, per.PerpendicularTwo} {
		cell := g.GetNearestWalkablePerimeterCell(side, primary.Point, mask, true)
		if cell == nil {
			continue
		}
		if s := score(req, cell); !found || s < bestScore {
			best, bestScore, found = entry{perimeter: side, cell: cell}, s, true
		}
	}
	if found {
		return best, true
	}
	if cell := g.GetNearestWalkablePerimeterCell(per.Opposite, primary.Point, mask, true); cell != nil {
		return entry{perimeter: per.Opposite, cell: cell}, true
	}
	return entry{}, false
}

func nearestCorner(crossings []gridmap.Crossing, to gridmap.Vector3) gridmap.Vector3 {
	var best gridmap.Vector3
	bestDist := -1.0
	for _, c := range crossings {
		corner := c.Perimeter.NearestOutsideCorner(to)
		if d := corner.SqrDistXZ(to); bestDist < 0 || d < bestDist {
			best, bestDist = corner, d
		}
	}
	return best
}

// escapeCell 按环向外搜索, 取最近一环里离 from 最近的可走格子.
func escapeCell(origin *gridmap.Cell, from gridmap.Vector3, maxDist int, mask gridmap.AttributeMask) *gridmap.Cell {
	m := origin.Matrix()
	ox, oz := origin.X(), origin.Z()
	for d := 1; d <= maxDist; d++ {
		var (
			best     *gridmap.Cell
			bestDist float64
		)
		ring := gridmap.MatrixBounds{MinX: ox - d, MinZ: oz - d, MaxX: ox + d, MaxZ: oz + d}
		m.CellsIn(ring, func(c *gridmap.Cell) {
			if max(abs(c.X()-ox), abs(c.Z()-oz)) != d {
				return
			}
			// 第一环要能从起点所在格子直接走进去.
			if (d == 1 && !c.IsWalkableFrom(origin, mask)) || (d > 1 && !c.IsWalkable(mask)) {
				return
			}
			if dist := c.Position().SqrDistXZ(from); best == nil || dist < bestDist {
				best, bestDist = c, dist
			}
		})
		if best != nil {
			return best
		}
		// 整个矩阵都已搜过.
		if ring.MinX <= 0 && ring.MinZ <= 0 && ring.MaxX >= m.Columns()-1 && ring.MaxZ >= m.Rows()-1 {
			break
		}
	}
	return nil
}

func cellOf(g *gridmap.Grid, pos gridmap.Vector3) *gridmap.Cell {
	if g == nil {
		return nil
	}
	return g.GetCell(pos)
}

func prepend(pending []gridmap.Vector3, v gridmap.Vector3) []gridmap.Vector3 {
	return slices.Insert(slices.Clone(pending), 0, v)
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

func (p *Pather) complete(req *gridmap.PathRequest, reason string, pending []gridmap.Vector3, points ...gridmap.Vector3) *gridmap.PathRequest {
	p.log.WithFields(logrus.Fields{
		"request": req.String(),
		"reason":  reason,
		"points":  len(points),
	}).Debug("completed without search")
	if pending == nil {
		pending = slices.Clone(req.PendingWaypoints)
	}
	req.Complete(&gridmap.PathResult{
		Status:           gridmap.StatusComplete,
		Path:             gridmap.NewPath(points...),
		PendingWaypoints: pending,
		Request:          req,
	})
	return nil
}

func (p *Pather) fail(req *gridmap.PathRequest, status gridmap.PathStatus, reason string) *gridmap.PathRequest {
	p.log.WithFields(logrus.Fields{
		"request": req.String(),
		"status":  status.String(),
		"reason":  reason,
	}).Debug("rejected without search")
	req.Complete(&gridmap.PathResult{
		Status:  status,
		Path:    gridmap.NewPath(),
		Request: req,
	})
	return nil
}
