package pathing

import (
	"math"

	"gridnav/gridmap"
)

var (
	fixupStraight = [4]gridmap.Dir{gridmap.N, gridmap.E, gridmap.S, gridmap.W}
	fixupDiagonal = [4]gridmap.Dir{gridmap.NE, gridmap.SE, gridmap.SW, gridmap.NW}
)

// fixupGoal 请求者半径会压到不可走的邻格时, 把终点往格子内部挪.
// 先处理直行方向, 再处理斜向; 某一轴已经挪过就不再因斜向邻格挪动.
func fixupGoal(c *gridmap.Cell, dest gridmap.Vector3, radius float64, mask gridmap.AttributeMask) gridmap.Vector3 {
	if radius <= 0 {
		return dest
	}
	half := c.Matrix().CellSize() / 2
	r := math.Min(radius, half)
	centre := c.Position()
	var movedX, movedZ bool

	for _, d := range fixupStraight {
		if !blockedFrom(c, d, mask) {
			continue
		}
		if dx := float64(d.DX()); dx != 0 {
			edge := centre.X + dx*half
			if math.Abs(edge-dest.X) < r {
				dest.X = edge - dx*r
				movedX = true
			}
		} else {
			dz := float64(d.DZ())
			edge := centre.Z + dz*half
			if math.Abs(edge-dest.Z) < r {
				dest.Z = edge - dz*r
				movedZ = true
			}
		}
	}

	for _, d := range fixupDiagonal {
		if movedX && movedZ {
			break
		}
		if !blockedFrom(c, d, mask) {
			continue
		}
		dx, dz := float64(d.DX()), float64(d.DZ())
		cx, cz := centre.X+dx*half, centre.Z+dz*half
		if math.Abs(cx-dest.X) >= r || math.Abs(cz-dest.Z) >= r {
			continue
		}
		if !movedX {
			dest.X = cx - dx*r
			movedX = true
		}
		if !movedZ {
			dest.Z = cz - dz*r
			movedZ = true
		}
	}
	return dest
}

// blockedFrom 邻格存在且从 c 过去不可走. 不存在的邻格不算阻挡.
func blockedFrom(c *gridmap.Cell, d gridmap.Dir, mask gridmap.AttributeMask) bool {
	n := c.Neighbour(d)
	return n != nil && !n.IsWalkableFrom(c, mask)
}
