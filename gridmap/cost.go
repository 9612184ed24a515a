package gridmap

import "math"

const DefaultBaseMoveCost = 10

// MoveCostProvider 寻路代价和启发函数. A* 的最优性要求启发函数可采纳且一致, 引擎不做检查.
type MoveCostProvider interface {
	MoveCost(from, to Node) int
	Heuristic(from, to Node) int
	BaseMoveCost() int
}

// cellDelta 以 from 所在矩阵的格子为单位的 |dx|, |dz|.
func cellDelta(from, to Node) (float64, float64) {
	cs := 1.0
	if m := from.Matrix(); m != nil {
		cs = m.CellSize()
	}
	a, b := from.Position(), to.Position()
	return math.Abs(b.X-a.X) / cs, math.Abs(b.Z-a.Z) / cs
}

func extraCost(to Node) int {
	if c, ok := to.(*Cell); ok {
		return c.cost
	}
	return 0
}

func baseOr(base int) int {
	if base <= 0 {
		return DefaultBaseMoveCost
	}
	return base
}

// DiagonalDistance 八方向(octile)距离, 直行 base, 斜行 base*√2.
type DiagonalDistance struct{ Base int }

func (d DiagonalDistance) BaseMoveCost() int { return baseOr(d.Base) }

func (d DiagonalDistance) octile(from, to Node) float64 {
	dx, dz := cellDelta(from, to)
	lo, hi := math.Min(dx, dz), math.Max(dx, dz)
	base := float64(d.BaseMoveCost())
	return base*(hi-lo) + math.Round(base*math.Sqrt2)*lo
}

func (d DiagonalDistance) MoveCost(from, to Node) int {
	return int(math.Round(d.octile(from, to))) + extraCost(to)
}

func (d DiagonalDistance) Heuristic(from, to Node) int {
	return int(d.octile(from, to))
}

type EuclideanDistance struct{ Base int }

func (e EuclideanDistance) BaseMoveCost() int { return baseOr(e.Base) }

func (e EuclideanDistance) dist(from, to Node) float64 {
	dx, dz := cellDelta(from, to)
	return float64(e.BaseMoveCost()) * math.Hypot(dx, dz)
}

func (e EuclideanDistance) MoveCost(from, to Node) int {
	return int(math.Round(e.dist(from, to))) + extraCost(to)
}

func (e EuclideanDistance) Heuristic(from, to Node) int { return int(e.dist(from, to)) }

// ManhattanDistance 不可采纳于八方向移动, 适合配合 PreventDiagonalMoves.
type ManhattanDistance struct{ Base int }

func (m ManhattanDistance) BaseMoveCost() int { return baseOr(m.Base) }

func (m ManhattanDistance) dist(from, to Node) float64 {
	dx, dz := cellDelta(from, to)
	return float64(m.BaseMoveCost()) * (dx + dz)
}

func (m ManhattanDistance) MoveCost(from, to Node) int {
	return int(math.Round(m.dist(from, to))) + extraCost(to)
}

func (m ManhattanDistance) Heuristic(from, to Node) int { return int(m.dist(from, to)) }

// CardinalDistance 切比雪夫距离, 斜行与直行同价.
type CardinalDistance struct{ Base int }

func (c CardinalDistance) BaseMoveCost() int { return baseOr(c.Base) }

func (c CardinalDistance) dist(from, to Node) float64 {
	dx, dz := cellDelta(from, to)
	return float64(c.BaseMoveCost()) * math.Max(dx, dz)
}

func (c CardinalDistance) MoveCost(from, to Node) int {
	return int(math.Round(c.dist(from, to))) + extraCost(to)
}

func (c CardinalDistance) Heuristic(from, to Node) int { return int(c.dist(from, to)) }
