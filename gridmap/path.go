package gridmap

import "slices"

// Path 路径点栈. 构建时从终点往起点 Push, 使用时从起点 Pop.
type Path struct {
	points []Vector3 // points[len-1] 为栈顶
}

func NewPath(points ...Vector3) *Path {
	p := &Path{points: make([]Vector3, 0, len(points))}
	for i := len(points) - 1; i >= 0; i-- {
		p.points = append(p.points, points[i])
	}
	return p
}

func (p *Path) Push(v Vector3) { p.points = append(p.points, v) }

func (p *Path) Len() int { return len(p.points) }

// Pop 取出栈顶(最靠近起点的点).
func (p *Path) Pop() (Vector3, bool) {
	n := len(p.points)
	if n == 0 {
		return Vector3{}, false
	}
	v := p.points[n-1]
	p.points = p.points[:n-1]
	return v, true
}

func (p *Path) Peek() (Vector3, bool) {
	if len(p.points) == 0 {
		return Vector3{}, false
	}
	return p.points[len(p.points)-1], true
}

// PeekNext 栈顶之后的一个点.
func (p *Path) PeekNext() (Vector3, bool) {
	if len(p.points) < 2 {
		return Vector3{}, false
	}
	return p.points[len(p.points)-2], true
}

// Last 路径终点.
func (p *Path) Last() (Vector3, bool) {
	if len(p.points) == 0 {
		return Vector3{}, false
	}
	return p.points[0], true
}

// Points 从起点到终点的副本.
func (p *Path) Points() []Vector3 {
	out := slices.Clone(p.points)
	slices.Reverse(out)
	return out
}

// Length XZ 平面上的折线长度.
func (p *Path) Length() float64 {
	var l float64
	for i := 1; i < len(p.points); i++ {
		l += p.points[i].DistXZ(p.points[i-1])
	}
	return l
}
