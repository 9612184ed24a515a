// Package bake provides the obstruction and height sources used when baking
// cell matrices.
package bake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jakecoffman/cp"

	"gridnav/gridmap"
)

var (
	ErrDuplicateShape = errors.New("bake: duplicate shape name")
	ErrBadShape       = errors.New("bake: degenerate shape")
)

// Space 静态碰撞体集合, 世界 XZ 平面映射到 cp 的 XY.
type Space struct {
	mu     sync.Mutex
	space  *cp.Space
	shapes map[string][]*cp.Shape
}

var _ gridmap.Obstruction = (*Space)(nil)

func NewSpace() *Space {
	return &Space{
		space:  cp.NewSpace(),
		shapes: make(map[string][]*cp.Shape),
	}
}

func toCP(v gridmap.Vector3) cp.Vector { return cp.Vector{X: v.X, Y: v.Z} }

func (s *Space) add(name string, shapes ...*cp.Shape) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shapes[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateShape, name)
	}
	for _, shape := range shapes {
		s.space.AddShape(shape)
	}
	s.shapes[name] = shapes
	return nil
}

// AddBox adds an axis aligned box covering area.
func (s *Space) AddBox(name string, area gridmap.Bounds) error {
	if area.Width() <= 0 || area.Depth() <= 0 {
		return fmt.Errorf("box %q %v: %w", name, area, ErrBadShape)
	}
	bb := cp.BB{L: area.MinX, B: area.MinZ, R: area.MaxX, T: area.MaxZ}
	return s.add(name, cp.NewBox2(s.space.StaticBody, bb, 0))
}

func (s *Space) AddCircle(name string, center gridmap.Vector3, radius float64) error {
	if radius <= 0 {
		return fmt.Errorf("circle %q radius %.2f: %w", name, radius, ErrBadShape)
	}
	return s.add(name, cp.NewCircle(s.space.StaticBody, radius, toCP(center)))
}

// AddWall adds a polyline of segments with the given half thickness.
func (s *Space) AddWall(name string, thickness float64, points ...gridmap.Vector3) error {
	if len(points) < 2 || thickness <= 0 {
		return fmt.Errorf("wall %q: %w", name, ErrBadShape)
	}
	shapes := make([]*cp.Shape, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		shapes = append(shapes, cp.NewSegment(s.space.StaticBody, toCP(points[i-1]), toCP(points[i]), thickness))
	}
	return s.add(name, shapes...)
}

// Remove 删除名为 name 的形状, 不存在时返回 false.
func (s *Space) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	shapes, ok := s.shapes[name]
	if !ok {
		return false
	}
	for _, shape := range shapes {
		s.space.RemoveShape(shape)
	}
	delete(s.shapes, name)
	return true
}

func (s *Space) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shapes)
}

// IsBlocked reports whether any shape comes strictly closer than radius to pos.
func (s *Space) IsBlocked(pos gridmap.Vector3, radius float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.space.PointQueryNearest(toCP(pos), radius, cp.SHAPE_FILTER_ALL)
	return info.Shape != nil
}
