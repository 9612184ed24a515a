package main

import (
	"time"

	"gridnav/gridmap"
	"gridnav/service"
)

// PathRequestMessage 客户端发来的寻路请求, HTTP 和 websocket 共用.
type PathRequestMessage struct {
	ID       string     `json:"id"`
	From     [3]float64 `json:"from"`
	To       [3]float64 `json:"to"`
	Priority int        `json:"priority"`

	Attributes uint32  `json:"attributes"`
	Radius     float64 `json:"radius"`

	Smooth                bool `json:"smooth"`
	AllowCornerCutting    bool `json:"allow_corner_cutting"`
	PreventDiagonalMoves  bool `json:"prevent_diagonal_moves"`
	PreventOffGrid        bool `json:"prevent_off_grid"`
	NavigateToNearest     bool `json:"navigate_to_nearest"`
	MaxEscapeCellDistance int  `json:"max_escape_cell_distance"`
	MaxAgeMillis          int  `json:"max_age_ms"`
	// FollowPending 服务端依次寻路到每个待定途经点, 只回一条拼接后的路径.
	FollowPending bool `json:"follow_pending"`
}

type PathResultMessage struct {
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	Path     [][3]float64 `json:"path"`
	Pending  [][3]float64 `json:"pending,omitempty"`
	Cost     int          `json:"cost"`
	Expanded int          `json:"expanded"`
	Elapsed  float64      `json:"elapsed_ms"`
}

type TraverseMessage struct {
	From [3]float64 `json:"from"`
}

type PositionMessage struct {
	Position [3]float64 `json:"position"`
}

type PortalStateMessage struct {
	Enabled bool `json:"enabled"`
}

type GridInfo struct {
	Name     string     `json:"name"`
	Min      [2]float64 `json:"min"`
	Max      [2]float64 `json:"max"`
	CellSize float64    `json:"cell_size"`
}

type PortalInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	One     string `json:"one"`
	Two     string `json:"two"`
}

type WorldInfo struct {
	Grids   []GridInfo   `json:"grids"`
	Portals []PortalInfo `json:"portals"`
	Pending int          `json:"pending"`
}

type ErrorMessage struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

func vec(a [3]float64) gridmap.Vector3 { return gridmap.Vec3(a[0], a[1], a[2]) }

func arr(v gridmap.Vector3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func arrs(vs []gridmap.Vector3) [][3]float64 {
	if vs == nil {
		return nil
	}
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		out[i] = arr(v)
	}
	return out
}

// requester 把结果交给 deliver, deliver 不能阻塞服务的工作者.
type requester struct {
	attributes gridmap.AttributeMask
	radius     float64
	deliver    func(*gridmap.PathResult)
}

func (r *requester) Attributes() gridmap.AttributeMask         { return r.attributes }
func (r *requester) Radius() float64                           { return r.radius }
func (r *requester) ConsumePathResult(res *gridmap.PathResult) { r.deliver(res) }

func (m PathRequestMessage) build(deliver func(*gridmap.PathResult)) *gridmap.PathRequest {
	req := gridmap.NewPathRequest(vec(m.From), vec(m.To), &requester{
		attributes: gridmap.AttributeMask(m.Attributes),
		radius:     m.Radius,
		deliver:    deliver,
	})
	req.UsePathSmoothing = m.Smooth
	req.AllowCornerCutting = m.AllowCornerCutting
	req.PreventDiagonalMoves = m.PreventDiagonalMoves
	req.PreventOffGridNavigation = m.PreventOffGrid
	req.NavigateToNearestIfBlocked = m.NavigateToNearest
	req.MaxEscapeCellDistanceIfOriginBlocked = m.MaxEscapeCellDistance
	if m.MaxAgeMillis > 0 {
		req.WithMaxAge(time.Duration(m.MaxAgeMillis) * time.Millisecond)
	}
	return req
}

func resultMessage(id string, res *gridmap.PathResult) PathResultMessage {
	msg := PathResultMessage{
		ID:       id,
		Status:   res.Status.String(),
		Path:     [][3]float64{},
		Pending:  arrs(res.PendingWaypoints),
		Cost:     res.Cost,
		Expanded: res.Expanded,
		Elapsed:  float64(res.Elapsed) / float64(time.Millisecond),
	}
	if res.Path != nil && res.Path.Len() > 0 {
		msg.Path = arrs(res.Path.Points())
	}
	return msg
}

// submit 构造并入队请求. FollowPending 时结果先经过 legFollower.
func (m PathRequestMessage) submit(svc *service.Service, deliver func(*gridmap.PathResult)) (*gridmap.PathRequest, error) {
	if m.FollowPending {
		f := &legFollower{
			queue:   func(req *gridmap.PathRequest) error { return svc.QueueRequest(req, m.Priority) },
			deliver: deliver,
		}
		deliver = f.consume
	}
	req := m.build(deliver)
	return req, svc.QueueRequest(req, m.Priority)
}

// legFollower 把每段结果的下一段重新入队, 全部走完 (或某段失败) 后交出拼接的结果.
// 同一条链的各段依次完成, consume 不会并发调用.
type legFollower struct {
	queue   func(*gridmap.PathRequest) error
	deliver func(*gridmap.PathResult)

	points   []gridmap.Vector3
	cost     int
	expanded int
	elapsed  time.Duration
}

func (f *legFollower) consume(res *gridmap.PathResult) {
	if res.Path != nil {
		for _, p := range res.Path.Points() {
			if n := len(f.points); n == 0 || f.points[n-1] != p {
				f.points = append(f.points, p)
			}
		}
	}
	f.cost += res.Cost
	f.expanded += res.Expanded
	f.elapsed += res.Elapsed

	if next := res.NextLeg(); next != nil {
		if err := f.queue(next); err == nil {
			return
		}
	}
	merged := *res
	merged.Path = gridmap.NewPath(f.points...)
	merged.Cost, merged.Expanded, merged.Elapsed = f.cost, f.expanded, f.elapsed
	f.deliver(&merged)
}
