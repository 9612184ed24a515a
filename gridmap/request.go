package gridmap

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Requester 发起寻路的一方: 通行能力、占地半径以及结果回调.
type Requester interface {
	Attributes() AttributeMask
	Radius() float64
	ConsumePathResult(result *PathResult)
}

type RequestType int8

// 请求类型决定终点被阻挡时的处理, 见 NavigatesToNearest.
const (
	RequestNormal RequestType = iota
	// RequestWaypoint 路径的中间一段, 终点之后还有途经点. 终点被阻挡时总是走到最近点.
	RequestWaypoint
	// RequestPathboundWaypoint 终点必须是路径上的确切格子 (例如离开网格前的出口格), 从不改道.
	RequestPathboundWaypoint
)

func (t RequestType) String() string {
	switch t {
	case RequestNormal:
		return "normal"
	case RequestWaypoint:
		return "waypoint"
	case RequestPathboundWaypoint:
		return "pathbound-waypoint"
	}
	return "unknown"
}

// PathRequest 在调用方、DirectPather 和寻路引擎之间流转, 会被原地修改.
type PathRequest struct {
	From, To         Vector3
	FromGrid, ToGrid *Grid

	Requester Requester
	Type      RequestType

	UsePathSmoothing           bool
	AllowCornerCutting         bool
	PreventDiagonalMoves       bool
	PreventOffGridNavigation   bool
	NavigateToNearestIfBlocked bool

	MaxEscapeCellDistanceIfOriginBlocked int

	PendingWaypoints []Vector3

	// Decay 为 true 时请求在出队时被丢弃.
	Decay     func() bool
	CreatedAt time.Time

	completed atomic.Bool
}

func NewPathRequest(from, to Vector3, requester Requester) *PathRequest {
	return &PathRequest{
		From:      from,
		To:        to,
		Requester: requester,
		CreatedAt: time.Now(),
	}
}

// WithMaxAge decays the request once it is older than d.
func (r *PathRequest) WithMaxAge(d time.Duration) *PathRequest {
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
		r.CreatedAt = created
	}
	r.Decay = func() bool { return time.Since(created) > d }
	return r
}

func (r *PathRequest) HasDecayed() bool {
	return r.Decay != nil && r.Decay()
}

func (r *PathRequest) Attributes() AttributeMask {
	if r.Requester == nil {
		return AttributesNone
	}
	return r.Requester.Attributes()
}

func (r *PathRequest) Radius() float64 {
	if r.Requester == nil {
		return 0
	}
	return r.Requester.Radius()
}

// Complete 把结果交给请求者, 只生效一次. 返回本次调用是否生效.
func (r *PathRequest) Complete(result *PathResult) bool {
	if !r.completed.CompareAndSwap(false, true) {
		return false
	}
	if result.Request == nil {
		result.Request = r
	}
	if result.PendingWaypoints == nil && len(r.PendingWaypoints) > 0 {
		result.PendingWaypoints = append([]Vector3(nil), r.PendingWaypoints...)
	}
	if r.Requester != nil {
		r.Requester.ConsumePathResult(result)
	}
	return true
}

// Fail completes the request with an empty path.
func (r *PathRequest) Fail(status PathStatus) bool {
	return r.Complete(&PathResult{Status: status, Path: NewPath()})
}

func (r *PathRequest) IsCompleted() bool { return r.completed.Load() }

// NavigatesToNearest reports whether a blocked destination is replaced by the
// nearest reachable cell instead of failing.
func (r *PathRequest) NavigatesToNearest() bool {
	switch r.Type {
	case RequestWaypoint:
		return true
	case RequestPathboundWaypoint:
		return false
	}
	return r.NavigateToNearestIfBlocked
}

func (r *PathRequest) String() string {
	return fmt.Sprintf("PathRequest[%s %v->%v]", r.Type, r.From, r.To)
}
