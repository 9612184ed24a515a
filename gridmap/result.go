package gridmap

import (
	"slices"
	"time"
)

type PathStatus int8

const (
	StatusIdle PathStatus = iota
	StatusRunning
	StatusComplete
	StatusNoRouteExists
	StatusDestinationBlocked
	StatusStartOutsideGrid
	StatusEndOutsideGrid
	StatusDecayed
)

func (s PathStatus) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusComplete:
		return "Complete"
	case StatusNoRouteExists:
		return "NoRouteExists"
	case StatusDestinationBlocked:
		return "DestinationBlocked"
	case StatusStartOutsideGrid:
		return "StartOutsideGrid"
	case StatusEndOutsideGrid:
		return "EndOutsideGrid"
	case StatusDecayed:
		return "Decayed"
	}
	return "Unknown"
}

// IsTerminal reports whether s ends a request.
func (s PathStatus) IsTerminal() bool { return s >= StatusComplete }

type PathResult struct {
	Status           PathStatus
	Path             *Path
	PendingWaypoints []Vector3
	Request          *PathRequest

	Cost     int
	Expanded int
	Elapsed  time.Duration
}

// NextLeg 从本段终点前往第一个待定途经点的请求, 继承原请求的选项和请求者.
// 本段未完成或没有待定途经点时返回 nil.
func (res *PathResult) NextLeg() *PathRequest {
	prev := res.Request
	if res.Status != StatusComplete || prev == nil || len(res.PendingWaypoints) == 0 {
		return nil
	}
	from := prev.From
	if res.Path != nil {
		if last, ok := res.Path.Last(); ok {
			from = last
		}
	}
	next := NewPathRequest(from, res.PendingWaypoints[0], prev.Requester)
	next.UsePathSmoothing = prev.UsePathSmoothing
	next.AllowCornerCutting = prev.AllowCornerCutting
	next.PreventDiagonalMoves = prev.PreventDiagonalMoves
	next.PreventOffGridNavigation = prev.PreventOffGridNavigation
	next.NavigateToNearestIfBlocked = prev.NavigateToNearestIfBlocked
	next.MaxEscapeCellDistanceIfOriginBlocked = prev.MaxEscapeCellDistanceIfOriginBlocked
	next.Decay = prev.Decay
	next.PendingWaypoints = slices.Clone(res.PendingWaypoints[1:])
	if len(next.PendingWaypoints) > 0 {
		next.Type = RequestWaypoint
	}
	return next
}
