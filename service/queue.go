package service

import (
	"gridnav/gridmap"
)

type queued struct {
	req      *gridmap.PathRequest
	priority int
	seq      uint64
}

// requestQueue 最大堆: 优先级高的先出, 同优先级按入队顺序.
type requestQueue []*queued

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *requestQueue) Push(x any) { *q = append(*q, x.(*queued)) }

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}
