package pathing

import (
	"gridnav/gridmap"
)

const noParent int32 = -1

// scratch 单次搜索中一个节点的临时状态. 节点本身不携带搜索字段.
type scratch struct {
	node    gridmap.Node
	g, h, f int
	parent  int32
	heapIdx int // 不在 open 中时为 -1
	closed  bool
}

// arena 以节点为 key 的 scratch 存储. 出现在 arena 中即视为已访问,
// 因此零代价的边不会与"未访问"混淆.
type arena struct {
	index map[gridmap.Node]int32
	nodes []scratch
}

func newArena(sizeHint int) *arena {
	return &arena{
		index: make(map[gridmap.Node]int32, sizeHint),
		nodes: _getGlobalScratch(sizeHint),
	}
}

func (a *arena) lookup(n gridmap.Node) (int32, bool) {
	i, ok := a.index[n]
	return i, ok
}

func (a *arena) add(n gridmap.Node, g, h int, parent int32) int32 {
	if len(a.nodes) == cap(a.nodes) {
		grown := _getGlobalScratch(2 * cap(a.nodes))
		grown = append(grown, a.nodes...)
		_putGlobalScratch(a.nodes)
		a.nodes = grown
	}
	idx := int32(len(a.nodes))
	a.nodes = append(a.nodes, scratch{node: n, g: g, h: h, f: g + h, parent: parent, heapIdx: -1})
	a.index[n] = idx
	return idx
}

func (a *arena) at(i int32) *scratch { return &a.nodes[i] }

func (a *arena) len() int { return len(a.nodes) }

// reset 只清理本次搜索触及的部分.
func (a *arena) reset() {
	clear(a.index)
	clear(a.nodes)
	a.nodes = a.nodes[:0]
}

func (a *arena) release() {
	a.reset()
	_putGlobalScratch(a.nodes)
	a.nodes = nil
}

// chain 从 i 沿 parent 回溯到起点, 返回 [i, ..., start].
func (a *arena) chain(i int32) []gridmap.Node {
	var out []gridmap.Node
	for ; i != noParent; i = a.nodes[i].parent {
		out = append(out, a.nodes[i].node)
	}
	return out
}

// openHeap 按 f 排序的最小堆, 元素为 arena 下标.
type openHeap struct {
	items []int32
	a     *arena
}

func (h *openHeap) Len() int { return len(h.items) }

func (h *openHeap) Less(i, j int) bool {
	a, b := &h.a.nodes[h.items[i]], &h.a.nodes[h.items[j]]
	if a.f != b.f {
		return a.f < b.f
	}
	return a.h < b.h
}

func (h *openHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.a.nodes[h.items[i]].heapIdx = i
	h.a.nodes[h.items[j]].heapIdx = j
}

func (h *openHeap) Push(x any) {
	idx := x.(int32)
	h.a.nodes[idx].heapIdx = len(h.items)
	h.items = append(h.items, idx)
}

func (h *openHeap) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	h.items = old[:n-1]
	h.a.nodes[x].heapIdx = -1
	return x
}

func (h *openHeap) reset() { h.items = h.items[:0] }
