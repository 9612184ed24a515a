package pathing

import (
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/syncmap"
)

const (
	scratchPoolSize  = 64
	scratchPoolLimit = 32

	recycleDelay    = 60 * time.Second
	recycleInterval = 30 * time.Minute
)

// 按容量分级的全局 scratch 池, key 为 2 的幂次.
var _globalScratchMapPool syncmap.Map

// scratchSlicePool 基于 channel 的对象池.
type scratchSlicePool struct {
	pool     chan []scratch
	getCnt   atomic.Uint32
	putCnt   atomic.Uint32
	limitCnt uint32
	cap      int

	timerMu      sync.Mutex
	recycleTimer *time.Timer
}

func newScratchSlicePool(poolSize, sliceCap, limitCnt int) *scratchSlicePool {
	return &scratchSlicePool{
		pool:     make(chan []scratch, poolSize),
		cap:      sliceCap,
		limitCnt: uint32(limitCnt),
	}
}

func (p *scratchSlicePool) Get() []scratch {
	select {
	case data := <-p.pool:
		p.getCnt.Add(1)
		return data[:0]
	default:
		return make([]scratch, 0, p.cap)
	}
}

func (p *scratchSlicePool) Put(data []scratch) {
	clear(data[:cap(data)])
	select {
	case p.pool <- data[:0]:
		p.putCnt.Add(1)
	default:
		// 池已满，丢弃
	}

	p.timerMu.Lock()
	defer p.timerMu.Unlock()
	if p.putCnt.Load()-p.getCnt.Load() > p.limitCnt {
		if p.recycleTimer == nil {
			p.recycleTimer = time.AfterFunc(recycleDelay, p.triggerRecycle)
		} else {
			p.recycleTimer.Reset(recycleDelay)
		}
	} else if p.recycleTimer != nil {
		p.recycleTimer.Stop()
	}
}

func (p *scratchSlicePool) Length() int {
	return len(p.pool)
}

// triggerRecycle 每次回收 10%.
func (p *scratchSlicePool) triggerRecycle() {
	recycleCnt := len(p.pool) / 10
	for i := 0; i < recycleCnt; i++ {
		p.Get()
	}
	p.timerMu.Lock()
	p.recycleTimer.Reset(recycleInterval)
	p.timerMu.Unlock()
}

func scratchPoolKey(size int) int {
	key := bits.Len(uint(size))
	if size == 1<<(key-1) {
		key--
	}
	return key
}

func loadScratchPool(key int) *scratchSlicePool {
	if v, ok := _globalScratchMapPool.Load(key); ok {
		return v.(*scratchSlicePool)
	}
	v, _ := _globalScratchMapPool.LoadOrStore(key, newScratchSlicePool(scratchPoolSize, 1<<key, scratchPoolLimit))
	return v.(*scratchSlicePool)
}

// _getGlobalScratch 返回 len 为 0, cap 至少为 size 的切片.
func _getGlobalScratch(size int) []scratch {
	if size <= 0 {
		size = 1
	}
	return loadScratchPool(scratchPoolKey(size)).Get()
}

func _putGlobalScratch(s []scratch) {
	c := cap(s)
	if c == 0 {
		return
	}
	key := bits.Len(uint(c)) - 1 // 向下取整, 保证取出时容量足够
	loadScratchPool(key).Put(s[:0:1<<key])
}
