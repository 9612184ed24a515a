// Package service queues path requests and drives them through direct
// resolution and the search engine, either synchronously, in cooperative
// time slices, or on a background worker.
package service

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"gridnav/gridmap"
	"gridnav/gridmap/direct"
)

var (
	ErrClosed     = errors.New("service: closed")
	ErrNilRequest = errors.New("service: nil request")
)

const (
	defaultPoolSize = 4
	workerName      = "gridnav-path-worker"
)

// Engine 可分步推进的寻路引擎, *pathing.Engine 满足该接口.
type Engine interface {
	Start(req *gridmap.PathRequest) error
	Advance(budget time.Duration) bool
	Status() gridmap.PathStatus
}

// Resolver 搜索前的直接处理, 返回 nil 表示请求已完成.
type Resolver interface {
	Resolve(req *gridmap.PathRequest) *gridmap.PathRequest
}

// ThreadFactory starts work on a new named worker.
type ThreadFactory func(name string, work func()) error

func goroutineFactory(_ string, work func()) error {
	go work()
	return nil
}

type Config struct {
	// Async 为 true 时入队即在后台处理.
	Async bool
	// PoolSize 共享线程池的并发上限, 只在没有通过 WithPool 传入池时使用.
	PoolSize int64
	// SliceBudget Advance 未指定预算时使用的时间片.
	SliceBudget time.Duration
}

type Option func(*Service)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func WithThreadFactory(f ThreadFactory) Option {
	return func(s *Service) { s.threadFactory = f }
}

// WithAsyncFailed is called once when async processing is given up.
func WithAsyncFailed(f func()) Option {
	return func(s *Service) { s.asyncFailed = f }
}

// WithPool shares a worker pool between services.
func WithPool(pool *semaphore.Weighted) Option {
	return func(s *Service) { s.pool = pool }
}

// WithResolver replaces the default direct pather.
func WithResolver(r Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

type Service struct {
	manager  *gridmap.Manager
	engine   Engine
	resolver Resolver
	cfg      Config

	log           logrus.FieldLogger
	threadFactory ThreadFactory
	asyncFailed   func()
	pool          *semaphore.Weighted

	mu         sync.Mutex // queue, seq, processing
	queue      requestQueue
	seq        uint64
	processing bool

	engineMu sync.Mutex // engine, current
	current  *gridmap.PathRequest

	state     atomic.Int32
	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func New(manager *gridmap.Manager, engine Engine, cfg Config, opts ...Option) *Service {
	s := &Service{
		manager:       manager,
		engine:        engine,
		cfg:           cfg,
		log:           logrus.StandardLogger(),
		threadFactory: goroutineFactory,
		signal:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "service")
	if s.resolver == nil {
		s.resolver = direct.New(manager, s.log)
	}
	if s.pool == nil {
		size := cfg.PoolSize
		if size <= 0 {
			size = defaultPoolSize
		}
		s.pool = semaphore.NewWeighted(size)
	}
	if !cfg.Async {
		s.state.Store(int32(AsyncDisabled))
	}
	s.log.WithField("async", cfg.Async).Info("path service started")
	return s
}

// QueueRequest 线程安全. 异步模式下没有活动的工作者时启动一个.
func (s *Service) QueueRequest(req *gridmap.PathRequest, priority int) error {
	if req == nil {
		return ErrNilRequest
	}
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, &queued{req: req, priority: priority, seq: s.seq})
	s.mu.Unlock()

	if s.cfg.Async {
		s.kick()
	}
	return nil
}

func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Processing reports whether a dequeued request is still being worked on.
func (s *Service) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// GetNext 出队下一个有效请求并注入网格. 过期的请求以 Decayed 完成后丢弃.
// 队列为空时返回 nil.
func (s *Service) GetNext() *gridmap.PathRequest {
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 {
			s.processing = false
			s.mu.Unlock()
			return nil
		}
		req := heap.Pop(&s.queue).(*queued).req
		s.processing = true
		s.mu.Unlock()

		if req.HasDecayed() {
			s.log.WithField("request", req.String()).Warn("dropping decayed request")
			req.Fail(gridmap.StatusDecayed)
			continue
		}
		if s.manager != nil {
			s.manager.InjectGrids(req)
		}
		return req
	}
}

// ProcessNext 同步处理一个请求. 异步模式运行中时不做任何事.
func (s *Service) ProcessNext() bool {
	if s.asyncActive() {
		return false
	}
	req := s.GetNext()
	if req == nil {
		return false
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.finishCurrent()
	s.run(req)
	return true
}

// ProcessAll drains the queue synchronously and returns how many requests were taken.
func (s *Service) ProcessAll() int {
	n := 0
	for s.ProcessNext() {
		n++
	}
	return n
}

// Advance 协作式处理: 最多运行 budget 时间, 未完成的搜索保留到下一次调用.
// budget <= 0 时使用 Config.SliceBudget, 二者都为 0 表示不限时.
// 返回 true 表示还有剩余工作.
func (s *Service) Advance(budget time.Duration) bool {
	if s.asyncActive() {
		return false
	}
	if budget <= 0 {
		budget = s.cfg.SliceBudget
	}
	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	expired := func() bool { return budget > 0 && !time.Now().Before(deadline) }

	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	for {
		if s.current == nil {
			req := s.GetNext()
			if req == nil {
				return false
			}
			if !s.start(req) {
				if expired() {
					return s.Pending() > 0
				}
				continue
			}
		}
		var slice time.Duration
		if budget > 0 {
			if slice = time.Until(deadline); slice <= 0 {
				return true
			}
		}
		if s.engine.Advance(slice) {
			return true
		}
		s.current = nil
		if expired() {
			return s.Pending() > 0
		}
	}
}

// Mutate 在两次搜索之间运行 f, 期间没有直接处理或搜索在读格子.
// 运行时修改网格(传送门开关, 阻挡, 障碍)都应经过这里.
// 协作模式下 f 可能落在同一个请求的两个时间片之间.
func (s *Service) Mutate(f func()) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	f()
	return nil
}

// start 直接处理请求, 需要搜索时交给引擎并记为 current. 返回是否有搜索在进行.
func (s *Service) start(req *gridmap.PathRequest) bool {
	out := s.resolver.Resolve(req)
	if out == nil {
		return false
	}
	if err := s.engine.Start(out); err != nil {
		s.log.WithError(err).WithField("request", out.String()).Error("engine rejected request")
		out.Fail(gridmap.StatusNoRouteExists)
		return false
	}
	s.current = out
	return true
}

func (s *Service) run(req *gridmap.PathRequest) {
	if !s.start(req) {
		return
	}
	for s.engine.Advance(0) {
	}
	s.current = nil
	s.log.WithFields(logrus.Fields{
		"request": req.String(),
		"status":  s.engine.Status().String(),
	}).Debug("request processed")
}

// finishCurrent 完成协作模式遗留的搜索, 引擎一次只能处理一个请求.
func (s *Service) finishCurrent() {
	if s.current == nil {
		return
	}
	for s.engine.Advance(0) {
	}
	s.current = nil
}

// drain 处理到队列为空.
func (s *Service) drain() {
	for !s.closed.Load() {
		req := s.GetNext()
		if req == nil {
			return
		}
		s.engineMu.Lock()
		s.finishCurrent()
		s.run(req)
		s.engineMu.Unlock()
	}
}

// Close 清空队列并停止后台处理, 返回时没有搜索在运行. 队列中的请求不会收到结果.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.mu.Lock()
		clear(s.queue)
		s.queue = s.queue[:0]
		s.processing = false
		s.mu.Unlock()
		s.state.Store(int32(AsyncDisabled))
		close(s.done)
		// 等待正在运行的搜索结束, 之后引擎不再被使用.
		s.engineMu.Lock()
		s.current = nil
		s.engineMu.Unlock()
		s.log.Info("path service closed")
	})
}
