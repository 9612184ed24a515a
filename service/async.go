package service

import (
	"github.com/sirupsen/logrus"
)

// AsyncState 后台处理的状态.
type AsyncState int32

const (
	AsyncIdle AsyncState = iota
	// AsyncPoolSubmitted 一个池任务正在清空队列.
	AsyncPoolSubmitted
	// AsyncDedicatedRunning 池已满时创建的常驻工作者, 清空队列后等待信号.
	AsyncDedicatedRunning
	// AsyncDisabled 同步模式, 或创建工作者失败后退回协作处理.
	AsyncDisabled
)

func (st AsyncState) String() string {
	switch st {
	case AsyncIdle:
		return "idle"
	case AsyncPoolSubmitted:
		return "pool-submitted"
	case AsyncDedicatedRunning:
		return "dedicated-running"
	case AsyncDisabled:
		return "disabled"
	}
	return "unknown"
}

func (s *Service) AsyncState() AsyncState { return AsyncState(s.state.Load()) }

func (s *Service) asyncActive() bool { return s.AsyncState() != AsyncDisabled }

// kick 确保有一个工作者在处理队列.
func (s *Service) kick() {
	for {
		switch AsyncState(s.state.Load()) {
		case AsyncDisabled, AsyncPoolSubmitted:
			return
		case AsyncDedicatedRunning:
			s.wake()
			return
		case AsyncIdle:
			if !s.state.CompareAndSwap(int32(AsyncIdle), int32(AsyncPoolSubmitted)) {
				continue
			}
			if s.pool.TryAcquire(1) {
				go s.poolTask()
				return
			}
			s.startDedicated()
			return
		}
	}
}

func (s *Service) poolTask() {
	defer s.pool.Release(1)
	s.drain()
	if !s.state.CompareAndSwap(int32(AsyncPoolSubmitted), int32(AsyncIdle)) {
		return
	}
	// 清空之后、回到 Idle 之前入队的请求没有人处理.
	if s.Pending() > 0 && !s.closed.Load() {
		s.kick()
	}
}

// startDedicated 池已满, 改用常驻工作者. 状态此时为 PoolSubmitted.
func (s *Service) startDedicated() {
	err := s.threadFactory(workerName, s.dedicatedLoop)
	if err != nil {
		s.state.Store(int32(AsyncDisabled))
		s.log.WithError(err).WithField("pending", s.Pending()).
			Warn("could not start path worker, falling back to cooperative processing")
		if s.asyncFailed != nil {
			s.asyncFailed()
		}
		return
	}
	s.state.CompareAndSwap(int32(AsyncPoolSubmitted), int32(AsyncDedicatedRunning))
	s.log.WithFields(logrus.Fields{"worker": workerName}).Info("dedicated path worker started")
	s.wake()
}

func (s *Service) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Service) dedicatedLoop() {
	for {
		select {
		case <-s.signal:
			s.drain()
		case <-s.done:
			return
		}
	}
}
