package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/way"
	"github.com/sirupsen/logrus"

	"gridnav/bake"
	"gridnav/config"
	"gridnav/gridmap"
)

const (
	defaultRequestTimeout = 10 * time.Second
	writeWait             = time.Second
	sessionBuffer         = 64
)

type Server struct {
	router   *way.Router
	world    atomic.Pointer[config.World]
	upgrader *websocket.Upgrader
	log      logrus.FieldLogger
	// cache 热加载时复用未变化网格的烘焙结果, 可以为 nil.
	cache *bake.Cache

	requestTimeout time.Duration
}

func NewServer(w *config.World, cache *bake.Cache, log logrus.FieldLogger) *Server {
	s := &Server{
		upgrader:       &websocket.Upgrader{},
		log:            log,
		cache:          cache,
		requestTimeout: defaultRequestTimeout,
	}
	s.world.Store(w)
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) World() *config.World { return s.world.Load() }

// Swap 替换当前世界并关闭旧世界, 旧世界队列中的请求会超时.
func (s *Server) Swap(w *config.World) {
	if old := s.world.Swap(w); old != nil && old != w {
		old.Close()
	}
}

// Loop 按配置的间隔驱动世界, 直到 ctx 结束.
func (s *Server) Loop(ctx context.Context) {
	period := s.World().Config.Server.Tick
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			w := s.World()
			w.Tick(now.Sub(last))
			last = now
			if p := w.Config.Server.Tick; p != period {
				period = p
				ticker.Reset(period)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Watch rebuilds the world for every reloaded config.
func (s *Server) Watch(ctx context.Context, watcher *config.Watcher, hooks ...func(*config.Config)) {
	for {
		select {
		case cfg, ok := <-watcher.Reloads:
			if !ok {
				return
			}
			for _, hook := range hooks {
				hook(cfg)
			}
			var opts []config.BuildOption
			if s.cache != nil {
				opts = append(opts, config.WithBakeCache(s.cache))
			}
			w, err := config.BuildWorld(cfg, s.log, opts...)
			if err != nil {
				s.log.WithError(err).Warn("rebuilding world failed, keeping current world")
				continue
			}
			s.Swap(w)
			s.log.WithField("grids", len(cfg.Grids)).Info("world swapped")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("config watcher error")
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handlePath() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg PathRequestMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorMessage{Error: err.Error()})
			return
		}
		results := make(chan *gridmap.PathResult, 1)
		req, err := msg.submit(s.World().Service, func(res *gridmap.PathResult) { results <- res })
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorMessage{ID: msg.ID, Error: err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		select {
		case res := <-results:
			writeJSON(w, http.StatusOK, resultMessage(msg.ID, res))
		case <-ctx.Done():
			s.log.WithField("request", req.String()).Warn("path request timed out")
			writeJSON(w, http.StatusGatewayTimeout, ErrorMessage{ID: msg.ID, Error: "path request timed out"})
		}
	}
}

func (s *Server) handleTraverse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := way.Param(r.Context(), "name")
		var msg TraverseMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorMessage{Error: err.Error()})
			return
		}
		done := make(chan gridmap.Vector3, 1)
		err := s.World().Traverse(name, vec(msg.From), func(p gridmap.Vector3) { done <- p })
		switch {
		case errors.Is(err, config.ErrUnknownPortal):
			writeJSON(w, http.StatusNotFound, ErrorMessage{Error: err.Error()})
			return
		case errors.Is(err, config.ErrPortalDisabled):
			writeJSON(w, http.StatusConflict, ErrorMessage{Error: err.Error()})
			return
		case err != nil:
			writeJSON(w, http.StatusBadRequest, ErrorMessage{Error: err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		select {
		case p := <-done:
			writeJSON(w, http.StatusOK, PositionMessage{Position: arr(p)})
		case <-ctx.Done():
			writeJSON(w, http.StatusGatewayTimeout, ErrorMessage{Error: "traverse timed out"})
		}
	}
}

func (s *Server) handlePortalState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := way.Param(r.Context(), "name")
		var msg PortalStateMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorMessage{Error: err.Error()})
			return
		}
		world := s.World()
		p := world.Manager.Portal(name)
		if p == nil {
			writeJSON(w, http.StatusNotFound, ErrorMessage{Error: "unknown portal " + name})
			return
		}
		toggle := p.Disable
		if msg.Enabled {
			toggle = p.Enable
		}
		if err := world.Service.Mutate(toggle); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorMessage{Error: err.Error()})
			return
		}
		s.log.WithFields(logrus.Fields{"portal": name, "enabled": msg.Enabled}).Info("portal state changed")
		writeJSON(w, http.StatusOK, portalInfo(p))
	}
}

func portalInfo(p *gridmap.Portal) PortalInfo {
	return PortalInfo{
		Name:    p.Name(),
		Type:    p.Type().String(),
		Enabled: p.Enabled(),
		One:     p.One().Grid().Name(),
		Two:     p.Two().Grid().Name(),
	}
}

func (s *Server) handleWorld() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		world := s.World()
		info := WorldInfo{
			Grids:   []GridInfo{},
			Portals: []PortalInfo{},
			Pending: world.Service.Pending(),
		}
		for _, g := range world.Manager.Grids() {
			b := g.Bounds()
			info.Grids = append(info.Grids, GridInfo{
				Name:     g.Name(),
				Min:      [2]float64{b.MinX, b.MinZ},
				Max:      [2]float64{b.MaxX, b.MaxZ},
				CellSize: g.CellSize(),
			})
		}
		for _, p := range world.Manager.Portals() {
			info.Portals = append(info.Portals, portalInfo(p))
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

func (s *Server) handleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade 已经写回了错误响应.
			s.log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		sess := &session{
			conn: conn,
			srv:  s,
			send: make(chan any, sessionBuffer),
			done: make(chan struct{}),
			log:  s.log.WithField("remote", r.RemoteAddr),
		}
		sess.log.Info("websocket session started")
		go sess.writeLoop()
		sess.readLoop()
		sess.log.Info("websocket session ended")
	}
}

// session 一个 websocket 连接. 读循环入队请求, 结果经 send 由写循环发出.
type session struct {
	conn *websocket.Conn
	srv  *Server
	send chan any
	done chan struct{}
	log  logrus.FieldLogger
}

func (ss *session) deliver(v any) {
	select {
	case ss.send <- v:
	case <-ss.done:
	default:
		ss.log.Warn("dropping message, session send buffer full")
	}
}

func (ss *session) readLoop() {
	defer close(ss.done)
	for {
		var msg PathRequestMessage
		if err := ss.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ss.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		id := msg.ID
		deliver := func(res *gridmap.PathResult) { ss.deliver(resultMessage(id, res)) }
		if _, err := msg.submit(ss.srv.World().Service, deliver); err != nil {
			ss.deliver(ErrorMessage{ID: id, Error: err.Error()})
		}
	}
}

func (ss *session) writeLoop() {
	for {
		select {
		case v := <-ss.send:
			_ = ss.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ss.conn.WriteJSON(v); err != nil {
				ss.log.WithError(err).Warn("websocket write failed")
				return
			}
		case <-ss.done:
			return
		}
	}
}
