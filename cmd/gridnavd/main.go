// Command gridnavd serves path requests over HTTP and websocket for the
// world described by a yaml config file.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"gridnav/bake"
	"gridnav/config"
)

func main() {
	cfgPath := flag.String("config", "gridnav.yaml", "path to the world config")
	watch := flag.Bool("watch", true, "rebuild the world when the config changes")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.WithError(err).Fatal("loading config")
	}
	log.SetLevel(cfg.Level())
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cache := bake.NewCache()
	world, err := config.BuildWorld(cfg, log.StandardLogger(), config.WithBakeCache(cache))
	if err != nil {
		log.WithError(err).Fatal("building world")
	}
	srv := NewServer(world, cache, log.StandardLogger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		watcher, err := config.NewWatcher(*cfgPath, 0, log.StandardLogger())
		if err != nil {
			log.WithError(err).Warn("config hot reload disabled")
		} else {
			defer watcher.Close()
			go srv.Watch(ctx, watcher, func(c *config.Config) { log.SetLevel(c.Level()) })
		}
	}
	go srv.Loop(ctx)

	listen := cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}
	httpSrv := &http.Server{Addr: listen, Handler: srv}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", listen).Info("gridnavd listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("serving")
	}
	srv.World().Close()
	log.Info("gridnavd stopped")
}
