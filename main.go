package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"komi/server"
)

// 入口：TCP 按行协议 + HTTP（WebSocket 接入与管理接口）+ Tick 循环
func main() {
	var (
		cfgPath  string
		tcpAddr  string
		httpAddr string
	)
	flag.StringVar(&cfgPath, "config", "", "path to TOML config file")
	flag.StringVar(&tcpAddr, "addr", "", "TCP listen address, overrides config (e.g. :8080)")
	flag.StringVar(&httpAddr, "http", "", "HTTP listen address, overrides config (e.g. :8081)")
	flag.Parse()

	cfg, err := server.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}
	if tcpAddr != "" {
		cfg.ListenTCP = tcpAddr
	}
	if httpAddr != "" {
		cfg.ListenHTTP = httpAddr
	}

	if err := server.InitLogger(cfg.Log); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	if err := run(cfg); err != nil {
		server.Log.Errorf("server exited: %v", err)
		server.SyncLogger()
		os.Exit(1)
	}
}

func run(cfg server.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.ListenTCP)
	if err != nil {
		return err
	}
	match := server.NewMatch(cfg)
	srv := &http.Server{Addr: cfg.ListenHTTP, Handler: match.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		server.Log.Infof("TCP listening on %s", ln.Addr())
		return match.ServeTCP(gctx, ln)
	})
	g.Go(func() error {
		server.Log.Infof("HTTP listening on %s (ws endpoint: /ws)", cfg.ListenHTTP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return match.RunTicker(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		server.Log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, cerr)
		}
		match.Close()
		return err
	})
	return g.Wait()
}
