// Package app は設定からカメラホストとHTTPサーバーを組み立てて実行する
package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"irida/internal/camera"
	"irida/internal/channel"
	"irida/internal/config"
	"irida/internal/server"
)

// App はプロセス内の構成要素をまとめたもの
type App struct {
	Host   *camera.Host
	Server *server.Server

	log logrus.FieldLogger
}

// New は設定からAppを組み立てる
func New(cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	opts, err := cfg.Camera.SessionOptions()
	if err != nil {
		return nil, fmt.Errorf("カメラ設定が無効です: %w", err)
	}
	catalog, err := cfg.Camera.Catalog()
	if err != nil {
		return nil, fmt.Errorf("デバイスカタログが無効です: %w", err)
	}

	platform := camera.NewSimulatedPlatformFromCatalog(catalog)
	host := camera.NewHost(platform, camera.HostOptions{
		Session: opts,
		Surface: camera.NewSimulatedSurface(cfg.Camera.SurfaceWidth, cfg.Camera.SurfaceHeight),
	}, log)

	registry := channel.NewCameraRegistry(host, log)

	return &App{
		Host:   host,
		Server: server.New(cfg, host, registry, log),
		log:    log,
	}, nil
}

// Run はシグナルかctxのキャンセルまでサーバーを実行し、終了時にホストを破棄する
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.Server.Start(ctx)
	})

	group.Go(func() error {
		<-ctx.Done()
		a.Host.Close()
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	a.log.Info("終了しました")
	return nil
}
