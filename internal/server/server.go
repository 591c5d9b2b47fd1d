package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"irida/internal/camera"
	"irida/internal/channel"
	"irida/internal/config"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	host       *camera.Host
	channels   *channel.Registry
	log        logrus.FieldLogger
	engine     *gin.Engine
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, host *camera.Host, channels *channel.Registry, log logrus.FieldLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		config:   cfg,
		host:     host,
		channels: channels,
		log:      log,
		engine:   engine,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.setupRoutes()

	return s
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	h := &handler{config: s.config, host: s.host, channels: s.channels}

	// ヘルスチェックエンドポイント
	s.engine.GET("/health", h.HealthCheck)

	api := s.engine.Group("/api")
	{
		api.GET("/status", h.GetStatus)

		// カメラセッションの操作
		api.GET("/camera", h.GetCamera)
		api.POST("/camera/configure", h.ConfigureCamera)
		api.POST("/camera/start", h.StartCamera)
		api.POST("/camera/stop", h.StopCamera)
		api.GET("/camera/quality", h.GetCameraQuality)

		// 画像の品質判定
		api.POST("/quality", h.AnalyzeFrame)

		// メソッドチャンネル（チャンネル名はスラッシュを含む）
		api.GET("/channels", h.ListChannels)
		api.POST("/channels/*name", h.InvokeChannel)
	}
}

// Start はサーバーを起動し、ctxがキャンセルされるまで待つ
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}

	return s.Serve(ctx, listener)
}

// Serve は指定されたリスナーでサーバーを起動する
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.log.WithField("addr", listener.Addr().String()).Info("HTTPサーバーを起動しています")
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("コンテキストがキャンセルされました")
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.log.Info("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.log.Info("サーバーが正常にシャットダウンされました")
	return nil
}

// requestLogger はリクエストごとにアクセスログを出力するミドルウェア
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("リクエストを処理しました")
	}
}
