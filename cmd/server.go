// Package main はIRIDAカメラホストのサーバーコマンドの実装です
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/jawher/mow.cli"
	log "github.com/sirupsen/logrus"

	"irida/internal/app"
	"irida/internal/config"
	"irida/internal/logging"
)

const (
	appName = "irida-camera"
	appDesc = "IRIDA camera host: macro camera configuration and probe channel"
)

func main() {
	cliApp := cli.App(appName, appDesc)

	configPath := cliApp.String(cli.StringOpt{
		Name:   "c config",
		Desc:   "YAML設定ファイルのパス",
		EnvVar: "IRIDA_CONFIG",
		Value:  "",
	})

	host := cliApp.String(cli.StringOpt{
		Name:   "host",
		Desc:   "サーバーのホスト (デフォルト: 0.0.0.0)",
		EnvVar: "SERVER_HOST",
		Value:  "",
	})

	port := cliApp.Int(cli.IntOpt{
		Name:   "p port",
		Desc:   "サーバーのポート (デフォルト: 8080)",
		EnvVar: "PORT",
		Value:  0,
	})

	logLevel := cliApp.String(cli.StringOpt{
		Name:   "log-level",
		Desc:   "ログレベル (debug, info, warn, error)",
		EnvVar: "LOG_LEVEL",
		Value:  "",
	})

	previewOnly := cliApp.Bool(cli.BoolOpt{
		Name:   "allow-preview-only",
		Desc:   "静止画出力を追加できなくてもプレビューのみで続行する",
		EnvVar: "IRIDA_ALLOW_PREVIEW_ONLY",
		Value:  false,
	})

	cliApp.Action = func() {
		opts := serverOptions{
			configPath:  *configPath,
			host:        *host,
			port:        *port,
			logLevel:    *logLevel,
			previewOnly: *previewOnly,
		}
		if err := serve(context.Background(), opts); err != nil {
			log.WithError(err).Fatal("IRIDA カメラホストが異常終了しました")
		}
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.WithError(err).Fatal("failed to execute application")
	}
}

// serverOptions はコマンドラインオプション
type serverOptions struct {
	configPath  string
	host        string
	port        int
	logLevel    string
	previewOnly bool
}

// serve は設定を読み込み、オプションで上書きしてアプリケーションを実行する
// ログファイルは戻る前に必ず閉じる
func serve(ctx context.Context, opts serverOptions) error {
	// 設定を読み込む
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}

	// コマンドラインオプションで設定を上書き
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.previewOnly {
		cfg.Camera.AllowPreviewOnly = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定の検証に失敗しました: %w", err)
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("ロガーの作成に失敗しました: %w", err)
	}
	defer closer.Close()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("アプリケーションの作成に失敗しました")
		return err
	}

	logger.WithField("addr", cfg.ServerAddress()).Info("IRIDA カメラホストを起動します")
	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Error("サーバーの起動に失敗しました")
		return err
	}
	return nil
}
