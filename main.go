package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"irida/internal/app"
	"irida/internal/config"
	"irida/internal/logging"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.WithError(err).Fatal("IRIDA カメラホストが異常終了しました")
	}
}

// run は設定を読み込んでアプリケーションを実行する
// ログファイルは戻る前に必ず閉じる
func run(ctx context.Context) error {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
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

	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Error("サーバーの起動に失敗しました")
		return err
	}
	return nil
}
