// Package logging はアプリケーションのロガーを設定から作成する
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"irida/internal/config"
)

// New はログ設定からロガーを作成する
// 戻り値のio.Closerはファイル出力の場合にファイルを閉じる
func New(cfg config.LogConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("無効なログレベル: %w", err)
	}
	logger.SetLevel(lvl)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("ログファイルを開けません: %w", err)
		}
		logger.SetOutput(file)
		closer = file
	}

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
