package camera

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// HostOptions はHostの設定
type HostOptions struct {
	Session SessionOptions

	// Surface はプレビューを表示する面（省略時はプレビューなしで開始する）
	Surface PreviewSurface
}

// Host はカメラセッションとUIキューを所有する明示的なコンテキスト
//
// プレビュー面の所有者とメソッドチャンネルのハンドラに注入して使う。
// 生成時にセッションを作り、Closeでセッションを破棄する。
type Host struct {
	platform Platform
	opts     HostOptions
	log      logrus.FieldLogger

	main    *SerialQueue
	session *CaptureSession

	startedAt time.Time
	closeOnce sync.Once
}

// NewHost は新しいHostを作成する
func NewHost(platform Platform, opts HostOptions, log logrus.FieldLogger) *Host {
	main := NewSerialQueue("irida.camera.main", log)

	return &Host{
		platform:  platform,
		opts:      opts,
		log:       log,
		main:      main,
		session:   NewCaptureSession(platform, main, opts.Session, log),
		startedAt: time.Now(),
	}
}

// Session はキャプチャセッションを返す
func (h *Host) Session() *CaptureSession {
	return h.session
}

// Options はHostの設定を返す
func (h *Host) Options() HostOptions {
	return h.opts
}

// StartedAt はHostの生成時刻を返す
func (h *Host) StartedAt() time.Time {
	return h.startedAt
}

// Configure はセッションを構成する
func (h *Host) Configure(ctx context.Context) error {
	return h.session.Configure(ctx)
}

// StartPreview はHostの表示面でプレビューを開始する
func (h *Host) StartPreview() {
	h.session.Start(h.opts.Surface)
}

// StopPreview はプレビューを停止する
func (h *Host) StopPreview() {
	h.session.Stop()
}

// Wait は投入済みの処理が終わるまで待つ
func (h *Host) Wait() {
	h.session.Wait()
}

// EvaluateQuality は実行中のキャプチャの品質を判定する
func (h *Host) EvaluateQuality(ctx context.Context) (*QualityReport, error) {
	return h.session.EvaluateQuality(ctx)
}

// Probe はカメラ層の状態レポートを作成する
func (h *Host) Probe(ctx context.Context) (*ProbeReport, error) {
	return RunProbe(ctx, h.platform, h.opts.Session, h.session)
}

// Close はセッションを破棄し、UIキューを停止する
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		h.session.Close()
		h.main.Close()
		h.log.Info("カメラホストを終了しました")
	})
}
