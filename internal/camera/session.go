package camera

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionOptions はキャプチャセッションの設定
type SessionOptions struct {
	Preset       Preset
	Query        DiscoveryQuery
	Macro        MacroPolicy
	VideoGravity VideoGravity
	Quality      QualityThresholds

	// AllowPreviewOnly がtrueの場合、静止画出力の追加に失敗しても
	// プレビューのみのセッションとして構成を確定する
	AllowPreviewOnly bool
}

// DefaultSessionOptions はデフォルトのセッション設定を返す
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		Preset:       PresetPhoto,
		Query:        DefaultDiscoveryQuery(),
		Macro:        DefaultMacroPolicy(),
		VideoGravity: GravityResizeAspectFill,
		Quality:      DefaultQualityThresholds(),
	}
}

// SessionSnapshot はある時点のセッションの状態
type SessionSnapshot struct {
	ID              string         `json:"id"`
	State           SessionState   `json:"state"`
	Device          *DeviceInfo    `json:"device,omitempty"`
	Parameters      *Parameters    `json:"parameters,omitempty"`
	HasInput        bool           `json:"has_input"`
	HasOutput       bool           `json:"has_output"`
	PreviewAttached bool           `json:"preview_attached"`
	LockFailures    int            `json:"lock_failures"`
	Macro           *MacroReport   `json:"macro,omitempty"`
	Quality         *QualityReport `json:"quality,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
}

// CaptureSession は1台のデバイス入力と1つの静止画出力を持つキャプチャセッション
//
// 構成・開始・停止はすべてセッション専用のキュー上で直列に実行される。
// プレビュー面への追加だけはUIキュー上で実行される。
type CaptureSession struct {
	id       string
	platform Platform
	opts     SessionOptions
	log      logrus.FieldLogger

	queue    *SerialQueue
	main     *SerialQueue
	pipeline Pipeline

	// 以下はキュー上でのみ読み書きする
	selected       Device
	selectErr      error
	selectDone     bool
	attachedTo     PreviewSurface
	closeRequested bool

	// 以下はキュー上で書き込み、muを介して読み出す
	mu              sync.RWMutex
	state           SessionState
	device          Device
	input           DeviceInput
	output          PhotoOutput
	preview         PreviewLayer
	previewAttached bool
	macro           *MacroReport
	quality         *QualityReport
	lockFailures    int
	lastErr         error

	closeOnce sync.Once
}

// NewCaptureSession は新しいCaptureSessionを作成する
// mainはプレビュー面を操作するUIキュー
func NewCaptureSession(platform Platform, main *SerialQueue, opts SessionOptions, log logrus.FieldLogger) *CaptureSession {
	id := uuid.New().String()
	log = log.WithField("session", id)

	return &CaptureSession{
		id:       id,
		platform: platform,
		opts:     opts,
		log:      log,
		queue:    NewSerialQueue("irida.camera.session", log),
		main:     main,
		pipeline: platform.NewPipeline(),
		state:    StateUnconfigured,
	}
}

// ID はセッションIDを返す
func (s *CaptureSession) ID() string {
	return s.id
}

// Configure はデバイスを選択してセッションを構成する
//
// 入力と出力の追加は1つのトランザクションで確定し、失敗した場合は何も確定しない。
// 確定後にマクロ設定を適用するが、その失敗はエラーとして返さない。
func (s *CaptureSession) Configure(ctx context.Context) error {
	result := make(chan error, 1)
	if !s.queue.Async(func() {
		result <- s.configure(ctx)
	}) {
		return ErrSessionClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start はプレビューとキャプチャを非同期に開始する
// 呼び出し元をブロックしない
func (s *CaptureSession) Start(surface PreviewSurface) {
	if !s.queue.Async(func() { s.start(surface) }) {
		s.log.Warn("破棄済みのセッションは開始できません")
	}
}

// Stop はキャプチャを非同期に停止する
// 既に停止している場合は何もしない
func (s *CaptureSession) Stop() {
	s.queue.Async(s.stop)
}

// Wait はそれまでに投入されたセッション処理とUI処理が終わるまで待つ
func (s *CaptureSession) Wait() {
	s.queue.Flush()
	s.main.Flush()
}

// Close はセッションを停止し、デバイス・入力・出力への参照を解放する
func (s *CaptureSession) Close() {
	s.closeOnce.Do(func() {
		s.queue.Async(func() {
			s.stop()
			s.release()
		})
		s.queue.Close()
	})
}

// EvaluateQuality は実行中のキャプチャからフレームを1枚取得して品質を判定する
func (s *CaptureSession) EvaluateQuality(ctx context.Context) (*QualityReport, error) {
	type result struct {
		report *QualityReport
		err    error
	}
	ch := make(chan result, 1)
	if !s.queue.Async(func() {
		report, err := s.evaluateQuality()
		ch <- result{report, err}
	}) {
		return nil, ErrSessionClosed
	}

	select {
	case r := <-ch:
		return r.report, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot は現在の状態を返す
func (s *CaptureSession) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := SessionSnapshot{
		ID:              s.id,
		State:           s.state,
		HasInput:        s.input != nil,
		HasOutput:       s.output != nil,
		PreviewAttached: s.previewAttached,
		LockFailures:    s.lockFailures,
	}
	if s.device != nil {
		info := s.device.Info()
		params := s.device.Parameters()
		snap.Device = &info
		snap.Parameters = &params
	}
	if s.macro != nil {
		report := *s.macro
		snap.Macro = &report
	}
	if s.quality != nil {
		report := *s.quality
		snap.Quality = &report
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

// State は現在の状態を返す
func (s *CaptureSession) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LockFailures はロック設定に失敗した回数を返す
func (s *CaptureSession) LockFailures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockFailures
}

// configure はキュー上で構成を実行する
func (s *CaptureSession) configure(ctx context.Context) (err error) {
	if s.closeRequested {
		return ErrSessionClosed
	}
	if s.isConfigured() {
		return nil
	}

	dev, err := s.selectDevice(ctx)
	if err != nil {
		s.setError(err)
		s.log.WithError(err).Error("カメラが利用できません")
		return err
	}

	previous := s.State()
	s.setState(StateConfiguring)

	s.pipeline.BeginConfiguration()
	committed := false
	defer func() {
		if !committed {
			s.pipeline.RollbackConfiguration()
			s.setState(previous)
			s.setError(err)
		}
	}()

	if err := s.pipeline.SetPreset(s.opts.Preset); err != nil {
		s.log.WithError(err).WithField("preset", s.opts.Preset).Warn("プリセットを設定できません")
	}

	input, err := s.platform.NewDeviceInput(dev)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInputAttachFailed, err)
	}
	if err := s.pipeline.AddInput(input); err != nil {
		return fmt.Errorf("%w: %w", ErrInputAttachFailed, err)
	}

	output, err := s.attachOutput()
	if err != nil {
		if !s.opts.AllowPreviewOnly {
			return err
		}
		s.log.WithError(err).Warn("静止画出力なしのプレビュー専用セッションとして続行します")
		output = nil
		err = nil
	}

	s.pipeline.CommitConfiguration()
	committed = true

	s.mu.Lock()
	s.device = dev
	s.input = input
	s.output = output
	s.state = StateConfigured
	s.lastErr = nil
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"device": dev.Info().ID,
		"kind":   dev.Info().Kind,
	}).Info("セッションを構成しました")

	report := ApplyMacroLocks(dev, s.opts.Macro, s.log)

	s.mu.Lock()
	s.macro = &report
	if report.Failed() {
		s.lockFailures++
	}
	s.mu.Unlock()

	return nil
}

// selectDevice はセッションごとに一度だけデバイスを選択する
func (s *CaptureSession) selectDevice(ctx context.Context) (Device, error) {
	if s.selectDone {
		return s.selected, s.selectErr
	}

	dev, _, err := DiscoverAndSelect(ctx, s.platform, s.opts.Query)
	if err != nil && !errors.Is(err, ErrNoDeviceFound) {
		// 検出自体の失敗は次回の構成で再試行する
		return nil, err
	}

	s.selected = dev
	s.selectErr = err
	s.selectDone = true
	return dev, err
}

func (s *CaptureSession) attachOutput() (PhotoOutput, error) {
	output, err := s.platform.NewPhotoOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputAttachFailed, err)
	}
	if err := s.pipeline.AddOutput(output); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputAttachFailed, err)
	}
	return output, nil
}

// start はキュー上でプレビューとキャプチャを開始する
// プレビュー面への追加はキャプチャの開始に成功してから行う
func (s *CaptureSession) start(surface PreviewSurface) {
	if s.closeRequested {
		return
	}
	if !s.isConfigured() {
		if err := s.configure(context.Background()); err != nil {
			s.log.WithError(err).Error("セッションを構成できないためプレビューを開始できません")
			return
		}
	}

	if !s.pipeline.IsRunning() {
		if err := s.pipeline.StartRunning(); err != nil {
			s.setError(err)
			s.log.WithError(err).Error("キャプチャを開始できません")
			return
		}
		s.setState(StateRunning)
		s.log.Info("キャプチャを開始しました")
	}

	s.attachPreview(surface)
}

// attachPreview はプレビューレイヤーをUIキュー上で表示面に追加する
// 同じ表示面には一度だけ追加する
func (s *CaptureSession) attachPreview(surface PreviewSurface) {
	if surface == nil || (s.attachedTo != nil && sameSurface(s.attachedTo, surface)) {
		return
	}

	s.mu.RLock()
	layer := s.preview
	s.mu.RUnlock()
	if layer == nil {
		layer = s.platform.NewPreviewLayer(s.pipeline)
		layer.SetVideoGravity(s.opts.VideoGravity)
		s.mu.Lock()
		s.preview = layer
		s.mu.Unlock()
	}

	s.attachedTo = surface
	s.main.Async(func() {
		layer.SetFrame(surface.Bounds())
		surface.AddSublayer(layer)

		s.mu.Lock()
		s.previewAttached = true
		s.mu.Unlock()
	})
}

// sameSurface は2つの表示面が同一かを判定する
// 比較できない動的型でもパニックしない
func sameSurface(a, b PreviewSurface) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Kind() == reflect.Pointer {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// evaluateQuality はキュー上でフレームを取得して品質を判定する
func (s *CaptureSession) evaluateQuality() (*QualityReport, error) {
	if s.closeRequested {
		return nil, ErrSessionClosed
	}
	if !s.pipeline.IsRunning() {
		return nil, ErrNotRunning
	}

	frame, err := s.pipeline.CaptureFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFrameCaptureFailed, err)
	}

	report := EvaluateFrame(frame, s.opts.Quality)
	s.mu.Lock()
	s.quality = &report
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"score":    report.Score,
		"accepted": report.Accepted,
		"flags":    len(report.Flags),
	}).Debug("フレームの品質を判定しました")

	return &report, nil
}

// stop はキュー上でキャプチャを停止する
func (s *CaptureSession) stop() {
	if s.pipeline.IsRunning() {
		s.pipeline.StopRunning()
		s.log.Info("キャプチャを停止しました")
	}
	s.setState(StateStopped)
}

// release は入力・出力・デバイスへの参照を解放する
func (s *CaptureSession) release() {
	s.closeRequested = true

	s.mu.Lock()
	input, output := s.input, s.output
	s.device = nil
	s.input = nil
	s.output = nil
	s.preview = nil
	s.previewAttached = false
	s.quality = nil
	s.mu.Unlock()

	if input == nil && output == nil {
		return
	}

	s.pipeline.BeginConfiguration()
	if input != nil {
		s.pipeline.RemoveInput(input)
	}
	if output != nil {
		s.pipeline.RemoveOutput(output)
	}
	s.pipeline.CommitConfiguration()

	s.selected = nil
	s.attachedTo = nil
}

func (s *CaptureSession) isConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.input != nil
}

func (s *CaptureSession) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *CaptureSession) setError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
