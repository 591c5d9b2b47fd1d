package channel

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"irida/internal/camera"
)

// チャンネル名とメソッド名
const (
	ProbeChannelName   = "irida.camera/probe"
	ControlChannelName = "irida.camera/control"

	MethodRunProbe        = "runProbe"
	MethodStartPreview    = "startPreview"
	MethodStopPreview     = "stopPreview"
	MethodGetState        = "getState"
	MethodEvaluateQuality = "evaluateQuality"
)

// エラーコード
const (
	CodeNoDevice           = "NO_DEVICE"
	CodeInputAttachFailed  = "INPUT_ATTACH_FAILED"
	CodeOutputAttachFailed = "OUTPUT_ATTACH_FAILED"
	CodeSessionClosed      = "SESSION_CLOSED"
	CodeNotRunning         = "NOT_RUNNING"
	CodeFrameCaptureFailed = "FRAME_CAPTURE_FAILED"
	CodeNotImplemented     = "not_implemented"
	CodeInternal           = "internal"
)

// NewProbeChannel はrunProbeだけを持つプローブ用チャンネルを作成する
func NewProbeChannel(host *camera.Host, log logrus.FieldLogger) *Channel {
	ch := New(ProbeChannelName, log)
	ch.Register(MethodRunProbe, func(ctx context.Context, _ MethodCall) (any, error) {
		return host.Probe(ctx)
	})
	return ch
}

// NewControlChannel はプレビューの開始・停止、状態取得、品質判定を持つチャンネルを作成する
func NewControlChannel(host *camera.Host, log logrus.FieldLogger) *Channel {
	ch := New(ControlChannelName, log)

	ch.Register(MethodStartPreview, func(_ context.Context, _ MethodCall) (any, error) {
		host.StartPreview()
		return map[string]any{"accepted": true}, nil
	})
	ch.Register(MethodStopPreview, func(_ context.Context, _ MethodCall) (any, error) {
		host.StopPreview()
		return map[string]any{"accepted": true}, nil
	})
	ch.Register(MethodGetState, func(_ context.Context, _ MethodCall) (any, error) {
		return host.Session().Snapshot(), nil
	})
	ch.Register(MethodEvaluateQuality, func(ctx context.Context, _ MethodCall) (any, error) {
		return host.EvaluateQuality(ctx)
	})

	return ch
}

// NewCameraRegistry はカメラ用のチャンネルを登録したRegistryを作成する
func NewCameraRegistry(host *camera.Host, log logrus.FieldLogger) *Registry {
	registry := NewRegistry()
	registry.Add(ProbeChannelName, NewProbeChannel(host, log))
	registry.Add(ControlChannelName, NewControlChannel(host, log))
	return registry
}

// ToError はエラーを呼び出し元に返す構造化エラーに変換する
func ToError(err error) *Error {
	var chErr *Error
	switch {
	case errors.As(err, &chErr):
		return chErr
	case errors.Is(err, ErrNotImplemented):
		return &Error{Code: CodeNotImplemented, Message: "メソッドは実装されていません"}
	case errors.Is(err, camera.ErrNoDeviceFound):
		return &Error{Code: CodeNoDevice, Message: "利用可能なカメラがありません"}
	case errors.Is(err, camera.ErrInputAttachFailed):
		return &Error{Code: CodeInputAttachFailed, Message: "カメラ入力を追加できません", Details: err.Error()}
	case errors.Is(err, camera.ErrOutputAttachFailed):
		return &Error{Code: CodeOutputAttachFailed, Message: "静止画出力を追加できません", Details: err.Error()}
	case errors.Is(err, camera.ErrNotRunning):
		return &Error{Code: CodeNotRunning, Message: "キャプチャが開始されていません"}
	case errors.Is(err, camera.ErrFrameCaptureFailed):
		return &Error{Code: CodeFrameCaptureFailed, Message: "フレームを取得できません", Details: err.Error()}
	case errors.Is(err, camera.ErrSessionClosed):
		return &Error{Code: CodeSessionClosed, Message: "セッションは破棄されています"}
	default:
		return &Error{Code: CodeInternal, Message: err.Error()}
	}
}
