package camera

import (
	"context"
	"fmt"
	"strings"
)

// DeviceKind は物理カメラユニットの種類を表す
type DeviceKind string

const (
	KindTelephoto DeviceKind = "telephoto"  // 望遠カメラ
	KindDualWide  DeviceKind = "dual_wide"  // デュアル広角カメラ
	KindWideAngle DeviceKind = "wide_angle" // 広角カメラ
	KindOther     DeviceKind = "other"      // その他
)

// ParseDeviceKind は文字列からDeviceKindを解析する
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch DeviceKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindTelephoto:
		return KindTelephoto, nil
	case KindDualWide:
		return KindDualWide, nil
	case KindWideAngle:
		return KindWideAngle, nil
	case KindOther:
		return KindOther, nil
	default:
		return "", fmt.Errorf("不明なカメラ種別: %q", s)
	}
}

// Position はカメラの取り付け位置を表す
type Position string

const (
	PositionBack        Position = "back"
	PositionFront       Position = "front"
	PositionUnspecified Position = "unspecified"
)

// ParsePosition は文字列からPositionを解析する
func ParsePosition(s string) (Position, error) {
	switch Position(strings.ToLower(strings.TrimSpace(s))) {
	case PositionBack:
		return PositionBack, nil
	case PositionFront:
		return PositionFront, nil
	case PositionUnspecified, "":
		return PositionUnspecified, nil
	default:
		return "", fmt.Errorf("不明なカメラ位置: %q", s)
	}
}

// FocusMode はフォーカスモード
type FocusMode string

const (
	FocusModeLocked         FocusMode = "locked"
	FocusModeAuto           FocusMode = "auto"
	FocusModeContinuousAuto FocusMode = "continuous_auto"
)

// ExposureMode は露出モード
type ExposureMode string

const (
	ExposureModeLocked         ExposureMode = "locked"
	ExposureModeAuto           ExposureMode = "auto"
	ExposureModeContinuousAuto ExposureMode = "continuous_auto"
)

// Preset はキャプチャセッションの品質プリセット
type Preset string

const (
	PresetPhoto  Preset = "photo"
	PresetHigh   Preset = "high"
	PresetMedium Preset = "medium"
)

// VideoGravity はプレビューレイヤーの表示方法
type VideoGravity string

const (
	GravityResizeAspectFill VideoGravity = "resize_aspect_fill"
	GravityResizeAspect     VideoGravity = "resize_aspect"
	GravityResize           VideoGravity = "resize"
)

// DeviceInfo は選択判断に必要なカメラユニットの属性
type DeviceInfo struct {
	ID                           string     `json:"id"`
	Name                         string     `json:"name"`
	Kind                         DeviceKind `json:"kind"`
	Position                     Position   `json:"position"`
	MaxZoomFactor                float64    `json:"max_zoom_factor"`
	SupportsLockedFocus          bool       `json:"supports_locked_focus"`
	SupportsFocusDistanceControl bool       `json:"supports_focus_distance_control"`
	SupportsLockedExposure       bool       `json:"supports_locked_exposure"`
	SupportsSmoothAutoFocus      bool       `json:"supports_smooth_auto_focus"`
}

// Parameters はデバイスに現在適用されているキャプチャパラメータ
type Parameters struct {
	FocusMode              FocusMode    `json:"focus_mode"`
	LensPosition           float64      `json:"lens_position"`
	ExposureMode           ExposureMode `json:"exposure_mode"`
	SmoothAutoFocusEnabled bool         `json:"smooth_auto_focus_enabled"`
	ZoomFactor             float64      `json:"zoom_factor"`
}

// Device は物理カメラユニットへの不透明なハンドル
//
// パラメータの変更はLockForConfigurationで排他ロックを取得している間のみ許可される。
type Device interface {
	// Info はデバイスの属性を返す
	Info() DeviceInfo

	// Parameters は現在のパラメータを返す
	Parameters() Parameters

	// LockForConfiguration はデバイスの排他設定ロックを取得する
	LockForConfiguration() error

	// UnlockForConfiguration は排他設定ロックを解放する
	UnlockForConfiguration()

	SetFocusMode(mode FocusMode) error
	SetFocusLensPosition(position float64) error
	SetExposureMode(mode ExposureMode) error
	SetSmoothAutoFocusEnabled(enabled bool) error
	SetZoomFactor(factor float64) error
}

// DiscoveryQuery はデバイス検出の条件
type DiscoveryQuery struct {
	Kinds    []DeviceKind
	Position Position
}

// DefaultDiscoveryQuery は背面の望遠・デュアル広角・広角カメラを対象とする検出条件を返す
func DefaultDiscoveryQuery() DiscoveryQuery {
	return DiscoveryQuery{
		Kinds:    []DeviceKind{KindTelephoto, KindDualWide, KindWideAngle},
		Position: PositionBack,
	}
}

// Matches はデバイスが条件を満たすか判定する
func (q DiscoveryQuery) Matches(info DeviceInfo) bool {
	if q.Position != "" && q.Position != PositionUnspecified && info.Position != q.Position {
		return false
	}
	if len(q.Kinds) == 0 {
		return true
	}
	for _, kind := range q.Kinds {
		if info.Kind == kind {
			return true
		}
	}
	return false
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// DiscoverDevices は条件に一致するデバイスを列挙順で返す
	DiscoverDevices(ctx context.Context, query DiscoveryQuery) ([]Device, error)
}

// SessionState はキャプチャセッションの状態を表す
type SessionState string

const (
	StateUnconfigured SessionState = "unconfigured"
	StateConfiguring  SessionState = "configuring"
	StateConfigured   SessionState = "configured"
	StateRunning      SessionState = "running"
	StateStopped      SessionState = "stopped"
)
