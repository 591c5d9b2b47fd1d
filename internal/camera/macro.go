package camera

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultZoomThreshold はズーム倍率の上限（これを超える最大倍率を持つデバイスはこの値に固定する）
	DefaultZoomThreshold = 2.5

	// DefaultFocusLensPosition は正規化されたレンズ位置の最近接端
	DefaultFocusLensPosition = 1.0
)

// MacroPolicy はマクロ撮影用のロック設定
type MacroPolicy struct {
	FocusLensPosition float64 `json:"focus_lens_position"`
	ZoomThreshold     float64 `json:"zoom_threshold"`
}

// DefaultMacroPolicy はデフォルトのマクロ設定を返す
func DefaultMacroPolicy() MacroPolicy {
	return MacroPolicy{
		FocusLensPosition: DefaultFocusLensPosition,
		ZoomThreshold:     DefaultZoomThreshold,
	}
}

// MacroReport はマクロ設定の適用結果
//
// 途中で失敗した場合は、失敗までに適用できた項目だけがtrueになる。
type MacroReport struct {
	DeviceID                string  `json:"device_id"`
	FocusLocked             bool    `json:"focus_locked"`
	LensPositionSet         bool    `json:"lens_position_set"`
	ExposureLocked          bool    `json:"exposure_locked"`
	SmoothAutoFocusDisabled bool    `json:"smooth_auto_focus_disabled"`
	ZoomClamped             bool    `json:"zoom_clamped"`
	ZoomFactor              float64 `json:"zoom_factor"`
	Error                   string  `json:"error,omitempty"`

	Err error `json:"-"`
}

// Failed はロック設定が途中で失敗したかを返す
func (r MacroReport) Failed() bool {
	return r.Err != nil
}

// WithConfigurationLock はデバイスの排他設定ロックを取得してfnを実行する
// ロックはfnがエラーを返した場合やパニックした場合も必ず解放される
func WithConfigurationLock(dev Device, fn func() error) error {
	if err := dev.LockForConfiguration(); err != nil {
		return fmt.Errorf("%w: 設定ロックの取得に失敗: %w", ErrLockFailed, err)
	}
	defer dev.UnlockForConfiguration()

	return fn()
}

// ApplyMacroLocks はデバイスにマクロ撮影用のパラメータを順番に適用する
//
// 適用順: フォーカス固定（+最近接レンズ位置）→ 露出固定 → スムーズAF無効化 → ズーム上限。
// 失敗はlock_failedとしてログに記録し、レポートに残すだけでエラーとしては返さない。
func ApplyMacroLocks(dev Device, policy MacroPolicy, log logrus.FieldLogger) (report MacroReport) {
	info := dev.Info()
	report.DeviceID = info.ID
	report.ZoomFactor = dev.Parameters().ZoomFactor

	defer func() {
		if r := recover(); r != nil {
			report.Err = fmt.Errorf("%w: パニックが発生: %v", ErrLockFailed, r)
		}
		if report.Err != nil {
			report.Error = report.Err.Error()
			log.WithError(report.Err).
				WithField("device", info.ID).
				Warn("lock_failed: マクロ設定を部分的に適用したまま続行します")
		}
	}()

	err := WithConfigurationLock(dev, func() error {
		if info.SupportsLockedFocus {
			if err := dev.SetFocusMode(FocusModeLocked); err != nil {
				return fmt.Errorf("フォーカスモードの設定に失敗: %w", err)
			}
			report.FocusLocked = true

			if info.SupportsFocusDistanceControl {
				if err := dev.SetFocusLensPosition(policy.FocusLensPosition); err != nil {
					return fmt.Errorf("レンズ位置の設定に失敗: %w", err)
				}
				report.LensPositionSet = true
			}
		}

		if info.SupportsLockedExposure {
			if err := dev.SetExposureMode(ExposureModeLocked); err != nil {
				return fmt.Errorf("露出モードの設定に失敗: %w", err)
			}
			report.ExposureLocked = true
		}

		// フォーカス変化をアニメーションさせない
		if info.SupportsSmoothAutoFocus {
			if err := dev.SetSmoothAutoFocusEnabled(false); err != nil {
				return fmt.Errorf("スムーズAFの無効化に失敗: %w", err)
			}
			report.SmoothAutoFocusDisabled = true
		}

		if info.MaxZoomFactor > policy.ZoomThreshold {
			if err := dev.SetZoomFactor(policy.ZoomThreshold); err != nil {
				return fmt.Errorf("ズーム倍率の設定に失敗: %w", err)
			}
			report.ZoomClamped = true
		}

		return nil
	})

	report.ZoomFactor = dev.Parameters().ZoomFactor
	if err != nil {
		if !errors.Is(err, ErrLockFailed) {
			err = fmt.Errorf("%w: %w", ErrLockFailed, err)
		}
		report.Err = err
	}

	return report
}
