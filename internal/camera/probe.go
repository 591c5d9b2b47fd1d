package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProbeReport はネイティブカメラ層の状態と能力のレポート
type ProbeReport struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Query          ProbeQuery        `json:"query"`
	Devices        []DeviceInfo      `json:"devices"`
	Selected       *DeviceInfo       `json:"selected,omitempty"`
	SelectionError string            `json:"selection_error,omitempty"`
	Policy         MacroPolicy       `json:"policy"`
	Quality        QualityThresholds `json:"quality"`
	Preset         Preset            `json:"preset"`
	Session        SessionSnapshot   `json:"session"`
}

// ProbeQuery はレポートに含める検出条件
type ProbeQuery struct {
	Kinds    []DeviceKind `json:"kinds"`
	Position Position     `json:"position"`
}

// RunProbe はデバイスを検出し、選択結果とセッション状態をまとめる
//
// 選択は判断のみで、入力の追加やロック設定は行わない。
func RunProbe(ctx context.Context, discovery Discovery, opts SessionOptions, session *CaptureSession) (*ProbeReport, error) {
	devices, err := discovery.DiscoverDevices(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("デバイスの検出に失敗: %w", err)
	}

	report := &ProbeReport{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Query: ProbeQuery{
			Kinds:    opts.Query.Kinds,
			Position: opts.Query.Position,
		},
		Devices: make([]DeviceInfo, 0, len(devices)),
		Policy:  opts.Macro,
		Quality: opts.Quality,
		Preset:  opts.Preset,
	}
	for _, dev := range devices {
		report.Devices = append(report.Devices, dev.Info())
	}

	selected, err := SelectDevice(devices)
	switch {
	case errors.Is(err, ErrNoDeviceFound):
		report.SelectionError = err.Error()
	case err != nil:
		return nil, err
	default:
		info := selected.Info()
		report.Selected = &info
	}

	if session != nil {
		report.Session = session.Snapshot()
	}

	return report, nil
}
