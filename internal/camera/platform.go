package camera

import "image"

// Rect はプレビュー面の表示領域
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DeviceInput はセッションに追加するデバイス入力
type DeviceInput interface {
	Device() Device
}

// PhotoOutput は静止画の出力先
type PhotoOutput interface {
	ID() string
}

// PreviewLayer はセッションの映像を表示するレイヤー
type PreviewLayer interface {
	SetVideoGravity(gravity VideoGravity)
	SetFrame(frame Rect)
}

// PreviewSurface はプレビューレイヤーを載せる表示面（UI側が所有する）
type PreviewSurface interface {
	Bounds() Rect
	AddSublayer(layer PreviewLayer)
}

// Pipeline はプラットフォームのキャプチャパイプライン
//
// BeginConfigurationからCommitConfigurationまでの変更はまとめて反映される。
// RollbackConfigurationは未反映の変更を破棄する。
type Pipeline interface {
	BeginConfiguration()
	CommitConfiguration()
	RollbackConfiguration()

	SetPreset(preset Preset) error
	AddInput(input DeviceInput) error
	AddOutput(output PhotoOutput) error
	RemoveInput(input DeviceInput)
	RemoveOutput(output PhotoOutput)

	StartRunning() error
	StopRunning()
	IsRunning() bool

	// CaptureFrame は実行中のパイプラインから現在のフレームを1枚取得する
	CaptureFrame() (image.Image, error)
}

// Platform はプラットフォームのカメラ機能をまとめたもの
type Platform interface {
	Discovery

	// NewPipeline は新しいキャプチャパイプラインを作成する
	NewPipeline() Pipeline

	// NewDeviceInput はデバイスの入力を作成する（使用中・権限なし等で失敗しうる）
	NewDeviceInput(dev Device) (DeviceInput, error)

	// NewPhotoOutput は静止画出力を作成する
	NewPhotoOutput() (PhotoOutput, error)

	// NewPreviewLayer はパイプラインの映像を表示するレイヤーを作成する
	NewPreviewLayer(pipeline Pipeline) PreviewLayer
}
