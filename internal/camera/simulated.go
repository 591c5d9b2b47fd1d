package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrDeviceNotLocked は設定ロックなしでパラメータを変更しようとしたことを示す
	ErrDeviceNotLocked = errors.New("デバイスが設定ロックされていません")

	// ErrDeviceBusy はデバイスが他で使用中であることを示す
	ErrDeviceBusy = errors.New("デバイスは使用中です")
)

// SimulatedDevice はメモリ上で動作するカメラデバイス
// テストや実機のない環境でのホスト実行に使用する
type SimulatedDevice struct {
	info DeviceInfo

	mu          sync.Mutex
	params      Parameters
	locked      bool
	lockCount   int
	unlockCount int
	lockErr     error
	busy        bool
	failures    map[string]error
	calls       []string
}

// SimulatedDeviceの操作名（SetFailureで使用する）
const (
	OpFocusMode       = "focus_mode"
	OpLensPosition    = "lens_position"
	OpExposureMode    = "exposure_mode"
	OpSmoothAutoFocus = "smooth_auto_focus"
	OpZoom            = "zoom"
)

// NewSimulatedDevice は新しいSimulatedDeviceを作成する
func NewSimulatedDevice(info DeviceInfo) *SimulatedDevice {
	if info.ID == "" {
		info.ID = uuid.New().String()
	}
	if info.Name == "" {
		info.Name = fmt.Sprintf("Simulated %s camera", info.Kind)
	}
	if info.MaxZoomFactor < 1 {
		info.MaxZoomFactor = 1
	}

	return &SimulatedDevice{
		info: info,
		params: Parameters{
			FocusMode:              FocusModeContinuousAuto,
			LensPosition:           0.5,
			ExposureMode:           ExposureModeContinuousAuto,
			SmoothAutoFocusEnabled: info.SupportsSmoothAutoFocus,
			ZoomFactor:             1.0,
		},
		failures: make(map[string]error),
	}
}

// Info はデバイスの属性を返す
func (d *SimulatedDevice) Info() DeviceInfo {
	return d.info
}

// Parameters は現在のパラメータを返す
func (d *SimulatedDevice) Parameters() Parameters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// LockForConfiguration は設定ロックを取得する
func (d *SimulatedDevice) LockForConfiguration() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, "lock")
	if d.lockErr != nil {
		return d.lockErr
	}
	if d.locked {
		return fmt.Errorf("デバイス %s は既にロックされています", d.info.ID)
	}
	d.locked = true
	d.lockCount++
	return nil
}

// UnlockForConfiguration は設定ロックを解放する
func (d *SimulatedDevice) UnlockForConfiguration() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, "unlock")
	if d.locked {
		d.locked = false
		d.unlockCount++
	}
}

// SetFocusMode はフォーカスモードを設定する
func (d *SimulatedDevice) SetFocusMode(mode FocusMode) error {
	return d.apply(OpFocusMode, func() error {
		if mode == FocusModeLocked && !d.info.SupportsLockedFocus {
			return fmt.Errorf("フォーカスモード %s は未対応です", mode)
		}
		d.params.FocusMode = mode
		return nil
	})
}

// SetFocusLensPosition はレンズ位置を設定する
func (d *SimulatedDevice) SetFocusLensPosition(position float64) error {
	return d.apply(OpLensPosition, func() error {
		if !d.info.SupportsFocusDistanceControl {
			return errors.New("レンズ位置の指定は未対応です")
		}
		if position < 0 || position > 1 {
			return fmt.Errorf("レンズ位置が範囲外です: %v", position)
		}
		d.params.FocusMode = FocusModeLocked
		d.params.LensPosition = position
		return nil
	})
}

// SetExposureMode は露出モードを設定する
func (d *SimulatedDevice) SetExposureMode(mode ExposureMode) error {
	return d.apply(OpExposureMode, func() error {
		if mode == ExposureModeLocked && !d.info.SupportsLockedExposure {
			return fmt.Errorf("露出モード %s は未対応です", mode)
		}
		d.params.ExposureMode = mode
		return nil
	})
}

// SetSmoothAutoFocusEnabled はスムーズAFの有効/無効を設定する
func (d *SimulatedDevice) SetSmoothAutoFocusEnabled(enabled bool) error {
	return d.apply(OpSmoothAutoFocus, func() error {
		if !d.info.SupportsSmoothAutoFocus {
			return errors.New("スムーズAFは未対応です")
		}
		d.params.SmoothAutoFocusEnabled = enabled
		return nil
	})
}

// SetZoomFactor はズーム倍率を設定する
func (d *SimulatedDevice) SetZoomFactor(factor float64) error {
	return d.apply(OpZoom, func() error {
		if factor < 1 || factor > d.info.MaxZoomFactor {
			return fmt.Errorf("ズーム倍率が範囲外です: %v (最大 %v)", factor, d.info.MaxZoomFactor)
		}
		d.params.ZoomFactor = factor
		return nil
	})
}

func (d *SimulatedDevice) apply(op string, fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, op)
	if !d.locked {
		return ErrDeviceNotLocked
	}
	if err := d.failures[op]; err != nil {
		return err
	}
	return fn()
}

// SetLockError はテスト用にロック取得の失敗を設定する
func (d *SimulatedDevice) SetLockError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lockErr = err
}

// SetFailure はテスト用に指定した操作の失敗を設定する
func (d *SimulatedDevice) SetFailure(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failures, op)
		return
	}
	d.failures[op] = err
}

// SetBusy はデバイスを使用中にする（入力の作成が失敗する）
func (d *SimulatedDevice) SetBusy(busy bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = busy
}

// IsLocked は設定ロック中かを返す
func (d *SimulatedDevice) IsLocked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// LockCounts はロック取得と解放の回数を返す
func (d *SimulatedDevice) LockCounts() (locks, unlocks int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lockCount, d.unlockCount
}

// Calls はこれまでに呼ばれた操作を順番に返す
func (d *SimulatedDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *SimulatedDevice) isBusy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.busy
}

// simulatedInput はSimulatedPlatformのデバイス入力
type simulatedInput struct {
	device Device
}

func (i *simulatedInput) Device() Device {
	return i.device
}

// simulatedOutput はSimulatedPlatformの静止画出力
type simulatedOutput struct {
	id string
}

func (o *simulatedOutput) ID() string {
	return o.id
}

// SimulatedPipeline はメモリ上のキャプチャパイプライン
type SimulatedPipeline struct {
	mu sync.Mutex

	startErr   error
	captureErr error
	frame      image.Image

	configuring bool
	stagedIn    []DeviceInput
	stagedOut   []PhotoOutput
	stagedPre   Preset

	inputs    []DeviceInput
	outputs   []PhotoOutput
	preset    Preset
	running   bool
	commits   int
	rollbacks int
}

// BeginConfiguration は構成の変更を開始する
func (p *SimulatedPipeline) BeginConfiguration() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.configuring = true
	p.stagedIn = append([]DeviceInput(nil), p.inputs...)
	p.stagedOut = append([]PhotoOutput(nil), p.outputs...)
	p.stagedPre = p.preset
}

// CommitConfiguration は変更を反映する
func (p *SimulatedPipeline) CommitConfiguration() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configuring {
		return
	}
	p.inputs = p.stagedIn
	p.outputs = p.stagedOut
	p.preset = p.stagedPre
	p.configuring = false
	p.commits++
}

// RollbackConfiguration は未反映の変更を破棄する
func (p *SimulatedPipeline) RollbackConfiguration() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configuring {
		return
	}
	p.stagedIn = nil
	p.stagedOut = nil
	p.configuring = false
	p.rollbacks++
}

// SetPreset はプリセットを設定する
func (p *SimulatedPipeline) SetPreset(preset Preset) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configuring {
		return errors.New("構成中ではありません")
	}
	switch preset {
	case PresetPhoto, PresetHigh, PresetMedium:
		p.stagedPre = preset
		return nil
	default:
		return fmt.Errorf("未対応のプリセット: %s", preset)
	}
}

// AddInput は入力を追加する（1つまで）
func (p *SimulatedPipeline) AddInput(input DeviceInput) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configuring {
		return errors.New("構成中ではありません")
	}
	if len(p.stagedIn) > 0 {
		return errors.New("入力は既に追加されています")
	}
	p.stagedIn = append(p.stagedIn, input)
	return nil
}

// AddOutput は出力を追加する（1つまで）
func (p *SimulatedPipeline) AddOutput(output PhotoOutput) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.configuring {
		return errors.New("構成中ではありません")
	}
	if len(p.stagedOut) > 0 {
		return errors.New("出力は既に追加されています")
	}
	p.stagedOut = append(p.stagedOut, output)
	return nil
}

// RemoveInput は入力を取り除く
func (p *SimulatedPipeline) RemoveInput(input DeviceInput) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, in := range p.stagedIn {
		if in == input {
			p.stagedIn = append(p.stagedIn[:i:i], p.stagedIn[i+1:]...)
			return
		}
	}
}

// RemoveOutput は出力を取り除く
func (p *SimulatedPipeline) RemoveOutput(output PhotoOutput) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, out := range p.stagedOut {
		if out == output {
			p.stagedOut = append(p.stagedOut[:i:i], p.stagedOut[i+1:]...)
			return
		}
	}
}

// StartRunning はキャプチャを開始する
func (p *SimulatedPipeline) StartRunning() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startErr != nil {
		return p.startErr
	}
	if len(p.inputs) == 0 {
		return errors.New("入力がありません")
	}
	p.running = true
	return nil
}

// StopRunning はキャプチャを停止する
func (p *SimulatedPipeline) StopRunning() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// IsRunning はキャプチャ中かを返す
func (p *SimulatedPipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// CaptureFrame は現在のフレームを返す
// SetFrameで設定されていなければ縦縞の合成フレームを返す
func (p *SimulatedPipeline) CaptureFrame() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil, errors.New("キャプチャ中ではありません")
	}
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	if p.frame == nil {
		return SyntheticFrame(64, 64), nil
	}
	return p.frame, nil
}

// SetFrame はCaptureFrameが返すフレームを設定する
func (p *SimulatedPipeline) SetFrame(frame image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = frame
}

// SetCaptureError はテスト用にフレーム取得の失敗を設定する
func (p *SimulatedPipeline) SetCaptureError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captureErr = err
}

// SetStartError はテスト用にキャプチャ開始の失敗を設定する
func (p *SimulatedPipeline) SetStartError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = err
}

// SyntheticFrame は4画素幅の縦縞を持つグレースケール画像を作成する
func SyntheticFrame(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(80)
			if (x/4)%2 == 1 {
				v = 160
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// Inputs は確定済みの入力を返す
func (p *SimulatedPipeline) Inputs() []DeviceInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DeviceInput(nil), p.inputs...)
}

// Outputs は確定済みの出力を返す
func (p *SimulatedPipeline) Outputs() []PhotoOutput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PhotoOutput(nil), p.outputs...)
}

// Preset は確定済みのプリセットを返す
func (p *SimulatedPipeline) Preset() Preset {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preset
}

// Counts は確定と破棄の回数を返す
func (p *SimulatedPipeline) Counts() (commits, rollbacks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commits, p.rollbacks
}

// SimulatedPreviewLayer はメモリ上のプレビューレイヤー
type SimulatedPreviewLayer struct {
	mu      sync.Mutex
	gravity VideoGravity
	frame   Rect
}

// SetVideoGravity は表示方法を設定する
func (l *SimulatedPreviewLayer) SetVideoGravity(gravity VideoGravity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gravity = gravity
}

// SetFrame は表示領域を設定する
func (l *SimulatedPreviewLayer) SetFrame(frame Rect) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = frame
}

// VideoGravity は表示方法を返す
func (l *SimulatedPreviewLayer) VideoGravity() VideoGravity {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gravity
}

// Frame は表示領域を返す
func (l *SimulatedPreviewLayer) Frame() Rect {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame
}

// SimulatedSurface はメモリ上のプレビュー面
type SimulatedSurface struct {
	mu     sync.Mutex
	bounds Rect
	layers []PreviewLayer
}

// NewSimulatedSurface は指定サイズのプレビュー面を作成する
func NewSimulatedSurface(width, height float64) *SimulatedSurface {
	return &SimulatedSurface{bounds: Rect{Width: width, Height: height}}
}

// Bounds は表示領域を返す
func (s *SimulatedSurface) Bounds() Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds
}

// AddSublayer はレイヤーを追加する
func (s *SimulatedSurface) AddSublayer(layer PreviewLayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = append(s.layers, layer)
}

// Layers は追加されたレイヤーを返す
func (s *SimulatedSurface) Layers() []PreviewLayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PreviewLayer(nil), s.layers...)
}

// SimulatedPlatform はメモリ上のデバイスカタログを持つPlatform実装
type SimulatedPlatform struct {
	mu        sync.Mutex
	devices   []*SimulatedDevice
	inputErr  error
	outputErr error
	startErr  error
	scanErr   error
	pipelines []*SimulatedPipeline
	inputs    int
}

// NewSimulatedPlatform はデバイスをカタログ順に持つSimulatedPlatformを作成する
func NewSimulatedPlatform(devices ...*SimulatedDevice) *SimulatedPlatform {
	return &SimulatedPlatform{devices: devices}
}

// NewSimulatedPlatformFromCatalog はデバイス情報の一覧からSimulatedPlatformを作成する
func NewSimulatedPlatformFromCatalog(catalog []DeviceInfo) *SimulatedPlatform {
	devices := make([]*SimulatedDevice, 0, len(catalog))
	for _, info := range catalog {
		devices = append(devices, NewSimulatedDevice(info))
	}
	return NewSimulatedPlatform(devices...)
}

// DiscoverDevices は条件に一致するデバイスをカタログ順に返す
func (p *SimulatedPlatform) DiscoverDevices(ctx context.Context, query DiscoveryQuery) ([]Device, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.scanErr != nil {
		return nil, p.scanErr
	}

	all := make([]Device, 0, len(p.devices))
	for _, dev := range p.devices {
		all = append(all, dev)
	}
	return FilterDevices(all, query), nil
}

// NewPipeline は新しいSimulatedPipelineを作成する
func (p *SimulatedPlatform) NewPipeline() Pipeline {
	p.mu.Lock()
	defer p.mu.Unlock()

	pipeline := &SimulatedPipeline{startErr: p.startErr}
	p.pipelines = append(p.pipelines, pipeline)
	return pipeline
}

// NewDeviceInput はデバイス入力を作成する
func (p *SimulatedPlatform) NewDeviceInput(dev Device) (DeviceInput, error) {
	p.mu.Lock()
	p.inputs++
	inputErr := p.inputErr
	p.mu.Unlock()

	if inputErr != nil {
		return nil, inputErr
	}
	if sim, ok := dev.(*SimulatedDevice); ok && sim.isBusy() {
		return nil, ErrDeviceBusy
	}
	return &simulatedInput{device: dev}, nil
}

// NewPhotoOutput は静止画出力を作成する
func (p *SimulatedPlatform) NewPhotoOutput() (PhotoOutput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.outputErr != nil {
		return nil, p.outputErr
	}
	return &simulatedOutput{id: uuid.New().String()}, nil
}

// NewPreviewLayer はプレビューレイヤーを作成する
func (p *SimulatedPlatform) NewPreviewLayer(_ Pipeline) PreviewLayer {
	return &SimulatedPreviewLayer{}
}

// Devices はカタログのデバイスを返す
func (p *SimulatedPlatform) Devices() []*SimulatedDevice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*SimulatedDevice(nil), p.devices...)
}

// Pipelines は作成されたパイプラインを返す
func (p *SimulatedPlatform) Pipelines() []*SimulatedPipeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*SimulatedPipeline(nil), p.pipelines...)
}

// InputAttempts はデバイス入力の作成が試みられた回数を返す
func (p *SimulatedPlatform) InputAttempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inputs
}

// SetInputError はテスト用に入力作成の失敗を設定する
func (p *SimulatedPlatform) SetInputError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputErr = err
}

// SetOutputError はテスト用に出力作成の失敗を設定する
func (p *SimulatedPlatform) SetOutputError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputErr = err
}

// SetStartError はテスト用にこれ以降作成するパイプラインの開始失敗を設定する
func (p *SimulatedPlatform) SetStartError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = err
}

// SetScanError はテスト用にデバイス検出の失敗を設定する
func (p *SimulatedPlatform) SetScanError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanErr = err
}
