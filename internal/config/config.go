package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"irida/internal/camera"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig `yaml:"server"`
	Camera CameraConfig `yaml:"camera"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // シャットダウンの待ち時間
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Preset       string   `yaml:"preset"`        // セッションのプリセット
	Position     string   `yaml:"position"`      // 検出対象の位置
	Kinds        []string `yaml:"kinds"`         // 検出対象の種別
	VideoGravity string   `yaml:"video_gravity"` // プレビューの表示方法

	// マクロ設定
	ZoomThreshold     float64 `yaml:"zoom_threshold"`      // ズーム倍率の上限
	FocusLensPosition float64 `yaml:"focus_lens_position"` // 固定するレンズ位置 (0.0-1.0)

	// 撮影画像の品質判定
	Quality QualityConfig `yaml:"quality"`

	// 静止画出力なしでもセッションを確定するか
	AllowPreviewOnly bool `yaml:"allow_preview_only"`

	// プレビュー面のサイズ
	SurfaceWidth  float64 `yaml:"surface_width"`
	SurfaceHeight float64 `yaml:"surface_height"`

	// シミュレーション用のデバイスカタログ（列挙順）
	Devices []CameraDevice `yaml:"devices"`
}

// CameraDevice は個別カメラユニットの設定
type CameraDevice struct {
	ID              string  `yaml:"id"`               // カメラID
	Name            string  `yaml:"name"`             // カメラ名
	Kind            string  `yaml:"kind"`             // 種別 (telephoto, dual_wide, wide_angle, other)
	Position        string  `yaml:"position"`         // 位置 (back, front)
	MaxZoomFactor   float64 `yaml:"max_zoom_factor"`  // 最大ズーム倍率
	LockedFocus     bool    `yaml:"locked_focus"`     // フォーカス固定に対応
	FocusDistance   bool    `yaml:"focus_distance"`   // レンズ位置の指定に対応
	LockedExposure  bool    `yaml:"locked_exposure"`  // 露出固定に対応
	SmoothAutoFocus bool    `yaml:"smooth_autofocus"` // スムーズAFの切り替えに対応
}

// QualityConfig は撮影画像の品質判定のしきい値
type QualityConfig struct {
	MinBrightness float64 `yaml:"min_brightness"` // 平均輝度の下限 (0.0-1.0)
	MaxGlare      float64 `yaml:"max_glare"`      // 白飛び画素の割合の上限 (0.0-1.0)
	MinSharpness  float64 `yaml:"min_sharpness"`  // シャープネスの下限
	MinScore      float64 `yaml:"min_score"`      // 総合スコアの合格ライン (0.0-1.0)
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`   // 出力ファイル（空なら標準エラー出力）
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Camera: CameraConfig{
			Preset:            string(camera.PresetPhoto),
			Position:          string(camera.PositionBack),
			Kinds:             []string{string(camera.KindTelephoto), string(camera.KindDualWide), string(camera.KindWideAngle)},
			VideoGravity:      string(camera.GravityResizeAspectFill),
			ZoomThreshold:     camera.DefaultZoomThreshold,
			FocusLensPosition: camera.DefaultFocusLensPosition,
			SurfaceWidth:      390,
			SurfaceHeight:     844,
			Devices:           DefaultDevices(),
			Quality: QualityConfig{
				MinBrightness: camera.DefaultMinBrightness,
				MaxGlare:      camera.DefaultMaxGlare,
				MinSharpness:  camera.DefaultMinSharpness,
				MinScore:      camera.DefaultMinScore,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDevices は3眼構成の背面カメラを模したカタログを返す
func DefaultDevices() []CameraDevice {
	return []CameraDevice{
		{
			ID: "back-dual-wide", Name: "Back Dual Wide Camera", Kind: string(camera.KindDualWide), Position: string(camera.PositionBack),
			MaxZoomFactor: 123.75, LockedFocus: true, FocusDistance: true, LockedExposure: true, SmoothAutoFocus: true,
		},
		{
			ID: "back-wide", Name: "Back Camera", Kind: string(camera.KindWideAngle), Position: string(camera.PositionBack),
			MaxZoomFactor: 123.75, LockedFocus: true, FocusDistance: true, LockedExposure: true, SmoothAutoFocus: true,
		},
		{
			ID: "back-telephoto", Name: "Back Telephoto Camera", Kind: string(camera.KindTelephoto), Position: string(camera.PositionBack),
			MaxZoomFactor: 16.0, LockedFocus: true, FocusDistance: true, LockedExposure: true, SmoothAutoFocus: true,
		},
		{
			ID: "front", Name: "Front Camera", Kind: string(camera.KindWideAngle), Position: string(camera.PositionFront),
			MaxZoomFactor: 8.0, LockedFocus: false, FocusDistance: false, LockedExposure: true, SmoothAutoFocus: false,
		},
	}
}

// Load は設定を読み込む
// デフォルト値に設定ファイル（IRIDA_CONFIG）と環境変数の順で上書きする
func Load() (*Config, error) {
	return LoadFile(os.Getenv("IRIDA_CONFIG"))
}

// LoadFile は指定されたYAMLファイルで上書きした設定を読み込む
// pathが空の場合はファイルを読まない
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("LOG_FORMAT", c.Log.Format)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	if _, err := c.Camera.SessionOptions(); err != nil {
		return err
	}
	if _, err := c.Camera.Catalog(); err != nil {
		return err
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("無効なログ形式: %s", c.Log.Format)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SessionOptions はカメラ設定をセッション設定に変換する
func (c CameraConfig) SessionOptions() (camera.SessionOptions, error) {
	opts := camera.DefaultSessionOptions()

	switch preset := camera.Preset(c.Preset); preset {
	case camera.PresetPhoto, camera.PresetHigh, camera.PresetMedium:
		opts.Preset = preset
	default:
		return opts, fmt.Errorf("無効なプリセット: %s", c.Preset)
	}

	switch gravity := camera.VideoGravity(c.VideoGravity); gravity {
	case camera.GravityResizeAspectFill, camera.GravityResizeAspect, camera.GravityResize:
		opts.VideoGravity = gravity
	default:
		return opts, fmt.Errorf("無効な表示方法: %s", c.VideoGravity)
	}

	position, err := camera.ParsePosition(c.Position)
	if err != nil {
		return opts, err
	}
	opts.Query.Position = position

	if len(c.Kinds) > 0 {
		kinds := make([]camera.DeviceKind, 0, len(c.Kinds))
		for _, k := range c.Kinds {
			kind, err := camera.ParseDeviceKind(k)
			if err != nil {
				return opts, err
			}
			kinds = append(kinds, kind)
		}
		opts.Query.Kinds = kinds
	}

	if c.ZoomThreshold < 1 {
		return opts, fmt.Errorf("無効なズーム上限: %v", c.ZoomThreshold)
	}
	if c.FocusLensPosition < 0 || c.FocusLensPosition > 1 {
		return opts, fmt.Errorf("無効なレンズ位置: %v", c.FocusLensPosition)
	}
	opts.Macro = camera.MacroPolicy{
		FocusLensPosition: c.FocusLensPosition,
		ZoomThreshold:     c.ZoomThreshold,
	}
	q := c.Quality
	if q.MinBrightness < 0 || q.MinBrightness > 1 || q.MaxGlare < 0 || q.MaxGlare > 1 || q.MinScore < 0 || q.MinScore > 1 {
		return opts, fmt.Errorf("無効な品質しきい値: %+v", q)
	}
	if q.MinSharpness < 0 {
		return opts, fmt.Errorf("無効なシャープネス下限: %v", q.MinSharpness)
	}
	opts.Quality = camera.QualityThresholds{
		MinBrightness: q.MinBrightness,
		MaxGlare:      q.MaxGlare,
		MinSharpness:  q.MinSharpness,
		MinScore:      q.MinScore,
	}
	opts.AllowPreviewOnly = c.AllowPreviewOnly

	return opts, nil
}

// Catalog はデバイスカタログをデバイス情報の一覧に変換する
func (c CameraConfig) Catalog() ([]camera.DeviceInfo, error) {
	seen := make(map[string]bool, len(c.Devices))
	infos := make([]camera.DeviceInfo, 0, len(c.Devices))

	for _, d := range c.Devices {
		kind, err := camera.ParseDeviceKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("カメラ %s: %w", d.ID, err)
		}
		position, err := camera.ParsePosition(d.Position)
		if err != nil {
			return nil, fmt.Errorf("カメラ %s: %w", d.ID, err)
		}
		if d.MaxZoomFactor != 0 && d.MaxZoomFactor < 1 {
			return nil, fmt.Errorf("カメラ %s: 無効な最大ズーム倍率: %v", d.ID, d.MaxZoomFactor)
		}
		if d.ID != "" {
			if seen[d.ID] {
				return nil, fmt.Errorf("カメラIDが重複しています: %s", d.ID)
			}
			seen[d.ID] = true
		}

		infos = append(infos, camera.DeviceInfo{
			ID:                           d.ID,
			Name:                         d.Name,
			Kind:                         kind,
			Position:                     position,
			MaxZoomFactor:                d.MaxZoomFactor,
			SupportsLockedFocus:          d.LockedFocus,
			SupportsFocusDistanceControl: d.FocusDistance,
			SupportsLockedExposure:       d.LockedExposure,
			SupportsSmoothAutoFocus:      d.SmoothAutoFocus,
		})
	}

	return infos, nil
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
