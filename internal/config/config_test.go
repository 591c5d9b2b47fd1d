package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"irida/internal/camera"
)

// TestConfigLoad は設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	t.Setenv("IRIDA_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}

	// カメラ設定の検証
	if len(cfg.Camera.Devices) == 0 {
		t.Error("カメラデバイスが設定されていません")
	}
	if cfg.Camera.ZoomThreshold != 2.5 {
		t.Errorf("ズーム上限: got %v, want 2.5", cfg.Camera.ZoomThreshold)
	}
	if cfg.Camera.FocusLensPosition != 1.0 {
		t.Errorf("レンズ位置: got %v, want 1.0", cfg.Camera.FocusLensPosition)
	}
	if cfg.Camera.AllowPreviewOnly {
		t.Error("プレビュー専用モードはデフォルトで無効であるべきです")
	}
}

// TestConfigEnvOverride は環境変数による上書きをテストする
func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("IRIDA_CONFIG", "")
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("ホスト: got %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("ポート: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("ログレベル: got %s, want debug", cfg.Log.Level)
	}
}

// TestConfigLoadFile はYAMLファイルからの読み込みをテストする
func TestConfigLoadFile(t *testing.T) {
	t.Setenv("SERVER_HOST", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_FORMAT", "")

	content := `
server:
  port: 9000
  read_timeout: 3s
camera:
  zoom_threshold: 2.0
  quality:
    min_score: 0.8
  allow_preview_only: true
  devices:
    - id: wide
      kind: wide_angle
      position: back
      max_zoom_factor: 5
      locked_focus: true
    - id: tele
      kind: telephoto
      position: back
      max_zoom_factor: 3
log:
  format: json
`
	path := filepath.Join(t.TempDir(), "irida.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("設定ファイルの作成に失敗しました: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("ポート: got %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("読み込みタイムアウト: got %v, want 3s", cfg.Server.ReadTimeout)
	}
	// ファイルにない項目はデフォルトのまま
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("ホスト: got %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("ログ形式: got %s, want json", cfg.Log.Format)
	}

	opts, err := cfg.Camera.SessionOptions()
	if err != nil {
		t.Fatalf("セッション設定の変換に失敗しました: %v", err)
	}
	if opts.Macro.ZoomThreshold != 2.0 {
		t.Errorf("ズーム上限: got %v, want 2.0", opts.Macro.ZoomThreshold)
	}
	if opts.Quality.MinScore != 0.8 {
		t.Errorf("合格ライン: got %v, want 0.8", opts.Quality.MinScore)
	}
	// ファイルにないしきい値はデフォルトのまま
	if opts.Quality.MinBrightness != camera.DefaultMinBrightness {
		t.Errorf("輝度下限: got %v, want %v", opts.Quality.MinBrightness, camera.DefaultMinBrightness)
	}
	if !opts.AllowPreviewOnly {
		t.Error("プレビュー専用モードが有効になっていません")
	}

	catalog, err := cfg.Camera.Catalog()
	if err != nil {
		t.Fatalf("カタログの変換に失敗しました: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("カタログ数: got %d, want 2", len(catalog))
	}
	if catalog[1].Kind != camera.KindTelephoto {
		t.Errorf("種別: got %s, want telephoto", catalog[1].Kind)
	}
	if !catalog[0].SupportsLockedFocus || catalog[0].SupportsLockedExposure {
		t.Errorf("対応機能の変換が正しくありません: %+v", catalog[0])
	}
}

// TestConfigLoadFileMissing は存在しないファイルの読み込みをテストする
func TestConfigLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("存在しないファイルでエラーが返されませんでした")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		modify    func(c *Config)
		expectErr bool
	}{
		{"正常な設定", func(c *Config) {}, false},
		{"無効なポート番号", func(c *Config) { c.Server.Port = 70000 }, true},
		{"ズーム上限が1未満", func(c *Config) { c.Camera.ZoomThreshold = 0.5 }, true},
		{"レンズ位置が範囲外", func(c *Config) { c.Camera.FocusLensPosition = 1.5 }, true},
		{"負のレンズ位置", func(c *Config) { c.Camera.FocusLensPosition = -0.1 }, true},
		{"不明な種別", func(c *Config) { c.Camera.Kinds = []string{"ultra_wide"} }, true},
		{"不明なプリセット", func(c *Config) { c.Camera.Preset = "cinema" }, true},
		{"不明な表示方法", func(c *Config) { c.Camera.VideoGravity = "stretch" }, true},
		{"不明な位置", func(c *Config) { c.Camera.Position = "side" }, true},
		{"白飛び上限が範囲外", func(c *Config) { c.Camera.Quality.MaxGlare = 1.5 }, true},
		{"負のシャープネス下限", func(c *Config) { c.Camera.Quality.MinSharpness = -1 }, true},
		{"不明なログ形式", func(c *Config) { c.Log.Format = "xml" }, true},
		{"カタログの不明な種別", func(c *Config) {
			c.Camera.Devices = []CameraDevice{{ID: "x", Kind: "macro", Position: "back"}}
		}, true},
		{"カタログのID重複", func(c *Config) {
			c.Camera.Devices = []CameraDevice{
				{ID: "x", Kind: "wide_angle", Position: "back"},
				{ID: "x", Kind: "telephoto", Position: "back"},
			}
		}, true},
		{"空のカタログ", func(c *Config) { c.Camera.Devices = nil }, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、nilが返されました")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("エラーが期待されませんでしたが、エラーが返されました: %v", err)
			}
		})
	}
}

// TestServerAddress はサーバーアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "localhost", Port: 8080}}
	if got := cfg.ServerAddress(); got != "localhost:8080" {
		t.Errorf("サーバーアドレス: got %s, want localhost:8080", got)
	}
}

// TestDefaultCatalogSelectsTelephoto はデフォルトカタログで望遠カメラが選ばれることをテストする
func TestDefaultCatalogSelectsTelephoto(t *testing.T) {
	catalog, err := Default().Camera.Catalog()
	if err != nil {
		t.Fatalf("カタログの変換に失敗しました: %v", err)
	}

	devices := make([]camera.Device, 0, len(catalog))
	for _, info := range catalog {
		devices = append(devices, camera.NewSimulatedDevice(info))
	}

	selected, err := camera.SelectDevice(camera.FilterDevices(devices, camera.DefaultDiscoveryQuery()))
	if err != nil {
		t.Fatalf("デバイスの選択に失敗しました: %v", err)
	}
	if selected.Info().ID != "back-telephoto" {
		t.Errorf("選択されたデバイス: got %s, want back-telephoto", selected.Info().ID)
	}
}
