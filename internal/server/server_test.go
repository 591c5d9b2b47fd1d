package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"irida/internal/camera"
	"irida/internal/channel"
	"irida/internal/config"
)

// newTestServer はシミュレーションのカメラを持つテスト用サーバーを作成する
func newTestServer(t *testing.T, devices ...*camera.SimulatedDevice) (*Server, *camera.Host) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	logger, _ := test.NewNullLogger()
	host := camera.NewHost(camera.NewSimulatedPlatform(devices...), camera.HostOptions{
		Session: camera.DefaultSessionOptions(),
		Surface: camera.NewSimulatedSurface(390, 844),
	}, logger)
	t.Cleanup(host.Close)

	return New(cfg, host, channel.NewCameraRegistry(host, logger), logger), host
}

func wideDevice() *camera.SimulatedDevice {
	return camera.NewSimulatedDevice(camera.DeviceInfo{
		ID:                           "wide",
		Kind:                         camera.KindWideAngle,
		Position:                     camera.PositionBack,
		MaxZoomFactor:                4.0,
		SupportsLockedFocus:          true,
		SupportsFocusDistanceControl: true,
		SupportsLockedExposure:       true,
	})
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// TestServerEndpoints は基本エンドポイントをテストする
func TestServerEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, wideDevice())

	testCases := []struct {
		name           string
		method         string
		endpoint       string
		expectedStatus int
	}{
		{"ヘルスチェックエンドポイント", http.MethodGet, "/health", http.StatusOK},
		{"ステータスエンドポイント", http.MethodGet, "/api/status", http.StatusOK},
		{"カメラ状態エンドポイント", http.MethodGet, "/api/camera", http.StatusOK},
		{"チャンネル一覧エンドポイント", http.MethodGet, "/api/channels", http.StatusOK},
		{"存在しないパス", http.MethodGet, "/api/unknown", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, tc.method, tc.endpoint, "")
			if rec.Code != tc.expectedStatus {
				t.Errorf("予期しないステータスコード: got %d, want %d", rec.Code, tc.expectedStatus)
			}
		})
	}
}

// TestInvokeRunProbe はrunProbeの呼び出しをテストする
func TestInvokeRunProbe(t *testing.T) {
	srv, _ := newTestServer(t, wideDevice())

	rec := doRequest(t, srv, http.MethodPost, "/api/channels/irida.camera/probe", `{"method":"runProbe"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Channel string             `json:"channel"`
		Method  string             `json:"method"`
		Result  camera.ProbeReport `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if resp.Channel != channel.ProbeChannelName {
		t.Errorf("チャンネル名: got %s, want %s", resp.Channel, channel.ProbeChannelName)
	}
	if resp.Result.Selected == nil || resp.Result.Selected.ID != "wide" {
		t.Errorf("選択されたデバイスが正しくありません: %+v", resp.Result.Selected)
	}
	if len(resp.Result.Devices) != 1 {
		t.Errorf("デバイス数: got %d, want 1", len(resp.Result.Devices))
	}
}

// TestInvokeErrors はメソッドチャンネル呼び出しのエラーをテストする
func TestInvokeErrors(t *testing.T) {
	srv, _ := newTestServer(t, wideDevice())

	testCases := []struct {
		name           string
		path           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{"未実装のメソッド", "/api/channels/irida.camera/probe", `{"method":"takePhoto"}`, http.StatusNotImplemented, channel.CodeNotImplemented},
		{"空のボディ", "/api/channels/irida.camera/probe", "", http.StatusNotImplemented, channel.CodeNotImplemented},
		{"不正なJSON", "/api/channels/irida.camera/probe", `{"method":`, http.StatusBadRequest, "invalid_request"},
		{"存在しないチャンネル", "/api/channels/irida.camera/unknown", `{"method":"runProbe"}`, http.StatusNotFound, "channel_not_found"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.expectedStatus {
				t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, tc.expectedStatus)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("レスポンスの解析に失敗しました: %v", err)
			}
			if resp.Error != tc.expectedError {
				t.Errorf("エラーコード: got %s, want %s", resp.Error, tc.expectedError)
			}
		})
	}
}

// TestCameraLifecycle はカメラの構成・開始・停止をテストする
func TestCameraLifecycle(t *testing.T) {
	srv, host := newTestServer(t, wideDevice())

	rec := doRequest(t, srv, http.MethodPost, "/api/camera/configure", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("構成に失敗しました: %d %s", rec.Code, rec.Body.String())
	}
	var snap camera.SessionSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if snap.State != camera.StateConfigured {
		t.Errorf("状態: got %s, want configured", snap.State)
	}
	if snap.Parameters == nil || snap.Parameters.ZoomFactor != 2.5 {
		t.Errorf("ズーム倍率が上限に固定されていません: %+v", snap.Parameters)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/camera/start", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusAccepted)
	}
	host.Wait()
	if host.Session().State() != camera.StateRunning {
		t.Errorf("状態: got %s, want running", host.Session().State())
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/camera/stop", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusAccepted)
	}
	host.Wait()
	if host.Session().State() != camera.StateStopped {
		t.Errorf("状態: got %s, want stopped", host.Session().State())
	}
}

// TestConfigureWithoutDevice はデバイスがない場合の構成をテストする
func TestConfigureWithoutDevice(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/camera/configure", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusNotFound)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if resp.Error != channel.CodeNoDevice {
		t.Errorf("エラーコード: got %s, want %s", resp.Error, channel.CodeNoDevice)
	}
}

// TestServerStartAndShutdown はサーバーの起動とシャットダウンをテストする
func TestServerStartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, wideDevice())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("リスナーの作成に失敗しました: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx, listener)
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/health", listener.Addr()))
	if err != nil {
		t.Fatalf("HTTPリクエストでエラーが発生しました: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("予期しないステータスコード: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// コンテキストをキャンセルしてサーバーを停止
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("サーバーの起動/停止でエラーが発生しました: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("サーバーの停止がタイムアウトしました")
	}
}

// TestCameraQuality はキャプチャ中フレームの品質判定をテストする
func TestCameraQuality(t *testing.T) {
	srv, host := newTestServer(t, wideDevice())

	rec := doRequest(t, srv, http.MethodGet, "/api/camera/quality", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusConflict)
	}

	host.StartPreview()
	host.Wait()

	rec = doRequest(t, srv, http.MethodGet, "/api/camera/quality", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var report camera.QualityReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if !report.Accepted || report.Width != 64 {
		t.Errorf("品質判定の結果が正しくありません: %+v", report)
	}
}

// TestAnalyzeFrame はアップロード画像の品質判定をテストする
func TestAnalyzeFrame(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	if err := png.Encode(&buf, camera.SyntheticFrame(32, 32)); err != nil {
		t.Fatalf("画像のエンコードに失敗しました: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/quality", buf.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("予期しないステータスコード: got %d, want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗しました: %v", err)
	}
	if resp.Format != "png" {
		t.Errorf("画像形式: got %s, want png", resp.Format)
	}
	if !resp.Report.OK || resp.Report.Height != 32 {
		t.Errorf("品質判定の結果が正しくありません: %+v", resp.Report)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/quality", "not an image")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("予期しないステータスコード: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
