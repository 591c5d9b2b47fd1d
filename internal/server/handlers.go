package server

import (
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"irida/internal/camera"
	"irida/internal/channel"
	"irida/internal/config"
)

// maxFrameBytes はアップロード画像の上限サイズ
const maxFrameBytes = 10 << 20

// handler はHTTPエンドポイントの実装
type handler struct {
	config   *config.Config
	host     *camera.Host
	channels *channel.Registry
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string                 `json:"status"`
	Server    ServerInfo             `json:"server"`
	Session   camera.SessionSnapshot `json:"session"`
	Channels  []string               `json:"channels"`
	StartedAt time.Time              `json:"started_at"`
	Timestamp time.Time              `json:"timestamp"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// InvokeResponse はメソッドチャンネル呼び出しの成功レスポンス
type InvokeResponse struct {
	Channel string `json:"channel"`
	Method  string `json:"method"`
	Result  any    `json:"result"`
}

// AnalyzeResponse はアップロード画像の品質判定レスポンス
type AnalyzeResponse struct {
	Format string               `json:"format"`
	Report camera.QualityReport `json:"report"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Session:   h.host.Session().Snapshot(),
		Channels:  h.channels.Names(),
		StartedAt: h.host.StartedAt(),
		Timestamp: time.Now(),
	})
}

// GetCamera はセッション状態の取得エンドポイントの実装
func (h *handler) GetCamera(c *gin.Context) {
	c.JSON(http.StatusOK, h.host.Session().Snapshot())
}

// ConfigureCamera はセッションを構成し、結果を返す
func (h *handler) ConfigureCamera(c *gin.Context) {
	if err := h.host.Configure(c.Request.Context()); err != nil {
		writeError(c, channel.ToError(err))
		return
	}
	c.JSON(http.StatusOK, h.host.Session().Snapshot())
}

// StartCamera はプレビューの開始を受け付ける
func (h *handler) StartCamera(c *gin.Context) {
	h.host.StartPreview()
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// StopCamera はプレビューの停止を受け付ける
func (h *handler) StopCamera(c *gin.Context) {
	h.host.StopPreview()
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// GetCameraQuality は実行中のキャプチャから1フレームを取得して品質を判定する
func (h *handler) GetCameraQuality(c *gin.Context) {
	report, err := h.host.EvaluateQuality(c.Request.Context())
	if err != nil {
		writeError(c, channel.ToError(err))
		return
	}
	c.JSON(http.StatusOK, report)
}

// AnalyzeFrame はアップロードされた画像（JPEG/PNG）の品質を判定する
func (h *handler) AnalyzeFrame(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameBytes)
	img, format, err := image.Decode(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_image",
			Message:   "画像を読み込めません",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, AnalyzeResponse{
		Format: format,
		Report: camera.EvaluateFrame(img, h.host.Options().Session.Quality),
	})
}

// ListChannels は登録済みチャンネル一覧を返す
func (h *handler) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.channels.Names()})
}

// InvokeChannel はメソッドチャンネルを呼び出す
func (h *handler) InvokeChannel(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")

	ch, ok := h.channels.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "channel_not_found",
			Message:   "指定されたチャンネルが見つかりません",
			Details:   name,
			Timestamp: time.Now(),
		})
		return
	}

	var call channel.MethodCall
	if err := c.ShouldBindJSON(&call); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_request",
			Message:   "リクエストボディを解析できません",
			Details:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	result, err := ch.Handle(c.Request.Context(), call)
	if err != nil {
		writeError(c, channel.ToError(err))
		return
	}

	c.JSON(http.StatusOK, InvokeResponse{
		Channel: name,
		Method:  call.Method,
		Result:  result,
	})
}

// writeError は構造化エラーをHTTPレスポンスに変換する
func writeError(c *gin.Context, chErr *channel.Error) {
	c.JSON(statusForCode(chErr.Code), ErrorResponse{
		Error:     chErr.Code,
		Message:   chErr.Message,
		Details:   chErr.Details,
		Timestamp: time.Now(),
	})
}

// statusForCode はエラーコードをHTTPステータスに変換する
func statusForCode(code string) int {
	switch code {
	case channel.CodeNotImplemented:
		return http.StatusNotImplemented
	case channel.CodeNoDevice:
		return http.StatusNotFound
	case channel.CodeInputAttachFailed, channel.CodeOutputAttachFailed:
		return http.StatusServiceUnavailable
	case channel.CodeNotRunning:
		return http.StatusConflict
	case channel.CodeFrameCaptureFailed:
		return http.StatusServiceUnavailable
	case channel.CodeSessionClosed:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
