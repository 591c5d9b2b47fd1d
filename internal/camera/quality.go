package camera

import (
	"image"
	"image/color"
	"math"
)

const (
	// glareLevel を超える輝度(0-255)の画素を白飛びとみなす
	glareLevel = 245

	// 品質判定のデフォルトしきい値
	DefaultMinBrightness = 0.12
	DefaultMaxGlare      = 0.12
	DefaultMinSharpness  = 0.60
	DefaultMinScore      = 0.60
)

// 品質フラグのコード
const (
	FlagTooDark = "too_dark"
	FlagGlare   = "glare"
	FlagBlurry  = "blurry"
)

// QualityThresholds は撮影画像の品質判定のしきい値
type QualityThresholds struct {
	MinBrightness float64 `json:"min_brightness"`
	MaxGlare      float64 `json:"max_glare"`
	MinSharpness  float64 `json:"min_sharpness"`

	// MinScore は総合スコアの合格ライン
	MinScore float64 `json:"min_score"`
}

// DefaultQualityThresholds はデフォルトのしきい値を返す
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinBrightness: DefaultMinBrightness,
		MaxGlare:      DefaultMaxGlare,
		MinSharpness:  DefaultMinSharpness,
		MinScore:      DefaultMinScore,
	}
}

// QualityMetrics はグレースケール化した画像の基本指標
type QualityMetrics struct {
	// Brightness は平均輝度 (0.0-1.0)
	Brightness float64 `json:"brightness"`
	// Glare は白飛び画素の割合 (0.0-1.0)
	Glare float64 `json:"glare"`
	// Sharpness は隣接画素間の輝度差の平均（横方向+縦方向）
	Sharpness float64 `json:"sharpness"`
}

// QualityFlag は品質上の問題
type QualityFlag struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QualityReport は撮影画像の品質判定結果
type QualityReport struct {
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Metrics  QualityMetrics `json:"metrics"`
	Score    float64        `json:"score"`
	OK       bool           `json:"ok"`
	Accepted bool           `json:"accepted"`
	Flags    []QualityFlag  `json:"flags"`
}

// MeasureQuality は画像の明るさ・白飛び・シャープネスを計測する
// 空の画像はすべて0を返す
func MeasureQuality(img image.Image) QualityMetrics {
	if img == nil {
		return QualityMetrics{}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return QualityMetrics{}
	}

	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			gray[y*w+x] = float64(g.Y)
		}
	}

	var sum float64
	var glare int
	for _, v := range gray {
		sum += v
		if v > glareLevel {
			glare++
		}
	}

	var gx, gy float64
	if w >= 2 {
		var total float64
		for y := 0; y < h; y++ {
			row := gray[y*w : (y+1)*w]
			for x := 1; x < w; x++ {
				total += math.Abs(row[x] - row[x-1])
			}
		}
		gx = total / float64(h*(w-1))
	}
	if h >= 2 {
		var total float64
		for y := 1; y < h; y++ {
			for x := 0; x < w; x++ {
				total += math.Abs(gray[y*w+x] - gray[(y-1)*w+x])
			}
		}
		gy = total / float64((h-1)*w)
	}

	n := float64(w * h)
	return QualityMetrics{
		Brightness: sum / n / 255,
		Glare:      float64(glare) / n,
		Sharpness:  gx + gy,
	}
}

// QualityScore は指標を0.0-1.0の総合スコアにまとめる
func QualityScore(m QualityMetrics) float64 {
	brightness := clamp01((m.Brightness - 0.10) / 0.35)
	glare := clamp01(1 - m.Glare/0.12)
	sharpness := clamp01(m.Sharpness / 1.20)
	return clamp01(0.35*brightness + 0.25*glare + 0.40*sharpness)
}

// EvaluateFrame は画像の品質を判定する
func EvaluateFrame(img image.Image, th QualityThresholds) QualityReport {
	m := MeasureQuality(img)

	report := QualityReport{
		Metrics: m,
		Score:   QualityScore(m),
		Flags:   []QualityFlag{},
	}
	if img != nil {
		report.Width = img.Bounds().Dx()
		report.Height = img.Bounds().Dy()
	}

	if m.Brightness < th.MinBrightness {
		report.Flags = append(report.Flags, QualityFlag{Code: FlagTooDark, Message: "照明が不足しています"})
	}
	if m.Glare > th.MaxGlare {
		report.Flags = append(report.Flags, QualityFlag{Code: FlagGlare, Message: "強い反射があります"})
	}
	if m.Sharpness < th.MinSharpness {
		report.Flags = append(report.Flags, QualityFlag{Code: FlagBlurry, Message: "シャープネスが不足しています"})
	}
	report.OK = len(report.Flags) == 0
	report.Accepted = report.Score >= th.MinScore

	return report
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
