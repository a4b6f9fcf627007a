package leaf

import (
	"errors"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
)

// Thresholds are the empirically tuned cut-offs of the admission ladder.
type Thresholds struct {
	GreenDominant   float64 // green% alone that admits
	GreenModerate   float64 // green% admitted together with TextureModerate
	GreenLow        float64 // green% below which the photo has no meaningful foliage
	TextureModerate float64
	TextureHigh     float64 // texture alone that admits
	MaxEdge         int
}

// DefaultThresholds returns the production ladder.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GreenDominant:   30,
		GreenModerate:   20,
		GreenLow:        10,
		TextureModerate: 10,
		TextureHigh:     30,
		MaxEdge:         DefaultMaxEdge,
	}
}

// DebugInfo exposes the raw scores behind a verdict.
type DebugInfo struct {
	GreenPercentage float64 `json:"green_percentage"`
	TextureScore    float64 `json:"texture_score"`
}

// Verdict is the admission decision for one submission.
type Verdict struct {
	IsValid         bool       `json:"is_valid"`
	Confidence      int        `json:"confidence"`
	Reason          string     `json:"reason"`
	DetectedContent string     `json:"detected_content"`
	Suggestion      string     `json:"suggestion"`
	DebugInfo       *DebugInfo `json:"debug_info,omitempty"`
}

// Gate admits or rejects images before any external model is consulted.
// It is safe for concurrent use.
type Gate struct {
	thresholds Thresholds
	logger     *zap.Logger
}

// NewGate constructs a gate with the given thresholds.
func NewGate(thresholds Thresholds, logger *zap.Logger) *Gate {
	return &Gate{thresholds: thresholds, logger: logger.Named("leaf_gate")}
}

// Validate scores the image stored at path. Missing, unreadable and corrupt
// files as well as any internal fault produce an invalid verdict; Validate
// never panics.
func (g *Gate) Validate(path string) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("leaf validation panicked", zap.Any("panic", r), zap.String("path", path))
			verdict = validationErrorVerdict(fmt.Errorf("%v", r))
		}
	}()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Verdict{
				Reason:          "File tidak ditemukan",
				DetectedContent: "File tidak ada",
				Suggestion:      "Pastikan file berhasil diupload",
			}
		}
		return validationErrorVerdict(err)
	}

	bm, err := Load(path, g.thresholds.MaxEdge)
	if err != nil {
		g.logger.Warn("failed to decode image", zap.Error(err), zap.String("path", path))
		return Verdict{
			Reason:          "Gagal membaca file gambar",
			DetectedContent: "File corrupt atau format tidak valid",
			Suggestion:      "Upload file JPG/PNG yang valid",
		}
	}
	return g.ValidateBitmap(bm)
}

// ValidateBitmap scores bm and applies the decision ladder.
func (g *Gate) ValidateBitmap(bm *Bitmap) Verdict {
	scores := Score(bm)
	verdict := g.Decide(scores.GreenPercentage, scores.TextureScore)
	g.logger.Debug("leaf verdict",
		zap.Bool("is_valid", verdict.IsValid),
		zap.Int("confidence", verdict.Confidence),
		zap.Float64("green_percentage", scores.GreenPercentage),
		zap.Float64("texture_score", scores.TextureScore),
	)
	return verdict
}

// Decide applies the ordered admission ladder; the first matching rule wins.
func (g *Gate) Decide(green, texture float64) Verdict {
	t := g.thresholds
	v := Verdict{DebugInfo: &DebugInfo{GreenPercentage: round2(green), TextureScore: round2(texture)}}

	switch {
	case green >= t.GreenDominant:
		v.IsValid = true
		v.Confidence = min(int(green+texture*0.3), 95)
		v.Reason = fmt.Sprintf("Foto menunjukkan area hijau dominan (%.1f%%)", green)
		v.DetectedContent = "Daun/tanaman dengan area hijau besar"
	case green >= t.GreenModerate && texture >= t.TextureModerate:
		v.IsValid = true
		v.Confidence = min(int(green*0.7+texture*0.8), 90)
		v.Reason = fmt.Sprintf("Foto menunjukkan area hijau (%.1f%%) dengan tekstur daun", green)
		v.DetectedContent = "Daun/tanaman dengan tekstur natural"
	case texture >= t.TextureHigh:
		v.IsValid = true
		v.Confidence = min(int(texture+green*0.5), 85)
		v.Reason = fmt.Sprintf("Tekstur daun terdeteksi (score: %.1f)", texture)
		v.DetectedContent = "Daun dengan pola tekstur yang jelas"
	case green >= t.GreenLow:
		v.Confidence = int(green * 2)
		v.Reason = fmt.Sprintf("Area hijau terlalu sedikit (%.1f%%)", green)
		v.DetectedContent = "Foto dengan sedikit area hijau - mungkin bukan daun segar"
		v.Suggestion = "Upload foto close-up daun segar dengan warna hijau yang jelas"
	default:
		v.Confidence = 10
		v.Reason = fmt.Sprintf("Tidak ada area hijau yang signifikan (%.1f%%)", green)
		v.DetectedContent = "Foto tanpa elemen hijau - kemungkinan orang/hewan/benda"
		v.Suggestion = "Upload foto daun tanaman yang segar dengan warna hijau"
	}
	return v
}

func validationErrorVerdict(err error) Verdict {
	return Verdict{
		Reason:          fmt.Sprintf("Error saat validasi: %v", err),
		DetectedContent: "Error",
		Suggestion:      "Pastikan file adalah foto yang valid (JPG/PNG)",
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
