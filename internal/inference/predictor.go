// Package inference sends admitted leaf photos to the external vision model
// and returns normalized diagnoses.
package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/example/grovia/internal/diagnosis"
	"github.com/example/grovia/internal/leaf"
	"github.com/example/grovia/internal/logging"
)

// maxModelEdge bounds the image sent upstream.
const maxModelEdge = 1024

// Image is an encoded image payload.
type Image struct {
	MIMEType string
	Data     []byte
}

// Model is a multimodal text generator.
type Model interface {
	Generate(ctx context.Context, prompt string, image Image) (string, error)
	Provider() string
	Model() string
}

// Info describes the model behind a Predictor.
type Info struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	AnalysisMethod string `json:"analysis_method"`
}

// Predictor prepares an image, queries the model with the diagnosis prompt and
// normalizes the answer. One Predictor is shared by all requests.
type Predictor struct {
	model  Model
	prompt string
	logger *zap.Logger
}

// NewPredictor creates a predictor around model.
func NewPredictor(model Model, logger *zap.Logger) *Predictor {
	return &Predictor{model: model, prompt: DiagnosisPrompt, logger: logger.Named("predictor")}
}

// Predict diagnoses the image stored at imagePath. Malformed model output is
// absorbed by the normalizer; an error means no usable result exists.
func (p *Predictor) Predict(ctx context.Context, imagePath string) (*diagnosis.Result, error) {
	payload, err := prepareImage(imagePath)
	if err != nil {
		return nil, logging.NewOperationError("inference.prepare_image", "", err)
	}

	started := time.Now()
	text, err := p.model.Generate(ctx, p.prompt, payload)
	if err != nil {
		return nil, logging.NewOperationError("inference.generate", "", err)
	}
	if text == "" {
		return nil, logging.NewOperationError("inference.generate", "", ErrEmptyResponse)
	}

	result := diagnosis.Parse(text)
	p.logger.Info("diagnosis produced",
		zap.String("disease_id", result.DiseaseID),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("latency", time.Since(started)),
	)
	return &result, nil
}

// Info reports provider and model names.
func (p *Predictor) Info() Info {
	return Info{Provider: p.model.Provider(), Model: p.model.Model(), AnalysisMethod: diagnosis.AnalysisMethod}
}

// prepareImage decodes the upload, caps its longest edge and re-encodes it as JPEG.
func prepareImage(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := leaf.ScaledSize(b.Dx(), b.Dy(), maxModelEdge)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return Image{}, fmt.Errorf("encode image: %w", err)
	}
	if buf.Len() == 0 {
		return Image{}, errors.New("encoded image is empty")
	}
	return Image{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}
