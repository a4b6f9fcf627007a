package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const generateURL = "https://gemini.test/v1beta/models/gemini-2.5-flash:generateContent"

func newMockedClient(t *testing.T) *GeminiClient {
	t.Helper()
	client, err := NewGeminiClient(GeminiConfig{APIKey: "test-key", BaseURL: "https://gemini.test/v1beta/"}, zap.NewNop())
	require.NoError(t, err)
	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func candidateBody(text string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
			"finishReason": "STOP",
		}},
	}
}

func TestGeminiGenerateSendsPromptAndImage(t *testing.T) {
	client := newMockedClient(t)

	var captured geminiRequest
	httpmock.RegisterResponder(http.MethodPost, generateURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "test-key", req.Header.Get("x-goog-api-key"))
		if err := json.NewDecoder(req.Body).Decode(&captured); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
		}
		return httpmock.NewJsonResponse(http.StatusOK, candidateBody("```json\n{\"disease_id\":\"healthy\"}\n```"))
	})

	text, err := client.Generate(context.Background(), "diagnose", Image{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	assert.Contains(t, text, `"disease_id":"healthy"`)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "diagnose", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Equal(t, "/9g=", parts[1].InlineData.Data)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestGeminiGenerateErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		wantErr   string
	}{
		{"http error", httpmock.NewStringResponder(http.StatusTooManyRequests, `{"error":"quota"}`), "gemini API error (429)"},
		{"no candidates", httpmock.NewStringResponder(http.StatusOK, `{"candidates":[]}`), "empty response"},
		{"blank text", httpmock.NewJsonResponderOrPanic(http.StatusOK, candidateBody("   ")), "empty response"},
		{"invalid json", httpmock.NewStringResponder(http.StatusOK, `not-json`), "parse response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockedClient(t)
			httpmock.RegisterResponder(http.MethodPost, generateURL, tt.responder)

			_, err := client.Generate(context.Background(), "p", Image{MIMEType: "image/jpeg", Data: []byte{1}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	_, err := NewGeminiClient(GeminiConfig{}, zap.NewNop())
	require.Error(t, err)
}

type stubModel struct {
	text   string
	err    error
	calls  int
	images []Image
}

func (s *stubModel) Generate(_ context.Context, _ string, img Image) (string, error) {
	s.calls++
	s.images = append(s.images, img)
	return s.text, s.err
}

func (s *stubModel) Provider() string { return "stub" }
func (s *stubModel) Model() string    { return "stub-1" }

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{G: 150, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "leaf.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestPredictorNormalizesModelOutput(t *testing.T) {
	model := &stubModel{text: "```json\n{\"disease_id\":\"leaf_rust\",\"confidence\":1.4}\n```"}
	p := NewPredictor(model, zap.NewNop())

	result, err := p.Predict(context.Background(), writeTestPNG(t, 2048, 1024))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "leaf_rust", result.DiseaseID)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)

	require.Len(t, model.images, 1)
	assert.Equal(t, "image/jpeg", model.images[0].MIMEType)
	cfg, err := jpegConfig(model.images[0].Data)
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 512, cfg.Height)
}

func TestPredictorFailures(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		p := NewPredictor(&stubModel{err: errors.New("upstream down")}, zap.NewNop())
		result, err := p.Predict(context.Background(), writeTestPNG(t, 8, 8))
		require.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("empty text", func(t *testing.T) {
		p := NewPredictor(&stubModel{}, zap.NewNop())
		_, err := p.Predict(context.Background(), writeTestPNG(t, 8, 8))
		require.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("missing file", func(t *testing.T) {
		model := &stubModel{text: "{}"}
		p := NewPredictor(model, zap.NewNop())
		_, err := p.Predict(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
		require.Error(t, err)
		assert.Zero(t, model.calls)
	})
}

func TestPredictorInfo(t *testing.T) {
	info := NewPredictor(&stubModel{}, zap.NewNop()).Info()
	assert.Equal(t, "stub", info.Provider)
	assert.Equal(t, "stub-1", info.Model)
	assert.NotEmpty(t, info.AnalysisMethod)
}

func jpegConfig(data []byte) (image.Config, error) {
	return jpeg.DecodeConfig(bytes.NewReader(data))
}
