package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/grovia/internal/diagnosis"
	"github.com/example/grovia/internal/leaf"
	"github.com/example/grovia/internal/logging"
	"github.com/example/grovia/internal/repository"
	"github.com/example/grovia/internal/storage"
)

// LeafGate decides whether a stored image is plausibly a leaf.
type LeafGate interface {
	Validate(path string) leaf.Verdict
}

// DiagnosisPredictor produces a normalized diagnosis for a stored image.
type DiagnosisPredictor interface {
	Predict(ctx context.Context, imagePath string) (*diagnosis.Result, error)
}

// HistoryRecorder persists detection history records.
type HistoryRecorder interface {
	Create(ctx context.Context, record *repository.DetectionHistory) error
}

// DiseaseLookup finds knowledge-base entries by disease id.
type DiseaseLookup interface {
	FindByDiseaseID(ctx context.Context, diseaseID string) (*repository.Disease, error)
}

// PipelineConfig tunes the detection pipeline.
type PipelineConfig struct {
	UploadDir        string
	CloudStorage     bool
	StorageFolder    string
	Budget           time.Duration
	InferenceTimeout time.Duration
	StorageTimeout   time.Duration
}

// PipelineDeps groups the collaborators of the detection pipeline. Relocator,
// History, Diseases, Timezones and Metrics are optional.
type PipelineDeps struct {
	Gate      LeafGate
	Predictor DiagnosisPredictor
	Relocator storage.Relocator
	History   HistoryRecorder
	Diseases  DiseaseLookup
	Timezones *TimezoneResolver
	Metrics   *PipelineMetrics
}

// Submission is one uploaded image.
type Submission struct {
	UserID   string
	Filename string
	Timezone string
	Content  io.Reader
}

// Detection is the user-facing result of a successful pipeline run.
type Detection struct {
	DetectionID       *uint    `json:"detection_id"`
	DiseaseID         string   `json:"disease_id"`
	DiseaseName       string   `json:"disease_name"`
	ScientificName    string   `json:"scientific_name"`
	Confidence        float64  `json:"confidence"`
	ConfidencePercent float64  `json:"confidence_percent"`
	ConfidenceLevel   string   `json:"confidence_level"`
	IsHealthy         bool     `json:"is_healthy"`
	ImageURL          string   `json:"image_url"`
	Description       string   `json:"description"`
	Severity          string   `json:"severity"`
	Symptoms          []string `json:"symptoms"`
	Recommendations   []string `json:"recommendations"`
	Prevention        []string `json:"prevention"`
	DetectedAt        string   `json:"detected_at"`
}

// DetectionPipeline runs admission, inference, enrichment, relocation and
// history recording for one submission. Admission and inference failures end
// the request; the remaining stages only degrade the response.
type DetectionPipeline struct {
	deps   PipelineDeps
	cfg    PipelineConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewDetectionPipeline constructs a pipeline. Zero durations fall back to 25s
// for budget and inference and 20s for storage.
func NewDetectionPipeline(deps PipelineDeps, cfg PipelineConfig, logger *zap.Logger) *DetectionPipeline {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 25 * time.Second
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 25 * time.Second
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 20 * time.Second
	}
	return &DetectionPipeline{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("detection_pipeline"),
		now:    time.Now,
	}
}

// Detect runs the pipeline. It returns an *AdmissionError for rejected images
// and an error wrapping ErrInferenceUnavailable when no diagnosis exists.
func (p *DetectionPipeline) Detect(ctx context.Context, sub Submission) (*Detection, error) {
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}
	opLogger := logging.WithOperation(p.logger, "usecase.detect", requestID).With(zap.String("user_id", sub.UserID))

	started := p.now()
	defer func() {
		elapsed := p.now().Sub(started)
		p.deps.Metrics.ObserveDuration(elapsed)
		if elapsed > p.cfg.Budget {
			p.deps.Metrics.IncrementBudgetOverruns()
			opLogger.Warn("detection exceeded processing budget",
				zap.Duration("elapsed", elapsed), zap.Duration("budget", p.cfg.Budget))
		}
	}()

	art, err := writeArtifact(p.cfg.UploadDir, sub.UserID, sub.Filename, sub.Content, started, opLogger)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.save_upload", requestID, err)
		opLogger.Error("failed to store upload", logging.ErrorField(wrapped))
		return nil, wrapped
	}
	defer art.Release()

	verdict := p.deps.Gate.Validate(art.path)
	if !verdict.IsValid {
		p.deps.Metrics.ObserveStage(StageAdmission, "rejected")
		opLogger.Info("image rejected by leaf gate",
			zap.String("detected_content", verdict.DetectedContent), zap.Int("confidence", verdict.Confidence))
		return nil, &AdmissionError{Verdict: verdict}
	}
	p.deps.Metrics.ObserveStage(StageAdmission, "ok")

	// Once inference starts the remaining stages run to completion even if
	// the client goes away.
	work := context.WithoutCancel(ctx)

	result, err := p.infer(work, art.path)
	if err != nil {
		p.deps.Metrics.ObserveStage(StageInference, "failed")
		wrapped := logging.NewOperationError("usecase.inference", requestID, err)
		opLogger.Error("inference failed", logging.ErrorField(wrapped))
		return nil, wrapped
	}
	p.deps.Metrics.ObserveStage(StageInference, "ok")

	knowledge := p.lookupDisease(work, result.DiseaseID)
	p.observe(StageKnowledge, knowledge.Label())
	if err := knowledge.Err(); err != nil {
		opLogger.Warn("knowledge lookup failed", logging.ErrorField(logging.NewOperationError("usecase.knowledge_lookup", requestID, err)))
	}

	relocation := p.relocate(work, art)
	p.observe(StageStorage, relocation.Label())
	if err := relocation.Err(); err != nil {
		opLogger.Warn("storage relocation failed, keeping local copy",
			logging.ErrorField(logging.NewOperationError("usecase.storage_relocate", requestID, err)))
	}

	description := result.AnalysisNotes
	if entry, ok := knowledge.Value(); ok && entry.Description != "" {
		description = entry.Description
	}

	// without a remote copy the stored reference is relative to the upload dir
	storedRef := relocation.OrElse(&storage.Upload{URL: "uploads/" + art.name}).URL
	imageURL := storedRef
	if !relocation.IsOk() {
		imageURL = "/" + storedRef
		art.Keep()
	}

	record := &repository.DetectionHistory{
		UserID:          sub.UserID,
		DiseaseID:       result.DiseaseID,
		DiseaseName:     result.DiseaseName,
		ScientificName:  result.ScientificName,
		Confidence:      result.Confidence,
		Severity:        result.Severity,
		IsHealthy:       result.IsHealthy,
		ImageURL:        storedRef,
		Description:     description,
		Symptoms:        result.Symptoms,
		Recommendations: result.Recommendations,
		Prevention:      result.Prevention,
		DetectedAt:      p.now().UTC(),
	}
	saved := p.recordHistory(work, record)
	p.observe(StageHistory, saved.Label())
	if err := saved.Err(); err != nil {
		opLogger.Error("failed to save detection history", logging.ErrorField(logging.NewOperationError("usecase.history_create", requestID, err)))
	}

	loc := p.deps.Timezones.Resolve(work, sub.UserID, sub.Timezone)
	detection := &Detection{
		DiseaseID:         result.DiseaseID,
		DiseaseName:       result.DiseaseName,
		ScientificName:    result.ScientificName,
		Confidence:        result.Confidence,
		ConfidencePercent: result.ConfidencePercent,
		ConfidenceLevel:   result.ConfidenceLevel,
		IsHealthy:         result.IsHealthy,
		ImageURL:          imageURL,
		Description:       description,
		Severity:          result.Severity,
		Symptoms:          result.Symptoms,
		Recommendations:   result.Recommendations,
		Prevention:        result.Prevention,
		DetectedAt:        p.now().In(loc).Format(time.RFC3339),
	}
	if rec, ok := saved.Value(); ok {
		id := rec.ID
		detection.DetectionID = &id
		detection.DetectedAt = rec.DetectedAt.In(loc).Format(time.RFC3339)
	}

	opLogger.Info("detection completed",
		zap.String("disease_id", detection.DiseaseID),
		zap.Float64("confidence_percent", detection.ConfidencePercent),
		zap.Bool("history_saved", saved.IsOk()),
		zap.Bool("relocated", relocation.IsOk()),
	)
	return detection, nil
}

func (p *DetectionPipeline) infer(ctx context.Context, path string) (*diagnosis.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.InferenceTimeout)
	defer cancel()

	result, err := p.deps.Predictor.Predict(ctx, path)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInferenceUnavailable, err)
	case result == nil:
		return nil, ErrInferenceUnavailable
	}
	return result, nil
}

func (p *DetectionPipeline) lookupDisease(ctx context.Context, diseaseID string) Outcome[*repository.Disease] {
	if p.deps.Diseases == nil || diseaseID == "" {
		return Skipped[*repository.Disease]()
	}
	entry, err := p.deps.Diseases.FindByDiseaseID(ctx, diseaseID)
	if errors.Is(err, repository.ErrNotFound) {
		return Skipped[*repository.Disease]()
	}
	if err != nil {
		return Failed[*repository.Disease](err)
	}
	return Ok(entry)
}

func (p *DetectionPipeline) relocate(ctx context.Context, art *artifact) Outcome[*storage.Upload] {
	if !p.cfg.CloudStorage || p.deps.Relocator == nil {
		return Skipped[*storage.Upload]()
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.StorageTimeout)
	defer cancel()

	upload, err := p.deps.Relocator.Relocate(ctx, art.path, p.cfg.StorageFolder, strings.TrimSuffix(art.name, filepath.Ext(art.name)))
	if err != nil {
		return Failed[*storage.Upload](err)
	}
	if upload == nil || upload.URL == "" {
		return Failed[*storage.Upload](errors.New("relocator returned no url"))
	}
	return Ok(upload)
}

func (p *DetectionPipeline) recordHistory(ctx context.Context, record *repository.DetectionHistory) Outcome[*repository.DetectionHistory] {
	if p.deps.History == nil {
		return Skipped[*repository.DetectionHistory]()
	}
	if err := p.deps.History.Create(ctx, record); err != nil {
		return Failed[*repository.DetectionHistory](err)
	}
	return Ok(record)
}

func (p *DetectionPipeline) observe(stage, outcome string) {
	p.deps.Metrics.ObserveStage(stage, outcome)
}
