package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/grovia/internal/logging"
	"github.com/example/grovia/internal/repository"
)

// DiseaseCatalog is the knowledge-base surface used by KnowledgeUseCase.
type DiseaseCatalog interface {
	List(ctx context.Context, search, category string) ([]repository.Disease, error)
	FindByDiseaseID(ctx context.Context, diseaseID string) (*repository.Disease, error)
}

// DiseaseSummary is one row of the knowledge-base listing.
type DiseaseSummary struct {
	DiseaseID      string `json:"disease_id"`
	DiseaseName    string `json:"disease_name"`
	ScientificName string `json:"scientific_name"`
	Category       string `json:"category,omitempty"`
	Severity       string `json:"severity,omitempty"`
	Thumbnail      string `json:"thumbnail,omitempty"`
}

// DiseaseDetail is the full knowledge-base entry.
type DiseaseDetail struct {
	DiseaseSummary
	Description       string   `json:"description"`
	Symptoms          []string `json:"symptoms"`
	Causes            []string `json:"causes"`
	AffectedPlants    []string `json:"affected_plants"`
	Prevention        []string `json:"prevention"`
	Treatment         []string `json:"treatment"`
	OrganicSolutions  []string `json:"organic_solutions"`
	ChemicalSolutions []string `json:"chemical_solutions"`
	AdditionalTips    []string `json:"additional_tips"`
}

// Treatment is the treatment document for a disease.
type Treatment struct {
	DiseaseID         string   `json:"disease_id"`
	DiseaseName       string   `json:"disease_name"`
	Prevention        []string `json:"prevention"`
	Treatment         []string `json:"treatment"`
	OrganicSolutions  []string `json:"organic_solutions"`
	ChemicalSolutions []string `json:"chemical_solutions"`
	AdditionalTips    []string `json:"additional_tips"`
}

// Option is a value/label pair offered to clients.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Categories lists the disease categories of the knowledge base.
var Categories = []Option{
	{Value: "fungal", Label: "Jamur"},
	{Value: "bacterial", Label: "Bakteri"},
	{Value: "viral", Label: "Virus"},
	{Value: "pest", Label: "Hama"},
}

// SeverityLevels lists the severity levels of the knowledge base.
var SeverityLevels = []Option{
	{Value: "high", Label: "Tinggi", Color: "#e53e3e"},
	{Value: "medium", Label: "Sedang", Color: "#d69e2e"},
	{Value: "low", Label: "Rendah", Color: "#38a169"},
}

// KnowledgeUseCase serves the disease knowledge base.
type KnowledgeUseCase struct {
	catalog DiseaseCatalog
	logger  *zap.Logger
}

// NewKnowledgeUseCase constructs a new use case instance.
func NewKnowledgeUseCase(catalog DiseaseCatalog, logger *zap.Logger) *KnowledgeUseCase {
	return &KnowledgeUseCase{catalog: catalog, logger: logger.Named("knowledge_usecase")}
}

// Diseases lists entries matching search and category.
func (uc *KnowledgeUseCase) Diseases(ctx context.Context, search, category string) ([]DiseaseSummary, error) {
	entries, err := uc.catalog.List(ctx, search, category)
	if err != nil {
		return nil, err
	}
	out := make([]DiseaseSummary, 0, len(entries))
	for i := range entries {
		out = append(out, summarize(&entries[i]))
	}
	return out, nil
}

// Disease returns the full entry for diseaseID.
func (uc *KnowledgeUseCase) Disease(ctx context.Context, diseaseID string) (*DiseaseDetail, error) {
	entry, err := uc.catalog.FindByDiseaseID(ctx, diseaseID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDiseaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &DiseaseDetail{
		DiseaseSummary:    summarize(entry),
		Description:       entry.Description,
		Symptoms:          nonNil(entry.Symptoms),
		Causes:            nonNil(entry.Causes),
		AffectedPlants:    nonNil(entry.AffectedPlants),
		Prevention:        nonNil(entry.Prevention),
		Treatment:         nonNil(entry.Treatment),
		OrganicSolutions:  nonNil(entry.OrganicSolutions),
		ChemicalSolutions: nonNil(entry.ChemicalSolutions),
		AdditionalTips:    nonNil(entry.AdditionalTips),
	}, nil
}

// Treatment returns the treatment document for diseaseID. Unknown diseases and
// lookup failures yield an empty document named "Unknown".
func (uc *KnowledgeUseCase) Treatment(ctx context.Context, diseaseID string) *Treatment {
	entry, err := uc.catalog.FindByDiseaseID(ctx, diseaseID)
	if err != nil {
		opLogger := logging.WithOperation(uc.logger, "usecase.treatment", logging.RequestIDFromContext(ctx))
		if errors.Is(err, repository.ErrNotFound) {
			opLogger.Info("treatment not found", zap.String("disease_id", diseaseID))
		} else {
			opLogger.Warn("treatment lookup failed", zap.String("disease_id", diseaseID), zap.Error(err))
		}
		return &Treatment{
			DiseaseID:         diseaseID,
			DiseaseName:       "Unknown",
			Prevention:        []string{},
			Treatment:         []string{},
			OrganicSolutions:  []string{},
			ChemicalSolutions: []string{},
			AdditionalTips:    []string{},
		}
	}
	return &Treatment{
		DiseaseID:         entry.DiseaseID,
		DiseaseName:       entry.Name,
		Prevention:        nonNil(entry.Prevention),
		Treatment:         nonNil(entry.Treatment),
		OrganicSolutions:  nonNil(entry.OrganicSolutions),
		ChemicalSolutions: nonNil(entry.ChemicalSolutions),
		AdditionalTips:    nonNil(entry.AdditionalTips),
	}
}

func summarize(d *repository.Disease) DiseaseSummary {
	return DiseaseSummary{
		DiseaseID:      d.DiseaseID,
		DiseaseName:    d.Name,
		ScientificName: d.ScientificName,
		Category:       d.Category,
		Severity:       d.Severity,
		Thumbnail:      d.ThumbnailURL,
	}
}
