package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/grovia/internal/repository"
)

// diseaseSeed is one knowledge-base entry in a seed file.
type diseaseSeed struct {
	DiseaseID         string   `json:"disease_id"`
	Name              string   `json:"name"`
	ScientificName    string   `json:"scientific_name"`
	Category          string   `json:"category"`
	Severity          string   `json:"severity"`
	Description       string   `json:"description"`
	Symptoms          []string `json:"symptoms"`
	Causes            []string `json:"causes"`
	AffectedPlants    []string `json:"affected_plants"`
	Prevention        []string `json:"prevention"`
	Treatment         []string `json:"treatment"`
	OrganicSolutions  []string `json:"organic_solutions"`
	ChemicalSolutions []string `json:"chemical_solutions"`
	AdditionalTips    []string `json:"additional_tips"`
	ThumbnailURL      string   `json:"thumbnail_url"`
}

func (s diseaseSeed) model() *repository.Disease {
	return &repository.Disease{
		DiseaseID:         strings.TrimSpace(s.DiseaseID),
		Name:              s.Name,
		ScientificName:    s.ScientificName,
		Category:          strings.ToLower(s.Category),
		Severity:          strings.ToLower(s.Severity),
		Description:       s.Description,
		Symptoms:          s.Symptoms,
		Causes:            s.Causes,
		AffectedPlants:    s.AffectedPlants,
		Prevention:        s.Prevention,
		Treatment:         s.Treatment,
		OrganicSolutions:  s.OrganicSolutions,
		ChemicalSolutions: s.ChemicalSolutions,
		AdditionalTips:    s.AdditionalTips,
		ThumbnailURL:      s.ThumbnailURL,
	}
}

type diseaseUpserter interface {
	Upsert(ctx context.Context, disease *repository.Disease) error
}

func seedCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-diseases <file.json>",
		Short: "Insert or update knowledge-base entries from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*envFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			db, err := initDatabase(cmd.Context(), cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			if err := repository.AutoMigrate(cmd.Context(), db); err != nil {
				return err
			}

			n, err := seedDiseases(cmd.Context(), f, repository.NewDiseaseRepository(db, logger))
			if err != nil {
				return err
			}
			logger.Info("knowledge base seeded", zap.Int("entries", n), zap.String("file", args[0]))
			return nil
		},
	}
}

func seedDiseases(ctx context.Context, r io.Reader, repo diseaseUpserter) (int, error) {
	var seeds []diseaseSeed
	if err := json.NewDecoder(r).Decode(&seeds); err != nil {
		return 0, fmt.Errorf("failed to decode seed file: %w", err)
	}
	for i, seed := range seeds {
		if strings.TrimSpace(seed.DiseaseID) == "" {
			return i, fmt.Errorf("entry %d has no disease_id", i)
		}
		if err := repo.Upsert(ctx, seed.model()); err != nil {
			return i, fmt.Errorf("failed to upsert %s: %w", seed.DiseaseID, err)
		}
	}
	return len(seeds), nil
}
