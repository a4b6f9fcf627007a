package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/example/grovia/internal/leaf"
	"github.com/example/grovia/internal/repository"
)

func TestValidateImagesReportsMissingFiles(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.jpg")
	var out bytes.Buffer

	rejected := validateImages(&out, leaf.NewGate(leaf.DefaultThresholds(), zap.NewNop()), []string{missing}, false)

	if rejected != 1 {
		t.Fatalf("expected 1 rejection, got %d", rejected)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if got["file"] != missing || got["is_valid"] != false || got["reason"] == "" {
		t.Fatalf("unexpected verdict %v", got)
	}
	if _, ok := got["debug_info"]; ok {
		t.Fatal("debug info must be omitted without --debug")
	}
}

type recordingUpserter struct {
	saved []*repository.Disease
	err   error
}

func (r *recordingUpserter) Upsert(ctx context.Context, disease *repository.Disease) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, disease)
	return nil
}

func TestSeedDiseases(t *testing.T) {
	input := `[
		{"disease_id": "leaf_rust", "name": "Karat Daun", "category": "Fungal", "symptoms": ["pustula oranye"]},
		{"disease_id": "bacterial_spot", "name": "Bercak Bakteri", "severity": "HIGH"}
	]`
	repo := &recordingUpserter{}

	n, err := seedDiseases(context.Background(), strings.NewReader(input), repo)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 2 || len(repo.saved) != 2 {
		t.Fatalf("expected 2 entries, got %d (%d saved)", n, len(repo.saved))
	}
	if repo.saved[0].Category != "fungal" || repo.saved[0].Symptoms[0] != "pustula oranye" {
		t.Fatalf("unexpected first entry %+v", repo.saved[0])
	}
	if repo.saved[1].Severity != "high" {
		t.Fatalf("severity not normalized: %q", repo.saved[1].Severity)
	}
}

func TestSeedDiseasesRejectsBadInput(t *testing.T) {
	if _, err := seedDiseases(context.Background(), strings.NewReader(`{"not":"an array"}`), &recordingUpserter{}); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := seedDiseases(context.Background(), strings.NewReader(`[{"name":"no id"}]`), &recordingUpserter{}); err == nil {
		t.Fatal("expected missing id error")
	}

	failing := &recordingUpserter{err: errors.New("db down")}
	if n, err := seedDiseases(context.Background(), strings.NewReader(`[{"disease_id":"x"}]`), failing); err == nil || n != 0 {
		t.Fatalf("expected upsert failure, got n=%d err=%v", n, err)
	}
}
