package usecase

import (
	"errors"
	"strings"

	"github.com/example/grovia/internal/leaf"
)

var (
	// ErrAdmissionRejected matches any *AdmissionError.
	ErrAdmissionRejected = errors.New("image rejected by leaf gate")
	// ErrInferenceUnavailable reports that the model produced no usable diagnosis.
	ErrInferenceUnavailable = errors.New("model returned no prediction")
	// ErrHistoryNotFound is returned for missing or foreign history records.
	ErrHistoryNotFound = errors.New("history not found")
	// ErrInvalidHistoryQuery reports paging or sort values outside the accepted ranges.
	ErrInvalidHistoryQuery = errors.New("invalid history query")
	// ErrDiseaseNotFound is returned for unknown knowledge-base entries.
	ErrDiseaseNotFound = errors.New("disease not found")
)

// AdmissionError carries the verdict of a rejected image.
type AdmissionError struct {
	Verdict leaf.Verdict
}

func (e *AdmissionError) Error() string {
	parts := []string{e.Verdict.Reason}
	if e.Verdict.Suggestion != "" {
		parts = append(parts, e.Verdict.Suggestion)
	}
	return strings.Join(parts, ". ")
}

// Is reports whether target is ErrAdmissionRejected.
func (e *AdmissionError) Is(target error) bool {
	return target == ErrAdmissionRejected
}
