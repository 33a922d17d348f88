package ports

import (
	"context"

	"github.com/prognocap/alphaengine/internal/domain"
)

// ProbabilityModel supplies the probability estimate a signal is built
// from. Pluggable so a real predictive model can replace the baseline
// without touching the pipeline.
type ProbabilityModel interface {
	// Estimate returns the modeled probability (0-1) of the instrument's
	// outcome and a confidence score (0-100).
	Estimate(ctx context.Context, inst domain.Instrument) (prob, confidence float64, err error)
}
