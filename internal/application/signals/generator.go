// Package signals turns raw venue instruments into scored trading signals.
package signals

import (
	"context"
	"log/slog"

	"github.com/prognocap/alphaengine/internal/domain"
	"github.com/prognocap/alphaengine/internal/ports"
)

// priceEpsilon bounds the implied market probability away from 0 and 1 so
// decimal odds stay finite.
const priceEpsilon = 0.01

// Generator builds one Signal per instrument using a pluggable
// probability model. Instruments with unusable prices are dropped, not
// errored, so one bad quote never costs a cycle.
type Generator struct {
	model ports.ProbabilityModel
	log   *slog.Logger
}

func NewGenerator(model ports.ProbabilityModel, log *slog.Logger) *Generator {
	return &Generator{model: model, log: log.With("component", "signals")}
}

// Generate scores every instrument. Model failures on individual
// instruments are logged at debug and skipped.
func (g *Generator) Generate(ctx context.Context, instruments []domain.Instrument) []domain.Signal {
	out := make([]domain.Signal, 0, len(instruments))

	for _, inst := range instruments {
		if inst.Price <= 0 || inst.Price >= 1 {
			g.log.Debug("dropping instrument with unusable price",
				"venue", inst.Venue, "instrument", inst.ID, "price", inst.Price)
			continue
		}

		prob, conf, err := g.model.Estimate(ctx, inst)
		if err != nil {
			g.log.Debug("model estimate failed",
				"venue", inst.Venue, "instrument", inst.ID, "error", err)
			continue
		}

		marketProb := clamp(inst.Price, priceEpsilon, 1-priceEpsilon)
		out = append(out, domain.Signal{
			Instrument:  inst,
			ModelProb:   prob,
			MarketProb:  marketProb,
			DecimalOdds: 1 / marketProb,
			Confidence:  conf,
		})
	}

	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BaselineModel is the default probability source: it takes the market
// price as the outcome probability and nudges it by a fixed fraction
// toward the nearer extreme, modeling mild favorite-longshot bias. It
// exists so the engine runs end to end before a real model is wired in.
type BaselineModel struct {
	// Tilt is the fraction of the distance to the nearer extreme added
	// to the market price. Zero means the model agrees with the market.
	Tilt float64
	// Confidence reported for every estimate, 0-100.
	Confidence float64
}

func (m BaselineModel) Estimate(_ context.Context, inst domain.Instrument) (float64, float64, error) {
	p := clamp(inst.Price, priceEpsilon, 1-priceEpsilon)
	if p >= 0.5 {
		p += m.Tilt * (1 - p)
	} else {
		p -= m.Tilt * p
	}
	return clamp(p, priceEpsilon, 1-priceEpsilon), m.Confidence, nil
}
