package signals

import (
	"log/slog"
	"sort"

	"github.com/prognocap/alphaengine/internal/domain"
)

// Filter scores signals by expected value and keeps only those with a
// positive EV and an edge above the global floor. Survivors come back
// sorted by EV descending, ties kept in input order so ranking is
// deterministic across cycles.
type Filter struct {
	minEdge float64
	log     *slog.Logger
}

func NewFilter(minEdge float64, log *slog.Logger) *Filter {
	return &Filter{minEdge: minEdge, log: log.With("component", "filter")}
}

func (f *Filter) Apply(sigs []domain.Signal) []domain.Signal {
	kept := make([]domain.Signal, 0, len(sigs))

	for _, s := range sigs {
		s.EV = domain.ExpectedValue(s.ModelProb, s.DecimalOdds)
		s.Edge = domain.Edge(s.ModelProb, s.MarketProb)
		if s.EV <= 0 || s.Edge <= f.minEdge {
			continue
		}
		kept = append(kept, s)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].EV > kept[j].EV
	})

	f.log.Debug("edge filter applied", "in", len(sigs), "out", len(kept))
	return kept
}
