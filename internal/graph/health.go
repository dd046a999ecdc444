package graph

import (
	"math"
	"time"
)

// HealthBreakdown shows the sub-scores of the health formula
type HealthBreakdown struct {
	Reach     float64 `json:"reach"`
	Coverage  float64 `json:"coverage"`
	Freshness float64 `json:"freshness"`
	Quality   float64 `json:"quality"`
}

// AnalysisReport is the full analysis result
type AnalysisReport struct {
	HealthScore     float64          `json:"health_score"`
	HealthBreakdown HealthBreakdown  `json:"health_breakdown"`
	Topology        *TopologyReport  `json:"topology"`
	Coverage        *CoverageReport  `json:"coverage"`
	Staleness       *StalenessReport `json:"staleness"`
	Bridges         *BridgeReport    `json:"bridges"`
	Duplicates      []DuplicatePair  `json:"duplicates"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	SharedThreshold int
	TopN            int
	StaleDays       int
	DupSimilarity   float64
	Now             time.Time
}

// DefaultConfig returns the defaults the CLI ships with
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		SharedThreshold: 3,
		TopN:            10,
		StaleDays:       30,
		DupSimilarity:   0.75,
	}
}

// Analyze runs every analysis and folds them into a 0..1 health score:
//
//	0.30 reach + 0.30 coverage + 0.20 freshness + 0.20 quality
//
// Items without a quality score do not count toward quality; with no scores at all the
// quality term is 1.
func Analyze(snap *Snapshot, cfg *AnalyzerConfig) *AnalysisReport {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}

	topology := ComputeTopology(snap, cfg.SharedThreshold, cfg.TopN)
	coverage := ComputeCoverage(snap, cfg.TopN)
	staleness := ComputeStaleness(snap, cfg.StaleDays, now, cfg.TopN)
	bridges := ComputeBridges(snap, 3, cfg.TopN)
	dups := FindNearDuplicates(snap, cfg.DupSimilarity, cfg.TopN)

	var b HealthBreakdown
	total := float64(topology.TotalItems)
	if total > 0 {
		b.Reach = clamp(1-float64(topology.UnreachableCount)/total, 0, 1)

		parents := 0
		for _, t := range []string{"Objective", "Tactic", "BestPractice"} {
			parents += topology.ByType[t]
		}
		b.Coverage = 1
		if parents > 0 {
			b.Coverage = clamp(1-float64(coverage.GapCount)/float64(parents), 0, 1)
		}

		// more than a tenth of the plan stale zeroes freshness
		b.Freshness = clamp(1-math.Min(float64(staleness.StaleItemCount)/total, 0.1)*10, 0, 1)

		b.Quality = 1
		if coverage.Scored > 0 {
			b.Quality = clamp(coverage.AvgScore/100, 0, 1)
		}
	}

	return &AnalysisReport{
		HealthScore:     0.30*b.Reach + 0.30*b.Coverage + 0.20*b.Freshness + 0.20*b.Quality,
		HealthBreakdown: b,
		Topology:        topology,
		Coverage:        coverage,
		Staleness:       staleness,
		Bridges:         bridges,
		Duplicates:      dups,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
