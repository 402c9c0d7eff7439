package exceptions

// Detector threshold defaults. Each field of DetectorConfig can be
// overridden independently; zero values fall back to these.
const (
	DefaultPortfolioValueChangeThreshold  = 0.05
	DefaultValidatorCountChangeThreshold  = 0.10
	DefaultInTransitStuckThresholdDays    = 7
	DefaultRewardsAnomalyThreshold        = 0.30
	DefaultPerformanceDivergenceThreshold = 0.20
)

// DetectorConfig is an immutable per-call options value; detectors never
// consult package-level state, so concurrent runs are safe by construction.
type DetectorConfig struct {
	// PortfolioValueChangeThreshold is the relative change in total
	// portfolio value between snapshots that raises an exception.
	PortfolioValueChangeThreshold float64

	// ValidatorCountChangeThreshold is the relative change in validator
	// count between snapshots that raises an exception.
	ValidatorCountChangeThreshold float64

	// InTransitStuckThresholdDays is how long a validator may sit in a
	// transit state before it is considered stuck.
	InTransitStuckThresholdDays int

	// RewardsAnomalyThreshold is the relative deviation of the latest
	// reward-sum point from the historical mean that raises an exception.
	RewardsAnomalyThreshold float64

	// PerformanceDivergenceThreshold is how far below the cross-custodian
	// average yield a custodian may run before it is flagged.
	PerformanceDivergenceThreshold float64
}

func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		PortfolioValueChangeThreshold:  DefaultPortfolioValueChangeThreshold,
		ValidatorCountChangeThreshold:  DefaultValidatorCountChangeThreshold,
		InTransitStuckThresholdDays:    DefaultInTransitStuckThresholdDays,
		RewardsAnomalyThreshold:        DefaultRewardsAnomalyThreshold,
		PerformanceDivergenceThreshold: DefaultPerformanceDivergenceThreshold,
	}
}

// withDefaults returns a copy of cfg with every unset field replaced by its
// default. A nil cfg yields the full default set.
func (c *DetectorConfig) withDefaults() DetectorConfig {
	merged := *DefaultDetectorConfig()
	if c == nil {
		return merged
	}
	if c.PortfolioValueChangeThreshold > 0 {
		merged.PortfolioValueChangeThreshold = c.PortfolioValueChangeThreshold
	}
	if c.ValidatorCountChangeThreshold > 0 {
		merged.ValidatorCountChangeThreshold = c.ValidatorCountChangeThreshold
	}
	if c.InTransitStuckThresholdDays > 0 {
		merged.InTransitStuckThresholdDays = c.InTransitStuckThresholdDays
	}
	if c.RewardsAnomalyThreshold > 0 {
		merged.RewardsAnomalyThreshold = c.RewardsAnomalyThreshold
	}
	if c.PerformanceDivergenceThreshold > 0 {
		merged.PerformanceDivergenceThreshold = c.PerformanceDivergenceThreshold
	}
	return merged
}
