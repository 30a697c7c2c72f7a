package model

// ThresholdConfig holds a team's staleness thresholds in whole days.
type ThresholdConfig struct {
	StaleDays   int              // Flat fallback threshold.
	UsePriority bool             // Resolve thresholds from linked ticket priority.
	ByPriority  map[Priority]int // Missing levels fall back to StaleDays.
}

// For returns the threshold configured for the given priority, or StaleDays
// when the level has no entry. It does not consult UsePriority.
func (t ThresholdConfig) For(p Priority) int {
	if days, ok := t.ByPriority[p]; ok {
		return days
	}
	return t.StaleDays
}

// Default tier cutoffs.
const (
	defaultCriticalMultiplier = 2
	defaultWarningDaysOver    = 1
)

// TierPolicy holds the cutoffs that map a stale request's age to an urgency tier.
//
// A request is Critical once its age reaches CriticalMultiplier times its
// threshold, Warning once it is WarningDaysOver days past the threshold, and
// Notice otherwise.
type TierPolicy struct {
	CriticalMultiplier int
	WarningDaysOver    int
}

// DefaultTierPolicy returns the cutoffs used when the catalog does not set them.
func DefaultTierPolicy() TierPolicy {
	return TierPolicy{
		CriticalMultiplier: defaultCriticalMultiplier,
		WarningDaysOver:    defaultWarningDaysOver,
	}
}
