package application

import (
	"errors"
	"time"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// ErrMissingCreatedAt is returned by Classify when a request has no creation time.
var ErrMissingCreatedAt = errors.New("review request has no creation timestamp")

const day = 24 * time.Hour

// AgeInDays returns the number of whole days between createdAt and now.
// Future timestamps yield 0.
func AgeInDays(createdAt, now time.Time) int {
	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / day)
}

// ResolveThreshold returns the threshold that applies to a request with the
// given linked ticket. Priority thresholds are used only when enabled and the
// ticket carries a recognized priority.
func ResolveThreshold(ticket *model.TicketInfo, thresholds model.ThresholdConfig) int {
	if thresholds.UsePriority && ticket != nil && ticket.Priority.Known() {
		return thresholds.For(ticket.Priority)
	}
	return thresholds.StaleDays
}

// TierFor maps an age and threshold to an urgency tier. Cutoffs are checked
// from most to least urgent, so the tier never decreases as age grows.
func TierFor(ageDays, threshold int, policy model.TierPolicy) model.UrgencyTier {
	if ageDays < threshold {
		return model.TierNone
	}

	multiplier := policy.CriticalMultiplier
	if multiplier < 1 {
		multiplier = model.DefaultTierPolicy().CriticalMultiplier
	}
	daysOver := policy.WarningDaysOver
	if daysOver < 1 {
		daysOver = model.DefaultTierPolicy().WarningDaysOver
	}

	switch {
	case ageDays >= multiplier*threshold:
		return model.TierCritical
	case ageDays-threshold >= daysOver:
		return model.TierWarning
	default:
		return model.TierNotice
	}
}

// Classify computes the staleness of a single review request at the given
// instant. It never reads the wall clock.
func Classify(
	req model.ReviewRequest,
	ticket *model.TicketInfo,
	thresholds model.ThresholdConfig,
	policy model.TierPolicy,
	now time.Time,
) (model.ClassifiedRequest, error) {
	if req.CreatedAt.IsZero() {
		return model.ClassifiedRequest{}, ErrMissingCreatedAt
	}

	age := AgeInDays(req.CreatedAt, now)
	threshold := ResolveThreshold(ticket, thresholds)
	tier := TierFor(age, threshold, policy)

	return model.ClassifiedRequest{
		Request:   req,
		Ticket:    ticket,
		AgeDays:   age,
		Threshold: threshold,
		Tier:      tier,
		Stale:     age >= threshold,
	}, nil
}
