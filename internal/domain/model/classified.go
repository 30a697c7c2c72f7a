package model

// UrgencyTier is a coarse severity bucket for a stale review request.
// Higher values are more urgent.
type UrgencyTier int

const (
	// TierNone is used for requests that are not stale.
	TierNone UrgencyTier = iota
	// TierNotice means the request just reached its threshold.
	TierNotice
	// TierWarning means the request is past its threshold.
	TierWarning
	// TierCritical means the request is far past its threshold.
	TierCritical
)

// String returns a lower-case name for the tier.
func (t UrgencyTier) String() string {
	switch t {
	case TierNotice:
		return "notice"
	case TierWarning:
		return "warning"
	case TierCritical:
		return "critical"
	default:
		return "none"
	}
}

// ClassifiedRequest is a review request with its computed staleness.
// It is transient and never persisted.
type ClassifiedRequest struct {
	Request   ReviewRequest
	Ticket    *TicketInfo // nil when there is no ticket or the lookup failed.
	AgeDays   int
	Threshold int
	Tier      UrgencyTier
	Stale     bool
}

// Priority returns the linked ticket's priority, or PriorityUnknown.
func (c ClassifiedRequest) Priority() Priority {
	if c.Ticket == nil || !c.Ticket.Priority.Known() {
		return PriorityUnknown
	}
	return c.Ticket.Priority
}
