package driven

import (
	"context"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// TicketProvider looks up issue-tracker tickets.
type TicketProvider interface {
	// Lookup returns the status and priority of the ticket with the given key.
	// An unrecognized priority is reported as model.PriorityUnknown.
	Lookup(ctx context.Context, key string) (*model.TicketInfo, error)
}
