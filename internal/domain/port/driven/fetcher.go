package driven

import (
	"context"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
)

// ReviewRequestFetcher lists open review requests for one project of a code
// hosting provider.
type ReviewRequestFetcher interface {
	// ListOpenRequests returns every open request of the project, following
	// pagination to the end. credential is the project's access token.
	ListOpenRequests(ctx context.Context, projectID, credential string) ([]model.ReviewRequest, error)
}
