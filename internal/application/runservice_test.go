package application_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewnudge/internal/application"
	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockFetcher struct {
	list func(ctx context.Context, projectID, credential string) ([]model.ReviewRequest, error)
}

func (m *mockFetcher) ListOpenRequests(ctx context.Context, projectID, credential string) ([]model.ReviewRequest, error) {
	return m.list(ctx, projectID, credential)
}

type sendCall struct {
	Endpoint string
	Message  model.RenderedMessage
}

type mockSink struct {
	mu    sync.Mutex
	calls []sendCall
	err   func(endpoint string) error
}

func (m *mockSink) Send(_ context.Context, endpoint string, msg model.RenderedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sendCall{Endpoint: endpoint, Message: msg})
	if m.err != nil {
		return m.err(endpoint)
	}
	return nil
}

func (m *mockSink) endpoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Endpoint)
	}
	return out
}

type mockRunStore struct {
	saved []model.RunResult
	err   error
}

func (m *mockRunStore) SaveRun(_ context.Context, run model.RunResult) error {
	m.saved = append(m.saved, run)
	return m.err
}

func (m *mockRunStore) ListRuns(_ context.Context, _ int) ([]model.RunSummary, error) {
	return nil, nil
}

func (m *mockRunStore) GetRun(_ context.Context, _ string) (*model.RunRecord, error) {
	return nil, nil
}

// --- Helpers ---

func team(name string, thresholds model.ThresholdConfig, projectIDs ...string) model.Team {
	t := model.Team{
		Name:       name,
		WebhookURL: "https://hooks.example.com/" + name,
		Thresholds: thresholds,
	}
	for _, id := range projectIDs {
		t.Projects = append(t.Projects, model.Project{
			Name:       id,
			Provider:   model.ProviderGitLab,
			ID:         id,
			Credential: "token-" + id,
		})
	}
	return t
}

func catalogOf(teams ...model.Team) *model.Catalog {
	return &model.Catalog{
		Teams:      teams,
		Identities: map[string]string{"alice": "<@U01ALICE>"},
		Filters:    model.DefaultFilterRules(),
		Tiers:      model.DefaultTierPolicy(),
	}
}

// fetcherFrom serves a fixed set of requests per project ID.
func fetcherFrom(byProject map[string][]model.ReviewRequest, errs map[string]error) *mockFetcher {
	return &mockFetcher{list: func(_ context.Context, projectID, _ string) ([]model.ReviewRequest, error) {
		if err, ok := errs[projectID]; ok {
			return nil, err
		}
		return byProject[projectID], nil
	}}
}

func noTickets() *mockTicketProvider {
	return &mockTicketProvider{lookup: func(_ context.Context, key string) (*model.TicketInfo, error) {
		return nil, fmt.Errorf("lookup %s: %w", key, driven.ErrNotFound)
	}}
}

func newService(
	catalog *model.Catalog,
	fetcher driven.ReviewRequestFetcher,
	tickets driven.TicketProvider,
	sink driven.NotificationSink,
	store driven.RunStore,
) *application.RunService {
	return application.NewRunService(
		catalog,
		map[model.Provider]driven.ReviewRequestFetcher{model.ProviderGitLab: fetcher},
		tickets,
		sink,
		store,
		application.RunOptions{
			CallTimeout:    time.Second,
			Concurrency:    4,
			Location:       time.UTC,
			NonWorkingDays: []time.Weekday{time.Saturday, time.Sunday},
		},
	)
}

func outcomeFor(t *testing.T, result *model.RunResult, name string) model.TeamOutcome {
	t.Helper()
	for _, o := range result.Teams {
		if o.Team == name {
			return o
		}
	}
	t.Fatalf("no outcome for team %q", name)
	return model.TeamOutcome{}
}

// --- Tests ---

func TestRun_RequiresNow(t *testing.T) {
	svc := newService(catalogOf(), fetcherFrom(nil, nil), noTickets(), &mockSink{}, nil)
	_, err := svc.Run(context.Background(), application.RunRequest{})
	assert.ErrorIs(t, err, application.ErrMissingNow)
}

func TestRun_DeliversStaleRequests(t *testing.T) {
	old := requestWithAge(1, 4)
	fresh := requestWithAge(2, 0)
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{"rohan": {old, fresh}}, nil)
	sink := &mockSink{}
	store := &mockRunStore{}

	svc := newService(catalogOf(team("backend", flat(2), "rohan")), fetcher, noTickets(), sink, store)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	outcome := outcomeFor(t, result, "backend")
	assert.Equal(t, model.OutcomeDelivered, outcome.Status)
	assert.Equal(t, 1, outcome.Report.Summary.Total)
	assert.Equal(t, []string{"https://hooks.example.com/backend"}, sink.endpoints())
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, fixedNow, result.Now)

	require.Len(t, store.saved, 1)
	assert.Equal(t, result.ID, store.saved[0].ID)
}

func TestRun_TicketFailureFallsBackToFlat(t *testing.T) {
	req := requestWithAge(1, 2)
	req.TicketKey = "PROJ-5"
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{"rohan": {req}}, nil)
	tickets := &mockTicketProvider{lookup: func(_ context.Context, _ string) (*model.TicketInfo, error) {
		return nil, driven.ErrNetwork
	}}
	thresholds := priorityThresholds() // flat 2, highest 1
	sink := &mockSink{}

	svc := newService(catalogOf(team("backend", thresholds, "rohan")), fetcher, tickets, sink, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	outcome := outcomeFor(t, result, "backend")
	require.Equal(t, model.OutcomeDelivered, outcome.Status)
	c := outcome.Report.Projects[0].Requests[0]
	assert.Nil(t, c.Ticket)
	assert.Equal(t, 2, c.Threshold)
	assert.Equal(t, model.PriorityUnknown, c.Priority())

	require.Len(t, sink.calls, 1)
	assert.Contains(t, allText(sink.calls[0].Message), "PROJ-5 · priority unknown")
}

func TestRun_NoStaleNeverSends(t *testing.T) {
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{"rohan": {requestWithAge(1, 1)}}, nil)
	sink := &mockSink{}

	svc := newService(catalogOf(team("backend", flat(2), "rohan")), fetcher, noTickets(), sink, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeNoStale, outcomeFor(t, result, "backend").Status)
	assert.Empty(t, sink.calls)
}

func TestRun_FilteredAndDroppedCounted(t *testing.T) {
	draft := requestWithAge(1, 10)
	draft.Draft = true
	missing := requestWithAge(2, 10)
	missing.CreatedAt = time.Time{}
	good := requestWithAge(3, 10)
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{"rohan": {draft, missing, good}}, nil)

	svc := newService(catalogOf(team("backend", flat(2), "rohan")), fetcher, noTickets(), &mockSink{}, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	outcome := outcomeFor(t, result, "backend")
	assert.Equal(t, 1, outcome.Filtered)
	assert.Equal(t, 1, outcome.Dropped)
	assert.Equal(t, 1, outcome.Report.Summary.Total)
}

func TestRun_ProjectFailureIsolated(t *testing.T) {
	fetcher := fetcherFrom(
		map[string][]model.ReviewRequest{"edoras": {requestWithAge(1, 5)}},
		map[string]error{"rohan": fmt.Errorf("list: %w", driven.ErrUnauthorized)},
	)
	sink := &mockSink{}

	svc := newService(catalogOf(team("backend", flat(2), "rohan", "edoras")), fetcher, noTickets(), sink, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	outcome := outcomeFor(t, result, "backend")
	assert.Equal(t, model.OutcomeDelivered, outcome.Status)
	require.Len(t, outcome.ProjectFailures, 1)
	assert.Equal(t, "rohan", outcome.ProjectFailures[0].Project)
	assert.Equal(t, model.FailureUnauthorized, outcome.ProjectFailures[0].Kind)
	assert.Len(t, sink.calls, 1)
}

func TestRun_AllProjectsFailedMarksTeamFailed(t *testing.T) {
	fetcher := fetcherFrom(
		map[string][]model.ReviewRequest{"athena": {requestWithAge(1, 5)}},
		map[string]error{"rohan": driven.ErrRateLimited},
	)
	sink := &mockSink{}
	catalog := catalogOf(
		team("backend", flat(2), "rohan"),
		team("frontend", flat(2), "athena"),
	)

	svc := newService(catalog, fetcher, noTickets(), sink, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeFailed, outcomeFor(t, result, "backend").Status)
	assert.Equal(t, model.OutcomeDelivered, outcomeFor(t, result, "frontend").Status)
	assert.Equal(t, []string{"https://hooks.example.com/frontend"}, sink.endpoints())
	assert.Equal(t, 1, result.FailedTeams())
}

func TestRun_SinkFailureIsolated(t *testing.T) {
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{
		"rohan":  {requestWithAge(1, 5)},
		"athena": {requestWithAge(2, 5)},
	}, nil)
	sink := &mockSink{err: func(endpoint string) error {
		if strings.HasSuffix(endpoint, "/backend") {
			return driven.ErrUnauthorized
		}
		return nil
	}}
	catalog := catalogOf(
		team("backend", flat(2), "rohan"),
		team("frontend", flat(2), "athena"),
	)

	svc := newService(catalog, fetcher, noTickets(), sink, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	backend := outcomeFor(t, result, "backend")
	assert.Equal(t, model.OutcomeFailed, backend.Status)
	assert.Contains(t, backend.Error, "unauthorized")
	assert.Equal(t, model.OutcomeDelivered, outcomeFor(t, result, "frontend").Status)
}

func TestRun_WeekendSuppressesDelivery(t *testing.T) {
	saturday := time.Date(2024, time.March, 16, 9, 0, 0, 0, time.UTC)
	req := requestWithAge(1, 0)
	req.CreatedAt = saturday.AddDate(0, 0, -5)
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{"rohan": {req}}, nil)
	sink := &mockSink{}

	svc := newService(catalogOf(team("backend", flat(2), "rohan")), fetcher, noTickets(), sink, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: saturday})
	require.NoError(t, err)

	assert.True(t, result.Suppressed)
	outcome := outcomeFor(t, result, "backend")
	assert.Equal(t, model.OutcomeSuppressed, outcome.Status)
	assert.Equal(t, 1, outcome.Report.Summary.Total, "classification still runs")
	assert.NotNil(t, outcome.Message)
	assert.Empty(t, sink.calls)
}

func TestRun_DryRunRendersWithoutSending(t *testing.T) {
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{"rohan": {requestWithAge(1, 5)}}, nil)
	sink := &mockSink{}
	store := &mockRunStore{}

	svc := newService(catalogOf(team("backend", flat(2), "rohan")), fetcher, noTickets(), sink, store)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow, DryRun: true, SkipHistory: true})
	require.NoError(t, err)

	outcome := outcomeFor(t, result, "backend")
	assert.Equal(t, model.OutcomeDryRun, outcome.Status)
	require.NotNil(t, outcome.Message)
	assert.Contains(t, allText(*outcome.Message), "<@U01ALICE>")
	assert.Empty(t, sink.calls)
	assert.Empty(t, store.saved)
}

func TestRun_TicketLookedUpOncePerKey(t *testing.T) {
	a := requestWithAge(1, 3)
	a.TicketKey = "PROJ-1"
	b := requestWithAge(2, 3)
	b.TicketKey = "PROJ-1"
	c := requestWithAge(3, 3)
	c.TicketKey = "PROJ-1"
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{"rohan": {a, b}, "edoras": {c}}, nil)
	tickets := &mockTicketProvider{lookup: func(_ context.Context, key string) (*model.TicketInfo, error) {
		return &model.TicketInfo{Key: key, Status: "Open", Priority: model.PriorityHighest}, nil
	}}

	svc := newService(catalogOf(team("backend", priorityThresholds(), "rohan", "edoras")), fetcher, tickets, &mockSink{}, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	assert.Equal(t, int64(1), tickets.calls.Load())
	outcome := outcomeFor(t, result, "backend")
	assert.Equal(t, 3, outcome.Report.Summary.Total)
	for _, p := range outcome.Report.Projects {
		for _, r := range p.Requests {
			assert.Equal(t, 1, r.Threshold)
			assert.Equal(t, model.TierCritical, r.Tier)
		}
	}
}

func TestRun_StoreErrorOnlyLogged(t *testing.T) {
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{"rohan": {requestWithAge(1, 5)}}, nil)
	store := &mockRunStore{err: errors.New("disk full")}

	svc := newService(catalogOf(team("backend", flat(2), "rohan")), fetcher, noTickets(), &mockSink{}, store)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDelivered, outcomeFor(t, result, "backend").Status)
	assert.Len(t, store.saved, 1)
}

func TestRun_UnknownProviderRecorded(t *testing.T) {
	tm := team("backend", flat(2), "rohan")
	tm.Projects[0].Provider = model.ProviderGitHub

	svc := newService(catalogOf(tm), fetcherFrom(nil, nil), noTickets(), &mockSink{}, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	outcome := outcomeFor(t, result, "backend")
	assert.Equal(t, model.OutcomeFailed, outcome.Status)
	assert.Equal(t, model.FailureOther, outcome.ProjectFailures[0].Kind)
}

func TestRun_FetchSpansManyCallsWithoutSharedDeadline(t *testing.T) {
	var hadDeadline bool
	fetcher := &mockFetcher{list: func(ctx context.Context, _, _ string) ([]model.ReviewRequest, error) {
		_, hadDeadline = ctx.Deadline()
		return []model.ReviewRequest{requestWithAge(1, 5)}, nil
	}}

	svc := newService(catalogOf(team("backend", flat(2), "rohan")), fetcher, noTickets(), &mockSink{}, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	assert.False(t, hadDeadline, "fetch must not inherit a single per-call deadline")
	assert.Equal(t, model.OutcomeDelivered, outcomeFor(t, result, "backend").Status)
}

func TestRun_ApprovalsTimeoutRecordedAsNetworkFailure(t *testing.T) {
	fetcher := fetcherFrom(
		map[string][]model.ReviewRequest{"edoras": {requestWithAge(1, 5)}},
		map[string]error{"rohan": fmt.Errorf("fetching approvals for rohan!7: %w: %w", driven.ErrNetwork, context.DeadlineExceeded)},
	)

	svc := newService(catalogOf(team("backend", flat(2), "rohan", "edoras")), fetcher, noTickets(), &mockSink{}, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	outcome := outcomeFor(t, result, "backend")
	require.Len(t, outcome.ProjectFailures, 1)
	assert.Equal(t, model.FailureNetwork, outcome.ProjectFailures[0].Kind)
	require.Len(t, outcome.Report.Projects, 1)
	assert.Equal(t, "edoras", outcome.Report.Projects[0].Name)
}

func TestRun_FetcherPanicFailsOnlyItsProject(t *testing.T) {
	fetcher := &mockFetcher{list: func(_ context.Context, projectID, _ string) ([]model.ReviewRequest, error) {
		if projectID == "rohan" {
			panic("nil map write")
		}
		return []model.ReviewRequest{requestWithAge(1, 5)}, nil
	}}
	sink := &mockSink{}
	catalog := catalogOf(
		team("backend", flat(2), "rohan"),
		team("frontend", flat(2), "athena"),
	)

	svc := newService(catalog, fetcher, noTickets(), sink, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	backend := outcomeFor(t, result, "backend")
	assert.Equal(t, model.OutcomeFailed, backend.Status)
	require.Len(t, backend.ProjectFailures, 1)
	assert.Equal(t, model.FailureOther, backend.ProjectFailures[0].Kind)
	assert.Contains(t, backend.ProjectFailures[0].Error, "nil map write")

	assert.Equal(t, model.OutcomeDelivered, outcomeFor(t, result, "frontend").Status)
	assert.Equal(t, []string{"https://hooks.example.com/frontend"}, sink.endpoints())
}

func TestRun_SinkPanicFailsOnlyItsTeam(t *testing.T) {
	fetcher := fetcherFrom(map[string][]model.ReviewRequest{
		"rohan":  {requestWithAge(1, 5)},
		"athena": {requestWithAge(2, 5)},
	}, nil)
	sink := &mockSink{err: func(endpoint string) error {
		if strings.HasSuffix(endpoint, "/backend") {
			panic("encoder exploded")
		}
		return nil
	}}
	catalog := catalogOf(
		team("backend", flat(2), "rohan"),
		team("frontend", flat(2), "athena"),
	)

	svc := newService(catalog, fetcher, noTickets(), sink, nil)
	result, err := svc.Run(context.Background(), application.RunRequest{Now: fixedNow})
	require.NoError(t, err)

	backend := outcomeFor(t, result, "backend")
	assert.Equal(t, model.OutcomeFailed, backend.Status)
	assert.Contains(t, backend.Error, "encoder exploded")
	assert.Equal(t, model.OutcomeDelivered, outcomeFor(t, result, "frontend").Status)
	assert.Equal(t, 1, result.FailedTeams())
}

func TestFailureKindOf(t *testing.T) {
	assert.Equal(t, model.FailureNotFound, application.FailureKindOf(fmt.Errorf("x: %w", driven.ErrNotFound)))
	assert.Equal(t, model.FailureNetwork, application.FailureKindOf(driven.ErrNetwork))
	assert.Equal(t, model.FailureNetwork, application.FailureKindOf(context.DeadlineExceeded))
	assert.Equal(t, model.FailureRateLimited, application.FailureKindOf(driven.ErrRateLimited))
	assert.Equal(t, model.FailureOther, application.FailureKindOf(errors.New("boom")))
}
