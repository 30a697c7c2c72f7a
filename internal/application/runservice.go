package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

// ErrMissingNow is returned by Run when the request carries no logical time.
var ErrMissingNow = errors.New("run request has no logical time")

const defaultConcurrency = 4

// RunRequest describes one invocation of the pipeline.
type RunRequest struct {
	Now         time.Time // Logical "now" used for every age computation.
	DryRun      bool      // Render messages without delivering them.
	SkipHistory bool      // Do not record the run in the run store.
}

// RunOptions tunes a RunService.
type RunOptions struct {
	CallTimeout    time.Duration  // Bound on each ticket lookup, delivery and history write; 0 means unbounded.
	Concurrency    int            // Max parallel teams, projects per team, and lookups per project.
	Location       *time.Location // Time zone of the logical date.
	NonWorkingDays []time.Weekday // Days on which delivery is suppressed.
}

// RunService orchestrates fetch, filter, enrich, classify, aggregate, format
// and delivery for every team in the catalog.
type RunService struct {
	catalog  *model.Catalog
	fetchers map[model.Provider]driven.ReviewRequestFetcher
	tickets  driven.TicketProvider
	sink     driven.NotificationSink
	store    driven.RunStore
	opts     RunOptions
	logger   *slog.Logger
	newID    func() string
	clock    func() time.Time
}

// NewRunService creates a RunService. store may be nil to disable run history.
func NewRunService(
	catalog *model.Catalog,
	fetchers map[model.Provider]driven.ReviewRequestFetcher,
	tickets driven.TicketProvider,
	sink driven.NotificationSink,
	store driven.RunStore,
	opts RunOptions,
) *RunService {
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &RunService{
		catalog:  catalog,
		fetchers: fetchers,
		tickets:  tickets,
		sink:     sink,
		store:    store,
		opts:     opts,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		clock:    time.Now,
	}
}

// Catalog returns the catalog the service runs against.
func (s *RunService) Catalog() *model.Catalog {
	return s.catalog
}

// HasHistory reports whether runs are recorded.
func (s *RunService) HasHistory() bool {
	return s.store != nil
}

// Run executes one pass over every team. Team failures are reported in the
// result and never returned as an error.
func (s *RunService) Run(ctx context.Context, req RunRequest) (*model.RunResult, error) {
	if req.Now.IsZero() {
		return nil, ErrMissingNow
	}

	result := &model.RunResult{
		ID:         s.newID(),
		Now:        req.Now,
		StartedAt:  s.clock(),
		DryRun:     req.DryRun,
		Suppressed: IsNonWorkingDay(req.Now, s.opts.Location, s.opts.NonWorkingDays),
	}
	if result.Suppressed {
		s.logger.Info("non-working day, delivery suppressed",
			"date", req.Now.In(s.opts.Location).Format(time.DateOnly))
	}

	cache := NewTicketCache(s.tickets, s.opts.CallTimeout, s.logger)
	result.Teams = make([]model.TeamOutcome, len(s.catalog.Teams))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, team := range s.catalog.Teams {
		g.Go(func() error {
			result.Teams[i] = s.runTeam(ctx, team, cache, req, result.Suppressed)
			return nil
		})
	}
	_ = g.Wait()

	result.FinishedAt = s.clock()

	s.logger.Info("run complete",
		"run_id", result.ID,
		"teams", len(result.Teams),
		"failed", result.FailedTeams(),
		"ticket_lookups", cache.Lookups(),
		"duration", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	)

	if s.store != nil && !req.SkipHistory {
		saveCtx, cancel := s.callContext(context.WithoutCancel(ctx))
		if err := s.store.SaveRun(saveCtx, *result); err != nil {
			s.logger.Error("failed to record run", "run_id", result.ID, "error", err)
		}
		cancel()
	}

	return result, nil
}

// runTeam runs the pipeline for a single team. Errors and panics alike are
// folded into the returned outcome.
func (s *RunService) runTeam(
	ctx context.Context,
	team model.Team,
	cache *TicketCache,
	req RunRequest,
	suppressed bool,
) (outcome model.TeamOutcome) {
	outcome = model.TeamOutcome{Team: team.Name}
	logger := s.logger.With("team", team.Name)

	defer func() {
		if v := recover(); v != nil {
			logger.Error("panic recovered", "panic", v, "stack", string(debug.Stack()))
			outcome = model.TeamOutcome{
				Team:            team.Name,
				Status:          model.OutcomeFailed,
				Error:           fmt.Sprintf("internal error: %v", v),
				ProjectFailures: outcome.ProjectFailures,
			}
		}
	}()

	classifications := make([]model.ProjectClassification, len(team.Projects))
	failures := make([]*model.ProjectFailure, len(team.Projects))
	var filtered, dropped atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, project := range team.Projects {
		g.Go(func() error {
			classifications[i] = model.ProjectClassification{Project: project.Name}

			requests, err := s.fetch(ctx, project)
			if err != nil {
				logger.Error("project fetch failed", "project", project.Name, "error", err)
				failures[i] = &model.ProjectFailure{
					Project: project.Name,
					Kind:    FailureKindOf(err),
					Error:   err.Error(),
				}
				return nil
			}

			kept := FilterRequests(requests, s.catalog.Filters)
			filtered.Add(int64(len(requests) - len(kept)))

			classified, nDropped := s.classifyProject(ctx, team, project, kept, cache, req.Now, logger)
			dropped.Add(int64(nDropped))
			classifications[i].Requests = classified
			return nil
		})
	}
	_ = g.Wait()

	outcome.Filtered = int(filtered.Load())
	outcome.Dropped = int(dropped.Load())
	for _, f := range failures {
		if f != nil {
			outcome.ProjectFailures = append(outcome.ProjectFailures, *f)
		}
	}

	if len(team.Projects) > 0 && len(outcome.ProjectFailures) == len(team.Projects) {
		outcome.Status = model.OutcomeFailed
		outcome.Error = "all projects failed"
		logger.Error("team failed", "error", outcome.Error)
		return outcome
	}

	outcome.Report = Aggregate(team.Name, classifications)
	msg, ok := FormatReport(outcome.Report, s.catalog.Identities)
	if !ok {
		outcome.Status = model.OutcomeNoStale
		logger.Info("no stale review requests")
		return outcome
	}
	outcome.Message = &msg

	switch {
	case suppressed:
		outcome.Status = model.OutcomeSuppressed
	case req.DryRun:
		outcome.Status = model.OutcomeDryRun
	default:
		sendCtx, cancel := s.callContext(ctx)
		err := s.sink.Send(sendCtx, team.WebhookURL, msg)
		cancel()
		if err != nil {
			outcome.Status = model.OutcomeFailed
			outcome.Error = err.Error()
			logger.Error("notification delivery failed", "error", err)
			return outcome
		}
		outcome.Status = model.OutcomeDelivered
	}

	logger.Info("team processed",
		"status", outcome.Status,
		"stale", outcome.Report.Summary.Total,
		"filtered", outcome.Filtered,
		"project_failures", len(outcome.ProjectFailures),
	)
	return outcome
}

// fetch runs on a project goroutine outside runTeam's recover; a panicking
// fetcher becomes a failed project.
func (s *RunService) fetch(ctx context.Context, project model.Project) (requests []model.ReviewRequest, err error) {
	defer func() {
		if v := recover(); v != nil {
			s.logger.Error("panic recovered", "project", project.Name, "panic", v, "stack", string(debug.Stack()))
			requests, err = nil, fmt.Errorf("fetcher panicked: %v", v)
		}
	}()

	fetcher, ok := s.fetchers[project.Provider]
	if !ok {
		return nil, fmt.Errorf("no fetcher for provider %q", project.Provider)
	}

	// A fetch spans many calls; the adapters bound each call themselves.
	return fetcher.ListOpenRequests(ctx, project.ID, project.Credential)
}

// classifyProject enriches and classifies the requests of one project. It
// returns the classified requests in input order and the number dropped.
func (s *RunService) classifyProject(
	ctx context.Context,
	team model.Team,
	project model.Project,
	requests []model.ReviewRequest,
	cache *TicketCache,
	now time.Time,
	logger *slog.Logger,
) ([]model.ClassifiedRequest, int) {
	tickets := make([]*model.TicketInfo, len(requests))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, r := range requests {
		if r.TicketKey == "" {
			continue
		}
		g.Go(func() error {
			tickets[i] = cache.Get(ctx, r.TicketKey)
			return nil
		})
	}
	_ = g.Wait()

	classified := make([]model.ClassifiedRequest, 0, len(requests))
	dropped := 0
	for i, r := range requests {
		c, err := Classify(r, tickets[i], team.Thresholds, s.catalog.Tiers, now)
		if err != nil {
			logger.Warn("dropping review request", "project", project.Name, "id", r.ID, "error", err)
			dropped++
			continue
		}
		classified = append(classified, c)
	}
	return classified, dropped
}

func (s *RunService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}

// FailureKindOf maps an adapter error to the failure kind shown to operators.
func FailureKindOf(err error) model.FailureKind {
	switch {
	case errors.Is(err, driven.ErrUnauthorized):
		return model.FailureUnauthorized
	case errors.Is(err, driven.ErrNotFound):
		return model.FailureNotFound
	case errors.Is(err, driven.ErrRateLimited):
		return model.FailureRateLimited
	case errors.Is(err, driven.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return model.FailureNetwork
	default:
		return model.FailureOther
	}
}
