package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // Embed zoneinfo for scratch container

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/reviewnudge/internal/adapter/driven/github"
	gitlabadapter "github.com/ericfisherdev/reviewnudge/internal/adapter/driven/gitlab"
	jiraadapter "github.com/ericfisherdev/reviewnudge/internal/adapter/driven/jira"
	slackadapter "github.com/ericfisherdev/reviewnudge/internal/adapter/driven/slack"
	sqliteadapter "github.com/ericfisherdev/reviewnudge/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/reviewnudge/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/reviewnudge/internal/adapter/driving/web"
	"github.com/ericfisherdev/reviewnudge/internal/application"
	"github.com/ericfisherdev/reviewnudge/internal/config"
	"github.com/ericfisherdev/reviewnudge/internal/domain/model"
	"github.com/ericfisherdev/reviewnudge/internal/domain/port/driven"
)

var errTeamsFailed = errors.New("one or more teams failed")

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	serve := flag.Bool("serve", false, "serve the HTTP API and preview instead of running once")
	dryRun := flag.Bool("dry-run", false, "render messages without delivering them")
	nowFlag := flag.String("now", "", "logical time of the run (RFC 3339 or YYYY-MM-DD); defaults to the current time")
	flag.Parse()

	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	nonWorkingDays, err := application.ParseWeekdays(cfg.NonWorkingDays)
	if err != nil {
		return fmt.Errorf("REVIEWNUDGE_NON_WORKING_DAYS: %w", err)
	}

	catalog, err := config.LoadCatalog(cfg.TeamsFile, config.ProviderTokens{
		GitLab: cfg.GitLabToken,
		GitHub: cfg.GitHubToken,
	})
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"teams_file", cfg.TeamsFile,
		"teams", len(catalog.Teams),
		"timezone", cfg.Location.String(),
		"run_history", cfg.HasRunHistory(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open run history database when configured.
	var runStore driven.RunStore
	if cfg.HasRunHistory() {
		db, err := sqliteadapter.Open(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		runStore = sqliteadapter.NewRunRepo(db)
		slog.Info("run history enabled", "path", cfg.DBPath)
	}

	// 4. Wire adapters.
	ghClient, err := githubadapter.NewClient(cfg.GitHubAPIURL)
	if err != nil {
		return err
	}
	fetchers := map[model.Provider]driven.ReviewRequestFetcher{
		model.ProviderGitLab: gitlabadapter.NewClient(cfg.GitLabURL, nil).WithCallTimeout(cfg.CallTimeout),
		model.ProviderGitHub: ghClient.WithCallTimeout(cfg.CallTimeout),
	}
	tickets := jiraadapter.NewClient(cfg.JiraURL, cfg.JiraUsername, cfg.JiraToken, nil)
	sink := slackadapter.NewWebhook(&http.Client{Timeout: cfg.CallTimeout})

	runSvc := application.NewRunService(catalog, fetchers, tickets, sink, runStore, application.RunOptions{
		CallTimeout:    cfg.CallTimeout,
		Concurrency:    cfg.Concurrency,
		Location:       cfg.Location,
		NonWorkingDays: nonWorkingDays,
	})

	if *serve {
		return serveHTTP(ctx, cfg, runSvc, runStore)
	}

	// 5. Single run.
	now := time.Now()
	if *nowFlag != "" {
		if now, err = application.ParseLogicalTime(*nowFlag, cfg.Location); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	result, err := runSvc.Run(runCtx, application.RunRequest{
		Now:    now,
		DryRun: *dryRun || cfg.DryRun,
	})
	if err != nil {
		return err
	}

	for _, outcome := range result.Teams {
		logOutcome(outcome)
	}

	if failed := result.FailedTeams(); failed > 0 {
		return fmt.Errorf("%w: %d of %d", errTeamsFailed, failed, len(result.Teams))
	}
	return nil
}

func logOutcome(o model.TeamOutcome) {
	attrs := []any{
		"team", o.Team,
		"status", o.Status,
		"stale", o.Report.Summary.Total,
		"filtered", o.Filtered,
		"dropped", o.Dropped,
	}
	for _, f := range o.ProjectFailures {
		slog.Warn("project fetch failed", "team", o.Team, "project", f.Project, "kind", f.Kind, "error", f.Error)
	}

	switch o.Status {
	case model.OutcomeFailed:
		slog.Error("team failed", append(attrs, "error", o.Error)...)
	case model.OutcomeDryRun:
		slog.Info("team message (dry run)", append(attrs, "text", o.Message.Text)...)
		for _, part := range o.Message.Markdown() {
			fmt.Fprintln(os.Stdout, part)
		}
		fmt.Fprintln(os.Stdout)
	default:
		slog.Info("team done", attrs...)
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, runSvc *application.RunService, runStore driven.RunStore) error {
	router := httphandler.NewRouter(slog.Default())
	httphandler.RegisterAPIRoutes(router, httphandler.NewHandler(runSvc, runStore, cfg.Location, slog.Default()))
	webhandler.RegisterRoutes(router, webhandler.NewHandler(runSvc, cfg.Location, slog.Default()))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           http.TimeoutHandler(router, cfg.RunTimeout, `{"error":"run timed out"}`),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RunTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
