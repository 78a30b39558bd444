package services

import (
	"context"
	"fmt"
	"sync"

	. "kapajira/internal/common"
	. "kapajira/internal/interfaces"

	"github.com/ternarybob/arbor"
)

// Action records what Report did with an issue.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Reporter files detected issues into Jira, updating the open ticket that
// already carries the issue's hash instead of creating a duplicate.
type Reporter struct {
	tracker  Tracker
	projects []string
	logger   arbor.ILogger

	mu    sync.Mutex
	locks map[string]*hashLock
}

type hashLock struct {
	mu   sync.Mutex
	refs int
}

// Summary is the outcome of ReportAll.
type Summary struct {
	Created int
	Updated int
	Tickets []Ticket
}

func NewReporter(config *JiraConfig, tracker Tracker, logger arbor.ILogger) (*Reporter, error) {
	if len(config.Projects) == 0 {
		return nil, NewConfigurationError("missing_key", "at least one jira project must be configured")
	}

	return &Reporter{
		tracker:  tracker,
		projects: append([]string(nil), config.Projects...),
		logger:   logger,
		locks:    make(map[string]*hashLock),
	}, nil
}

// Connect opens a Jira connection and returns a Reporter bound to it.
func Connect(ctx context.Context, config *JiraConfig, logger arbor.ILogger) (*Reporter, error) {
	tracker, err := NewJiraClient(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	return NewReporter(config, tracker, logger)
}

// SearchQuery is the JQL matching open tickets whose description carries hash.
func SearchQuery(hash string) string {
	return fmt.Sprintf("description ~ '%s' AND status != 'Closed'", hash)
}

// FindExisting returns the first open ticket carrying hash, or nil.
func (r *Reporter) FindExisting(ctx context.Context, hash string) (*Ticket, error) {
	tickets, err := r.tracker.SearchIssues(ctx, SearchQuery(hash))
	if err != nil {
		return nil, err
	}

	r.logger.Debug().
		Str("hash", hash).
		Int("matches", len(tickets)).
		Msg("Searched for existing ticket")

	if len(tickets) == 0 {
		return nil, nil
	}
	ticket := tickets[0]
	return &ticket, nil
}

// Report updates the description of the open ticket matching the issue's hash,
// or creates a new ticket when there is none.
func (r *Reporter) Report(ctx context.Context, issue Issue) (*Ticket, error) {
	ticket, _, err := r.report(ctx, issue)
	return ticket, err
}

// ReportAll reports issues in order and stops at the first failure. The
// returned summary covers the issues reported before it.
func (r *Reporter) ReportAll(ctx context.Context, issues []Issue) (*Summary, error) {
	summary := &Summary{}

	for _, issue := range issues {
		ticket, action, err := r.report(ctx, issue)
		if err != nil {
			return summary, err
		}

		switch action {
		case ActionCreated:
			summary.Created++
		case ActionUpdated:
			summary.Updated++
		}
		summary.Tickets = append(summary.Tickets, *ticket)
	}

	return summary, nil
}

func (r *Reporter) report(ctx context.Context, issue Issue) (*Ticket, Action, error) {
	hash := issue.Hash()

	unlock := r.lock(hash)
	defer unlock()

	existing, err := r.FindExisting(ctx, hash)
	if err != nil {
		return nil, "", err
	}

	if existing != nil {
		fields := UpdateFields{Description: issue.Description()}
		if err := r.tracker.UpdateIssue(ctx, existing.Key, fields); err != nil {
			return nil, "", err
		}
		existing.Description = fields.Description

		r.logger.Info().
			Str("hash", hash).
			Str("key", existing.Key).
			Msg("Updated existing ticket")
		return existing, ActionUpdated, nil
	}

	fields, err := r.createFields(ctx, issue)
	if err != nil {
		return nil, "", err
	}

	created, err := r.tracker.CreateIssue(ctx, fields)
	if err != nil {
		return nil, "", err
	}

	r.logger.Info().
		Str("hash", hash).
		Str("project", fields.Project).
		Str("key", created.Key).
		Msg("Created ticket")
	return created, ActionCreated, nil
}

func (r *Reporter) createFields(ctx context.Context, issue Issue) (IssueFields, error) {
	project, component, err := r.route(ctx, issue.Component())
	if err != nil {
		return IssueFields{}, err
	}

	fields := IssueFields{
		Project:     project,
		Summary:     issue.Summary(),
		Description: issue.Description(),
		IssueType:   issue.Type(),
		Labels:      issue.Labels(),
	}
	if component != nil {
		fields.Components = []Component{{Name: component.Name}}
	}
	return fields, nil
}

// route picks the first configured project exposing the named component. An
// issue without a component, or whose component no project knows, goes to the
// first project with no component attached.
func (r *Reporter) route(ctx context.Context, componentName string) (string, *Component, error) {
	if componentName == "" {
		return r.projects[0], nil, nil
	}

	for _, project := range r.projects {
		components, err := r.tracker.ProjectComponents(ctx, project)
		if err != nil {
			return "", nil, err
		}
		for _, c := range components {
			if c.Name == componentName {
				return project, &c, nil
			}
		}
	}

	r.logger.Warn().
		Str("component", componentName).
		Str("project", r.projects[0]).
		Msg("Component not found in any project, creating without component")
	return r.projects[0], nil, nil
}

// lock serialises reports of one hash within this process so two concurrent
// reports cannot both miss the search and create duplicate tickets.
func (r *Reporter) lock(hash string) func() {
	r.mu.Lock()
	l, ok := r.locks[hash]
	if !ok {
		l = &hashLock{}
		r.locks[hash] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, hash)
		}
		r.mu.Unlock()
	}
}
