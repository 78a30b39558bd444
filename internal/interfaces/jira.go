package interfaces

import (
	"context"
)

// Tracker is the subset of the Jira API the reporter needs.
type Tracker interface {
	SearchIssues(ctx context.Context, jql string) ([]Ticket, error)
	CreateIssue(ctx context.Context, fields IssueFields) (*Ticket, error)
	UpdateIssue(ctx context.Context, key string, fields UpdateFields) error
	ProjectComponents(ctx context.Context, projectKey string) ([]Component, error)
}

// Issue is a locally detected problem waiting to be reported.
type Issue interface {
	Hash() string
	Summary() string
	Description() string
	Type() string
	Labels() []string
	// Component returns "" when the issue declares none.
	Component() string
}

type Ticket struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Self        string `json:"self"`
	Project     string `json:"project,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

type Component struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// IssueFields is the create payload. Components is left empty unless the
// chosen project exposes the issue's component.
type IssueFields struct {
	Project     string      `json:"project"`
	Summary     string      `json:"summary"`
	Description string      `json:"description"`
	IssueType   string      `json:"issuetype"`
	Labels      []string    `json:"labels"`
	Components  []Component `json:"components,omitempty"`
}

// UpdateFields is the update payload for an already reported ticket.
type UpdateFields struct {
	Description string `json:"description"`
}
