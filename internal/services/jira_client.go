package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	. "kapajira/internal/common"
	. "kapajira/internal/interfaces"
	"kapajira/internal/middleware"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
)

const (
	myselfPath     = "/rest/api/2/myself"
	searchPath     = "/rest/api/2/search"
	issuePath      = "/rest/api/2/issue"
	issueKeyPath   = "/rest/api/2/issue/{key}"
	componentsPath = "/rest/api/2/project/{key}/components"

	searchFields = "summary,description,status,project"
)

type jiraClient struct {
	client *resty.Client
	logger arbor.ILogger
}

// Wire shapes of the Jira REST API v2.
type (
	searchResponse struct {
		Issues []jiraIssue `json:"issues"`
	}

	jiraIssue struct {
		ID     string `json:"id"`
		Key    string `json:"key"`
		Self   string `json:"self"`
		Fields struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			Status      struct {
				Name string `json:"name"`
			} `json:"status"`
			Project struct {
				Key string `json:"key"`
			} `json:"project"`
		} `json:"fields"`
	}

	keyRef struct {
		Key string `json:"key"`
	}

	nameRef struct {
		Name string `json:"name"`
	}

	createFields struct {
		Project     keyRef    `json:"project"`
		Summary     string    `json:"summary"`
		Description string    `json:"description"`
		IssueType   nameRef   `json:"issuetype"`
		Labels      []string  `json:"labels"`
		Components  []nameRef `json:"components,omitempty"`
	}

	fieldsEnvelope[T any] struct {
		Fields T `json:"fields"`
	}

	errorResponse struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
)

// NewJiraClient connects to Jira and verifies the credentials. It returns a
// connection error if the server cannot be reached or rejects the login.
func NewJiraClient(ctx context.Context, config *JiraConfig, logger arbor.ILogger) (Tracker, error) {
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.URL, "/")).
		SetBasicAuth(config.User, config.Password).
		SetTimeout(time.Duration(config.TimeoutSeconds)*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		OnAfterResponse(middleware.Logging(logger))

	jc := &jiraClient{
		client: client,
		logger: logger,
	}

	if err := jc.verify(ctx); err != nil {
		return nil, err
	}

	return jc, nil
}

func (jc *jiraClient) verify(ctx context.Context) error {
	var me struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}

	resp, err := jc.client.R().
		SetContext(ctx).
		SetResult(&me).
		Get(myselfPath)
	if err != nil {
		return NewConnectionError("unreachable", "failed to reach jira").WithCause(err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return NewConnectionError("auth_rejected", "jira rejected the credentials").
			WithStatus(resp.StatusCode()).
			WithDetails(errorDetails(resp))
	case resp.IsError():
		return NewConnectionError("unexpected_status", "jira connection check failed").
			WithStatus(resp.StatusCode()).
			WithDetails(errorDetails(resp))
	}

	jc.logger.Debug().
		Str("user", me.Name).
		Str("display_name", me.DisplayName).
		Msg("Connected to Jira")
	return nil
}

func (jc *jiraClient) SearchIssues(ctx context.Context, jql string) ([]Ticket, error) {
	var response searchResponse

	resp, err := jc.client.R().
		SetContext(ctx).
		SetQueryParam("jql", jql).
		SetQueryParam("fields", searchFields).
		SetResult(&response).
		Get(searchPath)
	if err := checkResponse("search", resp, err); err != nil {
		return nil, err.WithContext("jql", jql)
	}

	tickets := make([]Ticket, 0, len(response.Issues))
	for _, issue := range response.Issues {
		tickets = append(tickets, Ticket{
			ID:          issue.ID,
			Key:         issue.Key,
			Self:        issue.Self,
			Project:     issue.Fields.Project.Key,
			Summary:     issue.Fields.Summary,
			Description: issue.Fields.Description,
			Status:      issue.Fields.Status.Name,
		})
	}
	return tickets, nil
}

func (jc *jiraClient) CreateIssue(ctx context.Context, fields IssueFields) (*Ticket, error) {
	payload := createFields{
		Project:     keyRef{Key: fields.Project},
		Summary:     fields.Summary,
		Description: fields.Description,
		IssueType:   nameRef{Name: fields.IssueType},
		Labels:      fields.Labels,
	}
	if payload.Labels == nil {
		payload.Labels = []string{}
	}
	for _, c := range fields.Components {
		payload.Components = append(payload.Components, nameRef{Name: c.Name})
	}

	var created jiraIssue
	resp, err := jc.client.R().
		SetContext(ctx).
		SetBody(fieldsEnvelope[createFields]{Fields: payload}).
		SetResult(&created).
		Post(issuePath)
	if err := checkResponse("create", resp, err); err != nil {
		return nil, err.WithContext("project", fields.Project)
	}

	return &Ticket{
		ID:          created.ID,
		Key:         created.Key,
		Self:        created.Self,
		Project:     fields.Project,
		Summary:     fields.Summary,
		Description: fields.Description,
	}, nil
}

func (jc *jiraClient) UpdateIssue(ctx context.Context, key string, fields UpdateFields) error {
	resp, err := jc.client.R().
		SetContext(ctx).
		SetPathParam("key", key).
		SetBody(fieldsEnvelope[UpdateFields]{Fields: fields}).
		Put(issueKeyPath)
	if err := checkResponse("update", resp, err); err != nil {
		return err.WithContext("key", key)
	}
	return nil
}

func (jc *jiraClient) ProjectComponents(ctx context.Context, projectKey string) ([]Component, error) {
	var components []Component

	resp, err := jc.client.R().
		SetContext(ctx).
		SetPathParam("key", projectKey).
		SetResult(&components).
		Get(componentsPath)
	if err := checkResponse("project_components", resp, err); err != nil {
		return nil, err.WithContext("project", projectKey)
	}
	return components, nil
}

func checkResponse(operation string, resp *resty.Response, err error) *ReporterError {
	if err != nil {
		return NewTrackerError(operation, fmt.Sprintf("jira %s request failed", operation)).WithCause(err)
	}
	if resp.IsError() {
		return NewTrackerError(operation, fmt.Sprintf("jira %s request was rejected", operation)).
			WithStatus(resp.StatusCode()).
			WithDetails(errorDetails(resp))
	}
	return nil
}

// errorDetails extracts Jira's explanation from an error response: the JSON
// errorMessages/errors pair, the text of an HTML error page, or the raw body.
func errorDetails(resp *resty.Response) string {
	body := strings.TrimSpace(resp.String())
	if body == "" {
		return http.StatusText(resp.StatusCode())
	}

	var jiraErr errorResponse
	if err := json.Unmarshal(resp.Body(), &jiraErr); err == nil {
		messages := append([]string(nil), jiraErr.ErrorMessages...)

		fieldNames := make([]string, 0, len(jiraErr.Errors))
		for field := range jiraErr.Errors {
			fieldNames = append(fieldNames, field)
		}
		sort.Strings(fieldNames)
		for _, field := range fieldNames {
			messages = append(messages, fmt.Sprintf("%s: %s", field, jiraErr.Errors[field]))
		}

		if len(messages) > 0 {
			return strings.Join(messages, "; ")
		}
	}

	if strings.Contains(resp.Header().Get("Content-Type"), "html") || strings.HasPrefix(body, "<") {
		if text := HTMLErrorText(body); text != "" {
			return text
		}
	}

	return body
}
