package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"kapajira/internal/common"
	"kapajira/internal/interfaces"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type requestLog struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (l *requestLog) add(req capturedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
}

func (l *requestLog) all() []capturedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]capturedRequest(nil), l.requests...)
}

func (l *requestLog) last() capturedRequest {
	all := l.all()
	return all[len(all)-1]
}

// fakeJira serves /myself and delegates everything else to handler,
// recording each non-myself request.
func fakeJira(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "reporter" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.URL.Path == "/rest/api/2/myself" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"reporter","displayName":"Reporter Bot"}`))
			return
		}

		req := capturedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query().Get("jql")}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			assert.NoError(t, json.Unmarshal(data, &req.Body))
		}
		log.add(req)

		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return server, log
}

func newTestClient(t *testing.T, url string) interfaces.Tracker {
	t.Helper()
	client, err := NewJiraClient(context.Background(), testJiraConfig(url), arbor.NewLogger())
	require.NoError(t, err)
	return client
}

func testJiraConfig(url string) *common.JiraConfig {
	return &common.JiraConfig{
		URL:            url,
		User:           "reporter",
		Password:       "secret",
		Projects:       []string{"SEC", "OPS"},
		TimeoutSeconds: 5,
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestNewJiraClient_RejectedCredentials(t *testing.T) {
	server, _ := fakeJira(t, func(w http.ResponseWriter, r *http.Request) {})

	cfg := testJiraConfig(server.URL)
	cfg.Password = "wrong"

	_, err := NewJiraClient(context.Background(), cfg, arbor.NewLogger())
	require.Error(t, err)
	assert.True(t, common.IsConnectionError(err))

	var re *common.ReporterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "auth_rejected", re.Code)
	assert.Equal(t, http.StatusUnauthorized, re.StatusCode)
}

func TestNewJiraClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewJiraClient(context.Background(), testJiraConfig(url), arbor.NewLogger())
	require.Error(t, err)
	assert.True(t, common.IsConnectionError(err))
}

func TestJiraClient_SearchIssues(t *testing.T) {
	server, captured := fakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "summary,description,status,project", r.URL.Query().Get("fields"))
		writeJSON(w, http.StatusOK, `{
			"startAt": 0, "maxResults": 50, "total": 1,
			"issues": [{
				"id": "10010", "key": "SEC-4", "self": "https://jira/rest/api/2/issue/10010",
				"fields": {
					"summary": "Leaked key",
					"description": "details\n\nkapajira-hash: abc",
					"status": {"name": "Open"},
					"project": {"key": "SEC"}
				}
			}]
		}`)
	})

	client := newTestClient(t, server.URL)
	tickets, err := client.SearchIssues(context.Background(), SearchQuery("abc"))
	require.NoError(t, err)

	requests := captured.all()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodGet, requests[0].Method)
	assert.Equal(t, "/rest/api/2/search", requests[0].Path)
	assert.Equal(t, "description ~ 'abc' AND status != 'Closed'", requests[0].Query)

	assert.Equal(t, []interfaces.Ticket{{
		ID:          "10010",
		Key:         "SEC-4",
		Self:        "https://jira/rest/api/2/issue/10010",
		Project:     "SEC",
		Summary:     "Leaked key",
		Description: "details\n\nkapajira-hash: abc",
		Status:      "Open",
	}}, tickets)
}

func TestJiraClient_CreateIssue(t *testing.T) {
	server, captured := fakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"id":"10020","key":"OPS-9","self":"https://jira/rest/api/2/issue/10020"}`)
	})

	client := newTestClient(t, server.URL)

	t.Run("with component", func(t *testing.T) {
		ticket, err := client.CreateIssue(context.Background(), interfaces.IssueFields{
			Project:     "OPS",
			Summary:     "Open bucket",
			Description: "desc",
			IssueType:   "Bug",
			Labels:      []string{"security"},
			Components:  []interfaces.Component{{Name: "storage"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "OPS-9", ticket.Key)
		assert.Equal(t, "10020", ticket.ID)
		assert.Equal(t, "OPS", ticket.Project)

		req := captured.last()
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/rest/api/2/issue", req.Path)
		assert.Equal(t, map[string]any{
			"fields": map[string]any{
				"project":     map[string]any{"key": "OPS"},
				"summary":     "Open bucket",
				"description": "desc",
				"issuetype":   map[string]any{"name": "Bug"},
				"labels":      []any{"security"},
				"components":  []any{map[string]any{"name": "storage"}},
			},
		}, req.Body)
	})

	t.Run("without component", func(t *testing.T) {
		_, err := client.CreateIssue(context.Background(), interfaces.IssueFields{
			Project:     "SEC",
			Summary:     "Weak cipher",
			Description: "desc",
			IssueType:   "Task",
		})
		require.NoError(t, err)

		fields := captured.last().Body["fields"].(map[string]any)
		assert.NotContains(t, fields, "components")
		assert.Equal(t, []any{}, fields["labels"])
	})
}

func TestJiraClient_UpdateIssue(t *testing.T) {
	server, captured := fakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, server.URL)
	err := client.UpdateIssue(context.Background(), "SEC-4", interfaces.UpdateFields{Description: "new desc"})
	require.NoError(t, err)

	requests := captured.all()
	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodPut, requests[0].Method)
	assert.Equal(t, "/rest/api/2/issue/SEC-4", requests[0].Path)
	assert.Equal(t, map[string]any{"fields": map[string]any{"description": "new desc"}}, requests[0].Body)
}

func TestJiraClient_ProjectComponents(t *testing.T) {
	server, captured := fakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"id":"1","name":"storage"},{"id":"2","name":"network"}]`)
	})

	client := newTestClient(t, server.URL)
	components, err := client.ProjectComponents(context.Background(), "OPS")
	require.NoError(t, err)

	assert.Equal(t, "/rest/api/2/project/OPS/components", captured.last().Path)
	assert.Equal(t, []interfaces.Component{{ID: "1", Name: "storage"}, {ID: "2", Name: "network"}}, components)
}

func TestJiraClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantDetails string
	}{
		{
			name:        "json error messages",
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"errorMessages":["Error in the JQL Query"],"errors":{}}`,
			wantDetails: "Error in the JQL Query",
		},
		{
			name:        "json field errors",
			status:      http.StatusBadRequest,
			contentType: "application/json",
			body:        `{"errorMessages":[],"errors":{"issuetype":"valid issue type is required","components":"Component name 'x' is not valid"}}`,
			wantDetails: "components: Component name 'x' is not valid; issuetype: valid issue type is required",
		},
		{
			name:        "html error page",
			status:      http.StatusBadGateway,
			contentType: "text/html",
			body:        "<html><head><title>502</title><style>p{}</style></head><body><h1>Bad Gateway</h1>\n<p>upstream   unavailable</p></body></html>",
			wantDetails: "Bad Gateway upstream unavailable",
		},
		{
			name:        "plain text",
			status:      http.StatusInternalServerError,
			contentType: "text/plain",
			body:        "something broke",
			wantDetails: "something broke",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := fakeJira(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			client := newTestClient(t, server.URL)
			_, err := client.SearchIssues(context.Background(), SearchQuery("abc"))
			require.Error(t, err)
			assert.True(t, common.IsTrackerError(err))

			var re *common.ReporterError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "search", re.Code)
			assert.Equal(t, tt.status, re.StatusCode)
			assert.Equal(t, tt.wantDetails, re.Details)
		})
	}
}

func TestConnect_ReportsThroughJira(t *testing.T) {
	server, captured := fakeJira(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/api/2/search":
			writeJSON(w, http.StatusOK, `{"issues":[]}`)
		case r.URL.Path == "/rest/api/2/project/SEC/components":
			writeJSON(w, http.StatusOK, `[{"id":"1","name":"secrets"}]`)
		case r.URL.Path == "/rest/api/2/issue" && r.Method == http.MethodPost:
			writeJSON(w, http.StatusCreated, `{"id":"10030","key":"SEC-12","self":"https://jira/rest/api/2/issue/10030"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	reporter, err := Connect(context.Background(), testJiraConfig(server.URL), arbor.NewLogger())
	require.NoError(t, err)

	ticket, err := reporter.Report(context.Background(), stubIssue{
		hash:        "abc",
		summary:     "AWS key in repo",
		description: "found\n\nkapajira-hash: abc",
		issueType:   "Bug",
		labels:      []string{"secrets"},
		component:   "secrets",
	})
	require.NoError(t, err)
	assert.Equal(t, "SEC-12", ticket.Key)

	requests := captured.all()
	require.Len(t, requests, 3)
	assert.Equal(t, "description ~ 'abc' AND status != 'Closed'", requests[0].Query)
	create := requests[2].Body["fields"].(map[string]any)
	assert.Equal(t, map[string]any{"key": "SEC"}, create["project"])
	assert.Equal(t, []any{map[string]any{"name": "secrets"}}, create["components"])
}
