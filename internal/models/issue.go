package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"kapajira/internal/common"
)

const (
	// HashMarker prefixes the hash line embedded in every ticket description.
	HashMarker = "kapajira-hash:"

	DefaultIssueType = "Bug"
)

// Finding is a single detector result as read from the findings file
type Finding struct {
	Summary     string   `json:"summary"`
	Details     string   `json:"details"`
	Type        string   `json:"type,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Component   string   `json:"component,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// Issue is the reportable form of a Finding. It satisfies interfaces.Issue.
type Issue struct {
	hash        string
	summary     string
	description string
	issueType   string
	labels      []string
	component   string
}

func NewIssue(f Finding) *Issue {
	issueType := f.Type
	if issueType == "" {
		issueType = DefaultIssueType
	}

	hash := fingerprintHash(issueType, f)

	return &Issue{
		hash:        hash,
		summary:     f.Summary,
		description: renderDescription(f.Details, hash),
		issueType:   issueType,
		labels:      append([]string(nil), f.Labels...),
		component:   f.Component,
	}
}

func (i *Issue) Hash() string        { return i.hash }
func (i *Issue) Summary() string     { return i.summary }
func (i *Issue) Description() string { return i.description }
func (i *Issue) Type() string        { return i.issueType }
func (i *Issue) Component() string   { return i.component }

func (i *Issue) Labels() []string {
	return append([]string(nil), i.labels...)
}

// fingerprintHash identifies a finding independently of its free-text details
// whenever the detector supplies a fingerprint, so reworded details still
// match the same ticket.
func fingerprintHash(issueType string, f Finding) string {
	identity := f.Fingerprint
	if identity == "" {
		identity = f.Details
	}

	h := sha256.New()
	h.Write([]byte(strings.Join([]string{issueType, f.Summary, f.Component, identity}, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

func renderDescription(details, hash string) string {
	marker := fmt.Sprintf("%s %s", HashMarker, hash)
	if strings.TrimSpace(details) == "" {
		return marker
	}
	return strings.TrimRight(details, "\n") + "\n\n" + marker
}

// ReadFindings decodes a JSON array of findings
func ReadFindings(r io.Reader) ([]Finding, error) {
	var findings []Finding
	if err := json.NewDecoder(r).Decode(&findings); err != nil {
		return nil, common.NewValidationError("decode_failed", "failed to decode findings").WithCause(err)
	}
	return findings, nil
}

// LoadFindings reads findings from path, or from stdin when path is "-"
func LoadFindings(path string) ([]Finding, error) {
	if path == "-" {
		return ReadFindings(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewValidationError("read_failed", "failed to open findings file").
			WithContext("path", path).
			WithCause(err)
	}
	defer f.Close()

	return ReadFindings(f)
}

// IssuesFromFindings converts findings in order
func IssuesFromFindings(findings []Finding) []*Issue {
	issues := make([]*Issue, 0, len(findings))
	for _, f := range findings {
		issues = append(issues, NewIssue(f))
	}
	return issues
}
