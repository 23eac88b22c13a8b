package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conflict is a rejected fact: the subject+relation already maps to a different object.
type Conflict struct {
	Subject         string   `json:"subject"`
	Relation        string   `json:"relation"`
	Object          string   `json:"object"`
	ExistingObjects []string `json:"existing_objects"`
	Message         string   `json:"message"`
	SourceText      string   `json:"source_text,omitempty"`
}

// NewConflict builds a Conflict with the standard message. relation must already be normalized.
func NewConflict(subject, relation, object string, existing []string, sourceText string) *Conflict {
	quoted := make([]string, len(existing))
	for i, o := range existing {
		quoted[i] = fmt.Sprintf("'%s'", o)
	}
	return &Conflict{
		Subject:         subject,
		Relation:        relation,
		Object:          object,
		ExistingObjects: append([]string(nil), existing...),
		Message: fmt.Sprintf("Inconsistency for (%s, %s, %s). Existing graph facts: [%s].",
			subject, relation, object, strings.Join(quoted, ", ")),
		SourceText: sourceText,
	}
}

// SuggestedFix is the placeholder fix stored until an explainer replaces it.
func (c *Conflict) SuggestedFix() string {
	return fmt.Sprintf("Reconcile %s's %s state before accepting '%s'.", c.Subject, c.Relation, c.Object)
}

type IssueType string

const (
	IssueInconsistency IssueType = "INCONSISTENCY"
)

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

type ConflictStatus string

const (
	StatusPending   ConflictStatus = "PENDING"
	StatusResolved  ConflictStatus = "RESOLVED"
	StatusDismissed ConflictStatus = "DISMISSED"
)

func ValidConflictStatus(s string) bool {
	switch ConflictStatus(s) {
	case StatusPending, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// ConflictLog is the persisted form of a Conflict, drained by the explainer.
type ConflictLog struct {
	ID                uuid.UUID      `json:"id"`
	ProjectID         uuid.UUID      `json:"project_id"`
	IssueType         IssueType      `json:"issue_type"`
	Severity          Severity       `json:"severity"`
	Subject           string         `json:"subject"`
	Relation          string         `json:"relation"`
	Object            string         `json:"object"`
	ExistingObjects   []string       `json:"existing_objects"`
	OriginalText      string         `json:"original_text,omitempty"`
	Explanation       string         `json:"explanation"`
	SuggestedFix      string         `json:"suggested_fix"`
	Status            ConflictStatus `json:"status"`
	InvolvedEntityIDs []uuid.UUID    `json:"involved_entity_ids"`
	ExplainedAt       *time.Time     `json:"explained_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// Conflict returns the structured conflict record carried by the log row. Rows
// written without the structured columns are recovered from the message.
func (l *ConflictLog) Conflict() Conflict {
	if l.Subject == "" && l.Relation == "" && l.Object == "" {
		c := ParseConflictMessage(l.Explanation)
		c.SourceText = l.OriginalText
		return c
	}
	return Conflict{
		Subject:         l.Subject,
		Relation:        l.Relation,
		Object:          l.Object,
		ExistingObjects: l.ExistingObjects,
		Message:         l.Explanation,
		SourceText:      l.OriginalText,
	}
}

var conflictMessageRe = regexp.MustCompile(`Inconsistency for \((.*?), (.*?), (.*?)\)`)

const existingFactsMarker = "Existing graph facts:"

// ParseConflictMessage reads a message built by NewConflict back into a Conflict.
// Parts it cannot find are set to UNKNOWN_SUBJECT, RELATED_TO and UNKNOWN_OBJECT.
func ParseConflictMessage(msg string) Conflict {
	c := Conflict{
		Subject:  "UNKNOWN_SUBJECT",
		Relation: DefaultRelation,
		Object:   "UNKNOWN_OBJECT",
		Message:  msg,
	}
	if m := conflictMessageRe.FindStringSubmatch(msg); m != nil {
		c.Subject = strings.TrimSpace(m[1])
		c.Relation = strings.TrimSpace(m[2])
		c.Object = strings.TrimSpace(m[3])
	}

	_, tail, ok := strings.Cut(msg, existingFactsMarker)
	if !ok {
		return c
	}
	tail = strings.Trim(strings.Trim(strings.TrimSpace(tail), "."), "[]")
	for _, item := range strings.Split(tail, ",") {
		item = strings.Trim(strings.TrimSpace(item), `'"`)
		if item != "" {
			c.ExistingObjects = append(c.ExistingObjects, item)
		}
	}
	return c
}

// Alert is an author-facing explanation of one conflict log.
type Alert struct {
	LogID        uuid.UUID `json:"log_id"`
	Type         IssueType `json:"type"`
	Entity       string    `json:"entity,omitempty"`
	Explanation  string    `json:"explanation"`
	OriginalText string    `json:"original_text,omitempty"`
}
