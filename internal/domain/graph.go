package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EntityKind string

const (
	KindCharacter EntityKind = "CHARACTER"
	KindLocation  EntityKind = "LOCATION"
	KindObject    EntityKind = "OBJECT"
)

func ValidEntityKind(k string) bool {
	switch EntityKind(k) {
	case KindCharacter, KindLocation, KindObject:
		return true
	}
	return false
}

// NormalizeKind returns k when it is one of the three story kinds and OBJECT otherwise.
func NormalizeKind(k EntityKind) EntityKind {
	if ValidEntityKind(string(k)) {
		return k
	}
	return KindObject
}

// DefaultRelation is used for stored relationships that carry no relation label.
const DefaultRelation = "RELATED_TO"

// NormalizeRelation upper-cases a relation label. Every comparison and every
// stored edge goes through it.
func NormalizeRelation(r string) string {
	return strings.ToUpper(r)
}

// Entity is a named story element. Name is the graph node key and is unique per project.
type Entity struct {
	ID             uuid.UUID      `json:"id"`
	ProjectID      uuid.UUID      `json:"project_id"`
	Name           string         `json:"name"`
	Kind           EntityKind     `json:"entity_type"`
	Description    string         `json:"description,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IsInitialSetup bool           `json:"is_initial_setup"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Fact is a directed, labeled relation between two entities (a graph edge).
type Fact struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	SubjectID   uuid.UUID `json:"entity_a_id"`
	ObjectID    uuid.UUID `json:"entity_b_id"`
	Relation    string    `json:"relation_type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Triple is a candidate fact extracted from one sentence.
type Triple struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
	Sentence string `json:"sentence"`
}

// AcceptedFact is a fact that passed the consistency check, expressed by entity name.
type AcceptedFact struct {
	ProjectID   uuid.UUID  `json:"project_id"`
	Subject     string     `json:"subject"`
	SubjectKind EntityKind `json:"subject_kind,omitempty"`
	Relation    string     `json:"relation"`
	Object      string     `json:"object"`
	ObjectKind  EntityKind `json:"object_kind,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
