package extract

import (
	"strings"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/grammar"
)

var kindByLabel = map[string]domain.EntityKind{
	"PERSON":      domain.KindCharacter,
	"GPE":         domain.KindLocation,
	"LOC":         domain.KindLocation,
	"FAC":         domain.KindLocation,
	"ORG":         domain.KindObject,
	"NORP":        domain.KindObject,
	"PRODUCT":     domain.KindObject,
	"EVENT":       domain.KindObject,
	"WORK_OF_ART": domain.KindObject,
	"LANGUAGE":    domain.KindObject,
	"DATE":        domain.KindObject,
	"TIME":        domain.KindObject,
}

// Classify maps a named-span label onto a story entity kind. Unknown labels are objects.
func Classify(label string) domain.EntityKind {
	if k, ok := kindByLabel[label]; ok {
		return k
	}
	return domain.KindObject
}

// NamedEntity is a named span with its story kind.
type NamedEntity struct {
	Name  string            `json:"name"`
	Label string            `json:"label"`
	Kind  domain.EntityKind `json:"kind"`
}

// NamedEntities returns the document's named spans, trimmed, without blanks, first
// mention wins when a name repeats.
func NamedEntities(doc *grammar.Document) []NamedEntity {
	if doc == nil {
		return nil
	}
	seen := make(map[string]bool, len(doc.Entities))
	var out []NamedEntity
	for _, span := range doc.Entities {
		name := strings.TrimSpace(span.Text)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, NamedEntity{Name: name, Label: span.Label, Kind: Classify(span.Label)})
	}
	return out
}
