package domain

// Metadata keys written by a character summary refresh.
const (
	MetaPersonaSummary   = "persona_summary"
	MetaStorySummary     = "story_summary"
	MetaSummaryUpdatedAt = "summary_updated_at"
)

// CharacterDossier is what a summarizer gets to work from: the character's
// facts rendered as "A -- REL --> B" lines and narrative excerpts.
type CharacterDossier struct {
	Name     string   `json:"name"`
	Facts    []string `json:"facts"`
	Excerpts []string `json:"excerpts"`
}

type CharacterSummary struct {
	Persona string `json:"persona_summary"`
	Story   string `json:"story_summary"`
}
