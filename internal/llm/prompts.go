package llm

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

// DefaultMaxWords bounds an alert when the caller does not choose a length.
const DefaultMaxWords = 10

const conflictAlertPrompt = `You are an editorial assistant for fiction writers. Write one concise alert that points out continuity problems. Use at most {{max_words}} words.

Conflict details:
- Subject: {{subject}}
- Relation: {{relation}}
- New claim: {{subject}} -> {{relation}} -> {{object}}
- Existing facts for same subject+relation: {{existing}}

Rules:
1) Mention the contradiction clearly.
2) Ask a short clarifying question for the author.
3) Return only the alert sentence, no bullets or metadata.`

const characterSummaryPrompt = `You are a story analyst. Based on the knowledge graph facts and story excerpts below, write two short summaries for the character "{{name}}".

KNOWLEDGE GRAPH FACTS:
{{facts}}

STORY EXCERPTS:
{{excerpts}}

Write your response in exactly this format:

## PERSONA
(2-4 sentences: personality, traits, role, relationships)

## STORY SO FAR
(2-4 sentences: key events and actions in chronological order)

Only use information present in the facts and excerpts. Do not invent details.`

const (
	personaHeader = "## PERSONA"
	storyHeader   = "## STORY SO FAR"

	noPersona = "No persona information yet."
	noStory   = "No story events recorded yet."
)

type AlertPrompts struct {
	Conflict string `toml:"conflict"`
}

type SummaryPrompts struct {
	Character string `toml:"character"`
}

// Prompts holds the prompt templates. Alert placeholders are {{subject}},
// {{relation}}, {{object}}, {{existing}} and {{max_words}}; summary
// placeholders are {{name}}, {{facts}} and {{excerpts}}.
type Prompts struct {
	Alerts    AlertPrompts   `toml:"alerts"`
	Summaries SummaryPrompts `toml:"summaries"`
}

func DefaultPrompts() *Prompts {
	return &Prompts{
		Alerts:    AlertPrompts{Conflict: conflictAlertPrompt},
		Summaries: SummaryPrompts{Character: characterSummaryPrompt},
	}
}

// LoadPrompts reads a TOML prompt file over the defaults. An empty path
// returns the defaults; keys missing from the file keep their default.
func LoadPrompts(path string) (*Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse prompts file %q: %w", path, err)
	}
	if strings.TrimSpace(p.Alerts.Conflict) == "" {
		p.Alerts.Conflict = conflictAlertPrompt
	}
	if strings.TrimSpace(p.Summaries.Character) == "" {
		p.Summaries.Character = characterSummaryPrompt
	}
	return p, nil
}

// ConflictAlert renders the conflict alert prompt.
func (p *Prompts) ConflictAlert(c domain.Conflict, maxWords int) string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	existing := "none"
	if len(c.ExistingObjects) > 0 {
		existing = strings.Join(c.ExistingObjects, ", ")
	}

	tmpl := conflictAlertPrompt
	if p != nil && p.Alerts.Conflict != "" {
		tmpl = p.Alerts.Conflict
	}
	return strings.NewReplacer(
		"{{subject}}", c.Subject,
		"{{relation}}", c.Relation,
		"{{object}}", c.Object,
		"{{existing}}", existing,
		"{{max_words}}", strconv.Itoa(maxWords),
	).Replace(tmpl)
}

// CharacterSummary renders the character summary prompt.
func (p *Prompts) CharacterSummary(d domain.CharacterDossier) string {
	facts := "No facts recorded yet."
	if len(d.Facts) > 0 {
		facts = strings.Join(d.Facts, "\n")
	}
	excerpts := "No excerpts available."
	if len(d.Excerpts) > 0 {
		excerpts = strings.Join(d.Excerpts, "\n---\n")
	}

	tmpl := characterSummaryPrompt
	if p != nil && p.Summaries.Character != "" {
		tmpl = p.Summaries.Character
	}
	return strings.NewReplacer(
		"{{name}}", d.Name,
		"{{facts}}", facts,
		"{{excerpts}}", excerpts,
	).Replace(tmpl)
}

// ParseCharacterSummary splits a model reply into its PERSONA and STORY SO FAR
// sections. A reply without headers becomes the persona, cut to 500 bytes.
func ParseCharacterSummary(raw string) domain.CharacterSummary {
	text := strings.TrimSpace(raw)

	p := strings.Index(text, personaHeader)
	st := strings.Index(text, storyHeader)
	switch {
	case p >= 0 && st > p:
		return domain.CharacterSummary{
			Persona: orDefault(text[p+len(personaHeader):st], noPersona),
			Story:   orDefault(text[st+len(storyHeader):], noStory),
		}
	case p >= 0:
		return domain.CharacterSummary{
			Persona: orDefault(text[p+len(personaHeader):], noPersona),
			Story:   noStory,
		}
	case st >= 0:
		return domain.CharacterSummary{
			Persona: orDefault(text[:st], noPersona),
			Story:   orDefault(text[st+len(storyHeader):], noStory),
		}
	}

	if len(text) > 500 {
		text = text[:500]
	}
	return domain.CharacterSummary{Persona: orDefault(text, noPersona), Story: noStory}
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// summaryMaxTokens fits two sections of a few sentences each.
const summaryMaxTokens = 500

// FallbackAlert is used when the model returns nothing.
func FallbackAlert(c domain.Conflict) string {
	return fmt.Sprintf("Potential conflict: %s %s %s; please verify continuity.", c.Subject, c.Relation, c.Object)
}

func finishAlert(raw string, c domain.Conflict) string {
	alert := strings.TrimSpace(raw)
	alert = strings.Trim(alert, "\"")
	alert = strings.TrimSpace(alert)
	if alert == "" {
		return FallbackAlert(c)
	}
	return alert
}

// alertMaxTokens leaves headroom over the word budget.
func alertMaxTokens(maxWords int) int {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return maxWords*4 + 16
}
