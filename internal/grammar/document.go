// Package grammar is the boundary to the external part-of-speech and dependency
// parser. Everything the extractor needs from a parse lives in these types.
package grammar

import "strings"

// Token is one word of a parsed sentence.
type Token struct {
	Index int    `json:"i"`
	Text  string `json:"text"`
	Lemma string `json:"lemma"`
	POS   string `json:"pos"`
	Dep   string `json:"dep"`
	// Head is the index of the governing token within the sentence. The root
	// points at itself or carries -1.
	Head int `json:"head"`
	// Subtree is the text of the token's full subtree when the parser provides it.
	Subtree string `json:"subtree,omitempty"`
}

// Span is a named-entity mention with the parser's category label.
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

type Sentence struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens"`
}

type Document struct {
	Text      string     `json:"text"`
	Sentences []Sentence `json:"sentences"`
	Entities  []Span     `json:"entities"`
}

// Children returns the indexes of the tokens governed by token i, in sentence order.
func (s *Sentence) Children(i int) []int {
	var out []int
	for j, t := range s.Tokens {
		if j != i && t.Head == i {
			out = append(out, j)
		}
	}
	return out
}

// SubtreeText expands token i to the text of its whole subtree. The parser's
// subtree text wins; otherwise the subtree is rebuilt from head links inside
// this sentence; a token without dependents is its own text.
func (s *Sentence) SubtreeText(i int) string {
	if i < 0 || i >= len(s.Tokens) {
		return ""
	}
	tok := s.Tokens[i]
	if tok.Subtree != "" {
		return tok.Subtree
	}

	in := make([]bool, len(s.Tokens))
	in[i] = true
	stack := []int{i}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range s.Children(cur) {
			if !in[c] {
				in[c] = true
				stack = append(stack, c)
			}
		}
	}

	words := make([]string, 0, 4)
	for j, ok := range in {
		if ok {
			words = append(words, s.Tokens[j].Text)
		}
	}
	if len(words) == 0 {
		return tok.Text
	}
	return strings.Join(words, " ")
}
