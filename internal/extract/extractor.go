// Package extract turns parsed sentences into subject-relation-object triples
// and maps named-entity labels onto story entity kinds.
package extract

import (
	"context"
	"runtime"
	"strings"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/Harshitk-cp/storybrain/internal/grammar"
	"golang.org/x/sync/errgroup"
)

const verbPOS = "VERB"

// ExtractSentence walks every verb of the sentence and emits one triple per
// (subject, object) pair, relation = upper-cased verb lemma, plus one triple per
// (subject, prepositional object) pair, relation = upper-cased preposition text.
// A sentence without a verb, or a verb without a subject and object, yields nothing.
func ExtractSentence(s grammar.Sentence) []domain.Triple {
	var triples []domain.Triple

	for i, tok := range s.Tokens {
		if tok.POS != verbPOS {
			continue
		}

		var subjects, objects, preps []int
		for _, c := range s.Children(i) {
			switch role := s.Role(c); {
			case role == grammar.RoleSubject:
				subjects = append(subjects, c)
			case role.IsVerbArgumentObject():
				objects = append(objects, c)
			case role == grammar.RolePreposition:
				preps = append(preps, c)
			}
		}
		if len(subjects) == 0 {
			continue
		}

		relation := domain.NormalizeRelation(lemmaOf(tok))
		for _, subj := range subjects {
			for _, obj := range objects {
				triples = appendTriple(triples, s.SubtreeText(subj), relation, s.SubtreeText(obj), s.Text)
			}
		}

		for _, prep := range preps {
			var pobjs []int
			for _, c := range s.Children(prep) {
				if s.Role(c) == grammar.RolePrepObject {
					pobjs = append(pobjs, c)
				}
			}
			prepRelation := domain.NormalizeRelation(s.Tokens[prep].Text)
			for _, subj := range subjects {
				for _, pobj := range pobjs {
					triples = appendTriple(triples, s.SubtreeText(subj), prepRelation, s.SubtreeText(pobj), s.Text)
				}
			}
		}
	}

	return triples
}

func lemmaOf(t grammar.Token) string {
	if t.Lemma != "" {
		return t.Lemma
	}
	return t.Text
}

// appendTriple drops triples with a blank part; the graph never sees empty names from extraction.
func appendTriple(triples []domain.Triple, subject, relation, object, sentence string) []domain.Triple {
	subject = strings.TrimSpace(subject)
	relation = strings.TrimSpace(relation)
	object = strings.TrimSpace(object)
	if subject == "" || relation == "" || object == "" {
		return triples
	}
	return append(triples, domain.Triple{
		Subject:  subject,
		Relation: relation,
		Object:   object,
		Sentence: sentence,
	})
}

// ExtractDocument extracts every sentence in parallel and returns the triples
// in sentence order.
func ExtractDocument(ctx context.Context, doc *grammar.Document) ([]domain.Triple, error) {
	if doc == nil || len(doc.Sentences) == 0 {
		return nil, nil
	}

	perSentence := make([][]domain.Triple, len(doc.Sentences))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range doc.Sentences {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perSentence[i] = ExtractSentence(doc.Sentences[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Triple
	for _, ts := range perSentence {
		out = append(out, ts...)
	}
	return out, nil
}
