package parse

import (
	"math"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/hanqizheng/mailfacts/internal/registry"
)

const (
	nameWeight  = 0.7
	aliasWeight = 0.3

	// Only the head of the message is searched; project references
	// appear in subjects and opening lines, not signatures.
	fuzzySearchWindow = 500

	minMatchCharLength = 2
)

type indexEntry struct {
	text    string // lowercase name or alias
	project string // canonical project name
	weight  float64
}

// Index is a precomputed approximate-matching structure over all project
// names and aliases. It is built once per batch, is immutable afterward,
// and is safe for concurrent reads.
type Index struct {
	entries []indexEntry
}

// IndexHit is the best-scoring fuzzy candidate. Score is a distance in
// [0,1]: lower means closer.
type IndexHit struct {
	Project string
	Matched string // the name or alias that matched
	Token   string // the text fragment it matched against
	Score   float64
}

// NewIndex builds the fuzzy index from the project registry. Names carry
// more weight than aliases.
func NewIndex(projects []registry.Project) *Index {
	ix := &Index{}
	for _, p := range projects {
		if len(p.Name) >= minMatchCharLength {
			ix.entries = append(ix.entries, indexEntry{
				text:    strings.ToLower(p.Name),
				project: p.Name,
				weight:  nameWeight,
			})
		}
		for _, alias := range p.Aliases {
			if len(alias) >= minMatchCharLength {
				ix.entries = append(ix.entries, indexEntry{
					text:    strings.ToLower(alias),
					project: p.Name,
					weight:  aliasWeight,
				})
			}
		}
	}
	return ix
}

// Search scans the first fuzzySearchWindow characters of text and returns
// the single best-scoring candidate, or nil when the index is empty or no
// token comes close to any entry.
func (ix *Index) Search(text string) *IndexHit {
	if len(ix.entries) == 0 {
		return nil
	}

	runes := []rune(strings.ToLower(text))
	if len(runes) > fuzzySearchWindow {
		runes = runes[:fuzzySearchWindow]
	}
	tokens := tokenize(string(runes))
	if len(tokens) == 0 {
		return nil
	}

	var best *IndexHit
	for _, e := range ix.entries {
		for _, tok := range tokens {
			score := weightedDistance(e.text, tok, e.weight)
			if best == nil || score < best.Score {
				best = &IndexHit{
					Project: e.project,
					Matched: e.text,
					Token:   tok,
					Score:   score,
				}
			}
		}
	}
	return best
}

// tokenize splits normalized text into candidate fragments: single words
// plus adjacent word pairs, so multi-word project names still match.
func tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == ':' || r == '(' || r == ')' ||
			r == '[' || r == ']' || r == '"' || r == '\''
	})

	var tokens []string
	for i, w := range words {
		if len(w) < minMatchCharLength {
			continue
		}
		tokens = append(tokens, w)
		if i+1 < len(words) {
			tokens = append(tokens, w+" "+words[i+1])
		}
	}
	return tokens
}

// weightedDistance is the normalized Levenshtein distance between an index
// entry and a token, deflated by the entry weight: a full-weight entry
// keeps its raw distance, a low-weight one is pushed toward 1.
func weightedDistance(entry, token string, weight float64) float64 {
	longest := len([]rune(entry))
	if l := len([]rune(token)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}

	dist := fuzzy.LevenshteinDistance(entry, token)
	base := float64(dist) / float64(longest)
	if base >= 1 {
		return 1
	}
	return math.Pow(base, weight)
}
