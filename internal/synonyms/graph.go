// Package synonyms builds a symmetric phrase-synonym graph and expands
// queries into their semantic neighborhood.
package synonyms

import (
	"sort"
	"strings"

	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

// MaxPhraseTokens is the longest token span considered during expansion.
const MaxPhraseTokens = 4

// Graph maps canonical phrases to ordered sets of equivalent phrases.
// It is immutable after New and safe for concurrent reads.
type Graph struct {
	sets    map[string][]string // canonical -> canonical neighbors, first-seen order
	members map[string][]string // canonical -> entries whose set lists it
	display map[string]string   // canonical -> normalized display form
}

// New closes raw key -> values pairs symmetrically: every value points back to
// its key and to each of its siblings.
func New(raw map[string][]string) *Graph {
	g := &Graph{
		sets:    make(map[string][]string),
		members: make(map[string][]string),
		display: make(map[string]string),
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, rawKey := range keys {
		key := g.intern(rawKey)
		if key == "" {
			continue
		}
		values := make([]string, 0, len(raw[rawKey]))
		for _, rv := range raw[rawKey] {
			if v := g.intern(rv); v != "" && v != key {
				values = append(values, v)
			}
		}
		values = textnorm.Unique(values)

		for _, v := range values {
			g.link(key, v)
		}
		for _, v := range values {
			g.link(v, key)
			for _, sibling := range values {
				if sibling != v {
					g.link(v, sibling)
				}
			}
		}
	}

	return g
}

func (g *Graph) intern(s string) string {
	canon := textnorm.Phrase(s)
	if canon == "" {
		return ""
	}
	if _, ok := g.display[canon]; !ok {
		g.display[canon] = textnorm.Normalize(s)
	}
	return canon
}

func (g *Graph) link(from, to string) {
	for _, existing := range g.sets[from] {
		if existing == to {
			return
		}
	}
	g.sets[from] = append(g.sets[from], to)
	g.members[to] = append(g.members[to], from)
}

// Size returns the number of phrases with at least one equivalent.
func (g *Graph) Size() int {
	if g == nil {
		return 0
	}
	return len(g.sets)
}

// Neighbors returns the display forms equivalent to phrase.
func (g *Graph) Neighbors(phrase string) []string {
	if g == nil {
		return nil
	}
	set := g.sets[textnorm.Phrase(phrase)]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for _, c := range set {
		out = append(out, g.display[c])
	}
	return out
}

// Expand returns, for every 1..4 token span of query that names a graph entry
// or appears in an entry's set, that entry and its full set. Matching is
// whole-phrase only. Output is deduplicated in first-seen order.
func (g *Graph) Expand(query string) []string {
	if g == nil || len(g.sets) == 0 {
		return nil
	}

	var (
		out  []string
		seen = make(map[string]struct{})
	)
	collect := func(canon string) {
		if _, ok := seen[canon]; ok {
			return
		}
		seen[canon] = struct{}{}
		out = append(out, g.display[canon])
	}
	collectEntry := func(entry string) {
		collect(entry)
		for _, v := range g.sets[entry] {
			collect(v)
		}
	}

	for _, span := range spans(textnorm.Tokenize(query)) {
		if _, ok := g.sets[span]; ok {
			collectEntry(span)
		}
		for _, entry := range g.members[span] {
			collectEntry(entry)
		}
	}

	return out
}

// ExpandDeep re-expands every collected phrase up to depth hops, giving a
// strictly broader (or equal) set than Expand.
func (g *Graph) ExpandDeep(query string, depth int) []string {
	result := g.Expand(query)
	if depth <= 1 || len(result) == 0 {
		return result
	}

	seen := make(map[string]struct{}, len(result))
	for _, p := range result {
		seen[p] = struct{}{}
	}

	frontier := result
	for hop := 1; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, phrase := range frontier {
			for _, p := range g.Expand(phrase) {
				if _, ok := seen[p]; ok {
					continue
				}
				seen[p] = struct{}{}
				result = append(result, p)
				next = append(next, p)
			}
		}
		frontier = next
	}

	return result
}

// spans lists contiguous token runs of length 1..MaxPhraseTokens in position order.
func spans(tokens []string) []string {
	out := make([]string, 0, len(tokens)*MaxPhraseTokens)
	for i := range tokens {
		for n := 1; n <= MaxPhraseTokens && i+n <= len(tokens); n++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}
