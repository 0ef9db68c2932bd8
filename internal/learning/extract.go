package learning

import (
	"regexp"
	"sort"
	"strings"

	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

// FallbackDetected marks an entry whose whole title was learned.
const FallbackDetected = "fallback_full_title"

// MinTokenRunes is the shortest generic token considered.
const MinTokenRunes = 3

var modelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\biphone\s?(7|8|x|xr|xs|1[1-6])\b`),
	regexp.MustCompile(`\bsamsung\s?galaxy\b`),
	regexp.MustCompile(`\bgalaxy\s?s([5-9]|1\d|2[0-4])\b`),
	regexp.MustCompile(`\bps[45]\b`),
	regexp.MustCompile(`\bxbox\s?(one|series)\b`),
	regexp.MustCompile(`\bnintendo\s?switch\b`),
	regexp.MustCompile(`\bsmart\s?tv\b`),
	regexp.MustCompile(`\b[48]k\b`),
	regexp.MustCompile(`\bgolf\s?(6|7|8|mk7|mk8)\b`),
	regexp.MustCompile(`\baudi\s?[aq]\d\b`),
	regexp.MustCompile(`\b\d\.\d\s?(tdi|tfsi|multijet|ecoboost)\b`),
	regexp.MustCompile(`\bhybrid\b`),
	regexp.MustCompile(`\bplug[- ]?in\b`),
	regexp.MustCompile(`\belectric\b`),
}

var (
	wordToken   = regexp.MustCompile(`[a-z0-9.\-]+`)
	bareNumber  = regexp.MustCompile(`^\d+([.,]\d+)?$`)
	modelNumber = regexp.MustCompile(`^\d{2,4}[a-z]{1,2}$`)
)

// historicBrands never count as modern on their own.
var historicBrands = set(
	"mercedes", "benz", "bmw", "alfa", "romeo", "fiat", "lancia", "porsche", "audi",
	"volkswagen", "vw", "toyota", "honda", "ford", "citroen", "renault", "opel", "volvo",
	"saab", "jaguar", "mini", "vespa", "lambretta", "brionvega", "olivetti", "grundig",
	"telefunken", "panasonic",
)

var noiseTerms = set(
	"turbo", "benzina", "diesel", "airbag", "abs", "automatico", "fari", "sport",
	"android", "hdr", "uhd",
)

// Extractor finds modern-vocabulary hits in a title.
type Extractor struct {
	curatedTokens  map[string]struct{}
	curatedPhrases []string
	vintage        map[string]struct{}
}

// NewExtractor builds an extractor from the curated modern list and the
// vintage vocabulary, whose tokens are never reported.
func NewExtractor(curated, vintage []string) *Extractor {
	e := &Extractor{curatedTokens: map[string]struct{}{}, vintage: map[string]struct{}{}}
	for _, c := range curated {
		p := textnorm.Phrase(c)
		switch {
		case p == "":
		case strings.Contains(p, " "):
			e.curatedPhrases = append(e.curatedPhrases, p)
		default:
			e.curatedTokens[p] = struct{}{}
		}
	}
	for _, v := range vintage {
		for _, tok := range textnorm.Tokenize(v) {
			e.vintage[tok] = struct{}{}
		}
	}
	return e
}

// IsCurated reports whether phrase is already part of the curated list.
func (e *Extractor) IsCurated(phrase string) bool {
	p := textnorm.Phrase(phrase)
	if _, ok := e.curatedTokens[p]; ok {
		return true
	}
	for _, c := range e.curatedPhrases {
		if c == p {
			return true
		}
	}
	return false
}

// Extract returns the sorted, deduplicated modern terms found in title:
// explicit model patterns, model-number tokens such as "320d" and curated
// modern terms. Historic brands, noise words, bare numbers and vintage
// vocabulary are skipped.
func (e *Extractor) Extract(title string) []string {
	text := textnorm.Normalize(title)
	hits := map[string]struct{}{}

	for _, re := range modelPatterns {
		if m := re.FindString(text); m != "" {
			hits[textnorm.Phrase(m)] = struct{}{}
		}
	}

	tokens := textnorm.Tokenize(text)
	for _, p := range e.curatedPhrases {
		if textnorm.ContainsPhrase(tokens, p) {
			hits[p] = struct{}{}
		}
	}

	for _, w := range wordToken.FindAllString(text, -1) {
		w = strings.Trim(w, ".-")
		if len([]rune(w)) < MinTokenRunes {
			continue
		}
		if _, ok := historicBrands[w]; ok {
			continue
		}
		if _, ok := noiseTerms[w]; ok {
			continue
		}
		if _, ok := e.vintage[w]; ok {
			continue
		}
		if bareNumber.MatchString(w) {
			continue
		}
		if modelNumber.MatchString(w) {
			hits[w] = struct{}{}
			continue
		}
		if p := textnorm.Phrase(w); e.IsCurated(p) {
			hits[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(hits))
	for h := range hits {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}
