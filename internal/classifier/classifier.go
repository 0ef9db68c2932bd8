// Package classifier scores listing text against modern-exclusion and
// vintage-inclusion vocabularies and detects the listing era.
package classifier

import (
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

// Rule names reported in Result.Rules.
const (
	RuleModernCurated     = "modern_curated"
	RuleModernLearned     = "modern_learned"
	RuleRecentYear        = "recent_year"
	RuleModernBicycle     = "modern_bicycle"
	RuleModernElectronics = "modern_electronics"
	RuleModernVehicle     = "modern_vehicle"

	RuleCore    = "core_vintage"
	RuleGeneral = "general_vintage"
	RuleWeak    = "weak_retro"
	RuleVehicle = "vehicle_vintage"
	RuleBicycle = "bicycle_vintage"
)

// MinCandidateRunes is the shortest token queued as a learning candidate.
const MinCandidateRunes = 4

// Vocabulary carries the file-backed term lists.
type Vocabulary struct {
	// Curated modern terms, flattened from the grouped file.
	Curated []string
	// Learned modern phrases from the feedback loop.
	Learned []string
	// Vintage is the general strong vintage vocabulary.
	Vintage   []string
	Blacklist []string
	// Synonyms only feed the known-token set used for candidate filtering.
	Synonyms map[string][]string
}

// Result is the classifier verdict for one text.
type Result struct {
	Class      models.VintageClass
	Score      int
	Rules      []string
	Candidates []models.Candidate
}

// Ambiguous reports whether the score falls in the learning window.
func (r Result) Ambiguous(p Policy) bool {
	return r.Class != models.ClassNonVintage && r.Score >= 0 && r.Score < p.OriginalAt
}

type input struct {
	text   string
	tokens []string
}

func newInput(s string) input {
	return input{text: textnorm.Normalize(s), tokens: textnorm.Tokenize(s)}
}

type outcome struct {
	rule  string
	score int
}

// exclusion is a pure rule; the first one that reports ok wins.
type exclusion func(in input) (outcome, bool)

type learnedSet struct {
	phrases []string
	tokens  map[string]struct{}
}

// Classifier is safe for concurrent use. Only the learned set may change
// after construction, through SetLearned.
type Classifier struct {
	policy Policy

	curated []string
	general []string
	core    []string
	weak    []string
	vehicle []string
	bicycle []string

	known      map[string]struct{}
	exclusions []exclusion
	learned    atomic.Pointer[learnedSet]

	now func() time.Time
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithClock overrides the time source used to stamp candidates.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// New builds a classifier from policy and vocabularies.
func New(p Policy, v Vocabulary, opts ...Option) *Classifier {
	c := &Classifier{
		policy:  p,
		curated: phrases(v.Curated),
		general: phrases(v.Vintage),
		core:    phrases(coreVintage),
		weak:    phrases(weakRetro),
		vehicle: phrases(vehicleVintage),
		bicycle: phrases(bicycleVintage),
		known:   make(map[string]struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, list := range [][]string{c.curated, c.general, c.core, c.weak, c.vehicle, c.bicycle, phrases(v.Blacklist)} {
		c.addKnown(list)
	}
	for k, values := range v.Synonyms {
		c.addKnown(phrases(append([]string{k}, values...)))
	}
	c.SetLearned(v.Learned)

	c.exclusions = []exclusion{
		phraseRule(RuleModernCurated, p.ScoreModernCurated, func() []string { return c.curated }),
		phraseRule(RuleModernLearned, p.ScoreModernLearned, func() []string { return c.learned.Load().phrases }),
		yearRule(p),
		patternRule(RuleModernBicycle, p.ScoreModernPattern, modernBicycle),
		patternRule(RuleModernElectronics, p.ScoreModernPattern, modernElectronics),
		patternRule(RuleModernVehicle, p.ScoreModernPattern, modernVehicle),
	}
	return c
}

// Policy returns the thresholds the classifier was built with.
func (c *Classifier) Policy() Policy { return c.policy }

// SetLearned swaps the learned modern phrase set.
func (c *Classifier) SetLearned(learned []string) {
	set := &learnedSet{phrases: phrases(learned), tokens: make(map[string]struct{})}
	for _, p := range set.phrases {
		for _, tok := range strings.Split(p, " ") {
			set.tokens[tok] = struct{}{}
		}
	}
	c.learned.Store(set)
}

// Curated returns the canonical curated modern phrases.
func (c *Classifier) Curated() []string { return c.curated }

// IsKnown reports whether token belongs to any static vocabulary.
func (c *Classifier) IsKnown(token string) bool {
	_, ok := c.known[token]
	return ok
}

// Classify runs exclusions over raw and, when none fires, accumulates
// inclusions over expanded (raw text plus its synonym expansion).
func (c *Classifier) Classify(raw, expanded string) Result {
	in := newInput(raw)
	for _, ex := range c.exclusions {
		if o, ok := ex(in); ok {
			return Result{Class: models.ClassNonVintage, Score: o.score, Rules: []string{o.rule}}
		}
	}

	if strings.TrimSpace(expanded) == "" {
		expanded = raw
	}
	tokens := textnorm.Tokenize(expanded)

	res := Result{Class: models.ClassGeneric}
	if containsAny(tokens, c.core) {
		res.Score += c.policy.PointsCore
		res.Class = models.ClassOriginal
		res.Rules = append(res.Rules, RuleCore)
	}

	weakHit, masked := maskPhrases(tokens, c.weak)
	if containsAny(masked, c.general) {
		res.Score += c.policy.PointsGeneral
		res.Rules = append(res.Rules, RuleGeneral)
	}
	if weakHit {
		res.Score += c.policy.PointsWeak
		if res.Class == models.ClassGeneric {
			res.Class = models.ClassRetro
		}
		res.Rules = append(res.Rules, RuleWeak)
	}
	if containsAny(tokens, c.vehicle) {
		res.Score += c.policy.PointsVehicle
		res.Rules = append(res.Rules, RuleVehicle)
	}
	if containsAny(tokens, c.bicycle) {
		res.Score += c.policy.PointsBicycle
		res.Rules = append(res.Rules, RuleBicycle)
	}

	if res.Score >= c.policy.OriginalAt {
		res.Class = models.ClassOriginal
	}
	if res.Ambiguous(c.policy) {
		res.Candidates = c.candidates(in)
	}
	return res
}

func (c *Classifier) candidates(in input) []models.Candidate {
	learned := c.learned.Load()
	context := truncateRunes(in.text, c.policy.CandidateContext)
	seenAt := c.now().UTC()

	var out []models.Candidate
	seen := make(map[string]struct{})
	for _, tok := range in.tokens {
		if utf8.RuneCountInString(tok) < MinCandidateRunes || isDigits(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if _, ok := learned.tokens[tok]; ok {
			continue
		}
		if c.IsKnown(tok) {
			continue
		}
		out = append(out, models.Candidate{Term: tok, Context: context, SeenAt: seenAt})
	}
	return out
}

func (c *Classifier) addKnown(list []string) {
	for _, p := range list {
		for _, tok := range strings.Split(p, " ") {
			c.known[tok] = struct{}{}
		}
	}
}

func phraseRule(name string, score int, list func() []string) exclusion {
	return func(in input) (outcome, bool) {
		if containsAny(in.tokens, list()) {
			return outcome{rule: name, score: score}, true
		}
		return outcome{}, false
	}
}

func yearRule(p Policy) exclusion {
	return func(in input) (outcome, bool) {
		for _, m := range yearToken.FindAllStringSubmatch(in.text, -1) {
			year, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if year >= p.RecentYearFrom && year <= p.RecentYearTo {
				return outcome{rule: RuleRecentYear, score: p.ScoreRecentYear}, true
			}
		}
		return outcome{}, false
	}
}

func patternRule(name string, score int, patterns []*regexp.Regexp) exclusion {
	return func(in input) (outcome, bool) {
		for _, re := range patterns {
			if re.MatchString(in.text) {
				return outcome{rule: name, score: score}, true
			}
		}
		return outcome{}, false
	}
}

func phrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, textnorm.Phrase(s))
	}
	return textnorm.Unique(out)
}

func containsAny(tokens, list []string) bool {
	for _, p := range list {
		if textnorm.ContainsPhrase(tokens, p) {
			return true
		}
	}
	return false
}

// maskPhrases blanks every token covered by a matched phrase so that a weak
// phrase such as "stile vintage" does not also count as strong "vintage".
func maskPhrases(tokens, list []string) (bool, []string) {
	masked := make([]string, len(tokens))
	copy(masked, tokens)

	hit := false
	for _, p := range list {
		want := strings.Split(p, " ")
		for i := 0; i+len(want) <= len(tokens); i++ {
			if textnorm.ContainsPhrase(tokens[i:i+len(want)], p) {
				hit = true
				for j := range want {
					masked[i+j] = ""
				}
			}
		}
	}
	return hit, masked
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
