package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/retrofutureitalia25/retrofuture-search/internal/category"
	"github.com/retrofutureitalia25/retrofuture-search/internal/classifier"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/synonyms"
	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

// ErrRejected is wrapped by every rejection; test with errors.Is.
var ErrRejected = errors.New("listing rejected")

var (
	ErrMissingTitle   = fmt.Errorf("%w: missing title", ErrRejected)
	ErrMissingURL     = fmt.Errorf("%w: missing url", ErrRejected)
	ErrBlacklisted    = fmt.Errorf("%w: blacklisted term", ErrRejected)
	ErrAuction        = fmt.Errorf("%w: auction listing", ErrRejected)
	ErrVehicleParts   = fmt.Errorf("%w: vehicle spare parts", ErrRejected)
	ErrNotVintage     = fmt.Errorf("%w: not vintage", ErrRejected)
	ErrBelowThreshold = fmt.Errorf("%w: score below threshold", ErrRejected)
)

const (
	MaxKeywordRunes = 40
	DefaultCurrency = "EUR"
)

var placeholderTitles = map[string]struct{}{
	"n/a": {}, "na": {}, "-": {}, "null": {}, "none": {}, "nessun titolo": {},
	"senza titolo": {}, "untitled": {}, "no title": {}, "titolo": {}, "annuncio": {},
}

var vehicleNouns = map[string]struct{}{
	"auto": {}, "moto": {}, "vespa": {}, "lambretta": {}, "fiat": {}, "scooter": {},
	"motorino": {}, "ciclomotore": {}, "maggiolino": {}, "alfa": {}, "lancia": {},
	"camion": {}, "trattore": {}, "furgone": {}, "automobile": {},
}

var (
	whitespace = regexp.MustCompile(`\s+`)

	// Bare "asta" is also a rod or stand ("lampada ad asta", "asta per tende").
	auctionPattern = regexp.MustCompile(`(\ball'asta|\bbase d'asta|\baste? online|\basta da \d|\basta benefica|\bmiglior offerente|\bofferta minima|\brilancio?\b|\bauctions?\b)`)
	// partsForPattern only fires when the target after the preposition is a vehicle.
	partsForPattern = regexp.MustCompile(`\b(ricambi|ricambio|pezzi|parts|spare parts)\s+(per|for|x)\s+(` + alternation(vehicleNouns) + `)\b`)
)

var partsNouns = map[string]struct{}{
	"ricambi": {}, "ricambio": {}, "pezzi": {}, "cerchi": {}, "cerchioni": {},
	"pneumatici": {}, "gomme": {}, "paraurti": {}, "parafango": {}, "carburatore": {},
	"marmitta": {}, "fanale": {}, "fanali": {}, "specchietto": {}, "specchietti": {},
	"cruscotto": {}, "portiera": {}, "cofano": {}, "guarnizioni": {}, "frizione": {},
}

// Field aliases accepted from scrapers, in lookup order.
var (
	titleKeys       = []string{"title", "titolo", "name"}
	descriptionKeys = []string{"description", "descrizione", "desc"}
	priceKeys       = []string{"price", "prezzo"}
	urlKeys         = []string{"url", "link", "href"}
	imageKeys       = []string{"image", "img", "immagine", "image_url"}
	locationKeys    = []string{"location", "luogo", "city"}
	categoryKeys    = []string{"category", "categoria"}
	conditionKeys   = []string{"condition", "condizione", "stato"}
	idKeys          = []string{"id", "source_id", "item_id"}
	currencyKeys    = []string{"currency", "valuta"}
)

// Normalizer turns raw scraper records into canonical listings.
type Normalizer struct {
	classifier *classifier.Classifier
	graph      *synonyms.Graph
	blacklist  []string

	keywordLimit   int
	keywordMinLen  int
	minAcceptScore int

	now func() time.Time
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithKeywords sets the keyword cap (<= 0 means unlimited) and minimum length.
func WithKeywords(limit, minLen int) Option {
	return func(n *Normalizer) {
		n.keywordLimit = limit
		n.keywordMinLen = minLen
	}
}

// NewNormalizer wires the classifier, synonym graph and blacklist.
func NewNormalizer(c *classifier.Classifier, g *synonyms.Graph, blacklist []string, opts ...Option) *Normalizer {
	n := &Normalizer{
		classifier:     c,
		graph:          g,
		keywordMinLen:  2,
		minAcceptScore: c.Policy().MinAcceptScore,
		now:            time.Now,
	}
	for _, b := range blacklist {
		if p := textnorm.Phrase(b); p != "" {
			n.blacklist = append(n.blacklist, p)
		}
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize validates and enriches raw. Rejections wrap ErrRejected.
func (n *Normalizer) Normalize(raw models.RawListing, source string) (*models.Listing, error) {
	title := CleanText(raw.First(titleKeys...))
	if _, placeholder := placeholderTitles[textnorm.Normalize(title)]; title == "" || placeholder {
		return nil, ErrMissingTitle
	}
	url := raw.First(urlKeys...)
	if url == "" {
		return nil, ErrMissingURL
	}
	description := CleanText(raw.First(descriptionKeys...))

	text := strings.TrimSpace(title + " " + description)
	normalized := textnorm.Normalize(text)
	tokens := textnorm.Tokenize(text)

	for _, p := range n.blacklist {
		if textnorm.ContainsPhrase(tokens, p) {
			return nil, fmt.Errorf("%w: %q", ErrBlacklisted, p)
		}
	}
	if auctionPattern.MatchString(normalized) {
		return nil, ErrAuction
	}
	if isVehicleParts(normalized, tokens) {
		return nil, ErrVehicleParts
	}

	expanded := text
	if extra := n.graph.Expand(text); len(extra) > 0 {
		expanded += " " + strings.Join(extra, " ")
	}

	verdict := n.classifier.Classify(text, expanded)
	if verdict.Class == models.ClassNonVintage {
		return nil, fmt.Errorf("%w: %s (%d)", ErrNotVintage, strings.Join(verdict.Rules, ","), verdict.Score)
	}
	if verdict.Score < n.minAcceptScore {
		return nil, fmt.Errorf("%w: %d < %d", ErrBelowThreshold, verdict.Score, n.minAcceptScore)
	}

	priceRaw := priceString(raw)
	price := ParsePrice(priceRaw)
	if v, ok := raw.Value(priceKeys...); ok {
		price = priceFromValue(v, price)
	}

	categoryRaw := raw.First(categoryKeys...)
	now := n.now().UTC()

	l := &models.Listing{
		Source:       source,
		SourceID:     sourceID(raw, url),
		Title:        title,
		Description:  description,
		PriceRaw:     priceRaw,
		Price:        price,
		Currency:     currency(raw, priceRaw),
		URL:          url,
		Image:        raw.First(imageKeys...),
		Location:     raw.First(locationKeys...),
		CategoryRaw:  categoryRaw,
		Category:     category.Normalize(categoryRaw, text),
		Condition:    raw.First(conditionKeys...),
		Era:          classifier.DetectEra(expanded),
		VintageClass: verdict.Class,
		VintageScore: verdict.Score,
		Keywords:     ExtractKeywords(title, n.keywordLimit, n.keywordMinLen),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	l.Hash = ContentHash(source, title, price, url)

	for _, c := range verdict.Candidates {
		c.Source = source
		l.Candidates = append(l.Candidates, c)
	}
	return l, nil
}

// CleanText decodes HTML entities and squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	return strings.TrimSpace(whitespace.ReplaceAllString(decoded, " "))
}

// ExtractKeywords returns lowercase alphanumeric tokens of text in first-seen
// order, skipping tokens shorter than minLen or longer than MaxKeywordRunes.
func ExtractKeywords(text string, limit, minLen int) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range textnorm.Tokenize(text) {
		n := utf8.RuneCountInString(tok)
		if n < minLen || n > MaxKeywordRunes {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ContentHash fingerprints the identity fields of a listing.
func ContentHash(source, title string, price *float64, url string) string {
	priceKey := "none"
	if price != nil {
		priceKey = fmt.Sprintf("%.2f", *price)
	}
	key := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(source)),
		textnorm.Normalize(title),
		priceKey,
		strings.TrimSpace(url),
	}, "|")
	s := sha1.Sum([]byte(key))
	return hex.EncodeToString(s[:])
}

func isVehicleParts(normalized string, tokens []string) bool {
	if partsForPattern.MatchString(normalized) {
		return true
	}
	var vehicle, parts bool
	for _, tok := range tokens {
		if _, ok := vehicleNouns[tok]; ok {
			vehicle = true
		}
		if _, ok := partsNouns[tok]; ok {
			parts = true
		}
	}
	return vehicle && parts
}

func alternation(set map[string]struct{}) string {
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, regexp.QuoteMeta(w))
	}
	sort.Strings(words)
	return strings.Join(words, "|")
}

func sourceID(raw models.RawListing, url string) string {
	if id := raw.First(idKeys...); id != "" {
		return id
	}
	if v, ok := raw.Value(idKeys...); ok {
		return fmt.Sprint(v)
	}
	s := sha1.Sum([]byte(url))
	return hex.EncodeToString(s[:])[:12]
}

func currency(raw models.RawListing, priceRaw string) string {
	if c := raw.First(currencyKeys...); c != "" {
		return strings.ToUpper(c)
	}
	switch {
	case strings.Contains(priceRaw, "$"):
		return "USD"
	case strings.Contains(priceRaw, "£"):
		return "GBP"
	case strings.Contains(priceRaw, "CHF"):
		return "CHF"
	default:
		return DefaultCurrency
	}
}
