// Package learning grows the modern-term vocabulary from user feedback and
// queues ambiguous classifier terms for review.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

// Triggers recorded on every entry.
const (
	TriggerRemoval = "removal"
	TriggerClick   = "click"
)

// ErrEmptyTitle is returned when feedback carries no usable title.
var ErrEmptyTitle = errors.New("learning: empty title")

// Entry is one audit record of a learning event.
type Entry struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Query    string    `json:"query,omitempty"`
	Detected []string  `json:"detected"`
	Trigger  string    `json:"trigger"`
	When     time.Time `json:"when"`
}

// TermStore persists learned phrases and their audit trail.
type TermStore interface {
	Phrases(ctx context.Context) ([]string, error)
	// Record appends entry and adds phrases not already present, returning
	// only the newly added ones. Concurrent calls must not lose updates.
	Record(ctx context.Context, phrases []string, entry Entry) ([]string, error)
}

// CandidateQueue collects unknown terms for later review.
type CandidateQueue interface {
	// Enqueue stores candidates whose term is not queued yet and returns
	// how many were new.
	Enqueue(ctx context.Context, candidates []models.Candidate) (int, error)
	Pending(ctx context.Context) ([]models.Candidate, error)
}

// Observer receives the number of phrases each event added.
type Observer interface {
	ObserveLearned(trigger string, added int)
}

// Learner turns removal and click feedback into learned modern phrases.
type Learner struct {
	store     TermStore
	extractor *Extractor
	log       *slog.Logger
	observer  Observer
	now       func() time.Time
	onUpdate  func([]string)
}

// Option customizes a Learner.
type Option func(*Learner)

// WithClock overrides the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Learner) { l.now = now }
}

// WithObserver attaches a metrics observer.
func WithObserver(obs Observer) Option {
	return func(l *Learner) { l.observer = obs }
}

// WithUpdateHook is called with the full phrase set after every event that
// added at least one phrase, so a classifier can pick it up in-process.
func WithUpdateHook(fn func([]string)) Option {
	return func(l *Learner) { l.onUpdate = fn }
}

// NewLearner wires a store and extractor. A nil logger discards output.
func NewLearner(store TermStore, extractor *Extractor, log *slog.Logger, opts ...Option) *Learner {
	if log == nil {
		log = logger.Discard()
	}
	l := &Learner{store: store, extractor: extractor, log: log, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Phrases returns the learned phrase set.
func (l *Learner) Phrases(ctx context.Context) ([]string, error) {
	return l.store.Phrases(ctx)
}

// OnRemoval learns from a listing an operator flagged as not vintage. When no
// modern term is detected the whole normalized title becomes the phrase.
func (l *Learner) OnRemoval(ctx context.Context, title string) ([]string, error) {
	return l.learn(ctx, TriggerRemoval, "", title)
}

// OnClick learns from a clicked result, with the same full-title fallback
// as OnRemoval.
func (l *Learner) OnClick(ctx context.Context, query, title string) ([]string, error) {
	return l.learn(ctx, TriggerClick, textnorm.Normalize(query), title)
}

func (l *Learner) learn(ctx context.Context, trigger, query, title string) ([]string, error) {
	phrase := textnorm.Phrase(title)
	if phrase == "" {
		return nil, ErrEmptyTitle
	}

	detected := l.extractor.Extract(title)
	var phrases []string
	for _, d := range detected {
		if !l.extractor.IsCurated(d) {
			phrases = append(phrases, d)
		}
	}
	if len(detected) == 0 {
		detected = []string{FallbackDetected}
		if !l.extractor.IsCurated(phrase) {
			phrases = []string{phrase}
		}
	}

	entry := Entry{
		ID:       uuid.NewString(),
		Title:    title,
		Query:    query,
		Detected: detected,
		Trigger:  trigger,
		When:     l.now().UTC(),
	}
	added, err := l.store.Record(ctx, phrases, entry)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", trigger, err)
	}

	if l.observer != nil {
		l.observer.ObserveLearned(trigger, len(added))
	}
	l.log.Info("learned modern terms",
		slog.String("trigger", trigger),
		slog.Any("detected", detected),
		slog.Int("added", len(added)),
	)

	if len(added) > 0 && l.onUpdate != nil {
		all, err := l.store.Phrases(ctx)
		if err != nil {
			l.log.Warn("reload learned phrases", slog.Any("err", err))
		} else {
			l.onUpdate(all)
		}
	}
	return added, nil
}
