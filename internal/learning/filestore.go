package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

// LockRetryDelay is the polling interval while waiting for the file lock.
const LockRetryDelay = 25 * time.Millisecond

// lockedFile serializes read-modify-write cycles on one JSON file, both
// within the process (mutex) and across processes (advisory lock file).
type lockedFile struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
	log  *slog.Logger
}

func newLockedFile(path string, log *slog.Logger) *lockedFile {
	if log == nil {
		log = logger.Discard()
	}
	return &lockedFile{path: path, lock: flock.New(path + ".lock"), log: log}
}

// update loads the file into v, runs fn and writes v back when fn reports a change.
func (f *lockedFile) update(ctx context.Context, v any, fn func() bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	locked, err := f.lock.TryLockContext(ctx, LockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", f.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", f.path)
	}
	defer f.lock.Unlock()

	f.load(v)
	if !fn() {
		return nil
	}
	return f.save(v)
}

// read loads the file into v under a shared lock.
func (f *lockedFile) read(ctx context.Context, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	locked, err := f.lock.TryRLockContext(ctx, LockRetryDelay)
	if err != nil {
		return fmt.Errorf("rlock %s: %w", f.path, err)
	}
	if !locked {
		return fmt.Errorf("rlock %s: not acquired", f.path)
	}
	defer f.lock.Unlock()

	f.load(v)
	return nil
}

// load leaves v untouched when the file is missing or unreadable.
func (f *lockedFile) load(v any) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		f.log.Warn("read state file, starting empty", slog.String("path", f.path), slog.Any("err", err))
		return
	}
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		f.log.Warn("corrupt state file, starting empty", slog.String("path", f.path), slog.Any("err", err))
	}
}

// save writes to a temp file in the same directory and renames it into place.
func (f *lockedFile) save(v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

type termState struct {
	Phrases []string `json:"phrases"`
	Entries []Entry  `json:"entries"`
}

// FileTermStore keeps learned phrases in a single JSON document.
type FileTermStore struct {
	file *lockedFile
}

// NewFileTermStore returns a store backed by path. The file is created on
// the first write.
func NewFileTermStore(path string, log *slog.Logger) *FileTermStore {
	return &FileTermStore{file: newLockedFile(path, log)}
}

func (s *FileTermStore) Phrases(ctx context.Context) ([]string, error) {
	var st termState
	if err := s.file.read(ctx, &st); err != nil {
		return nil, err
	}
	return textnorm.Unique(st.Phrases), nil
}

func (s *FileTermStore) Record(ctx context.Context, phrases []string, entry Entry) ([]string, error) {
	var added []string
	var st termState
	err := s.file.update(ctx, &st, func() bool {
		have := make(map[string]struct{}, len(st.Phrases))
		for _, p := range st.Phrases {
			have[p] = struct{}{}
		}
		for _, p := range phrases {
			p = textnorm.Phrase(p)
			if p == "" {
				continue
			}
			if _, ok := have[p]; ok {
				continue
			}
			have[p] = struct{}{}
			st.Phrases = append(st.Phrases, p)
			added = append(added, p)
		}
		if st.Phrases == nil {
			st.Phrases = []string{}
		}
		st.Entries = append(st.Entries, entry)
		return true
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

type queueState struct {
	Candidates []models.Candidate `json:"candidates"`
}

// FileQueue keeps pending candidates in a JSON document, one per term.
type FileQueue struct {
	file *lockedFile
}

// NewFileQueue returns a queue backed by path.
func NewFileQueue(path string, log *slog.Logger) *FileQueue {
	return &FileQueue{file: newLockedFile(path, log)}
}

func (q *FileQueue) Enqueue(ctx context.Context, candidates []models.Candidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	var st queueState
	n := 0
	err := q.file.update(ctx, &st, func() bool {
		have := make(map[string]struct{}, len(st.Candidates))
		for _, c := range st.Candidates {
			have[c.Term] = struct{}{}
		}
		for _, c := range candidates {
			if c.Term == "" {
				continue
			}
			if _, ok := have[c.Term]; ok {
				continue
			}
			have[c.Term] = struct{}{}
			st.Candidates = append(st.Candidates, c)
			n++
		}
		return n > 0
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (q *FileQueue) Pending(ctx context.Context) ([]models.Candidate, error) {
	var st queueState
	if err := q.file.read(ctx, &st); err != nil {
		return nil, err
	}
	sortCandidates(st.Candidates)
	return st.Candidates, nil
}

func sortCandidates(cs []models.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].SeenAt.Equal(cs[j].SeenAt) {
			return cs[i].SeenAt.Before(cs[j].SeenAt)
		}
		return cs[i].Term < cs[j].Term
	})
}
