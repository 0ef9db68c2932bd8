// Package vocab loads the static vocabulary files shared by classification
// and search. JSON files are decoded with the YAML decoder, so either format
// is accepted.
package vocab

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SynonymsFile  = "synonyms.json"
	VintageFile   = "vintage_keywords.json"
	BlacklistFile = "blacklist.json"
	ModernFile    = "modern_keywords_extended.json"
)

// Bundle groups every vocabulary the pipeline reads at startup.
type Bundle struct {
	Synonyms  map[string][]string
	Vintage   []string
	Blacklist []string
	Modern    map[string][]string
}

// Load reads the standard files from dir. Missing or unreadable files yield
// empty vocabularies.
func Load(dir string, log *slog.Logger) *Bundle {
	return &Bundle{
		Synonyms:  LoadSynonyms(filepath.Join(dir, SynonymsFile), log),
		Vintage:   LoadList(filepath.Join(dir, VintageFile), log),
		Blacklist: LoadList(filepath.Join(dir, BlacklistFile), log),
		Modern:    LoadGroups(filepath.Join(dir, ModernFile), log),
	}
}

// LoadSynonyms reads a phrase -> equivalent phrases mapping.
func LoadSynonyms(path string, log *slog.Logger) map[string][]string {
	out := make(map[string][]string)
	if err := decode(path, &out); err != nil {
		degrade(log, path, err)
		return map[string][]string{}
	}
	return out
}

// LoadList reads a flat list of terms, lowercased and deduplicated.
func LoadList(path string, log *slog.Logger) []string {
	var raw []string
	if err := decode(path, &raw); err != nil {
		degrade(log, path, err)
		return []string{}
	}
	return clean(raw)
}

// LoadGroups reads a group name -> terms mapping.
func LoadGroups(path string, log *slog.Logger) map[string][]string {
	out := make(map[string][]string)
	if err := decode(path, &out); err != nil {
		degrade(log, path, err)
		return map[string][]string{}
	}
	for group, terms := range out {
		out[group] = clean(terms)
	}
	return out
}

// Flatten merges every group into one deduplicated list, groups taken in
// name order.
func Flatten(groups map[string][]string) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []string
	for _, name := range names {
		all = append(all, groups[name]...)
	}
	return clean(all)
}

func decode(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func degrade(log *slog.Logger, path string, err error) {
	if log == nil {
		return
	}
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("vocabulary file missing, using empty set", slog.String("path", path))
		return
	}
	log.Warn("vocabulary file unreadable, using empty set", slog.String("path", path), slog.Any("err", err))
}

func clean(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
