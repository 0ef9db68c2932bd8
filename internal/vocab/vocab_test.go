package vocab_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/vocab"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadSynonymsJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "synonyms.json", `{"radio vintage": ["radio d'epoca", "radio a valvole"]}`)

	got := vocab.LoadSynonyms(path, nil)
	require.Equal(t, map[string][]string{"radio vintage": {"radio d'epoca", "radio a valvole"}}, got)
}

func TestLoadListCleansEntries(t *testing.T) {
	path := writeFile(t, t.TempDir(), "list.yaml", "- Bachelite\n- bachelite\n- '  '\n- Valvole\n")

	require.Equal(t, []string{"bachelite", "valvole"}, vocab.LoadList(path, nil))
}

func TestLoadDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	corrupt := writeFile(t, dir, "broken.json", `{"radio": [`)

	require.NotNil(t, vocab.LoadList(filepath.Join(dir, "missing.json"), nil))
	require.Empty(t, vocab.LoadList(filepath.Join(dir, "missing.json"), nil))
	require.Empty(t, vocab.LoadSynonyms(corrupt, nil))
	require.Empty(t, vocab.LoadGroups(corrupt, nil))
}

func TestLoadBundleAndFlatten(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, vocab.VintageFile, `["radio", "juke box"]`)
	writeFile(t, dir, vocab.ModernFile, `{"modern_devices": ["iPhone", "smart tv"], "modern_brands": ["xiaomi", "iphone"]}`)

	b := vocab.Load(dir, nil)
	require.Equal(t, []string{"radio", "juke box"}, b.Vintage)
	require.Empty(t, b.Blacklist)
	require.Empty(t, b.Synonyms)
	require.Equal(t, []string{"xiaomi", "iphone", "smart tv"}, vocab.Flatten(b.Modern))
}

func TestShippedDataParses(t *testing.T) {
	b := vocab.Load(filepath.Join("..", "..", "data"), nil)

	require.Contains(t, b.Synonyms, "radio vintage")
	require.NotEmpty(t, b.Vintage)
	require.NotEmpty(t, b.Blacklist)
	require.Contains(t, vocab.Flatten(b.Modern), "iphone")
}
