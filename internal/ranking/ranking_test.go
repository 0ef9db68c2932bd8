package ranking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/ranking"
)

func TestRecencyBonusBreakpoints(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{name: "fresh", age: time.Minute, want: 10},
		{name: "exactly one day", age: day, want: 10},
		{name: "one second past one day", age: day + time.Second, want: 6},
		{name: "exactly three days", age: 3 * day, want: 6},
		{name: "one second past three days", age: 3*day + time.Second, want: 3},
		{name: "exactly seven days", age: 7 * day, want: 3},
		{name: "exactly fourteen days", age: 14 * day, want: 1},
		{name: "one second past fourteen days", age: 14*day + time.Second, want: 0},
		{name: "clock skew", age: -time.Hour, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ranking.RecencyBonus(tt.age, ranking.DefaultTiers))
		})
	}
}

func TestSortTiers(t *testing.T) {
	tiers := []ranking.Tier{{MaxAge: 72 * time.Hour, Bonus: 6}, {MaxAge: 24 * time.Hour, Bonus: 10}}
	ranking.SortTiers(tiers)
	require.Equal(t, 24*time.Hour, tiers[0].MaxAge)
}

func TestFinalScore(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	l := models.Listing{VintageScore: 3, Era: "anni_60", CreatedAt: now.Add(-48 * time.Hour)}

	require.Equal(t, 4.0, ranking.BaseRelevance(0, l))
	require.Equal(t, 2+3+1+6.0, ranking.FinalScore(2, l, now, ranking.DefaultTiers))

	l.Era = models.EraGeneric
	require.Equal(t, 3.0, ranking.BaseRelevance(0, l))
}

func scored(hash string, price *float64, score float64, created time.Time) models.ScoredListing {
	return models.ScoredListing{
		Listing: models.Listing{Hash: hash, Price: price, CreatedAt: created, UpdatedAt: created},
		Score:   score,
	}
}

func hashes(items []models.ScoredListing) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Hash)
	}
	return out
}

func TestSortModes(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p := func(f float64) *float64 { return &f }
	base := []models.ScoredListing{
		scored("c", nil, 5, t0.Add(3*time.Hour)),
		scored("a", p(30), 5, t0.Add(time.Hour)),
		scored("b", p(10), 9, t0.Add(2*time.Hour)),
		scored("d", p(10), 1, t0),
	}

	tests := []struct {
		mode models.SortMode
		want []string
	}{
		{mode: models.SortRelevance, want: []string{"b", "a", "c", "d"}},
		{mode: models.SortPriceAsc, want: []string{"b", "d", "a", "c"}},
		{mode: models.SortPriceDesc, want: []string{"a", "b", "d", "c"}},
		{mode: models.SortDate, want: []string{"c", "b", "a", "d"}},
		{mode: models.SortAdded, want: []string{"c", "b", "a", "d"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			items := append([]models.ScoredListing(nil), base...)
			ranking.Sort(items, tt.mode)
			require.Equal(t, tt.want, hashes(items))
		})
	}
}

func TestPage(t *testing.T) {
	items := []models.ScoredListing{scored("a", nil, 0, time.Time{}), scored("b", nil, 0, time.Time{}), scored("c", nil, 0, time.Time{})}

	require.Equal(t, []string{"a", "b"}, hashes(ranking.Page(items, 1, 2)))
	require.Equal(t, []string{"c"}, hashes(ranking.Page(items, 2, 2)))
	require.Empty(t, ranking.Page(items, 3, 2))
	require.Equal(t, []string{"a", "b"}, hashes(ranking.Page(items, 0, 2)))
}
