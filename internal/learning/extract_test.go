package learning_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/learning"
)

var (
	curated = []string{"iPhone", "Smart TV", "xiaomi"}
	vintage = []string{"radio", "giradischi", "a valvole"}
)

func TestExtract(t *testing.T) {
	ex := learning.NewExtractor(curated, vintage)

	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{name: "phone model", title: "iPhone 12 Pro Max 128GB", want: []string{"128gb", "iphone", "iphone 12"}},
		{name: "car model number", title: "BMW 320d Touring", want: []string{"320d"}},
		{name: "tv", title: "Smart TV Samsung 4K", want: []string{"4k", "smart tv"}},
		{name: "engine code", title: "Golf 7 2.0 TDI", want: []string{"2 0 tdi", "golf 7"}},
		{name: "galaxy", title: "Samsung Galaxy S21 Ultra", want: []string{"galaxy s21", "samsung galaxy"}},
		{name: "historic brand and vintage words", title: "Radio Grundig a valvole", want: []string{}},
		{name: "bare numbers skipped", title: "Fiat 500 anni 60", want: []string{}},
		{name: "noise words skipped", title: "Diesel turbo sport", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ex.Extract(tt.title))
		})
	}
}

func TestIsCurated(t *testing.T) {
	ex := learning.NewExtractor(curated, vintage)
	require.True(t, ex.IsCurated("smart-tv"))
	require.True(t, ex.IsCurated("IPHONE"))
	require.False(t, ex.IsCurated("iphone 12"))
}
