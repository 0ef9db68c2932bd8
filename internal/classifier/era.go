package classifier

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

var (
	decadeDigits = regexp.MustCompile(`\banni\s?'?\s?([2-9]0)\b`)
	decadeWords  = regexp.MustCompile(`\banni\s(venti|trenta|quaranta|cinquanta|sessanta|settanta|ottanta|novanta)\b`)
	decadeShort  = regexp.MustCompile(`\b(?:19)?([2-9]0)'?s\b`)
)

var decadeNames = map[string]int{
	"venti": 20, "trenta": 30, "quaranta": 40, "cinquanta": 50,
	"sessanta": 60, "settanta": 70, "ottanta": 80, "novanta": 90,
}

// DetectEra maps text to a decade bucket. An explicit historical year wins
// over decade phrases; anything else is models.EraGeneric.
func DetectEra(expanded string) string {
	text := textnorm.Normalize(expanded)
	if text == "" {
		return models.EraGeneric
	}

	for _, m := range yearToken.FindAllStringSubmatch(text, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil || year < HistoricalYearFrom || year > HistoricalYearTo {
			continue
		}
		return decadeBucket(year % 100 / 10 * 10)
	}

	if m := decadeDigits.FindStringSubmatch(text); m != nil {
		d, _ := strconv.Atoi(m[1])
		return decadeBucket(d)
	}
	if m := decadeWords.FindStringSubmatch(text); m != nil {
		return decadeBucket(decadeNames[m[1]])
	}
	if m := decadeShort.FindStringSubmatch(text); m != nil {
		d, _ := strconv.Atoi(m[1])
		return decadeBucket(d)
	}
	return models.EraGeneric
}

func decadeBucket(decade int) string {
	era := fmt.Sprintf("anni_%d", decade)
	if !models.ValidEra(era) {
		return models.EraGeneric
	}
	return era
}
