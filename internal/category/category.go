// Package category maps free-form marketplace categories onto the closed taxonomy.
package category

import (
	"regexp"
	"sort"
	"strings"
)

// Fallback is returned whenever nothing else resolves.
const Fallback = "vario"

var taxonomy = []string{
	"arredamento", "illuminazione", "audio", "elettronica", "fotografia",
	"telefonia", "giocattoli", "moda", "orologi", "libri_riviste", "musica",
	"ceramiche", "cucina", "veicoli", "biciclette", "arte", "collezionismo",
	Fallback,
}

// aliases maps cleaned free-form labels to taxonomy buckets.
var aliases = map[string]string{
	"mobili":               "arredamento",
	"mobili e arredamento": "arredamento",
	"arredo":               "arredamento",
	"furniture":            "arredamento",
	"casa e giardino":      "arredamento",
	"modernariato":         "arredamento",

	"lampade":   "illuminazione",
	"lampadari": "illuminazione",
	"luci":      "illuminazione",
	"lighting":  "illuminazione",

	"hi fi":          "audio",
	"hifi":           "audio",
	"stereo":         "audio",
	"audio video":    "audio",
	"impianti audio": "audio",

	"elettrodomestici": "elettronica",
	"informatica":      "elettronica",
	"computer":         "elettronica",
	"videogiochi":      "elettronica",
	"console":          "elettronica",
	"electronics":      "elettronica",

	"fotocamere":            "fotografia",
	"macchine fotografiche": "fotografia",
	"cameras":               "fotografia",
	"foto e video":          "fotografia",

	"telefoni":  "telefonia",
	"cellulari": "telefonia",

	"toys":       "giocattoli",
	"giochi":     "giocattoli",
	"modellismo": "giocattoli",

	"abbigliamento":             "moda",
	"abbigliamento e accessori": "moda",
	"clothing":                  "moda",
	"borse":                     "moda",
	"scarpe":                    "moda",

	"watches":            "orologi",
	"gioielli e orologi": "orologi",

	"libri":   "libri_riviste",
	"riviste": "libri_riviste",
	"fumetti": "libri_riviste",
	"books":   "libri_riviste",

	"dischi":             "musica",
	"vinili":             "musica",
	"strumenti musicali": "musica",
	"records":            "musica",

	"porcellane":   "ceramiche",
	"vetri":        "ceramiche",
	"oggettistica": "ceramiche",

	"casalinghi":       "cucina",
	"accessori cucina": "cucina",

	"auto":           "veicoli",
	"moto":           "veicoli",
	"auto d epoca":   "veicoli",
	"moto e scooter": "veicoli",
	"motori":         "veicoli",

	"bici":                   "biciclette",
	"cicli":                  "biciclette",
	"biciclette e accessori": "biciclette",
	"bicycles":               "biciclette",

	"quadri":       "arte",
	"dipinti":      "arte",
	"sculture":     "arte",
	"antiquariato": "arte",

	"collezionismo e hobby": "collezionismo",
	"francobolli":           "collezionismo",
	"monete":                "collezionismo",
	"cartoline":             "collezionismo",

	"altro": Fallback,
	"varie": Fallback,
	"other": Fallback,
}

type bucketKeywords struct {
	bucket   string
	keywords map[string]struct{}
}

// keywordBuckets are tried in order; the first bucket whose keywords intersect wins.
var keywordBuckets = []bucketKeywords{
	bucket("veicoli", "auto", "moto", "vespa", "lambretta", "fiat", "scooter", "ciclomotore", "maggiolino", "alfa", "lancia", "motorino"),
	bucket("biciclette", "bici", "bicicletta", "biciclette", "telaio", "campagnolo", "graziella", "velocipede"),
	bucket("telefonia", "telefono", "telefoni", "bachelite", "cornetta", "sip", "gettoni", "cellulare"),
	bucket("fotografia", "fotocamera", "macchina fotografica", "obiettivo", "polaroid", "reflex", "leica", "rolleiflex", "pellicola"),
	bucket("audio", "radio", "giradischi", "stereo", "amplificatore", "casse", "valvole", "registratore", "mangianastri", "juke", "jukebox", "grammofono"),
	bucket("musica", "vinile", "vinili", "disco", "dischi", "lp", "45", "giri", "chitarra", "musicassetta"),
	bucket("elettronica", "televisore", "tv", "computer", "console", "calcolatrice", "commodore", "atari", "macchina da scrivere", "olivetti"),
	bucket("illuminazione", "lampada", "lampade", "lampadario", "abat", "applique", "plafoniera", "lume"),
	bucket("arredamento", "sedia", "sedie", "tavolo", "poltrona", "divano", "credenza", "comò", "armadio", "mobile", "libreria", "specchio"),
	bucket("orologi", "orologio", "cronografo", "sveglia", "pendolo"),
	bucket("moda", "giacca", "borsa", "vestito", "abito", "scarpe", "occhiali", "cappello", "jeans", "pelliccia"),
	bucket("giocattoli", "giocattolo", "bambola", "trenino", "lego", "meccano", "peluche", "soldatini", "latta"),
	bucket("libri_riviste", "libro", "libri", "rivista", "riviste", "fumetto", "fumetti", "enciclopedia", "manifesto"),
	bucket("ceramiche", "ceramica", "porcellana", "vaso", "murano", "vetro", "cristallo", "maiolica"),
	bucket("cucina", "caffettiera", "moka", "pentola", "bilancia", "servizio", "piatti", "bicchieri", "tazzine"),
	bucket("arte", "quadro", "dipinto", "stampa", "scultura", "litografia", "cornice", "acquerello"),
	bucket("collezionismo", "francobollo", "moneta", "cartolina", "figurine", "medaglia", "insegna", "targa"),
}

func bucket(name string, keywords ...string) bucketKeywords {
	set := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		set[k] = struct{}{}
	}
	return bucketKeywords{bucket: name, keywords: set}
}

var (
	separators  = regexp.MustCompile(`[_\-/&,.+|:;]+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

	// aliasKeys is sorted longest first so the most specific alias wins substring matching.
	aliasKeys = sortedAliasKeys()
)

func sortedAliasKeys() []string {
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) == len(keys[j]) {
			return keys[i] < keys[j]
		}
		return len(keys[i]) > len(keys[j])
	})
	return keys
}

// Taxonomy returns a copy of the closed category set.
func Taxonomy() []string {
	out := make([]string, len(taxonomy))
	copy(out, taxonomy)
	return out
}

// Valid reports whether c is a taxonomy member.
func Valid(c string) bool {
	for _, t := range taxonomy {
		if t == c {
			return true
		}
	}
	return false
}

// Clean lowercases, turns separators into spaces, drops punctuation and
// squeezes whitespace.
func Clean(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("’", " ", "'", " ").Replace(s)
	s = separators.ReplaceAllString(s, " ")
	s = punctuation.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// Normalize resolves a raw category (plus a free-text hint such as the
// listing title) to a taxonomy member. It never fails.
func Normalize(raw, hint string) string {
	cleaned := Clean(raw)

	if cleaned != "" {
		// Fallback-valued matches still give the keyword blob a chance.
		underscored := strings.ReplaceAll(cleaned, " ", "_")
		if Valid(underscored) && underscored != Fallback {
			return underscored
		}
		if b, ok := aliases[cleaned]; ok && b != Fallback {
			return b
		}
		padded := " " + cleaned + " "
		for _, alias := range aliasKeys {
			if aliases[alias] == Fallback {
				continue
			}
			if strings.Contains(padded, " "+alias+" ") {
				return aliases[alias]
			}
		}
	}

	blob := strings.TrimSpace(cleaned + " " + Clean(hint))
	if blob == "" {
		return Fallback
	}
	tokens := strings.Fields(blob)
	padded := " " + blob + " "
	for _, b := range keywordBuckets {
		for kw := range b.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(padded, " "+kw+" ") {
					return b.bucket
				}
				continue
			}
			for _, tok := range tokens {
				if tok == kw {
					return b.bucket
				}
			}
		}
	}

	return Fallback
}
