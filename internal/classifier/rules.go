package classifier

import "regexp"

// Built-in vocabularies. Entries are phrases compared on whole tokens.
var (
	coreVintage = []string{
		"radio a valvole", "grammofono", "giradischi", "fonovaligia", "juke box", "jukebox",
		"macchina da scrivere", "telefono a disco", "mangianastri", "walkman", "super 8",
		"polaroid", "flipper", "macchina per cucire", "sveglia meccanica", "lampada a olio",
		"proiettore", "moviola", "vinile", "musicassetta",
	}

	weakRetro = []string{
		"retro", "retrò", "stile vintage", "effetto vintage", "look vintage", "old style",
		"old school", "stile anni", "design retro", "ispirazione vintage",
	}

	vehicleVintage = []string{
		"auto d'epoca", "moto d'epoca", "auto storica", "vespa", "lambretta", "maggiolino",
		"fiat 500", "fiat 600", "topolino", "giulia", "fulvia", "iscritta asi", "targa oro",
		"ciao piaggio", "motom", "moto guzzi", "mini cooper", "duetto",
	}

	bicycleVintage = []string{
		"bici d'epoca", "bicicletta d'epoca", "eroica", "graziella", "legnano", "campagnolo",
		"freni a bacchetta", "telaio in acciaio", "columbus", "colnago", "cinelli",
		"bici da corsa vintage",
	}

	stopwords = map[string]struct{}{
		"della": {}, "delle": {}, "degli": {}, "dello": {}, "nella": {}, "nelle": {},
		"negli": {}, "nello": {}, "sono": {}, "come": {}, "anche": {}, "molto": {},
		"ottimo": {}, "ottima": {}, "ottime": {}, "ottimi": {}, "perfetto": {},
		"perfetta": {}, "perfette": {}, "perfetti": {}, "condizioni": {}, "stato": {},
		"vendo": {}, "vende": {}, "vendesi": {}, "prezzo": {}, "trattabile": {},
		"funzionante": {}, "funzionanti": {}, "usato": {}, "usata": {}, "nuovo": {},
		"nuova": {}, "bella": {}, "bello": {}, "bellissimo": {}, "bellissima": {},
		"originale": {}, "euro": {}, "spedizione": {}, "ritiro": {}, "zona": {},
		"info": {}, "contattare": {}, "privato": {}, "pezzo": {}, "questo": {},
		"questa": {}, "with": {}, "from": {}, "this": {}, "that": {},
	}
)

var (
	yearToken = regexp.MustCompile(`\b(\d{4})\b`)

	modernBicycle = []*regexp.Regexp{
		regexp.MustCompile(`\be-?bike\b`),
		regexp.MustCompile(`\bbici(cletta)? elettrica\b`),
		regexp.MustCompile(`\bpedalata assistita\b`),
		regexp.MustCompile(`\bfreni a disco\b`),
		regexp.MustCompile(`\btelaio (in )?carbonio\b`),
		regexp.MustCompile(`\bmtb\s?(27[.,]5|29)\b`),
		regexp.MustCompile(`\bshimano\s?(deore|slx|xt|xtr|ultegra|105|dura[- ]?ace)\b`),
	}

	modernElectronics = []*regexp.Regexp{
		regexp.MustCompile(`\biphone\s?(\d{1,2}|x|xr|xs|se)\b`),
		regexp.MustCompile(`\bsamsung\s?galaxy\b`),
		regexp.MustCompile(`\bgalaxy\s?(s|a|note)\d{1,2}\b`),
		regexp.MustCompile(`\bps[345]\b`),
		regexp.MustCompile(`\bxbox\s?(one|series|360)\b`),
		regexp.MustCompile(`\bnintendo\s?(switch|wii|ds)\b`),
		regexp.MustCompile(`\bsmart\s?tv\b`),
		regexp.MustCompile(`\b[48]k\b`),
		regexp.MustCompile(`\b(full|ultra)\s?hd\b`),
		regexp.MustCompile(`\b\d{2,4}\s?(gb|tb)\b`),
	}

	modernVehicle = []*regexp.Regexp{
		regexp.MustCompile(`\bgolf\s?(6|7|8|mk7|mk8)\b`),
		regexp.MustCompile(`\baudi\s?[aq]\d\b`),
		regexp.MustCompile(`\b[1-5]\d{2}[di]\b`),
		regexp.MustCompile(`\b\d\.\d\s?(tdi|tfsi|multijet|ecoboost|crdi)\b`),
		regexp.MustCompile(`\b(hybrid|ibrida|plug[- ]?in|electric|full electric)\b`),
		regexp.MustCompile(`\b(omologat[ao]|classe|norme|normativa)\s+euro\s?[56]\b`),
	}
)
