package domain

import (
	"regexp"
	"strings"
	"time"
)

// Classifier normaliza actividad cruda en una Identity canónica.
// Se aísla detrás de una interface para poder testear el registry con
// reglas de matching controladas.
type Classifier interface {
	Classify(a WalletActivity) Identity
}

// TextClassifier es el classifier de producción: heurísticas de regex
// sobre slug y título para detectar asset, timeframe y ventana horaria.
type TextClassifier struct {
	loc *time.Location
}

// NewTextClassifier crea el classifier con la zona horaria de los mercados
// UpDown (ET). Si la tz database no está disponible usa un offset fijo.
func NewTextClassifier() *TextClassifier {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*3600)
	}
	return &TextClassifier{loc: loc}
}

var assetPatterns = []struct {
	re     *regexp.Regexp
	symbol string
}{
	{regexp.MustCompile(`(?i)\b(btc|bitcoin)\b`), "BTC"},
	{regexp.MustCompile(`(?i)\b(eth|ethereum)\b`), "ETH"},
	{regexp.MustCompile(`(?i)\b(sol|solana)\b`), "SOL"},
	{regexp.MustCompile(`(?i)\b(xrp|ripple)\b`), "XRP"},
}

var (
	// "15 min", "15-minute", "15min"
	fifteenMinRe = regexp.MustCompile(`(?i)\b15[ -]?min(ute)?s?\b`)
	// "3:45pm–4:00pm ET", "10:15-10:30 ET" — rango horario explícito
	timeRangeRe = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*(am|pm)?\s*[–—-]\s*(\d{1,2}):(\d{2})\s*(am|pm)?(\s*ET)?`)
	// "4PM ET" suelto sin rango → mercado horario
	hourlyRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\s*ET\b`)
)

// Classify implementa el algoritmo de resolución de identidad:
//  1. detectar asset y timeframe en slug+título
//  2. si hay condition id, la key es CID-<id> (única por instancia);
//     si no, la key textual <ASSET>-UpDown-<TF>; si no, el slug; si no, Unknown
//  3. los tipos rotativos reconocidos llevan RotatingType para que el
//     registry pueda supersede-ar la instancia anterior del mismo tipo
func (c *TextClassifier) Classify(a WalletActivity) Identity {
	text := strings.TrimSpace(a.Title + " " + a.Slug)

	var id Identity
	for _, p := range assetPatterns {
		if p.re.MatchString(text) {
			id.Asset = p.symbol
			break
		}
	}

	id.TimeframeMin = detectTimeframe(text)
	if id.Asset != "" && id.TimeframeMin > 0 {
		id.RotatingType = RotatingTypeKey(id.Asset, id.TimeframeMin)
	}

	id.BaseName = strings.TrimSpace(strings.Trim(timeRangeRe.ReplaceAllString(a.Title, ""), " -–—,"))
	id.WindowStart, id.WindowEnd = c.parseWindow(a.Title, a.Timestamp)

	switch {
	case a.ConditionID != "":
		id.Key = ConditionKey(a.ConditionID)
	case id.RotatingType != "":
		id.Key = MarketKey(id.RotatingType)
	case a.Slug != "":
		id.Key = MarketKey("SLUG-" + a.Slug)
	default:
		id.Key = UnknownKey
	}

	return id
}

// detectTimeframe devuelve los minutos de la ventana del mercado:
// token "15 min" explícito, rango HH:MM–HH:MM (span del rango, mínimo 15),
// o un "HPM ET" suelto que implica ventana horaria. 0 si no hay señal.
func detectTimeframe(text string) int {
	if fifteenMinRe.MatchString(text) {
		return 15
	}
	if m := timeRangeRe.FindStringSubmatch(text); m != nil {
		span := rangeSpanMinutes(m)
		if span > 0 && span <= 15 {
			return 15
		}
		if span > 0 {
			return span
		}
		return 15
	}
	if hourlyRe.MatchString(text) {
		return 60
	}
	return 0
}

// rangeSpanMinutes calcula los minutos entre los dos extremos del rango.
func rangeSpanMinutes(m []string) int {
	h1, m1 := atoi(m[1]), atoi(m[2])
	h2, m2 := atoi(m[4]), atoi(m[5])
	ap1, ap2 := strings.ToLower(m[3]), strings.ToLower(m[6])
	if ap1 == "" {
		ap1 = ap2
	}
	start := clockMinutes(h1, m1, ap1)
	end := clockMinutes(h2, m2, ap2)
	span := end - start
	if span < 0 {
		span += 24 * 60
	}
	return span
}

// parseWindow convierte el rango del título en timestamps absolutos usando
// la fecha del timestamp de la actividad en ET. Devuelve ceros si no hay rango.
func (c *TextClassifier) parseWindow(title string, ref time.Time) (start, end time.Time) {
	m := timeRangeRe.FindStringSubmatch(title)
	if m == nil || ref.IsZero() {
		return time.Time{}, time.Time{}
	}

	h1, m1 := atoi(m[1]), atoi(m[2])
	h2, m2 := atoi(m[4]), atoi(m[5])
	ap1, ap2 := strings.ToLower(m[3]), strings.ToLower(m[6])
	if ap1 == "" {
		ap1 = ap2
	}

	day := ref.In(c.loc)
	base := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.loc)
	start = base.Add(time.Duration(clockMinutes(h1, m1, ap1)) * time.Minute)
	end = base.Add(time.Duration(clockMinutes(h2, m2, ap2)) * time.Minute)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}

// clockMinutes pasa una hora de reloj (12h o 24h) a minutos desde medianoche.
func clockMinutes(h, min int, ampm string) int {
	switch ampm {
	case "pm":
		if h != 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	return h*60 + min
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// ResolveOutcome determina el lado UP/DOWN de una actividad: primero el
// outcomeIndex explícito (0 = UP), después keywords en el texto del outcome,
// y UP por defecto si es ambiguo.
func ResolveOutcome(a WalletActivity) Outcome {
	switch a.OutcomeIndex {
	case 0:
		return OutcomeUp
	case 1:
		return OutcomeDown
	}

	text := strings.ToLower(a.OutcomeText)
	switch {
	case containsAny(text, "up", "higher", "yes"):
		return OutcomeUp
	case containsAny(text, "down", "lower", "no"):
		return OutcomeDown
	}
	return OutcomeUp
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
