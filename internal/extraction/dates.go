package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// datePattern pairs a search expression with the layouts used to parse its
// matches. The pattern list below is ordered on purpose: unambiguous
// formats come before day/month-ambiguous ones, and the first pattern that
// both matches and parses wins. Do not reorder.
type datePattern struct {
	re      *regexp.Regexp
	layouts []string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`), []string{"2006-1-2"}},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), []string{"2/1/2006"}},
	{regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{4}\b`), []string{"2-1-2006"}},
	{regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`), []string{"2.1.2006"}},
	{regexp.MustCompile(`\b\d{1,2}\s+\p{L}+\s+\d{4}\b`), []string{"2 January 2006"}},
	{regexp.MustCompile(`\b\p{L}{4,}\s+\d{1,2},\s*\d{4}\b`), []string{"January 2, 2006"}},
	{regexp.MustCompile(`\b\p{L}{3}\s+\d{1,2},\s*\d{4}\b`), []string{"Jan 2, 2006"}},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2}\b`), []string{"2/1/06"}},
	{regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2}\b`), []string{"2-1-06"}},
	{regexp.MustCompile(`\b\d{8}\b`), []string{"20060102"}},
	{regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`), []string{"1/2/2006"}},
	{regexp.MustCompile(`\b\d{4}/\d{1,2}/\d{1,2}\b`), []string{"2006/1/2"}},
}

// contextWindow is how many characters around a context-hint match are
// searched before falling back to the whole text.
const contextWindow = 50

// DateExtractor finds calendar dates in free OCR text. Extraction is
// best-effort: a miss is reported through the bool return, never an error.
type DateExtractor struct {
	now func() time.Time
}

func NewDateExtractor() *DateExtractor {
	return &DateExtractor{now: time.Now}
}

// Extract returns the best-guess date found in text. When contextHint (a
// case-insensitive label alternation such as "due date|pay by") is given,
// the windows around hint matches are searched first; a hit there wins
// immediately. Otherwise the full ordered pattern scan runs over the whole
// text, and finally a natural-language fallback ("today", "3 days ago",
// "last month", ...). Every candidate passes the plausibility filter:
// dates more than 10 years back or more than a year ahead are discarded.
func (d *DateExtractor) Extract(text, contextHint string) (time.Time, bool) {
	if strings.TrimSpace(text) == "" {
		return time.Time{}, false
	}

	if contextHint != "" {
		if re, err := regexp.Compile(`(?i)` + contextHint); err == nil {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				// The window after the hint is the usual layout
				// ("Due date: ...") and is searched first; the window
				// before it covers right-aligned labels.
				after := text[loc[0]:min(loc[1]+contextWindow, len(text))]
				if t, ok := d.scanPatterns(after); ok {
					return t, true
				}
				before := text[max(loc[0]-contextWindow, 0):loc[1]]
				if t, ok := d.scanPatterns(before); ok {
					return t, true
				}
			}
		}
	}

	if t, ok := d.scanPatterns(text); ok {
		return t, true
	}
	return d.relativeDate(text)
}

// scanPatterns walks the ordered pattern list; within each pattern every
// textual match is tried until one parses to a plausible date.
func (d *DateExtractor) scanPatterns(text string) (time.Time, bool) {
	for _, p := range datePatterns {
		for _, candidate := range p.re.FindAllString(text, -1) {
			for _, layout := range p.layouts {
				t, err := parseLocalized(layout, candidate)
				if err != nil {
					continue
				}
				if d.plausible(t) {
					return t, true
				}
			}
		}
	}
	return time.Time{}, false
}

// plausible rejects parsed dates whose year drifts more than 10 years into
// the past or more than 1 year into the future. OCR misreads of a digit in
// the year tend to land far outside that range.
func (d *DateExtractor) plausible(t time.Time) bool {
	year := d.now().UTC().Year()
	return t.Year() >= year-10 && t.Year() <= year+1
}

// localeMonths maps non-English month names (and common abbreviations) to
// the English names Go's parser understands. Locales are tried in fixed
// order after the invariant parse fails.
var localeMonths = []map[string]string{
	{ // Spanish
		"enero": "January", "febrero": "February", "marzo": "March",
		"abril": "April", "mayo": "May", "junio": "June", "julio": "July",
		"agosto": "August", "septiembre": "September", "octubre": "October",
		"noviembre": "November", "diciembre": "December",
		"ene": "Jan", "abr": "Apr", "ago": "Aug", "dic": "Dec",
	},
	{ // French
		"janvier": "January", "février": "February", "fevrier": "February",
		"mars": "March", "avril": "April", "mai": "May", "juin": "June",
		"juillet": "July", "août": "August", "aout": "August",
		"septembre": "September", "octobre": "October",
		"novembre": "November", "décembre": "December", "decembre": "December",
	},
	{ // German
		"januar": "January", "februar": "February", "märz": "March",
		"maerz": "March", "april": "April", "juni": "June", "juli": "July",
		"oktober": "October", "dezember": "December",
	},
}

var reWord = regexp.MustCompile(`\p{L}+`)

// parseLocalized parses with the invariant (English) month names first and
// falls back to the fixed locale list, first locale that parses wins.
func parseLocalized(layout, value string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err == nil {
		return t, nil
	}
	for _, months := range localeMonths {
		translated := reWord.ReplaceAllStringFunc(value, func(w string) string {
			if en, ok := months[strings.ToLower(w)]; ok {
				return en
			}
			return w
		})
		if translated == value {
			continue
		}
		if t, err2 := time.Parse(layout, translated); err2 == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

var (
	reToday     = regexp.MustCompile(`(?i)\btoday\b`)
	reYesterday = regexp.MustCompile(`(?i)\byesterday\b`)
	reTomorrow  = regexp.MustCompile(`(?i)\btomorrow\b`)
	reDaysAgo   = regexp.MustCompile(`(?i)\b(\d+)\s+days?\s+ago\b`)
	reLastNext  = regexp.MustCompile(`(?i)\b(last|next)\s+month\b`)
	reMonthEdge = regexp.MustCompile(`(?i)\b(end|beginning)\s+of\s+(?:the\s+)?month\b`)
)

// relativeDate resolves natural-language references against the current
// UTC date.
func (d *DateExtractor) relativeDate(text string) (time.Time, bool) {
	now := d.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch {
	case reToday.MatchString(text):
		return today, true
	case reYesterday.MatchString(text):
		return today.AddDate(0, 0, -1), true
	case reTomorrow.MatchString(text):
		return today.AddDate(0, 0, 1), true
	}

	if m := reDaysAgo.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			t := today.AddDate(0, 0, -n)
			if d.plausible(t) {
				return t, true
			}
		}
	}

	if m := reLastNext.FindStringSubmatch(text); m != nil {
		if strings.EqualFold(m[1], "last") {
			return today.AddDate(0, -1, 0), true
		}
		return today.AddDate(0, 1, 0), true
	}

	if m := reMonthEdge.FindStringSubmatch(text); m != nil {
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		if strings.EqualFold(m[1], "end") {
			return first.AddDate(0, 1, -1), true
		}
		return first, true
	}

	return time.Time{}, false
}
