package prompt

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// TemporalContext is a snapshot of "now" for one prompt build.
type TemporalContext struct {
	Now       time.Time
	Timezone  string
	Locale    string
	Formatted Formatted
}

type Formatted struct {
	Date      string // long form, localized
	ISODate   string // 2006-01-02
	Time      string // 15:04
	DayOfWeek string // localized
}

// TemporalProvider creates temporal snapshots, falling back to its defaults
// when the user's timezone or locale is missing or invalid.
type TemporalProvider struct {
	DefaultTimezone string
	DefaultLocale   string
	Now             func() time.Time
}

// Create snapshots the current time. It is meant to be called once per turn.
func (p TemporalProvider) Create(timezone, locale string) TemporalContext {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return NewTemporalContext(now(), timezone, locale, p.DefaultTimezone, p.DefaultLocale)
}

// NewTemporalContext is the pure form of Create.
func NewTemporalContext(now time.Time, timezone, locale, defaultTimezone, defaultLocale string) TemporalContext {
	loc, tzName := resolveLocation(timezone, defaultTimezone)
	localeName := resolveLocale(locale, defaultLocale)
	local := now.In(loc)

	return TemporalContext{
		Now:       local,
		Timezone:  tzName,
		Locale:    localeName,
		Formatted: formatDate(local, localeName),
	}
}

// Location returns the snapshot's timezone as a *time.Location.
func (t TemporalContext) Location() *time.Location {
	return t.Now.Location()
}

func resolveLocation(name, fallback string) (*time.Location, string) {
	for _, candidate := range []string{name, fallback} {
		if candidate == "" {
			continue
		}
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc, candidate
		}
	}
	return time.UTC, "UTC"
}

func resolveLocale(name, fallback string) string {
	for _, candidate := range []string{name, fallback} {
		if candidate == "" {
			continue
		}
		if tag, err := language.Parse(candidate); err == nil {
			return tag.String()
		}
	}
	return "es"
}

// IsEnglish reports whether a locale or language code is English.
func IsEnglish(code string) bool {
	if code == "" {
		return false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base.String() == "en"
}

var (
	esWeekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	esMonths   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
		"agosto", "septiembre", "octubre", "noviembre", "diciembre"}
)

func formatDate(t time.Time, locale string) Formatted {
	f := Formatted{ISODate: t.Format(time.DateOnly), Time: t.Format("15:04")}
	if IsEnglish(locale) {
		f.Date = t.Format("January 2, 2006")
		f.DayOfWeek = t.Weekday().String()
		return f
	}
	f.Date = fmt.Sprintf("%d de %s de %d", t.Day(), esMonths[t.Month()-1], t.Year())
	f.DayOfWeek = esWeekdays[t.Weekday()]
	return f
}
