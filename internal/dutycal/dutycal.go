// Package dutycal maps instants to organizational duty dates.
//
// All users share one reference time zone, so a duty date never depends on
// where a device is or what its clock is set to.
package dutycal

import (
	"strings"
	"time"

	"ATLAS-backend/internal/platform/apperr"
)

const Layout = "2006-01-02"

var ErrInvalidDateKey = apperr.Invalid("INVALID_DATE_KEY", "date must be YYYY-MM-DD")

// DateKey は YYYY-MM-DD。辞書順 = 時系列順。
type DateKey string

func (k DateKey) String() string { return string(k) }

// ParseDateKey は厳密に YYYY-MM-DD のみ受け付ける。
func ParseDateKey(s string) (DateKey, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(Layout, s)
	if err != nil || t.Format(Layout) != s {
		return "", ErrInvalidDateKey.WithMessage("invalid date key %q: want YYYY-MM-DD", s)
	}
	return DateKey(s), nil
}

// civil は key をタイムゾーン無しの暦日として扱う（UTC 0 時に置くだけ）。
func (k DateKey) civil() time.Time {
	t, _ := time.Parse(Layout, string(k))
	return t
}

// Shift moves the key by deltaDays on the calendar. k must be a valid key.
func (k DateKey) Shift(deltaDays int) DateKey {
	return DateKey(k.civil().AddDate(0, 0, deltaDays).Format(Layout))
}

// DaysUntil returns the number of calendar days from k to other.
func (k DateKey) DaysUntil(other DateKey) int {
	return int(other.civil().Sub(k.civil()).Hours() / 24)
}

func Compare(a, b DateKey) int {
	return strings.Compare(string(a), string(b))
}

type Calendar struct {
	loc *time.Location
}

func New(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Load は IANA 名からカレンダーを作る（例: "Asia/Karachi"）。
func Load(name string) (Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, err
	}
	return New(loc), nil
}

func (c Calendar) Location() *time.Location { return c.loc }

func (c Calendar) DutyDateOf(t time.Time) DateKey {
	return DateKey(t.In(c.loc).Format(Layout))
}

// DayBounds returns [start, end) of the duty date in the reference zone.
// end is the next local midnight, so DST days are 23h or 25h long.
func (c Calendar) DayBounds(k DateKey) (time.Time, time.Time) {
	d := k.civil()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
	end := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, c.loc)
	return start, end
}

// WithinLookback reports whether k is today or one of the preceding
// lookbackDays duty dates. Future dates are never within.
func (c Calendar) WithinLookback(k DateKey, now time.Time, lookbackDays int) bool {
	d := k.DaysUntil(c.DutyDateOf(now))
	return d >= 0 && d <= lookbackDays
}
