package app

import (
	"errors"
	"math"
	"net/url"
	"strings"
	"time"
)

// IsoLayout matches the millisecond ISO-8601 timestamps the dashboard writes.
const IsoLayout = "2006-01-02T15:04:05.000Z07:00"

func DoEvery(d time.Duration, stop <-chan struct{}, f func(time.Time)) { //Simple Task Repeater
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case x := <-t.C:
			f(x)
		case <-stop:
			return
		}
	}
}

func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

func NowIso() string {
	return FormatIso(time.Now())
}

func FormatIso(t time.Time) string {
	return t.UTC().Format(IsoLayout)
}

// MemberSince renders a stored join timestamp as a short date, "unknown" when unparseable.
func MemberSince(iso string) string {
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return "unknown"
	}
	return t.Format("02.01.2006")
}

func RemoveTrailingSlash(s string) string {
	return strings.TrimRight(s, "/")
}

// Truncate cuts s to at most size runes.
func Truncate(s string, size int) string {
	r := []rune(s)
	if size >= len(r) {
		return s
	}
	return string(r[:size])
}

// StripURL drops the request URL from a transport error. Request URLs carry
// credentials (bot tokens, database auth) that must not reach logs or callers.
func StripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// TruncInt converts f to an integer, dropping the fraction and saturating at
// the int64 bounds. NaN converts to 0.
func TruncInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Trunc(f))
}
