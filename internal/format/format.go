// Package format renders YouTube values for display: ISO-8601 durations,
// counts, dates and watch/embed URLs.
package format

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Date layouts used across pages.
const (
	ShortDate = "Jan 2, 2006"
	LongDate  = "January 2, 2006"
	Clock     = "3:04 PM"
	DateTime  = "Jan 2, 2006 3:04 PM"
)

var isoDuration = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// Duration turns an ISO-8601 video duration into a player-style clock:
// "PT1H2M3S" -> "1:02:03", "PT4M5S" -> "4:05", "PT9S" -> "0:09".
// Values that do not parse are returned unchanged.
func Duration(iso string) string {
	m := isoDuration.FindStringSubmatch(iso)
	if m == nil {
		return iso
	}
	hours, minutes, seconds := m[1], m[2], m[3]
	switch {
	case hours != "":
		return hours + ":" + pad2(minutes) + ":" + pad2(seconds)
	case minutes != "":
		return minutes + ":" + pad2(seconds)
	default:
		return "0:" + pad2(seconds)
	}
}

func pad2(s string) string {
	switch len(s) {
	case 0:
		return "00"
	case 1:
		return "0" + s
	default:
		return s
	}
}

// Count formats n with thousands separators.
func Count(n uint64) string {
	return humanize.Comma(int64(n))
}

// Plural returns "1 video" or "N videos".
func Plural(n int64, singular, plural string) string {
	word := plural
	if n == 1 {
		word = singular
	}
	return humanize.Comma(n) + " " + word
}

// Privacy lowercases a privacy status ("PUBLIC" -> "public").
func Privacy(status string) string {
	return strings.ToLower(status)
}

// Date formats t with layout, or returns "" for the zero time.
func Date(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

// Ago renders t relative to now ("3 days ago").
func Ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

// WatchURL is the YouTube watch page of a video.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// EmbedURL is the embeddable player for a video.
func EmbedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + url.PathEscape(videoID)
}
