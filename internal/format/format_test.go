package format

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"PT1H2M3S", "1:02:03"},
		{"PT10H", "10:00:00"},
		{"PT1H5S", "1:00:05"},
		{"PT4M13S", "4:13"},
		{"PT12M", "12:00"},
		{"PT9S", "0:09"},
		{"PT45S", "0:45"},
		{"PT", "0:00"},
		{"", ""},
		{"P1D", "P1D"},
	}
	for _, tc := range tests {
		if got := Duration(tc.in); got != tc.want {
			t.Errorf("Duration(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
	}
	for _, tc := range tests {
		if got := Count(tc.in); got != tc.want {
			t.Errorf("Count(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPlural(t *testing.T) {
	if got := Plural(1, "video", "videos"); got != "1 video" {
		t.Errorf("Plural(1) = %q, want %q", got, "1 video")
	}
	if got := Plural(0, "video", "videos"); got != "0 videos" {
		t.Errorf("Plural(0) = %q, want %q", got, "0 videos")
	}
	if got := Plural(1500, "video", "videos"); got != "1,500 videos" {
		t.Errorf("Plural(1500) = %q, want %q", got, "1,500 videos")
	}
}

func TestDateLayouts(t *testing.T) {
	ts := time.Date(2023, 1, 2, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		layout, want string
	}{
		{ShortDate, "Jan 2, 2023"},
		{LongDate, "January 2, 2023"},
		{Clock, "3:04 PM"},
		{DateTime, "Jan 2, 2023 3:04 PM"},
	}
	for _, tc := range tests {
		if got := Date(ts, tc.layout); got != tc.want {
			t.Errorf("Date(%q) = %q, want %q", tc.layout, got, tc.want)
		}
	}
	if got := Date(time.Time{}, ShortDate); got != "" {
		t.Errorf("Date(zero) = %q, want empty", got)
	}
}

func TestPrivacy(t *testing.T) {
	if got := Privacy("UNLISTED"); got != "unlisted" {
		t.Errorf("Privacy() = %q, want unlisted", got)
	}
}

func TestURLs(t *testing.T) {
	if got := WatchURL("dQw4w9WgXcQ"); got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("WatchURL() = %q", got)
	}
	if got := EmbedURL("dQw4w9WgXcQ"); got != "https://www.youtube.com/embed/dQw4w9WgXcQ" {
		t.Errorf("EmbedURL() = %q", got)
	}
}

func TestAgo(t *testing.T) {
	if got := Ago(time.Time{}); got != "" {
		t.Errorf("Ago(zero) = %q, want empty", got)
	}
	if got := Ago(time.Now().Add(-3 * time.Hour)); got != "3 hours ago" {
		t.Errorf("Ago(-3h) = %q, want %q", got, "3 hours ago")
	}
}
