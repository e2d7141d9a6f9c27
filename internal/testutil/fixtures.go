package testutil

import (
	"fmt"
	"time"

	"github.com/HerbHall/tubedeck/internal/youtube"
)

// NewPlaylist returns a Playlist with sensible defaults, suitable for test
// fixtures. Override individual fields with options.
func NewPlaylist(opts ...func(*youtube.Playlist)) youtube.Playlist {
	p := youtube.Playlist{
		ID:            "PL-test",
		Title:         "Test Playlist",
		Description:   "A playlist for tests",
		Thumbnail:     "https://i.ytimg.com/vi/test/mqdefault.jpg",
		PublishedAt:   time.Date(2023, 1, 2, 15, 4, 5, 0, time.UTC),
		ItemCount:     3,
		PrivacyStatus: "public",
		ChannelTitle:  "Test Channel",
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithPlaylistID sets the playlist ID.
func WithPlaylistID(id string) func(*youtube.Playlist) {
	return func(p *youtube.Playlist) { p.ID = id }
}

// WithPlaylistTitle sets the playlist title.
func WithPlaylistTitle(title string) func(*youtube.Playlist) {
	return func(p *youtube.Playlist) { p.Title = title }
}

// WithItemCount sets the playlist's video count.
func WithItemCount(n int64) func(*youtube.Playlist) {
	return func(p *youtube.Playlist) { p.ItemCount = n }
}

// WithPrivacy sets the playlist privacy status.
func WithPrivacy(status string) func(*youtube.Playlist) {
	return func(p *youtube.Playlist) { p.PrivacyStatus = status }
}

// NewVideo returns a Video with sensible defaults.
func NewVideo(opts ...func(*youtube.Video)) youtube.Video {
	v := youtube.Video{
		ID:           "vid-test",
		Title:        "Test Video",
		Description:  "A video for tests",
		Thumbnail:    "https://i.ytimg.com/vi/vid-test/mqdefault.jpg",
		ChannelTitle: "Test Channel",
		PublishedAt:  time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		Duration:     "PT4M13S",
		ViewCount:    1234,
		LikeCount:    56,
		CommentCount: 7,
	}
	for _, opt := range opts {
		opt(&v)
	}
	return v
}

// WithVideoID sets the video ID.
func WithVideoID(id string) func(*youtube.Video) {
	return func(v *youtube.Video) { v.ID = id }
}

// WithVideoTitle sets the video title.
func WithVideoTitle(title string) func(*youtube.Video) {
	return func(v *youtube.Video) { v.Title = title }
}

// WithDuration sets the ISO-8601 duration.
func WithDuration(d string) func(*youtube.Video) {
	return func(v *youtube.Video) { v.Duration = d }
}

// Playlists returns n playlists with IDs PL1..PLn and titles "Playlist 1".
func Playlists(n int) []youtube.Playlist {
	out := make([]youtube.Playlist, n)
	for i := range out {
		out[i] = NewPlaylist(
			WithPlaylistID(fmt.Sprintf("PL%d", i+1)),
			WithPlaylistTitle(fmt.Sprintf("Playlist %d", i+1)),
		)
	}
	return out
}

// Videos returns n videos with IDs v1..vn and titles "Video 1".
func Videos(n int) []youtube.Video {
	out := make([]youtube.Video, n)
	for i := range out {
		out[i] = NewVideo(
			WithVideoID(fmt.Sprintf("v%d", i+1)),
			WithVideoTitle(fmt.Sprintf("Video %d", i+1)),
		)
	}
	return out
}
