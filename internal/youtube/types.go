// Package youtube is the read-only YouTube Data API v3 client used by the
// library views. Every call is made on behalf of one signed-in user, whose
// OAuth token source is passed explicitly.
package youtube

import "time"

// Playlist is one of the user's playlists.
type Playlist struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Thumbnail     string    `json:"thumbnail"`
	PublishedAt   time.Time `json:"published_at"`
	ItemCount     int64     `json:"item_count"`
	PrivacyStatus string    `json:"privacy_status"`
	ChannelTitle  string    `json:"channel_title"`
}

// Video is a playlist entry enriched with video details. Duration is the
// raw ISO-8601 value ("PT4M13S").
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Thumbnail    string    `json:"thumbnail"`
	ChannelTitle string    `json:"channel_title"`
	PublishedAt  time.Time `json:"published_at"`
	Duration     string    `json:"duration"`
	ViewCount    uint64    `json:"view_count"`
	LikeCount    uint64    `json:"like_count"`
	CommentCount uint64    `json:"comment_count"`
}

// ResultType distinguishes global search hits.
type ResultType string

// Search result types.
const (
	ResultPlaylist ResultType = "playlist"
	ResultVideo    ResultType = "video"
)

// SearchResult is one global search hit.
type SearchResult struct {
	ID          string     `json:"id"`
	Type        ResultType `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Thumbnail   string     `json:"thumbnail"`
}

// UserStats summarizes the user's library for the profile page.
type UserStats struct {
	TotalPlaylists int       `json:"total_playlists"`
	TotalVideos    int64     `json:"total_videos"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivity   time.Time `json:"last_activity"`
}

// Page is one page of results. An empty NextPageToken means there is no
// further page.
type Page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"next_page_token,omitempty"`
}
