package youtube

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// Sentinel errors returned by Service implementations.
var (
	ErrNotFound      = errors.New("youtube: resource not found")
	ErrUnauthorized  = errors.New("youtube: credentials rejected")
	ErrQuotaExceeded = errors.New("youtube: quota exceeded")
)

// Service is the read-only view of a user's YouTube library.
type Service interface {
	FetchPlaylists(ctx context.Context, ts oauth2.TokenSource, pageToken string) (Page[Playlist], error)
	FetchPlaylistDetails(ctx context.Context, ts oauth2.TokenSource, playlistID string) (Playlist, error)
	FetchPlaylistVideos(ctx context.Context, ts oauth2.TokenSource, playlistID, pageToken string) (Page[Video], error)
	// SearchPlaylistVideos filters a playlist's videos. Results are not paginated.
	SearchPlaylistVideos(ctx context.Context, ts oauth2.TokenSource, playlistID, query string) ([]Video, error)
	// SearchContent matches the user's playlists and uploaded videos.
	SearchContent(ctx context.Context, ts oauth2.TokenSource, query string) ([]SearchResult, error)
	FetchUserStats(ctx context.Context, ts oauth2.TokenSource) (UserStats, error)
}
