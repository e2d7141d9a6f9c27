package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/HerbHall/tubedeck/internal/youtube"
	"golang.org/x/oauth2"
)

// Compile-time interface check.
var _ youtube.Service = (*FakeYouTube)(nil)

// FakeYouTube is an in-memory youtube.Service. Page tokens are item
// offsets. Set Err to make every call fail.
type FakeYouTube struct {
	mu        sync.Mutex
	PageSize  int
	Playlists []youtube.Playlist
	Videos    map[string][]youtube.Video // by playlist ID
	Stats     youtube.UserStats
	Err       error
	calls     map[string]int
}

// NewFakeYouTube returns a fake holding the given playlists, a page size
// of 2, and no videos.
func NewFakeYouTube(playlists ...youtube.Playlist) *FakeYouTube {
	return &FakeYouTube{
		PageSize:  2,
		Playlists: playlists,
		Videos:    make(map[string][]youtube.Video),
	}
}

// SetErr makes subsequent calls fail with err (nil restores success).
func (f *FakeYouTube) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// Calls returns how many times op was called.
func (f *FakeYouTube) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeYouTube) begin(op string, ts oauth2.TokenSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
	if ts == nil {
		return youtube.ErrUnauthorized
	}
	return f.Err
}

func (f *FakeYouTube) FetchPlaylists(_ context.Context, ts oauth2.TokenSource, pageToken string) (youtube.Page[youtube.Playlist], error) {
	if err := f.begin("FetchPlaylists", ts); err != nil {
		return youtube.Page[youtube.Playlist]{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return paginate(f.Playlists, pageToken, f.PageSize)
}

func (f *FakeYouTube) FetchPlaylistDetails(_ context.Context, ts oauth2.TokenSource, playlistID string) (youtube.Playlist, error) {
	if err := f.begin("FetchPlaylistDetails", ts); err != nil {
		return youtube.Playlist{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.Playlists {
		if p.ID == playlistID {
			return p, nil
		}
	}
	return youtube.Playlist{}, fmt.Errorf("playlist %q: %w", playlistID, youtube.ErrNotFound)
}

func (f *FakeYouTube) FetchPlaylistVideos(_ context.Context, ts oauth2.TokenSource, playlistID, pageToken string) (youtube.Page[youtube.Video], error) {
	if err := f.begin("FetchPlaylistVideos", ts); err != nil {
		return youtube.Page[youtube.Video]{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	videos, ok := f.Videos[playlistID]
	if !ok {
		return youtube.Page[youtube.Video]{}, fmt.Errorf("playlist %q: %w", playlistID, youtube.ErrNotFound)
	}
	return paginate(videos, pageToken, f.PageSize)
}

func (f *FakeYouTube) SearchPlaylistVideos(_ context.Context, ts oauth2.TokenSource, playlistID, query string) ([]youtube.Video, error) {
	if err := f.begin("SearchPlaylistVideos", ts); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []youtube.Video{}
	for _, v := range f.Videos[playlistID] {
		if containsFold(v.Title, query) || containsFold(v.Description, query) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *FakeYouTube) SearchContent(_ context.Context, ts oauth2.TokenSource, query string) ([]youtube.SearchResult, error) {
	if err := f.begin("SearchContent", ts); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []youtube.SearchResult{}
	for _, p := range f.Playlists {
		if containsFold(p.Title, query) {
			out = append(out, youtube.SearchResult{ID: p.ID, Type: youtube.ResultPlaylist, Title: p.Title, Description: p.Description})
		}
	}
	for _, p := range f.Playlists {
		for _, v := range f.Videos[p.ID] {
			if containsFold(v.Title, query) {
				out = append(out, youtube.SearchResult{ID: v.ID, Type: youtube.ResultVideo, Title: v.Title, Description: v.Description})
			}
		}
	}
	return out, nil
}

func (f *FakeYouTube) FetchUserStats(_ context.Context, ts oauth2.TokenSource) (youtube.UserStats, error) {
	if err := f.begin("FetchUserStats", ts); err != nil {
		return youtube.UserStats{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Stats, nil
}

// TokenSource returns a static token source for fake calls.
func TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"})
}

func paginate[T any](all []T, pageToken string, size int) (youtube.Page[T], error) {
	if size <= 0 {
		size = youtube.DefaultPageSize
	}
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 || n > len(all) {
			return youtube.Page[T]{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		offset = n
	}
	end := min(offset+size, len(all))
	page := youtube.Page[T]{Items: append([]T{}, all[offset:end]...)}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(sub)))
}
