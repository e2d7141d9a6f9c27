package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/tubedeck/internal/metrics"
	"github.com/HerbHall/tubedeck/internal/version"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// Page size limits accepted by the Data API list endpoints.
const (
	DefaultPageSize = 12
	MaxPageSize     = 50

	defaultSearchMaxPages = 10
	searchResultLimit     = 25
)

var (
	playlistParts     = []string{"snippet", "contentDetails", "status"}
	playlistItemParts = []string{"snippet", "contentDetails"}
	videoParts        = []string{"snippet", "contentDetails", "statistics"}
)

// Config controls the client.
type Config struct {
	// PageSize is the number of items per page, clamped to 1..50.
	PageSize int
	// SearchMaxPages bounds how many pages a filter search may walk.
	SearchMaxPages int
	// Endpoint overrides the API base URL. Must end with "/".
	Endpoint string
	// HTTPClient is the base transport; the OAuth transport wraps it.
	HTTPClient *http.Client
}

// Compile-time interface guard.
var _ Service = (*Client)(nil)

// Client implements Service on google.golang.org/api/youtube/v3.
type Client struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient creates a Client. m may be nil.
func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	cfg.PageSize = ClampPageSize(cfg.PageSize)
	if cfg.SearchMaxPages <= 0 {
		cfg.SearchMaxPages = defaultSearchMaxPages
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, logger: logger, metrics: m}
}

// ClampPageSize maps n into 1..MaxPageSize, using DefaultPageSize for
// non-positive values.
func ClampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}

// FetchPlaylists returns one page of the user's playlists.
func (c *Client) FetchPlaylists(ctx context.Context, ts oauth2.TokenSource, pageToken string) (page Page[Playlist], err error) {
	defer c.observe("playlists.list", time.Now(), &err)

	svc, err := c.service(ctx, ts)
	if err != nil {
		return page, err
	}
	resp, err := listPlaylists(ctx, svc, pageToken, c.cfg.PageSize)
	if err != nil {
		return page, mapError("list playlists", err)
	}

	page.Items = make([]Playlist, 0, len(resp.Items))
	for _, p := range resp.Items {
		page.Items = append(page.Items, toPlaylist(p))
	}
	page.NextPageToken = resp.NextPageToken
	return page, nil
}

// FetchPlaylistDetails returns a single playlist or ErrNotFound.
func (c *Client) FetchPlaylistDetails(ctx context.Context, ts oauth2.TokenSource, playlistID string) (pl Playlist, err error) {
	defer c.observe("playlists.get", time.Now(), &err)

	svc, err := c.service(ctx, ts)
	if err != nil {
		return pl, err
	}
	resp, err := svc.Playlists.List(playlistParts).Id(playlistID).Context(ctx).Do()
	if err != nil {
		return pl, mapError("get playlist", err)
	}
	if len(resp.Items) == 0 {
		return pl, fmt.Errorf("get playlist %q: %w", playlistID, ErrNotFound)
	}
	return toPlaylist(resp.Items[0]), nil
}

// FetchPlaylistVideos returns one page of a playlist's videos in playlist
// order, enriched with duration and statistics.
func (c *Client) FetchPlaylistVideos(ctx context.Context, ts oauth2.TokenSource, playlistID, pageToken string) (page Page[Video], err error) {
	defer c.observe("playlistItems.list", time.Now(), &err)

	svc, err := c.service(ctx, ts)
	if err != nil {
		return page, err
	}
	items, next, err := listPlaylistItems(ctx, svc, playlistID, pageToken, c.cfg.PageSize)
	if err != nil {
		return page, err
	}
	videos, err := enrichVideos(ctx, svc, items)
	if err != nil {
		return page, err
	}
	return Page[Video]{Items: videos, NextPageToken: next}, nil
}

// SearchPlaylistVideos walks up to SearchMaxPages pages of the playlist
// and keeps entries whose title, description or channel contains query
// (case-insensitive).
func (c *Client) SearchPlaylistVideos(ctx context.Context, ts oauth2.TokenSource, playlistID, query string) (out []Video, err error) {
	defer c.observe("playlistItems.search", time.Now(), &err)

	svc, err := c.service(ctx, ts)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	var matched []*yt.PlaylistItem
	pageToken := ""
	for range c.cfg.SearchMaxPages {
		items, next, err := listPlaylistItems(ctx, svc, playlistID, pageToken, MaxPageSize)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.Snippet != nil && matches(needle, it.Snippet.Title, it.Snippet.Description, it.Snippet.VideoOwnerChannelTitle) {
				matched = append(matched, it)
			}
		}
		if next == "" {
			break
		}
		pageToken = next
	}

	return enrichVideos(ctx, svc, matched)
}

// SearchContent returns the user's playlists whose title or description
// matches query, followed by matching videos the user uploaded.
func (c *Client) SearchContent(ctx context.Context, ts oauth2.TokenSource, query string) (out []SearchResult, err error) {
	defer c.observe("search.list", time.Now(), &err)

	svc, err := c.service(ctx, ts)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	out = []SearchResult{}
	seen := make(map[string]bool)

	pageToken := ""
	for range c.cfg.SearchMaxPages {
		resp, err := listPlaylists(ctx, svc, pageToken, MaxPageSize)
		if err != nil {
			return nil, mapError("search playlists", err)
		}
		for _, p := range resp.Items {
			if p.Snippet == nil || !matches(needle, p.Snippet.Title, p.Snippet.Description) {
				continue
			}
			seen[p.Id] = true
			out = append(out, SearchResult{
				ID:          p.Id,
				Type:        ResultPlaylist,
				Title:       p.Snippet.Title,
				Description: p.Snippet.Description,
				Thumbnail:   bestThumbnail(p.Snippet.Thumbnails),
			})
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	resp, err := svc.Search.List([]string{"snippet"}).
		ForMine(true).
		Type("video").
		Q(query).
		MaxResults(searchResultLimit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError("search videos", err)
	}
	for _, r := range resp.Items {
		if r.Id == nil || r.Id.VideoId == "" || seen[r.Id.VideoId] || r.Snippet == nil {
			continue
		}
		seen[r.Id.VideoId] = true
		out = append(out, SearchResult{
			ID:          r.Id.VideoId,
			Type:        ResultVideo,
			Title:       r.Snippet.Title,
			Description: r.Snippet.Description,
			Thumbnail:   bestThumbnail(r.Snippet.Thumbnails),
		})
	}
	return out, nil
}

// FetchUserStats counts the user's playlists and their videos and reports
// account creation and last activity times. Last activity falls back to
// account creation when the user has no activity.
func (c *Client) FetchUserStats(ctx context.Context, ts oauth2.TokenSource) (stats UserStats, err error) {
	defer c.observe("stats", time.Now(), &err)

	svc, err := c.service(ctx, ts)
	if err != nil {
		return stats, err
	}

	channels, err := svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return stats, mapError("get channel", err)
	}
	if len(channels.Items) > 0 && channels.Items[0].Snippet != nil {
		stats.CreatedAt = parseTime(channels.Items[0].Snippet.PublishedAt)
	}

	pageToken := ""
	for {
		resp, err := listPlaylists(ctx, svc, pageToken, MaxPageSize)
		if err != nil {
			return stats, mapError("count playlists", err)
		}
		for _, p := range resp.Items {
			stats.TotalPlaylists++
			if p.ContentDetails != nil {
				stats.TotalVideos += p.ContentDetails.ItemCount
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	activities, err := svc.Activities.List([]string{"snippet"}).Mine(true).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return stats, mapError("list activities", err)
	}
	stats.LastActivity = stats.CreatedAt
	if len(activities.Items) > 0 && activities.Items[0].Snippet != nil {
		if t := parseTime(activities.Items[0].Snippet.PublishedAt); !t.IsZero() {
			stats.LastActivity = t
		}
	}
	return stats, nil
}

// service builds a per-user API client whose transport injects the user's
// OAuth token.
func (c *Client) service(ctx context.Context, ts oauth2.TokenSource) (*yt.Service, error) {
	if ts == nil {
		return nil, fmt.Errorf("youtube: no token source: %w", ErrUnauthorized)
	}
	base := context.WithValue(ctx, oauth2.HTTPClient, c.cfg.HTTPClient)
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(base, ts)),
		option.WithUserAgent(version.UserAgent()),
	}
	if c.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return svc, nil
}

func (c *Client) observe(op string, start time.Time, errp *error) {
	d := time.Since(start)
	c.metrics.APICall(op, d, *errp)
	if *errp != nil {
		c.logger.Debug("youtube call failed", zap.String("op", op), zap.Duration("duration", d), zap.Error(*errp))
		return
	}
	c.logger.Debug("youtube call", zap.String("op", op), zap.Duration("duration", d))
}

func listPlaylists(ctx context.Context, svc *yt.Service, pageToken string, size int) (*yt.PlaylistListResponse, error) {
	call := svc.Playlists.List(playlistParts).Mine(true).MaxResults(int64(size)).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func listPlaylistItems(ctx context.Context, svc *yt.Service, playlistID, pageToken string, size int) ([]*yt.PlaylistItem, string, error) {
	call := svc.PlaylistItems.List(playlistItemParts).
		PlaylistId(playlistID).
		MaxResults(int64(size)).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, "", mapError("list playlist items", err)
	}
	return resp.Items, resp.NextPageToken, nil
}

// enrichVideos converts playlist items to Videos, filling duration and
// statistics from videos.list. Entries with no video data (deleted or
// private) keep their snippet fields.
func enrichVideos(ctx context.Context, svc *yt.Service, items []*yt.PlaylistItem) ([]Video, error) {
	out := make([]Video, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		v := fromPlaylistItem(it)
		out = append(out, v)
		if v.ID != "" {
			ids = append(ids, v.ID)
		}
	}

	details := make(map[string]*yt.Video, len(ids))
	for start := 0; start < len(ids); start += MaxPageSize {
		end := min(start+MaxPageSize, len(ids))
		resp, err := svc.Videos.List(videoParts).Id(ids[start:end]...).Context(ctx).Do()
		if err != nil {
			return nil, mapError("list videos", err)
		}
		for _, v := range resp.Items {
			details[v.Id] = v
		}
	}

	for i := range out {
		if d, ok := details[out[i].ID]; ok {
			applyDetails(&out[i], d)
		}
	}
	return out, nil
}

func matches(needle string, fields ...string) bool {
	if needle == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// mapError translates Google API and token errors into the package's
// sentinel errors.
func mapError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", op, ErrUnauthorized)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w", op, ErrQuotaExceeded)
		case http.StatusForbidden:
			for _, item := range gerr.Errors {
				switch item.Reason {
				case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
					return fmt.Errorf("%s: %w", op, ErrQuotaExceeded)
				}
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
