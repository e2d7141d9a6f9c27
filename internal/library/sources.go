package library

import (
	"context"

	"github.com/HerbHall/tubedeck/internal/paging"
	"github.com/HerbHall/tubedeck/internal/youtube"
	"golang.org/x/oauth2"
)

func playlistSource(yt youtube.Service, ts oauth2.TokenSource) paging.Source[youtube.Playlist] {
	return paging.SourceFuncs[youtube.Playlist]{
		FetchPageFunc: func(ctx context.Context, _ paging.Scope, pageToken string) (paging.Page[youtube.Playlist], error) {
			p, err := yt.FetchPlaylists(ctx, ts, pageToken)
			return paging.Page[youtube.Playlist]{Items: p.Items, NextPageToken: p.NextPageToken}, err
		},
	}
}

func videoSource(yt youtube.Service, ts oauth2.TokenSource) paging.Source[youtube.Video] {
	return paging.SourceFuncs[youtube.Video]{
		FetchPageFunc: func(ctx context.Context, scope paging.Scope, pageToken string) (paging.Page[youtube.Video], error) {
			p, err := yt.FetchPlaylistVideos(ctx, ts, scope.Parent, pageToken)
			return paging.Page[youtube.Video]{Items: p.Items, NextPageToken: p.NextPageToken}, err
		},
		SearchFunc: func(ctx context.Context, scope paging.Scope, query string) ([]youtube.Video, error) {
			return yt.SearchPlaylistVideos(ctx, ts, scope.Parent, query)
		},
	}
}

// searchSource backs the global search view. Without a query there is
// nothing to list.
func searchSource(yt youtube.Service, ts oauth2.TokenSource) paging.Source[youtube.SearchResult] {
	return paging.SourceFuncs[youtube.SearchResult]{
		FetchPageFunc: func(context.Context, paging.Scope, string) (paging.Page[youtube.SearchResult], error) {
			return paging.Page[youtube.SearchResult]{Items: []youtube.SearchResult{}}, nil
		},
		SearchFunc: func(ctx context.Context, _ paging.Scope, query string) ([]youtube.SearchResult, error) {
			return yt.SearchContent(ctx, ts, query)
		},
	}
}
