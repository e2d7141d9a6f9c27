package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/HerbHall/tubedeck/internal/version"
	"golang.org/x/oauth2"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Profile is the Google account behind a sign-in.
type Profile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// ProfileFetcher looks up the account that owns a token.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, ts oauth2.TokenSource) (Profile, error)
}

// GoogleProfiles fetches profiles from the Google userinfo endpoint.
type GoogleProfiles struct {
	endpoint string
}

// NewGoogleProfiles creates a fetcher. An empty endpoint uses Google's.
func NewGoogleProfiles(endpoint string) *GoogleProfiles {
	return &GoogleProfiles{endpoint: endpoint}
}

func (g *GoogleProfiles) FetchProfile(ctx context.Context, ts oauth2.TokenSource) (Profile, error) {
	opts := []option.ClientOption{
		option.WithTokenSource(ts),
		option.WithUserAgent(version.UserAgent()),
	}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := googleoauth.NewService(ctx, opts...)
	if err != nil {
		return Profile{}, fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	if info.Id == "" {
		return Profile{}, errors.New("fetch userinfo: response has no account id")
	}
	return Profile{
		ID:      info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
