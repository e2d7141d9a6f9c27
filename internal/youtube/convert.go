package youtube

import (
	"time"

	yt "google.golang.org/api/youtube/v3"
)

func toPlaylist(p *yt.Playlist) Playlist {
	out := Playlist{ID: p.Id}
	if s := p.Snippet; s != nil {
		out.Title = s.Title
		out.Description = s.Description
		out.Thumbnail = bestThumbnail(s.Thumbnails)
		out.PublishedAt = parseTime(s.PublishedAt)
		out.ChannelTitle = s.ChannelTitle
	}
	if p.ContentDetails != nil {
		out.ItemCount = p.ContentDetails.ItemCount
	}
	if p.Status != nil {
		out.PrivacyStatus = p.Status.PrivacyStatus
	}
	return out
}

func fromPlaylistItem(it *yt.PlaylistItem) Video {
	var v Video
	if it.ContentDetails != nil {
		v.ID = it.ContentDetails.VideoId
		v.PublishedAt = parseTime(it.ContentDetails.VideoPublishedAt)
	}
	if s := it.Snippet; s != nil {
		if v.ID == "" && s.ResourceId != nil {
			v.ID = s.ResourceId.VideoId
		}
		v.Title = s.Title
		v.Description = s.Description
		v.Thumbnail = bestThumbnail(s.Thumbnails)
		v.ChannelTitle = s.VideoOwnerChannelTitle
		if v.PublishedAt.IsZero() {
			v.PublishedAt = parseTime(s.PublishedAt)
		}
	}
	return v
}

func applyDetails(v *Video, d *yt.Video) {
	if d.ContentDetails != nil {
		v.Duration = d.ContentDetails.Duration
	}
	if st := d.Statistics; st != nil {
		v.ViewCount = st.ViewCount
		v.LikeCount = st.LikeCount
		v.CommentCount = st.CommentCount
	}
	if s := d.Snippet; s != nil {
		if t := parseTime(s.PublishedAt); !t.IsZero() {
			v.PublishedAt = t
		}
		if v.ChannelTitle == "" {
			v.ChannelTitle = s.ChannelTitle
		}
	}
}

// bestThumbnail prefers the medium rendition, which fits card layouts.
func bestThumbnail(td *yt.ThumbnailDetails) string {
	if td == nil {
		return ""
	}
	for _, t := range []*yt.Thumbnail{td.Medium, td.High, td.Standard, td.Default, td.Maxres} {
		if t != nil && t.Url != "" {
			return t.Url
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
