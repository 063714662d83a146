package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	nativeyt "github.com/ytget/ytdlp/v2"
)

const videoURLTemplate = "https://www.youtube.com/watch?v=%s"

// ErrNotPlaylist is returned by ListPlaylist for references without a list id.
var ErrNotPlaylist = errors.New("not a playlist reference")

// PlaylistID extracts the "list" query parameter of a YouTube URL.
func PlaylistID(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

// ListPlaylist enumerates the members of a YouTube playlist natively.
// The listing API does not expose the playlist name, so the id is used.
func ListPlaylist(ctx context.Context, ref string) (Metadata, error) {
	playlistID := PlaylistID(ref)
	if playlistID == "" {
		return Metadata{}, ErrNotPlaylist
	}

	items, err := nativeyt.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return Metadata{}, fmt.Errorf("list playlist %s: %w", playlistID, err)
	}

	md := Metadata{
		Title:        "Playlist " + playlistID,
		IsCollection: true,
		Entries:      make([]Entry, 0, len(items)),
	}
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		md.Entries = append(md.Entries, Entry{
			URL:   fmt.Sprintf(videoURLTemplate, it.VideoID),
			Title: it.Title,
		})
	}
	return md, nil
}
