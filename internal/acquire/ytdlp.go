package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog/log"
)

const (
	defaultAudioFormat      = "mp3"
	defaultAudioQuality     = "192"
	defaultProgressInterval = 500 * time.Millisecond
	unknownTitle            = "Unknown"

	statusFinished       = "finished"
	statusPostProcessing = "post_processing"
)

// Options configures the yt-dlp backed Source.
type Options struct {
	AudioFormat      string
	AudioQuality     string
	ProgressInterval time.Duration
	// CollectionLimit caps the number of members returned by Probe; 0 means no cap.
	CollectionLimit int
	// NativePlaylist lists YouTube playlists without spawning yt-dlp.
	NativePlaylist bool
}

// YTDLP implements Source on top of the yt-dlp executable.
type YTDLP struct {
	opts Options
}

var _ Source = (*YTDLP)(nil)

// NewYTDLP creates a Source with the given options, applying defaults.
func NewYTDLP(opts Options) *YTDLP {
	if opts.AudioFormat == "" {
		opts.AudioFormat = defaultAudioFormat
	}
	if opts.AudioQuality == "" {
		opts.AudioQuality = defaultAudioQuality
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	return &YTDLP{opts: opts}
}

// Extension returns the file extension of converted outputs, with a leading dot.
func (y *YTDLP) Extension() string { return "." + y.opts.AudioFormat }

// Probe fetches metadata without transferring media. Collections are listed
// flat, so member titles come from the listing.
func (y *YTDLP) Probe(ctx context.Context, ref string) (Metadata, error) {
	if y.opts.NativePlaylist {
		md, err := ListPlaylist(ctx, ref)
		switch {
		case err == nil:
			return limitEntries(md, y.opts.CollectionLimit), nil
		case !errors.Is(err, ErrNotPlaylist):
			log.Warn().Str("url", ref).Err(err).Msg("native playlist listing failed, falling back to yt-dlp")
		}
	}

	dl := ytdlp.New().
		FlatPlaylist().
		DumpSingleJSON().
		SkipDownload().
		NoWarnings()

	result, err := dl.Run(ctx, ref)
	if err != nil {
		return Metadata{}, fmt.Errorf("yt-dlp probe: %w", err)
	}
	md, err := parseProbeOutput([]byte(result.Stdout))
	if err != nil {
		return Metadata{}, err
	}
	return limitEntries(md, y.opts.CollectionLimit), nil
}

// Acquire downloads the best audio stream of req.SourceURL and converts it.
func (y *YTDLP) Acquire(ctx context.Context, req Request, onProgress func(Event)) (string, error) {
	dl := ytdlp.New().
		Format("bestaudio/best").
		ExtractAudio().
		AudioFormat(y.opts.AudioFormat).
		AudioQuality(y.opts.AudioQuality).
		NoPlaylist().
		ForceOverwrites().
		NoWarnings().
		Output(filepath.Join(req.Dir, req.BaseName+".%(ext)s"))

	if onProgress != nil {
		dl.ProgressFunc(y.opts.ProgressInterval, func(update ytdlp.ProgressUpdate) {
			onProgress(eventFromUpdate(update))
		})
	}

	if _, err := dl.Run(ctx, req.SourceURL); err != nil {
		return "", fmt.Errorf("yt-dlp acquire: %w", err)
	}
	return filepath.Join(req.Dir, req.BaseName+y.Extension()), nil
}

func eventFromUpdate(update ytdlp.ProgressUpdate) Event {
	ev := Event{
		DownloadedBytes: int64(update.DownloadedBytes),
		TotalBytes:      int64(update.TotalBytes),
		ETA:             update.ETA(),
	}
	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
			ev.Speed = float64(update.DownloadedBytes) / elapsed
		}
	}
	switch string(update.Status) {
	case statusFinished, statusPostProcessing:
		ev.Finished = true
	}
	return ev
}

type probeEntry struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	WebpageURL string `json:"webpage_url"`
	Title      string `json:"title"`
}

type probeOutput struct {
	Type     string        `json:"_type"`
	Title    string        `json:"title"`
	Uploader string        `json:"uploader"`
	Duration float64       `json:"duration"`
	Entries  []*probeEntry `json:"entries"`
}

func parseProbeOutput(raw []byte) (Metadata, error) {
	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return Metadata{}, errors.New("yt-dlp probe: empty output")
	}
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Metadata{}, fmt.Errorf("yt-dlp probe: decode json: %w", err)
	}

	md := Metadata{
		Title:        out.Title,
		Uploader:     out.Uploader,
		Duration:     int(out.Duration),
		IsCollection: out.Type == "playlist" || out.Entries != nil,
	}
	if md.Title == "" {
		md.Title = unknownTitle
	}
	if !md.IsCollection {
		return md, nil
	}

	md.Entries = make([]Entry, 0, len(out.Entries))
	for _, e := range out.Entries {
		if e == nil {
			continue
		}
		entryURL := e.URL
		if entryURL == "" {
			entryURL = e.WebpageURL
		}
		if entryURL == "" && e.ID != "" {
			entryURL = fmt.Sprintf(videoURLTemplate, e.ID)
		}
		if entryURL == "" {
			continue
		}
		md.Entries = append(md.Entries, Entry{URL: entryURL, Title: e.Title})
	}
	return md, nil
}

func limitEntries(md Metadata, limit int) Metadata {
	if limit > 0 && len(md.Entries) > limit {
		md.Entries = md.Entries[:limit]
	}
	return md
}
