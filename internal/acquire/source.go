// Package acquire defines the contract the task pipelines need from the
// external media extraction engine, and its yt-dlp backed implementation.
package acquire

import (
	"context"
	"time"
)

// Entry is one member of a collection as listed by Probe.
type Entry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Metadata is the read-only result of probing a source reference.
type Metadata struct {
	Title        string  `json:"title"`
	Uploader     string  `json:"uploader,omitempty"`
	Duration     int     `json:"duration,omitempty"`
	IsCollection bool    `json:"is_collection"`
	Entries      []Entry `json:"entries,omitempty"`
}

// Event is a byte-level transfer progress report for one acquisition.
// Finished is set once the transfer is done and conversion begins.
type Event struct {
	DownloadedBytes int64
	TotalBytes      int64
	Speed           float64 // bytes per second
	ETA             time.Duration
	Finished        bool
}

// Request describes where an acquisition should write its output.
// The engine writes <Dir>/<BaseName>.<ext>.
type Request struct {
	SourceURL string
	Dir       string
	BaseName  string
}

// Source is the acquisition engine. Acquire must be safe to call
// concurrently for distinct source references.
type Source interface {
	Probe(ctx context.Context, ref string) (Metadata, error)
	// Acquire blocks until transfer and audio conversion finish and returns
	// the path the engine reports for the output file. The file may live under
	// a slightly different name; callers must verify it.
	Acquire(ctx context.Context, req Request, onProgress func(Event)) (string, error)
}
