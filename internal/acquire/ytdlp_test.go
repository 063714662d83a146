package acquire

import (
	"strings"
	"testing"
)

func TestParseProbeOutputSingle(t *testing.T) {
	raw := `{"_type":"video","id":"abc","title":"Some Song","uploader":"Band","duration":215.4}`
	md, err := parseProbeOutput([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if md.IsCollection {
		t.Fatalf("expected single item")
	}
	if md.Title != "Some Song" || md.Uploader != "Band" || md.Duration != 215 {
		t.Fatalf("unexpected metadata: %+v", md)
	}
}

func TestParseProbeOutputPlaylist(t *testing.T) {
	raw := `{"_type":"playlist","title":"Road Trip","entries":[
		{"id":"a1","url":"https://www.youtube.com/watch?v=a1","title":"First"},
		null,
		{"id":"b2","title":"Second"},
		{"title":"No reference"}
	]}`
	md, err := parseProbeOutput([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !md.IsCollection || md.Title != "Road Trip" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
	if len(md.Entries) != 2 {
		t.Fatalf("expected 2 usable entries, got %d: %+v", len(md.Entries), md.Entries)
	}
	if md.Entries[1].URL != "https://www.youtube.com/watch?v=b2" {
		t.Fatalf("expected url built from id, got %q", md.Entries[1].URL)
	}
}

func TestParseProbeOutputErrors(t *testing.T) {
	if _, err := parseProbeOutput([]byte("  ")); err == nil || !strings.Contains(err.Error(), "empty output") {
		t.Fatalf("expected empty output error, got %v", err)
	}
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParseProbeOutputDefaultsTitle(t *testing.T) {
	md, err := parseProbeOutput([]byte(`{"_type":"video"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if md.Title != unknownTitle {
		t.Fatalf("expected %q, got %q", unknownTitle, md.Title)
	}
}

func TestLimitEntries(t *testing.T) {
	md := Metadata{IsCollection: true, Entries: []Entry{{URL: "1"}, {URL: "2"}, {URL: "3"}}}
	if got := limitEntries(md, 2); len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	if got := limitEntries(md, 0); len(got.Entries) != 3 {
		t.Fatalf("limit 0 must not cap, got %d", len(got.Entries))
	}
}

func TestPlaylistID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.youtube.com/playlist?list=PL123", "PL123"},
		{"https://www.youtube.com/watch?v=abc&list=RDabc&start_radio=1", "RDabc"},
		{"https://www.youtube.com/watch?v=abc", ""},
		{"::not a url", ""},
	}
	for _, c := range cases {
		if got := PlaylistID(c.in); got != c.want {
			t.Fatalf("PlaylistID(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestNewYTDLPDefaults(t *testing.T) {
	y := NewYTDLP(Options{})
	if y.Extension() != ".mp3" || y.opts.AudioQuality != "192" || y.opts.ProgressInterval <= 0 {
		t.Fatalf("defaults not applied: %+v", y.opts)
	}
}
