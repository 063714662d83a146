package file

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode"
)

func TestSanitizeStripsReservedCharacters(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`AC/DC: Back in Black`, "ACDC Back in Black"},
		{`What? <Live> "2020" | part*1\2`, "What Live 2020  part12"},
		{"  padded title. . ", "padded title"},
		{"tab\tand\nnewline", "tabandnewline"},
		{"Ünïcödé ♫ title", "Ünïcödé ♫ title"},
		{`<>:"/\|?*`, ""},
		{"", ""},
	}
	for _, c := range cases {
		got := Sanitize(c.in)
		if got != c.want {
			t.Fatalf("Sanitize(%q)=%q want %q", c.in, got, c.want)
		}
		if strings.ContainsAny(got, reservedChars) {
			t.Fatalf("Sanitize(%q)=%q still contains reserved characters", c.in, got)
		}
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"plain",
		"a .",
		" .hidden",
		"trailing dots...",
		`mix: "best of" 2024 / vol. 2?`,
		"  \t",
		"x. .",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func FuzzSanitize(f *testing.F) {
	for _, seed := range []string{
		"plain",
		"x. .",
		"\xff\xfe broken utf8",
		"a\x00b\x1fc\u007f",
		"\u00a0nbsp\u00a0. ",
		"\u200b\u0085 next line\u2028",
		`<>:"/\|?*`,
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
		if strings.ContainsAny(once, reservedChars) {
			t.Fatalf("Sanitize(%q)=%q still contains reserved characters", in, once)
		}
		for _, r := range once {
			if unicode.IsControl(r) {
				t.Fatalf("Sanitize(%q)=%q still contains control rune %U", in, once, r)
			}
		}
		if strings.HasSuffix(once, ".") || strings.TrimSpace(once) != once {
			t.Fatalf("Sanitize(%q)=%q has untrimmed edges", in, once)
		}
	})
}

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestLocateOutputPrefersExactName(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "Song Title.mp3"), now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "Song Title (1).mp3"), now)

	got, err := LocateOutput(dir, "Song Title", ".mp3", now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if filepath.Base(got) != "Song Title.mp3" {
		t.Fatalf("expected exact match, got %s", got)
	}
}

func TestLocateOutputFindsDriftedName(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "Song_Title.MP3"), now)
	touch(t, filepath.Join(dir, "Other.mp3"), now)
	touch(t, filepath.Join(dir, "Song Title.webm"), now)

	got, err := LocateOutput(dir, "Song Title", ".mp3", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if filepath.Base(got) != "Song_Title.MP3" {
		t.Fatalf("expected drifted name, got %s", got)
	}
}

func TestLocateOutputIgnoresStaleAndUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "Song_Title.mp3"), now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "Completely different.mp3"), now)

	_, err := LocateOutput(dir, "Song Title", ".mp3", now)
	if !errors.Is(err, ErrOutputNotFound) {
		t.Fatalf("expected ErrOutputNotFound, got %v", err)
	}
}

func TestLocateOutputAcceptsTruncatedName(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, filepath.Join(dir, "003-A very long title th.mp3"), now)
	touch(t, filepath.Join(dir, "004-A very long title that goes on.mp3"), now)

	got, err := LocateOutput(dir, "003-A very long title that goes on", ".mp3", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(got), "003-") {
		t.Fatalf("matched wrong item: %s", got)
	}
}

func TestWriteJSONAtomicAndMove(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "report.json")
	if err := WriteJSONAtomic(dst, map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(raw, &got); err != nil || got["n"] != 1 {
		t.Fatalf("unexpected content %s (%v)", raw, err)
	}

	moved := filepath.Join(dir, "moved.json")
	if err := Move(dst, moved); err != nil {
		t.Fatalf("move: %v", err)
	}
	if Exists(dst) || !Exists(moved) {
		t.Fatalf("move did not relocate the file")
	}
}
