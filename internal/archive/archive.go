package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	fileutil "mp3fetch/internal/file"
)

// Entry is a local file to be stored in the archive under Name.
type Entry struct {
	Path string
	Name string
}

// Result describes the outcome of writing one entry into the zip.
type Result struct {
	Filename string
	Err      string
}

var ErrNoEntries = errors.New("no entries provided")

// BuildArchive writes entries into a zip at destZipPath. The archive is
// assembled in a temporary file next to the destination and renamed into
// place, so readers never see a partial zip. It always returns one Result per
// entry; entries that fail are omitted from the archive.
func BuildArchive(ctx context.Context, destZipPath string, entries []Entry) ([]Result, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	dir := filepath.Dir(destZipPath)
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, err
	}

	zipFile, err := os.CreateTemp(dir, ".zip-*")
	if err != nil {
		return nil, fmt.Errorf("create temp zip: %w", err)
	}
	tmpName := zipFile.Name()
	zipWriter := zip.NewWriter(zipFile)
	discard := func() {
		_ = zipFile.Close()
		_ = os.Remove(tmpName)
	}

	names := newNameSet()
	results := make([]Result, len(entries))
	written := 0
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			discard()
			return results, fmt.Errorf("build archive: %w", err)
		}
		results[i] = addEntry(zipWriter, entry, names.unique(entryName(entry)))
		if results[i].Err == "" {
			written++
		}
	}

	if err := zipWriter.Close(); err != nil {
		log.Error().Err(err).Msg("closing zip writer failed")
		discard()
		return results, fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		log.Error().Err(err).Msg("closing zip file failed")
		_ = os.Remove(tmpName)
		return results, fmt.Errorf("close zip file: %w", err)
	}
	if written == 0 {
		_ = os.Remove(tmpName)
		return results, errors.New("no entries could be archived")
	}
	if err := fileutil.Move(tmpName, destZipPath); err != nil {
		_ = os.Remove(tmpName)
		return results, err
	}
	return results, nil
}

func addEntry(zipWriter *zip.Writer, entry Entry, name string) Result {
	result := Result{Filename: name}

	src, err := os.Open(entry.Path) //nolint:gosec // path is produced by the application
	if err != nil {
		result.Err = err.Error()
		log.Warn().Str("path", entry.Path).Err(err).Msg("open archive entry failed")
		return result
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		result.Err = err.Error()
		return result
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	header.Name = name
	header.Method = zip.Deflate

	zipEntryWriter, err := zipWriter.CreateHeader(header)
	if err != nil {
		result.Err = err.Error()
		log.Warn().Str("path", entry.Path).Err(err).Msg("zip entry create failed")
		return result
	}
	if _, err := io.Copy(zipEntryWriter, src); err != nil {
		result.Err = err.Error()
		log.Warn().Str("path", entry.Path).Err(err).Msg("copy into zip failed")
		return result
	}
	return result
}

// entryName keeps the display name but flattens path separators so every
// entry lands at the archive root.
func entryName(entry Entry) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimSpace(entry.Name))
	if name == "" {
		name = filepath.Base(entry.Path)
	}
	return name
}

type nameSet map[string]int

func newNameSet() nameSet { return make(nameSet) }

// unique appends " (n)" before the extension for repeated names.
func (s nameSet) unique(name string) string {
	key := strings.ToLower(name)
	s[key]++
	n := s[key]
	if n == 1 {
		return name
	}
	ext := filepath.Ext(name)
	candidate := strings.TrimSuffix(name, ext) + " (" + strconv.Itoa(n) + ")" + ext
	return s.unique(candidate)
}
