package tags

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/llehouerou/cadence/internal/decoder"
	"github.com/llehouerou/cadence/internal/playback"
)

// Resolve builds a fully populated track for path. Tags are optional: a
// file without them gets its name as title. The error is the decoder's
// when the file cannot be probed; the returned track is still usable and
// will fail with the same error when played.
func Resolve(path string) (playback.Track, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	t := playback.Track{Path: path, Title: filepath.Base(path)}

	if tg, err := Read(path); err == nil {
		t.Title = tg.Title
		t.Artist = tg.Artist
		t.Album = tg.Album
		t.TrackNumber = tg.TrackNumber
	} else {
		slog.Debug("no tags", "path", path, "err", err)
	}

	info, err := decoder.Probe(path)
	if err != nil {
		return t, err
	}
	t.Codec = info.Codec.String()
	t.Frames = int64(info.Frames)
	t.SampleRate = int(info.Format.SampleRate)
	return t, nil
}

// Collect expands paths into music files. Directories are walked
// recursively; their files are sorted by path. Explicit file arguments are
// kept in order whatever their extension, so unsupported files surface as
// playback errors instead of vanishing.
func Collect(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != p && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && IsMusicFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		slices.Sort(found)
		out = append(out, found...)
	}
	return out, nil
}
