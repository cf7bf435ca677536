package tags

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dhowden/tag"
)

// Read reads tag metadata from a music file. A missing title falls back
// to the file name.
func Read(path string) (*Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("read tags of %s: %w", filepath.Base(path), err)
	}

	title := m.Title()
	if title == "" {
		title = filepath.Base(path)
	}
	track, totalTracks := m.Track()
	disc, totalDiscs := m.Disc()
	albumArtist := m.AlbumArtist()
	if albumArtist == "" {
		albumArtist = m.Artist()
	}

	return &Tag{
		Path:        path,
		Title:       title,
		Artist:      m.Artist(),
		AlbumArtist: albumArtist,
		Album:       m.Album(),
		Genre:       m.Genre(),
		Date:        yearToDate(m.Year()),
		TrackNumber: track,
		TotalTracks: totalTracks,
		DiscNumber:  disc,
		TotalDiscs:  totalDiscs,
	}, nil
}

// yearToDate converts a year integer to a date string.
// Returns empty string for year 0.
func yearToDate(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}
