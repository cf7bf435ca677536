// Package tags resolves music files into playback tracks: tag metadata
// from the file plus the stream properties the decoder reports.
package tags

import (
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// File extensions the player can decode.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOPUS = ".opus"
	ExtOGG  = ".ogg"
	ExtOGA  = ".oga"
	ExtM4A  = ".m4a"
	ExtMP4  = ".mp4"
	ExtWAV  = ".wav"
)

var musicExts = []string{ExtMP3, ExtFLAC, ExtOPUS, ExtOGG, ExtOGA, ExtM4A, ExtMP4, ExtWAV}

// Tag is the metadata read from a file.
type Tag struct {
	Path        string
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string

	TrackNumber int
	TotalTracks int
	DiscNumber  int
	TotalDiscs  int

	Date string // YYYY-MM-DD or YYYY
}

// Year derives the year from the Date field.
// Returns 0 if Date is empty or cannot be parsed.
func (t *Tag) Year() int {
	if t.Date == "" {
		return 0
	}
	year := t.Date
	if len(year) > 4 {
		year = year[:4]
	}
	y, _ := strconv.Atoi(year)
	return y
}

// IsMusicFile returns true if the path has a supported music file extension.
func IsMusicFile(path string) bool {
	return slices.Contains(musicExts, strings.ToLower(filepath.Ext(path)))
}
