package mpris

import (
	"os"
	"path/filepath"
	"strings"
)

// coverNames lists album art file names in priority order. Matching
// ignores case.
var coverNames = []string{
	"cover.jpg", "cover.png", "cover.jpeg",
	"folder.jpg", "folder.png", "folder.jpeg",
	"album.jpg", "album.png", "album.jpeg",
	"front.jpg", "front.png", "front.jpeg",
}

// FindAlbumArt returns the album art file next to trackPath, or "".
func FindAlbumArt(trackPath string) string {
	entries, err := os.ReadDir(filepath.Dir(trackPath))
	if err != nil {
		return ""
	}
	found := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			found[strings.ToLower(e.Name())] = e.Name()
		}
	}
	for _, name := range coverNames {
		if actual, ok := found[name]; ok {
			return filepath.Join(filepath.Dir(trackPath), actual)
		}
	}
	return ""
}

func artURL(trackPath string) string {
	if art := FindAlbumArt(trackPath); art != "" {
		return "file://" + art
	}
	return ""
}
