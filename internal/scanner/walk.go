// Package scanner walks the music folder, extracts metadata in bounded
// batches, deduplicates equivalent songs and groups the survivors into
// albums and folder playlists.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

// supportedExtensions is the set of audio file extensions the scanner picks
// up, lowercased with the leading dot.
var supportedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".mp4":  true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".wma":  true,
	".aiff": true,
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// WalkResult carries the outcome of the two-pass directory walk.
type WalkResult struct {
	// AudioFiles lists every audio file in discovery order.
	AudioFiles []string
	// PlaylistDirs lists playlist folders (marker in the base name), with
	// nested playlist folders excluded.
	PlaylistDirs []string
	// PlaylistFiles maps each playlist folder to its member audio files in
	// discovery order.
	PlaylistFiles map[string][]string
}

// Walk scans root recursively. The first pass registers playlist directories;
// the second collects audio files and assigns each to at most one playlist
// by path prefix. Symlinks are not followed.
func Walk(root string) (WalkResult, error) {
	result := WalkResult{PlaylistFiles: make(map[string][]string)}

	abs, err := filepath.Abs(root)
	if err != nil {
		return result, err
	}

	// Pass 1: playlist directories. WalkDir visits parents before children,
	// so a prefix check against already-registered dirs enforces the
	// non-nesting rule.
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep walking
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if !strings.Contains(d.Name(), domain.PlaylistMarker) {
			return nil
		}
		if insidePlaylist(result.PlaylistDirs, path) {
			return nil
		}
		result.PlaylistDirs = append(result.PlaylistDirs, path)
		return nil
	})
	if err != nil {
		return result, err
	}

	// Pass 2: audio files.
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsAudioFile(path) {
			return nil
		}
		result.AudioFiles = append(result.AudioFiles, path)
		if dir, ok := playlistOf(result.PlaylistDirs, path); ok {
			result.PlaylistFiles[dir] = append(result.PlaylistFiles[dir], path)
		}
		return nil
	})
	return result, err
}

func insidePlaylist(dirs []string, path string) bool {
	for _, dir := range dirs {
		if strings.HasPrefix(path, dir+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// playlistOf returns the playlist directory containing path. The non-nesting
// invariant guarantees at most one match.
func playlistOf(dirs []string, path string) (string, bool) {
	for _, dir := range dirs {
		if strings.HasPrefix(path, dir+string(os.PathSeparator)) {
			return dir, true
		}
	}
	return "", false
}
