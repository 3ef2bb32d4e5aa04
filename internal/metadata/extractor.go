// Package metadata extracts tag metadata from audio files and maintains the
// persistent metadata cache that makes rescans cheap.
package metadata

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"github.com/picccassso/Ariami-sub001/internal/domain"
	"github.com/picccassso/Ariami-sub001/internal/mpeg"
)

// Extractor reads tag containers via dhowden/tag and durations via the mpeg
// frame parser. It soft-fails by default: a file with unreadable tags still
// yields a minimal record built from its filename.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract populates a SongMetadata for path. With strict=false, tag failures
// fall back to filename heuristics and only stat/open errors are returned.
// With strict=true any tag failure surfaces as *domain.ExtractionError.
func (e *Extractor) Extract(path string, strict bool) (domain.SongMetadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return domain.SongMetadata{}, &domain.ExtractionError{Path: path, Err: err}
	}

	song := domain.SongMetadata{
		ID:        domain.NewSongID(path),
		Path:      path,
		SizeBytes: fi.Size(),
		ModTimeMs: fi.ModTime().UnixMilli(),
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.SongMetadata{}, &domain.ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	m, tagErr := tag.ReadFrom(f)
	if tagErr != nil {
		if strict {
			return domain.SongMetadata{}, &domain.ExtractionError{Path: path, Err: tagErr}
		}
		e.logger.Debug("tag parse failed, using filename",
			slog.String("path", path),
			slog.String("error", tagErr.Error()),
		)
		fillFromFilename(&song)
	} else {
		song.Title = strings.TrimSpace(m.Title())
		song.Artist = strings.TrimSpace(m.Artist())
		song.AlbumArtist = strings.TrimSpace(m.AlbumArtist())
		song.Album = strings.TrimSpace(m.Album())
		song.Year = m.Year()
		song.Genre = strings.TrimSpace(m.Genre())
		song.Comment = strings.TrimSpace(m.Comment())
		song.TrackNumber, _ = m.Track()
		song.DiscNumber, _ = m.Disc()
		if song.Title == "" {
			fillFromFilename(&song)
		}
		if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
			song.Artwork = pic.Data
			song.HasArtwork = true
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if info, ok := mpeg.Probe(path); ok {
			song.DurationSec = info.DurationSec
			song.BitrateKbps = info.BitrateKbps
		}
	}

	return song, nil
}

// Artwork reads only the embedded picture from path. Returns nil when the
// file carries no usable picture.
func (e *Extractor) Artwork(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, &domain.ExtractionError{Path: path, Err: err}
	}
	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		return pic.Data, nil
	}
	return nil, nil
}

// trackTitleRe matches "07 - Title" / "07. Title" / "07 Title" basenames.
var trackTitleRe = regexp.MustCompile(`^(\d{1,3})\s*[-._]\s*(.+)$`)

// fillFromFilename derives title (and, when the name has an obvious
// "Artist - Title" shape, the artist) from the file's base name.
func fillFromFilename(song *domain.SongMetadata) {
	base := filepath.Base(song.Path)
	name := strings.TrimSpace(base[:len(base)-len(filepath.Ext(base))])
	if name == "" {
		return
	}

	if m := trackTitleRe.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && song.TrackNumber == 0 {
			song.TrackNumber = n
		}
		name = strings.TrimSpace(m[2])
	}

	if song.Artist == "" {
		if artist, title, ok := strings.Cut(name, " - "); ok {
			artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
			if artist != "" && title != "" {
				song.Artist = artist
				name = title
			}
		}
	}

	song.Title = name
}
