package scanner

import (
	"strings"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

// BuildResult is the album grouping of a deduplicated song set.
type BuildResult struct {
	Albums     map[domain.AlbumID]*domain.Album
	Standalone []domain.SongMetadata
}

// BuildAlbums groups songs by album key. Songs without an album tag and
// groups of fewer than two songs land in the standalone set. Album title,
// artist and year come from the first song encountered for the group; song
// order within an album is (disc, track, title).
func BuildAlbums(songs []domain.SongMetadata) BuildResult {
	result := BuildResult{Albums: make(map[domain.AlbumID]*domain.Album)}

	order := make([]domain.AlbumID, 0)
	for _, song := range songs {
		if strings.TrimSpace(song.Album) == "" {
			result.Standalone = append(result.Standalone, song)
			continue
		}
		key := domain.AlbumKey(song.Album, song.AlbumArtist, song.Artist)
		id := domain.NewAlbumID(key)
		album, ok := result.Albums[id]
		if !ok {
			artist := song.AlbumArtist
			if artist == "" {
				artist = song.Artist
			}
			if artist == "" {
				artist = domain.UnknownArtist
			}
			album = &domain.Album{
				ID:     id,
				Title:  strings.TrimSpace(song.Album),
				Artist: artist,
				Year:   song.Year,
			}
			result.Albums[id] = album
			order = append(order, id)
		}
		album.Songs = append(album.Songs, song)
	}

	// Demote single-song groups, preserving first-seen order so the
	// standalone set stays deterministic.
	for _, id := range order {
		album := result.Albums[id]
		if album.Valid() {
			album.SortSongs()
			continue
		}
		result.Standalone = append(result.Standalone, album.Songs...)
		delete(result.Albums, id)
	}
	return result
}
