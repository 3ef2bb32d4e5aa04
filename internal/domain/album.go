package domain

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// AlbumID is derived from the album grouping key, so the same album/artist
// pair always maps to the same ID regardless of scan order.
type AlbumID string

const albumIDLen = 12

// UnknownArtist is the grouping artist used when a song carries neither an
// album artist nor an artist tag.
const UnknownArtist = "Unknown Artist"

// AlbumKey builds the canonical grouping key: lowercased, trimmed album and
// artist joined by "|||". The artist component prefers the album artist.
func AlbumKey(album, albumArtist, artist string) string {
	who := albumArtist
	if who == "" {
		who = artist
	}
	if who == "" {
		who = UnknownArtist
	}
	return strings.ToLower(strings.TrimSpace(album)) + "|||" + strings.ToLower(strings.TrimSpace(who))
}

// NewAlbumID returns the first 12 hex characters of the MD5 of the album key.
func NewAlbumID(key string) AlbumID {
	sum := md5.Sum([]byte(key))
	return AlbumID(hex.EncodeToString(sum[:])[:albumIDLen])
}

// Album groups songs that share an album key. Title and artist come from the
// first song encountered for the group; Songs is kept in sorted order.
type Album struct {
	ID     AlbumID        `json:"id"`
	Title  string         `json:"title"`
	Artist string         `json:"artist"`
	Year   int            `json:"year,omitempty"`
	Songs  []SongMetadata `json:"songs"`
}

// Valid reports whether the album may appear in public views.
// Groups of fewer than two songs are demoted to standalone.
func (a *Album) Valid() bool {
	return len(a.Songs) >= 2
}

// SortSongs orders songs by (disc, track, title). Missing disc numbers sort
// as disc 1; missing track numbers sort last.
func (a *Album) SortSongs() {
	sort.SliceStable(a.Songs, func(i, j int) bool {
		di, dj := a.Songs[i].DiscNumber, a.Songs[j].DiscNumber
		if di == 0 {
			di = 1
		}
		if dj == 0 {
			dj = 1
		}
		if di != dj {
			return di < dj
		}
		ti, tj := a.Songs[i].TrackNumber, a.Songs[j].TrackNumber
		if ti == 0 {
			ti = 9999
		}
		if tj == 0 {
			tj = 9999
		}
		if ti != tj {
			return ti < tj
		}
		return a.Songs[i].DisplayTitle() < a.Songs[j].DisplayTitle()
	})
}

// TotalDuration sums the known song durations in seconds.
func (a *Album) TotalDuration() int {
	var total int
	for _, s := range a.Songs {
		total += s.DurationSec
	}
	return total
}

// DurationsKnown reports whether every song in the album has a duration.
func (a *Album) DurationsKnown() bool {
	for _, s := range a.Songs {
		if s.DurationSec == 0 {
			return false
		}
	}
	return true
}
