package library

import (
	"sort"
	"time"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

// AlbumView is the wire shape of one album in the library snapshot.
type AlbumView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	CoverArt  string `json:"coverArt"`
	SongCount int    `json:"songCount"`
	Duration  int    `json:"duration"`
}

// SongView is the wire shape of one song.
type SongView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	AlbumID     string `json:"albumId,omitempty"`
	Duration    int    `json:"duration"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}

// PlaylistView is the wire shape of one folder playlist.
type PlaylistView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	SongIDs []string `json:"songIds"`
}

// LibraryView is the full catalogue snapshot served by the API.
type LibraryView struct {
	Albums         []AlbumView    `json:"albums"`
	Songs          []SongView     `json:"songs"`
	Playlists      []PlaylistView `json:"playlists"`
	DurationsReady bool           `json:"durationsReady"`
	LastUpdated    string         `json:"lastUpdated"`
}

// AlbumDetailView is the album endpoint's response shape.
type AlbumDetailView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Artist      string     `json:"artist"`
	Year        int        `json:"year,omitempty"`
	CoverArt    string     `json:"coverArt"`
	SongCount   int        `json:"songCount"`
	Duration    int        `json:"duration"`
	Songs       []SongView `json:"songs"`
	LastUpdated string     `json:"lastUpdated"`
}

// APILibrary builds the snapshot using only durations already known, either
// from extraction or from earlier lazy probes. DurationsReady flips to false
// when any song's duration is still unknown.
func (m *Manager) APILibrary(baseURL string) LibraryView {
	return m.buildLibraryView(baseURL, false)
}

// APILibraryWithDurations resolves every unknown duration synchronously
// before building the snapshot. Songs whose duration cannot be determined
// stay at zero.
func (m *Manager) APILibraryWithDurations(baseURL string) LibraryView {
	if lib := m.CurrentLibrary(); lib != nil {
		for _, s := range lib.AllSongs() {
			if s.DurationSec == 0 {
				m.SongDuration(s.ID)
			}
		}
	}
	return m.buildLibraryView(baseURL, true)
}

func (m *Manager) buildLibraryView(baseURL string, resolved bool) LibraryView {
	view := LibraryView{
		Albums:      []AlbumView{},
		Songs:       []SongView{},
		Playlists:   []PlaylistView{},
		LastUpdated: m.lastUpdated(),
	}

	lib := m.CurrentLibrary()
	if lib == nil {
		view.DurationsReady = true
		return view
	}

	ready := true
	addSong := func(s domain.SongMetadata, albumID domain.AlbumID) {
		secs, known := m.knownDuration(s)
		// After a synchronous resolution pass every song has been probed, so
		// an unknown duration is permanent (undecodable file), not pending;
		// the snapshot reports ready with those songs left at zero.
		if !known && !resolved {
			ready = false
		}
		view.Songs = append(view.Songs, SongView{
			ID:          string(s.ID),
			Title:       s.DisplayTitle(),
			Artist:      s.Artist,
			AlbumID:     string(albumID),
			Duration:    secs,
			TrackNumber: s.TrackNumber,
		})
	}

	albumIDs := make([]domain.AlbumID, 0, len(lib.Albums))
	for id := range lib.Albums {
		albumIDs = append(albumIDs, id)
	}
	sort.Slice(albumIDs, func(i, j int) bool {
		a, b := lib.Albums[albumIDs[i]], lib.Albums[albumIDs[j]]
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.Artist < b.Artist
	})

	for _, id := range albumIDs {
		album := lib.Albums[id]
		total := 0
		for _, s := range album.Songs {
			secs, _ := m.knownDuration(s)
			total += secs
			addSong(s, id)
		}
		view.Albums = append(view.Albums, AlbumView{
			ID:        string(id),
			Title:     album.Title,
			Artist:    album.Artist,
			CoverArt:  coverArtURL(baseURL, id),
			SongCount: len(album.Songs),
			Duration:  total,
		})
	}
	for _, s := range lib.Standalone {
		addSong(s, "")
	}

	for _, pl := range lib.Playlists {
		ids := make([]string, len(pl.SongIDs))
		for i, sid := range pl.SongIDs {
			ids[i] = string(sid)
		}
		view.Playlists = append(view.Playlists, PlaylistView{
			ID:      string(pl.ID),
			Name:    pl.Name,
			SongIDs: ids,
		})
	}

	view.DurationsReady = ready
	return view
}

// AlbumDetail builds the album endpoint response, resolving per-song
// durations lazily.
func (m *Manager) AlbumDetail(id domain.AlbumID, baseURL string) (AlbumDetailView, error) {
	lib := m.CurrentLibrary()
	if lib == nil {
		return AlbumDetailView{}, domain.ErrNotFound
	}
	album, ok := lib.Albums[id]
	if !ok {
		return AlbumDetailView{}, domain.ErrNotFound
	}

	detail := AlbumDetailView{
		ID:          string(id),
		Title:       album.Title,
		Artist:      album.Artist,
		Year:        album.Year,
		CoverArt:    coverArtURL(baseURL, id),
		SongCount:   len(album.Songs),
		Songs:       make([]SongView, 0, len(album.Songs)),
		LastUpdated: m.lastUpdated(),
	}
	for _, s := range album.Songs {
		secs, _ := m.SongDuration(s.ID)
		detail.Duration += secs
		detail.Songs = append(detail.Songs, SongView{
			ID:          string(s.ID),
			Title:       s.DisplayTitle(),
			Artist:      s.Artist,
			AlbumID:     string(id),
			Duration:    secs,
			TrackNumber: s.TrackNumber,
		})
	}
	return detail, nil
}

// Playlists builds the playlist endpoint response.
func (m *Manager) Playlists() []PlaylistView {
	lib := m.CurrentLibrary()
	if lib == nil {
		return []PlaylistView{}
	}
	out := make([]PlaylistView, 0, len(lib.Playlists))
	for _, pl := range lib.Playlists {
		ids := make([]string, len(pl.SongIDs))
		for i, sid := range pl.SongIDs {
			ids[i] = string(sid)
		}
		out = append(out, PlaylistView{ID: string(pl.ID), Name: pl.Name, SongIDs: ids})
	}
	return out
}

// knownDuration returns the duration without touching the file: the scan
// value when present, otherwise a positive lazy-probe result already cached.
func (m *Manager) knownDuration(s domain.SongMetadata) (int, bool) {
	if s.DurationSec > 0 {
		return s.DurationSec, true
	}
	if secs, ok := m.durationCache.Get(s.ID); ok && secs > 0 {
		return secs, true
	}
	return 0, false
}

func (m *Manager) lastUpdated() string {
	if t := m.LastScan(); !t.IsZero() {
		return t.UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func coverArtURL(baseURL string, id domain.AlbumID) string {
	return baseURL + "/artwork/" + string(id)
}
