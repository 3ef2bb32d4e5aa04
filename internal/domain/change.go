package domain

import (
	"errors"
	"time"
)

// ChangeType tags a file-system event affecting the music folder.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
	ChangeRenamed  ChangeType = "renamed"
)

// FileChange is one observed file-system event. OldPath is set only for
// renames.
type FileChange struct {
	Type    ChangeType `json:"type"`
	Path    string     `json:"path"`
	OldPath string     `json:"oldPath,omitempty"`
	Time    time.Time  `json:"time"`
}

// LibraryUpdate is the delta produced by processing a batch of file changes.
// The three ID sets are pairwise disjoint.
type LibraryUpdate struct {
	Added     []SongID  `json:"added"`
	Removed   []SongID  `json:"removed"`
	Modified  []SongID  `json:"modified"`
	Albums    []AlbumID `json:"affectedAlbums"`
	Timestamp time.Time `json:"timestamp"`

	// Extracted metadata for added/modified songs, keyed by ID. Carried so
	// that applying the update does not have to touch the files again.
	Songs map[SongID]SongMetadata `json:"-"`
}

// Empty reports whether the update carries no changes at all.
func (u LibraryUpdate) Empty() bool {
	return len(u.Added) == 0 && len(u.Removed) == 0 && len(u.Modified) == 0
}

// Validate checks that the delta sets are pairwise disjoint.
func (u LibraryUpdate) Validate() error {
	seen := make(map[SongID]string, len(u.Added)+len(u.Removed)+len(u.Modified))
	for _, set := range []struct {
		name string
		ids  []SongID
	}{
		{"added", u.Added},
		{"removed", u.Removed},
		{"modified", u.Modified},
	} {
		for _, id := range set.ids {
			if prev, ok := seen[id]; ok {
				return errors.New("song " + string(id) + " appears in both " + prev + " and " + set.name)
			}
			seen[id] = set.name
		}
	}
	return nil
}
