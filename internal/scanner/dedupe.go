package scanner

import (
	"sort"
	"strings"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

// durationSlackSec is the maximum duration difference, in seconds, for two
// songs with equal tags to be considered the same recording.
const durationSlackSec = 2

type dedupeKey struct {
	title, artist, album string
}

func keyOf(s domain.SongMetadata) dedupeKey {
	norm := func(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
	return dedupeKey{norm(s.Title), norm(s.Artist), norm(s.Album)}
}

// Dedupe collapses equivalent songs: equal lowercased trimmed
// (title, artist, album) and a duration difference of at most two seconds
// when both durations are known. From each class the song with the highest
// bitrate survives; ties fall to larger file size, then the
// lexicographically smaller path. Output preserves input order of the
// survivors, and the operation is idempotent.
func Dedupe(songs []domain.SongMetadata) []domain.SongMetadata {
	type class struct {
		winner domain.SongMetadata
		order  int // input index of the first member, for stable output
	}

	classesByKey := make(map[dedupeKey][]*class)
	for i, song := range songs {
		key := keyOf(song)
		var home *class
		for _, c := range classesByKey[key] {
			if sameDuration(c.winner, song) {
				home = c
				break
			}
		}
		if home == nil {
			classesByKey[key] = append(classesByKey[key], &class{winner: song, order: i})
			continue
		}
		if betterCopy(song, home.winner) {
			home.winner = song
		}
	}

	winners := make([]*class, 0, len(songs))
	for _, classes := range classesByKey {
		winners = append(winners, classes...)
	}
	// Restore discovery order.
	sort.Slice(winners, func(i, j int) bool { return winners[i].order < winners[j].order })
	out := make([]domain.SongMetadata, 0, len(winners))
	for _, c := range winners {
		out = append(out, c.winner)
	}
	return out
}

// sameDuration applies the two-second slack rule; an unknown duration on
// either side never separates a class.
func sameDuration(a, b domain.SongMetadata) bool {
	if a.DurationSec == 0 || b.DurationSec == 0 {
		return true
	}
	d := a.DurationSec - b.DurationSec
	if d < 0 {
		d = -d
	}
	return d <= durationSlackSec
}

// betterCopy reports whether candidate should replace current as the class
// winner.
func betterCopy(candidate, current domain.SongMetadata) bool {
	if candidate.BitrateKbps != current.BitrateKbps {
		return candidate.BitrateKbps > current.BitrateKbps
	}
	if candidate.SizeBytes != current.SizeBytes {
		return candidate.SizeBytes > current.SizeBytes
	}
	return candidate.Path < current.Path
}
