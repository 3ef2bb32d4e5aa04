package scanner

import (
	"reflect"
	"testing"

	"github.com/picccassso/Ariami-sub001/internal/domain"
)

func song(path, title, artist, album string, dur, kbps int, size int64) domain.SongMetadata {
	return domain.SongMetadata{
		ID:          domain.NewSongID(path),
		Path:        path,
		Title:       title,
		Artist:      artist,
		Album:       album,
		DurationSec: dur,
		BitrateKbps: kbps,
		SizeBytes:   size,
	}
}

func paths(songs []domain.SongMetadata) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.Path
	}
	return out
}

func TestDedupe_KeepsHighestBitrate(t *testing.T) {
	in := []domain.SongMetadata{
		song("/m/low.mp3", "Song", "Artist", "Album", 200, 128, 100),
		song("/m/high.mp3", "Song", "Artist", "Album", 201, 320, 100),
	}
	out := Dedupe(in)
	if len(out) != 1 || out[0].Path != "/m/high.mp3" {
		t.Errorf("survivors = %v, want [/m/high.mp3]", paths(out))
	}
}

func TestDedupe_TieBreaks(t *testing.T) {
	// Equal bitrate: larger file wins.
	out := Dedupe([]domain.SongMetadata{
		song("/m/small.mp3", "S", "A", "B", 100, 128, 100),
		song("/m/big.mp3", "S", "A", "B", 100, 128, 200),
	})
	if len(out) != 1 || out[0].Path != "/m/big.mp3" {
		t.Errorf("size tie-break: survivors = %v", paths(out))
	}

	// Equal bitrate and size: lexicographically smaller path wins.
	out = Dedupe([]domain.SongMetadata{
		song("/m/zzz.mp3", "S", "A", "B", 100, 0, 100),
		song("/m/aaa.mp3", "S", "A", "B", 100, 0, 100),
	})
	if len(out) != 1 || out[0].Path != "/m/aaa.mp3" {
		t.Errorf("path tie-break: survivors = %v", paths(out))
	}
}

func TestDedupe_CaseAndWhitespaceInsensitive(t *testing.T) {
	out := Dedupe([]domain.SongMetadata{
		song("/m/a.mp3", "  Song ", "ARTIST", "Album", 100, 128, 1),
		song("/m/b.mp3", "song", "artist", " album ", 101, 192, 1),
	})
	if len(out) != 1 {
		t.Errorf("case variants not merged: %v", paths(out))
	}
}

func TestDedupe_DurationSlack(t *testing.T) {
	// 3 seconds apart with both durations known: different recordings.
	out := Dedupe([]domain.SongMetadata{
		song("/m/a.mp3", "S", "A", "B", 100, 128, 1),
		song("/m/b.mp3", "S", "A", "B", 103, 128, 1),
	})
	if len(out) != 2 {
		t.Errorf("songs 3s apart merged: %v", paths(out))
	}

	// Unknown duration on one side: merged.
	out = Dedupe([]domain.SongMetadata{
		song("/m/a.mp3", "S", "A", "B", 100, 128, 1),
		song("/m/b.mp3", "S", "A", "B", 0, 192, 1),
	})
	if len(out) != 1 {
		t.Errorf("unknown-duration copy not merged: %v", paths(out))
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []domain.SongMetadata{
		song("/m/a.mp3", "One", "A", "X", 100, 128, 1),
		song("/m/b.mp3", "One", "A", "X", 101, 192, 1),
		song("/m/c.mp3", "Two", "A", "X", 50, 128, 1),
		song("/m/d.mp3", "Three", "B", "Y", 0, 0, 5),
	}
	once := Dedupe(in)
	twice := Dedupe(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedupe not idempotent:\n once %v\ntwice %v", paths(once), paths(twice))
	}
}

func TestDedupe_PreservesDiscoveryOrder(t *testing.T) {
	in := []domain.SongMetadata{
		song("/m/1.mp3", "A", "X", "L", 10, 128, 1),
		song("/m/2.mp3", "B", "X", "L", 10, 128, 1),
		song("/m/3.mp3", "C", "X", "L", 10, 128, 1),
	}
	out := Dedupe(in)
	want := []string{"/m/1.mp3", "/m/2.mp3", "/m/3.mp3"}
	if !reflect.DeepEqual(paths(out), want) {
		t.Errorf("order = %v, want %v", paths(out), want)
	}
}
