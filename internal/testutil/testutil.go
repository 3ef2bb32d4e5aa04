// Package testutil builds small synthetic audio fixtures for tests.
package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Tags describes the ID3v2.3 frames to embed in a fixture file.
type Tags struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Track       int
	Disc        int
	Year        int
}

// WriteBareMP3 writes an untagged CBR MP3 (128 kbps, 44100 Hz, ~10 s) and
// returns its path.
func WriteBareMP3(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, cbrAudio(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteTaggedMP3 writes an MP3 with an ID3v2.3 tag followed by CBR audio.
func WriteTaggedMP3(t *testing.T, dir, name string, tags Tags) string {
	t.Helper()

	var frames []byte
	add := func(id, text string) {
		if text != "" {
			frames = append(frames, id3v23Frame(id, text)...)
		}
	}
	add("TIT2", tags.Title)
	add("TPE1", tags.Artist)
	add("TPE2", tags.AlbumArtist)
	add("TALB", tags.Album)
	if tags.Track > 0 {
		add("TRCK", strconv.Itoa(tags.Track))
	}
	if tags.Disc > 0 {
		add("TPOS", strconv.Itoa(tags.Disc))
	}
	if tags.Year > 0 {
		add("TYER", strconv.Itoa(tags.Year))
	}

	header := []byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 0}
	putSyncsafe(header[6:10], len(frames))

	data := append(header, frames...)
	data = append(data, cbrAudio()...)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// cbrAudio returns a single MPEG1 Layer III frame header (128 kbps,
// 44100 Hz) padded to ten seconds' worth of bytes plus an ID3v1-sized tail.
func cbrAudio() []byte {
	buf := make([]byte, 160000+128)
	copy(buf, []byte{0xFF, 0xFB, 0x90, 0x00})
	return buf
}

// id3v23Frame encodes one text frame: 4-byte ID, 4-byte big-endian size,
// 2 flag bytes, then an ISO-8859-1 encoding byte and the text.
func id3v23Frame(id, text string) []byte {
	content := append([]byte{0}, []byte(text)...)
	b := make([]byte, 10+len(content))
	copy(b, id)
	binary.BigEndian.PutUint32(b[4:8], uint32(len(content)))
	copy(b[10:], content)
	return b
}

func putSyncsafe(dst []byte, n int) {
	dst[0] = byte(n >> 21 & 0x7F)
	dst[1] = byte(n >> 14 & 0x7F)
	dst[2] = byte(n >> 7 & 0x7F)
	dst[3] = byte(n & 0x7F)
}
