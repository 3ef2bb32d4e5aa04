package mpeg

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// mpeg1Layer3Header returns a frame header for MPEG1 Layer III, 128 kbps,
// 44100 Hz, no padding.
func mpeg1Layer3Header() []byte {
	return []byte{0xFF, 0xFB, 0x90, 0x00}
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProbe_XingHeader(t *testing.T) {
	buf := make([]byte, 4096)
	copy(buf, mpeg1Layer3Header())
	// Xing header after 4-byte header + 32 bytes of side info.
	off := 4 + 32
	copy(buf[off:], "Xing")
	binary.BigEndian.PutUint32(buf[off+4:], 0x1)  // frames field present
	binary.BigEndian.PutUint32(buf[off+8:], 9000) // frame count

	path := writeTemp(t, "vbr.mp3", buf)
	info, ok := Probe(path)
	if !ok {
		t.Fatal("Probe failed on Xing file")
	}
	if !info.VBR {
		t.Error("expected VBR=true")
	}
	// round(9000 * 1152 / 44100) = 235
	if info.DurationSec != 235 {
		t.Errorf("duration = %d, want 235", info.DurationSec)
	}
	if info.SampleRate != 44100 {
		t.Errorf("sampleRate = %d, want 44100", info.SampleRate)
	}
}

func TestProbe_CBREstimate(t *testing.T) {
	// 160000 audio bytes at 128 kbps = 10 seconds; the extra 128 bytes
	// stand in for a trailing ID3v1 tag.
	buf := make([]byte, 160000+128)
	copy(buf, mpeg1Layer3Header())

	path := writeTemp(t, "cbr.mp3", buf)
	info, ok := Probe(path)
	if !ok {
		t.Fatal("Probe failed on CBR file")
	}
	if info.VBR {
		t.Error("expected VBR=false")
	}
	if info.DurationSec != 10 {
		t.Errorf("duration = %d, want 10", info.DurationSec)
	}
	if info.BitrateKbps != 128 {
		t.Errorf("bitrate = %d, want 128", info.BitrateKbps)
	}
}

func TestProbe_SkipsID3v2(t *testing.T) {
	const tagSize = 256
	buf := make([]byte, 10+tagSize+160000+128)
	copy(buf, "ID3")
	buf[3], buf[4] = 4, 0 // v2.4
	// Syncsafe size: 256 = 0b10_0000000, encoded as bytes 0,0,2,0.
	buf[6], buf[7], buf[8], buf[9] = 0, 0, 2, 0
	copy(buf[10+tagSize:], mpeg1Layer3Header())

	path := writeTemp(t, "tagged.mp3", buf)
	info, ok := Probe(path)
	if !ok {
		t.Fatal("Probe failed on ID3v2-prefixed file")
	}
	if info.DurationSec != 10 {
		t.Errorf("duration = %d, want 10", info.DurationSec)
	}
}

func TestProbe_MalformedInput(t *testing.T) {
	path := writeTemp(t, "not-audio.mp3", []byte("this is definitely not an mpeg stream, just text padding to pass ten bytes"))
	if _, ok := Probe(path); ok {
		t.Error("Probe reported success on text input")
	}

	if _, ok := Probe(filepath.Join(t.TempDir(), "missing.mp3")); ok {
		t.Error("Probe reported success on missing file")
	}
}

func TestParseFrameHeader_Rejections(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{"no sync", []byte{0x00, 0x00, 0x00, 0x00}},
		{"reserved version", []byte{0xFF, 0xE8, 0x90, 0x00}}, // version bits 01
		{"reserved layer", []byte{0xFF, 0xF9, 0x90, 0x00}},   // layer bits 00
		{"free bitrate", []byte{0xFF, 0xFB, 0x00, 0x00}},     // bitrate index 0
		{"bad bitrate", []byte{0xFF, 0xFB, 0xF0, 0x00}},      // bitrate index 15
		{"reserved sample rate", []byte{0xFF, 0xFB, 0x9C, 0x00}},
	}
	for _, tt := range tests {
		if _, ok := parseFrameHeader(tt.b); ok {
			t.Errorf("%s: header accepted", tt.name)
		}
	}
}

func TestSyncsafe(t *testing.T) {
	if got := syncsafe([]byte{0, 0, 2, 0}); got != 256 {
		t.Errorf("syncsafe = %d, want 256", got)
	}
	// Bit 7 of every byte must be masked.
	if got := syncsafe([]byte{0x80, 0x80, 0x82, 0x80}); got != 256 {
		t.Errorf("syncsafe with high bits = %d, want 256", got)
	}
}
