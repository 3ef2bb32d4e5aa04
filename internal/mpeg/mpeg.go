// Package mpeg reads MPEG audio frame headers to estimate track durations
// without decoding any audio. It understands ID3v2 prefixes, Xing/Info and
// VBRI headers for VBR files, and falls back to a constant-bitrate estimate.
package mpeg

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
)

// probeWindowBytes is how much audio is scanned for the first frame header.
const probeWindowBytes = 64 << 10

// id3v1Len is subtracted from the audio byte count in the CBR estimate to
// account for a possible trailing ID3v1 tag.
const id3v1Len = 128

// Info summarizes the first audio frame and the derived duration.
type Info struct {
	DurationSec int
	BitrateKbps int
	SampleRate  int
	VBR         bool
}

type version int

const (
	version1 version = iota
	version2
	version2_5
)

type layer int

const (
	layer1 layer = iota
	layer2
	layer3
)

// Bitrate tables in kbps, indexed by bitrate index 1..14.
// Index 0 ("free") and 15 are rejected before lookup.
var kbitRates = map[version]map[layer][15]int{
	version1: {
		layer1: {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448},
		layer2: {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384},
		layer3: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
	},
	version2: {
		layer1: {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256},
		layer2: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
		layer3: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	},
}

// Sample rates in hertz, indexed by sample-rate index 0..2. Index 3 is
// reserved and rejected.
var sampleRates = map[version][3]int{
	version1:   {44100, 48000, 32000},
	version2:   {22050, 24000, 16000},
	version2_5: {11025, 12000, 8000},
}

func samplesPerFrame(v version, l layer) int {
	switch l {
	case layer1:
		return 384
	case layer2:
		return 1152
	default:
		if v == version1 {
			return 1152
		}
		return 576
	}
}

// frameHeader is a parsed 4-byte MPEG audio frame header.
type frameHeader struct {
	version    version
	layer      layer
	kbitRate   int
	sampleRate int
	padded     bool
}

func (h frameHeader) samplesPerFrame() int { return samplesPerFrame(h.version, h.layer) }

// parseFrameHeader decodes b[0:4]. It rejects reserved versions, reserved
// layers, free/bad bitrate indexes and the reserved sample-rate index.
func parseFrameHeader(b []byte) (frameHeader, bool) {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return frameHeader{}, false
	}
	var v version
	switch (b[1] >> 3) & 0x3 {
	case 0x0:
		v = version2_5
	case 0x2:
		v = version2
	case 0x3:
		v = version1
	default:
		return frameHeader{}, false // reserved version
	}
	var l layer
	switch (b[1] >> 1) & 0x3 {
	case 0x1:
		l = layer3
	case 0x2:
		l = layer2
	case 0x3:
		l = layer1
	default:
		return frameHeader{}, false // reserved layer
	}
	brIdx := b[2] >> 4
	if brIdx == 0 || brIdx == 15 {
		return frameHeader{}, false
	}
	srIdx := (b[2] >> 2) & 0x3
	if srIdx == 3 {
		return frameHeader{}, false
	}

	tv := v
	if tv == version2_5 {
		tv = version2 // shares the version-2 bitrate table
	}
	return frameHeader{
		version:    v,
		layer:      l,
		kbitRate:   kbitRates[tv][l][brIdx],
		sampleRate: sampleRates[v][srIdx],
		padded:     b[2]&0x2 != 0,
	}, true
}

// syncsafe decodes the 4-byte syncsafe integer used for ID3v2 tag sizes:
// bit 7 of every byte is masked out and the remaining 7-bit groups are
// concatenated.
func syncsafe(b []byte) int64 {
	return int64(b[0]&0x7F)<<21 | int64(b[1]&0x7F)<<14 | int64(b[2]&0x7F)<<7 | int64(b[3]&0x7F)
}

// Duration returns the track duration in whole seconds. ok is false when the
// file has no recognizable MPEG audio; malformed input never panics or
// returns an error.
func Duration(path string) (int, bool) {
	info, ok := Probe(path)
	if !ok {
		return 0, false
	}
	return info.DurationSec, true
}

// Probe parses the first audio frame of the file at path and derives the
// duration from a Xing/Info or VBRI header when present, otherwise from a
// constant-bitrate estimate over the audio byte count.
func Probe(path string) (Info, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, false
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return Info{}, false
	}

	head := make([]byte, 10)
	if _, err := io.ReadFull(f, head); err != nil {
		return Info{}, false
	}

	var audioStart int64
	if bytes.HasPrefix(head, []byte("ID3")) {
		audioStart = 10 + syncsafe(head[6:10])
	}
	if audioStart >= fi.Size() {
		return Info{}, false
	}

	buf := make([]byte, probeWindowBytes)
	n, err := f.ReadAt(buf, audioStart)
	if err != nil && err != io.EOF {
		return Info{}, false
	}
	buf = buf[:n]

	for i := 0; i+4 <= len(buf); i++ {
		hdr, ok := parseFrameHeader(buf[i:])
		if !ok {
			continue
		}
		info := Info{
			BitrateKbps: hdr.kbitRate,
			SampleRate:  hdr.sampleRate,
		}

		// VBR headers sit after the 4-byte header plus the side information,
		// whose length depends on version and channel mode. Checking the
		// three possible offsets avoids decoding the mode bits.
		if frames, ok := findVBRFrames(buf[i:], hdr); ok {
			info.VBR = true
			info.DurationSec = int(math.Round(float64(frames) * float64(hdr.samplesPerFrame()) / float64(hdr.sampleRate)))
			return info, true
		}

		audioBytes := fi.Size() - audioStart - int64(i) - id3v1Len
		if audioBytes <= 0 || hdr.kbitRate == 0 {
			return Info{}, false
		}
		info.DurationSec = int(math.Round(float64(audioBytes) * 8 / float64(hdr.kbitRate*1000)))
		return info, true
	}
	return Info{}, false
}

// findVBRFrames looks for a Xing/Info or VBRI header inside the first frame
// and returns the total frame count it reports.
func findVBRFrames(frame []byte, hdr frameHeader) (int, bool) {
	for _, off := range []int{4 + 32, 4 + 17, 4 + 9} {
		if off+12 > len(frame) {
			continue
		}
		magic := string(frame[off : off+4])
		if magic != "Xing" && magic != "Info" {
			continue
		}
		flags := binary.BigEndian.Uint32(frame[off+4 : off+8])
		if flags&0x1 == 0 {
			continue // header present but lacks a frame count
		}
		frames := binary.BigEndian.Uint32(frame[off+8 : off+12])
		if frames > 0 {
			return int(frames), true
		}
	}

	// VBRI (Fraunhofer) is always 32 bytes past the side-info start; the
	// frame count lives at offset 14 within the header.
	const vbriOff = 4 + 32
	if vbriOff+18 <= len(frame) && string(frame[vbriOff:vbriOff+4]) == "VBRI" {
		frames := binary.BigEndian.Uint32(frame[vbriOff+14 : vbriOff+18])
		if frames > 0 {
			return int(frames), true
		}
	}
	return 0, false
}
