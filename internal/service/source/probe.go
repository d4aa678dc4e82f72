package source

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
)

// Format is the container type guessed from a file's leading bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatWebM
	FormatMP4
	FormatAudio
)

var matroskaMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

func (f Format) String() string {
	switch f {
	case FormatWebM:
		return "webm"
	case FormatMP4:
		return "mp4"
	case FormatAudio:
		return "audio"
	}
	return "unknown"
}

// Probe reads the first 12 bytes of path and classifies the container. The head bytes are
// returned hex encoded for diagnostics.
func Probe(path string) (Format, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, "", err
	}
	defer f.Close()

	head := make([]byte, 12)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, "", err
	}
	head = head[:n]

	return DetectFormat(head), hex.EncodeToString(head), nil
}

// DetectFormat classifies a container from its leading bytes.
func DetectFormat(head []byte) Format {
	if len(head) < 4 {
		return FormatUnknown
	}
	switch {
	case bytes.HasPrefix(head, matroskaMagic):
		return FormatWebM
	case bytes.Contains(head, []byte("ftyp")):
		return FormatMP4
	case bytes.HasPrefix(head, []byte("ID3")), head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatAudio
	}
	return FormatUnknown
}
