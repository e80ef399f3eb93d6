package api

import (
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// containers ffmpeg reads audio from even when the sniffed type is not audio/*.
var audioContainers = []string{"application/ogg", "video/mp4"}

// detectAudio sniffs the header of r and rejects content that is not audio.
func detectAudio(r io.Reader, name string) (string, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	for m := mt; m != nil; m = m.Parent() {
		if isAudioMIME(m) {
			return mt.String(), nil
		}
	}
	return "", fmt.Errorf("%s does not look like audio (%s)", name, mt.String())
}

func isAudioMIME(m *mimetype.MIME) bool {
	if strings.HasPrefix(m.String(), "audio/") {
		return true
	}
	for _, c := range audioContainers {
		if m.Is(c) {
			return true
		}
	}
	return false
}
