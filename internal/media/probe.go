package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

var ErrProbeFailed = errors.New("could not analyze audio file")

// AudioInfo is what ffprobe reports about a source file.
type AudioInfo struct {
	Duration   time.Duration `json:"duration"`
	FormatName string        `json:"format_name"`
	BitRate    int64         `json:"bit_rate"`
	SampleRate int64         `json:"sample_rate"`
	Channels   int64         `json:"channels"`
}

func (a AudioInfo) Seconds() float64 {
	return a.Duration.Seconds()
}

func probeArgs(path string) []string {
	return []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path}
}

// parseProbe reads ffprobe's JSON report. A missing or non-positive
// format.duration is reported as ErrProbeFailed.
func parseProbe(out []byte) (*AudioInfo, error) {
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("%w: invalid ffprobe output", ErrProbeFailed)
	}
	doc := gjson.ParseBytes(out)
	dur := doc.Get("format.duration")
	if !dur.Exists() || dur.Float() <= 0 {
		return nil, fmt.Errorf("%w: no duration", ErrProbeFailed)
	}

	info := &AudioInfo{
		Duration:   time.Duration(dur.Float() * float64(time.Second)),
		FormatName: doc.Get("format.format_name").String(),
		BitRate:    doc.Get("format.bit_rate").Int(),
	}
	audio := doc.Get(`streams.#(codec_type=="audio")`)
	if audio.Exists() {
		info.SampleRate = audio.Get("sample_rate").Int()
		info.Channels = audio.Get("channels").Int()
	}
	return info, nil
}

// Probe asks ffprobe for the length and layout of path.
func (p *Processor) Probe(ctx context.Context, path string) (*AudioInfo, error) {
	res, err := p.runner.Run(ctx, p.probeTimeout, p.ffprobe, probeArgs(path)...)
	if err != nil {
		if errors.Is(err, ErrToolMissing) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	return parseProbe(res.Stdout)
}
