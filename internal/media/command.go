package media

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Template names the ffmpeg argument layout used for a run.
type Template string

const (
	TemplateSimpleLoop     Template = "simple_loop"
	TemplateCrossfadeChain Template = "crossfade_chain"
)

// Encoding is the audio codec section of an ffmpeg command.
type Encoding struct {
	Codec   string
	Bitrate string
}

func (e Encoding) Args() []string {
	args := []string{"-c:a", e.Codec}
	if e.Bitrate != "" {
		args = append(args, "-b:a", e.Bitrate)
	}
	return args
}

// EncodingFor picks the codec for format. An MP3 without an explicit quality
// keeps the bitrate of the layout: 192k for the hosted simple loop, 320k
// otherwise.
func EncodingFor(format OutputFormat, quality string, hosted bool) Encoding {
	switch format {
	case FormatWAV:
		if quality == "24-bit" {
			return Encoding{Codec: "pcm_s24le"}
		}
		return Encoding{Codec: "pcm_s16le"}
	case FormatM4A:
		return Encoding{Codec: "aac", Bitrate: "256k"}
	case FormatFLAC:
		return Encoding{Codec: "flac"}
	}
	enc := Encoding{Codec: "mp3", Bitrate: "320k"}
	if hosted {
		enc = Encoding{Codec: "libmp3lame", Bitrate: "192k"}
	}
	if quality != "" && quality != "high" {
		enc.Bitrate = quality
	}
	return enc
}

// ExtendSpec describes one extend run. Original is the probed source length.
type ExtendSpec struct {
	Input     string
	Output    string
	Target    time.Duration
	Original  time.Duration
	Crossfade float64
	Hosted    bool
	Format    OutputFormat
	Quality   string
}

// Plan is a built ffmpeg invocation without the binary name.
type Plan struct {
	Args      []string
	Template  Template
	Loops     int
	FadeStart float64
}

// LoopsNeeded returns how many copies of the source cover target, never less
// than two.
func LoopsNeeded(target, original time.Duration) int {
	if original <= 0 {
		return 2
	}
	loops := int(target.Seconds()/original.Seconds()) + 1
	if loops < 2 {
		loops = 2
	}
	return loops
}

// FadeStart is where the closing fade-out begins, clamped at zero.
func FadeStart(target time.Duration) float64 {
	start := target.Seconds() - FadeOutSeconds
	if start < 0 {
		return 0
	}
	return start
}

// BuildExtendArgs lays out the ffmpeg arguments for spec. Hosted runs always
// use the simple loop; local runs chain up to MaxChainedInputs copies with
// acrossfade and fall back to the simple loop beyond that.
func BuildExtendArgs(spec ExtendSpec) (Plan, error) {
	if spec.Input == "" || spec.Output == "" {
		return Plan{}, fmt.Errorf("input and output paths are required")
	}
	if spec.Target <= 0 {
		return Plan{}, fmt.Errorf("target duration must be positive")
	}

	fade := FadeStart(spec.Target)
	target := formatSeconds(spec.Target.Seconds())
	enc := EncodingFor(spec.Format, spec.Quality, spec.Hosted)

	if spec.Hosted {
		return simpleLoop(spec, target, fade, enc, 0), nil
	}

	loops := LoopsNeeded(spec.Target, spec.Original)
	if loops > MaxChainedInputs {
		return simpleLoop(spec, target, fade, enc, loops), nil
	}

	args := make([]string, 0, loops*2+12)
	for i := 0; i < loops; i++ {
		args = append(args, "-i", spec.Input)
	}
	filter := CrossfadeFilter(loops, spec.Crossfade) + ";[out]" + FadeOutFilter(fade) + "[final]"
	args = append(args, "-filter_complex", filter, "-map", "[final]", "-t", target)
	args = append(args, enc.Args()...)
	args = append(args, "-y", spec.Output)

	return Plan{Args: args, Template: TemplateCrossfadeChain, Loops: loops, FadeStart: fade}, nil
}

func simpleLoop(spec ExtendSpec, target string, fade float64, enc Encoding, loops int) Plan {
	args := []string{
		"-stream_loop", "-1",
		"-i", spec.Input,
		"-af", FadeOutFilter(fade),
		"-t", target,
	}
	args = append(args, enc.Args()...)
	args = append(args, "-y", spec.Output)
	return Plan{Args: args, Template: TemplateSimpleLoop, Loops: loops, FadeStart: fade}
}

// CrossfadeFilter chains inputs with acrossfade, naming the last pad [out].
func CrossfadeFilter(inputs int, crossfade float64) string {
	if inputs < 2 {
		return "[0:a]anull[out]"
	}
	d := formatSeconds(crossfade)
	var b strings.Builder
	prev := "[0:a]"
	for i := 1; i < inputs; i++ {
		label := fmt.Sprintf("[af%d]", i)
		if i == inputs-1 {
			label = "[out]"
		}
		if i > 1 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%s[%d:a]acrossfade=d=%s%s", prev, i, d, label)
		prev = label
	}
	return b.String()
}

func FadeOutFilter(start float64) string {
	return fmt.Sprintf("afade=t=out:st=%s:d=%d", formatSeconds(start), FadeOutSeconds)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
