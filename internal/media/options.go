package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects what a processing request does with its uploads.
type Mode string

const (
	ModeExtend        Mode = "extend"
	ModeCombine       Mode = "combine"
	ModeCombineExtend Mode = "combine_extend"
)

var Modes = []Mode{ModeExtend, ModeCombine, ModeCombineExtend}

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeExtend, ModeCombine, ModeCombineExtend:
		return m, nil
	case "":
		return ModeExtend, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

func (m Mode) Label() string {
	switch m {
	case ModeExtend:
		return "Extend Single Audio"
	case ModeCombine:
		return "Combine Multiple Audio"
	case ModeCombineExtend:
		return "Combine Then Extend"
	}
	return string(m)
}

// Suffix is appended to download names when the caller gives no custom suffix.
func (m Mode) Suffix() string {
	switch m {
	case ModeExtend:
		return "extended"
	case ModeCombine:
		return "combined"
	case ModeCombineExtend:
		return "combined_extended"
	}
	return "processed"
}

// NeedsTarget reports whether the mode takes a target duration.
func (m Mode) NeedsTarget() bool {
	return m == ModeExtend || m == ModeCombineExtend
}

// Method is the seamless-transition method picked by the user. It is
// recorded with the job; ffmpeg arguments do not depend on it.
type Method string

const (
	MethodBasicCrossfade    Method = "basic_crossfade"
	MethodSmoothCurves      Method = "smooth_curves"
	MethodEQMatched         Method = "eq_matched"
	MethodPhaseAligned      Method = "phase_aligned"
	MethodDynamicNormalized Method = "dynamic_normalized"
)

type MethodOption struct {
	Value Method `json:"value"`
	Label string `json:"label"`
}

var Methods = []MethodOption{
	{MethodBasicCrossfade, "Basic Crossfade (Recommended)"},
	{MethodSmoothCurves, "Smooth Volume Curves"},
	{MethodEQMatched, "EQ Matched Transitions"},
	{MethodPhaseAligned, "Phase Aligned (Advanced)"},
	{MethodDynamicNormalized, "Dynamic Normalized"},
}

func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return MethodBasicCrossfade, nil
	}
	for _, opt := range Methods {
		if string(opt.Value) == s {
			return opt.Value, nil
		}
	}
	return "", fmt.Errorf("unknown method %q", s)
}

func (m Method) Label() string {
	for _, opt := range Methods {
		if opt.Value == m {
			return opt.Label
		}
	}
	return string(m)
}

// OutputFormat is the container written by ffmpeg.
type OutputFormat string

const (
	FormatMP3  OutputFormat = "mp3"
	FormatWAV  OutputFormat = "wav"
	FormatM4A  OutputFormat = "m4a"
	FormatFLAC OutputFormat = "flac"
)

var Formats = []OutputFormat{FormatMP3, FormatWAV, FormatM4A, FormatFLAC}

func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMP3, FormatWAV, FormatM4A, FormatFLAC:
		return f, nil
	case "":
		return FormatMP3, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

var mimeTypes = map[OutputFormat]string{
	FormatMP3:  "audio/mp3",
	FormatWAV:  "audio/wav",
	FormatM4A:  "audio/mp4",
	FormatFLAC: "audio/flac",
}

// MimeType returns the download MIME type for the format.
func (f OutputFormat) MimeType() string {
	if mt, ok := mimeTypes[f]; ok {
		return mt
	}
	return "audio/*"
}

// Qualities lists the selectable qualities; the first entry of each list is
// not necessarily the default, see DefaultQuality.
func (f OutputFormat) Qualities() []string {
	switch f {
	case FormatMP3:
		return []string{"128k", "192k", "256k", "320k"}
	case FormatWAV:
		return []string{"16-bit", "24-bit"}
	}
	return []string{"high"}
}

func (f OutputFormat) DefaultQuality() string {
	switch f {
	case FormatMP3:
		return "256k"
	case FormatWAV:
		return "16-bit"
	}
	return "high"
}

// ValidQuality reports whether q is selectable for the format. Empty means
// "use the template default".
func (f OutputFormat) ValidQuality(q string) bool {
	if q == "" {
		return true
	}
	for _, v := range f.Qualities() {
		if v == q {
			return true
		}
	}
	return false
}

// AcceptedExtensions are the upload extensions the service takes.
var AcceptedExtensions = []string{"mp3", "m4a", "wav", "flac", "aac", "ogg"}

func AcceptedExtension(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, e := range AcceptedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Crossfade slider bounds in seconds.
const (
	CrossfadeMin     = 0.5
	CrossfadeMax     = 10.0
	CrossfadeStep    = 0.1
	CrossfadeDefault = 3.0
)

// Target duration form bounds.
const (
	DefaultTargetHours   = 2
	DefaultTargetMinutes = 0
	MaxTargetHours       = 24
	MaxTargetMinutes     = 59
)
