package media

import (
	"fmt"
	"time"
)

const (
	FadeOutSeconds    = 3
	MaxChainedInputs  = 5
	MaxTargetDuration = 24 * time.Hour
	MaxLoopRatio      = 1000
)

// ValidationError carries a message meant for the end user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// TargetDuration converts the hours/minutes form fields into a duration.
func TargetDuration(hours, minutes int) time.Duration {
	return time.Duration(hours*60+minutes) * time.Minute
}

// Params are the numeric inputs checked before the tool runs. Original is
// zero when the source length is not known yet.
type Params struct {
	Mode      Mode
	Target    time.Duration
	Original  time.Duration
	Crossfade float64
	NumFiles  int
}

// ValidateParameters checks p for its mode and returns a *ValidationError
// describing the first violation.
func ValidateParameters(p Params) error {
	if p.Crossfade < 0 {
		return invalid("Crossfade duration cannot be negative")
	}

	switch p.Mode {
	case ModeExtend:
		if err := validateTarget(p.Target); err != nil {
			return err
		}
		if p.Original > 0 {
			loops := float64(p.Target) / float64(p.Original)
			if loops > MaxLoopRatio {
				return invalid("Too many loops required (%.0fx). Consider a shorter target duration.", loops)
			}
		}
	case ModeCombine:
		if p.NumFiles < 2 {
			return invalid("Need at least 2 files to combine")
		}
	case ModeCombineExtend:
		if p.NumFiles < 2 {
			return invalid("Need at least 2 files to combine and extend")
		}
		if p.Target <= 0 {
			return invalid("Target duration must be greater than 0")
		}
	}
	return nil
}

func validateTarget(target time.Duration) error {
	if target <= 0 {
		return invalid("Target duration must be greater than 0")
	}
	if target > MaxTargetDuration {
		return invalid("Target duration cannot exceed 24 hours")
	}
	return nil
}

// ValidateRequest runs the request-level checks done before any upload is
// touched, then ValidateParameters without a known source length.
func ValidateRequest(mode Mode, numFiles int, target time.Duration, crossfade float64) error {
	if numFiles == 0 {
		return invalid("Upload audio files")
	}
	if mode == ModeExtend && numFiles > 1 {
		return invalid("Extend mode takes exactly 1 audio file")
	}
	return ValidateParameters(Params{
		Mode:      mode,
		Target:    target,
		Crossfade: crossfade,
		NumFiles:  numFiles,
	})
}
