package media

import (
	"errors"
	"fmt"
)

var ErrModeNotImplemented = errors.New("mode not implemented")

// PendingModeError is returned by the modes that are accepted but not built yet.
type PendingModeError struct {
	Mode Mode
}

func (e *PendingModeError) Error() string {
	switch e.Mode {
	case ModeCombine:
		return "Combine mode: Coming soon with FFmpeg + 3s fade out"
	case ModeCombineExtend:
		return "Combine+extend mode: Coming soon with FFmpeg + 3s fade out"
	}
	return fmt.Sprintf("%s mode: Coming soon", e.Mode)
}

func (e *PendingModeError) Is(target error) bool {
	return target == ErrModeNotImplemented
}

// UserMessage maps a processing error to the text shown to the end user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var pending *PendingModeError
	if errors.As(err, &pending) {
		return pending.Error()
	}
	var terr *ToolError
	switch {
	case errors.Is(err, ErrProbeFailed):
		return "Could not analyze audio file"
	case errors.Is(err, ErrToolTimeout):
		return "Processing timeout - try shorter duration"
	case errors.Is(err, ErrToolMissing):
		return "FFmpeg not found"
	case errors.As(err, &terr):
		stderr := truncateRunes(terr.Stderr, 200)
		if stderr == "" {
			stderr = "Unknown error"
		}
		return "FFmpeg error: " + stderr
	}
	return "Processing error: " + err.Error()
}
