package media

import (
	"fmt"
	"strings"
)

// RenderMode forces or auto-detects the hosted simple-loop layout.
type RenderMode string

const (
	RenderAuto      RenderMode = "auto"
	RenderSimple    RenderMode = "simple"
	RenderCrossfade RenderMode = "crossfade"
)

func ParseRenderMode(s string) (RenderMode, error) {
	switch m := RenderMode(strings.ToLower(strings.TrimSpace(s))); m {
	case RenderAuto, RenderSimple, RenderCrossfade:
		return m, nil
	case "":
		return RenderAuto, nil
	}
	return "", fmt.Errorf("unknown render mode %q", s)
}

// Environment describes where the processor runs.
type Environment struct {
	Hosted bool   `json:"hosted"`
	Source string `json:"source"`
}

func (e Environment) Name() string {
	if e.Hosted {
		return "hosted"
	}
	return "local"
}

// DetectHosted reports a hosted platform when flagVar is set to any
// non-empty value or HOSTNAME contains hostMarker.
func DetectHosted(getenv func(string) string, flagVar, hostMarker string) (bool, string) {
	if flagVar != "" && getenv(flagVar) != "" {
		return true, flagVar
	}
	if hostMarker != "" && strings.Contains(getenv("HOSTNAME"), hostMarker) {
		return true, "HOSTNAME"
	}
	return false, ""
}

// ResolveEnvironment applies mode on top of detection.
func ResolveEnvironment(mode RenderMode, getenv func(string) string, flagVar, hostMarker string) Environment {
	switch mode {
	case RenderSimple:
		return Environment{Hosted: true, Source: "render_mode"}
	case RenderCrossfade:
		return Environment{Hosted: false, Source: "render_mode"}
	}
	hosted, source := DetectHosted(getenv, flagVar, hostMarker)
	if !hosted {
		source = "default"
	}
	return Environment{Hosted: hosted, Source: source}
}
