package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	name string
	args []string
}

type fakeRunner struct {
	mu       sync.Mutex
	calls    []fakeCall
	probe    string
	probeErr error
	runErr   error
	write    []byte
	stderr   string
}

func (f *fakeRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (*RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{name: name, args: args})
	f.mu.Unlock()

	switch name {
	case "ffprobe":
		if f.probeErr != nil {
			return nil, f.probeErr
		}
		return &RunResult{Stdout: []byte(f.probe)}, nil
	case "ffmpeg":
		if len(args) == 1 && args[0] == "-version" {
			return &RunResult{Stdout: []byte("ffmpeg version 6.1.1 Copyright\nbuilt with gcc\n")}, nil
		}
		if f.runErr != nil {
			return &RunResult{Stderr: []byte(f.stderr)}, f.runErr
		}
		if f.write != nil {
			if err := os.WriteFile(args[len(args)-1], f.write, 0o644); err != nil {
				return nil, err
			}
		}
		return &RunResult{Stderr: []byte(f.stderr), Elapsed: time.Millisecond}, nil
	}
	return nil, ErrToolMissing
}

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "width": 300},
    {"codec_type": "audio", "sample_rate": "44100", "channels": 2}
  ],
  "format": {"duration": "250.000000", "format_name": "mp3", "bit_rate": "320000"}
}`

func newTestProcessor(r Runner, hosted bool) *Processor {
	return NewProcessor(Options{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Environment: Environment{Hosted: hosted},
		Runner:      r,
	})
}

type progressLog struct {
	percents []int
	messages []string
}

func (l *progressLog) record(p int, msg string) {
	l.percents = append(l.percents, p)
	l.messages = append(l.messages, msg)
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(probeJSON))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Second, info.Duration)
	assert.Equal(t, "mp3", info.FormatName)
	assert.Equal(t, int64(320000), info.BitRate)
	assert.Equal(t, int64(44100), info.SampleRate)
	assert.Equal(t, int64(2), info.Channels)

	_, err = parseProbe([]byte(`{"format":{}}`))
	assert.ErrorIs(t, err, ErrProbeFailed)
	_, err = parseProbe([]byte(`not json`))
	assert.ErrorIs(t, err, ErrProbeFailed)
}

func TestExtendLocalCrossfade(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{probe: probeJSON, write: []byte("audio")}
	p := newTestProcessor(runner, false)
	var log progressLog

	res, err := p.Extend(context.Background(), ExtendRequest{
		Input:     filepath.Join(dir, "in.mp3"),
		Output:    filepath.Join(dir, "out.mp3"),
		Target:    600 * time.Second,
		Crossfade: 3,
		Format:    FormatMP3,
	}, log.record)
	require.NoError(t, err)

	assert.Equal(t, "Success! Local Crossfade (d=3)", res.Message)
	assert.Equal(t, TemplateCrossfadeChain, res.Plan.Template)
	assert.Equal(t, int64(5), res.OutputSize)
	assert.Equal(t, []int{10, 30, 50, 90}, log.percents)
	assert.Equal(t, "Local mode: Advanced crossfade (loops: 3)...", log.messages[1])
	require.Len(t, runner.calls, 2)
	assert.Equal(t, "ffprobe", runner.calls[0].name)
	assert.Equal(t, res.Plan.Args, runner.calls[1].args)
}

func TestExtendHostedSimpleLoop(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{probe: probeJSON, write: []byte("audio")}
	p := newTestProcessor(runner, true)
	var log progressLog

	res, err := p.Extend(context.Background(), ExtendRequest{
		Input:  filepath.Join(dir, "in.mp3"),
		Output: filepath.Join(dir, "out.mp3"),
		Target: time.Hour,
		Format: FormatMP3,
	}, log.record)
	require.NoError(t, err)
	assert.Equal(t, "Success! Simple Loop", res.Message)
	assert.Equal(t, TemplateSimpleLoop, res.Plan.Template)
	assert.Equal(t, "Hosted mode: Simple loop method...", log.messages[1])
}

func TestExtendFailures(t *testing.T) {
	dir := t.TempDir()
	req := ExtendRequest{
		Input:  filepath.Join(dir, "in.mp3"),
		Output: filepath.Join(dir, "out.mp3"),
		Target: time.Hour,
		Format: FormatMP3,
	}

	t.Run("unreadable input", func(t *testing.T) {
		p := newTestProcessor(&fakeRunner{probe: `{}`}, false)
		var log progressLog
		_, err := p.Extend(context.Background(), req, log.record)
		assert.Equal(t, "Could not analyze audio file", UserMessage(err))
		assert.Empty(t, log.percents)
	})

	t.Run("loop ratio", func(t *testing.T) {
		p := newTestProcessor(&fakeRunner{probe: `{"format":{"duration":"1.0"}}`}, false)
		_, err := p.Extend(context.Background(), req, nil)
		assert.Equal(t, "Too many loops required (3600x). Consider a shorter target duration.", UserMessage(err))
	})

	t.Run("tool error", func(t *testing.T) {
		r := &fakeRunner{probe: probeJSON, runErr: &ToolError{Name: "ffmpeg", ExitCode: 1, Stderr: "Invalid data found"}}
		var log progressLog
		_, err := newTestProcessor(r, false).Extend(context.Background(), req, log.record)
		assert.Equal(t, "FFmpeg error: Invalid data found", UserMessage(err))
		assert.Equal(t, []int{10, 30, 50, 90}, log.percents)
	})

	t.Run("timeout", func(t *testing.T) {
		r := &fakeRunner{probe: probeJSON, runErr: ErrToolTimeout}
		var log progressLog
		_, err := newTestProcessor(r, false).Extend(context.Background(), req, log.record)
		assert.Equal(t, "Processing timeout - try shorter duration", UserMessage(err))
		assert.Equal(t, []int{10, 30, 50}, log.percents)
	})

	t.Run("empty output", func(t *testing.T) {
		r := &fakeRunner{probe: probeJSON, write: []byte{}, stderr: "muxer wrote nothing"}
		_, err := newTestProcessor(r, false).Extend(context.Background(), req, nil)
		assert.Equal(t, "FFmpeg error: muxer wrote nothing", UserMessage(err))
	})

	t.Run("invalid target", func(t *testing.T) {
		r := &fakeRunner{probe: probeJSON}
		bad := req
		bad.Target = 0
		_, err := newTestProcessor(r, false).Extend(context.Background(), bad, nil)
		assert.Equal(t, "Target duration must be greater than 0", UserMessage(err))
		assert.Empty(t, r.calls)
	})
}

func TestCombineModesArePending(t *testing.T) {
	p := newTestProcessor(&fakeRunner{}, false)

	err := p.Combine(context.Background(), CombineRequest{Inputs: []string{"a", "b"}}, nil)
	assert.ErrorIs(t, err, ErrModeNotImplemented)
	assert.Equal(t, "Combine mode: Coming soon with FFmpeg + 3s fade out", UserMessage(err))

	err = p.CombineExtend(context.Background(), CombineRequest{Inputs: []string{"a", "b"}, Target: time.Hour}, nil)
	assert.ErrorIs(t, err, ErrModeNotImplemented)
	assert.Equal(t, "Combine+extend mode: Coming soon with FFmpeg + 3s fade out", UserMessage(err))

	err = p.Combine(context.Background(), CombineRequest{Inputs: []string{"a"}}, nil)
	assert.False(t, errors.Is(err, ErrModeNotImplemented))
	assert.Equal(t, "Need at least 2 files to combine", UserMessage(err))
}

func TestCheckTool(t *testing.T) {
	ok, version := newTestProcessor(&fakeRunner{}, false).CheckTool(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "ffmpeg version 6.1.1 Copyright", version)

	missing := NewProcessor(Options{FFmpegPath: "ffmpeg-missing", Runner: &fakeRunner{}})
	ok, version = missing.CheckTool(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "FFmpeg not found", version)
}

func TestResolveEnvironment(t *testing.T) {
	env := func(vals map[string]string) func(string) string {
		return func(k string) string { return vals[k] }
	}

	got := ResolveEnvironment(RenderAuto, env(map[string]string{"STREAMLIT_SHARING": "1"}), "STREAMLIT_SHARING", "streamlit.io")
	assert.True(t, got.Hosted)
	assert.Equal(t, "STREAMLIT_SHARING", got.Source)

	got = ResolveEnvironment(RenderAuto, env(map[string]string{"HOSTNAME": "app-1.streamlit.io"}), "STREAMLIT_SHARING", "streamlit.io")
	assert.True(t, got.Hosted)
	assert.Equal(t, "hosted", got.Name())

	got = ResolveEnvironment(RenderAuto, env(map[string]string{"HOSTNAME": "laptop"}), "STREAMLIT_SHARING", "streamlit.io")
	assert.False(t, got.Hosted)
	assert.Equal(t, "local", got.Name())

	got = ResolveEnvironment(RenderCrossfade, env(map[string]string{"STREAMLIT_SHARING": "1"}), "STREAMLIT_SHARING", "streamlit.io")
	assert.False(t, got.Hosted)

	got = ResolveEnvironment(RenderSimple, env(nil), "STREAMLIT_SHARING", "streamlit.io")
	assert.True(t, got.Hosted)
}
