package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout      = 300 * time.Second
	DefaultCheckTimeout = 10 * time.Second
	DefaultProbeTimeout = 30 * time.Second
)

// ProgressFunc receives coarse progress updates during a run.
type ProgressFunc func(percent int, message string)

// Options configure a Processor. Zero values fall back to defaults.
type Options struct {
	FFmpegPath   string
	FFprobePath  string
	Timeout      time.Duration
	CheckTimeout time.Duration
	ProbeTimeout time.Duration
	Environment  Environment
	Runner       Runner
	Logger       zerolog.Logger
}

// Processor drives ffmpeg and ffprobe for the editing modes.
type Processor struct {
	runner       Runner
	ffmpeg       string
	ffprobe      string
	timeout      time.Duration
	checkTimeout time.Duration
	probeTimeout time.Duration
	env          Environment
	logger       zerolog.Logger
}

func NewProcessor(opts Options) *Processor {
	p := &Processor{
		runner:       opts.Runner,
		ffmpeg:       opts.FFmpegPath,
		ffprobe:      opts.FFprobePath,
		timeout:      opts.Timeout,
		checkTimeout: opts.CheckTimeout,
		probeTimeout: opts.ProbeTimeout,
		env:          opts.Environment,
		logger:       opts.Logger,
	}
	if p.runner == nil {
		p.runner = NewExecRunner()
	}
	if p.ffmpeg == "" {
		p.ffmpeg = "ffmpeg"
	}
	if p.ffprobe == "" {
		p.ffprobe = "ffprobe"
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.checkTimeout <= 0 {
		p.checkTimeout = DefaultCheckTimeout
	}
	if p.probeTimeout <= 0 {
		p.probeTimeout = DefaultProbeTimeout
	}
	return p
}

func (p *Processor) Environment() Environment {
	return p.env
}

// CheckTool runs "ffmpeg -version" and returns the first line of its output.
func (p *Processor) CheckTool(ctx context.Context) (bool, string) {
	res, err := p.runner.Run(ctx, p.checkTimeout, p.ffmpeg, "-version")
	if err != nil {
		if errors.Is(err, ErrToolMissing) {
			return false, "FFmpeg not found"
		}
		p.logger.Warn().Err(err).Msg("ffmpeg version check failed")
		return false, "FFmpeg not working"
	}
	line, _, _ := strings.Cut(string(res.Stdout), "\n")
	return true, strings.TrimSpace(line)
}

// ExtendRequest is a single-file extend run. Output must carry the
// extension of Format.
type ExtendRequest struct {
	Input     string
	Output    string
	Target    time.Duration
	Crossfade float64
	Method    Method
	Format    OutputFormat
	Quality   string
}

type ExtendResult struct {
	Plan       Plan
	Source     AudioInfo
	Message    string
	OutputSize int64
	Elapsed    time.Duration
}

// Extend loops req.Input to req.Target with a closing fade-out.
func (p *Processor) Extend(ctx context.Context, req ExtendRequest, progress ProgressFunc) (*ExtendResult, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	if err := ValidateParameters(Params{Mode: ModeExtend, Target: req.Target, Crossfade: req.Crossfade, NumFiles: 1}); err != nil {
		return nil, err
	}

	info, err := p.Probe(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	progress(10, "Analyzing audio...")
	if err := ValidateParameters(Params{
		Mode:      ModeExtend,
		Target:    req.Target,
		Original:  info.Duration,
		Crossfade: req.Crossfade,
		NumFiles:  1,
	}); err != nil {
		return nil, err
	}

	plan, err := BuildExtendArgs(ExtendSpec{
		Input:     req.Input,
		Output:    req.Output,
		Target:    req.Target,
		Original:  info.Duration,
		Crossfade: req.Crossfade,
		Hosted:    p.env.Hosted,
		Format:    req.Format,
		Quality:   req.Quality,
	})
	if err != nil {
		return nil, err
	}

	if p.env.Hosted {
		progress(30, "Hosted mode: Simple loop method...")
	} else {
		progress(30, fmt.Sprintf("Local mode: Advanced crossfade (loops: %d)...", LoopsNeeded(req.Target, info.Duration)))
	}

	progress(50, "Running FFmpeg...")
	p.logger.Debug().
		Str("template", string(plan.Template)).
		Int("loops", plan.Loops).
		Strs("args", plan.Args).
		Msg("running ffmpeg")
	res, err := p.runner.Run(ctx, p.timeout, p.ffmpeg, plan.Args...)
	// a run that exited, successfully or not, is finalized; timeouts and launch failures are not
	var exitErr *ToolError
	if err == nil || errors.As(err, &exitErr) {
		progress(90, "Finalizing...")
	}
	if err != nil {
		p.logger.Warn().Err(err).Str("template", string(plan.Template)).Msg("ffmpeg failed")
		return nil, err
	}

	st, statErr := os.Stat(req.Output)
	if statErr != nil || st.Size() == 0 {
		return nil, &ToolError{Name: p.ffmpeg, ExitCode: res.ExitCode, Stderr: string(res.Stderr)}
	}

	msg := "Success! Simple Loop"
	if !p.env.Hosted {
		msg = fmt.Sprintf("Success! Local Crossfade (d=%s)", formatSeconds(req.Crossfade))
	}
	p.logger.Info().
		Str("template", string(plan.Template)).
		Dur("elapsed", res.Elapsed).
		Int64("size", st.Size()).
		Msg("extend finished")

	return &ExtendResult{
		Plan:       plan,
		Source:     *info,
		Message:    msg,
		OutputSize: st.Size(),
		Elapsed:    res.Elapsed,
	}, nil
}

// CombineRequest covers both combine modes. Target is ignored by ModeCombine.
type CombineRequest struct {
	Inputs    []string
	Output    string
	Target    time.Duration
	Crossfade float64
	Method    Method
	Format    OutputFormat
	Quality   string
}

// Combine validates req and reports that the mode is not available yet.
func (p *Processor) Combine(ctx context.Context, req CombineRequest, progress ProgressFunc) error {
	return p.pending(ModeCombine, req)
}

// CombineExtend validates req and reports that the mode is not available yet.
func (p *Processor) CombineExtend(ctx context.Context, req CombineRequest, progress ProgressFunc) error {
	return p.pending(ModeCombineExtend, req)
}

func (p *Processor) pending(mode Mode, req CombineRequest) error {
	if err := ValidateParameters(Params{
		Mode:      mode,
		Target:    req.Target,
		Crossfade: req.Crossfade,
		NumFiles:  len(req.Inputs),
	}); err != nil {
		return err
	}
	return &PendingModeError{Mode: mode}
}
