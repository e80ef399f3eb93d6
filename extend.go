package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"audioedit/internal/media"
)

var extendOpts struct {
	mode      string
	hours     int
	minutes   int
	crossfade float64
	method    string
	format    string
	quality   string
	suffix    string
	outDir    string
}

var extendCmd = &cobra.Command{
	Use:   "extend FILE...",
	Short: "Render an extended copy of an audio file locally",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtend,
}

func init() {
	f := extendCmd.Flags()
	f.StringVarP(&extendOpts.mode, "mode", "m", string(media.ModeExtend), "extend, combine or combine_extend")
	f.IntVar(&extendOpts.hours, "hours", media.DefaultTargetHours, "Target hours")
	f.IntVar(&extendOpts.minutes, "minutes", media.DefaultTargetMinutes, "Target minutes")
	f.Float64VarP(&extendOpts.crossfade, "crossfade", "x", media.CrossfadeDefault, "Crossfade seconds between loops")
	f.StringVar(&extendOpts.method, "method", string(media.MethodBasicCrossfade), "Crossfade method")
	f.StringVarP(&extendOpts.format, "format", "f", string(media.FormatMP3), "Output format: mp3, wav, m4a or flac")
	f.StringVarP(&extendOpts.quality, "quality", "q", "", "Output quality, format specific")
	f.StringVarP(&extendOpts.suffix, "suffix", "s", "", "Suffix for the output file name")
	f.StringVarP(&extendOpts.outDir, "out", "o", "", "Output directory (defaults to the input's directory)")
}

func runExtend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mode, err := media.ParseMode(extendOpts.mode)
	if err != nil {
		return err
	}
	method, err := media.ParseMethod(extendOpts.method)
	if err != nil {
		return err
	}
	format, err := media.ParseFormat(extendOpts.format)
	if err != nil {
		return err
	}
	if !format.ValidQuality(extendOpts.quality) {
		return fmt.Errorf("quality %q is not available for %s", extendOpts.quality, format)
	}
	for _, in := range args {
		if !media.AcceptedExtension(in) {
			return fmt.Errorf("unsupported file type: %s", in)
		}
	}

	target := media.TargetDuration(extendOpts.hours, extendOpts.minutes)
	if err := media.ValidateRequest(mode, len(args), target, extendOpts.crossfade); err != nil {
		return err
	}

	processor, err := newProcessor(cfg)
	if err != nil {
		return err
	}

	outDir := extendOpts.outDir
	if outDir == "" {
		outDir = filepath.Dir(args[0])
	}
	names := make([]string, len(args))
	for i, in := range args {
		names[i] = filepath.Base(in)
	}
	output := filepath.Join(outDir, media.DownloadFilename(names, extendOpts.suffix, mode, format))

	var stage atomic.Value
	stage.Store("Starting...")
	p := mpb.New(mpb.WithWidth(48), mpb.WithOutput(cmd.ErrOrStderr()))
	bar := p.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(mode.Label()+": "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string { return stage.Load().(string) }),
		),
	)
	progress := func(percent int, message string) {
		stage.Store(message)
		bar.SetCurrent(int64(percent))
	}

	ctx := context.Background()
	var res *media.ExtendResult
	switch mode {
	case media.ModeExtend:
		res, err = processor.Extend(ctx, media.ExtendRequest{
			Input:     args[0],
			Output:    output,
			Target:    target,
			Crossfade: extendOpts.crossfade,
			Method:    method,
			Format:    format,
			Quality:   extendOpts.quality,
		}, progress)
	case media.ModeCombine, media.ModeCombineExtend:
		req := media.CombineRequest{
			Inputs:    args,
			Output:    output,
			Target:    target,
			Crossfade: extendOpts.crossfade,
			Method:    method,
			Format:    format,
			Quality:   extendOpts.quality,
		}
		if mode == media.ModeCombine {
			err = processor.Combine(ctx, req, progress)
		} else {
			err = processor.CombineExtend(ctx, req, progress)
		}
	}
	if err != nil {
		bar.Abort(false)
		p.Wait()
		cmd.PrintErrln(media.UserMessage(err))
		if !errors.Is(err, media.ErrModeNotImplemented) {
			cmd.PrintErrln(media.ErrorHint)
		}
		return err
	}
	bar.SetCurrent(100)
	p.Wait()
	if res == nil {
		return nil
	}

	cmd.Println(res.Message)
	cmd.Printf("%s (%s, %s)\n", output, humanize.Bytes(uint64(res.OutputSize)), media.FormatDuration(target.Seconds()))
	return nil
}
