package main

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"audioedit/internal/config"
	"audioedit/internal/logging"
	"audioedit/internal/media"
)

var (
	version    = "1.0.0"
	configFlag string
	renderFlag string

	rootCmd = &cobra.Command{
		Use:           "audioedit",
		Short:         "Extend, loop and combine audio files with ffmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"Path to config.json (defaults to $AUDIOEDIT_CONFIG or ./config.json)")
	rootCmd.PersistentFlags().StringVar(&renderFlag, "render-mode", "",
		"Override media.render_mode: auto, simple or crossfade")

	// serve is the default
	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(serveCmd, extendCmd, checkCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of audioedit",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("audioedit version %s\n", version)
	},
}

// loadConfig reads the config file and installs the global logger.
func loadConfig() (*config.Config, error) {
	path := configFlag
	if path == "" {
		path = os.Getenv("AUDIOEDIT_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if renderFlag != "" {
		cfg.Media.RenderMode = renderFlag
	}
	logging.Init(cfg.Log)
	return cfg, nil
}

func newProcessor(cfg *config.Config) (*media.Processor, error) {
	mode, err := media.ParseRenderMode(cfg.Media.RenderMode)
	if err != nil {
		return nil, err
	}
	env := media.ResolveEnvironment(mode, os.Getenv, cfg.Media.HostedEnvFlag, cfg.Media.HostedHostname)
	logger := logging.Component("media")
	logger.Info().
		Str("environment", env.Name()).
		Str("source", env.Source).
		Msg("render environment resolved")
	return media.NewProcessor(media.Options{
		FFmpegPath:  cfg.Media.FFmpegPath,
		FFprobePath: cfg.Media.FFprobePath,
		Timeout:     time.Duration(cfg.Media.TimeoutSeconds) * time.Second,
		Environment: env,
		Logger:      logger,
	}), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("audioedit failed")
		os.Exit(1)
	}
}
