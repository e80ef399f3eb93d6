package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether ffmpeg is usable and which render environment applies",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		processor, err := newProcessor(cfg)
		if err != nil {
			return err
		}
		ok, v := processor.CheckTool(context.Background())
		env := processor.Environment()
		cmd.Printf("ffmpeg:      %s\n", v)
		cmd.Printf("environment: %s", env.Name())
		if env.Source != "" {
			cmd.Printf(" (%s)", env.Source)
		}
		cmd.Println()
		if !ok {
			return errors.New("ffmpeg is not usable")
		}
		return nil
	},
}
