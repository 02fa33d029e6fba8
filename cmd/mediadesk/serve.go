package main

import (
	"github.com/spf13/cobra"

	backend "github.com/itchan-dev/mediadesk/backend/app"
	frontend "github.com/itchan-dev/mediadesk/frontend/app"
)

func newMediaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "media",
		Short: "Run the media library and chat relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return backend.Serve(cmd.Context(), cfg)
		},
	}
}

func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Run the browser session server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return frontend.Serve(cmd.Context(), cfg)
		},
	}
}
