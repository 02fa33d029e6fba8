package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itchan-dev/mediadesk/shared/config"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

var configFolder string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "mediadesk: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mediadesk",
		Short: "Chat-driven media editing desk",
		Long: `mediadesk runs the media library and chat relay ("media"), the browser session
server that correlates replies and picks the produced file ("ui"), and a one-shot
command runner for scripts ("send").`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configFolder, "config", "c", "config", "Folder with public.yaml and optional private.yaml")
	cmd.AddCommand(
		newMediaCmd(),
		newUICmd(),
		newSendCmd(),
	)
	return cmd
}

// loadConfig reads the config folder and initialises logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFolder)
	if err != nil {
		return nil, err
	}
	logger.Initialize(cfg.Public.Log.Level, cfg.Public.Log.JSON, nil)
	return cfg, nil
}
