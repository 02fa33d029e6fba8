package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	frontend "github.com/itchan-dev/mediadesk/frontend/app"
)

func newSendCmd() *cobra.Command {
	var opts frontend.SendOptions
	cmd := &cobra.Command{
		Use:   "send TEXT",
		Short: "Send one command and print the reply and the resolved file",
		Example: `  mediadesk send "trim the first 5 seconds" --video clip.mp4
  mediadesk send "merge with song.mp3" --wait 5m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			result, err := frontend.Send(cmd.Context(), cfg, strings.Join(args, " "), opts)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Video, "video", "", "Catalog path or file name of the video to work on")
	cmd.Flags().DurationVar(&opts.Wait, "wait", frontend.DefaultSendWait, "How long to wait for the reply")
	return cmd
}

func printResult(w io.Writer, result frontend.SendResult) {
	for _, msg := range result.Transcript {
		fmt.Fprintf(w, "%s [%s]\n%s\n\n", msg.Role, time.UnixMilli(msg.Timestamp).Format(time.TimeOnly), msg.Content)
	}
	for _, n := range result.Notifications {
		fmt.Fprintf(w, "! %s: %s\n", n.Severity, n.Message)
	}
	if result.Artifact != nil && result.Artifact.MatchedItem != nil {
		fmt.Fprintf(w, "artifact: %s (%s)\n", result.Artifact.MatchedItem.Path, result.Artifact.MatchTier)
	} else {
		fmt.Fprintln(w, "artifact: none")
	}
}
