package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play a file and control playback from the keyboard",
	Long: `Play an mp3 or wav file. Without a file, the last played track is restored.

When the track ends the next one is picked from the same directory, honoring
repeat, shuffle and the play-next queue. Type h and enter for the key list.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	application, err := newApplication(cmd, true)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, application.Shutdown())
	}()

	if len(args) == 1 {
		if err := application.Open(ctx, args[0]); err != nil {
			return err
		}
	} else {
		restored, err := application.Restore(ctx)
		if err != nil {
			return err
		}
		if !restored {
			return fmt.Errorf("nothing to play: pass a file")
		}
	}

	if err := application.Run(ctx, cmd.InOrStdin()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
