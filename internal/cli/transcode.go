package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/cyder/internal/domain"
	"github.com/tejashwikalptaru/cyder/internal/service"
)

var (
	convertTo string
	outDir    string
	fetchDir  string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a track between mp3 and wav",
	Long: `Convert a track with ffmpeg. The result is written next to the source unless
--out names another directory. Without --to, the other supported format is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

var dreamifyCmd = &cobra.Command{
	Use:   "dreamify <file>",
	Short: "Write a muffled copy of a track",
	Long: `Run the dreamify filter over a track and write <name>_Dreamy.mp3 next to it.
The filter is the dreamify_filter setting (default: "highpass=f=2, lowpass=f=300").`,
	Args: cobra.ExactArgs(1),
	RunE: runDreamify,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download the audio of a video as mp3",
	Long:  `Extract the audio of a video with youtube-dl into --dir (default: the current directory).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", "", "target format (mp3 or wav)")
	convertCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	dreamifyCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory")
	fetchCmd.Flags().StringVarP(&fetchDir, "dir", "d", ".", "download directory")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(dreamifyCmd)
	rootCmd.AddCommand(fetchCmd)
}

func runConvert(cmd *cobra.Command, args []string) (err error) {
	source, err := domain.NewTrack(args[0])
	if err != nil {
		return err
	}

	target := otherFormat(source.Format)
	if convertTo != "" {
		format, ok := domain.ParseFormat(convertTo)
		if !ok {
			return domain.NewValidationError("to", convertTo, "must be mp3 or wav")
		}
		target = format
	}
	if target == source.Format {
		return domain.NewValidationError("to", convertTo, "track is already "+string(target))
	}

	application, err := newApplication(cmd, false)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, application.Shutdown())
	}()

	_, _, transcode, _ := application.GetServices()
	output, err := transcode.Convert(cmd.Context(), source.Path, target)
	if err != nil {
		return err
	}

	return deliver(cmd, output, destination(source, source.Name()+target.Extension()))
}

func runDreamify(cmd *cobra.Command, args []string) (err error) {
	source, err := domain.NewTrack(args[0])
	if err != nil {
		return err
	}
	if source.Dreamified() {
		return domain.NewValidationError("file", source.Path, "track is already dreamy")
	}

	application, err := newApplication(cmd, false)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, application.Shutdown())
	}()

	_, _, transcode, _ := application.GetServices()
	output, err := transcode.Dreamify(cmd.Context(), source.Path)
	if err != nil {
		return err
	}

	return deliver(cmd, output, destination(source, source.DreamyName()+domain.FormatMP3.Extension()))
}

func runFetch(cmd *cobra.Command, args []string) (err error) {
	application, err := newApplication(cmd, false)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, application.Shutdown())
	}()

	_, _, transcode, _ := application.GetServices()
	output, err := transcode.Fetch(cmd.Context(), args[0], fetchDir)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "fetched %s\n", describeFile(output))
	return nil
}

// destination places name in --out, or next to the source.
func destination(source domain.Track, name string) string {
	dir := outDir
	if dir == "" {
		dir = source.Dir()
	}
	return filepath.Join(dir, name)
}

// deliver moves a finished output from the temp directory to dest.
func deliver(cmd *cobra.Command, output, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if err := service.MoveFile(output, dest); err != nil {
		return fmt.Errorf("move %s to %s: %w", output, dest, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", describeFile(dest))
	return nil
}

func otherFormat(format domain.Format) domain.Format {
	if format == domain.FormatMP3 {
		return domain.FormatWAV
	}
	return domain.FormatMP3
}
